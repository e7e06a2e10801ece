package service

import (
	"context"
	"math/big"
)

// EscrowChallengeRequest is the input of an on-chain challenge creation.
// SettlementID keys the on-chain id, so every attempt for one payment targets
// the same contract entry.
type EscrowChallengeRequest struct {
	SettlementID      string
	ChallengeID       string
	PayerEmail        string
	AmountUSD         float64
	DurationDays      int
	GuarantorEmails   []string
	MetadataURI       string
	ProviderSessionID string
	PaymentIntentID   string
}

// EscrowTransaction is a signed createChallenge call that has not necessarily
// been broadcast. Callers persist it before sending so a retry re-sends the
// same bytes instead of signing a second call.
type EscrowTransaction struct {
	OnChainID string
	TxHash    string
	RawTx     string // Hex-encoded signed transaction.
}

// EscrowTxStatus is what the chain says about a sent transaction.
type EscrowTxStatus string

const (
	// EscrowTxConfirmed means the transaction was mined and succeeded.
	EscrowTxConfirmed EscrowTxStatus = "confirmed"
	// EscrowTxPending means no receipt yet; the transaction may still be mined.
	EscrowTxPending EscrowTxStatus = "pending"
	// EscrowTxReverted means the transaction was mined and failed.
	EscrowTxReverted EscrowTxStatus = "reverted"
	// EscrowTxDropped means the transaction can never be mined (its nonce was used by another one).
	EscrowTxDropped EscrowTxStatus = "dropped"
)

// EscrowReceipt is the outcome of SendChallenge.
type EscrowReceipt struct {
	Status      EscrowTxStatus
	BlockNumber uint64
}

// WalletInfo describes the platform signer.
type WalletInfo struct {
	Address     string   `json:"address"`
	ChainID     int64    `json:"chainId"`
	NativeWei   *big.Int `json:"nativeBalanceWei"`
	USDCBalance *big.Int `json:"usdcBalance"` // 6 decimals
}

// EscrowClient talks to the escrow contract.
type EscrowClient interface {
	// Enabled reports whether on-chain mirroring is configured at all.
	Enabled() bool

	// IsDeployed reports whether the configured contract is live on the configured chain.
	IsDeployed(ctx context.Context) (bool, error)

	// PrepareChallenge tops up the token allowance when needed and signs
	// createChallenge without broadcasting it.
	PrepareChallenge(ctx context.Context, req *EscrowChallengeRequest) (*EscrowTransaction, error)

	// SendChallenge looks the transaction up, broadcasts it when the chain has
	// not seen it, and waits a bounded time for its receipt. Sending the same
	// transaction twice is harmless.
	SendChallenge(ctx context.Context, tx *EscrowTransaction) (*EscrowReceipt, error)

	// WalletInfo reports the platform signer's balances.
	WalletInfo(ctx context.Context) (*WalletInfo, error)
}
