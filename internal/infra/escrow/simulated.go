package escrow

import (
	"context"
	"log/slog"
	"math/big"
	"strings"

	"showup/internal/domain/service"
)

var zeroTxHash = "0x" + strings.Repeat("0", 64)

type simulatedClient struct {
	chainID int64
	logger  *slog.Logger
}

// NewSimulatedClient returns a client that reports success without touching the chain.
func NewSimulatedClient(chainID int64, logger *slog.Logger) service.EscrowClient {
	return &simulatedClient{chainID: chainID, logger: logger}
}

func (s *simulatedClient) Enabled() bool { return true }

func (s *simulatedClient) IsDeployed(context.Context) (bool, error) { return true, nil }

func (s *simulatedClient) PrepareChallenge(ctx context.Context, req *service.EscrowChallengeRequest) (*service.EscrowTransaction, error) {
	onChainID := OnChainID(req.SettlementID)

	s.logger.InfoContext(ctx, "Simulated on-chain challenge",
		slog.String("on_chain_id", onChainID.Hex()),
		slog.Float64("amount_usd", req.AmountUSD),
		slog.Int("duration_days", req.DurationDays),
		slog.Int("guarantors", len(req.GuarantorEmails)),
	)

	return &service.EscrowTransaction{OnChainID: onChainID.Hex(), TxHash: zeroTxHash}, nil
}

func (s *simulatedClient) SendChallenge(context.Context, *service.EscrowTransaction) (*service.EscrowReceipt, error) {
	return &service.EscrowReceipt{Status: service.EscrowTxConfirmed}, nil
}

func (s *simulatedClient) WalletInfo(context.Context) (*service.WalletInfo, error) {
	return &service.WalletInfo{
		Address:     "0x" + strings.Repeat("0", 40),
		ChainID:     s.chainID,
		NativeWei:   new(big.Int),
		USDCBalance: new(big.Int),
	}, nil
}
