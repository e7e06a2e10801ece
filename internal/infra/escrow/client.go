// Package escrow mirrors paid challenges onto the escrow contract.
package escrow

import (
	"context"
	"crypto/ecdsa"
	"log/slog"
	"math"
	"math/big"
	"strings"
	"time"

	"showup/config"
	"showup/internal/domain/service"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

const (
	escrowABIJSON = `[
		{"type":"function","name":"createChallenge","stateMutability":"nonpayable","inputs":[
			{"name":"challengeId","type":"bytes32"},
			{"name":"guarantors","type":"address[]"},
			{"name":"amount","type":"uint256"},
			{"name":"duration","type":"uint256"},
			{"name":"metadataUri","type":"string"}],"outputs":[]},
		{"type":"function","name":"usdcToken","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
	]`

	erc20ABIJSON = `[
		{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
		{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
	]`

	usdcDecimals          = 6
	defaultReceiptTimeout = 2 * time.Minute
)

// publicRPCURLs are used when escrow.rpcUrl is empty.
var publicRPCURLs = map[int64]string{
	137:   "https://polygon-rpc.com",
	80002: "https://rpc-amoy.polygon.technology",
	8453:  "https://mainnet.base.org",
	84532: "https://sepolia.base.org",
}

// SupportedChain reports whether chainID is one of the escrow deployments.
func SupportedChain(chainID int64) bool {
	_, ok := publicRPCURLs[chainID]

	return ok
}

type backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type ethClient struct {
	chainID        int64
	backend        backend
	escrowAddr     common.Address
	usdcAddr       common.Address
	escrow         *bind.BoundContract
	usdc           *bind.BoundContract
	key            *ecdsa.PrivateKey
	from           common.Address
	receiptTimeout time.Duration
	logger         *slog.Logger
}

// NewEscrowClient picks the client for the configuration: disabled, simulated or on-chain.
func NewEscrowClient(cfg *config.Config, logger *slog.Logger) (service.EscrowClient, error) {
	ec := cfg.Escrow
	switch {
	case ec == nil || !ec.Enabled:
		logger.Info("Escrow mirroring disabled")

		return disabledClient{}, nil
	case ec.Simulate:
		logger.Warn("Escrow client running in simulation mode", slog.Int64("chain_id", ec.ChainID))

		return NewSimulatedClient(ec.ChainID, logger), nil
	}

	if !SupportedChain(ec.ChainID) {
		return nil, errors.Errorf("unsupported chain ID: %d", ec.ChainID)
	}

	rpcURL := ec.RPCURL
	if rpcURL == "" {
		rpcURL = publicRPCURLs[ec.ChainID]
	}

	rpc, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, errors.Wrap(err, "dial chain rpc")
	}

	return newEthClient(ec, rpc, logger)
}

func newEthClient(ec *config.EscrowConfig, b backend, logger *slog.Logger) (*ethClient, error) {
	if ec.PrivateKey == "" {
		return nil, errors.New("platform wallet private key not configured")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(ec.PrivateKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "parse platform wallet key")
	}

	escrowABI, err := abi.JSON(strings.NewReader(escrowABIJSON))
	if err != nil {
		return nil, errors.Wrap(err, "parse escrow abi")
	}
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, errors.Wrap(err, "parse erc20 abi")
	}

	escrowAddr := common.HexToAddress(ec.ContractAddress)
	usdcAddr := common.HexToAddress(ec.USDCAddress)

	timeout := ec.ReceiptTimeout
	if timeout <= 0 {
		timeout = defaultReceiptTimeout
	}

	return &ethClient{
		chainID:        ec.ChainID,
		backend:        b,
		escrowAddr:     escrowAddr,
		usdcAddr:       usdcAddr,
		escrow:         bind.NewBoundContract(escrowAddr, escrowABI, b, b, b),
		usdc:           bind.NewBoundContract(usdcAddr, erc20ABI, b, b, b),
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		receiptTimeout: timeout,
		logger:         logger,
	}, nil
}

func (c *ethClient) Enabled() bool { return true }

// IsDeployed checks for contract code and that the escrow is wired to the configured USDC token.
func (c *ethClient) IsDeployed(ctx context.Context) (bool, error) {
	if c.escrowAddr == (common.Address{}) {
		c.logger.WarnContext(ctx, "Escrow contract not deployed", slog.Int64("chain_id", c.chainID))

		return false, nil
	}

	code, err := c.backend.CodeAt(ctx, c.escrowAddr, nil)
	if err != nil {
		return false, errors.Wrap(err, "read escrow code")
	}
	if len(code) == 0 {
		return false, nil
	}

	var out []any
	if err := c.escrow.Call(&bind.CallOpts{Context: ctx}, &out, "usdcToken"); err != nil {
		return false, errors.Wrap(err, "read escrow usdc token")
	}
	if len(out) == 0 {
		return false, nil
	}

	token, ok := out[0].(common.Address)

	return ok && token == c.usdcAddr, nil
}

// PrepareChallenge signs createChallenge under the settlement's on-chain id.
// Gas estimation fails when the id is already taken on chain.
func (c *ethClient) PrepareChallenge(ctx context.Context, req *service.EscrowChallengeRequest) (*service.EscrowTransaction, error) {
	onChainID := OnChainID(req.SettlementID)
	amount := ToUSDCUnits(req.AmountUSD)
	duration := new(big.Int).SetInt64(int64(req.DurationDays) * 24 * 60 * 60)
	guarantors := GuarantorAddresses(req.ChallengeID, len(req.GuarantorEmails))

	if err := c.ensureAllowance(ctx, amount); err != nil {
		return nil, err
	}

	opts := c.transactOpts(ctx)
	opts.NoSend = true
	tx, err := c.escrow.Transact(opts, "createChallenge",
		onChainID, guarantors, amount, duration, req.MetadataURI)
	if err != nil {
		return nil, errors.Wrap(err, "sign createChallenge")
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "encode createChallenge")
	}

	return &service.EscrowTransaction{
		OnChainID: onChainID.Hex(),
		TxHash:    tx.Hash().Hex(),
		RawTx:     hexutil.Encode(raw),
	}, nil
}

func (c *ethClient) SendChallenge(ctx context.Context, etx *service.EscrowTransaction) (*service.EscrowReceipt, error) {
	raw, err := hexutil.Decode(etx.RawTx)
	if err != nil {
		return nil, errors.Wrap(err, "decode signed transaction")
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, errors.Wrap(err, "decode signed transaction")
	}

	if receipt, err := c.lookupReceipt(ctx, tx.Hash()); err != nil || receipt != nil {
		return receipt, err
	}

	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		switch {
		case isAlreadyKnown(err):
		case isNonceTooLow(err):
			// Mined since the lookup, or another transaction took the nonce.
			receipt, err := c.lookupReceipt(ctx, tx.Hash())
			if err != nil || receipt != nil {
				return receipt, err
			}

			return &service.EscrowReceipt{Status: service.EscrowTxDropped}, nil
		default:
			return nil, errors.Wrap(err, "broadcast createChallenge")
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.backend, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			c.logger.WarnContext(ctx, "Receipt not available yet", slog.String("tx_hash", tx.Hash().Hex()))

			return &service.EscrowReceipt{Status: service.EscrowTxPending}, nil
		}

		return nil, errors.Wrapf(err, "wait for receipt %s", tx.Hash().Hex())
	}

	c.logger.InfoContext(ctx, "Challenge transaction mined",
		slog.String("on_chain_id", etx.OnChainID),
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.Uint64("block_number", receipt.BlockNumber.Uint64()),
	)

	return toEscrowReceipt(receipt), nil
}

// lookupReceipt returns nil without error when the chain has no receipt for hash.
func (c *ethClient) lookupReceipt(ctx context.Context, hash common.Hash) (*service.EscrowReceipt, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read receipt %s", hash.Hex())
	}

	return toEscrowReceipt(receipt), nil
}

func toEscrowReceipt(receipt *types.Receipt) *service.EscrowReceipt {
	status := service.EscrowTxConfirmed
	if receipt.Status != types.ReceiptStatusSuccessful {
		status = service.EscrowTxReverted
	}

	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}

	return &service.EscrowReceipt{Status: status, BlockNumber: block}
}

// Node error strings are the only signal JSON-RPC gives for these cases.
func isAlreadyKnown(err error) bool {
	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "already known") || strings.Contains(msg, "known transaction")
}

func isNonceTooLow(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "nonce too low")
}

// ensureAllowance approves the max amount once the current allowance runs short.
func (c *ethClient) ensureAllowance(ctx context.Context, amount *big.Int) error {
	var out []any
	if err := c.usdc.Call(&bind.CallOpts{Context: ctx}, &out, "allowance", c.from, c.escrowAddr); err != nil {
		return errors.Wrap(err, "read usdc allowance")
	}

	allowance, _ := out[0].(*big.Int)
	if allowance != nil && allowance.Cmp(amount) >= 0 {
		return nil
	}

	maxAllowance := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	tx, err := c.usdc.Transact(c.transactOpts(ctx), "approve", c.escrowAddr, maxAllowance)
	if err != nil {
		return errors.Wrap(err, "send usdc approve")
	}
	if _, err := c.waitMined(ctx, tx); err != nil {
		return errors.Wrap(err, "usdc approve")
	}

	c.logger.InfoContext(ctx, "USDC approval completed", slog.String("tx_hash", tx.Hash().Hex()))

	return nil
}

func (c *ethClient) transactOpts(ctx context.Context) *bind.TransactOpts {
	// The key and chain id are validated at construction, so this cannot fail.
	opts, _ := bind.NewKeyedTransactorWithChainID(c.key, big.NewInt(c.chainID))
	opts.Context = ctx

	return opts
}

func (c *ethClient) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, errors.Wrapf(err, "wait for receipt %s", tx.Hash().Hex())
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, errors.Errorf("transaction %s reverted", tx.Hash().Hex())
	}

	return receipt, nil
}

func (c *ethClient) WalletInfo(ctx context.Context) (*service.WalletInfo, error) {
	native, err := c.backend.BalanceAt(ctx, c.from, nil)
	if err != nil {
		return nil, errors.Wrap(err, "read native balance")
	}

	var out []any
	if err := c.usdc.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", c.from); err != nil {
		return nil, errors.Wrap(err, "read usdc balance")
	}
	usdc, _ := out[0].(*big.Int)

	return &service.WalletInfo{
		Address:     c.from.Hex(),
		ChainID:     c.chainID,
		NativeWei:   native,
		USDCBalance: usdc,
	}, nil
}

// OnChainID derives the bytes32 challenge id as keccak256(settlementID). One
// settlement maps to one contract entry however often it is retried.
func OnChainID(settlementID string) common.Hash {
	return crypto.Keccak256Hash([]byte(settlementID))
}

// GuarantorAddresses builds placeholder addresses from keccak256(challengeID ‖ uint256(index)).
// Guarantors replace them once they link a wallet.
func GuarantorAddresses(challengeID string, count int) []common.Address {
	out := make([]common.Address, 0, count)
	for i := range count {
		index := common.LeftPadBytes(big.NewInt(int64(i)).Bytes(), 32)
		hash := crypto.Keccak256([]byte(challengeID), index)
		out = append(out, common.BytesToAddress(hash[:common.AddressLength]))
	}

	return out
}

// ToUSDCUnits converts dollars to 6-decimal token units.
func ToUSDCUnits(amountUSD float64) *big.Int {
	return big.NewInt(int64(math.Round(amountUSD * math.Pow10(usdcDecimals))))
}

type disabledClient struct{}

func (disabledClient) Enabled() bool { return false }

func (disabledClient) IsDeployed(context.Context) (bool, error) { return false, nil }

func (disabledClient) PrepareChallenge(context.Context, *service.EscrowChallengeRequest) (*service.EscrowTransaction, error) {
	return nil, errors.New("escrow mirroring is disabled")
}

func (disabledClient) SendChallenge(context.Context, *service.EscrowTransaction) (*service.EscrowReceipt, error) {
	return nil, errors.New("escrow mirroring is disabled")
}

func (disabledClient) WalletInfo(context.Context) (*service.WalletInfo, error) {
	return nil, errors.New("escrow mirroring is disabled")
}
