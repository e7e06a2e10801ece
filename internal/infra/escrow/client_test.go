package escrow

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"showup/config"
	"showup/internal/domain/service"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOnChainID(t *testing.T) {
	settlementID := "0192f3a4-7b1c-7d2e-9f00-0123456789ab"

	got := OnChainID(settlementID)

	assert.Equal(t, crypto.Keccak256Hash([]byte(settlementID)), got)
	assert.Equal(t, got, OnChainID(settlementID))
	assert.NotEqual(t, got, OnChainID("0192f3a4-7b1c-7d2e-9f00-0123456789ac"))
}

func TestGuarantorAddresses(t *testing.T) {
	addrs := GuarantorAddresses("challenge-1", 3)
	require.Len(t, addrs, 3)

	index0 := common.LeftPadBytes(big.NewInt(0).Bytes(), 32)
	hash := crypto.Keccak256([]byte("challenge-1"), index0)
	assert.Equal(t, common.BytesToAddress(hash[:20]), addrs[0])

	assert.NotEqual(t, addrs[0], addrs[1])
	assert.NotEqual(t, addrs[1], addrs[2])
	assert.Equal(t, addrs, GuarantorAddresses("challenge-1", 3))
	assert.Empty(t, GuarantorAddresses("challenge-1", 0))
}

func TestToUSDCUnits(t *testing.T) {
	assert.Equal(t, big.NewInt(25_000_000), ToUSDCUnits(25))
	assert.Equal(t, big.NewInt(19_990_000), ToUSDCUnits(19.99))
	assert.Equal(t, big.NewInt(0), ToUSDCUnits(0))
}

func TestSupportedChain(t *testing.T) {
	for _, id := range []int64{137, 80002, 8453, 84532} {
		assert.True(t, SupportedChain(id), id)
	}
	assert.False(t, SupportedChain(1))
}

func TestNewEscrowClient(t *testing.T) {
	logger := discardLogger()

	client, err := NewEscrowClient(&config.Config{}, logger)
	require.NoError(t, err)
	assert.False(t, client.Enabled())

	client, err = NewEscrowClient(&config.Config{Escrow: &config.EscrowConfig{Enabled: true, Simulate: true, ChainID: 80002}}, logger)
	require.NoError(t, err)
	assert.True(t, client.Enabled())
	assert.IsType(t, &simulatedClient{}, client)

	_, err = NewEscrowClient(&config.Config{Escrow: &config.EscrowConfig{Enabled: true, ChainID: 1}}, logger)
	assert.ErrorContains(t, err, "unsupported chain ID: 1")
}

func TestNewEthClient_RequiresKey(t *testing.T) {
	_, err := newEthClient(&config.EscrowConfig{ChainID: 137}, nil, discardLogger())
	assert.ErrorContains(t, err, "private key not configured")

	_, err = newEthClient(&config.EscrowConfig{ChainID: 137, PrivateKey: "0xnothex"}, nil, discardLogger())
	assert.ErrorContains(t, err, "parse platform wallet key")
}

func TestEthClient_IsDeployedWithoutContractAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	client, err := newEthClient(&config.EscrowConfig{
		ChainID:    80002,
		PrivateKey: common.Bytes2Hex(crypto.FromECDSA(key)),
	}, nil, discardLogger())
	require.NoError(t, err)

	deployed, err := client.IsDeployed(context.Background())
	require.NoError(t, err)
	assert.False(t, deployed)
}

func TestSimulatedClient(t *testing.T) {
	client := NewSimulatedClient(80002, discardLogger())

	deployed, err := client.IsDeployed(context.Background())
	require.NoError(t, err)
	assert.True(t, deployed)

	tx, err := client.PrepareChallenge(context.Background(), &service.EscrowChallengeRequest{
		SettlementID:      "s-1",
		ChallengeID:       "c-1",
		AmountUSD:         50,
		DurationDays:      14,
		ProviderSessionID: "cs_test_1",
	})
	require.NoError(t, err)
	assert.Equal(t, OnChainID("s-1").Hex(), tx.OnChainID)
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000000", tx.TxHash)

	receipt, err := client.SendChallenge(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, service.EscrowTxConfirmed, receipt.Status)
	assert.Zero(t, receipt.BlockNumber)

	info, err := client.WalletInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(80002), info.ChainID)
}

func TestDisabledClient(t *testing.T) {
	var client service.EscrowClient = disabledClient{}

	_, err := client.PrepareChallenge(context.Background(), &service.EscrowChallengeRequest{})
	assert.Error(t, err)
	_, err = client.SendChallenge(context.Background(), &service.EscrowTransaction{})
	assert.Error(t, err)
	_, err = client.WalletInfo(context.Background())
	assert.Error(t, err)
}

// chainStub answers receipt lookups and broadcasts; everything else is unused.
type chainStub struct {
	backend

	receipt    *types.Receipt
	mined      bool
	mineOnSend bool
	sendErr    error
	sends      int
}

func (c *chainStub) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	if c.mined && c.receipt != nil {
		return c.receipt, nil
	}

	return nil, ethereum.NotFound
}

func (c *chainStub) SendTransaction(context.Context, *types.Transaction) error {
	c.sends++
	if c.mineOnSend {
		c.mined = true
	}

	return c.sendErr
}

func signedTx(t *testing.T) *service.EscrowTransaction {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	tx, err := types.SignTx(
		types.NewTx(&types.LegacyTx{Nonce: 3, Gas: 21000, GasPrice: big.NewInt(1), To: &common.Address{}}),
		types.NewEIP155Signer(big.NewInt(80002)),
		key,
	)
	require.NoError(t, err)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	return &service.EscrowTransaction{OnChainID: OnChainID("s-1").Hex(), TxHash: tx.Hash().Hex(), RawTx: hexutil.Encode(raw)}
}

func TestEthClient_SendChallenge(t *testing.T) {
	mined := &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(42)}
	reverted := &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(43)}

	tests := []struct {
		name      string
		chain     *chainStub
		wantSends int
		want      service.EscrowReceipt
	}{
		{
			name:      "already mined is not sent again",
			chain:     &chainStub{receipt: mined, mined: true},
			wantSends: 0,
			want:      service.EscrowReceipt{Status: service.EscrowTxConfirmed, BlockNumber: 42},
		},
		{
			name:      "unseen transaction is broadcast once",
			chain:     &chainStub{receipt: mined, mineOnSend: true},
			wantSends: 1,
			want:      service.EscrowReceipt{Status: service.EscrowTxConfirmed, BlockNumber: 42},
		},
		{
			name:      "already in the pool",
			chain:     &chainStub{receipt: mined, mineOnSend: true, sendErr: errors.New("already known")},
			wantSends: 1,
			want:      service.EscrowReceipt{Status: service.EscrowTxConfirmed, BlockNumber: 42},
		},
		{
			name:      "reverted",
			chain:     &chainStub{receipt: reverted, mineOnSend: true},
			wantSends: 1,
			want:      service.EscrowReceipt{Status: service.EscrowTxReverted, BlockNumber: 43},
		},
		{
			name:      "nonce taken by another transaction",
			chain:     &chainStub{sendErr: errors.New("nonce too low: next nonce 4, tx nonce 3")},
			wantSends: 1,
			want:      service.EscrowReceipt{Status: service.EscrowTxDropped},
		},
		{
			name:      "no receipt before the timeout",
			chain:     &chainStub{},
			wantSends: 1,
			want:      service.EscrowReceipt{Status: service.EscrowTxPending},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := crypto.GenerateKey()
			require.NoError(t, err)
			client, err := newEthClient(&config.EscrowConfig{
				ChainID:        80002,
				PrivateKey:     common.Bytes2Hex(crypto.FromECDSA(key)),
				ReceiptTimeout: 20 * time.Millisecond,
			}, tt.chain, discardLogger())
			require.NoError(t, err)

			receipt, err := client.SendChallenge(context.Background(), signedTx(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, *receipt)
			assert.Equal(t, tt.wantSends, tt.chain.sends)
		})
	}
}

func TestEthClient_SendChallenge_RejectsGarbage(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	client, err := newEthClient(&config.EscrowConfig{ChainID: 80002, PrivateKey: common.Bytes2Hex(crypto.FromECDSA(key))}, &chainStub{}, discardLogger())
	require.NoError(t, err)

	_, err = client.SendChallenge(context.Background(), &service.EscrowTransaction{RawTx: "0xzz"})
	assert.ErrorContains(t, err, "decode signed transaction")
}
