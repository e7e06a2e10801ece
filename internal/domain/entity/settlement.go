package entity

import (
	"time"

	"github.com/google/uuid"
)

// SettlementStatus is the state of one payment's escrow reconciliation.
type SettlementStatus string

const (
	SettlementStatusProcessing          SettlementStatus = "processing"
	SettlementStatusSettled             SettlementStatus = "settled"
	SettlementStatusNeedsReconciliation SettlementStatus = "needs_reconciliation"
	SettlementStatusFailed              SettlementStatus = "failed"
)

// IsTerminal reports whether the settlement needs no further work.
func (s SettlementStatus) IsTerminal() bool {
	return s == SettlementStatusSettled || s == SettlementStatusFailed
}

// PaymentEvent is a verified payment completion, from the provider webhook or
// the test-payment path.
type PaymentEvent struct {
	ProviderSessionID string
	PaymentIntentID   string
	AmountTotal       int64 // Minor units (cents).
	CustomerEmail     string
	PaymentStatus     string
	Metadata          map[string]string
	TestMode          bool
}

// AmountUSD converts the minor-unit total to dollars.
func (e *PaymentEvent) AmountUSD() float64 {
	return float64(e.AmountTotal) / 100
}

// Settlement is keyed by the provider session id: the unique key is the dedupe
// boundary against duplicate notifications, and rows needing reconciliation
// form the durable retry queue.
//
// A row in processing is leased to the worker running attempt number
// Attempts; only that worker may write its outcome. OnChainID, TxHash and
// RawTx are recorded before the escrow transaction is broadcast so a later
// attempt looks the same transaction up instead of creating a second entry.
type Settlement struct {
	ID                uuid.UUID
	ProviderSessionID string
	PaymentIntentID   string
	ChallengeID       *uuid.UUID
	Status            SettlementStatus
	Attempts          int
	Amount            float64
	CustomerEmail     string
	Metadata          map[string]string
	TestMode          bool
	OnChainID         string
	TxHash            string
	RawTx             string
	BlockNumber       uint64
	LastError         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewSettlement claims a payment event; inserting it leases the first attempt.
func NewSettlement(ev *PaymentEvent, challengeID *uuid.UUID, now time.Time) *Settlement {
	return &Settlement{
		ID:                uuid.New(),
		ProviderSessionID: ev.ProviderSessionID,
		PaymentIntentID:   ev.PaymentIntentID,
		ChallengeID:       challengeID,
		Status:            SettlementStatusProcessing,
		Attempts:          1,
		Amount:            ev.AmountUSD(),
		CustomerEmail:     ev.CustomerEmail,
		Metadata:          ev.Metadata,
		TestMode:          ev.TestMode,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// HasTransaction reports whether an escrow transaction was signed for this settlement.
func (s *Settlement) HasTransaction() bool {
	return s.RawTx != ""
}

// ForgetTransaction drops a transaction that can no longer create the entry,
// so the next attempt signs a fresh one under the same on-chain id.
func (s *Settlement) ForgetTransaction() {
	s.TxHash = ""
	s.RawTx = ""
}
