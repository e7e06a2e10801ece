package usecase

import (
	"context"

	"showup/internal/domain/entity"
	"showup/internal/domain/service"

	"github.com/google/uuid"
)

// CheckoutInput requests a hosted payment session for a deposit.
type CheckoutInput struct {
	UserID        uuid.UUID
	Amount        float64
	ChallengeID   *uuid.UUID
	CustomerEmail string
	Metadata      map[string]string
}

// PaymentSessionSummary is the deposit success page payload.
type PaymentSessionSummary struct {
	Amount            float64 `json:"amount"`
	ChallengeTitle    string  `json:"challengeTitle"`
	ChallengeDuration int     `json:"challengeDuration"`
	GuarantorCount    int     `json:"guarantorCount"`
	CustomerEmail     string  `json:"customerEmail"`
	PaymentStatus     string  `json:"paymentStatus"`
}

// WebhookInput is a raw provider notification.
type WebhookInput struct {
	Payload   []byte
	Signature string
}

// SimulatePaymentInput drives a settlement without the payment provider.
type SimulatePaymentInput struct {
	UserID        uuid.UUID
	Amount        float64
	ChallengeID   string
	CustomerEmail string
	Metadata      map[string]string
}

// SimulatePaymentOutput mirrors a completed test checkout.
type SimulatePaymentOutput struct {
	SessionID  string             `json:"sessionId"`
	URL        string             `json:"url"`
	Settlement *entity.Settlement `json:"-"`
}

// TestModeStatus reports whether payment simulation is available.
type TestModeStatus struct {
	TestModeAllowed bool   `json:"testModeAllowed"`
	Environment     string `json:"environment"`
	Message         string `json:"message"`
}

// SettlementUsecase coordinates deposits, webhooks and the escrow mirror.
type SettlementUsecase interface {
	CreateCheckout(ctx context.Context, input *CheckoutInput) (*service.CheckoutSession, error)
	GetSessionDetails(ctx context.Context, sessionID string) (*PaymentSessionSummary, error)

	// HandleWebhook authenticates and dispatches a provider notification.
	// Once authenticated the notification is acknowledged even if settlement fails.
	HandleWebhook(ctx context.Context, input *WebhookInput) error

	SimulatePayment(ctx context.Context, input *SimulatePaymentInput) (*SimulatePaymentOutput, error)
	TestModeStatus() *TestModeStatus

	// Settle processes a paid event exactly once per provider session.
	Settle(ctx context.Context, event *entity.PaymentEvent) (*entity.Settlement, error)

	// Reconcile retries the escrow mirror for a queued settlement.
	Reconcile(ctx context.Context, settlementID uuid.UUID) (*entity.Settlement, error)

	// RequeuePending republishes reconciliation events for queued settlements.
	RequeuePending(ctx context.Context, limit int) (int, error)

	PlatformWalletInfo(ctx context.Context) (*service.WalletInfo, error)
}
