package service

import (
	"context"
)

// CheckoutRequest describes a hosted payment session.
type CheckoutRequest struct {
	AmountCents   int64
	Currency      string
	ProductName   string
	Description   string
	CustomerEmail string
	Metadata      map[string]string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is a created hosted payment session.
type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentSessionDetails is a retrieved payment session.
type PaymentSessionDetails struct {
	ID              string
	AmountTotal     int64
	Metadata        map[string]string
	PaymentStatus   string
	CustomerEmail   string
	PaymentIntentID string
}

// WebhookEvent is a verified provider notification.
type WebhookEvent struct {
	ID      string
	Type    string
	Session *PaymentSessionDetails // Set for checkout session events.
}

// PaymentProvider is the hosted-checkout collaborator.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*PaymentSessionDetails, error)

	// ParseWebhook verifies the signature against secret and decodes the event.
	// An empty secret skips verification.
	ParseWebhook(payload []byte, signature, secret string) (*WebhookEvent, error)
}
