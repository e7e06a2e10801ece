package service

import (
	"context"
)

// ReconciliationEvent asks the settlement worker to retry one queued settlement.
type ReconciliationEvent struct {
	RequestID         string `json:"request_id,omitempty"` // For distributed tracing
	SettlementID      string `json:"settlement_id"`
	ProviderSessionID string `json:"provider_session_id"`
	Reason            string `json:"reason,omitempty"`
}

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishReconciliationEvent queues a settlement for asynchronous reconciliation
	PublishReconciliationEvent(ctx context.Context, event *ReconciliationEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
