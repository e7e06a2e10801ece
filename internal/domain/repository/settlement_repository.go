package repository

import (
	"context"
	"time"

	"showup/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Domain-specific errors for settlement persistence.
var (
	// ErrSettlementNotFound is returned when a settlement is not found.
	ErrSettlementNotFound = errors.New("settlement not found")
	// ErrSettlementExists is returned when the provider session was already claimed.
	ErrSettlementExists = errors.New("settlement already claimed")
	// ErrSettlementLeaseLost is returned when another attempt took over the settlement.
	ErrSettlementLeaseLost = errors.New("settlement lease lost")
)

// SettlementRepository persists settlements keyed by provider session id.
type SettlementRepository interface {
	// Claim inserts a settlement row, returning ErrSettlementExists when another
	// delivery of the same provider session got there first.
	Claim(ctx context.Context, settlement *entity.Settlement) error

	FindByID(ctx context.Context, id uuid.UUID) (*entity.Settlement, error)
	FindByProviderSessionID(ctx context.Context, providerSessionID string) (*entity.Settlement, error)

	// Acquire leases the next attempt: it moves the row to processing and
	// increments attempts, but only when the row still carries
	// settlement.Attempts and is either queued or processing with a lease last
	// touched before staleBefore. It reports false when another attempt holds
	// or finished the row.
	Acquire(ctx context.Context, settlement *entity.Settlement, staleBefore time.Time) (bool, error)

	// Update writes the outcome of attempt settlement.Attempts. It returns
	// ErrSettlementLeaseLost when a newer attempt has taken over the row.
	Update(ctx context.Context, settlement *entity.Settlement) error

	// FindPending lists queued settlements and processing ones whose lease went
	// stale before staleBefore, oldest first.
	FindPending(ctx context.Context, staleBefore time.Time, limit int) ([]*entity.Settlement, error)
}
