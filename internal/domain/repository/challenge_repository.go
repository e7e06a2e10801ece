package repository

import (
	"context"

	"showup/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrChallengeNotFound is returned when a challenge is not found.
var ErrChallengeNotFound = errors.New("challenge not found")

// ChallengeRepository persists finalized challenges.
type ChallengeRepository interface {
	// Create persists a new challenge.
	Create(ctx context.Context, challenge *entity.Challenge) error

	// FindByID retrieves a challenge by ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Challenge, error)

	// FindByUser lists a user's challenges, newest first.
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*entity.Challenge, error)

	// MarkPaymentPending records the hosted payment session for a non-terminal challenge.
	MarkPaymentPending(ctx context.Context, id uuid.UUID, paymentSessionID string) error

	// UpdateStatus moves a challenge to a settlement outcome along with any on-chain references.
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.ChallengeStatus, onChainID, txHash string) error
}
