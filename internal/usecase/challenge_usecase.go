package usecase

import (
	"context"

	"showup/internal/domain/entity"

	"github.com/google/uuid"
)

// InviteQR is a rendered guarantor invite.
type InviteQR struct {
	URL string
	PNG []byte
}

// ChallengeUsecase reads a user's challenges and builds guarantor invites.
type ChallengeUsecase interface {
	ListMine(ctx context.Context, userID uuid.UUID) ([]*entity.Challenge, error)
	Get(ctx context.Context, challengeID, userID uuid.UUID) (*entity.Challenge, error)
	InviteQR(ctx context.Context, challengeID, userID uuid.UUID) (*InviteQR, error)
}
