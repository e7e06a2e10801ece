package repository

import (
	"context"
	"time"

	"showup/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrAuthSessionNotFound is returned when no session matches a refresh token hash.
var ErrAuthSessionNotFound = errors.New("auth session not found")

// AuthSessionRepository persists refresh-token sessions.
type AuthSessionRepository interface {
	// Create persists a new session created at login or registration.
	Create(ctx context.Context, session *entity.AuthSession) error

	// FindByTokenHash retrieves a session by the SHA-256 hash of its refresh token.
	FindByTokenHash(ctx context.Context, tokenHash string) (*entity.AuthSession, error)

	// Rotate overwrites the token hash and expiry of an existing session row.
	Rotate(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error

	// DeleteByTokenHash ends a session. Deleting an unknown hash is not an error.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteExpired removes sessions whose refresh token has expired.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
