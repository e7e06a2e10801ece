// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"showup/internal/domain/entity"
	"showup/internal/domain/service"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// RegisterInput defines the data required to register a new user.
type RegisterInput struct {
	Email     string
	Password  string
	Username  *string
	FullName  string
	UserAgent string
	IPAddress string
}

// LoginInput defines the data required for a user to log in.
type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

// --- Output DTOs ---

// AuthOutput returns the user together with a fresh token pair.
type AuthOutput struct {
	User   *entity.User
	Tokens *service.TokenPair
}

// AuthUsecase defines registration, login and the refresh-session lifecycle.
type AuthUsecase interface {
	Register(ctx context.Context, input *RegisterInput) (*AuthOutput, error)
	Login(ctx context.Context, input *LoginInput) (*AuthOutput, error)

	// Refresh rotates the refresh token in place: the same session row gets the new hash and expiry.
	Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error)

	// Logout ends the session holding refreshToken. Unknown tokens are ignored.
	Logout(ctx context.Context, refreshToken string) error

	Me(ctx context.Context, userID uuid.UUID) (*entity.User, error)

	// CleanupExpiredSessions deletes sessions whose refresh token has expired.
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}
