package service

import (
	"time"

	"showup/internal/domain/entity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims defines the custom claims for the JWT tokens.
type Claims struct {
	UserID uuid.UUID        `json:"-"`
	Email  string           `json:"email"`
	Type   entity.TokenKind `json:"type"`
	jwt.RegisteredClaims
}

// TokenPair is an access token with its refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // Access token lifetime in seconds.
}

// TokenService defines the interface for generating and validating JWTs.
// This abstracts the details of token creation from the use cases.
type TokenService interface {
	// Issue signs a single token of the given kind.
	Issue(userID uuid.UUID, email string, kind entity.TokenKind) (string, error)

	// GenerateTokens creates a new access token and refresh token for a given user.
	GenerateTokens(userID uuid.UUID, email string) (*TokenPair, error)

	// ValidateToken checks signature, expiry and kind. Any failure yields ErrInvalidToken.
	ValidateToken(tokenString string, kind entity.TokenKind) (*Claims, error)

	// GetRefreshTokenDuration returns the configured duration for refresh tokens.
	GetRefreshTokenDuration() time.Duration
}
