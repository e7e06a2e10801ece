package entity

import (
	"time"

	"github.com/google/uuid"
)

// TokenKind distinguishes short-lived access tokens from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// AuthSession represents a long-lived, authorized login.
// Refreshing overwrites the token hash and expiry of the same row instead of adding a new one.
type AuthSession struct {
	ID               uuid.UUID // The unique ID for this session record.
	UserID           uuid.UUID // Links this session to the User it belongs to.
	RefreshTokenHash string    // SHA-256 hash of the raw refresh token.
	ExpiresAt        time.Time // The refresh token is rejected after this instant.
	UserAgent        string    // Client user agent at login.
	IPAddress        string    // Client IP at login.
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsExpired reports whether the session can no longer be refreshed.
func (s *AuthSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
