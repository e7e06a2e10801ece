// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// CurrentTermsVersion is recorded when a user accepts terms without naming a version.
const CurrentTermsVersion = "1.0"

// User is the account that owns onboarding sessions, conversations and challenges.
type User struct {
	ID                    uuid.UUID  // The Global Unique Identifier (GUID) for the user.
	Email                 string     // Login identifier, always stored lowercase.
	Username              *string    // Optional unique handle.
	PasswordHash          string     // bcrypt hash, set once at registration.
	FullName              string     // The user's display name.
	WalletAddress         *string    // Optional linked wallet.
	EmailVerified         bool       // Whether the email address has been confirmed.
	IsActive              bool       // Inactive accounts cannot log in.
	TermsAcceptedAt       *time.Time // Stamped once on first terms acceptance.
	TermsVersion          string     // Version of the accepted terms.
	OnboardingCompletedAt *time.Time // Stamped once when onboarding is finalized.
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// HasAcceptedTerms reports whether the terms stamp is present.
func (u *User) HasAcceptedTerms() bool {
	return u.TermsAcceptedAt != nil
}
