// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"
	"time"

	"showup/internal/domain/entity"

	"github.com/google/uuid"
)

// Domain-specific errors for user persistence.
var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when the email unique key is violated.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUsernameTaken is returned when the username unique key is violated.
	ErrUsernameTaken = errors.New("username already taken")
)

// UserRepository defines the standard operations for user persistence.
type UserRepository interface {
	// FindByID retrieves a single user by their unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// FindByEmail retrieves a single user by their lowercase email address.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// Create persists a new user, returning ErrEmailTaken or ErrUsernameTaken on conflicts.
	Create(ctx context.Context, user *entity.User) error

	// StampTermsAccepted sets terms_accepted_at only when it is still null.
	// It reports whether a stamp was written.
	StampTermsAccepted(ctx context.Context, id uuid.UUID, version string, at time.Time) (bool, error)

	// StampOnboardingCompleted sets onboarding_completed_at only when it is still null.
	StampOnboardingCompleted(ctx context.Context, id uuid.UUID, at time.Time) error
}
