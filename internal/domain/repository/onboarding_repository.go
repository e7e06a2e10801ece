package repository

import (
	"context"
	"time"

	"showup/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Domain-specific errors for onboarding persistence.
var (
	// ErrOnboardingSessionNotFound is returned when a session is not found.
	ErrOnboardingSessionNotFound = errors.New("onboarding session not found")
	// ErrActiveSessionExists is returned when a user already has an active session.
	ErrActiveSessionExists = errors.New("active onboarding session already exists")
	// ErrInvalidStoredDraft is returned when a persisted draft fails validation on read.
	ErrInvalidStoredDraft = errors.New("stored challenge draft is invalid")
)

// OnboardingRepository persists onboarding sessions. Writes are last-write-wins per row.
type OnboardingRepository interface {
	// Create persists a new session, returning ErrActiveSessionExists when the
	// user already holds an active one.
	Create(ctx context.Context, session *entity.OnboardingSession) error

	// FindByID retrieves a session by ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.OnboardingSession, error)

	// FindActiveByUser retrieves the user's session that is neither completed nor abandoned.
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*entity.OnboardingSession, error)

	// Update writes the step cursor, completed set, draft, transcript mirror and conversation link.
	Update(ctx context.Context, session *entity.OnboardingSession) error

	// MarkCompleted stamps completed_at.
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkAbandoned stamps abandoned_at.
	MarkAbandoned(ctx context.Context, id uuid.UUID, at time.Time) error

	// Metrics aggregates the funnel across all sessions.
	Metrics(ctx context.Context) (*entity.OnboardingMetrics, error)
}
