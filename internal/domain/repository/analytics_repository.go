package repository

import (
	"context"

	"showup/internal/domain/entity"

	"github.com/google/uuid"
)

// AnalyticsRepository appends onboarding events. Events are never updated or deleted.
type AnalyticsRepository interface {
	Record(ctx context.Context, event *entity.AnalyticsEvent) error

	// FindBySession lists a session's events in insertion order.
	FindBySession(ctx context.Context, sessionID uuid.UUID) ([]*entity.AnalyticsEvent, error)
}
