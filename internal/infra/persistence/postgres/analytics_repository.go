package postgres

import (
	"context"

	"showup/internal/domain/entity"
	domainerrors "showup/internal/domain/errors"
	"showup/internal/domain/repository"
	"showup/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type analyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository is the constructor for analyticsRepository.
func NewAnalyticsRepository(db *gorm.DB) repository.AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (repo *analyticsRepository) Record(ctx context.Context, event *entity.AnalyticsEvent) error {
	eventM := fromAnalyticsEventDomain(event)

	if err := repo.db.WithContext(ctx).Create(eventM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to record analytics event")
	}

	event.ID = eventM.ID
	event.CreatedAt = eventM.CreatedAt

	return nil
}

func (repo *analyticsRepository) FindBySession(ctx context.Context, sessionID uuid.UUID) ([]*entity.AnalyticsEvent, error) {
	var eventModels []*model.AnalyticsEventModel

	if err := repo.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&eventModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find analytics events")
	}

	events := make([]*entity.AnalyticsEvent, 0, len(eventModels))
	for _, eventM := range eventModels {
		events = append(events, toAnalyticsEventDomain(eventM))
	}

	return events, nil
}

// --- Mapper Functions ---

func toAnalyticsEventDomain(data *model.AnalyticsEventModel) *entity.AnalyticsEvent {
	ev := &entity.AnalyticsEvent{
		ID:               data.ID,
		SessionID:        data.SessionID,
		UserID:           data.UserID,
		EventType:        entity.AnalyticsEventType(data.EventType),
		EventData:        data.EventData,
		TimeSpentSeconds: data.TimeSpentSeconds,
		CreatedAt:        data.CreatedAt,
	}
	if data.StepName != nil {
		step := entity.OnboardingStep(*data.StepName)
		ev.Step = &step
	}

	return ev
}

func fromAnalyticsEventDomain(data *entity.AnalyticsEvent) *model.AnalyticsEventModel {
	m := &model.AnalyticsEventModel{
		ID:               data.ID,
		SessionID:        data.SessionID,
		UserID:           data.UserID,
		EventType:        string(data.EventType),
		EventData:        data.EventData,
		TimeSpentSeconds: data.TimeSpentSeconds,
		CreatedAt:        data.CreatedAt,
	}
	if data.Step != nil {
		step := string(*data.Step)
		m.StepName = &step
	}
	if m.EventData == nil {
		m.EventData = map[string]any{}
	}

	return m
}
