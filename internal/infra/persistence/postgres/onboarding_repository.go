package postgres

import (
	"context"
	"encoding/json"
	"time"

	"showup/internal/domain/entity"
	domainerrors "showup/internal/domain/errors"
	"showup/internal/domain/repository"
	"showup/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const popularChallengeTypesLimit = 10

type onboardingRepository struct {
	db *gorm.DB
}

// NewOnboardingRepository is the constructor for onboardingRepository.
func NewOnboardingRepository(db *gorm.DB) repository.OnboardingRepository {
	return &onboardingRepository{db: db}
}

func (repo *onboardingRepository) Create(ctx context.Context, session *entity.OnboardingSession) error {
	sessionM, err := fromOnboardingSessionDomain(session)
	if err != nil {
		return err
	}

	if err := repo.db.WithContext(ctx).Create(sessionM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrActiveSessionExists
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create onboarding session")
	}

	session.ID = sessionM.ID
	session.CreatedAt = sessionM.CreatedAt
	session.UpdatedAt = sessionM.UpdatedAt

	return nil
}

func (repo *onboardingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.OnboardingSession, error) {
	var sessionM model.OnboardingSessionModel

	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&sessionM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrOnboardingSessionNotFound
		}

		return nil, errors.Wrap(err, "failed to find onboarding session")
	}

	return toOnboardingSessionDomain(&sessionM)
}

func (repo *onboardingRepository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*entity.OnboardingSession, error) {
	var sessionM model.OnboardingSessionModel

	if err := repo.db.WithContext(ctx).
		Where("user_id = ? AND completed_at IS NULL AND abandoned_at IS NULL", userID).
		Order("created_at DESC").
		First(&sessionM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrOnboardingSessionNotFound
		}

		return nil, errors.Wrap(err, "failed to find active onboarding session")
	}

	return toOnboardingSessionDomain(&sessionM)
}

func (repo *onboardingRepository) Update(ctx context.Context, session *entity.OnboardingSession) error {
	sessionM, err := fromOnboardingSessionDomain(session)
	if err != nil {
		return err
	}

	now := time.Now()
	result := repo.db.WithContext(ctx).
		Model(&model.OnboardingSessionModel{}).
		Where("id = ?", session.ID).
		Select("current_step", "steps_completed", "challenge_draft", "ai_messages", "ai_conversation_id", "updated_at").
		Updates(&model.OnboardingSessionModel{
			CurrentStep:      sessionM.CurrentStep,
			StepsCompleted:   sessionM.StepsCompleted,
			ChallengeDraft:   sessionM.ChallengeDraft,
			AIMessages:       sessionM.AIMessages,
			AIConversationID: sessionM.AIConversationID,
			UpdatedAt:        now,
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update onboarding session")
	}
	if result.RowsAffected == 0 {
		return repository.ErrOnboardingSessionNotFound
	}

	session.UpdatedAt = now

	return nil
}

func (repo *onboardingRepository) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return repo.stamp(ctx, id, "completed_at", at)
}

func (repo *onboardingRepository) MarkAbandoned(ctx context.Context, id uuid.UUID, at time.Time) error {
	return repo.stamp(ctx, id, "abandoned_at", at)
}

func (repo *onboardingRepository) stamp(ctx context.Context, id uuid.UUID, column string, at time.Time) error {
	result := repo.db.WithContext(ctx).
		Model(&model.OnboardingSessionModel{}).
		Where("id = ?", id).
		Updates(map[string]any{column: at, "updated_at": at})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to stamp onboarding session")
	}
	if result.RowsAffected == 0 {
		return repository.ErrOnboardingSessionNotFound
	}

	return nil
}

type sessionTotalsRow struct {
	Total                    int64
	Completed                int64
	Abandoned                int64
	AverageCompletionSeconds *float64
}

type stepFunnelRow struct {
	StepName string
	Count    int64
}

func (repo *onboardingRepository) Metrics(ctx context.Context) (*entity.OnboardingMetrics, error) {
	db := repo.db.WithContext(ctx)

	var totals sessionTotalsRow
	if err := db.Model(&model.OnboardingSessionModel{}).
		Select(`COUNT(*) AS total,
			COUNT(completed_at) AS completed,
			COUNT(abandoned_at) AS abandoned,
			AVG(EXTRACT(EPOCH FROM (completed_at - started_at))) AS average_completion_seconds`).
		Scan(&totals).Error; err != nil {
		return nil, errors.Wrap(err, "failed to aggregate onboarding sessions")
	}

	var funnel []stepFunnelRow
	if err := db.Model(&model.AnalyticsEventModel{}).
		Select("step_name, COUNT(*) AS count").
		Where("event_type = ? AND step_name IS NOT NULL", entity.EventStepStarted).
		Group("step_name").
		Scan(&funnel).Error; err != nil {
		return nil, errors.Wrap(err, "failed to aggregate step funnel")
	}

	var popular []entity.ChallengeTypeCount
	if err := db.Model(&model.ChallengeModel{}).
		Select("challenge_type AS type, COUNT(*) AS count").
		Where("challenge_type IS NOT NULL AND challenge_type <> ''").
		Group("challenge_type").
		Order("count DESC").
		Limit(popularChallengeTypesLimit).
		Scan(&popular).Error; err != nil {
		return nil, errors.Wrap(err, "failed to aggregate challenge types")
	}

	metrics := &entity.OnboardingMetrics{
		TotalSessions:         totals.Total,
		CompletedSessions:     totals.Completed,
		AbandonedSessions:     totals.Abandoned,
		StepFunnel:            make(map[entity.OnboardingStep]int64, len(funnel)),
		PopularChallengeTypes: popular,
	}
	if totals.AverageCompletionSeconds != nil {
		metrics.AverageCompletionSeconds = *totals.AverageCompletionSeconds
	}
	for _, row := range funnel {
		metrics.StepFunnel[entity.OnboardingStep(row.StepName)] = row.Count
	}
	if metrics.PopularChallengeTypes == nil {
		metrics.PopularChallengeTypes = []entity.ChallengeTypeCount{}
	}

	return metrics, nil
}

// --- Mapper Functions ---

// toOnboardingSessionDomain decodes the stored draft and rejects documents that
// no longer validate, so a bad row never reaches callers half-parsed.
func toOnboardingSessionDomain(data *model.OnboardingSessionModel) (*entity.OnboardingSession, error) {
	draft := entity.NewChallengeDraft()
	if data.ChallengeDraft != "" {
		draft = entity.ChallengeDraft{}
		if err := json.Unmarshal([]byte(data.ChallengeDraft), &draft); err != nil {
			return nil, errors.Wrapf(repository.ErrInvalidStoredDraft, "session %s: %v", data.ID, err)
		}
		// Drafts written before versioning carry no schemaVersion.
		if draft.SchemaVersion == 0 {
			draft.SchemaVersion = entity.DraftSchemaVersion
		}
	}
	if err := draft.Validate(); err != nil {
		return nil, errors.Wrapf(repository.ErrInvalidStoredDraft, "session %s: %v", data.ID, err)
	}

	steps := make([]entity.OnboardingStep, 0, len(data.StepsCompleted))
	for _, s := range data.StepsCompleted {
		steps = append(steps, entity.OnboardingStep(s))
	}

	messages := data.AIMessages
	if messages == nil {
		messages = []entity.AIMessage{}
	}

	return &entity.OnboardingSession{
		ID:               data.ID,
		UserID:           data.UserID,
		CurrentStep:      entity.OnboardingStep(data.CurrentStep),
		StepsCompleted:   steps,
		ChallengeDraft:   draft,
		AIMessages:       messages,
		AIConversationID: data.AIConversationID,
		StartedAt:        data.StartedAt,
		CompletedAt:      data.CompletedAt,
		AbandonedAt:      data.AbandonedAt,
		CreatedAt:        data.CreatedAt,
		UpdatedAt:        data.UpdatedAt,
	}, nil
}

func fromOnboardingSessionDomain(data *entity.OnboardingSession) (*model.OnboardingSessionModel, error) {
	if err := data.ChallengeDraft.Validate(); err != nil {
		return nil, domainerrors.NewValidationError(err.Error())
	}

	draft, err := json.Marshal(data.ChallengeDraft)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode challenge draft")
	}

	steps := make([]string, 0, len(data.StepsCompleted))
	for _, s := range data.StepsCompleted {
		steps = append(steps, string(s))
	}

	messages := data.AIMessages
	if messages == nil {
		messages = []entity.AIMessage{}
	}

	return &model.OnboardingSessionModel{
		ID:               data.ID,
		UserID:           data.UserID,
		CurrentStep:      string(data.CurrentStep),
		StepsCompleted:   steps,
		ChallengeDraft:   string(draft),
		AIMessages:       messages,
		AIConversationID: data.AIConversationID,
		StartedAt:        data.StartedAt,
		CompletedAt:      data.CompletedAt,
		AbandonedAt:      data.AbandonedAt,
		CreatedAt:        data.CreatedAt,
		UpdatedAt:        data.UpdatedAt,
	}, nil
}
