package postgres

import (
	"context"
	"time"

	"showup/internal/domain/entity"
	domainerrors "showup/internal/domain/errors"
	"showup/internal/domain/repository"
	"showup/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type challengeRepository struct {
	db *gorm.DB
}

// NewChallengeRepository is the constructor for challengeRepository.
func NewChallengeRepository(db *gorm.DB) repository.ChallengeRepository {
	return &challengeRepository{db: db}
}

func (repo *challengeRepository) Create(ctx context.Context, challenge *entity.Challenge) error {
	challengeM := fromChallengeDomain(challenge)

	if err := repo.db.WithContext(ctx).Create(challengeM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to create challenge")
	}

	challenge.ID = challengeM.ID
	challenge.CreatedAt = challengeM.CreatedAt
	challenge.UpdatedAt = challengeM.UpdatedAt

	return nil
}

func (repo *challengeRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Challenge, error) {
	var challengeM model.ChallengeModel

	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&challengeM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrChallengeNotFound
		}

		return nil, errors.Wrap(err, "failed to find challenge")
	}

	return toChallengeDomain(&challengeM), nil
}

func (repo *challengeRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*entity.Challenge, error) {
	var challengeModels []*model.ChallengeModel

	if err := repo.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&challengeModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find challenges by user")
	}

	challenges := make([]*entity.Challenge, 0, len(challengeModels))
	for _, challengeM := range challengeModels {
		challenges = append(challenges, toChallengeDomain(challengeM))
	}

	return challenges, nil
}

// MarkPaymentPending only touches challenges that have not reached a settlement outcome.
func (repo *challengeRepository) MarkPaymentPending(ctx context.Context, id uuid.UUID, paymentSessionID string) error {
	result := repo.db.WithContext(ctx).
		Model(&model.ChallengeModel{}).
		Where("id = ? AND status IN ?", id, []string{
			string(entity.ChallengeStatusPending),
			string(entity.ChallengeStatusPaymentPending),
		}).
		Updates(map[string]any{
			"status":             string(entity.ChallengeStatusPaymentPending),
			"payment_session_id": paymentSessionID,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to mark challenge payment pending")
	}
	if result.RowsAffected == 0 {
		return repository.ErrChallengeNotFound
	}

	return nil
}

func (repo *challengeRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.ChallengeStatus, onChainID, txHash string) error {
	updates := map[string]any{
		"status":     string(status),
		"updated_at": time.Now(),
	}
	if onChainID != "" {
		updates["on_chain_id"] = onChainID
	}
	if txHash != "" {
		updates["tx_hash"] = txHash
	}

	result := repo.db.WithContext(ctx).
		Model(&model.ChallengeModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update challenge status")
	}
	if result.RowsAffected == 0 {
		return repository.ErrChallengeNotFound
	}

	return nil
}

// --- Mapper Functions ---

func toChallengeDomain(data *model.ChallengeModel) *entity.Challenge {
	if data == nil {
		return nil
	}

	return &entity.Challenge{
		ID:                   data.ID,
		Code:                 data.ChallengeCode,
		UserID:               data.UserID,
		UserEmail:            data.UserEmail,
		Title:                data.Title,
		Description:          data.Description,
		DurationDays:         data.DurationDays,
		Amount:               data.AmountUSD,
		Guarantors:           data.Guarantors,
		Type:                 entity.ChallengeType(data.ChallengeType),
		ResolutionMethod:     data.ResolutionMethod,
		Frequency:            entity.FrequencyType(data.Frequency),
		FrequencyDetails:     data.FrequencyDetails,
		NotificationSettings: data.NotificationSettings,
		DepositRecipient:     entity.DepositRecipient(data.DepositRecipient),
		LinkedFriendEmail:    deref(data.LinkedFriendEmail),
		AISuggested:          data.AISuggested,
		AIConversationID:     data.AIConversationID,
		OnboardingSessionID:  data.OnboardingSessionID,
		Status:               entity.ChallengeStatus(data.Status),
		PaymentSessionID:     deref(data.PaymentSessionID),
		OnChainID:            deref(data.OnChainID),
		TxHash:               deref(data.TxHash),
		CreatedAt:            data.CreatedAt,
		UpdatedAt:            data.UpdatedAt,
	}
}

func fromChallengeDomain(data *entity.Challenge) *model.ChallengeModel {
	if data == nil {
		return nil
	}

	guarantors := data.Guarantors
	if guarantors == nil {
		guarantors = []string{}
	}

	return &model.ChallengeModel{
		ID:                   data.ID,
		ChallengeCode:        data.Code,
		UserID:               data.UserID,
		UserEmail:            data.UserEmail,
		Title:                data.Title,
		Description:          data.Description,
		DurationDays:         data.DurationDays,
		AmountUSD:            data.Amount,
		Guarantors:           guarantors,
		ChallengeType:        string(data.Type),
		ResolutionMethod:     data.ResolutionMethod,
		Frequency:            string(data.Frequency),
		FrequencyDetails:     data.FrequencyDetails,
		NotificationSettings: data.NotificationSettings,
		DepositRecipient:     string(data.DepositRecipient),
		LinkedFriendEmail:    nullable(data.LinkedFriendEmail),
		AISuggested:          data.AISuggested,
		AIConversationID:     data.AIConversationID,
		OnboardingSessionID:  data.OnboardingSessionID,
		Status:               string(data.Status),
		PaymentSessionID:     nullable(data.PaymentSessionID),
		OnChainID:            nullable(data.OnChainID),
		TxHash:               nullable(data.TxHash),
		CreatedAt:            data.CreatedAt,
		UpdatedAt:            data.UpdatedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
