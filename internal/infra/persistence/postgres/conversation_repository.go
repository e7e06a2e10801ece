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

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository is the constructor for conversationRepository.
func NewConversationRepository(db *gorm.DB) repository.ConversationRepository {
	return &conversationRepository{db: db}
}

func (repo *conversationRepository) Create(ctx context.Context, conversation *entity.AIConversation) error {
	conversationM := fromConversationDomain(conversation)

	if err := repo.db.WithContext(ctx).Create(conversationM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to create conversation")
	}

	conversation.ID = conversationM.ID
	conversation.CreatedAt = conversationM.CreatedAt
	conversation.UpdatedAt = conversationM.UpdatedAt

	return nil
}

func (repo *conversationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.AIConversation, error) {
	var conversationM model.AIConversationModel

	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&conversationM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrConversationNotFound
		}

		return nil, errors.Wrap(err, "failed to find conversation")
	}

	return toConversationDomain(&conversationM), nil
}

func (repo *conversationRepository) Update(ctx context.Context, conversation *entity.AIConversation) error {
	conversationM := fromConversationDomain(conversation)
	conversationM.UpdatedAt = time.Now()

	result := repo.db.WithContext(ctx).
		Model(&model.AIConversationModel{}).
		Where("id = ?", conversation.ID).
		Select("messages", "suggested_challenges", "selected_challenge", "model_used", "total_tokens_used", "updated_at").
		Updates(conversationM)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update conversation")
	}
	if result.RowsAffected == 0 {
		return repository.ErrConversationNotFound
	}

	conversation.UpdatedAt = conversationM.UpdatedAt

	return nil
}

// --- Mapper Functions ---

func toConversationDomain(data *model.AIConversationModel) *entity.AIConversation {
	if data == nil {
		return nil
	}

	c := &entity.AIConversation{
		ID:                  data.ID,
		UserID:              data.UserID,
		OnboardingSessionID: data.OnboardingSessionID,
		Messages:            data.Messages,
		SuggestedChallenges: data.SuggestedChallenges,
		SelectedChallenge:   data.SelectedChallenge,
		ModelUsed:           data.ModelUsed,
		TotalTokensUsed:     data.TotalTokensUsed,
		CreatedAt:           data.CreatedAt,
		UpdatedAt:           data.UpdatedAt,
	}
	if c.Messages == nil {
		c.Messages = []entity.AIMessage{}
	}
	if c.SuggestedChallenges == nil {
		c.SuggestedChallenges = []entity.SuggestedChallenge{}
	}

	return c
}

func fromConversationDomain(data *entity.AIConversation) *model.AIConversationModel {
	if data == nil {
		return nil
	}

	m := &model.AIConversationModel{
		ID:                  data.ID,
		UserID:              data.UserID,
		OnboardingSessionID: data.OnboardingSessionID,
		Messages:            data.Messages,
		SuggestedChallenges: data.SuggestedChallenges,
		SelectedChallenge:   data.SelectedChallenge,
		ModelUsed:           data.ModelUsed,
		TotalTokensUsed:     data.TotalTokensUsed,
		CreatedAt:           data.CreatedAt,
		UpdatedAt:           data.UpdatedAt,
	}
	if m.Messages == nil {
		m.Messages = []entity.AIMessage{}
	}
	if m.SuggestedChallenges == nil {
		m.SuggestedChallenges = []entity.SuggestedChallenge{}
	}

	return m
}
