package impl

import (
	"context"
	"log/slog"
	"strings"
	"time"

	deliverycontext "showup/internal/delivery/context"
	"showup/internal/domain/entity"
	domainerrors "showup/internal/domain/errors"
	"showup/internal/domain/repository"
	"showup/internal/domain/service"
	"showup/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// welcomeMessage opens every conversation, whatever the first user message says.
const welcomeMessage = `Welcome! I'm here to help you discover a challenge that will make a real difference in your life.

The most powerful challenges are often the simple ones - things we know we should do but struggle to stay consistent with. Things like maintaining a skincare routine, drinking enough water, or going for a daily walk.

What's something you've been meaning to do more consistently? Or is there a habit you'd like to build?`

// welcomeTranscriptLength is the transcript size, counting the new message, up to which the welcome is sent.
const welcomeTranscriptLength = 2

type discoveryService struct {
	txManager repository.TransactionManager
	generator service.ResponseGenerator
	logger    *slog.Logger
	now       func() time.Time
}

// NewDiscoveryService is the constructor for discoveryService.
func NewDiscoveryService(txManager repository.TransactionManager, generator service.ResponseGenerator, logger *slog.Logger) usecase.DiscoveryUsecase {
	return &discoveryService{
		txManager: txManager,
		generator: generator,
		logger:    logger,
		now:       time.Now,
	}
}

func (srv *discoveryService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func loadOwnedConversation(ctx context.Context, conversations repository.ConversationRepository, conversationID, userID uuid.UUID) (*entity.AIConversation, error) {
	conversation, err := conversations.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			return nil, domainerrors.ErrConversationNotFound
		}

		return nil, errors.Wrap(err, "failed to find conversation")
	}
	if conversation.UserID != userID {
		return nil, domainerrors.ErrConversationNotFound
	}

	return conversation, nil
}

// SendMessage appends the user's message, produces the assistant reply and
// persists both. The reply is generated outside of any transaction.
func (srv *discoveryService) SendMessage(ctx context.Context, input *usecase.SendMessageInput) (*usecase.SendMessageOutput, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, domainerrors.NewValidationError("Message is required")
	}

	var conversation *entity.AIConversation
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		session, err := loadOwnedSession(ctx, repoFactory.NewOnboardingRepository(), input.SessionID, input.UserID)
		if err != nil {
			return err
		}
		if !session.IsActive() {
			return domainerrors.NewValidationError("Onboarding session is no longer active")
		}

		if input.ConversationID == nil {
			return nil
		}
		conversation, err = loadOwnedConversation(ctx, repoFactory.NewConversationRepository(), *input.ConversationID, input.UserID)

		return err
	})
	if err != nil {
		return nil, err
	}

	isNew := conversation == nil
	if isNew {
		sessionID := input.SessionID
		conversation = entity.NewAIConversation(input.UserID, &sessionID, srv.generator.Model(), srv.now())
	}

	conversation.Append(entity.NewAIMessage(entity.RoleUser, input.Message, srv.now()))

	reply, suggestion, err := srv.reply(ctx, conversation.Messages, message)
	if err != nil {
		return nil, err
	}

	assistant := entity.NewAIMessage(entity.RoleAssistant, reply, srv.now())
	if suggestion != nil {
		assistant.SuggestedChallenge = suggestion
	}
	conversation.Append(assistant)
	conversation.ModelUsed = srv.generator.Model()

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		tx := newSessionTx(ctx, repoFactory, srv.now())
		conversations := repoFactory.NewConversationRepository()

		conversation.UpdatedAt = tx.now
		if isNew {
			if err := conversations.Create(ctx, conversation); err != nil {
				return errors.Wrap(err, "failed to create conversation")
			}
		} else if err := conversations.Update(ctx, conversation); err != nil {
			return errors.Wrap(err, "failed to update conversation")
		}

		session, err := loadOwnedSession(ctx, tx.sessions, input.SessionID, input.UserID)
		if err != nil {
			return err
		}
		tx.session = session

		if err := tx.record(entity.EventAIMessageSent, entity.StepAIChat, map[string]any{"messageLength": len(input.Message)}, nil); err != nil {
			return err
		}

		session.AIMessages = conversation.Messages
		session.AIConversationID = &conversation.ID
		session.UpdatedAt = tx.now
		if err := tx.sessions.Update(ctx, session); err != nil {
			return errors.Wrap(err, "failed to mirror transcript on onboarding session")
		}

		received := map[string]any{"hasSuggestion": suggestion != nil}
		if suggestion != nil {
			received["suggestionTitle"] = suggestion.Title
		}

		return tx.record(entity.EventAIMessageReceived, entity.StepAIChat, received, nil)
	})
	if err != nil {
		srv.log(ctx).Error("Failed to persist discovery message", slog.Any("conversation_id", conversation.ID), slog.Any("error", err))

		return nil, err
	}

	return &usecase.SendMessageOutput{
		ConversationID:      conversation.ID,
		Message:             assistant,
		SuggestedChallenges: conversation.SuggestedChallenges,
	}, nil
}

func (srv *discoveryService) reply(ctx context.Context, transcript []entity.AIMessage, latest string) (string, *entity.SuggestedChallenge, error) {
	if len(transcript) <= welcomeTranscriptLength {
		return welcomeMessage, nil, nil
	}

	text, suggestion, err := srv.generator.Generate(ctx, transcript, latest)
	if err != nil {
		srv.log(ctx).Error("Response generation failed", slog.String("model", srv.generator.Model()), slog.Any("error", err))

		return "", nil, errors.Wrap(err, "failed to generate discovery response")
	}

	return text, suggestion, nil
}

// SelectSuggestion copies the suggestion into the draft and completes the ai-chat step.
func (srv *discoveryService) SelectSuggestion(ctx context.Context, input *usecase.SelectSuggestionInput) (*entity.OnboardingSession, error) {
	suggestion := input.Suggestion
	if strings.TrimSpace(suggestion.Title) == "" {
		return nil, domainerrors.NewValidationError("Conversation ID and selected challenge are required")
	}
	if suggestion.Type != "" && !suggestion.Type.IsValid() {
		return nil, domainerrors.NewValidationError("invalid challenge type " + string(suggestion.Type))
	}
	if suggestion.SuggestedFrequency != "" && !suggestion.SuggestedFrequency.IsValid() {
		return nil, domainerrors.NewValidationError("invalid frequency " + string(suggestion.SuggestedFrequency))
	}

	var result *entity.OnboardingSession
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		tx := newSessionTx(ctx, repoFactory, srv.now())
		conversations := repoFactory.NewConversationRepository()

		conversation, err := loadOwnedConversation(ctx, conversations, input.ConversationID, input.UserID)
		if err != nil {
			return err
		}
		session, err := loadOwnedSession(ctx, tx.sessions, input.SessionID, input.UserID)
		if err != nil {
			return err
		}
		if !session.IsActive() {
			return domainerrors.NewValidationError("Onboarding session is no longer active")
		}
		tx.session = session

		conversation.SelectedChallenge = &suggestion
		conversation.UpdatedAt = tx.now
		if err := conversations.Update(ctx, conversation); err != nil {
			return errors.Wrap(err, "failed to record selected challenge")
		}

		session.ChallengeDraft.ApplySuggestion(suggestion, conversation.ID.String())
		session.AIConversationID = &conversation.ID
		tx.dirty = true

		if _, err := applyComplete(tx, entity.StepAIChat); err != nil {
			return err
		}

		session.UpdatedAt = tx.now
		if err := tx.sessions.Update(ctx, session); err != nil {
			return errors.Wrap(err, "failed to update onboarding session")
		}

		result = session

		return tx.record(entity.EventChallengeSelected, entity.StepAIChat, map[string]any{
			"challengeTitle": suggestion.Title,
			"challengeType":  string(suggestion.Type),
		}, nil)
	})
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Info("Suggested challenge selected", slog.Any("session_id", input.SessionID), slog.String("title", suggestion.Title))

	return result, nil
}

func (srv *discoveryService) GetConversation(ctx context.Context, conversationID, userID uuid.UUID) (*entity.AIConversation, error) {
	var conversation *entity.AIConversation
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var err error
		conversation, err = loadOwnedConversation(ctx, repoFactory.NewConversationRepository(), conversationID, userID)

		return err
	})
	if err != nil {
		return nil, err
	}

	return conversation, nil
}
