package usecase

import (
	"context"

	"showup/internal/domain/entity"

	"github.com/google/uuid"
)

// SendMessageInput is one user turn of the discovery chat.
type SendMessageInput struct {
	UserID         uuid.UUID
	SessionID      uuid.UUID
	ConversationID *uuid.UUID // Nil starts a new conversation.
	Message        string
}

// SendMessageOutput is the assistant's reply.
type SendMessageOutput struct {
	ConversationID      uuid.UUID
	Message             entity.AIMessage
	SuggestedChallenges []entity.SuggestedChallenge
}

// SelectSuggestionInput picks a suggestion as the challenge draft.
type SelectSuggestionInput struct {
	UserID         uuid.UUID
	SessionID      uuid.UUID
	ConversationID uuid.UUID
	Suggestion     entity.SuggestedChallenge
}

// DiscoveryUsecase manages the challenge discovery conversation.
type DiscoveryUsecase interface {
	SendMessage(ctx context.Context, input *SendMessageInput) (*SendMessageOutput, error)
	SelectSuggestion(ctx context.Context, input *SelectSuggestionInput) (*entity.OnboardingSession, error)
	GetConversation(ctx context.Context, conversationID, userID uuid.UUID) (*entity.AIConversation, error)
}
