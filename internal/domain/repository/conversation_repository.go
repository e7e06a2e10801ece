package repository

import (
	"context"

	"showup/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrConversationNotFound is returned when a conversation is not found.
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository persists discovery conversations. Conversations are never deleted.
type ConversationRepository interface {
	Create(ctx context.Context, conversation *entity.AIConversation) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.AIConversation, error)

	// Update writes the transcript, suggestion list, selection and token usage.
	Update(ctx context.Context, conversation *entity.AIConversation) error
}
