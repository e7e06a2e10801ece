package service

import (
	"context"

	"showup/internal/domain/entity"
)

// ResponseGenerator produces the assistant's reply during challenge discovery.
// Implementations must be stateless: everything they know comes from the transcript.
type ResponseGenerator interface {
	// Generate returns the reply text and optionally one suggestion.
	Generate(ctx context.Context, transcript []entity.AIMessage, latest string) (string, *entity.SuggestedChallenge, error)

	// Model names the backend, recorded on the conversation.
	Model() string
}
