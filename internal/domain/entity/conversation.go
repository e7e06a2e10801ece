package entity

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// MessageRole is the author of a transcript message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// SuggestedChallenge is a structured proposal produced during discovery.
type SuggestedChallenge struct {
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	Type               ChallengeType `json:"type"`
	SuggestedFrequency FrequencyType `json:"suggestedFrequency"`
	SuggestedDuration  int           `json:"suggestedDuration"`
	SuggestedDeposit   float64       `json:"suggestedDeposit"`
	Reasoning          string        `json:"reasoning"`
}

// AIMessage is one immutable entry of a discovery transcript.
type AIMessage struct {
	ID                 string              `json:"id"`
	Role               MessageRole         `json:"role"`
	Content            string              `json:"content"`
	Timestamp          time.Time           `json:"timestamp"`
	SuggestedChallenge *SuggestedChallenge `json:"suggestedChallenge,omitempty"`
}

// NewAIMessage builds a message with a msg_<unix-millis>_<random> id.
func NewAIMessage(role MessageRole, content string, now time.Time) AIMessage {
	return AIMessage{
		ID:        "msg_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + strconv.FormatUint(rand.Uint64()>>28, 36),
		Role:      role,
		Content:   content,
		Timestamp: now,
	}
}

// AIConversation is the append-only discovery chat between a user and the assistant.
type AIConversation struct {
	ID                  uuid.UUID
	UserID              uuid.UUID
	OnboardingSessionID *uuid.UUID
	Messages            []AIMessage
	SuggestedChallenges []SuggestedChallenge
	SelectedChallenge   *SuggestedChallenge // At most one; a new selection overwrites.
	ModelUsed           string
	TotalTokensUsed     int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewAIConversation starts an empty conversation.
func NewAIConversation(userID uuid.UUID, sessionID *uuid.UUID, model string, now time.Time) *AIConversation {
	return &AIConversation{
		ID:                  uuid.New(),
		UserID:              userID,
		OnboardingSessionID: sessionID,
		Messages:            []AIMessage{},
		SuggestedChallenges: []SuggestedChallenge{},
		ModelUsed:           model,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Append adds a message to the end of the transcript.
func (c *AIConversation) Append(msg AIMessage) {
	c.Messages = append(c.Messages, msg)
	if msg.SuggestedChallenge != nil {
		c.SuggestedChallenges = append(c.SuggestedChallenges, *msg.SuggestedChallenge)
	}
}
