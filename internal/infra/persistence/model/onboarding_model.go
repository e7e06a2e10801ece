package model

import (
	"time"

	"showup/internal/domain/entity"

	"github.com/google/uuid"
)

// OnboardingSessionModel mirrors the 'onboarding_sessions' table. A partial
// unique index on user_id keeps one active session per user.
type OnboardingSessionModel struct {
	ID               uuid.UUID          `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	UserID           uuid.UUID          `gorm:"type:uuid;not null;index"`
	CurrentStep      string             `gorm:"type:varchar(32);not null;default:'terms'"`
	StepsCompleted   []string           `gorm:"type:jsonb;serializer:json;not null"`
	ChallengeDraft   string             `gorm:"type:jsonb;not null"` // decoded and validated on read
	AIMessages       []entity.AIMessage `gorm:"type:jsonb;serializer:json;not null"`
	AIConversationID *uuid.UUID         `gorm:"type:uuid"`
	StartedAt        time.Time          `gorm:"not null"`
	CompletedAt      *time.Time
	AbandonedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName explicitly sets the table name for GORM.
func (OnboardingSessionModel) TableName() string {
	return "onboarding_sessions"
}

// AIConversationModel mirrors the 'ai_conversations' table.
type AIConversationModel struct {
	ID                  uuid.UUID                   `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	UserID              uuid.UUID                   `gorm:"type:uuid;not null;index"`
	OnboardingSessionID *uuid.UUID                  `gorm:"type:uuid;index"`
	Messages            []entity.AIMessage          `gorm:"type:jsonb;serializer:json;not null"`
	SuggestedChallenges []entity.SuggestedChallenge `gorm:"type:jsonb;serializer:json;not null"`
	SelectedChallenge   *entity.SuggestedChallenge  `gorm:"type:jsonb;serializer:json"`
	ModelUsed           string                      `gorm:"type:varchar(100)"`
	TotalTokensUsed     int                         `gorm:"not null;default:0"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TableName explicitly sets the table name for GORM.
func (AIConversationModel) TableName() string {
	return "ai_conversations"
}

// AnalyticsEventModel mirrors the insert-only 'onboarding_analytics' table.
type AnalyticsEventModel struct {
	ID               uuid.UUID      `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	SessionID        uuid.UUID      `gorm:"type:uuid;not null;index"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index"`
	EventType        string         `gorm:"type:varchar(50);not null;index"`
	StepName         *string        `gorm:"type:varchar(32)"`
	EventData        map[string]any `gorm:"type:jsonb;serializer:json;not null"`
	TimeSpentSeconds *int
	CreatedAt        time.Time
}

// TableName explicitly sets the table name for GORM.
func (AnalyticsEventModel) TableName() string {
	return "onboarding_analytics"
}
