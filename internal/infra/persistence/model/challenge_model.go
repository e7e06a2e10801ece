package model

import (
	"time"

	"showup/internal/domain/entity"

	"github.com/google/uuid"
)

// ChallengeModel mirrors the 'challenges' table.
type ChallengeModel struct {
	ID                   uuid.UUID                   `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	ChallengeCode        string                      `gorm:"type:varchar(64);uniqueIndex;not null"`
	UserID               uuid.UUID                   `gorm:"type:uuid;not null;index"`
	UserEmail            string                      `gorm:"type:varchar(255);not null"`
	Title                string                      `gorm:"type:varchar(255);not null"`
	Description          string                      `gorm:"type:text;not null"`
	DurationDays         int                         `gorm:"not null"`
	AmountUSD            float64                     `gorm:"type:numeric(12,2);not null"`
	Guarantors           []string                    `gorm:"type:jsonb;serializer:json;not null"`
	ChallengeType        string                      `gorm:"type:varchar(32)"`
	ResolutionMethod     string                      `gorm:"type:text"`
	Frequency            string                      `gorm:"type:varchar(32)"`
	FrequencyDetails     entity.FrequencyDetails     `gorm:"type:jsonb;serializer:json"`
	NotificationSettings entity.NotificationSettings `gorm:"type:jsonb;serializer:json"`
	DepositRecipient     string                      `gorm:"type:varchar(16)"`
	LinkedFriendEmail    *string                     `gorm:"type:varchar(255)"`
	AISuggested          bool                        `gorm:"not null;default:false"`
	AIConversationID     *uuid.UUID                  `gorm:"type:uuid"`
	OnboardingSessionID  *uuid.UUID                  `gorm:"type:uuid"`
	Status               string                      `gorm:"type:varchar(32);not null;default:'pending';index"`
	PaymentSessionID     *string                     `gorm:"type:varchar(255)"`
	OnChainID            *string                     `gorm:"type:varchar(66)"`
	TxHash               *string                     `gorm:"type:varchar(66)"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// TableName explicitly sets the table name for GORM.
func (ChallengeModel) TableName() string {
	return "challenges"
}

// SettlementModel mirrors the 'settlements' table. provider_session_id is the
// dedupe key for payment notifications.
type SettlementModel struct {
	ID                uuid.UUID         `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	ProviderSessionID string            `gorm:"type:varchar(255);uniqueIndex;not null"`
	PaymentIntentID   string            `gorm:"type:varchar(255)"`
	ChallengeID       *uuid.UUID        `gorm:"type:uuid;index"`
	Status            string            `gorm:"type:varchar(32);not null;index"`
	Attempts          int               `gorm:"not null;default:0"`
	AmountUSD         float64           `gorm:"type:numeric(12,2);not null"`
	CustomerEmail     string            `gorm:"type:varchar(255)"`
	Metadata          map[string]string `gorm:"type:jsonb;serializer:json;not null"`
	TestMode          bool              `gorm:"not null;default:false"`
	OnChainID         string            `gorm:"type:varchar(66)"`
	TxHash            string            `gorm:"type:varchar(66)"`
	RawTx             string            `gorm:"type:text"`
	BlockNumber       uint64
	LastError         string `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName explicitly sets the table name for GORM.
func (SettlementModel) TableName() string {
	return "settlements"
}
