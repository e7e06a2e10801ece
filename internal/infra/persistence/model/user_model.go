package model

import (
	"time"

	"github.com/google/uuid"
)

// UserModel mirrors the 'users' table. PostgreSQL generates UUIDs via uuid_generate_v7().
type UserModel struct {
	ID                    uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	Email                 string    `gorm:"type:varchar(255);uniqueIndex:users_email_key;not null"`
	Username              *string   `gorm:"type:varchar(50);uniqueIndex:users_username_key"`
	PasswordHash          string    `gorm:"type:varchar(255);not null"`
	FullName              string    `gorm:"type:varchar(255)"`
	WalletAddress         *string   `gorm:"type:varchar(42)"`
	EmailVerified         bool      `gorm:"not null;default:false"`
	IsActive              bool      `gorm:"not null;default:true"`
	TermsAcceptedAt       *time.Time
	TermsVersion          string `gorm:"type:varchar(20)"`
	OnboardingCompletedAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time

	AuthSessions []AuthSessionModel `gorm:"foreignKey:UserID"`
}

// TableName explicitly sets the table name for GORM.
func (UserModel) TableName() string {
	return "users"
}

// AuthSessionModel mirrors the 'auth_sessions' table.
type AuthSessionModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	UserID           uuid.UUID `gorm:"type:uuid;not null;index"`
	RefreshTokenHash string    `gorm:"type:char(64);uniqueIndex;not null"`
	ExpiresAt        time.Time `gorm:"not null;index"`
	UserAgent        string    `gorm:"type:text"`
	IPAddress        string    `gorm:"type:varchar(64)"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName explicitly sets the table name for GORM.
func (AuthSessionModel) TableName() string {
	return "auth_sessions"
}
