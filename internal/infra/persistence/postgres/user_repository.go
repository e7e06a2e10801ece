// Package postgres contains the concrete implementation of the persistence layer using GORM and PostgreSQL.
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

const (
	usersEmailConstraint    = "users_email_key"
	usersUsernameConstraint = "users_username_key"
)

// userRepository implements the repository.UserRepository interface using GORM.
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository is the constructor for userRepository.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{db: db}
}

// FindByID retrieves a single user by their unique ID.
func (repo *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var userM model.UserModel

	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&userM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user by id")
	}

	return toUserDomain(&userM), nil
}

// FindByEmail retrieves a single user by their email address.
func (repo *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var userM model.UserModel

	if err := repo.db.WithContext(ctx).Where("email = ?", email).First(&userM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user by email")
	}

	return toUserDomain(&userM), nil
}

// Create persists a new user.
func (repo *userRepository) Create(ctx context.Context, user *entity.User) error {
	userM := fromUserDomain(user)

	if err := repo.db.WithContext(ctx).Create(userM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repo.classifyConflict(ctx, err, user)
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create user")
	}

	user.ID = userM.ID
	user.CreatedAt = userM.CreatedAt
	user.UpdatedAt = userM.UpdatedAt

	return nil
}

// classifyConflict maps a unique violation to the column that caused it.
func (repo *userRepository) classifyConflict(ctx context.Context, err error, user *entity.User) error {
	switch {
	case violatesConstraint(err, usersEmailConstraint):
		return repository.ErrEmailTaken
	case violatesConstraint(err, usersUsernameConstraint):
		return repository.ErrUsernameTaken
	}

	// Translated errors lose the constraint name; look the email up instead.
	// Inside a transaction the failed statement has aborted it, so this runs on a fresh session.
	var count int64
	if lookupErr := repo.db.Session(&gorm.Session{NewDB: true}).WithContext(ctx).
		Model(&model.UserModel{}).
		Where("email = ?", user.Email).
		Count(&count).Error; lookupErr == nil && count == 0 && user.Username != nil {
		return repository.ErrUsernameTaken
	}

	return repository.ErrEmailTaken
}

// StampTermsAccepted sets the terms stamp once.
func (repo *userRepository) StampTermsAccepted(ctx context.Context, id uuid.UUID, version string, at time.Time) (bool, error) {
	result := repo.db.WithContext(ctx).
		Model(&model.UserModel{}).
		Where("id = ? AND terms_accepted_at IS NULL", id).
		Updates(map[string]any{
			"terms_accepted_at": at,
			"terms_version":     version,
			"updated_at":        at,
		})
	if result.Error != nil {
		return false, domainerrors.NewDatabaseExecuteError(result.Error, "failed to stamp terms acceptance")
	}

	return result.RowsAffected > 0, nil
}

// StampOnboardingCompleted sets the onboarding stamp once.
func (repo *userRepository) StampOnboardingCompleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := repo.db.WithContext(ctx).
		Model(&model.UserModel{}).
		Where("id = ? AND onboarding_completed_at IS NULL", id).
		Updates(map[string]any{
			"onboarding_completed_at": at,
			"updated_at":              at,
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to stamp onboarding completion")
	}

	return nil
}

// --- Mapper Functions ---

func toUserDomain(data *model.UserModel) *entity.User {
	if data == nil {
		return nil
	}

	return &entity.User{
		ID:                    data.ID,
		Email:                 data.Email,
		Username:              data.Username,
		PasswordHash:          data.PasswordHash,
		FullName:              data.FullName,
		WalletAddress:         data.WalletAddress,
		EmailVerified:         data.EmailVerified,
		IsActive:              data.IsActive,
		TermsAcceptedAt:       data.TermsAcceptedAt,
		TermsVersion:          data.TermsVersion,
		OnboardingCompletedAt: data.OnboardingCompletedAt,
		CreatedAt:             data.CreatedAt,
		UpdatedAt:             data.UpdatedAt,
	}
}

func fromUserDomain(data *entity.User) *model.UserModel {
	if data == nil {
		return nil
	}

	return &model.UserModel{
		ID:                    data.ID,
		Email:                 data.Email,
		Username:              data.Username,
		PasswordHash:          data.PasswordHash,
		FullName:              data.FullName,
		WalletAddress:         data.WalletAddress,
		EmailVerified:         data.EmailVerified,
		IsActive:              data.IsActive,
		TermsAcceptedAt:       data.TermsAcceptedAt,
		TermsVersion:          data.TermsVersion,
		OnboardingCompletedAt: data.OnboardingCompletedAt,
		CreatedAt:             data.CreatedAt,
		UpdatedAt:             data.UpdatedAt,
	}
}
