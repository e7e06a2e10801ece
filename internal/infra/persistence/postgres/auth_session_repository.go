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

type authSessionRepository struct {
	db *gorm.DB
}

// NewAuthSessionRepository is the constructor for authSessionRepository.
func NewAuthSessionRepository(db *gorm.DB) repository.AuthSessionRepository {
	return &authSessionRepository{db: db}
}

func (repo *authSessionRepository) Create(ctx context.Context, session *entity.AuthSession) error {
	sessionM := fromAuthSessionDomain(session)

	if err := repo.db.WithContext(ctx).Create(sessionM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to create auth session")
	}

	session.ID = sessionM.ID
	session.CreatedAt = sessionM.CreatedAt
	session.UpdatedAt = sessionM.UpdatedAt

	return nil
}

func (repo *authSessionRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*entity.AuthSession, error) {
	var sessionM model.AuthSessionModel

	if err := repo.db.WithContext(ctx).
		Where("refresh_token_hash = ?", tokenHash).
		First(&sessionM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrAuthSessionNotFound
		}

		return nil, errors.Wrap(err, "failed to find auth session")
	}

	return toAuthSessionDomain(&sessionM), nil
}

// Rotate overwrites the token hash in place; the old token stops matching immediately.
func (repo *authSessionRepository) Rotate(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	result := repo.db.WithContext(ctx).
		Model(&model.AuthSessionModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"refresh_token_hash": tokenHash,
			"expires_at":         expiresAt,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to rotate auth session")
	}
	if result.RowsAffected == 0 {
		return repository.ErrAuthSessionNotFound
	}

	return nil
}

func (repo *authSessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	if err := repo.db.WithContext(ctx).
		Where("refresh_token_hash = ?", tokenHash).
		Delete(&model.AuthSessionModel{}).Error; err != nil {
		return errors.Wrap(err, "failed to delete auth session")
	}

	return nil
}

func (repo *authSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&model.AuthSessionModel{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete expired auth sessions")
	}

	return result.RowsAffected, nil
}

// --- Mapper Functions ---

func toAuthSessionDomain(data *model.AuthSessionModel) *entity.AuthSession {
	if data == nil {
		return nil
	}

	return &entity.AuthSession{
		ID:               data.ID,
		UserID:           data.UserID,
		RefreshTokenHash: data.RefreshTokenHash,
		ExpiresAt:        data.ExpiresAt,
		UserAgent:        data.UserAgent,
		IPAddress:        data.IPAddress,
		CreatedAt:        data.CreatedAt,
		UpdatedAt:        data.UpdatedAt,
	}
}

func fromAuthSessionDomain(data *entity.AuthSession) *model.AuthSessionModel {
	if data == nil {
		return nil
	}

	return &model.AuthSessionModel{
		ID:               data.ID,
		UserID:           data.UserID,
		RefreshTokenHash: data.RefreshTokenHash,
		ExpiresAt:        data.ExpiresAt,
		UserAgent:        data.UserAgent,
		IPAddress:        data.IPAddress,
		CreatedAt:        data.CreatedAt,
		UpdatedAt:        data.UpdatedAt,
	}
}
