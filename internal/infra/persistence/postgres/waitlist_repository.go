package postgres

import (
	"context"

	"showup/internal/domain/entity"
	domainerrors "showup/internal/domain/errors"
	"showup/internal/domain/repository"
	"showup/internal/infra/persistence/model"

	"gorm.io/gorm"
)

type waitlistRepository struct {
	db *gorm.DB
}

// NewWaitlistRepository is the constructor for waitlistRepository.
func NewWaitlistRepository(db *gorm.DB) repository.WaitlistRepository {
	return &waitlistRepository{db: db}
}

func (repo *waitlistRepository) Create(ctx context.Context, entry *entity.WaitlistEntry) error {
	entryM := &model.WaitlistEntryModel{
		ID:        entry.ID,
		Email:     entry.Email,
		Name:      entry.Name,
		IPAddress: entry.IPAddress,
		UserAgent: entry.UserAgent,
		CreatedAt: entry.CreatedAt,
	}

	if err := repo.db.WithContext(ctx).Create(entryM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrWaitlistDuplicate
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to join waitlist")
	}

	entry.ID = entryM.ID
	entry.CreatedAt = entryM.CreatedAt

	return nil
}
