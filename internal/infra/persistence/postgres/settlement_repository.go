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

type settlementRepository struct {
	db *gorm.DB
}

// NewSettlementRepository is the constructor for settlementRepository.
func NewSettlementRepository(db *gorm.DB) repository.SettlementRepository {
	return &settlementRepository{db: db}
}

// Claim relies on the unique provider_session_id: of two concurrent deliveries
// for the same payment, exactly one insert succeeds.
func (repo *settlementRepository) Claim(ctx context.Context, settlement *entity.Settlement) error {
	settlementM := fromSettlementDomain(settlement)

	if err := repo.db.WithContext(ctx).Create(settlementM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrSettlementExists
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to claim settlement")
	}

	settlement.ID = settlementM.ID
	settlement.CreatedAt = settlementM.CreatedAt
	settlement.UpdatedAt = settlementM.UpdatedAt

	return nil
}

func (repo *settlementRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Settlement, error) {
	return repo.findOne(ctx, "id = ?", id)
}

func (repo *settlementRepository) FindByProviderSessionID(ctx context.Context, providerSessionID string) (*entity.Settlement, error) {
	return repo.findOne(ctx, "provider_session_id = ?", providerSessionID)
}

func (repo *settlementRepository) findOne(ctx context.Context, query string, arg any) (*entity.Settlement, error) {
	var settlementM model.SettlementModel

	if err := repo.db.WithContext(ctx).Where(query, arg).First(&settlementM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSettlementNotFound
		}

		return nil, errors.Wrap(err, "failed to find settlement")
	}

	return toSettlementDomain(&settlementM), nil
}

// Acquire is a compare-and-set on (status, attempts): of two workers racing
// for the same settlement, exactly one update matches.
func (repo *settlementRepository) Acquire(ctx context.Context, settlement *entity.Settlement, staleBefore time.Time) (bool, error) {
	now := time.Now()

	result := repo.db.WithContext(ctx).
		Model(&model.SettlementModel{}).
		Where("id = ? AND attempts = ?", settlement.ID, settlement.Attempts).
		Where(repo.db.
			Where("status = ?", string(entity.SettlementStatusNeedsReconciliation)).
			Or("status = ? AND updated_at < ?", string(entity.SettlementStatusProcessing), staleBefore)).
		Updates(map[string]any{
			"status":     string(entity.SettlementStatusProcessing),
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return false, domainerrors.NewDatabaseExecuteError(result.Error, "failed to acquire settlement")
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	settlement.Status = entity.SettlementStatusProcessing
	settlement.Attempts++
	settlement.UpdatedAt = now

	return true, nil
}

func (repo *settlementRepository) Update(ctx context.Context, settlement *entity.Settlement) error {
	now := time.Now()

	result := repo.db.WithContext(ctx).
		Model(&model.SettlementModel{}).
		Where("id = ? AND attempts = ?", settlement.ID, settlement.Attempts).
		Updates(map[string]any{
			"status":       string(settlement.Status),
			"challenge_id": settlement.ChallengeID,
			"on_chain_id":  settlement.OnChainID,
			"tx_hash":      settlement.TxHash,
			"raw_tx":       settlement.RawTx,
			"block_number": settlement.BlockNumber,
			"last_error":   settlement.LastError,
			"updated_at":   now,
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update settlement")
	}
	if result.RowsAffected == 0 {
		return repository.ErrSettlementLeaseLost
	}

	settlement.UpdatedAt = now

	return nil
}

func (repo *settlementRepository) FindPending(ctx context.Context, staleBefore time.Time, limit int) ([]*entity.Settlement, error) {
	var settlementModels []*model.SettlementModel

	if err := repo.db.WithContext(ctx).
		Where("status = ?", string(entity.SettlementStatusNeedsReconciliation)).
		Or("status = ? AND updated_at < ?", string(entity.SettlementStatusProcessing), staleBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&settlementModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find pending settlements")
	}

	settlements := make([]*entity.Settlement, 0, len(settlementModels))
	for _, settlementM := range settlementModels {
		settlements = append(settlements, toSettlementDomain(settlementM))
	}

	return settlements, nil
}

// --- Mapper Functions ---

func toSettlementDomain(data *model.SettlementModel) *entity.Settlement {
	return &entity.Settlement{
		ID:                data.ID,
		ProviderSessionID: data.ProviderSessionID,
		PaymentIntentID:   data.PaymentIntentID,
		ChallengeID:       data.ChallengeID,
		Status:            entity.SettlementStatus(data.Status),
		Attempts:          data.Attempts,
		Amount:            data.AmountUSD,
		CustomerEmail:     data.CustomerEmail,
		Metadata:          data.Metadata,
		TestMode:          data.TestMode,
		OnChainID:         data.OnChainID,
		TxHash:            data.TxHash,
		RawTx:             data.RawTx,
		BlockNumber:       data.BlockNumber,
		LastError:         data.LastError,
		CreatedAt:         data.CreatedAt,
		UpdatedAt:         data.UpdatedAt,
	}
}

func fromSettlementDomain(data *entity.Settlement) *model.SettlementModel {
	metadata := data.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	return &model.SettlementModel{
		ID:                data.ID,
		ProviderSessionID: data.ProviderSessionID,
		PaymentIntentID:   data.PaymentIntentID,
		ChallengeID:       data.ChallengeID,
		Status:            string(data.Status),
		Attempts:          data.Attempts,
		AmountUSD:         data.Amount,
		CustomerEmail:     data.CustomerEmail,
		Metadata:          metadata,
		TestMode:          data.TestMode,
		OnChainID:         data.OnChainID,
		TxHash:            data.TxHash,
		RawTx:             data.RawTx,
		BlockNumber:       data.BlockNumber,
		LastError:         data.LastError,
		CreatedAt:         data.CreatedAt,
		UpdatedAt:         data.UpdatedAt,
	}
}
