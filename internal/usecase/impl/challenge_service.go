package impl

import (
	"context"
	"log/slog"

	deliverycontext "showup/internal/delivery/context"
	"showup/internal/domain/entity"
	domainerrors "showup/internal/domain/errors"
	"showup/internal/domain/repository"
	"showup/internal/domain/service"
	"showup/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type challengeService struct {
	txManager repository.TransactionManager
	qrService service.QRCodeService
	logger    *slog.Logger
}

// NewChallengeService is the constructor for challengeService.
func NewChallengeService(txManager repository.TransactionManager, qrService service.QRCodeService, logger *slog.Logger) usecase.ChallengeUsecase {
	return &challengeService{
		txManager: txManager,
		qrService: qrService,
		logger:    logger,
	}
}

func (srv *challengeService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *challengeService) ListMine(ctx context.Context, userID uuid.UUID) ([]*entity.Challenge, error) {
	var challenges []*entity.Challenge
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var err error
		challenges, err = repoFactory.NewChallengeRepository().FindByUser(ctx, userID)

		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list challenges")
	}

	return challenges, nil
}

// Get returns the challenge when it belongs to userID; anything else is not found.
func (srv *challengeService) Get(ctx context.Context, challengeID, userID uuid.UUID) (*entity.Challenge, error) {
	var challenge *entity.Challenge
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		found, err := repoFactory.NewChallengeRepository().FindByID(ctx, challengeID)
		if err != nil {
			if errors.Is(err, repository.ErrChallengeNotFound) {
				return domainerrors.ErrChallengeNotFound
			}

			return errors.Wrap(err, "failed to find challenge")
		}
		if found.UserID != userID {
			return domainerrors.ErrChallengeNotFound
		}
		challenge = found

		return nil
	})
	if err != nil {
		return nil, err
	}

	return challenge, nil
}

// InviteQR renders the guarantor invite link of an owned challenge.
func (srv *challengeService) InviteQR(ctx context.Context, challengeID, userID uuid.UUID) (*usecase.InviteQR, error) {
	challenge, err := srv.Get(ctx, challengeID, userID)
	if err != nil {
		return nil, err
	}

	png, err := srv.qrService.GenerateGuarantorInviteQR(challenge.ID)
	if err != nil {
		srv.log(ctx).Error("Failed to render invite QR", slog.Any("challenge_id", challenge.ID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to generate invite QR code")
	}

	return &usecase.InviteQR{
		URL: srv.qrService.InviteURL(challenge.ID),
		PNG: png,
	}, nil
}
