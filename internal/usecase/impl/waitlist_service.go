package impl

import (
	"context"
	"log/slog"
	"strings"
	"time"

	deliverycontext "showup/internal/delivery/context"
	"showup/internal/domain/entity"
	"showup/internal/domain/repository"
	"showup/internal/domain/service"
	"showup/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type waitlistService struct {
	waitlistRepo repository.WaitlistRepository
	policy       service.CredentialPolicy
	logger       *slog.Logger
}

// NewWaitlistService is the constructor for waitlistService.
func NewWaitlistService(waitlistRepo repository.WaitlistRepository, policy service.CredentialPolicy, logger *slog.Logger) usecase.WaitlistUsecase {
	return &waitlistService{
		waitlistRepo: waitlistRepo,
		policy:       policy,
		logger:       logger,
	}
}

func (srv *waitlistService) Join(ctx context.Context, input *usecase.JoinWaitlistInput) error {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := srv.policy.ValidateEmail(email); err != nil {
		return err
	}

	entry := &entity.WaitlistEntry{
		ID:        uuid.New(),
		Email:     email,
		Name:      strings.TrimSpace(input.Name),
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		CreatedAt: time.Now(),
	}

	logger := deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
	if err := srv.waitlistRepo.Create(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrWaitlistDuplicate) {
			logger.Info("Email already on waitlist")

			return nil
		}

		return errors.Wrap(err, "failed to join waitlist")
	}

	logger.Info("Waitlist signup recorded", slog.Any("entry_id", entry.ID))

	return nil
}
