package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"showup/config"
	"showup/internal/delivery"
	deliverycontext "showup/internal/delivery/context"
	"showup/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

// SweeperParams holds dependencies for the periodic maintenance loop.
type SweeperParams struct {
	fx.In

	Lc           fx.Lifecycle
	Cfg          *config.Config
	Logger       *slog.Logger
	AuthUC       usecase.AuthUsecase
	SettlementUC usecase.SettlementUsecase
}

// sweeper republishes settlements whose reconciliation event was lost and
// purges expired auth sessions.
type sweeper struct {
	logger       *slog.Logger
	interval     time.Duration
	batch        int
	authUC       usecase.AuthUsecase
	settlementUC usecase.SettlementUsecase

	started atomic.Bool
	quit    chan struct{}
	done    chan struct{}
}

func NewSweeper(params SweeperParams) delivery.Delivery {
	s := &sweeper{
		logger:       params.Logger,
		interval:     params.Cfg.Settlement.SweepInterval,
		batch:        params.Cfg.Settlement.SweepBatch,
		authUC:       params.AuthUC,
		settlementUC: params.SettlementUC,
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}

	params.Lc.Append(fx.Hook{
		OnStop: s.stop,
	})

	return s
}

// Serve blocks until the lifecycle stops the loop.
func (s *sweeper) Serve(ctx context.Context) error {
	s.started.Store(true)
	defer close(s.done)

	s.logger.Info("Starting sweeper", slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.quit:
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *sweeper) sweep(ctx context.Context) {
	logger := s.logger.With(slog.String("request_id", uuid.New().String()))
	ctx = deliverycontext.WithLogger(ctx, logger)

	requeued, err := s.settlementUC.RequeuePending(ctx, s.batch)
	if err != nil {
		logger.Error("Failed to requeue pending settlements", slog.Any("error", err))
	} else if requeued > 0 {
		logger.Info("Requeued pending settlements", slog.Int("count", requeued))
	}

	if _, err := s.authUC.CleanupExpiredSessions(ctx); err != nil {
		logger.Error("Failed to purge expired sessions", slog.Any("error", err))
	}
}

func (s *sweeper) stop(ctx context.Context) error {
	close(s.quit)
	if !s.started.Load() {
		return nil
	}

	s.logger.Info("Stopping sweeper")

	select {
	case <-s.done:
	case <-ctx.Done():
	}

	return nil
}
