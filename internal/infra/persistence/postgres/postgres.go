package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"showup/config"
	"showup/internal/domain/lifecycle"
	"showup/internal/errors"

	pgLib "github.com/slighter12/go-lib/database/postgres"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const (
	poolWatchInterval = 5 * time.Second
	poolWaitWarnAfter = 50 * time.Millisecond
)

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// New opens the showup database. Multi-statement work (finalize, settlement
// claims and leases) runs through txManager.Execute, so GORM's implicit
// per-statement transaction is turned off.
func New(params Params) (*gorm.DB, error) {
	db, err := pgLib.New(params.Config.Postgres)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create PostgreSQL client")
	}
	db = db.Session(&gorm.Session{
		SkipDefaultTransaction: true,
		Logger:                 newGormSlogLogger(params.Logger, params.Config),
	})

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get PostgreSQL sql.DB")
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	watch := &poolWatch{logger: params.Logger, warnAfter: poolWaitWarnAfter}

	params.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			ctx, cancel := context.WithTimeout(startCtx, lifecycle.DefaultTimeout)
			defer cancel()

			if err := sqlDB.PingContext(ctx); err != nil {
				return errors.Wrap(err, "failed to ping PostgreSQL")
			}

			go watch.run(watchCtx, sqlDB.Stats, poolWatchInterval)

			return nil
		},
		OnStop: func(_ context.Context) error {
			stopWatch()

			return sqlDB.Close()
		},
	})

	return db, nil
}

// poolWatch logs callers that had to wait for a connection. Webhook bursts and
// the settlement sweeper share one pool; waits past warnAfter are warnings.
type poolWatch struct {
	logger    *slog.Logger
	warnAfter time.Duration
	prev      sql.DBStats
}

func (w *poolWatch) run(ctx context.Context, stats func() sql.DBStats, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	w.prev = stats()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.observe(ctx, stats())
		}
	}
}

func (w *poolWatch) observe(ctx context.Context, cur sql.DBStats) {
	waits := cur.WaitCount - w.prev.WaitCount
	waited := cur.WaitDuration - w.prev.WaitDuration
	w.prev = cur
	if waits <= 0 {
		return
	}

	level := slog.LevelDebug
	if waited >= w.warnAfter {
		level = slog.LevelWarn
	}

	w.logger.LogAttrs(ctx, level, "Callers waited for a database connection",
		slog.Int64("waits", waits),
		slog.Duration("waited", waited),
		slog.Duration("avg_wait", waited/time.Duration(waits)),
		slog.Int("in_use", cur.InUse),
		slog.Int("idle", cur.Idle),
		slog.Int("max_open", cur.MaxOpenConnections),
	)
}
