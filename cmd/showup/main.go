package main

import (
	"context"
	"log/slog"
	"os"

	"showup/config"
	"showup/internal/delivery"
	"showup/internal/delivery/api"
	"showup/internal/delivery/api/middleware"
	"showup/internal/delivery/api/router/handler"
	"showup/internal/domain/service"
	"showup/internal/infra/auth"
	"showup/internal/infra/discovery"
	"showup/internal/infra/escrow"
	logs "showup/internal/infra/log"
	"showup/internal/infra/notification"
	"showup/internal/infra/payment"
	"showup/internal/infra/persistence/postgres"
	"showup/internal/infra/pubsub"
	"showup/internal/infra/qrcode"
	"showup/internal/usecase/impl"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle
	fx.Shutdowner

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectMiddleware(),
		injectHandler(),
		injectDelivery(),
		fx.Invoke(
			migrate,
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		postgres.New,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			postgres.NewTransactionManager,
			postgres.NewDeviceRepository,
			postgres.NewWaitlistRepository,
		),
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			auth.NewBcryptHasher,
			auth.NewJWTService,
			auth.NewCredentialPolicy,
			discovery.NewResponseGenerator,
			payment.NewStripeProvider,
			escrow.NewEscrowClient,
			pubsub.NewEventPublisher,
			notification.NewPushSender,
			newQRCodeService,
		),
	)
}

// newQRCodeService builds invite QR codes from config, falling back to the app URL.
func newQRCodeService(cfg *config.Config) service.QRCodeService {
	if cfg.QRCode == nil {
		return qrcode.NewQRCodeService(256, "M", cfg.App.BaseURL)
	}

	baseURL := cfg.QRCode.BaseURL
	if baseURL == "" {
		baseURL = cfg.App.BaseURL
	}

	return qrcode.NewQRCodeService(cfg.QRCode.Size, cfg.QRCode.ErrorCorrectionLevel, baseURL)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewAuthService,
			impl.NewOnboardingService,
			impl.NewDiscoveryService,
			impl.NewSettlementService,
			impl.NewChallengeService,
			impl.NewDeviceService,
			impl.NewWaitlistService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			middleware.NewAuthMiddleware,
			middleware.NewErrorMiddleware,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewAuthHandler,
			handler.NewOnboardingHandler,
			handler.NewDiscoveryHandler,
			handler.NewPaymentHandler,
			handler.NewChallengeHandler,
			handler.NewDeviceHandler,
			handler.NewWaitlistHandler,
			handler.NewOpsHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				api.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

// migrate runs after the database hook has verified the connection.
func migrate(lc fx.Lifecycle, cfg *config.Config, db *gorm.DB, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return postgres.Migrate(ctx, cfg, db, logger)
		},
	})
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))

				// Trigger graceful shutdown to execute all OnStop hooks
				if shutdownErr := params.Shutdown(); shutdownErr != nil {
					slog.Error("Failed to shutdown gracefully", slog.Any("error", shutdownErr))
					os.Exit(1)
				}
			}
		}()
	}
}
