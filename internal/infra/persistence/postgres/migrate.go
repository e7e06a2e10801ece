package postgres

import (
	"context"
	"log/slog"

	"showup/config"
	"showup/internal/errors"
	"showup/internal/infra/persistence/model"

	"gorm.io/gorm"
)

// schemaStatements run after AutoMigrate. GORM cannot express partial indexes
// or the uuid default function, so they are created here.
var schemaStatements = []string{
	`CREATE OR REPLACE FUNCTION uuid_generate_v7() RETURNS uuid AS $$
	DECLARE
		ts bytea = substring(int8send(floor(extract(epoch FROM clock_timestamp()) * 1000)::bigint) FROM 3);
		b bytea = gen_random_bytes(10);
	BEGIN
		b = set_byte(b, 0, (get_byte(b, 0) & 15) | 112);
		b = set_byte(b, 2, (get_byte(b, 2) & 63) | 128);
		RETURN encode(ts || b, 'hex')::uuid;
	END
	$$ LANGUAGE plpgsql VOLATILE`,
	`CREATE UNIQUE INDEX IF NOT EXISTS onboarding_sessions_active_user_key
		ON onboarding_sessions (user_id)
		WHERE completed_at IS NULL AND abandoned_at IS NULL`,
	`DROP INDEX IF EXISTS settlements_pending_idx`,
	`CREATE INDEX IF NOT EXISTS settlements_unfinished_idx
		ON settlements (updated_at)
		WHERE status IN ('needs_reconciliation', 'processing')`,
}

// Migrate creates the schema when database.autoMigrate is enabled.
func Migrate(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *slog.Logger) error {
	if !cfg.Database.AutoMigrate {
		return nil
	}

	tx := db.WithContext(ctx)

	if err := tx.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		return errors.Wrap(err, "failed to enable pgcrypto")
	}
	if err := tx.Exec(schemaStatements[0]).Error; err != nil {
		return errors.Wrap(err, "failed to create uuid_generate_v7")
	}

	if err := tx.AutoMigrate(
		&model.UserModel{},
		&model.AuthSessionModel{},
		&model.OnboardingSessionModel{},
		&model.AIConversationModel{},
		&model.AnalyticsEventModel{},
		&model.ChallengeModel{},
		&model.SettlementModel{},
		&model.UserDeviceModel{},
		&model.WaitlistEntryModel{},
	); err != nil {
		return errors.Wrap(err, "failed to migrate tables")
	}

	for _, stmt := range schemaStatements[1:] {
		if err := tx.Exec(stmt).Error; err != nil {
			return errors.Wrap(err, "failed to create index")
		}
	}

	logger.InfoContext(ctx, "Database schema migrated")

	return nil
}
