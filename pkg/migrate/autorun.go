package migrate

import (
	"context"
	"fmt"

	"github.com/avelardi/atelia-backend/pkg/config"
	"github.com/avelardi/atelia-backend/pkg/db"
	"github.com/avelardi/atelia-backend/pkg/db/models"
	"github.com/avelardi/atelia-backend/pkg/logger"
)

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// the feature flag is enabled. The sqlite flag switches to gorm auto-migration since
// goose migrations are written for Postgres.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	if cfg.FeatureFlags.UseSQLite {
		logg.Info(ctx, "auto-migrating sqlite schema from models")
		return AutoMigrateModels(client)
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	meta := map[string]any{"env": cfg.App.Env, "dir": DefaultDir}
	ctx = logg.WithFields(ctx, meta)
	logg.Info(ctx, "running Goose migrations (dev auto-run)")

	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}

// AutoMigrateModels creates the settlement schema from the gorm models.
// Used for sqlite-backed development and tests only.
func AutoMigrateModels(client *db.Client) error {
	return client.DB().AutoMigrate(
		&models.Order{},
		&models.FulfillmentConfirmation{},
		&models.Dispute{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.PayoutAttempt{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
		&models.AuditLog{},
		&models.Notification{},
	)
}
