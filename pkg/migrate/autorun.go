package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/backoffice-backend/pkg/config"
	"github.com/angelmondragon/backoffice-backend/pkg/db"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
)

// MaybeRunDev brings a dev database up to date when auto-migrate is enabled.
// The SQL files target Postgres, so sqlite schemas come from the models.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	dialect := Dialect(cfg.DB.Driver)
	if cfg.FeatureFlags.UseSQLite {
		dialect = "sqlite3"
	}
	ctx = logg.WithFields(ctx, map[string]any{"dialect": dialect, "dir": DefaultDir})

	if dialect == "sqlite3" {
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("auto-migrating models: %w", err)
		}
		logg.Info(ctx, "dev schema synced from models")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	if err := Run(ctx, sqlDB, dialect, DefaultDir, "up"); err != nil {
		return err
	}
	logg.Info(ctx, "dev migrations applied")
	return nil
}
