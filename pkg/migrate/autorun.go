package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/mealbox-backend/pkg/config"
	"github.com/angelmondragon/mealbox-backend/pkg/db"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot in dev when
// MEALBOX_AUTO_MIGRATE is set. Other environments migrate through cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if cfg.DB.Driver == "sqlite" {
		logg.Warn(ctx, "skipping auto migrate on sqlite")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "source": "embedded"})
	if err := Run(ctx, sqlDB, Embedded(), "up", logg); err != nil {
		return fmt.Errorf("dev auto migrate: %w", err)
	}
	logg.Info(ctx, "dev auto migrate complete")
	return nil
}
