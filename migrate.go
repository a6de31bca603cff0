package main

import (
	"context"
	"fmt"
	"os"

	"gym-checkin/internal/checkin/db"
	"gym-checkin/internal/config"
	"gym-checkin/internal/database/migrations"
	"gym-checkin/internal/logger"

	"github.com/uptrace/bun"
)

// runMigrations applies the SQL migrations. Without a migrations directory
// (local runs from a bare binary) the schema is created from the models.
func runMigrations(ctx context.Context, bunDB *bun.DB, cfg config.DatabaseConfig, log *logger.Logger) error {
	if !cfg.AutoMigrate {
		log.Info("MIGRATE", "AUTO_MIGRATE disabled, leaving schema untouched")
		return nil
	}

	if _, err := os.Stat(cfg.MigrationsDir); os.IsNotExist(err) {
		log.Warn("MIGRATE", fmt.Sprintf("Migrations directory %s not found, creating schema from models", cfg.MigrationsDir))
		return db.CreateSchema(ctx, bunDB)
	}

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		MigrationsDir: cfg.MigrationsDir,
		AutoMigrate:   cfg.AutoMigrate,
	}, log)
	return runner.RunMigrations()
}
