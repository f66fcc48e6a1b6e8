// Package database opens the configured metadata backend.
package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-gateway/internal/config"
	"github.com/prn-tf/alexander-gateway/internal/repository"
	"github.com/prn-tf/alexander-gateway/internal/repository/postgres"
	"github.com/prn-tf/alexander-gateway/internal/repository/sqlite"
)

// Result bundles the repositories with the handles that own their connection.
type Result struct {
	Repos    *repository.Repositories
	Database repository.DatabaseHealth
	Migrator repository.Migrator
}

// Open connects to the database selected by cfg.Driver.
// When cfg.AutoMigrate is set, pending migrations are applied before returning.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Result, error) {
	var res *Result

	switch cfg.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		res = &Result{
			Repos: &repository.Repositories{
				Quota: postgres.NewQuotaRepository(db),
				File:  postgres.NewFileRepository(db),
			},
			Database: db,
			Migrator: db,
		}

	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.ConfigFrom(cfg), logger)
		if err != nil {
			return nil, err
		}
		res = &Result{
			Repos: &repository.Repositories{
				Quota: sqlite.NewQuotaRepository(db),
				File:  sqlite.NewFileRepository(db),
			},
			Database: db,
			Migrator: db,
		}

	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}

	if cfg.AutoMigrate {
		if err := res.Migrator.Migrate(ctx); err != nil {
			_ = res.Database.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return res, nil
}
