package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/alexander-gateway/internal/repository"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// Migrate applies all pending migrations, each in its own transaction.
func (db *DB) Migrate(ctx context.Context) error {
	migrations, err := repository.LoadMigrations(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	current, err := db.Version(ctx)
	if err != nil {
		return err
	}

	db.logger.Info().Int("current_version", current).Msg("checking migrations")

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		err := db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return fmt.Errorf("failed to apply migration %d: %w", m.Version, err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		db.logger.Info().Int("version", m.Version).Str("name", m.Name).Msg("applied migration")
	}

	return nil
}

// Rollback reverts the most recently applied migration.
func (db *DB) Rollback(ctx context.Context) error {
	migrations, err := repository.LoadMigrations(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	current, err := db.Version(ctx)
	if err != nil {
		return err
	}
	if current == 0 {
		db.logger.Info().Msg("no migrations to roll back")
		return nil
	}

	var target *repository.Migration
	for i := range migrations {
		if migrations[i].Version == current {
			target = &migrations[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("applied migration %d is not embedded in this binary", current)
	}
	if target.Down == "" {
		return fmt.Errorf("migration %d has no down file", current)
	}

	err = db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, target.Down); err != nil {
			return fmt.Errorf("failed to revert migration %d: %w", target.Version, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, target.Version); err != nil {
			return fmt.Errorf("failed to unrecord migration %d: %w", target.Version, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.logger.Info().Int("version", target.Version).Str("name", target.Name).Msg("rolled back migration")
	return nil
}

// Version returns the highest applied migration version.
func (db *DB) Version(ctx context.Context) (int, error) {
	if _, err := db.Pool.Exec(ctx, createMigrationsTable); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var version int
	err := db.Pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to get current migration version: %w", err)
	}
	return version, nil
}

// Status lists embedded migrations and whether each is applied.
func (db *DB) Status(ctx context.Context) ([]repository.MigrationStatus, error) {
	migrations, err := repository.LoadMigrations(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}

	current, err := db.Version(ctx)
	if err != nil {
		return nil, err
	}

	status := make([]repository.MigrationStatus, 0, len(migrations))
	for _, m := range migrations {
		status = append(status, repository.MigrationStatus{
			Version: m.Version,
			Name:    m.Name,
			Applied: m.Version <= current,
		})
	}
	return status, nil
}

// Ensure DB implements the repository interfaces.
var (
	_ repository.Migrator       = (*DB)(nil)
	_ repository.DatabaseHealth = (*DB)(nil)
)
