package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/prn-tf/alexander-gateway/internal/repository"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate runs database migrations.
func (db *DB) Migrate(ctx context.Context) error {
	migrations, err := repository.LoadMigrations(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	currentVersion, err := db.Version(ctx)
	if err != nil {
		return err
	}

	db.logger.Info().Int("current_version", currentVersion).Str("path", db.path).Msg("checking migrations")

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		err := db.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.Up); err != nil {
				return fmt.Errorf("failed to apply migration %d: %w", m.Version, err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name); err != nil {
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

	currentVersion, err := db.Version(ctx)
	if err != nil {
		return err
	}
	if currentVersion == 0 {
		db.logger.Info().Msg("no migrations to roll back")
		return nil
	}

	for _, m := range migrations {
		if m.Version != currentVersion {
			continue
		}
		if m.Down == "" {
			return fmt.Errorf("migration %d has no down file", m.Version)
		}

		err := db.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.Down); err != nil {
				return fmt.Errorf("failed to revert migration %d: %w", m.Version, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = ?`, m.Version); err != nil {
				return fmt.Errorf("failed to unrecord migration %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		db.logger.Info().Int("version", m.Version).Str("name", m.Name).Msg("rolled back migration")
		return nil
	}

	return fmt.Errorf("applied migration %d is not embedded in this binary", currentVersion)
}

// Version returns the highest applied migration version.
func (db *DB) Version(ctx context.Context) (int, error) {
	_, err := db.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	err = db.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&currentVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to get current migration version: %w", err)
	}

	return currentVersion, nil
}

// Status lists embedded migrations and whether each is applied.
func (db *DB) Status(ctx context.Context) ([]repository.MigrationStatus, error) {
	migrations, err := repository.LoadMigrations(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}

	currentVersion, err := db.Version(ctx)
	if err != nil {
		return nil, err
	}

	status := make([]repository.MigrationStatus, 0, len(migrations))
	for _, m := range migrations {
		status = append(status, repository.MigrationStatus{
			Version: m.Version,
			Name:    m.Name,
			Applied: m.Version <= currentVersion,
		})
	}
	return status, nil
}

// Ensure DB implements the repository interfaces.
var (
	_ repository.Migrator       = (*DB)(nil)
	_ repository.DatabaseHealth = (*DB)(nil)
)
