package repository

import (
	"context"
)

// Repositories holds all repository instances.
type Repositories struct {
	Quota QuotaRepository
	File  FileRepository
}

// DatabaseHealth is an interface for database health checks.
// This interface satisfies handler.ReadinessChecker for the readiness endpoint.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}

// MigrationStatus describes one embedded migration.
type MigrationStatus struct {
	Version int
	Name    string
	Applied bool
}

// Migrator applies and inspects the embedded schema migrations.
type Migrator interface {
	// Migrate applies all pending up migrations.
	Migrate(ctx context.Context) error

	// Rollback reverts the most recently applied migration.
	Rollback(ctx context.Context) error

	// Version returns the highest applied migration version (0 if none).
	Version(ctx context.Context) (int, error)

	// Status lists every embedded migration and whether it is applied.
	Status(ctx context.Context) ([]MigrationStatus, error)
}
