// Package repository defines data access interfaces for Alexander Gateway.
// These interfaces abstract database operations, allowing for different implementations
// (PostgreSQL, SQLite, mocks in tests) while keeping the service layer clean.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/prn-tf/alexander-gateway/internal/domain"
)

// =============================================================================
// Quota Repository
// =============================================================================

// QuotaRepository defines the interface for storage quota data access.
type QuotaRepository interface {
	// GetByUserID retrieves the quota of a user.
	// Returns domain.ErrQuotaNotFound if the user has no row yet.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.StorageQuota, error)

	// Upsert inserts the quota row or refreshes its bucket name.
	// An existing row keeps its used_storage_mb and total_quota_mb.
	// The stored row is written back into quota.
	Upsert(ctx context.Context, quota *domain.StorageQuota) error

	// SaveUsage writes an absolute used_storage_mb, inserting the row if needed.
	// This is the unguarded write of check-then-update mode.
	SaveUsage(ctx context.Context, quota *domain.StorageQuota) error

	// Reserve atomically adds deltaMB to used_storage_mb if the result stays within
	// total_quota_mb, creating the row with defaultTotalMB first if it does not exist.
	// Returns the updated row, or domain.ErrQuotaExceeded (wrapped in a
	// *domain.QuotaExceededError) when the reservation does not fit.
	Reserve(ctx context.Context, userID uuid.UUID, bucketName string, deltaMB, defaultTotalMB float64) (*domain.StorageQuota, error)

	// Release subtracts deltaMB from used_storage_mb, never going below zero.
	Release(ctx context.Context, userID uuid.UUID, deltaMB float64) error

	// SetTotal sets total_quota_mb, inserting the row if needed.
	SetTotal(ctx context.Context, userID uuid.UUID, bucketName string, totalMB float64) (*domain.StorageQuota, error)
}

// =============================================================================
// File Repository
// =============================================================================

// FileRepository defines the interface for uploaded file metadata.
type FileRepository interface {
	// Create inserts a metadata row. Rows are never updated afterward.
	Create(ctx context.Context, file *domain.FileRecord) error

	// ListByUserID returns a user's files, newest first.
	ListByUserID(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]*domain.FileRecord, error)

	// SumSizeByUserID returns the total bytes recorded for a user.
	// Used by the admin tool to reconcile used_storage_mb.
	SumSizeByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
}

// =============================================================================
// Common Types
// =============================================================================

// ListOptions contains common pagination options.
type ListOptions struct {
	// Offset is the number of records to skip.
	Offset int

	// Limit is the maximum number of records to return.
	Limit int
}

// DefaultListLimit is applied when ListOptions.Limit is zero.
const DefaultListLimit = 100

// Normalize fills defaults and clamps negative values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
