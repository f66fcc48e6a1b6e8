package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prn-tf/alexander-gateway/internal/domain"
	"github.com/prn-tf/alexander-gateway/internal/repository"
)

const quotaColumns = `user_id, bucket_name, total_quota_mb, used_storage_mb, created_at, updated_at`

// quotaRepository implements repository.QuotaRepository for SQLite.
type quotaRepository struct {
	db *DB
}

// NewQuotaRepository creates a new SQLite quota repository.
func NewQuotaRepository(db *DB) repository.QuotaRepository {
	return &quotaRepository{db: db}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanQuota scans a row selected with quotaColumns.
func scanQuota(row rowScanner) (*domain.StorageQuota, error) {
	var (
		userID               string
		createdAt, updatedAt string
		quota                domain.StorageQuota
	)

	if err := row.Scan(
		&userID,
		&quota.BucketName,
		&quota.TotalQuotaMB,
		&quota.UsedStorageMB,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if quota.UserID, err = parseUUID(userID); err != nil {
		return nil, err
	}
	if quota.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if quota.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &quota, nil
}

// GetByUserID retrieves the quota of a user.
func (r *quotaRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.StorageQuota, error) {
	query := `SELECT ` + quotaColumns + ` FROM user_storage_quotas WHERE user_id = ?`

	quota, err := scanQuota(r.db.QueryRowContext(ctx, query, userID.String()))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrQuotaNotFound
		}
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}

	return quota, nil
}

// Upsert inserts the row or refreshes bucket_name. Usage is never reset.
func (r *quotaRepository) Upsert(ctx context.Context, quota *domain.StorageQuota) error {
	query := `
		INSERT INTO user_storage_quotas (user_id, bucket_name, total_quota_mb, used_storage_mb, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET bucket_name = excluded.bucket_name,
		    updated_at = excluded.updated_at
		RETURNING ` + quotaColumns

	now := formatTime(time.Now())
	stored, err := scanQuota(r.db.QueryRowContext(ctx, query,
		quota.UserID.String(),
		quota.BucketName,
		quota.TotalQuotaMB,
		quota.UsedStorageMB,
		now,
		now,
	))
	if err != nil {
		return fmt.Errorf("failed to upsert quota: %w", err)
	}

	*quota = *stored
	return nil
}

// SaveUsage writes an absolute used_storage_mb.
func (r *quotaRepository) SaveUsage(ctx context.Context, quota *domain.StorageQuota) error {
	query := `
		INSERT INTO user_storage_quotas (user_id, bucket_name, total_quota_mb, used_storage_mb, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET used_storage_mb = excluded.used_storage_mb,
		    updated_at = excluded.updated_at
	`

	now := formatTime(time.Now())
	_, err := r.db.ExecContext(ctx, query,
		quota.UserID.String(),
		quota.BucketName,
		quota.TotalQuotaMB,
		quota.UsedStorageMB,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save quota usage: %w", err)
	}

	return nil
}

// Reserve adds deltaMB with a single conditional UPDATE.
func (r *quotaRepository) Reserve(ctx context.Context, userID uuid.UUID, bucketName string, deltaMB, defaultTotalMB float64) (*domain.StorageQuota, error) {
	now := formatTime(time.Now())

	ensure := `
		INSERT INTO user_storage_quotas (user_id, bucket_name, total_quota_mb, used_storage_mb, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, ensure, userID.String(), bucketName, defaultTotalMB, now, now); err != nil {
		return nil, fmt.Errorf("failed to ensure quota row: %w", err)
	}

	reserve := `
		UPDATE user_storage_quotas
		SET used_storage_mb = used_storage_mb + ?,
		    updated_at = ?
		WHERE user_id = ?
		  AND used_storage_mb + ? <= total_quota_mb
		RETURNING ` + quotaColumns

	quota, err := scanQuota(r.db.QueryRowContext(ctx, reserve, deltaMB, now, userID.String(), deltaMB))
	if err == nil {
		return quota, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("failed to reserve quota: %w", err)
	}

	current, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return nil, current.CheckUpload(deltaMB)
}

// Release gives back a reservation.
func (r *quotaRepository) Release(ctx context.Context, userID uuid.UUID, deltaMB float64) error {
	query := `
		UPDATE user_storage_quotas
		SET used_storage_mb = MAX(used_storage_mb - ?, 0),
		    updated_at = ?
		WHERE user_id = ?
	`

	result, err := r.db.ExecContext(ctx, query, deltaMB, formatTime(time.Now()), userID.String())
	if err != nil {
		return fmt.Errorf("failed to release quota: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrQuotaNotFound
	}

	return nil
}

// SetTotal sets total_quota_mb, inserting the row if needed.
func (r *quotaRepository) SetTotal(ctx context.Context, userID uuid.UUID, bucketName string, totalMB float64) (*domain.StorageQuota, error) {
	query := `
		INSERT INTO user_storage_quotas (user_id, bucket_name, total_quota_mb, used_storage_mb, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET total_quota_mb = excluded.total_quota_mb,
		    updated_at = excluded.updated_at
		RETURNING ` + quotaColumns

	now := formatTime(time.Now())
	quota, err := scanQuota(r.db.QueryRowContext(ctx, query, userID.String(), bucketName, totalMB, now, now))
	if err != nil {
		return nil, fmt.Errorf("failed to set quota total: %w", err)
	}

	return quota, nil
}

// Ensure quotaRepository implements repository.QuotaRepository
var _ repository.QuotaRepository = (*quotaRepository)(nil)
