package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/alexander-gateway/internal/domain"
	"github.com/prn-tf/alexander-gateway/internal/repository"
)

const quotaColumns = `user_id, bucket_name, total_quota_mb, used_storage_mb, created_at, updated_at`

// quotaRepository implements repository.QuotaRepository.
type quotaRepository struct {
	q Querier
}

// NewQuotaRepository creates a new PostgreSQL quota repository.
func NewQuotaRepository(db *DB) repository.QuotaRepository {
	return &quotaRepository{q: db.Pool}
}

// scanQuota scans a row selected with quotaColumns.
func scanQuota(row pgx.Row, quota *domain.StorageQuota) error {
	return row.Scan(
		&quota.UserID,
		&quota.BucketName,
		&quota.TotalQuotaMB,
		&quota.UsedStorageMB,
		&quota.CreatedAt,
		&quota.UpdatedAt,
	)
}

// GetByUserID retrieves the quota of a user.
func (r *quotaRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.StorageQuota, error) {
	query := `SELECT ` + quotaColumns + ` FROM user_storage_quotas WHERE user_id = $1`

	quota := &domain.StorageQuota{}
	if err := scanQuota(r.q.QueryRow(ctx, query, userID), quota); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET bucket_name = EXCLUDED.bucket_name,
		    updated_at = EXCLUDED.updated_at
		RETURNING ` + quotaColumns

	err := scanQuota(r.q.QueryRow(ctx, query,
		quota.UserID,
		quota.BucketName,
		quota.TotalQuotaMB,
		quota.UsedStorageMB,
		time.Now().UTC(),
	), quota)
	if err != nil {
		return fmt.Errorf("failed to upsert quota: %w", err)
	}

	return nil
}

// SaveUsage writes an absolute used_storage_mb.
func (r *quotaRepository) SaveUsage(ctx context.Context, quota *domain.StorageQuota) error {
	query := `
		INSERT INTO user_storage_quotas (user_id, bucket_name, total_quota_mb, used_storage_mb, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET used_storage_mb = EXCLUDED.used_storage_mb,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.Exec(ctx, query,
		quota.UserID,
		quota.BucketName,
		quota.TotalQuotaMB,
		quota.UsedStorageMB,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save quota usage: %w", err)
	}

	return nil
}

// Reserve adds deltaMB in a single conditional UPDATE so concurrent uploads
// cannot both pass against the same stale usage.
func (r *quotaRepository) Reserve(ctx context.Context, userID uuid.UUID, bucketName string, deltaMB, defaultTotalMB float64) (*domain.StorageQuota, error) {
	now := time.Now().UTC()

	ensure := `
		INSERT INTO user_storage_quotas (user_id, bucket_name, total_quota_mb, used_storage_mb, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $4)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.q.Exec(ctx, ensure, userID, bucketName, defaultTotalMB, now); err != nil {
		return nil, fmt.Errorf("failed to ensure quota row: %w", err)
	}

	reserve := `
		UPDATE user_storage_quotas
		SET used_storage_mb = used_storage_mb + $2,
		    updated_at = $3
		WHERE user_id = $1
		  AND used_storage_mb + $2 <= total_quota_mb
		RETURNING ` + quotaColumns

	quota := &domain.StorageQuota{}
	err := scanQuota(r.q.QueryRow(ctx, reserve, userID, deltaMB, now), quota)
	if err == nil {
		return quota, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to reserve quota: %w", err)
	}

	current, getErr := r.GetByUserID(ctx, userID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, current.CheckUpload(deltaMB)
}

// Release gives back a reservation.
func (r *quotaRepository) Release(ctx context.Context, userID uuid.UUID, deltaMB float64) error {
	query := `
		UPDATE user_storage_quotas
		SET used_storage_mb = GREATEST(used_storage_mb - $2, 0),
		    updated_at = $3
		WHERE user_id = $1
	`

	result, err := r.q.Exec(ctx, query, userID, deltaMB, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to release quota: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrQuotaNotFound
	}

	return nil
}

// SetTotal sets total_quota_mb, inserting the row if needed.
func (r *quotaRepository) SetTotal(ctx context.Context, userID uuid.UUID, bucketName string, totalMB float64) (*domain.StorageQuota, error) {
	query := `
		INSERT INTO user_storage_quotas (user_id, bucket_name, total_quota_mb, used_storage_mb, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET total_quota_mb = EXCLUDED.total_quota_mb,
		    updated_at = EXCLUDED.updated_at
		RETURNING ` + quotaColumns

	quota := &domain.StorageQuota{}
	if err := scanQuota(r.q.QueryRow(ctx, query, userID, bucketName, totalMB, time.Now().UTC()), quota); err != nil {
		return nil, fmt.Errorf("failed to set quota total: %w", err)
	}

	return quota, nil
}

// Ensure quotaRepository implements repository.QuotaRepository
var _ repository.QuotaRepository = (*quotaRepository)(nil)
