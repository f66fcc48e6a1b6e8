package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-gateway/internal/domain"
	"github.com/prn-tf/alexander-gateway/internal/repository"
)

// AdminService backs the alexander-admin quota and file commands.
type AdminService struct {
	quotas         repository.QuotaRepository
	files          repository.FileRepository
	cache          repository.Cache
	defaultTotalMB float64
	keys           repository.CacheKey
	logger         zerolog.Logger
}

// NewAdminService creates a new AdminService. cache may be nil.
func NewAdminService(
	quotas repository.QuotaRepository,
	files repository.FileRepository,
	cache repository.Cache,
	defaultTotalMB float64,
	logger zerolog.Logger,
) *AdminService {
	if defaultTotalMB <= 0 {
		defaultTotalMB = domain.DefaultTotalQuotaMB
	}
	return &AdminService{
		quotas:         quotas,
		files:          files,
		cache:          cache,
		defaultTotalMB: defaultTotalMB,
		logger:         logger.With().Str("service", "admin").Logger(),
	}
}

// GetQuota returns the stored quota, or the default one when the user has no row.
func (s *AdminService) GetQuota(ctx context.Context, userID uuid.UUID) (*domain.StorageQuota, error) {
	quota, err := s.quotas.GetByUserID(ctx, userID)
	if errors.Is(err, domain.ErrQuotaNotFound) {
		return domain.DefaultQuota(userID, s.defaultTotalMB), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read quota: %w", err)
	}
	return quota, nil
}

// SetQuota changes a user's ceiling. Usage is left untouched, so a lowered
// ceiling may sit below current usage; further uploads are then rejected.
func (s *AdminService) SetQuota(ctx context.Context, userID uuid.UUID, totalMB float64) (*domain.StorageQuota, error) {
	if totalMB <= 0 {
		return nil, ErrInvalidQuotaTotal
	}

	quota, err := s.quotas.SetTotal(ctx, userID, domain.BucketNameForUser(userID), totalMB)
	if err != nil {
		return nil, fmt.Errorf("failed to set quota: %w", err)
	}
	s.invalidate(ctx, userID)

	s.logger.Info().
		Str("user_id", userID.String()).
		Float64("total_mb", quota.TotalQuotaMB).
		Float64("used_mb", quota.UsedStorageMB).
		Msg("quota updated")

	return quota, nil
}

// ListFiles returns a user's uploaded files, newest first.
func (s *AdminService) ListFiles(ctx context.Context, userID uuid.UUID, opts repository.ListOptions) ([]*domain.FileRecord, error) {
	files, err := s.files.ListByUserID(ctx, userID, opts.Normalize())
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// ReconcileResult reports the usage before and after a reconcile.
type ReconcileResult struct {
	Quota      *domain.StorageQuota
	PreviousMB float64
	TotalBytes int64
}

// Reconcile recomputes used_storage_mb from the recorded file sizes.
// It repairs drift left by check-then-update races or orphaned reservations.
func (s *AdminService) Reconcile(ctx context.Context, userID uuid.UUID) (*ReconcileResult, error) {
	quota, err := s.GetQuota(ctx, userID)
	if err != nil {
		return nil, err
	}

	total, err := s.files.SumSizeByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum file sizes: %w", err)
	}

	previous := quota.UsedStorageMB
	quota.UsedStorageMB = domain.BytesToMB(total)
	if err := s.quotas.SaveUsage(ctx, quota); err != nil {
		return nil, fmt.Errorf("failed to save usage: %w", err)
	}
	s.invalidate(ctx, userID)

	s.logger.Info().
		Str("user_id", userID.String()).
		Float64("previous_mb", previous).
		Float64("used_mb", quota.UsedStorageMB).
		Msg("quota reconciled")

	return &ReconcileResult{Quota: quota, PreviousMB: previous, TotalBytes: total}, nil
}

func (s *AdminService) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.keys.Quota(userID)); err != nil {
		s.logger.Warn().Err(err).Msg("quota cache invalidation failed")
	}
}
