// Package service provides the gateway operations behind the JSON endpoint.
package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-gateway/internal/config"
	"github.com/prn-tf/alexander-gateway/internal/domain"
	"github.com/prn-tf/alexander-gateway/internal/repository"
)

// ObjectStore is the part of the object store client the gateway uses.
type ObjectStore interface {
	Configured() bool
	CreateBucket(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]byte, error)
	ObjectURL(bucket, key string) string
}

// Observer receives operation outcomes, typically for metrics.
type Observer interface {
	ObserveOperation(action, outcome string)
	ObserveUpload(bytes int64)
	ObserveQuotaRejection()
}

// Gateway actions.
const (
	ActionCreateBucket = "create-bucket"
	ActionCheckQuota   = "check-quota"
	ActionUpload       = "upload"
	ActionList         = "list"
)

// GatewayService runs the four gateway operations for an authenticated user.
type GatewayService struct {
	store    ObjectStore
	quotas   repository.QuotaRepository
	files    repository.FileRepository
	cache    repository.Cache
	observer Observer

	quotaMode      string
	defaultTotalMB float64
	quotaCacheTTL  time.Duration

	keys       repository.CacheKey
	now        func() time.Time
	bucketName func(uuid.UUID) string
	logger     zerolog.Logger
}

// GatewayServiceConfig contains the dependencies of a GatewayService.
// Cache and Observer are optional.
type GatewayServiceConfig struct {
	Store    ObjectStore
	Quotas   repository.QuotaRepository
	Files    repository.FileRepository
	Cache    repository.Cache
	Observer Observer

	// QuotaMode is config.QuotaModeAtomic (default) or config.QuotaModeCheckThenUpdate.
	QuotaMode string

	// DefaultTotalMB is the ceiling of a newly created quota row.
	DefaultTotalMB float64

	// QuotaCacheTTL bounds how long check-quota may serve a cached row.
	QuotaCacheTTL time.Duration

	Logger zerolog.Logger
}

// NewGatewayService creates a new GatewayService.
func NewGatewayService(cfg GatewayServiceConfig) *GatewayService {
	s := &GatewayService{
		store:          cfg.Store,
		quotas:         cfg.Quotas,
		files:          cfg.Files,
		cache:          cfg.Cache,
		observer:       cfg.Observer,
		quotaMode:      cfg.QuotaMode,
		defaultTotalMB: cfg.DefaultTotalMB,
		quotaCacheTTL:  cfg.QuotaCacheTTL,
		now:            time.Now,
		bucketName:     domain.BucketNameForUser,
		logger:         cfg.Logger.With().Str("service", "gateway").Logger(),
	}
	if s.quotaMode == "" {
		s.quotaMode = config.QuotaModeAtomic
	}
	if s.defaultTotalMB <= 0 {
		s.defaultTotalMB = domain.DefaultTotalQuotaMB
	}
	if s.quotaMode == config.QuotaModeCheckThenUpdate {
		s.logger.Warn().Msg("quota mode check-then-update: concurrent uploads by one user can exceed the quota")
	}
	return s
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// CreateBucketInput contains the data needed to create the user's bucket.
type CreateBucketInput struct {
	UserID uuid.UUID
}

// CreateBucketOutput contains the result of creating a bucket.
type CreateBucketOutput struct {
	BucketName string
}

// CheckQuotaInput contains the data needed to read a quota.
type CheckQuotaInput struct {
	UserID uuid.UUID
}

// CheckQuotaOutput contains the user's quota.
type CheckQuotaOutput struct {
	Quota *domain.StorageQuota
}

// UploadInput contains the data needed to upload a file.
type UploadInput struct {
	UserID     uuid.UUID
	FileData   string // base64
	FileName   string
	FileType   string
	BucketPath string
}

// UploadOutput contains the result of an upload.
type UploadOutput struct {
	URL       string
	Path      string
	FileName  string
	FileType  string
	Size      int64
	QuotaUsed float64
}

// ListInput contains the data needed to list the user's bucket.
type ListInput struct {
	UserID     uuid.UUID
	BucketPath string
}

// ListOutput contains the provider's raw XML listing.
type ListOutput struct {
	Files string
}

// =============================================================================
// Service Methods
// =============================================================================

// CreateBucket creates user-<id>-storage and ensures the user's quota row exists.
// A bucket that already exists is not an error.
func (s *GatewayService) CreateBucket(ctx context.Context, input CreateBucketInput) (out *CreateBucketOutput, err error) {
	defer func() { s.observe(ActionCreateBucket, err) }()

	if !s.store.Configured() {
		return nil, domain.ErrConfiguration
	}

	bucket := s.bucketName(input.UserID)
	if err := domain.ValidateBucketName(bucket); err != nil {
		return nil, domain.WrapError(domain.ErrValidation, err, "invalid bucket name "+bucket)
	}
	if err := s.store.CreateBucket(ctx, bucket); err != nil {
		s.logger.Error().Err(err).Str("bucket", bucket).Msg("failed to create bucket")
		return nil, err
	}

	quota := domain.NewStorageQuota(input.UserID, bucket, s.defaultTotalMB)
	if err := s.quotas.Upsert(ctx, quota); err != nil {
		s.logger.Error().Err(err).Str("user_id", input.UserID.String()).Msg("failed to upsert quota")
		return nil, domain.WrapError(domain.ErrMetadataPersistence, err, "failed to save quota")
	}
	s.invalidateQuota(ctx, input.UserID)

	s.logger.Info().
		Str("user_id", input.UserID.String()).
		Str("bucket", bucket).
		Float64("total_mb", quota.TotalQuotaMB).
		Float64("used_mb", quota.UsedStorageMB).
		Msg("bucket ready")

	return &CreateBucketOutput{BucketName: bucket}, nil
}

// CheckQuota returns the user's quota, or the default quota when none exists yet.
// It never writes to the database.
func (s *GatewayService) CheckQuota(ctx context.Context, input CheckQuotaInput) (out *CheckQuotaOutput, err error) {
	defer func() { s.observe(ActionCheckQuota, err) }()

	if !s.store.Configured() {
		return nil, domain.ErrConfiguration
	}

	if quota, ok := s.cachedQuota(ctx, input.UserID); ok {
		return &CheckQuotaOutput{Quota: quota}, nil
	}

	quota, err := s.currentQuota(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	s.cacheQuota(ctx, quota)

	return &CheckQuotaOutput{Quota: quota}, nil
}

// Upload decodes the file, enforces the quota and stores the object.
// Quota is enforced before any object store call.
func (s *GatewayService) Upload(ctx context.Context, input UploadInput) (out *UploadOutput, err error) {
	defer func() { s.observe(ActionUpload, err) }()

	if !s.store.Configured() {
		return nil, domain.ErrConfiguration
	}

	if input.FileData == "" || input.FileName == "" {
		return nil, ErrMissingUploadFields
	}
	if strings.Contains(input.FileName, "/") {
		return nil, ErrInvalidFileName
	}

	data, err := decodeFileData(input.FileData)
	if err != nil {
		return nil, ErrInvalidFileData
	}

	size := int64(len(data))
	sizeMB := domain.BytesToMB(size)
	now := s.now()
	bucket := s.bucketName(input.UserID)
	key := domain.ObjectKey(now, input.BucketPath, input.FileName)

	logger := s.logger.With().
		Str("user_id", input.UserID.String()).
		Str("key", key).
		Int64("size", size).
		Logger()

	var usedMB float64
	switch s.quotaMode {
	case config.QuotaModeCheckThenUpdate:
		usedMB, err = s.uploadCheckThenUpdate(ctx, input, bucket, key, data, sizeMB, now)
	default:
		usedMB, err = s.uploadAtomic(ctx, input, bucket, key, data, sizeMB, now)
	}
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			if s.observer != nil {
				s.observer.ObserveQuotaRejection()
			}
			logger.Info().Err(err).Msg("upload rejected")
		} else {
			logger.Error().Err(err).Msg("upload failed")
		}
		return nil, err
	}
	s.invalidateQuota(ctx, input.UserID)

	if s.observer != nil {
		s.observer.ObserveUpload(size)
	}
	logger.Info().Float64("used_mb", usedMB).Msg("file uploaded")

	return &UploadOutput{
		URL:       s.store.ObjectURL(bucket, key),
		Path:      key,
		FileName:  domain.TimestampedFileName(now, input.FileName),
		FileType:  input.FileType,
		Size:      size,
		QuotaUsed: usedMB,
	}, nil
}

// uploadAtomic reserves the quota with one conditional update before the PUT
// and gives the reservation back if the PUT fails.
func (s *GatewayService) uploadAtomic(ctx context.Context, input UploadInput, bucket, key string, data []byte, sizeMB float64, now time.Time) (float64, error) {
	quota, err := s.quotas.Reserve(ctx, input.UserID, bucket, sizeMB, s.defaultTotalMB)
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to reserve quota: %w", err)
	}

	if err := s.store.PutObject(ctx, bucket, key, data, input.FileType); err != nil {
		// The caller may be gone; the release must still happen.
		if relErr := s.quotas.Release(context.WithoutCancel(ctx), input.UserID, sizeMB); relErr != nil {
			s.logger.Error().Err(relErr).
				Str("user_id", input.UserID.String()).
				Float64("delta_mb", sizeMB).
				Msg("failed to release quota reservation")
		}
		return 0, err
	}

	if err := s.recordFile(ctx, input, bucket, key, int64(len(data)), now); err != nil {
		// The reservation stays, so cached usage is stale.
		s.invalidateQuota(ctx, input.UserID)
		return 0, err
	}

	return quota.UsedStorageMB, nil
}

// uploadCheckThenUpdate reads the quota, uploads, then writes the new absolute usage.
// Two concurrent uploads can both pass the check.
func (s *GatewayService) uploadCheckThenUpdate(ctx context.Context, input UploadInput, bucket, key string, data []byte, sizeMB float64, now time.Time) (float64, error) {
	quota, err := s.currentQuota(ctx, input.UserID)
	if err != nil {
		return 0, err
	}
	if err := quota.CheckUpload(sizeMB); err != nil {
		return 0, err
	}

	if err := s.store.PutObject(ctx, bucket, key, data, input.FileType); err != nil {
		return 0, err
	}

	if err := s.recordFile(ctx, input, bucket, key, int64(len(data)), now); err != nil {
		return 0, err
	}

	quota.BucketName = bucket
	quota.UsedStorageMB += sizeMB
	if err := s.quotas.SaveUsage(ctx, quota); err != nil {
		return 0, domain.WrapError(domain.ErrMetadataPersistence, err, "failed to update quota")
	}

	return quota.UsedStorageMB, nil
}

func (s *GatewayService) recordFile(ctx context.Context, input UploadInput, bucket, key string, size int64, now time.Time) error {
	record := domain.NewFileRecord(
		input.UserID,
		domain.TimestampedFileName(now, input.FileName),
		s.store.ObjectURL(bucket, key),
		input.FileType,
		size,
		key,
	)
	if err := s.files.Create(ctx, record); err != nil {
		// The object is already stored and stays there without a metadata row.
		return domain.WrapError(domain.ErrMetadataPersistence, err, "failed to save file metadata")
	}
	return nil
}

// List returns the raw XML listing of the user's bucket, optionally under a prefix.
func (s *GatewayService) List(ctx context.Context, input ListInput) (out *ListOutput, err error) {
	defer func() { s.observe(ActionList, err) }()

	if !s.store.Configured() {
		return nil, domain.ErrConfiguration
	}

	bucket := s.bucketName(input.UserID)
	prefix := strings.TrimLeft(input.BucketPath, "/")

	body, err := s.store.ListObjects(ctx, bucket, prefix)
	if err != nil {
		s.logger.Error().Err(err).Str("bucket", bucket).Msg("failed to list files")
		return nil, err
	}

	return &ListOutput{Files: string(body)}, nil
}

// =============================================================================
// Helpers
// =============================================================================

// decodeFileData accepts plain base64 or a data URL.
func decodeFileData(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if _, payload, ok := strings.Cut(s, ";base64,"); ok {
			s = payload
		}
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

// currentQuota reads the quota row, falling back to the default when none exists.
func (s *GatewayService) currentQuota(ctx context.Context, userID uuid.UUID) (*domain.StorageQuota, error) {
	quota, err := s.quotas.GetByUserID(ctx, userID)
	if errors.Is(err, domain.ErrQuotaNotFound) {
		return domain.DefaultQuota(userID, s.defaultTotalMB), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read quota: %w", err)
	}
	return quota, nil
}

func (s *GatewayService) cachedQuota(ctx context.Context, userID uuid.UUID) (*domain.StorageQuota, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, err := s.cache.Get(ctx, s.keys.Quota(userID))
	if err != nil {
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn().Err(err).Msg("quota cache read failed")
		}
		return nil, false
	}

	var quota domain.StorageQuota
	if err := json.Unmarshal(raw, &quota); err != nil {
		s.logger.Warn().Err(err).Msg("discarding malformed cached quota")
		return nil, false
	}
	return &quota, true
}

func (s *GatewayService) cacheQuota(ctx context.Context, quota *domain.StorageQuota) {
	if s.cache == nil || s.quotaCacheTTL <= 0 {
		return
	}

	raw, err := json.Marshal(quota)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.keys.Quota(quota.UserID), raw, s.quotaCacheTTL); err != nil {
		s.logger.Warn().Err(err).Msg("quota cache write failed")
	}
}

func (s *GatewayService) invalidateQuota(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(context.WithoutCancel(ctx), s.keys.Quota(userID)); err != nil {
		s.logger.Warn().Err(err).Msg("quota cache invalidation failed")
	}
}

func (s *GatewayService) observe(action string, err error) {
	if s.observer != nil {
		s.observer.ObserveOperation(action, Outcome(err))
	}
}
