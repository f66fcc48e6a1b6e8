package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/prn-tf/alexander-gateway/internal/domain"
	"github.com/prn-tf/alexander-gateway/internal/repository"
)

// =============================================================================
// Mock Types
// =============================================================================

type mockObjectStore struct {
	mock.Mock
}

func (m *mockObjectStore) Configured() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *mockObjectStore) CreateBucket(ctx context.Context, bucket string) error {
	args := m.Called(ctx, bucket)
	return args.Error(0)
}

func (m *mockObjectStore) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	args := m.Called(ctx, bucket, key, body, contentType)
	return args.Error(0)
}

func (m *mockObjectStore) ListObjects(ctx context.Context, bucket, prefix string) ([]byte, error) {
	args := m.Called(ctx, bucket, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockObjectStore) ObjectURL(bucket, key string) string {
	return "https://s3.wasabisys.com/" + bucket + "/" + key
}

type mockQuotaRepository struct {
	mock.Mock
}

func (m *mockQuotaRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.StorageQuota, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StorageQuota), args.Error(1)
}

func (m *mockQuotaRepository) Upsert(ctx context.Context, quota *domain.StorageQuota) error {
	args := m.Called(ctx, quota)
	return args.Error(0)
}

func (m *mockQuotaRepository) SaveUsage(ctx context.Context, quota *domain.StorageQuota) error {
	args := m.Called(ctx, quota)
	return args.Error(0)
}

func (m *mockQuotaRepository) Reserve(ctx context.Context, userID uuid.UUID, bucketName string, deltaMB, defaultTotalMB float64) (*domain.StorageQuota, error) {
	args := m.Called(ctx, userID, bucketName, deltaMB, defaultTotalMB)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StorageQuota), args.Error(1)
}

func (m *mockQuotaRepository) Release(ctx context.Context, userID uuid.UUID, deltaMB float64) error {
	args := m.Called(ctx, userID, deltaMB)
	return args.Error(0)
}

func (m *mockQuotaRepository) SetTotal(ctx context.Context, userID uuid.UUID, bucketName string, totalMB float64) (*domain.StorageQuota, error) {
	args := m.Called(ctx, userID, bucketName, totalMB)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StorageQuota), args.Error(1)
}

type mockFileRepository struct {
	mock.Mock
}

func (m *mockFileRepository) Create(ctx context.Context, file *domain.FileRecord) error {
	args := m.Called(ctx, file)
	return args.Error(0)
}

func (m *mockFileRepository) ListByUserID(ctx context.Context, userID uuid.UUID, opts repository.ListOptions) ([]*domain.FileRecord, error) {
	args := m.Called(ctx, userID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FileRecord), args.Error(1)
}

func (m *mockFileRepository) SumSizeByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// recordingObserver collects outcomes for assertions.
type recordingObserver struct {
	mu          sync.Mutex
	outcomes    []string
	uploadBytes int64
	rejections  int
}

func (o *recordingObserver) ObserveOperation(action, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, action+":"+outcome)
}

func (o *recordingObserver) ObserveUpload(bytes int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.uploadBytes += bytes
}

func (o *recordingObserver) ObserveQuotaRejection() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejections++
}
