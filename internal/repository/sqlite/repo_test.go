package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/alexander-gateway/internal/domain"
	"github.com/prn-tf/alexander-gateway/internal/repository"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	ctx := context.Background()
	db, err := NewDB(ctx, DefaultConfig(MemoryPath), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestMigrate_StatusAndRollback(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	version, err := db.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	status, err := db.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.Equal(t, "init", status[0].Name)
	assert.True(t, status[0].Applied)

	// Second run is a no-op.
	require.NoError(t, db.Migrate(ctx))

	require.NoError(t, db.Rollback(ctx))
	version, err = db.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, version)

	_, err = NewQuotaRepository(db).GetByUserID(ctx, uuid.New())
	assert.Error(t, err)

	require.NoError(t, db.Migrate(ctx))
}

func TestQuotaRepository_GetMissing(t *testing.T) {
	repo := NewQuotaRepository(newTestDB(t))

	_, err := repo.GetByUserID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrQuotaNotFound)
}

func TestQuotaRepository_UpsertKeepsUsage(t *testing.T) {
	ctx := context.Background()
	repo := NewQuotaRepository(newTestDB(t))
	userID := uuid.New()
	bucket := domain.BucketNameForUser(userID)

	q := domain.DefaultQuota(userID, domain.DefaultTotalQuotaMB)
	require.NoError(t, repo.Upsert(ctx, q))
	assert.Equal(t, bucket, q.BucketName)
	assert.Equal(t, 1024.0, q.TotalQuotaMB)
	assert.Zero(t, q.UsedStorageMB)

	_, err := repo.Reserve(ctx, userID, bucket, 10, domain.DefaultTotalQuotaMB)
	require.NoError(t, err)

	again := domain.DefaultQuota(userID, domain.DefaultTotalQuotaMB)
	require.NoError(t, repo.Upsert(ctx, again))
	assert.Equal(t, 10.0, again.UsedStorageMB)
}

func TestQuotaRepository_ReserveBoundary(t *testing.T) {
	ctx := context.Background()
	repo := NewQuotaRepository(newTestDB(t))
	userID := uuid.New()
	bucket := domain.BucketNameForUser(userID)

	q, err := repo.Reserve(ctx, userID, bucket, 1000, domain.DefaultTotalQuotaMB)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, q.UsedStorageMB)

	q, err = repo.Reserve(ctx, userID, bucket, 24, domain.DefaultTotalQuotaMB)
	require.NoError(t, err)
	assert.Equal(t, 1024.0, q.UsedStorageMB)

	_, err = repo.Reserve(ctx, userID, bucket, 1, domain.DefaultTotalQuotaMB)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)

	var qe *domain.QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, 1024.0, qe.UsedMB)
	assert.Equal(t, 0.0, qe.AvailableMB)
	assert.Equal(t, 1.0, qe.RequestedMB)

	stored, err := repo.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1024.0, stored.UsedStorageMB)
}

func TestQuotaRepository_ReleaseClampsAtZero(t *testing.T) {
	ctx := context.Background()
	repo := NewQuotaRepository(newTestDB(t))
	userID := uuid.New()
	bucket := domain.BucketNameForUser(userID)

	assert.ErrorIs(t, repo.Release(ctx, userID, 1), domain.ErrQuotaNotFound)

	_, err := repo.Reserve(ctx, userID, bucket, 5, domain.DefaultTotalQuotaMB)
	require.NoError(t, err)

	require.NoError(t, repo.Release(ctx, userID, 3))
	q, err := repo.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, q.UsedStorageMB, 1e-9)

	require.NoError(t, repo.Release(ctx, userID, 10))
	q, err = repo.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, q.UsedStorageMB)
}

func TestQuotaRepository_SaveUsageAndSetTotal(t *testing.T) {
	ctx := context.Background()
	repo := NewQuotaRepository(newTestDB(t))
	userID := uuid.New()
	bucket := domain.BucketNameForUser(userID)

	q := domain.DefaultQuota(userID, domain.DefaultTotalQuotaMB)
	q.UsedStorageMB = 42.5
	require.NoError(t, repo.SaveUsage(ctx, q))

	stored, err := repo.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 42.5, stored.UsedStorageMB)

	updated, err := repo.SetTotal(ctx, userID, bucket, 2048)
	require.NoError(t, err)
	assert.Equal(t, 2048.0, updated.TotalQuotaMB)
	assert.Equal(t, 42.5, updated.UsedStorageMB)

	other := uuid.New()
	created, err := repo.SetTotal(ctx, other, domain.BucketNameForUser(other), 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, created.TotalQuotaMB)
	assert.Zero(t, created.UsedStorageMB)
}

func TestFileRepository_CreateListSum(t *testing.T) {
	ctx := context.Background()
	repo := NewFileRepository(newTestDB(t))
	userID := uuid.New()
	bucket := domain.BucketNameForUser(userID)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.txt", "b.txt", "c.txt"} {
		f := domain.NewFileRecord(userID, name, "https://s3.wasabisys.com/"+bucket+"/"+name, "text/plain", int64(i+1), name)
		f.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, f))
	}

	stranger := domain.NewFileRecord(uuid.New(), "x.txt", "https://example/x.txt", "", 100, "x.txt")
	require.NoError(t, repo.Create(ctx, stranger))

	files, err := repo.ListByUserID(ctx, userID, repository.ListOptions{})
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "c.txt", files[0].FileName)
	assert.Equal(t, "a.txt", files[2].FileName)
	assert.Equal(t, userID, files[0].UserID)
	assert.True(t, files[0].CreatedAt.Equal(base.Add(2*time.Minute)))

	page, err := repo.ListByUserID(ctx, userID, repository.ListOptions{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b.txt", page[0].FileName)

	total, err := repo.SumSizeByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)

	total, err = repo.SumSizeByUserID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, total)
}
