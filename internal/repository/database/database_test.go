package database

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/alexander-gateway/internal/config"
	"github.com/prn-tf/alexander-gateway/internal/domain"
)

func TestOpen_SQLiteAutoMigrate(t *testing.T) {
	ctx := context.Background()
	res, err := Open(ctx, config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        ":memory:",
		AutoMigrate: true,
	}, zerolog.Nop())
	require.NoError(t, err)
	defer res.Database.Close()

	require.NoError(t, res.Database.Health(ctx))

	version, err := res.Migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	userID := uuid.New()
	q, err := res.Repos.Quota.Reserve(ctx, userID, domain.BucketNameForUser(userID), 1, domain.DefaultTotalQuotaMB)
	require.NoError(t, err)
	assert.Equal(t, 1.0, q.UsedStorageMB)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql"}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}
