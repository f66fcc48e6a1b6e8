package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignCheckTime(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 7, 0, time.FixedZone("CET", 3600))

	t.Run("defaults to now without a captured header", func(t *testing.T) {
		got, err := signCheckTime("", "", now)
		require.NoError(t, err)
		assert.Equal(t, now.UTC(), got)
	})

	t.Run("captured header requires a date", func(t *testing.T) {
		_, err := signCheckTime("", "AWS4-HMAC-SHA256 Credential=AK/20240301/us-east-1/s3/aws4_request, SignedHeaders=host, Signature=00", now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "-date is required")
	})

	t.Run("explicit date wins", func(t *testing.T) {
		got, err := signCheckTime("20240229T235959Z", "AWS4-HMAC-SHA256 ...", now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC), got)
	})

	t.Run("malformed date", func(t *testing.T) {
		_, err := signCheckTime("2024-03-01", "", now)
		assert.Error(t, err)
	})
}
