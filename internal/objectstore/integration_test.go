//go:build integration

package objectstore

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/alexander-gateway/internal/config"
	"github.com/prn-tf/alexander-gateway/internal/domain"
)

// Run with:
//
//	ALEXANDER_IT_ENDPOINT=https://s3.wasabisys.com \
//	ALEXANDER_IT_ACCESS_KEY_ID=... ALEXANDER_IT_SECRET_ACCESS_KEY=... \
//	go test -tags integration ./internal/objectstore/
func integrationConfig(t *testing.T) config.ObjectStoreConfig {
	t.Helper()

	cfg := config.ObjectStoreConfig{
		Endpoint:        os.Getenv("ALEXANDER_IT_ENDPOINT"),
		Region:          os.Getenv("ALEXANDER_IT_REGION"),
		AccessKeyID:     os.Getenv("ALEXANDER_IT_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("ALEXANDER_IT_SECRET_ACCESS_KEY"),
		Timeout:         30 * time.Second,
	}
	if !cfg.Configured() {
		t.Skip("ALEXANDER_IT_* object store settings not set")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	return cfg
}

// sdkClient reads back what the gateway client wrote, using an independent S3 implementation.
func sdkClient(t *testing.T, cfg config.ObjectStoreConfig) *s3.Client {
	t.Helper()

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	require.NoError(t, err)

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})
}

func TestIntegration_UploadRoundTrip(t *testing.T) {
	cfg := integrationConfig(t)
	ctx := context.Background()

	for _, signer := range []string{SignerNative, SignerAWSSDK} {
		t.Run(signer, func(t *testing.T) {
			cfg.Signer = signer
			c, err := New(cfg, zerolog.Nop())
			require.NoError(t, err)
			s3c := sdkClient(t, cfg)

			bucket := domain.BucketNameForUser(uuid.New())
			require.NoError(t, c.CreateBucket(ctx, bucket))
			require.NoError(t, c.CreateBucket(ctx, bucket))

			key := domain.ObjectKey(time.Now(), "it", "notes.txt")
			require.NoError(t, c.PutObject(ctx, bucket, key, []byte("hello"), "text/plain"))

			t.Cleanup(func() {
				_, _ = s3c.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
				_, _ = s3c.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
			})

			out, err := s3c.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
			require.NoError(t, err)
			defer out.Body.Close()
			body, err := io.ReadAll(out.Body)
			require.NoError(t, err)
			assert.Equal(t, "hello", string(body))
			assert.Equal(t, "text/plain", aws.ToString(out.ContentType))

			listing, err := c.ListObjects(ctx, bucket, "it/")
			require.NoError(t, err)
			assert.True(t, strings.Contains(string(listing), key))
		})
	}
}
