package objectstore

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/alexander-gateway/internal/config"
	"github.com/prn-tf/alexander-gateway/internal/domain"
	"github.com/prn-tf/alexander-gateway/internal/sigv4"
)

func newTestClient(t *testing.T, endpoint, signer string, opts ...Option) *Client {
	t.Helper()

	c, err := New(config.ObjectStoreConfig{
		Endpoint:        endpoint,
		Region:          "us-east-1",
		AccessKeyID:     testAccessKey,
		SecretAccessKey: testSecretKey,
		Signer:          signer,
	}, zerolog.Nop(), opts...)
	require.NoError(t, err)
	return c
}

type recordedCall struct {
	operation string
	status    int
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *fakeRecorder) ObserveObjectStore(operation string, statusCode int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{operation, statusCode})
}

func TestClient_CreateBucket(t *testing.T) {
	for _, signer := range []string{SignerNative, SignerAWSSDK} {
		t.Run(signer, func(t *testing.T) {
			ctx := context.Background()
			fs, srv := newFakeStore(t)
			rec := &fakeRecorder{}
			c := newTestClient(t, srv.URL, signer, WithRecorder(rec))

			require.NoError(t, c.CreateBucket(ctx, "user-1-storage"))

			req := fs.lastRequest()
			require.NotNil(t, req)
			assert.Equal(t, http.MethodPut, req.Method)
			assert.Equal(t, "/user-1-storage", req.URL.Path)
			assert.Equal(t, sigv4.EmptyStringSHA256, req.Header.Get(sigv4.XAmzContentSHA256Header))

			// Second create answers 409 and is still a success.
			require.NoError(t, c.CreateBucket(ctx, "user-1-storage"))

			require.Len(t, rec.calls, 2)
			assert.Equal(t, recordedCall{"create bucket", http.StatusOK}, rec.calls[0])
			assert.Equal(t, recordedCall{"create bucket", http.StatusConflict}, rec.calls[1])
		})
	}
}

func TestClient_PutObjectUnsignedPayload(t *testing.T) {
	ctx := context.Background()
	fs, srv := newFakeStore(t)
	c := newTestClient(t, srv.URL, SignerNative)

	require.NoError(t, c.CreateBucket(ctx, "b"))

	key := "docs/2024-03-01T12-00-00-123Z-my notes+v1.pdf"
	require.NoError(t, c.PutObject(ctx, "b", key, []byte("hello"), "application/pdf"))

	obj, ok := fs.object("b", key)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), obj.body)
	assert.Equal(t, "application/pdf", obj.contentType)
	assert.Equal(t, sigv4.UnsignedPayload, obj.payloadHash)

	assert.Equal(t, srv.URL+"/b/"+key, c.ObjectURL("b", key))
}

func TestClient_ListObjects(t *testing.T) {
	for _, signer := range []string{SignerNative, SignerAWSSDK} {
		t.Run(signer, func(t *testing.T) {
			ctx := context.Background()
			_, srv := newFakeStore(t)
			c := newTestClient(t, srv.URL, signer)

			require.NoError(t, c.CreateBucket(ctx, "b"))
			native := newTestClient(t, srv.URL, SignerNative)
			require.NoError(t, native.PutObject(ctx, "b", "docs/a.txt", []byte("a"), "text/plain"))
			require.NoError(t, native.PutObject(ctx, "b", "img/b.png", []byte("b"), "image/png"))

			all, err := c.ListObjects(ctx, "b", "")
			require.NoError(t, err)
			assert.Contains(t, string(all), "<Key>docs/a.txt</Key>")
			assert.Contains(t, string(all), "<Key>img/b.png</Key>")

			docs, err := c.ListObjects(ctx, "b", "docs/")
			require.NoError(t, err)
			assert.Contains(t, string(docs), "<Key>docs/a.txt</Key>")
			assert.NotContains(t, string(docs), "img/b.png")
		})
	}
}

func TestClient_ErrorResponses(t *testing.T) {
	ctx := context.Background()
	fs, srv := newFakeStore(t)

	t.Run("bad signature surfaces as 403", func(t *testing.T) {
		c, err := New(config.ObjectStoreConfig{
			Endpoint:        srv.URL,
			AccessKeyID:     testAccessKey,
			SecretAccessKey: "wrong",
		}, zerolog.Nop())
		require.NoError(t, err)

		err = c.CreateBucket(ctx, "b")
		require.Error(t, err)

		var ose *domain.ObjectStoreError
		require.True(t, errors.As(err, &ose))
		assert.Equal(t, http.StatusForbidden, ose.StatusCode)
		assert.Equal(t, "create bucket", ose.Operation)
		assert.Contains(t, ose.Body, "SignatureDoesNotMatch")
		assert.ErrorIs(t, err, domain.ErrObjectStore)
	})

	t.Run("server error on put", func(t *testing.T) {
		c := newTestClient(t, srv.URL, SignerNative)
		require.NoError(t, c.CreateBucket(ctx, "b"))

		fs.mu.Lock()
		fs.failWith = http.StatusInternalServerError
		fs.mu.Unlock()
		defer func() {
			fs.mu.Lock()
			fs.failWith = 0
			fs.mu.Unlock()
		}()

		err := c.PutObject(ctx, "b", "k", []byte("x"), "text/plain")
		var ose *domain.ObjectStoreError
		require.True(t, errors.As(err, &ose))
		assert.Equal(t, http.StatusInternalServerError, ose.StatusCode)
		assert.Equal(t, "upload file", ose.Operation)
	})

	t.Run("list missing bucket", func(t *testing.T) {
		c := newTestClient(t, srv.URL, SignerNative)
		_, err := c.ListObjects(ctx, "missing", "")
		var ose *domain.ObjectStoreError
		require.True(t, errors.As(err, &ose))
		assert.Equal(t, http.StatusNotFound, ose.StatusCode)
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		c := newTestClient(t, "http://127.0.0.1:1", SignerNative)
		err := c.CreateBucket(ctx, "b")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrObjectStore)
	})
}

func TestClient_Unconfigured(t *testing.T) {
	ctx := context.Background()
	c, err := New(config.ObjectStoreConfig{Endpoint: "https://s3.wasabisys.com"}, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, c.Configured())

	assert.ErrorIs(t, c.CreateBucket(ctx, "b"), domain.ErrConfiguration)
	assert.ErrorIs(t, c.PutObject(ctx, "b", "k", nil, ""), domain.ErrConfiguration)
	_, err = c.ListObjects(ctx, "b", "")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ObjectStoreConfig
	}{
		{"endpoint without scheme", config.ObjectStoreConfig{Endpoint: "s3.wasabisys.com", AccessKeyID: "a", SecretAccessKey: "b"}},
		{"unknown signer", config.ObjectStoreConfig{Endpoint: "https://s3.wasabisys.com", Signer: "v2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, zerolog.Nop())
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestClient_SigningClock(t *testing.T) {
	ctx := context.Background()
	fs, srv := newFakeStore(t)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestClient(t, srv.URL, SignerNative, WithClock(func() time.Time { return fixed }))

	require.NoError(t, c.CreateBucket(ctx, "b"))
	assert.Equal(t, "20240301T120000Z", fs.lastRequest().Header.Get(sigv4.XAmzDateHeader))
}
