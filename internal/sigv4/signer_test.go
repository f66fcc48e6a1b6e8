package sigv4

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{
	AccessKeyID:     "AKIDEXAMPLE",
	SecretAccessKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
	Region:          "us-east-1",
}

func newRequest(t *testing.T, method, target string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, target, nil)
	require.NoError(t, err)
	return req
}

func TestSigner_SignRequest_SetsHeaders(t *testing.T) {
	signTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	req := newRequest(t, http.MethodPut, "https://s3.wasabisys.com/user-1-storage/folder/a b.txt")
	req.Header.Set("Content-Type", "text/plain")

	err := NewSigner(testCreds).SignRequest(context.Background(), req, UnsignedPayload, signTime)
	require.NoError(t, err)

	assert.Equal(t, "20240301T120000Z", req.Header.Get(XAmzDateHeader))
	assert.Equal(t, UnsignedPayload, req.Header.Get(XAmzContentSHA256Header))
	assert.Equal(t, "/user-1-storage/folder/a%20b.txt", req.URL.EscapedPath())

	auth := req.Header.Get(AuthorizationHeader)
	assert.True(t, strings.HasPrefix(auth, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20240301/us-east-1/s3/aws4_request, "))
	assert.Contains(t, auth, "SignedHeaders=host;x-amz-content-sha256;x-amz-date, ")
}

func TestSigner_SignRequest_MissingCredentials(t *testing.T) {
	req := newRequest(t, http.MethodGet, "https://s3.wasabisys.com/bucket")

	err := NewSigner(Credentials{AccessKeyID: "AK"}).SignRequest(context.Background(), req, EmptyStringSHA256, time.Now())
	require.ErrorIs(t, err, ErrMissingCredentials)
	assert.Empty(t, req.Header.Get(AuthorizationHeader))

	err = NewSDKSigner(Credentials{}).SignRequest(context.Background(), req, EmptyStringSHA256, time.Now())
	require.ErrorIs(t, err, ErrMissingCredentials)
}

func TestSigner_VerifyRoundTrip(t *testing.T) {
	signTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	lookup := StaticSecret(testCreds.AccessKeyID, testCreds.SecretAccessKey)

	tests := []struct {
		name        string
		method      string
		target      string
		payloadHash string
	}{
		{"create bucket", http.MethodPut, "https://s3.wasabisys.com/user-1-storage", EmptyStringSHA256},
		{"upload", http.MethodPut, "https://s3.wasabisys.com/user-1-storage/docs/2024-03-01T12-00-00-000Z-notes.pdf", UnsignedPayload},
		{"list", http.MethodGet, "https://s3.wasabisys.com/user-1-storage?list-type=2&prefix=docs%2F", EmptyStringSHA256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(t, tt.method, tt.target)
			require.NoError(t, NewSigner(testCreds).SignRequest(context.Background(), req, tt.payloadHash, signTime))

			signed, err := VerifyRequest(req, lookup)
			require.NoError(t, err)
			assert.Equal(t, DefaultSignedHeaders(), signed.SignedHeaders)
		})
	}
}

func TestVerifyRequest_Rejections(t *testing.T) {
	signTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sign := func(t *testing.T) *http.Request {
		req := newRequest(t, http.MethodGet, "https://s3.wasabisys.com/user-1-storage")
		require.NoError(t, NewSigner(testCreds).SignRequest(context.Background(), req, EmptyStringSHA256, signTime))
		return req
	}

	t.Run("wrong secret", func(t *testing.T) {
		_, err := VerifyRequest(sign(t), StaticSecret(testCreds.AccessKeyID, "other"))
		require.ErrorIs(t, err, ErrSignatureDoesNotMatch)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := VerifyRequest(sign(t), StaticSecret("someone-else", testCreds.SecretAccessKey))
		require.ErrorIs(t, err, ErrInvalidAccessKeyID)
	})

	t.Run("tampered date", func(t *testing.T) {
		req := sign(t)
		req.Header.Set(XAmzDateHeader, "20240301T120001Z")
		_, err := VerifyRequest(req, StaticSecret(testCreds.AccessKeyID, testCreds.SecretAccessKey))
		require.ErrorIs(t, err, ErrSignatureDoesNotMatch)
	})

	t.Run("tampered path", func(t *testing.T) {
		req := sign(t)
		req.URL.Path = "/user-2-storage"
		_, err := VerifyRequest(req, StaticSecret(testCreds.AccessKeyID, testCreds.SecretAccessKey))
		require.ErrorIs(t, err, ErrSignatureDoesNotMatch)
	})

	t.Run("missing content hash", func(t *testing.T) {
		req := sign(t)
		req.Header.Del(XAmzContentSHA256Header)
		_, err := VerifyRequest(req, StaticSecret(testCreds.AccessKeyID, testCreds.SecretAccessKey))
		require.ErrorIs(t, err, ErrMissingSecurityHeader)
	})

	t.Run("no authorization", func(t *testing.T) {
		req := newRequest(t, http.MethodGet, "https://s3.wasabisys.com/user-1-storage")
		_, err := VerifyRequest(req, StaticSecret(testCreds.AccessKeyID, testCreds.SecretAccessKey))
		require.ErrorIs(t, err, ErrInvalidAuthorizationHeader)
	})
}

func TestSDKSigner_MatchesNativeSigner(t *testing.T) {
	signTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		method string
		target string
		hash   string
	}{
		{"bucket", http.MethodPut, "https://s3.wasabisys.com/user-1-storage", EmptyStringSHA256},
		{"object", http.MethodPut, "https://s3.wasabisys.com/user-1-storage/docs/report.pdf", UnsignedPayload},
		{"list", http.MethodGet, "https://s3.wasabisys.com/user-1-storage?prefix=docs", EmptyStringSHA256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			native := newRequest(t, tt.method, tt.target)
			require.NoError(t, NewSigner(testCreds).SignRequest(context.Background(), native, tt.hash, signTime))

			sdk := newRequest(t, tt.method, tt.target)
			require.NoError(t, NewSDKSigner(testCreds).SignRequest(context.Background(), sdk, tt.hash, signTime))

			nativeValues, err := ParseAuthorization(native.Header.Get(AuthorizationHeader))
			require.NoError(t, err)
			sdkValues, err := ParseAuthorization(sdk.Header.Get(AuthorizationHeader))
			require.NoError(t, err)

			assert.Equal(t, nativeValues.SignedHeaders, sdkValues.SignedHeaders)
			assert.Equal(t, nativeValues.Signature, sdkValues.Signature)

			_, err = VerifyRequest(sdk, StaticSecret(testCreds.AccessKeyID, testCreds.SecretAccessKey))
			require.NoError(t, err)
		})
	}
}

func TestParseAuthorization(t *testing.T) {
	valid := "AWS4-HMAC-SHA256 Credential=AKID/20240301/eu-central-1/s3/aws4_request, " +
		"SignedHeaders=host;x-amz-content-sha256;x-amz-date, " +
		"Signature=" + strings.Repeat("ab", 32)

	signed, err := ParseAuthorization(valid)
	require.NoError(t, err)
	assert.Equal(t, "AKID", signed.AccessKeyID)
	assert.Equal(t, "eu-central-1", signed.Scope.Region)
	assert.Equal(t, "s3", signed.Scope.Service)
	assert.Equal(t, "20240301", signed.Scope.DateStamp())

	invalid := []string{
		"",
		"Bearer token",
		"AWS4-HMAC-SHA256 Credential=AKID/2024/eu/s3/aws4_request, SignedHeaders=host, Signature=" + strings.Repeat("ab", 32),
		"AWS4-HMAC-SHA256 Credential=AKID/20240301/eu/s3/aws4_request, SignedHeaders=x-amz-date;host, Signature=" + strings.Repeat("ab", 32),
		"AWS4-HMAC-SHA256 Credential=AKID/20240301/eu/s3/aws4_request, SignedHeaders=host, Signature=short",
	}
	for _, h := range invalid {
		_, err := ParseAuthorization(h)
		assert.ErrorIs(t, err, ErrInvalidAuthorizationHeader, h)
	}
}
