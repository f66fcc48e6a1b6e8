// Package objectstore issues signed REST calls to an S3-compatible object store.
// Only the three calls the gateway needs are implemented: create bucket,
// put object and list objects. Responses are not interpreted beyond their status.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/prn-tf/alexander-gateway/internal/config"
	"github.com/prn-tf/alexander-gateway/internal/domain"
	"github.com/prn-tf/alexander-gateway/internal/sigv4"
)

// Signer names accepted by object_store.signer.
const (
	SignerNative = "native"
	SignerAWSSDK = "aws-sdk"
)

// maxErrorBody caps how much of a failure response is kept in an ObjectStoreError.
const maxErrorBody = 64 * 1024

// Recorder observes every completed object store call.
type Recorder interface {
	ObserveObjectStore(operation string, statusCode int, elapsed time.Duration)
}

// Client talks to one object store endpoint with one set of credentials.
type Client struct {
	endpoint   *url.URL
	configured bool
	signer     sigv4.RequestSigner
	httpClient *http.Client
	recorder   Recorder
	tracer     trace.Tracer
	logger     zerolog.Logger
	now        func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSigner replaces the request signer selected from configuration.
func WithSigner(s sigv4.RequestSigner) Option {
	return func(c *Client) { c.signer = s }
}

// WithRecorder reports call outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithClock overrides the signing clock.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client from configuration.
// Missing credentials are not an error here: the client is returned unconfigured
// and every call fails with domain.ErrConfiguration.
func New(cfg config.ObjectStoreConfig, logger zerolog.Logger, opts ...Option) (*Client, error) {
	c := &Client{
		configured: cfg.Configured(),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tracer:     otel.Tracer("alexander-gateway/objectstore"),
		logger:     logger.With().Str("component", "objectstore").Logger(),
		now:        time.Now,
	}

	if cfg.Endpoint != "" {
		u, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/"))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%w: invalid object store endpoint %q", domain.ErrConfiguration, cfg.Endpoint)
		}
		c.endpoint = u
	}

	creds := sigv4.Credentials{
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Region:          cfg.Region,
		Service:         sigv4.ServiceS3,
	}
	switch cfg.Signer {
	case "", SignerNative:
		c.signer = sigv4.NewSigner(creds)
	case SignerAWSSDK:
		c.signer = sigv4.NewSDKSigner(creds)
	default:
		return nil, fmt.Errorf("%w: unknown signer %q", domain.ErrConfiguration, cfg.Signer)
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Configured reports whether the client has an endpoint and credentials.
func (c *Client) Configured() bool {
	return c.configured && c.endpoint != nil
}

// Endpoint returns the endpoint URL without a trailing slash.
func (c *Client) Endpoint() string {
	if c.endpoint == nil {
		return ""
	}
	return c.endpoint.String()
}

// ObjectURL is the path-style URL of key in bucket.
func (c *Client) ObjectURL(bucket, key string) string {
	return c.Endpoint() + "/" + bucket + "/" + key
}

// CreateBucket issues PUT /<bucket>. A 409 (bucket already exists) counts as success.
func (c *Client) CreateBucket(ctx context.Context, bucket string) error {
	resp, err := c.do(ctx, "create bucket", request{
		method:      http.MethodPut,
		path:        "/" + bucket,
		payloadHash: sigv4.EmptyStringSHA256,
	})
	if err != nil {
		return err
	}

	if resp.status == http.StatusConflict {
		c.logger.Debug().Str("bucket", bucket).Msg("bucket already exists")
		return nil
	}
	return resp.check("create bucket")
}

// PutObject issues PUT /<bucket>/<key> with the body unsigned.
func (c *Client) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	resp, err := c.do(ctx, "upload file", request{
		method:      http.MethodPut,
		path:        "/" + bucket + "/" + key,
		body:        body,
		contentType: contentType,
		payloadHash: sigv4.UnsignedPayload,
	})
	if err != nil {
		return err
	}
	return resp.check("upload file")
}

// ListObjects issues GET /<bucket>/ and returns the provider's XML untouched.
// An empty prefix lists the whole bucket.
func (c *Client) ListObjects(ctx context.Context, bucket, prefix string) ([]byte, error) {
	var query url.Values
	if prefix != "" {
		query = url.Values{"prefix": []string{prefix}}
	}

	resp, err := c.do(ctx, "list files", request{
		method:      http.MethodGet,
		path:        "/" + bucket + "/",
		query:       query,
		payloadHash: sigv4.EmptyStringSHA256,
	})
	if err != nil {
		return nil, err
	}
	if err := resp.check("list files"); err != nil {
		return nil, err
	}
	return resp.body, nil
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	payloadHash string
}

type response struct {
	status int
	body   []byte
}

// check turns a non-2xx response into a *domain.ObjectStoreError.
func (r *response) check(operation string) error {
	if r.status >= 200 && r.status < 300 {
		return nil
	}
	body := r.body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &domain.ObjectStoreError{
		Operation:  operation,
		StatusCode: r.status,
		Body:       string(body),
	}
}

func (c *Client) do(ctx context.Context, operation string, in request) (*response, error) {
	if !c.Configured() {
		return nil, domain.ErrConfiguration
	}

	ctx, span := c.tracer.Start(ctx, "objectstore "+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", in.method),
			attribute.String("objectstore.path", in.path),
			attribute.Int("objectstore.body_bytes", len(in.body)),
		),
	)
	defer span.End()

	u := *c.endpoint
	u.Path = strings.TrimRight(c.endpoint.Path, "/") + in.path
	u.RawPath = ""
	u.RawQuery = in.query.Encode()

	req, err := http.NewRequestWithContext(ctx, in.method, u.String(), bytes.NewReader(in.body))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	if in.contentType != "" {
		req.Header.Set("Content-Type", in.contentType)
	}

	if err := c.signer.SignRequest(ctx, req, in.payloadHash, c.now()); err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, err, "failed to sign request")
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.observe(operation, 0, time.Since(start))
		return nil, domain.NewDomainError(domain.ErrObjectStore, fmt.Sprintf("failed to %s: %v", operation, err), "")
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	elapsed := time.Since(start)
	c.observe(operation, httpResp.StatusCode, elapsed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, domain.NewDomainError(domain.ErrObjectStore, fmt.Sprintf("failed to read %s response: %v", operation, err), "")
	}

	span.SetAttributes(attribute.Int("http.status_code", httpResp.StatusCode))
	if httpResp.StatusCode >= 400 {
		span.SetStatus(codes.Error, httpResp.Status)
	}

	c.logger.Debug().
		Str("operation", operation).
		Str("method", in.method).
		Str("path", in.path).
		Int("status", httpResp.StatusCode).
		Dur("duration", elapsed).
		Msg("object store call")

	return &response{status: httpResp.StatusCode, body: body}, nil
}

func (c *Client) observe(operation string, status int, elapsed time.Duration) {
	if c.recorder != nil {
		c.recorder.ObserveObjectStore(operation, status, elapsed)
	}
}
