// Package sigv4 implements AWS Signature Version 4 signing for S3-compatible object stores.
// It signs outbound requests issued by the gateway and can verify signed requests,
// which is used to test the signer against a local fake object store.
package sigv4

// =============================================================================
// Constants
// =============================================================================

const (
	// Algorithm is the algorithm identifier for AWS Signature Version 4.
	Algorithm = "AWS4-HMAC-SHA256"

	// ISO8601BasicFormat is the timestamp format used in X-Amz-Date and the string to sign.
	ISO8601BasicFormat = "20060102T150405Z"

	// YYYYMMDD is the short date format used in the credential scope.
	YYYYMMDD = "20060102"

	// ServiceS3 is the service name for S3.
	ServiceS3 = "s3"

	// DefaultRegion is the region used when none is configured.
	DefaultRegion = "us-east-1"

	// AWS4Request is the termination string of the credential scope.
	AWS4Request = "aws4_request"
)

// =============================================================================
// Header Constants
// =============================================================================

const (
	// AuthorizationHeader is the HTTP header carrying the signature.
	AuthorizationHeader = "Authorization"

	// XAmzDateHeader is the AWS date header.
	XAmzDateHeader = "X-Amz-Date"

	// XAmzContentSHA256Header is the content hash header.
	XAmzContentSHA256Header = "X-Amz-Content-Sha256"
)

// =============================================================================
// Special Content Hash Values
// =============================================================================

const (
	// UnsignedPayload marks a payload that is not covered by the signature.
	UnsignedPayload = "UNSIGNED-PAYLOAD"

	// EmptyStringSHA256 is the SHA-256 hash of an empty string.
	EmptyStringSHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

var defaultSignedHeaders = []string{"host", "x-amz-content-sha256", "x-amz-date"}

// DefaultSignedHeaders returns the headers signed on every gateway request, sorted.
func DefaultSignedHeaders() []string {
	return append([]string(nil), defaultSignedHeaders...)
}
