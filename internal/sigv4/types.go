package sigv4

import (
	"time"
)

// =============================================================================
// Credential Types
// =============================================================================

// Credentials is the key pair and location used to sign requests.
// It is injected once at startup and never persisted.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Service         string
}

// Valid reports whether both halves of the key pair are present.
func (c Credentials) Valid() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// region returns the configured region or the default.
func (c Credentials) region() string {
	if c.Region == "" {
		return DefaultRegion
	}
	return c.Region
}

// service returns the configured service or s3.
func (c Credentials) service() string {
	if c.Service == "" {
		return ServiceS3
	}
	return c.Service
}

// Scope returns the credential scope for the given signing time.
func (c Credentials) Scope(t time.Time) CredentialScope {
	return CredentialScope{
		Date:    t.UTC(),
		Region:  c.region(),
		Service: c.service(),
	}
}

// CredentialScope represents the scope of a signature.
// Format: {date}/{region}/{service}/aws4_request
type CredentialScope struct {
	// Date is the signing instant; only YYYYMMDD is used.
	Date time.Time

	// Region is the store region (e.g., "us-east-1").
	Region string

	// Service is the signing service (e.g., "s3").
	Service string
}

// DateStamp returns the YYYYMMDD form of the scope date.
func (cs CredentialScope) DateStamp() string {
	return cs.Date.UTC().Format(YYYYMMDD)
}

// String returns the credential scope as a string.
func (cs CredentialScope) String() string {
	return cs.DateStamp() + "/" + cs.Region + "/" + cs.Service + "/" + AWS4Request
}

// AmzDate returns the full ISO-8601 basic timestamp for t.
// Date stamp and timestamp are always derived from the same instant.
func AmzDate(t time.Time) string {
	return t.UTC().Format(ISO8601BasicFormat)
}

// =============================================================================
// Signature Types
// =============================================================================

// SignedValues represents the components parsed from an Authorization header.
type SignedValues struct {
	// AccessKeyID is the access key from the Credential component.
	AccessKeyID string

	// Scope is the credential scope.
	Scope CredentialScope

	// SignedHeaders is the list of headers included in the signature.
	SignedHeaders []string

	// Signature is the hex-encoded signature.
	Signature string
}

// =============================================================================
// Signature Components
// =============================================================================

// CanonicalRequest represents the components of a canonical request.
type CanonicalRequest struct {
	Method        string
	URI           string
	QueryString   string
	Headers       string
	SignedHeaders string
	PayloadHash   string
}

// String returns the canonical request as a string for signing.
// The header block already ends in a newline, so the result always has six segments.
func (cr CanonicalRequest) String() string {
	return cr.Method + "\n" +
		cr.URI + "\n" +
		cr.QueryString + "\n" +
		cr.Headers + "\n" +
		cr.SignedHeaders + "\n" +
		cr.PayloadHash
}

// StringToSign represents the string to sign.
type StringToSign struct {
	Algorithm            string
	RequestDateTime      string
	CredentialScope      string
	CanonicalRequestHash string
}

// String returns the string to sign.
func (sts StringToSign) String() string {
	return sts.Algorithm + "\n" +
		sts.RequestDateTime + "\n" +
		sts.CredentialScope + "\n" +
		sts.CanonicalRequestHash
}
