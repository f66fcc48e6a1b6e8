package sigv4

import (
	"crypto/hmac"
	"fmt"
	"net/http"
	"time"
)

// SecretLookup returns the secret for an access key ID.
type SecretLookup func(accessKeyID string) (secret string, ok bool)

// VerifyRequest recomputes the signature of an inbound request and compares it
// with the one carried in its Authorization header.
func VerifyRequest(r *http.Request, lookup SecretLookup) (*SignedValues, error) {
	signed, err := ParseAuthorization(r.Header.Get(AuthorizationHeader))
	if err != nil {
		return nil, err
	}

	secret, ok := lookup(signed.AccessKeyID)
	if !ok {
		return nil, ErrInvalidAccessKeyID
	}

	amzDate := r.Header.Get(XAmzDateHeader)
	if amzDate == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingSecurityHeader, XAmzDateHeader)
	}
	signTime, err := time.Parse(ISO8601BasicFormat, amzDate)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed %s", ErrInvalidAuthorizationHeader, XAmzDateHeader)
	}

	payloadHash := r.Header.Get(XAmzContentSHA256Header)
	if payloadHash == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingSecurityHeader, XAmzContentSHA256Header)
	}

	headers := make(map[string]string, len(signed.SignedHeaders))
	for _, name := range signed.SignedHeaders {
		if name == "host" {
			headers[name] = r.Host
			continue
		}
		headers[name] = r.Header.Get(name)
	}

	cr := NewCanonicalRequest(
		r.Method,
		EncodeURIPath(r.URL.Path),
		CanonicalQueryString(r.URL.Query()),
		headers,
		signed.SignedHeaders,
		payloadHash,
	)

	creds := Credentials{
		AccessKeyID:     signed.AccessKeyID,
		SecretAccessKey: secret,
		Region:          signed.Scope.Region,
		Service:         signed.Scope.Service,
	}
	expected := Signature(creds, signTime, cr)

	if !hmac.Equal([]byte(expected), []byte(signed.Signature)) {
		return nil, ErrSignatureDoesNotMatch
	}

	return signed, nil
}

// StaticSecret returns a SecretLookup that knows exactly one key pair.
func StaticSecret(accessKeyID, secret string) SecretLookup {
	return func(id string) (string, bool) {
		if id != accessKeyID {
			return "", false
		}
		return secret, true
	}
}
