package sigv4

import (
	"fmt"
	"net/url"
	"time"
)

// Explanation holds every intermediate value of one signing run.
type Explanation struct {
	CanonicalRequest string
	StringToSign     string
	Signature        string
	Authorization    string
}

// Explain signs method + rawURL the way Signer does and returns the
// intermediate strings, for comparing against a store's SignatureDoesNotMatch
// response.
func Explain(creds Credentials, method, rawURL string, signTime time.Time, payloadHash string) (*Explanation, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: missing host", rawURL)
	}
	if payloadHash == "" {
		payloadHash = EmptyStringSHA256
	}

	amzDate := AmzDate(signTime)
	headers := map[string]string{
		"host":                 u.Host,
		"x-amz-content-sha256": payloadHash,
		"x-amz-date":           amzDate,
	}
	cr := NewCanonicalRequest(method, EncodeURIPath(u.Path), CanonicalQueryString(u.Query()), headers, defaultSignedHeaders, payloadHash)
	scope := creds.Scope(signTime)

	return &Explanation{
		CanonicalRequest: cr.String(),
		StringToSign:     BuildStringToSign(amzDate, scope.String(), Digest([]byte(cr.String()))),
		Signature:        Signature(creds, signTime, cr),
		Authorization:    Sign(creds, signTime, cr),
	}, nil
}
