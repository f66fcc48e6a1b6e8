package sigv4

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// Authorization Header Parsing
// =============================================================================

// Regular expressions for parsing AWS v4 authorization header
var (
	// credentialRegex matches Credential=accessKey/date/region/service/aws4_request
	credentialRegex = regexp.MustCompile(`Credential=([^/]+)/(\d{8})/([^/]+)/([^/]+)/aws4_request`)

	// signedHeadersRegex matches SignedHeaders=header1;header2;header3
	signedHeadersRegex = regexp.MustCompile(`SignedHeaders=([^,\s]+)`)

	// signatureRegex matches Signature=hexstring
	signatureRegex = regexp.MustCompile(`Signature=([a-f0-9]{64})`)
)

// ParseAuthorization parses an AWS v4 Authorization header.
// Format: AWS4-HMAC-SHA256 Credential=access_key/date/region/service/aws4_request, SignedHeaders=..., Signature=...
func ParseAuthorization(authHeader string) (*SignedValues, error) {
	if !strings.HasPrefix(authHeader, Algorithm+" ") {
		return nil, ErrInvalidAuthorizationHeader
	}

	credentialMatch := credentialRegex.FindStringSubmatch(authHeader)
	if len(credentialMatch) < 5 {
		return nil, fmt.Errorf("%w: invalid credential format", ErrInvalidAuthorizationHeader)
	}

	date, err := time.Parse(YYYYMMDD, credentialMatch[2])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date in credential", ErrInvalidAuthorizationHeader)
	}

	signedHeadersMatch := signedHeadersRegex.FindStringSubmatch(authHeader)
	if len(signedHeadersMatch) < 2 {
		return nil, fmt.Errorf("%w: missing signed headers", ErrInvalidAuthorizationHeader)
	}
	signedHeaders := strings.Split(signedHeadersMatch[1], ";")
	if !sort.StringsAreSorted(signedHeaders) {
		return nil, fmt.Errorf("%w: signed headers not sorted", ErrInvalidAuthorizationHeader)
	}

	signatureMatch := signatureRegex.FindStringSubmatch(authHeader)
	if len(signatureMatch) < 2 {
		return nil, fmt.Errorf("%w: missing or invalid signature", ErrInvalidAuthorizationHeader)
	}

	return &SignedValues{
		AccessKeyID: credentialMatch[1],
		Scope: CredentialScope{
			Date:    date,
			Region:  credentialMatch[3],
			Service: credentialMatch[4],
		},
		SignedHeaders: signedHeaders,
		Signature:     signatureMatch[1],
	}, nil
}
