package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// Hashing Primitives
// =============================================================================

// Digest returns the hex-encoded SHA-256 of b.
func Digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HMAC computes HMAC-SHA256 of data keyed by key.
func HMAC(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

// =============================================================================
// Signing Key Generation
// =============================================================================

// DeriveSigningKey derives the scoped signing key:
// HMAC(HMAC(HMAC(HMAC("AWS4"+secret, date), region), service), "aws4_request")
func DeriveSigningKey(secretAccessKey, dateStamp, region, service string) []byte {
	kDate := HMAC([]byte("AWS4"+secretAccessKey), dateStamp)
	kRegion := HMAC(kDate, region)
	kService := HMAC(kRegion, service)
	return HMAC(kService, AWS4Request)
}

// =============================================================================
// Canonical Request Building
// =============================================================================

// NewCanonicalRequest assembles a canonical request. Signed header names are
// lower-cased, de-duplicated and sorted; the header block follows that order.
func NewCanonicalRequest(method, uri, query string, headers map[string]string, signedHeaders []string, payloadHash string) CanonicalRequest {
	lowered := make(map[string]string, len(headers))
	for k, v := range headers {
		lowered[strings.ToLower(k)] = v
	}

	names := canonicalHeaderNames(signedHeaders)
	var block strings.Builder
	for _, name := range names {
		block.WriteString(name)
		block.WriteString(":")
		block.WriteString(canonicalHeaderValue(lowered[name]))
		block.WriteString("\n")
	}

	if uri == "" {
		uri = "/"
	}

	return CanonicalRequest{
		Method:        method,
		URI:           uri,
		QueryString:   query,
		Headers:       block.String(),
		SignedHeaders: strings.Join(names, ";"),
		PayloadHash:   payloadHash,
	}
}

// BuildCanonicalRequest returns the canonical request string.
func BuildCanonicalRequest(method, uri, query string, headers map[string]string, signedHeaders []string, payloadHash string) string {
	return NewCanonicalRequest(method, uri, query, headers, signedHeaders, payloadHash).String()
}

// canonicalHeaderNames returns the sorted set of lower-cased, non-empty names.
func canonicalHeaderNames(signedHeaders []string) []string {
	seen := make(map[string]struct{}, len(signedHeaders))
	names := make([]string, 0, len(signedHeaders))
	for _, h := range signedHeaders {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// canonicalHeaderValue trims the value and collapses inner whitespace.
func canonicalHeaderValue(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

// EncodeURIPath URI-encodes each path segment, leaving "/" intact.
func EncodeURIPath(path string) string {
	if path == "" {
		return "/"
	}
	return uriEncode(path, false)
}

// CanonicalQueryString returns the sorted, URI-encoded query string.
func CanonicalQueryString(query url.Values) string {
	if len(query) == 0 {
		return ""
	}

	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var pairs []string
	for _, key := range keys {
		values := append([]string(nil), query[key]...)
		sort.Strings(values)
		for _, value := range values {
			pairs = append(pairs, uriEncode(key, true)+"="+uriEncode(value, true))
		}
	}

	return strings.Join(pairs, "&")
}

// uriEncode applies the SigV4 encoding rules: unreserved characters pass through,
// everything else becomes %XX with upper-case hex.
func uriEncode(s string, encodeSlash bool) string {
	const hexDigits = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9'),
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		case c == '/' && !encodeSlash:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		}
	}
	return b.String()
}

// =============================================================================
// String to Sign Building
// =============================================================================

// BuildStringToSign joins the algorithm, timestamp, scope and canonical request hash.
func BuildStringToSign(amzDate, credentialScope, canonicalRequestHash string) string {
	return StringToSign{
		Algorithm:            Algorithm,
		RequestDateTime:      amzDate,
		CredentialScope:      credentialScope,
		CanonicalRequestHash: canonicalRequestHash,
	}.String()
}

// =============================================================================
// Signing
// =============================================================================

// Signature computes the hex signature of a canonical request.
func Signature(creds Credentials, signTime time.Time, cr CanonicalRequest) string {
	scope := creds.Scope(signTime)
	stringToSign := BuildStringToSign(AmzDate(signTime), scope.String(), Digest([]byte(cr.String())))
	signingKey := DeriveSigningKey(creds.SecretAccessKey, scope.DateStamp(), scope.Region, scope.Service)
	return hex.EncodeToString(HMAC(signingKey, stringToSign))
}

// Sign returns the Authorization header value for a canonical request.
// It is pure: the same inputs always produce the same string.
func Sign(creds Credentials, signTime time.Time, cr CanonicalRequest) string {
	scope := creds.Scope(signTime)
	return Algorithm +
		" Credential=" + creds.AccessKeyID + "/" + scope.String() +
		", SignedHeaders=" + cr.SignedHeaders +
		", Signature=" + Signature(creds, signTime, cr)
}
