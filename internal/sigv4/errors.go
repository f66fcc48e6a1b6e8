package sigv4

import "errors"

// Signing and verification errors.
var (
	// ErrMissingCredentials indicates the access key ID or secret is empty.
	ErrMissingCredentials = errors.New("sigv4: missing access key id or secret access key")

	// ErrInvalidAuthorizationHeader indicates the Authorization header is malformed.
	ErrInvalidAuthorizationHeader = errors.New("sigv4: invalid authorization header")

	// ErrMissingSecurityHeader indicates a required signed header is missing.
	ErrMissingSecurityHeader = errors.New("sigv4: missing required security header")

	// ErrSignatureDoesNotMatch indicates the recomputed signature differs.
	ErrSignatureDoesNotMatch = errors.New("sigv4: the request signature we calculated does not match the signature you provided")

	// ErrInvalidAccessKeyID indicates the request was signed with an unknown key.
	ErrInvalidAccessKeyID = errors.New("sigv4: unknown access key id")
)
