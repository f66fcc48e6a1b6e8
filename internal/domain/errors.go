// Package domain contains the core business entities for Alexander Gateway.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - each gateway failure belongs to exactly one of these classes.
// Callers classify with errors.Is; the HTTP layer turns every class into the same 400 shape.

var (
	// ===========================================
	// Caller Errors
	// ===========================================

	// ErrAuthentication indicates a missing or invalid caller token.
	ErrAuthentication = errors.New("unauthorized")

	// ErrValidation indicates missing or malformed operation parameters.
	ErrValidation = errors.New("invalid request")

	// ErrQuotaExceeded indicates the upload would push usage past the quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ===========================================
	// Configuration Errors
	// ===========================================

	// ErrConfiguration indicates a required secret or setting is missing.
	ErrConfiguration = errors.New("storage gateway is not configured")

	// ===========================================
	// Upstream Errors
	// ===========================================

	// ErrObjectStore indicates the object store answered with a failure status.
	ErrObjectStore = errors.New("object store request failed")

	// ErrMetadataPersistence indicates the relational write after a successful upload failed.
	// The object is already stored at this point and is not removed.
	ErrMetadataPersistence = errors.New("failed to persist file metadata")

	// ===========================================
	// Lookup Errors
	// ===========================================

	// ErrQuotaNotFound indicates the user has no quota row yet.
	ErrQuotaNotFound = errors.New("storage quota not found")
)

// QuotaExceededError carries the sizes shown to the user when an upload is rejected.
type QuotaExceededError struct {
	UsedMB      float64
	AvailableMB float64
	RequestedMB float64
}

// Error implements the error interface.
func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("Storage quota exceeded. Used: %.2f MB, Available: %.2f MB, Requested: %.2f MB",
		e.UsedMB, e.AvailableMB, e.RequestedMB)
}

// Unwrap returns ErrQuotaExceeded.
func (e *QuotaExceededError) Unwrap() error {
	return ErrQuotaExceeded
}

// ObjectStoreError is a non-success response from the object store.
// The body is kept verbatim; provider XML error codes are not interpreted.
type ObjectStoreError struct {
	// Operation names the failed call (e.g., "create bucket").
	Operation string

	// StatusCode is the HTTP status returned by the store.
	StatusCode int

	// Body is the raw response body.
	Body string
}

// Error implements the error interface.
func (e *ObjectStoreError) Error() string {
	return fmt.Sprintf("failed to %s: %d %s", e.Operation, e.StatusCode, e.Body)
}

// Unwrap returns ErrObjectStore.
func (e *ObjectStoreError) Unwrap() error {
	return ErrObjectStore
}

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., bucket name, object key).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}

// WrapError attaches a domain class to err unless err already carries one.
func WrapError(class error, err error, message string) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	return &DomainError{Err: class, Message: fmt.Sprintf("%s: %v", message, err)}
}

// IsDomainError reports whether err belongs to one of the gateway error classes.
func IsDomainError(err error) bool {
	for _, class := range []error{
		ErrAuthentication,
		ErrValidation,
		ErrQuotaExceeded,
		ErrConfiguration,
		ErrObjectStore,
		ErrMetadataPersistence,
		ErrQuotaNotFound,
	} {
		if errors.Is(err, class) {
			return true
		}
	}
	return false
}
