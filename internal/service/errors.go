package service

import (
	"errors"

	"github.com/prn-tf/alexander-gateway/internal/domain"
)

// Validation failures. Each unwraps to domain.ErrValidation.
var (
	ErrMissingUploadFields = domain.NewDomainError(domain.ErrValidation, "fileData and fileName are required", "")
	ErrInvalidFileData     = domain.NewDomainError(domain.ErrValidation, "fileData is not valid base64", "")
	ErrInvalidFileName     = domain.NewDomainError(domain.ErrValidation, "fileName must not contain '/'", "")
	ErrInvalidQuotaTotal   = domain.NewDomainError(domain.ErrValidation, "quota total must be positive", "")
)

// Operation outcomes reported to the Observer.
const (
	OutcomeSuccess        = "success"
	OutcomeAuthentication = "authentication"
	OutcomeConfiguration  = "configuration"
	OutcomeValidation     = "validation"
	OutcomeQuotaExceeded  = "quota_exceeded"
	OutcomeObjectStore    = "object_store"
	OutcomeMetadata       = "metadata"
	OutcomeInternal       = "internal"
)

// Outcome classifies err into one of the Outcome* labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, domain.ErrAuthentication):
		return OutcomeAuthentication
	case errors.Is(err, domain.ErrConfiguration):
		return OutcomeConfiguration
	case errors.Is(err, domain.ErrValidation):
		return OutcomeValidation
	case errors.Is(err, domain.ErrQuotaExceeded):
		return OutcomeQuotaExceeded
	case errors.Is(err, domain.ErrObjectStore):
		return OutcomeObjectStore
	case errors.Is(err, domain.ErrMetadataPersistence):
		return OutcomeMetadata
	default:
		return OutcomeInternal
	}
}
