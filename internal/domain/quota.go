package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTotalQuotaMB is the quota ceiling assigned when none is configured.
	DefaultTotalQuotaMB = 1024.0

	// BytesPerMB converts byte counts to the megabytes stored in quota rows.
	BytesPerMB = 1024 * 1024
)

// StorageQuota tracks how much of their allowance a user has consumed.
// One row per user, created on first bucket creation and never deleted by the gateway.
type StorageQuota struct {
	// UserID is the owner of the quota (primary key).
	UserID uuid.UUID `json:"user_id"`

	// BucketName is the user's private bucket.
	BucketName string `json:"bucket_name"`

	// TotalQuotaMB is the ceiling in megabytes.
	TotalQuotaMB float64 `json:"total_quota_mb"`

	// UsedStorageMB is the sum of all successful uploads in megabytes.
	// Invariant: never exceeds TotalQuotaMB as a result of an upload.
	UsedStorageMB float64 `json:"used_storage_mb"`

	// CreatedAt is when the row was first inserted.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when usage or ceiling last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewStorageQuota creates a quota row with no usage.
func NewStorageQuota(userID uuid.UUID, bucketName string, totalMB float64) *StorageQuota {
	now := time.Now().UTC()
	return &StorageQuota{
		UserID:       userID,
		BucketName:   bucketName,
		TotalQuotaMB: totalMB,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// DefaultQuota is what check-quota reports for a user that has no row yet.
func DefaultQuota(userID uuid.UUID, totalMB float64) *StorageQuota {
	return &StorageQuota{
		UserID:       userID,
		BucketName:   BucketNameForUser(userID),
		TotalQuotaMB: totalMB,
	}
}

// AvailableMB returns the remaining allowance. It is never negative.
func (q *StorageQuota) AvailableMB() float64 {
	if q.UsedStorageMB >= q.TotalQuotaMB {
		return 0
	}
	return q.TotalQuotaMB - q.UsedStorageMB
}

// CanAccommodate reports whether deltaMB fits. The boundary is inclusive:
// used + delta == total is accepted.
func (q *StorageQuota) CanAccommodate(deltaMB float64) bool {
	return q.UsedStorageMB+deltaMB <= q.TotalQuotaMB
}

// CheckUpload returns a *QuotaExceededError when deltaMB does not fit.
func (q *StorageQuota) CheckUpload(deltaMB float64) error {
	if q.CanAccommodate(deltaMB) {
		return nil
	}
	return &QuotaExceededError{
		UsedMB:      q.UsedStorageMB,
		AvailableMB: q.AvailableMB(),
		RequestedMB: deltaMB,
	}
}

// BytesToMB converts a byte count to megabytes without rounding.
func BytesToMB(n int64) float64 {
	return float64(n) / BytesPerMB
}
