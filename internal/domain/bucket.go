package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// bucketNameRegex validates S3-compliant bucket names.
// Rules: 3-63 characters, lowercase letters, numbers, hyphens, periods.
// Must start and end with letter or number.
var bucketNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// Bucket name errors.
var (
	// ErrBucketNameLength indicates the bucket name length is invalid (3-63 chars).
	ErrBucketNameLength = errors.New("bucket name must be between 3 and 63 characters")

	// ErrBucketNameFormat indicates the bucket name format is invalid.
	ErrBucketNameFormat = errors.New("bucket name must contain only lowercase letters, numbers, hyphens, and periods")
)

const (
	bucketPrefix = "user-"
	bucketSuffix = "-storage"

	// objectTimestampFormat is ISO-8601 with milliseconds, before ':' and '.' are replaced.
	objectTimestampFormat = "2006-01-02T15:04:05.000Z"
)

// BucketNameForUser derives the private bucket of a user.
// The name is a pure function of the user ID: user-<uuid>-storage.
func BucketNameForUser(userID uuid.UUID) string {
	return bucketPrefix + userID.String() + bucketSuffix
}

// ValidateBucketName checks if the bucket name follows S3 naming conventions.
func ValidateBucketName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return ErrBucketNameLength
	}

	if !bucketNameRegex.MatchString(name) {
		return ErrBucketNameFormat
	}

	return nil
}

// TimestampedFileName prefixes fileName with the upload instant so repeated
// uploads of the same name land on distinct keys.
// Example: 2024-03-01T12-00-00-000Z-notes.pdf
func TimestampedFileName(now time.Time, fileName string) string {
	ts := now.UTC().Format(objectTimestampFormat)
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return ts + "-" + fileName
}

// ObjectKey builds the full object key, nested under bucketPath when given.
func ObjectKey(now time.Time, bucketPath, fileName string) string {
	name := TimestampedFileName(now, fileName)
	prefix := NormalizeBucketPath(bucketPath)
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// NormalizeBucketPath trims surrounding slashes so keys never contain "//".
func NormalizeBucketPath(bucketPath string) string {
	return strings.Trim(strings.TrimSpace(bucketPath), "/")
}
