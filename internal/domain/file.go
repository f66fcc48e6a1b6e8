package domain

import (
	"time"

	"github.com/google/uuid"
)

// FileRecord is the metadata row written once per successful upload.
// It is never mutated afterward.
type FileRecord struct {
	// ID is the unique identifier of the row.
	ID uuid.UUID `json:"id"`

	// UserID is the uploader.
	UserID uuid.UUID `json:"user_id"`

	// FileName is the timestamp-prefixed name that was stored.
	FileName string `json:"file_name"`

	// FileURL is the public-style URL of the object (endpoint/bucket/key).
	FileURL string `json:"file_url"`

	// FileType is the caller-supplied content type.
	FileType string `json:"file_type"`

	// FileSize is the decoded size in bytes.
	FileSize int64 `json:"file_size"`

	// StoragePath is the full object key inside the user's bucket.
	StoragePath string `json:"storage_path"`

	// CreatedAt is the insert time.
	CreatedAt time.Time `json:"created_at"`
}

// NewFileRecord creates a new FileRecord with a fresh ID.
func NewFileRecord(userID uuid.UUID, fileName, fileURL, fileType string, size int64, storagePath string) *FileRecord {
	return &FileRecord{
		ID:          uuid.New(),
		UserID:      userID,
		FileName:    fileName,
		FileURL:     fileURL,
		FileType:    fileType,
		FileSize:    size,
		StoragePath: storagePath,
		CreatedAt:   time.Now().UTC(),
	}
}

// SizeMB returns the file size in megabytes.
func (f *FileRecord) SizeMB() float64 {
	return BytesToMB(f.FileSize)
}
