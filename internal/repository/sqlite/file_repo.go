package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/prn-tf/alexander-gateway/internal/domain"
	"github.com/prn-tf/alexander-gateway/internal/repository"
)

// fileRepository implements repository.FileRepository for SQLite.
type fileRepository struct {
	db *DB
}

// NewFileRepository creates a new SQLite file metadata repository.
func NewFileRepository(db *DB) repository.FileRepository {
	return &fileRepository{db: db}
}

// Create inserts a metadata row.
func (r *fileRepository) Create(ctx context.Context, file *domain.FileRecord) error {
	query := `
		INSERT INTO uploaded_files (id, user_id, file_name, file_url, file_type, file_size, storage_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		file.ID.String(),
		file.UserID.String(),
		file.FileName,
		file.FileURL,
		file.FileType,
		file.FileSize,
		file.StoragePath,
		formatTime(file.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create file record: %w", err)
	}

	return nil
}

// ListByUserID returns a user's files, newest first.
func (r *fileRepository) ListByUserID(ctx context.Context, userID uuid.UUID, opts repository.ListOptions) ([]*domain.FileRecord, error) {
	opts = opts.Normalize()

	query := `
		SELECT id, user_id, file_name, file_url, file_type, file_size, storage_path, created_at
		FROM uploaded_files
		WHERE user_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, userID.String(), opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []*domain.FileRecord
	for rows.Next() {
		var (
			id, owner, createdAt string
			f                    domain.FileRecord
		)
		if err := rows.Scan(
			&id,
			&owner,
			&f.FileName,
			&f.FileURL,
			&f.FileType,
			&f.FileSize,
			&f.StoragePath,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}

		if f.ID, err = parseUUID(id); err != nil {
			return nil, err
		}
		if f.UserID, err = parseUUID(owner); err != nil {
			return nil, err
		}
		if f.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		files = append(files, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating files: %w", err)
	}

	return files, nil
}

// SumSizeByUserID returns the total recorded bytes for a user.
func (r *fileRepository) SumSizeByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(file_size), 0) FROM uploaded_files WHERE user_id = ?`,
		userID.String(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum file sizes: %w", err)
	}

	return total, nil
}

// Ensure fileRepository implements repository.FileRepository
var _ repository.FileRepository = (*fileRepository)(nil)
