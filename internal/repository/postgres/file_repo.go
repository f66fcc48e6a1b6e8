package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/prn-tf/alexander-gateway/internal/domain"
	"github.com/prn-tf/alexander-gateway/internal/repository"
)

// fileRepository implements repository.FileRepository.
type fileRepository struct {
	q Querier
}

// NewFileRepository creates a new PostgreSQL file metadata repository.
func NewFileRepository(db *DB) repository.FileRepository {
	return &fileRepository{q: db.Pool}
}

// Create inserts a metadata row.
func (r *fileRepository) Create(ctx context.Context, file *domain.FileRecord) error {
	query := `
		INSERT INTO uploaded_files (id, user_id, file_name, file_url, file_type, file_size, storage_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.Exec(ctx, query,
		file.ID,
		file.UserID,
		file.FileName,
		file.FileURL,
		file.FileType,
		file.FileSize,
		file.StoragePath,
		file.CreatedAt,
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
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.q.Query(ctx, query, userID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []*domain.FileRecord
	for rows.Next() {
		f := &domain.FileRecord{}
		if err := rows.Scan(
			&f.ID,
			&f.UserID,
			&f.FileName,
			&f.FileURL,
			&f.FileType,
			&f.FileSize,
			&f.StoragePath,
			&f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating files: %w", err)
	}

	return files, nil
}

// SumSizeByUserID returns the total recorded bytes for a user.
func (r *fileRepository) SumSizeByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(file_size), 0)::BIGINT FROM uploaded_files WHERE user_id = $1`

	var total int64
	if err := r.q.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum file sizes: %w", err)
	}

	return total, nil
}

// Ensure fileRepository implements repository.FileRepository
var _ repository.FileRepository = (*fileRepository)(nil)
