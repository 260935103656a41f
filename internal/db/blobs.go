package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type BlobRecord struct {
	ID          string
	OwnerID     string
	Kind        string
	StoragePath string
	MimeType    string
	SizeBytes   int64
	Width       int
	Height      int
	CreatedAt   time.Time
}

type BlobRepository struct {
	db *DB
}

func NewBlobRepository(db *DB) *BlobRepository {
	return &BlobRepository{db: db}
}

func (r *BlobRepository) Create(ctx context.Context, b BlobRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO blobs (id, owner_id, kind, storage_path, mime_type, size_bytes, width, height, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.OwnerID, b.Kind, b.StoragePath, b.MimeType, b.SizeBytes, b.Width, b.Height, b.CreatedAt.UTC(),
	)
	if IsUniqueConstraintError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("creating blob: %w", err)
	}
	return nil
}

func (r *BlobRepository) FindByID(ctx context.Context, id string) (*BlobRecord, error) {
	var b BlobRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, kind, storage_path, mime_type, size_bytes, width, height, created_at
		FROM blobs WHERE id = ?`, id,
	).Scan(&b.ID, &b.OwnerID, &b.Kind, &b.StoragePath, &b.MimeType, &b.SizeBytes, &b.Width, &b.Height, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying blob: %w", err)
	}
	return &b, nil
}

func (r *BlobRepository) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM blobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return checkRowsAffected(result)
}

// ListUnreferenced returns blobs created before cutoff that no user profile
// points at any more.
func (r *BlobRepository) ListUnreferenced(ctx context.Context, cutoff time.Time, limit int) ([]BlobRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT b.id, b.owner_id, b.kind, b.storage_path, b.mime_type, b.size_bytes, b.width, b.height, b.created_at
		FROM blobs b
		WHERE b.created_at < ?
		AND NOT EXISTS (
			SELECT 1 FROM users u WHERE u.profile_picture LIKE '%/media/' || b.id
		)
		ORDER BY b.created_at
		LIMIT ?`,
		cutoff.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying unreferenced blobs: %w", err)
	}
	defer rows.Close()

	var out []BlobRecord
	for rows.Next() {
		var b BlobRecord
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.Kind, &b.StoragePath, &b.MimeType, &b.SizeBytes, &b.Width, &b.Height, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning blob: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
