// Package mediarecords provides a PostgreSQL-backed repository for the
// placeholder records that track expected and in-progress client uploads.
package mediarecords

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/reelproof/reelproof/internal/common"
	"github.com/reelproof/reelproof/internal/dbx"
	"github.com/reelproof/reelproof/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.MediaRecord) (*models.MediaRecord, error) {
	query := `
		INSERT INTO media_records (user_id, file_name, file_size, mime_type, category, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		rec.UserID, rec.FileName, rec.FileSize, rec.MimeType, rec.Category, models.StateAwaitingUpload).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	rec.State = models.StateAwaitingUpload
	return rec, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.MediaRecord, error) {
	query := `
		SELECT id, user_id, file_name, file_size, mime_type, category, state, byte_offset, storage_key, created_at, updated_at
		FROM media_records
		WHERE id = $1
	`
	rec := &models.MediaRecord{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.UserID, &rec.FileName, &rec.FileSize, &rec.MimeType, &rec.Category,
		&rec.State, &rec.Offset, &rec.StorageKey, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) UpdateProgress(ctx context.Context, id string, offset int64, state string) error {
	query := `
		UPDATE media_records
		SET byte_offset = $2, state = $3, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, offset, state); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Finalize(ctx context.Context, id string, storageKey string) error {
	query := `
		UPDATE media_records
		SET state = $2, storage_key = $3, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, models.StateUploaded, storageKey); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM media_records
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
