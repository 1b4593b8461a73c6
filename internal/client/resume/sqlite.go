// Package resume persists upload resume state in a local sqlite database so
// interrupted transfers can continue across process restarts.
package resume

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/reelproof/reelproof/internal/client/migrations"
	"github.com/reelproof/reelproof/internal/client/uploader"
	"github.com/reelproof/reelproof/internal/common"
	"github.com/reelproof/reelproof/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		log.Fatal("failed to set goose dialect:", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if necessary) the resume database at dsn and applies
// migrations. The caller owns closing the returned *sql.DB.
func Open(ctx context.Context, dsn string) (*sql.DB, *SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, NewSQLiteRepository(db), nil
}

func (r *SQLiteRepository) Lookup(ctx context.Context, fingerprint string) (*uploader.ResumeState, error) {
	st := &uploader.ResumeState{Fingerprint: fingerprint}
	err := r.db.QueryRowContext(ctx, `
		SELECT record_id, upload_url, byte_offset FROM resume_state WHERE fingerprint = ?
	`, fingerprint).Scan(&st.RecordID, &st.UploadURL, &st.Offset)
	if err == sql.ErrNoRows {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up resume state: %w", err)
	}
	return st, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, st uploader.ResumeState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO resume_state (fingerprint, record_id, upload_url, byte_offset, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(fingerprint) DO UPDATE SET
			record_id = excluded.record_id,
			upload_url = excluded.upload_url,
			byte_offset = excluded.byte_offset,
			updated_at = excluded.updated_at
	`, st.Fingerprint, st.RecordID, st.UploadURL, st.Offset)
	if err != nil {
		return fmt.Errorf("failed to save resume state: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, fingerprint string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM resume_state WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to delete resume state: %w", err)
	}
	return nil
}
