package mediarecords

import (
	"context"

	"github.com/reelproof/reelproof/internal/server/models"
)

// Repository is the persistence contract for media records.
type Repository interface {
	Create(ctx context.Context, rec *models.MediaRecord) (*models.MediaRecord, error)
	GetByID(ctx context.Context, id string) (*models.MediaRecord, error)
	// UpdateProgress advances the staged byte offset and state of an
	// upload-eligible record.
	UpdateProgress(ctx context.Context, id string, offset int64, state string) error
	// Finalize marks the record uploaded and stores its object-storage key.
	Finalize(ctx context.Context, id string, storageKey string) error
	Delete(ctx context.Context, id string) error
}
