package models

import "time"

// Record states, in lifecycle order. A record is upload-eligible while in
// StateAwaitingUpload or StateUploading.
const (
	StateAwaitingUpload = "awaiting_upload"
	StateUploading      = "uploading"
	StateUploaded       = "uploaded"
	StateProcessed      = "processed"
)

// MediaRecord is the server-side placeholder for an expected client upload.
// It is created before any bytes arrive and tracks the staged byte offset
// until the upload finishes and the file is pushed to object storage.
type MediaRecord struct {
	ID         string
	UserID     string
	FileName   string
	FileSize   int64
	MimeType   string
	Category   string
	State      string
	Offset     int64
	StorageKey string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UploadEligible reports whether the record can still accept bytes.
func (r *MediaRecord) UploadEligible() bool {
	return r.State == StateAwaitingUpload || r.State == StateUploading
}
