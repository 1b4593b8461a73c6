package uploader

import (
	"context"
	"errors"
)

// ErrAborted is returned (possibly wrapped) by TransferHandle.Run when the
// run was stopped by Abort rather than by a transfer failure.
var ErrAborted = errors.New("transfer aborted")

// RecordMeta describes the file a placeholder record is created for.
type RecordMeta struct {
	FileName string
	FileSize int64
	MimeType string
	Category AssetCategory
}

// RecordRef identifies a server-side placeholder record and the upload
// resource bound to it.
type RecordRef struct {
	ID        string
	UploadURL string
}

// RecordState is the server-reported processing state of a record.
type RecordState string

const (
	RecordAwaitingUpload RecordState = "awaiting_upload"
	RecordUploading      RecordState = "uploading"
	RecordUploaded       RecordState = "uploaded"
	RecordProcessed      RecordState = "processed"
)

// UploadEligible reports whether a record can still accept bytes.
func (s RecordState) UploadEligible() bool {
	return s == RecordAwaitingUpload || s == RecordUploading
}

// RecordInfo is the server's view of an existing record.
type RecordInfo struct {
	ID        string
	State     RecordState
	UploadURL string
	Offset    int64
}

// RecordService is the placeholder-record API the queue consumes.
// Implemented by the REST api client.
type RecordService interface {
	CreateRecord(ctx context.Context, meta RecordMeta) (*RecordRef, error)
	GetRecord(ctx context.Context, id string) (*RecordInfo, error)
	DeleteRecord(ctx context.Context, id string) error
}

// CredentialStore supplies bearer tokens and performs credential refresh.
// Refresh is invoked at most once per transfer attempt.
type CredentialStore interface {
	AccessToken() string
	Refresh(ctx context.Context) error
}

// ResumeState is the locally persisted link between a file fingerprint and a
// previously started upload.
type ResumeState struct {
	Fingerprint string
	RecordID    string
	UploadURL   string
	Offset      int64
}

// ResumeStore persists resume state across process restarts. Lookup returns
// common.ErrorNotFound when no state exists for the fingerprint.
type ResumeStore interface {
	Lookup(ctx context.Context, fingerprint string) (*ResumeState, error)
	Save(ctx context.Context, st ResumeState) error
	Delete(ctx context.Context, fingerprint string) error
}

// TransferConfig parameterizes one chunked transfer.
type TransferConfig struct {
	UploadURL string
	Offset    int64
	TotalSize int64
	Metadata  map[string]string
}

// TransferHandle is one live resumable chunked transfer.
//
// Run blocks until the transfer completes, is aborted, or fails, invoking
// onProgress as chunks are acknowledged by the server. Abort stops an
// in-flight Run; a soft abort leaves the transfer resumable, a hard abort
// does not. Sync re-reads the server-side offset so a resumed Run continues
// from the right position.
type TransferHandle interface {
	Run(ctx context.Context, onProgress func(uploaded, total int64)) error
	Abort(hard bool)
	Sync(ctx context.Context) (int64, error)
	Offset() int64
	Close() error
}

// Transport constructs transfer handles. Implemented by the chunked
// transport client.
type Transport interface {
	OpenTransfer(cfg TransferConfig, src FileSource) (TransferHandle, error)
}
