package uploader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"
)

// Status represents the lifecycle of an upload task.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusUploading Status = "uploading"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// FileSource describes the bytes a task will transfer. The task holds a
// reference to the source, never a copy of the data. Open is invoked once
// per transfer attempt.
type FileSource struct {
	Name    string
	Size    int64
	ModTime time.Time
	Open    func() (io.ReadSeekCloser, error)
}

// NewFileSource builds a FileSource backed by a file on disk.
func NewFileSource(path string) (FileSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return FileSource{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return FileSource{}, fmt.Errorf("%s is a directory", path)
	}
	return FileSource{
		Name:    fi.Name(),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
		Open: func() (io.ReadSeekCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// Fingerprint identifies the file contents for resume matching: the same
// name/size/mtime triple maps a re-selected file to a previously interrupted
// transfer.
func (f FileSource) Fingerprint() string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", f.Name, f.Size, f.ModTime.UnixNano())))
	return hex.EncodeToString(h[:16])
}

// Task is one file's upload lifecycle record.
type Task struct {
	ID       string
	Source   FileSource
	Category AssetCategory

	// RecordID references the server-side placeholder record; empty until
	// record creation succeeds, cleared again when the record is deleted.
	RecordID  string
	UploadURL string

	Status      Status
	Progress    int     // percent, 0–100
	UploadSpeed float64 // smoothed bytes/sec, advisory only
	Err         string  // set only when Status == StatusError

	// AuthRefreshAttempts counts credential refreshes spent on the current
	// transfer attempt; at most one is allowed.
	AuthRefreshAttempts int

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	// handle is the live transfer bound to this task. Exclusively owned:
	// non-nil only while a transfer is in flight or paused-but-resumable.
	handle TransferHandle

	// resumeRequested marks a paused task waiting for a free slot.
	resumeRequested bool

	// seq preserves enqueue order for FIFO admission.
	seq uint64
}

// InFlight reports whether the task currently owns a live transfer handle.
func (t *Task) InFlight() bool {
	return t.handle != nil
}
