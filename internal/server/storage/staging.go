// Package storage stages partially uploaded files on the local filesystem
// until an upload completes and the bytes are pushed to object storage.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/reelproof/reelproof/internal/common"
	"github.com/reelproof/reelproof/internal/filex"
)

// Staging holds one partial file per record id. The file size on disk is the
// authoritative committed offset for an in-progress upload.
type Staging struct {
	dir string
}

// NewStaging creates the staging directory if needed.
func NewStaging(dir string) (*Staging, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	return &Staging{dir: abs}, nil
}

// Size reports the committed byte count for a record; 0 if nothing was
// staged yet.
func (s *Staging) Size(recordID string) (int64, error) {
	fi, err := os.Stat(s.path(recordID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("stat staging file: %w", err)
	}
	return fi.Size(), nil
}

// Append writes a chunk at the end of the staged file, which must currently
// be exactly offset bytes long, and returns the new committed size. A failed
// partial write is truncated back so the next attempt can repeat the chunk.
func (s *Staging) Append(recordID string, offset int64, data io.Reader) (int64, error) {
	path := s.path(recordID)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening staging file: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat staging file: %w", err)
	}
	if fi.Size() != offset {
		return fi.Size(), common.ErrOffsetMismatch
	}

	n, err := f.Seek(offset, io.SeekStart)
	if err != nil {
		return 0, fmt.Errorf("seeking staging file: %w", err)
	}
	written, err := io.Copy(f, data)
	if err != nil {
		// Drop the partial tail so the offset stays chunk-aligned.
		_ = f.Truncate(n)
		return n, fmt.Errorf("writing chunk: %w", err)
	}
	return offset + written, nil
}

// Open returns the staged bytes for reading.
func (s *Staging) Open(recordID string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(recordID))
	if err != nil {
		return nil, fmt.Errorf("opening staged file: %w", err)
	}
	return f, nil
}

// Remove deletes any staged bytes for the record. Removing a record that was
// never staged is not an error.
func (s *Staging) Remove(recordID string) error {
	if err := os.Remove(s.path(recordID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing staged file: %w", err)
	}
	return nil
}

func (s *Staging) path(recordID string) string {
	return filepath.Join(s.dir, recordID+".part")
}
