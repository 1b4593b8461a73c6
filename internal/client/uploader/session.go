package uploader

import (
	"context"
	"errors"
	"time"

	"github.com/reelproof/reelproof/internal/logging"
)

// session drives one transfer attempt for one task in its own goroutine.
// It never touches task state directly; every outcome is reported to the
// Manager's event loop as a TransferEvent.
type session struct {
	taskID   string
	source   FileSource
	category AssetCategory

	// handle is non-nil when resuming a paused task whose transfer was
	// soft-aborted; the session reuses it instead of opening a new one.
	handle TransferHandle
	// recordID/uploadURL accompany a reused handle.
	recordID  string
	uploadURL string
	// authSpent carries the refresh budget already consumed by earlier runs
	// of the same attempt.
	authSpent bool

	reconciler     *Reconciler
	transport      Transport
	creds          CredentialStore
	events         chan<- TransferEvent
	sampleInterval time.Duration
	log            logging.Logger

	ctx context.Context

	resumed     bool
	fingerprint string

	speed      float64
	lastSample time.Time
	lastBytes  int64
}

func (s *session) run(ctx context.Context) {
	s.ctx = ctx
	s.fingerprint = s.source.Fingerprint()

	if s.handle == nil {
		if !s.open(ctx) {
			return
		}
	} else {
		// A reused handle may be stale relative to the server after a long
		// pause; re-read the committed offset before pushing more bytes.
		s.resumed = true
		if _, err := s.handle.Sync(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.fail(ctx, classifyTransfer(err, true))
			return
		}
	}

	s.lastSample = time.Now()
	s.lastBytes = s.handle.Offset()

	for {
		err := s.handle.Run(ctx, s.onProgress)
		if err == nil {
			s.reconciler.ClearResume(ctx, s.fingerprint)
			s.send(TransferEvent{TaskID: s.taskID, Kind: EventCompleted,
				BytesUploaded: s.source.Size, BytesTotal: s.source.Size})
			return
		}
		if ctx.Err() != nil {
			// Manager shutdown; leave everything as-is.
			return
		}
		if errors.Is(err, ErrAborted) {
			s.send(TransferEvent{TaskID: s.taskID, Kind: EventAborted})
			return
		}
		if isAuthStatus(err) && !s.authSpent {
			s.authSpent = true
			s.send(TransferEvent{TaskID: s.taskID, Kind: EventAuthRefreshed})
			if rerr := s.creds.Refresh(ctx); rerr != nil {
				if ctx.Err() != nil {
					return
				}
				s.fail(ctx, Failure{Kind: FailureAuth, Message: "authentication failed"})
				return
			}
			// The server may have committed chunks the failed response never
			// acknowledged; sync so the retry continues from the right spot.
			if _, serr := s.handle.Sync(ctx); serr != nil {
				if ctx.Err() != nil {
					return
				}
				s.fail(ctx, classifyTransfer(serr, s.resumed))
				return
			}
			continue
		}
		s.fail(ctx, classifyTransfer(err, s.resumed))
		return
	}
}

// open prepares the server-side record and binds a transfer handle to it.
func (s *session) open(ctx context.Context) bool {
	ref, offset, resumed, err := s.reconciler.Prepare(ctx, s.source, s.category)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		f := classifyCreate(err)
		s.send(TransferEvent{TaskID: s.taskID, Kind: EventFailed, Failure: &f})
		return false
	}
	s.resumed = resumed
	s.recordID = ref.ID
	s.uploadURL = ref.UploadURL

	handle, err := s.transport.OpenTransfer(TransferConfig{
		UploadURL: ref.UploadURL,
		Offset:    offset,
		TotalSize: s.source.Size,
		Metadata: map[string]string{
			"filename":  s.source.Name,
			"record_id": ref.ID,
		},
	}, s.source)
	if err != nil {
		s.fail(ctx, classifyTransfer(err, resumed))
		return false
	}
	s.handle = handle
	if !resumed {
		s.reconciler.SaveProgress(ctx, s.fingerprint, ref, offset)
	}

	s.send(TransferEvent{TaskID: s.taskID, Kind: EventRecordBound,
		RecordID: ref.ID, UploadURL: ref.UploadURL, Handle: handle})
	return true
}

// onProgress is invoked by the transfer as chunks are acknowledged. Speed is
// resampled at most once per sampleInterval and smoothed so the displayed
// rate does not jitter with individual chunks; resume state is persisted on
// the same cadence.
func (s *session) onProgress(uploaded, total int64) {
	now := time.Now()
	elapsed := now.Sub(s.lastSample)
	if elapsed < s.sampleInterval {
		return
	}
	inst := float64(uploaded-s.lastBytes) / elapsed.Seconds()
	if s.speed == 0 {
		s.speed = inst
	} else {
		s.speed = 0.3*inst + 0.7*s.speed
	}
	s.lastSample = now
	s.lastBytes = uploaded

	s.reconciler.SaveProgress(s.ctx, s.fingerprint,
		RecordRef{ID: s.recordID, UploadURL: s.uploadURL}, uploaded)

	s.send(TransferEvent{TaskID: s.taskID, Kind: EventProgress,
		BytesUploaded: uploaded, BytesTotal: total, Speed: s.speed})
}

// fail reconciles the server record for an unrecoverable failure and reports
// the classified outcome. A stale record is already gone on the server, so
// only the local resume state is dropped for it.
func (s *session) fail(ctx context.Context, f Failure) {
	if s.handle != nil {
		_ = s.handle.Close()
	}
	recordID := s.recordID
	if f.Kind == FailureStaleRecord {
		recordID = ""
	}
	s.reconciler.Cleanup(ctx, recordID, s.fingerprint)
	s.send(TransferEvent{TaskID: s.taskID, Kind: EventFailed, Failure: &f})
}

// send delivers an event to the manager loop, giving up on shutdown.
func (s *session) send(ev TransferEvent) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}
