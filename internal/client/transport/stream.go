package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/reelproof/reelproof/internal/common"
)

// ErrAborted is returned by Run when the stream was stopped via Abort.
var ErrAborted = errors.New("transfer aborted")

// ErrClosed is returned when a stream is used after Close or a hard abort.
var ErrClosed = errors.New("stream closed")

// Stream is one resumable upload of one file to one upload resource. A
// Stream survives across Run invocations: a soft abort stops the current Run
// and a later Run continues from the committed offset.
type Stream struct {
	client *Client

	url      string
	total    int64
	metadata map[string]string
	open     func() (io.ReadSeekCloser, error)

	mu        sync.Mutex
	offset    int64
	runCancel context.CancelFunc
	aborted   bool
	closed    bool
}

// OpenStream binds a stream to an upload resource. offset is the position to
// continue from (0 for a fresh upload), total the full file size, and open
// yields the file bytes; it is invoked once per Run.
func (c *Client) OpenStream(url string, offset, total int64, metadata map[string]string, open func() (io.ReadSeekCloser, error)) *Stream {
	return &Stream{
		client:   c,
		url:      url,
		total:    total,
		metadata: metadata,
		open:     open,
		offset:   offset,
	}
}

// Offset returns the last server-acknowledged byte offset.
func (s *Stream) Offset() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Abort stops an in-flight Run. A soft abort leaves the stream usable for a
// later Run from the committed offset; a hard abort closes it for good.
func (s *Stream) Abort(hard bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = true
	if hard {
		s.closed = true
	}
	if s.runCancel != nil {
		s.runCancel()
	}
}

// Close releases the stream. Safe to call more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.runCancel != nil {
		s.runCancel()
	}
	return nil
}

// Sync re-reads the server-side committed offset via HEAD. Used after an
// interruption where the client cannot know how much of the last chunk the
// server kept.
func (s *Stream) Sync(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.url, nil)
	if err != nil {
		return 0, err
	}
	s.decorate(req)

	resp, err := s.client.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, common.NewHTTPError(resp.StatusCode, resp.Status)
	}
	offset, err := strconv.ParseInt(resp.Header.Get(common.UploadOffsetHeaderName), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s header: %w", common.UploadOffsetHeaderName, err)
	}

	s.mu.Lock()
	s.offset = offset
	s.mu.Unlock()
	return offset, nil
}

// Run pushes chunks until the upload completes, the context is cancelled, or
// a non-transient error occurs. onProgress is invoked after every
// server-acknowledged chunk with the committed byte count and the total.
// Transient failures (network errors, 5xx) are retried per the client's
// delay schedule with an offset re-sync before each retry; everything else
// surfaces immediately. An Abort during Run returns ErrAborted.
func (s *Stream) Run(ctx context.Context, onProgress func(uploaded, total int64)) error {
	runCtx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer s.end()

	file, err := s.open()
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer file.Close()

	retries := 0
	for {
		offset := s.Offset()
		if offset >= s.total {
			return nil
		}
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			return fmt.Errorf("seeking source: %w", err)
		}

		err := s.patchChunk(runCtx, file, offset)
		if err == nil {
			retries = 0
			if onProgress != nil {
				onProgress(s.Offset(), s.total)
			}
			continue
		}
		if runCtx.Err() != nil {
			return s.interrupted(ctx)
		}
		if !transient(err) || retries >= len(s.client.retryDelays) {
			return err
		}

		delay := s.client.retryDelays[retries]
		retries++
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-runCtx.Done():
				return s.interrupted(ctx)
			}
		}
		// The server may have committed part of the failed chunk.
		if _, serr := s.Sync(runCtx); serr != nil {
			if runCtx.Err() != nil {
				return s.interrupted(ctx)
			}
			return serr
		}
	}
}

// patchChunk sends one chunk starting at offset and records the committed
// offset from the response.
func (s *Stream) patchChunk(ctx context.Context, file io.Reader, offset int64) error {
	size := s.client.chunkSize
	if rest := s.total - offset; rest < size {
		size = rest
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, s.url, io.LimitReader(file, size))
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentTypeOffsetStream)
	req.Header.Set(common.UploadOffsetHeaderName, strconv.FormatInt(offset, 10))
	req.Header.Set(common.UploadLengthHeaderName, strconv.FormatInt(s.total, 10))
	s.decorate(req)

	resp, err := s.client.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return common.NewHTTPError(resp.StatusCode, resp.Status)
	}

	committed := offset + size
	if v := resp.Header.Get(common.UploadOffsetHeaderName); v != "" {
		parsed, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			return fmt.Errorf("parsing %s header: %w", common.UploadOffsetHeaderName, perr)
		}
		committed = parsed
	}

	s.mu.Lock()
	s.offset = committed
	s.mu.Unlock()
	return nil
}

// begin installs the per-run cancel function and rejects reuse of closed or
// already-running streams.
func (s *Stream) begin(ctx context.Context) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.runCancel != nil {
		return nil, errors.New("stream already running")
	}
	// An abort that arrived between runs applies to this Run: report it
	// without sending any bytes. The flag is consumed so a later Run can
	// continue from the committed offset.
	if s.aborted {
		s.aborted = false
		return nil, ErrAborted
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel
	return runCtx, nil
}

func (s *Stream) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCancel != nil {
		s.runCancel()
		s.runCancel = nil
	}
}

// interrupted distinguishes an Abort from a parent-context cancellation.
func (s *Stream) interrupted(parent context.Context) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		s.aborted = false
		return ErrAborted
	}
	return context.Canceled
}

func (s *Stream) decorate(req *http.Request) {
	for k, v := range s.metadata {
		req.Header.Set("Upload-Metadata-"+k, v)
	}
	if s.client.beforeReq != nil {
		s.client.beforeReq(req)
	}
}

// transient reports whether an error is worth retrying on the delay
// schedule: network failures and server-side 5xx. Client-side statuses,
// including auth failures, surface immediately.
func transient(err error) bool {
	var he *common.HTTPError
	if errors.As(err, &he) {
		return he.Code >= 500
	}
	return true
}
