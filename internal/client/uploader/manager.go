package uploader

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reelproof/reelproof/internal/logging"
)

const (
	DefaultMaxConcurrent       = 3
	DefaultSpeedSampleInterval = 500 * time.Millisecond
)

// Config tunes the queue manager.
type Config struct {
	// MaxConcurrent caps how many transfers run at once. Changing it at
	// runtime via SetMaxConcurrent affects future promotions only; running
	// transfers are never preempted.
	MaxConcurrent int
	// SpeedSampleInterval is the minimum spacing between speed
	// recalculations, keeping the displayed rate stable.
	SpeedSampleInterval time.Duration
}

// Manager owns the upload queue: admission under the concurrency cap,
// lifecycle control (pause/resume/cancel/retry), and applying session events
// to task state. The event loop is the only writer of task status
// transitions driven by transfer outcomes; control operations mutate tasks
// under the store lock and then wake the loop.
type Manager struct {
	store          *Store
	reconciler     *Reconciler
	transport      Transport
	creds          CredentialStore
	log            logging.Logger
	sampleInterval time.Duration

	maxConcurrent atomic.Int32

	events chan TransferEvent
	kick   chan struct{}

	onComplete func(Task)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sessWG sync.WaitGroup
}

func NewManager(cfg Config, store *Store, rec *Reconciler, tr Transport, creds CredentialStore, log logging.Logger) *Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.SpeedSampleInterval <= 0 {
		cfg.SpeedSampleInterval = DefaultSpeedSampleInterval
	}
	m := &Manager{
		store:          store,
		reconciler:     rec,
		transport:      tr,
		creds:          creds,
		log:            log,
		sampleInterval: cfg.SpeedSampleInterval,
		events:         make(chan TransferEvent, 64),
		kick:           make(chan struct{}, 1),
	}
	m.maxConcurrent.Store(int32(cfg.MaxConcurrent))
	return m
}

// OnComplete registers a callback invoked from the event loop whenever a
// task finishes successfully. Must be set before Start.
func (m *Manager) OnComplete(fn func(Task)) {
	m.onComplete = fn
}

// Start launches the event loop.
func (m *Manager) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.loop(m.ctx)
	m.log.Debug(ctx, "upload queue started", "max_concurrent", m.maxConcurrent.Load())
}

// Stop cancels the loop and all running transfers and waits for them.
// In-flight transfers keep their resume state and can be continued after a
// restart.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.sessWG.Wait()
	m.wg.Wait()
}

// Enqueue validates the selected files and adds them to the queue. The batch
// is all-or-nothing: a *BatchError rejects every file and nothing is added.
func (m *Manager) Enqueue(sources []FileSource, category AssetCategory) ([]Task, error) {
	added, err := m.store.Enqueue(sources, category)
	if err != nil {
		return nil, err
	}
	m.wake()
	return added, nil
}

// Pause soft-aborts the task's transfer, keeping its record and resume state
// so it can continue later. Only uploading tasks are affected; anything else
// is a no-op.
func (m *Manager) Pause(id string) {
	m.store.Patch(id, func(t *Task) {
		if t.Status != StatusUploading {
			return
		}
		t.Status = StatusPaused
		if t.handle != nil {
			t.handle.Abort(false)
		}
	})
	m.wake()
}

// Resume marks a paused task as wanting a slot. It goes back to uploading as
// soon as capacity allows, ahead of queued tasks, keeping its progress.
func (m *Manager) Resume(id string) {
	m.store.Patch(id, func(t *Task) {
		if t.Status == StatusPaused {
			t.resumeRequested = true
		}
	})
	m.wake()
}

// Cancel hard-aborts the task's transfer, best-effort deletes its server
// record, drops local resume state, and removes it from the queue. The task
// is removed immediately; the abort and cleanup finish in the background.
func (m *Manager) Cancel(id string) {
	removed := m.store.RemoveWhere(func(t *Task) bool { return t.ID == id })
	for _, t := range removed {
		m.teardown(t)
	}
	m.wake()
}

// Retry re-queues a failed task from scratch: progress, speed, error, the
// record binding, and the refresh budget all reset.
func (m *Manager) Retry(id string) {
	m.store.Patch(id, func(t *Task) {
		if t.Status != StatusError {
			return
		}
		t.Status = StatusQueued
		t.Progress = 0
		t.UploadSpeed = 0
		t.Err = ""
		t.RecordID = ""
		t.UploadURL = ""
		t.AuthRefreshAttempts = 0
		t.StartedAt = nil
		t.CompletedAt = nil
		t.handle = nil
	})
	m.wake()
}

// ClearCompleted removes finished tasks from the queue.
func (m *Manager) ClearCompleted() []Task {
	return m.store.RemoveWhere(func(t *Task) bool { return t.Status == StatusCompleted })
}

// ClearAll empties the whole queue. Unfinished tasks are cancelled the same
// way Cancel does it.
func (m *Manager) ClearAll() []Task {
	removed := m.store.RemoveWhere(func(t *Task) bool { return true })
	for _, t := range removed {
		if t.Status != StatusCompleted {
			m.teardown(t)
		}
	}
	return removed
}

// Snapshot returns the current queue contents in enqueue order.
func (m *Manager) Snapshot() []Task {
	return m.store.Snapshot()
}

// Get returns one task by id.
func (m *Manager) Get(id string) (Task, bool) {
	return m.store.Get(id)
}

// SetMaxConcurrent adjusts the concurrency cap for future promotions.
func (m *Manager) SetMaxConcurrent(n int) {
	if n <= 0 {
		return
	}
	m.maxConcurrent.Store(int32(n))
	m.wake()
}

// teardown aborts and cleans up after a task removed from the queue.
func (m *Manager) teardown(t Task) {
	if t.handle != nil {
		t.handle.Abort(true)
		_ = t.handle.Close()
	}
	if t.Status == StatusCompleted {
		return
	}
	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	m.sessWG.Add(1)
	go func() {
		defer m.sessWG.Done()
		m.reconciler.Cleanup(ctx, t.RecordID, t.Source.Fingerprint())
	}()
}

func (m *Manager) wake() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()
	for {
		m.admit(ctx)
		select {
		case <-ctx.Done():
			return
		case ev := <-m.events:
			m.apply(ctx, ev)
		case <-m.kick:
		}
	}
}

// admit promotes admittable tasks up to the concurrency cap and launches a
// session for each. Fire-and-forget: outcomes come back as events.
func (m *Manager) admit(ctx context.Context) {
	promoted := m.store.Promote(int(m.maxConcurrent.Load()))
	for _, t := range promoted {
		s := &session{
			taskID:         t.ID,
			source:         t.Source,
			category:       t.Category,
			handle:         t.handle,
			recordID:       t.RecordID,
			uploadURL:      t.UploadURL,
			authSpent:      t.AuthRefreshAttempts > 0,
			reconciler:     m.reconciler,
			transport:      m.transport,
			creds:          m.creds,
			events:         m.events,
			sampleInterval: m.sampleInterval,
			log:            m.log,
		}
		m.sessWG.Add(1)
		go func() {
			defer m.sessWG.Done()
			s.run(ctx)
		}()
	}
}

// apply folds one session event into task state.
func (m *Manager) apply(ctx context.Context, ev TransferEvent) {
	switch ev.Kind {
	case EventRecordBound:
		bound := m.store.Patch(ev.TaskID, func(t *Task) {
			t.RecordID = ev.RecordID
			t.UploadURL = ev.UploadURL
			t.handle = ev.Handle
			// Paused while the record handshake was still in flight: the
			// session is about to push bytes, so stop it before any flow.
			// The soft abort keeps the handle resumable and the session
			// winds down through its aborted path.
			if t.Status != StatusUploading {
				ev.Handle.Abort(false)
			}
		})
		if !bound {
			// Cancelled while the record handshake was in flight: orphan the
			// session and delete the record it just created.
			ev.Handle.Abort(true)
			_ = ev.Handle.Close()
			m.sessWG.Add(1)
			go func() {
				defer m.sessWG.Done()
				m.reconciler.Cleanup(ctx, ev.RecordID, "")
			}()
		}

	case EventProgress:
		m.store.Patch(ev.TaskID, func(t *Task) {
			if t.Status != StatusUploading {
				return
			}
			if p := percent(ev.BytesUploaded, ev.BytesTotal); p > t.Progress {
				t.Progress = p
			}
			t.UploadSpeed = ev.Speed
		})

	case EventAuthRefreshed:
		m.store.Patch(ev.TaskID, func(t *Task) {
			t.AuthRefreshAttempts++
		})

	case EventAborted:
		// Paused tasks keep their handle for resumption; a missing task was
		// cancelled and already torn down. Nothing to change either way.

	case EventCompleted:
		var done Task
		ok := m.store.Patch(ev.TaskID, func(t *Task) {
			now := time.Now()
			t.Status = StatusCompleted
			t.Progress = 100
			t.UploadSpeed = 0
			t.CompletedAt = &now
			if t.handle != nil {
				_ = t.handle.Close()
				t.handle = nil
			}
			done = *t
		})
		if ok {
			m.log.Info(ctx, "upload completed", "task_id", done.ID, "file", done.Source.Name)
			if m.onComplete != nil {
				m.onComplete(done)
			}
		}

	case EventFailed:
		m.store.Patch(ev.TaskID, func(t *Task) {
			t.Status = StatusError
			t.Err = ev.Failure.Message
			t.UploadSpeed = 0
			t.RecordID = ""
			t.UploadURL = ""
			t.handle = nil
		})
		m.log.Warn(ctx, "upload failed", "task_id", ev.TaskID, "reason", ev.Failure.Message)
	}
}

func percent(uploaded, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int(uploaded * 100 / total)
	if p > 100 {
		p = 100
	}
	return p
}
