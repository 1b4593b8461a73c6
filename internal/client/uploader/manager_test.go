package uploader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reelproof/reelproof/internal/common"
	"github.com/reelproof/reelproof/internal/logging"
)

// fakeHandle is a scripted transfer handle: Run blocks until the test feeds
// an outcome or an abort arrives.
type fakeHandle struct {
	mu         sync.Mutex
	results    chan error
	onProgress func(uploaded, total int64)
	offset     int64
	syncErr    error
	aborts     []bool
	closed     bool
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{results: make(chan error, 4)}
}

func (h *fakeHandle) Run(ctx context.Context, onProgress func(uploaded, total int64)) error {
	h.mu.Lock()
	h.onProgress = onProgress
	h.mu.Unlock()
	select {
	case err := <-h.results:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *fakeHandle) Abort(hard bool) {
	h.mu.Lock()
	h.aborts = append(h.aborts, hard)
	h.mu.Unlock()
	select {
	case h.results <- ErrAborted:
	default:
	}
}

func (h *fakeHandle) Sync(ctx context.Context) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.offset, h.syncErr
}

func (h *fakeHandle) Offset() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.offset
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}

// progress drives the in-flight Run's progress callback.
func (h *fakeHandle) progress(uploaded, total int64) {
	h.mu.Lock()
	cb := h.onProgress
	h.offset = uploaded
	h.mu.Unlock()
	if cb != nil {
		cb(uploaded, total)
	}
}

func (h *fakeHandle) finish(err error) {
	h.results <- err
}

func (h *fakeHandle) abortLog() []bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]bool(nil), h.aborts...)
}

// fakeTransport vends fakeHandles and records them by record id.
type fakeTransport struct {
	mu      sync.Mutex
	handles map[string]*fakeHandle
	openErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handles: make(map[string]*fakeHandle)}
}

func (tr *fakeTransport) OpenTransfer(cfg TransferConfig, src FileSource) (TransferHandle, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.openErr != nil {
		return nil, tr.openErr
	}
	h := newFakeHandle()
	h.offset = cfg.Offset
	tr.handles[cfg.Metadata["record_id"]] = h
	return h, nil
}

func (tr *fakeTransport) handle(recordID string) *fakeHandle {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.handles[recordID]
}

// fakeRecords is an in-memory RecordService that counts deletions. When the
// create gates are set, CreateRecord signals createStarted and then blocks
// until createRelease is closed, letting a test act mid-handshake.
type fakeRecords struct {
	mu            sync.Mutex
	nextID        int
	states        map[string]RecordState
	deleted       []string
	createErr     error
	getErr        error
	createStarted chan struct{}
	createRelease chan struct{}
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{states: make(map[string]RecordState)}
}

func (r *fakeRecords) CreateRecord(ctx context.Context, meta RecordMeta) (*RecordRef, error) {
	r.mu.Lock()
	started, release := r.createStarted, r.createRelease
	r.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.nextID++
	id := fmt.Sprintf("rec-%d", r.nextID)
	r.states[id] = RecordAwaitingUpload
	return &RecordRef{ID: id, UploadURL: "/u/" + id}, nil
}

func (r *fakeRecords) GetRecord(ctx context.Context, id string) (*RecordInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	state, ok := r.states[id]
	if !ok {
		return nil, common.NewHTTPError(http.StatusNotFound, "not found")
	}
	return &RecordInfo{ID: id, State: state, UploadURL: "/u/" + id}, nil
}

func (r *fakeRecords) DeleteRecord(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
	delete(r.states, id)
	return nil
}

func (r *fakeRecords) deletions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deleted...)
}

// fakeCreds counts refreshes.
type fakeCreds struct {
	mu         sync.Mutex
	refreshes  int
	refreshErr error
}

func (c *fakeCreds) AccessToken() string { return "token" }

func (c *fakeCreds) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshes++
	return c.refreshErr
}

func (c *fakeCreds) refreshCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshes
}

// memResume is a map-backed ResumeStore.
type memResume struct {
	mu     sync.Mutex
	states map[string]ResumeState
}

func newMemResume() *memResume {
	return &memResume{states: make(map[string]ResumeState)}
}

func (m *memResume) Lookup(ctx context.Context, fingerprint string) (*ResumeState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[fingerprint]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &st, nil
}

func (m *memResume) Save(ctx context.Context, st ResumeState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.Fingerprint] = st
	return nil
}

func (m *memResume) Delete(ctx context.Context, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, fingerprint)
	return nil
}

type env struct {
	manager   *Manager
	store     *Store
	transport *fakeTransport
	records   *fakeRecords
	creds     *fakeCreds
	resume    *memResume
}

func newEnv(t *testing.T, maxConcurrent int) *env {
	t.Helper()
	e := &env{
		store:     NewStore(),
		transport: newFakeTransport(),
		records:   newFakeRecords(),
		creds:     &fakeCreds{},
		resume:    newMemResume(),
	}
	log := logging.NewNop()
	rec := NewReconciler(e.records, e.resume, log)
	e.manager = NewManager(Config{
		MaxConcurrent:       maxConcurrent,
		SpeedSampleInterval: time.Nanosecond,
	}, e.store, rec, e.transport, e.creds, log)
	e.manager.Start(context.Background())
	t.Cleanup(e.manager.Stop)
	return e
}

func testSource(name string, size int64) FileSource {
	return FileSource{
		Name:    name,
		Size:    size,
		ModTime: time.Unix(1700000000, 0),
		Open: func() (io.ReadSeekCloser, error) {
			return nopSeekCloser{strings.NewReader(strings.Repeat("x", int(size)))}, nil
		},
	}
}

type nopSeekCloser struct{ *strings.Reader }

func (nopSeekCloser) Close() error { return nil }

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func (e *env) counts() map[Status]int {
	counts := make(map[Status]int)
	for _, task := range e.store.Snapshot() {
		counts[task.Status]++
	}
	return counts
}

// waitUploading blocks until the task owns a live handle and returns it.
func (e *env) waitUploading(t *testing.T, id string) *fakeHandle {
	t.Helper()
	var h *fakeHandle
	waitFor(t, "task uploading with handle", func() bool {
		task, ok := e.store.Get(id)
		if !ok || task.Status != StatusUploading || task.RecordID == "" || task.handle == nil {
			return false
		}
		h = e.transport.handle(task.RecordID)
		return h != nil
	})
	return h
}

func TestEnqueueRespectsConcurrencyCap(t *testing.T) {
	e := newEnv(t, 3)

	sources := make([]FileSource, 5)
	for i := range sources {
		sources[i] = testSource(fmt.Sprintf("clip%d.mp4", i), 100)
	}
	added, err := e.manager.Enqueue(sources, CategoryVideo)
	require.NoError(t, err)
	require.Len(t, added, 5)

	waitFor(t, "3 uploading, 2 queued", func() bool {
		c := e.counts()
		return c[StatusUploading] == 3 && c[StatusQueued] == 2
	})

	// The cap holds at every observation point.
	for i := 0; i < 20; i++ {
		require.LessOrEqual(t, e.counts()[StatusUploading], 3)
		time.Sleep(time.Millisecond)
	}
}

func TestCompletionPromotesNextInFIFOOrder(t *testing.T) {
	e := newEnv(t, 3)

	sources := make([]FileSource, 5)
	for i := range sources {
		sources[i] = testSource(fmt.Sprintf("clip%d.mp4", i), 100)
	}
	added, err := e.manager.Enqueue(sources, CategoryVideo)
	require.NoError(t, err)

	h := e.waitUploading(t, added[0].ID)
	h.finish(nil)

	waitFor(t, "first task completed, capacity restored", func() bool {
		first, _ := e.store.Get(added[0].ID)
		c := e.counts()
		return first.Status == StatusCompleted && c[StatusUploading] == 3 && c[StatusQueued] == 1
	})

	// FIFO: the fourth task was promoted, the fifth still waits.
	fourth, _ := e.store.Get(added[3].ID)
	fifth, _ := e.store.Get(added[4].ID)
	require.Equal(t, StatusUploading, fourth.Status)
	require.Equal(t, StatusQueued, fifth.Status)

	first, _ := e.store.Get(added[0].ID)
	require.Equal(t, 100, first.Progress)
	require.NotNil(t, first.CompletedAt)
}

func TestAdmissionIsFIFO(t *testing.T) {
	e := newEnv(t, 2)

	sources := make([]FileSource, 4)
	for i := range sources {
		sources[i] = testSource(fmt.Sprintf("take%d.mov", i), 50)
	}
	added, err := e.manager.Enqueue(sources, CategoryVideo)
	require.NoError(t, err)

	waitFor(t, "first two promoted", func() bool {
		a, _ := e.store.Get(added[0].ID)
		b, _ := e.store.Get(added[1].ID)
		return a.Status == StatusUploading && b.Status == StatusUploading
	})
	c, _ := e.store.Get(added[2].ID)
	d, _ := e.store.Get(added[3].ID)
	require.Equal(t, StatusQueued, c.Status)
	require.Equal(t, StatusQueued, d.Status)
}

func TestAuthFailureRefreshesOnceAndResumes(t *testing.T) {
	e := newEnv(t, 1)

	added, err := e.manager.Enqueue([]FileSource{testSource("spot.mp4", 100)}, CategoryVideo)
	require.NoError(t, err)
	id := added[0].ID

	h := e.waitUploading(t, id)
	h.finish(common.NewHTTPError(http.StatusForbidden, "forbidden"))

	waitFor(t, "one refresh spent", func() bool {
		task, _ := e.store.Get(id)
		return e.creds.refreshCount() == 1 && task.AuthRefreshAttempts == 1
	})

	// Same task, same handle, never back through queued.
	task, _ := e.store.Get(id)
	require.Equal(t, StatusUploading, task.Status)

	h.finish(nil)
	waitFor(t, "completed after refresh", func() bool {
		task, _ := e.store.Get(id)
		return task.Status == StatusCompleted
	})
	require.Equal(t, 1, e.creds.refreshCount())
}

func TestSecondAuthFailureIsTerminal(t *testing.T) {
	e := newEnv(t, 1)

	added, err := e.manager.Enqueue([]FileSource{testSource("spot.mp4", 100)}, CategoryVideo)
	require.NoError(t, err)
	id := added[0].ID

	h := e.waitUploading(t, id)
	recordID := func() string { task, _ := e.store.Get(id); return task.RecordID }()

	h.finish(common.NewHTTPError(http.StatusForbidden, "forbidden"))
	waitFor(t, "refresh spent", func() bool { return e.creds.refreshCount() == 1 })
	h.finish(common.NewHTTPError(http.StatusForbidden, "forbidden"))

	waitFor(t, "terminal auth error", func() bool {
		task, _ := e.store.Get(id)
		return task.Status == StatusError
	})
	task, _ := e.store.Get(id)
	require.Equal(t, "authentication failed", task.Err)
	require.Empty(t, task.RecordID)
	require.Equal(t, 1, e.creds.refreshCount())
	require.Equal(t, []string{recordID}, e.records.deletions())
}

func TestPauseResumeKeepsProgress(t *testing.T) {
	e := newEnv(t, 1)

	added, err := e.manager.Enqueue([]FileSource{testSource("long.mp4", 100)}, CategoryVideo)
	require.NoError(t, err)
	id := added[0].ID

	h := e.waitUploading(t, id)
	h.progress(40, 100)
	waitFor(t, "progress at 40", func() bool {
		task, _ := e.store.Get(id)
		return task.Progress == 40
	})

	e.manager.Pause(id)
	waitFor(t, "paused", func() bool {
		task, _ := e.store.Get(id)
		return task.Status == StatusPaused
	})
	task, _ := e.store.Get(id)
	require.Equal(t, 40, task.Progress)

	e.manager.Resume(id)
	waitFor(t, "uploading again", func() bool {
		task, _ := e.store.Get(id)
		return task.Status == StatusUploading
	})
	task, _ = e.store.Get(id)
	require.GreaterOrEqual(t, task.Progress, 40)

	h.progress(70, 100)
	h.finish(nil)
	waitFor(t, "completed at 100", func() bool {
		task, _ := e.store.Get(id)
		return task.Status == StatusCompleted && task.Progress == 100
	})
	require.Empty(t, e.records.deletions())
}

func TestPauseDuringRecordHandshakeStopsTransfer(t *testing.T) {
	e := newEnv(t, 1)
	e.records.createStarted = make(chan struct{})
	e.records.createRelease = make(chan struct{})

	added, err := e.manager.Enqueue([]FileSource{testSource("cut.mp4", 100)}, CategoryVideo)
	require.NoError(t, err)
	id := added[0].ID

	// Pause lands while the record handshake is still in flight, before the
	// task owns a handle that Pause could abort.
	<-e.records.createStarted
	e.manager.Pause(id)
	close(e.records.createRelease)

	// Binding the handle to the now-paused task must soft-abort it so no
	// bytes move while the task shows paused.
	var h *fakeHandle
	waitFor(t, "bound handle soft-aborted", func() bool {
		task, ok := e.store.Get(id)
		if !ok || task.RecordID == "" {
			return false
		}
		h = e.transport.handle(task.RecordID)
		return h != nil && len(h.abortLog()) == 1
	})
	require.Equal(t, []bool{false}, h.abortLog())

	task, _ := e.store.Get(id)
	require.Equal(t, StatusPaused, task.Status)
	require.Equal(t, 0, task.Progress)
	require.Empty(t, e.records.deletions())

	// The task stays paused until the user acts.
	time.Sleep(20 * time.Millisecond)
	task, _ = e.store.Get(id)
	require.Equal(t, StatusPaused, task.Status)

	// Resume picks the kept handle back up and finishes normally.
	e.manager.Resume(id)
	h = e.waitUploading(t, id)
	h.progress(100, 100)
	h.finish(nil)
	waitFor(t, "completed after resume", func() bool {
		task, _ := e.store.Get(id)
		return task.Status == StatusCompleted && task.Progress == 100
	})
	require.Empty(t, e.records.deletions())
}

func TestCancelPausedTaskDeletesRecord(t *testing.T) {
	e := newEnv(t, 1)

	added, err := e.manager.Enqueue([]FileSource{testSource("cut.mp4", 100)}, CategoryVideo)
	require.NoError(t, err)
	id := added[0].ID

	h := e.waitUploading(t, id)
	recordID := func() string { task, _ := e.store.Get(id); return task.RecordID }()

	e.manager.Pause(id)
	waitFor(t, "paused", func() bool {
		task, _ := e.store.Get(id)
		return task.Status == StatusPaused
	})

	e.manager.Cancel(id)
	_, ok := e.store.Get(id)
	require.False(t, ok)

	waitFor(t, "record deleted", func() bool {
		for _, d := range e.records.deletions() {
			if d == recordID {
				return true
			}
		}
		return false
	})

	// Late progress for the removed task is dropped.
	h.progress(90, 100)
	_, ok = e.store.Get(id)
	require.False(t, ok)
}

func TestProgressIsMonotonic(t *testing.T) {
	e := newEnv(t, 1)

	added, err := e.manager.Enqueue([]FileSource{testSource("mono.mp4", 100)}, CategoryVideo)
	require.NoError(t, err)
	id := added[0].ID

	h := e.waitUploading(t, id)
	h.progress(10, 100)
	h.progress(30, 100)
	waitFor(t, "progress at 30", func() bool {
		task, _ := e.store.Get(id)
		return task.Progress == 30
	})

	// An out-of-order callback never moves the bar backwards.
	h.progress(20, 100)
	time.Sleep(20 * time.Millisecond)
	task, _ := e.store.Get(id)
	require.Equal(t, 30, task.Progress)
}

func TestRetryResetsState(t *testing.T) {
	e := newEnv(t, 1)

	added, err := e.manager.Enqueue([]FileSource{
		testSource("busy.mp4", 100),
		testSource("fail.mp4", 100),
	}, CategoryVideo)
	require.NoError(t, err)
	busyID, failID := added[0].ID, added[1].ID

	busy := e.waitUploading(t, busyID)

	// Fail the first task so the only slot moves to the second; retrying the
	// first then has no capacity and it must sit in queued with clean state.
	busy.finish(common.NewHTTPError(http.StatusInternalServerError, "boom"))
	waitFor(t, "first task errored", func() bool {
		task, _ := e.store.Get(busyID)
		return task.Status == StatusError
	})

	failing := e.waitUploading(t, failID)
	failing.progress(50, 100)

	e.manager.Retry(busyID)
	task, _ := e.store.Get(busyID)
	require.Equal(t, StatusQueued, task.Status)
	require.Equal(t, 0, task.Progress)
	require.Empty(t, task.Err)
	require.Empty(t, task.RecordID)
	require.Equal(t, float64(0), task.UploadSpeed)
	require.Equal(t, 0, task.AuthRefreshAttempts)
}

func TestRecordCreationFailureIsTerminal(t *testing.T) {
	e := newEnv(t, 1)
	e.records.createErr = common.NewHTTPError(http.StatusNotFound, "no such route")

	added, err := e.manager.Enqueue([]FileSource{testSource("nowhere.mp4", 100)}, CategoryVideo)
	require.NoError(t, err)

	waitFor(t, "endpoint-not-found error", func() bool {
		task, _ := e.store.Get(added[0].ID)
		return task.Status == StatusError && task.Err == "endpoint not found"
	})
	require.Empty(t, e.records.deletions())
}

func TestRefreshFailureIsTerminal(t *testing.T) {
	e := newEnv(t, 1)
	e.creds.refreshErr = common.NewHTTPError(http.StatusUnauthorized, "refresh expired")

	added, err := e.manager.Enqueue([]FileSource{testSource("auth.mp4", 100)}, CategoryVideo)
	require.NoError(t, err)
	id := added[0].ID

	h := e.waitUploading(t, id)
	h.finish(common.NewHTTPError(http.StatusUnauthorized, "expired"))

	waitFor(t, "terminal auth error", func() bool {
		task, _ := e.store.Get(id)
		return task.Status == StatusError && task.Err == "authentication failed"
	})
}

func TestEnqueueRejectsInvalidBatchEntirely(t *testing.T) {
	e := newEnv(t, 3)

	_, err := e.manager.Enqueue([]FileSource{
		testSource("good.mp4", 100),
		testSource("bad.exe", 100),
	}, CategoryVideo)
	require.Error(t, err)

	be, ok := AsBatchError(err)
	require.True(t, ok)
	require.Len(t, be.Files, 1)
	require.Equal(t, "bad.exe", be.Files[0].FileName)
	require.Empty(t, e.store.Snapshot())
}

func TestResumeStateSavedAndClearedOnCompletion(t *testing.T) {
	e := newEnv(t, 1)

	src := testSource("state.mp4", 100)
	added, err := e.manager.Enqueue([]FileSource{src}, CategoryVideo)
	require.NoError(t, err)
	id := added[0].ID

	h := e.waitUploading(t, id)
	h.progress(60, 100)

	fp := src.Fingerprint()
	waitFor(t, "resume state persisted", func() bool {
		st, err := e.resume.Lookup(context.Background(), fp)
		return err == nil && st.Offset == 60
	})

	h.finish(nil)
	waitFor(t, "resume state cleared", func() bool {
		_, err := e.resume.Lookup(context.Background(), fp)
		return err != nil
	})
}
