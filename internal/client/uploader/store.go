package uploader

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store owns the canonical in-memory list of upload tasks. All mutations are
// applied atomically under its lock; readers get copies.
type Store struct {
	mu    sync.RWMutex
	tasks []*Task
	index map[string]*Task
	seq   uint64
}

func NewStore() *Store {
	return &Store{index: make(map[string]*Task)}
}

// Enqueue validates the selection and appends one queued task per file, in
// selection order. Validation is all-or-nothing: if any file is invalid the
// whole batch is rejected with a *BatchError listing every failure and no
// task is added.
func (s *Store) Enqueue(sources []FileSource, category AssetCategory) ([]Task, error) {
	var failures []FileError
	for _, src := range sources {
		if src.Size <= 0 {
			failures = append(failures, FileError{FileName: src.Name, Reason: "file is empty"})
			continue
		}
		if res := ValidateExtension(src.Name, category); !res.Valid {
			failures = append(failures, FileError{FileName: src.Name, Reason: res.Reason})
		}
	}
	if len(failures) > 0 {
		return nil, &BatchError{Files: failures}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := make([]Task, 0, len(sources))
	now := time.Now()
	for _, src := range sources {
		s.seq++
		t := &Task{
			ID:        uuid.NewString(),
			Source:    src,
			Category:  category,
			Status:    StatusQueued,
			CreatedAt: now,
			seq:       s.seq,
		}
		s.tasks = append(s.tasks, t)
		s.index[t.ID] = t
		added = append(added, *t)
	}
	return added, nil
}

// Patch applies mutate to the task matching id under the store lock.
// It is a no-op returning false when the id is unknown (the task may have
// been cancelled concurrently).
func (s *Store) Patch(id string, mutate func(*Task)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.index[id]
	if !ok {
		return false
	}
	mutate(t)
	return true
}

// Remove deletes the task from the store. The caller is responsible for
// aborting any in-flight transfer first.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

func (s *Store) removeLocked(id string) bool {
	if _, ok := s.index[id]; !ok {
		return false
	}
	delete(s.index, id)
	for i, t := range s.tasks {
		if t.ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			break
		}
	}
	return true
}

// RemoveWhere deletes every task the predicate matches and returns the
// removed copies.
func (s *Store) RemoveWhere(match func(*Task) bool) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []Task
	for _, t := range append([]*Task(nil), s.tasks...) {
		if match(t) {
			removed = append(removed, *t)
			s.removeLocked(t.ID)
		}
	}
	return removed
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.index[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Snapshot returns copies of all tasks in enqueue order.
func (s *Store) Snapshot() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	return out
}

// UploadingCount reports how many tasks are currently uploading.
func (s *Store) UploadingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.tasks {
		if t.Status == StatusUploading {
			n++
		}
	}
	return n
}

// Promote flips admittable tasks to StatusUploading until the uploading
// count reaches max, and returns copies of the promoted tasks. Paused tasks
// with a pending resume request win free slots ahead of queued tasks; within
// each group enqueue order decides. Promotion from queued resets progress;
// promotion from paused keeps it.
func (s *Store) Promote(max int) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := 0
	for _, t := range s.tasks {
		if t.Status == StatusUploading {
			active++
		}
	}

	var promoted []Task
	pick := func(match func(*Task) bool, fresh bool) {
		for _, t := range s.tasks {
			if active >= max {
				return
			}
			if !match(t) {
				continue
			}
			now := time.Now()
			t.Status = StatusUploading
			t.resumeRequested = false
			if fresh {
				t.Progress = 0
				t.UploadSpeed = 0
				t.StartedAt = &now
			}
			active++
			promoted = append(promoted, *t)
		}
	}

	pick(func(t *Task) bool { return t.Status == StatusPaused && t.resumeRequested }, false)
	pick(func(t *Task) bool { return t.Status == StatusQueued }, true)
	return promoted
}
