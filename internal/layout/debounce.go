package layout

import (
	"sync"
	"time"
)

// Scheduler runs at most one pending task per key after a quiet window.
// Scheduling a task for a key supersedes the one already pending.
// All methods are thread-safe.
type Scheduler struct {
	window time.Duration

	mu      sync.Mutex
	pending map[string]*task
}

type task struct {
	timer *time.Timer
	fn    func()
}

// NewScheduler creates a scheduler with the given quiet window.
func NewScheduler(window time.Duration) *Scheduler {
	return &Scheduler{
		window:  window,
		pending: make(map[string]*task),
	}
}

// Window returns the quiet window.
func (s *Scheduler) Window() time.Duration {
	return s.window
}

// Schedule arms fn for key, cancelling any task pending for key.
func (s *Scheduler) Schedule(key string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.pending[key]; ok {
		old.timer.Stop()
	}
	t := &task{fn: fn}
	t.timer = time.AfterFunc(s.window, func() { s.fire(key, t) })
	s.pending[key] = t
}

// fire runs t unless it was superseded or cancelled meanwhile.
func (s *Scheduler) fire(key string, t *task) {
	s.mu.Lock()
	if s.pending[key] != t {
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	s.mu.Unlock()

	t.fn()
}

// Flush runs the pending task for key now. It reports whether one was pending.
func (s *Scheduler) Flush(key string) bool {
	s.mu.Lock()
	t, ok := s.pending[key]
	if ok {
		t.timer.Stop()
		delete(s.pending, key)
	}
	s.mu.Unlock()

	if ok {
		t.fn()
	}
	return ok
}

// Cancel drops the pending task for key. It reports whether one was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.pending[key]
	if ok {
		t.timer.Stop()
		delete(s.pending, key)
	}
	return ok
}

// Pending reports whether a task is armed for key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Stop cancels every pending task.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, t := range s.pending {
		t.timer.Stop()
		delete(s.pending, key)
	}
}

// FlushAll runs every pending task now and returns how many ran.
func (s *Scheduler) FlushAll() int {
	s.mu.Lock()
	tasks := make([]*task, 0, len(s.pending))
	for key, t := range s.pending {
		t.timer.Stop()
		tasks = append(tasks, t)
		delete(s.pending, key)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		t.fn()
	}
	return len(tasks)
}
