package layout

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/raphaelgruber/circles/internal/models"
)

// DefaultDebounce is the quiet window before a changed layout is saved.
const DefaultDebounce = time.Second

// saveTimeout bounds a debounced save, which runs detached from any request.
const saveTimeout = 10 * time.Second

// Store persists the single layout blob of the workspace.
type Store interface {
	GetGraphLayout(ctx context.Context) (*models.GraphLayout, error)
	SaveGraphLayout(ctx context.Context, layout models.GraphLayout) error
}

// SaveHook is called after every save attempt with the written snapshot.
type SaveHook func(layout models.GraphLayout, err error)

// Reconciler tracks the live state of one graph view and writes it back
// to the store after the view has been quiet for the scheduler's window.
type Reconciler struct {
	key    string
	store  Store
	sched  *Scheduler
	logger *slog.Logger
	onSave SaveHook

	mu     sync.Mutex
	stored *models.GraphLayout
	live   map[string]models.Point
	zoom   float64
	pan    models.Point
	closed bool
}

// NewReconciler creates a reconciler for the view identified by key.
// Views sharing a scheduler must use distinct keys.
func NewReconciler(key string, store Store, sched *Scheduler, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		key:    key,
		store:  store,
		sched:  sched,
		logger: logger.With("view", key),
		live:   map[string]models.Point{},
		zoom:   DefaultZoom,
	}
}

// OnSave registers a hook called after each save attempt.
func (r *Reconciler) OnSave(h SaveHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSave = h
}

// Load reads the stored layout and computes the initial placement for
// graph. A failed read falls back to a fresh force-directed placement.
func (r *Reconciler) Load(ctx context.Context, graph models.GraphResponse) Placement {
	stored, err := r.store.GetGraphLayout(ctx)
	if err != nil {
		r.logger.Warn("load graph layout failed, using default placement", "error", err)
		stored = nil
	}
	p := Initial(stored, graph)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored = stored
	r.live = maps.Clone(p.Layout.Nodes)
	r.zoom = p.Layout.Zoom
	r.pan = p.Layout.Pan
	return p
}

// MoveNode records a dragged node position and re-arms the save.
func (r *Reconciler) MoveNode(id string, p models.Point) {
	r.update(func() { r.live[id] = p })
}

// SetZoom records a zoom change and re-arms the save.
func (r *Reconciler) SetZoom(z float64) {
	r.update(func() { r.zoom = ClampZoom(z) })
}

// SetPan records a pan change and re-arms the save.
func (r *Reconciler) SetPan(p models.Point) {
	r.update(func() { r.pan = p })
}

func (r *Reconciler) update(fn func()) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	fn()
	r.mu.Unlock()

	r.sched.Schedule(r.key, r.debouncedSave)
}

// Snapshot returns the full layout that the next save would write.
func (r *Reconciler) Snapshot() models.GraphLayout {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Merge(r.stored, r.live, r.zoom, r.pan)
}

// Pending reports whether a debounced save is armed.
func (r *Reconciler) Pending() bool {
	return r.sched.Pending(r.key)
}

// SaveNow writes the current snapshot immediately, dropping any pending
// debounced save.
func (r *Reconciler) SaveNow(ctx context.Context) error {
	r.sched.Cancel(r.key)
	return r.save(ctx)
}

func (r *Reconciler) debouncedSave() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	// Errors are logged by save; an interaction never sees them.
	_ = r.save(ctx)
}

func (r *Reconciler) save(ctx context.Context) error {
	snapshot := r.Snapshot()

	err := r.store.SaveGraphLayout(ctx, snapshot)
	if err != nil {
		r.logger.Warn("save graph layout failed", "error", err)
		err = fmt.Errorf("save graph layout: %w", err)
	} else {
		r.logger.Debug("graph layout saved", "nodes", len(snapshot.Nodes), "zoom", snapshot.Zoom)
	}

	r.mu.Lock()
	if err == nil {
		saved := snapshot
		r.stored = &saved
	}
	hook := r.onSave
	r.mu.Unlock()

	if hook != nil {
		hook(snapshot, err)
	}
	return err
}

// Close flushes a pending save and stops accepting changes.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.sched.Flush(r.key)
}
