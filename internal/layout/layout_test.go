package layout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/circles/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	layout *models.GraphLayout
	writes []models.GraphLayout
	getErr error
	putErr error
}

func (m *memStore) GetGraphLayout(ctx context.Context) (*models.GraphLayout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.layout, nil
}

func (m *memStore) SaveGraphLayout(ctx context.Context, l models.GraphLayout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.writes = append(m.writes, l)
	m.layout = &l
	return nil
}

func (m *memStore) Writes() []models.GraphLayout {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.GraphLayout(nil), m.writes...)
}

func twoNodeGraph() models.GraphResponse {
	return models.GraphResponse{
		Nodes: []models.GraphNode{{ID: 1, Name: "张三"}, {ID: 2, Name: "李四"}},
		Edges: []models.GraphEdge{{Source: 1, Target: 2, RelationType: "同事"}},
	}
}

func TestInitialWithStoredLayout(t *testing.T) {
	stored := &models.GraphLayout{
		Nodes: map[string]models.Point{"1": {X: 10, Y: 20}},
		Zoom:  1.2,
	}

	p := Initial(stored, twoNodeGraph())

	assert.Equal(t, models.Point{X: 10, Y: 20}, p.Layout.Nodes["1"])
	require.Contains(t, p.Layout.Nodes, "2")
	assert.NotEqual(t, models.Point{X: 10, Y: 20}, p.Layout.Nodes["2"])
	assert.Equal(t, 1.2, p.Layout.Zoom)
	assert.False(t, p.Fit)
}

func TestInitialWithoutStoredLayout(t *testing.T) {
	p := Initial(nil, twoNodeGraph())
	require.Len(t, p.Layout.Nodes, 2)
	assert.NotEqual(t, p.Layout.Nodes["1"], p.Layout.Nodes["2"])
	assert.Equal(t, DefaultZoom, p.Layout.Zoom)
	assert.True(t, p.Fit)

	again := Initial(nil, twoNodeGraph())
	assert.Equal(t, p.Layout.Nodes, again.Layout.Nodes, "placement must be deterministic")
}

func TestInitialLegacyLayoutFits(t *testing.T) {
	legacy, err := models.ParseGraphLayout([]byte(`{"1":{"x":5,"y":6}}`))
	require.NoError(t, err)

	p := Initial(legacy, twoNodeGraph())
	assert.Equal(t, models.Point{X: 5, Y: 6}, p.Layout.Nodes["1"])
	assert.True(t, p.Fit)
}

func TestForcePlaceSeparatesNodes(t *testing.T) {
	g := models.GraphResponse{}
	for i := int64(1); i <= 6; i++ {
		g.Nodes = append(g.Nodes, models.GraphNode{ID: i})
	}
	pos := ForcePlace(g, nil)
	require.Len(t, pos, 6)
	seen := map[models.Point]bool{}
	for _, p := range pos {
		assert.False(t, seen[p], "two nodes share a position")
		seen[p] = true
	}
	assert.Empty(t, ForcePlace(models.GraphResponse{}, nil))
}

func TestMerge(t *testing.T) {
	stored := &models.GraphLayout{
		Nodes: map[string]models.Point{"1": {X: 10, Y: 20}, "9": {X: 1, Y: 1}},
		Zoom:  1.2,
	}
	live := map[string]models.Point{"1": {X: 30, Y: 40}, "2": {X: 5, Y: 5}}

	got := Merge(stored, live, 1.5, models.Point{X: 7, Y: 8})

	assert.Equal(t, models.Point{X: 30, Y: 40}, got.Nodes["1"], "live wins")
	assert.Equal(t, models.Point{X: 1, Y: 1}, got.Nodes["9"], "stored-only node kept")
	assert.Equal(t, models.Point{X: 5, Y: 5}, got.Nodes["2"])
	assert.Equal(t, 1.5, got.Zoom)
	assert.Equal(t, models.Point{X: 7, Y: 8}, got.Pan)

	// Merge never mutates the stored layout.
	assert.Equal(t, models.Point{X: 10, Y: 20}, stored.Nodes["1"])
}

func TestClampZoom(t *testing.T) {
	assert.Equal(t, DefaultZoom, ClampZoom(0))
	assert.Equal(t, MinZoom, ClampZoom(0.1))
	assert.Equal(t, MaxZoom, ClampZoom(9))
	assert.Equal(t, 1.3, ClampZoom(1.3))
}

func TestSchedulerSupersedes(t *testing.T) {
	s := NewScheduler(20 * time.Millisecond)
	var mu sync.Mutex
	var ran []int

	for i := 1; i <= 3; i++ {
		s.Schedule("view", func() {
			mu.Lock()
			ran = append(ran, i)
			mu.Unlock()
		})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ran) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{3}, ran)
}

func TestSchedulerKeysAreIndependent(t *testing.T) {
	s := NewScheduler(time.Hour)
	s.Schedule("a", func() {})
	s.Schedule("b", func() {})
	assert.True(t, s.Cancel("a"))
	assert.False(t, s.Pending("a"))
	assert.True(t, s.Pending("b"))
	s.Stop()
	assert.False(t, s.Pending("b"))
}

func TestSchedulerFlush(t *testing.T) {
	s := NewScheduler(time.Hour)
	calls := 0
	s.Schedule("v", func() { calls++ })
	assert.True(t, s.Flush("v"))
	assert.False(t, s.Flush("v"))
	assert.Equal(t, 1, calls)
}

func TestSchedulerFlushAll(t *testing.T) {
	s := NewScheduler(time.Hour)
	calls := 0
	s.Schedule("a", func() { calls++ })
	s.Schedule("b", func() { calls++ })
	assert.Equal(t, 2, s.FlushAll())
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, s.FlushAll())
}

func TestReconcilerDebounce(t *testing.T) {
	store := &memStore{}
	r := NewReconciler("view-1", store, NewScheduler(30*time.Millisecond), nil)
	r.Load(context.Background(), twoNodeGraph())

	r.MoveNode("1", models.Point{X: 1, Y: 1})
	r.MoveNode("1", models.Point{X: 2, Y: 2})
	r.MoveNode("1", models.Point{X: 3, Y: 3})
	assert.Empty(t, store.Writes(), "nothing written inside the window")

	require.Eventually(t, func() bool { return len(store.Writes()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	writes := store.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, models.Point{X: 3, Y: 3}, writes[0].Nodes["1"])
	assert.Contains(t, writes[0].Nodes, "2", "full snapshot written")
}

func TestReconcilerSaveNowBypassesDebounce(t *testing.T) {
	store := &memStore{}
	r := NewReconciler("view-1", store, NewScheduler(time.Hour), nil)
	r.Load(context.Background(), twoNodeGraph())

	r.SetZoom(1.7)
	r.SetPan(models.Point{X: 4, Y: 4})
	require.True(t, r.Pending())

	require.NoError(t, r.SaveNow(context.Background()))
	assert.False(t, r.Pending())

	writes := store.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, 1.7, writes[0].Zoom)
	assert.Equal(t, models.Point{X: 4, Y: 4}, writes[0].Pan)
}

func TestReconcilerLoadErrorFallsBack(t *testing.T) {
	store := &memStore{getErr: errors.New("db down")}
	r := NewReconciler("v", store, NewScheduler(time.Hour), nil)
	p := r.Load(context.Background(), twoNodeGraph())
	assert.Len(t, p.Layout.Nodes, 2)
	assert.True(t, p.Fit)
}

func TestReconcilerSaveErrorReported(t *testing.T) {
	store := &memStore{putErr: errors.New("readonly")}
	r := NewReconciler("v", store, NewScheduler(time.Hour), nil)
	r.Load(context.Background(), twoNodeGraph())

	var hookErr error
	r.OnSave(func(_ models.GraphLayout, err error) { hookErr = err })

	err := r.SaveNow(context.Background())
	require.Error(t, err)
	assert.Error(t, hookErr)
}

func TestReconcilerCloseFlushes(t *testing.T) {
	store := &memStore{}
	r := NewReconciler("v", store, NewScheduler(time.Hour), nil)
	r.Load(context.Background(), twoNodeGraph())

	r.MoveNode("2", models.Point{X: 9, Y: 9})
	r.Close()

	writes := store.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, models.Point{X: 9, Y: 9}, writes[0].Nodes["2"])

	r.MoveNode("2", models.Point{X: 0, Y: 0})
	assert.False(t, r.Pending(), "closed reconciler ignores changes")
}
