package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/raphaelgruber/circles/internal/db"
	"github.com/raphaelgruber/circles/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCircles is an in-memory service.CircleRepository.
type fakeCircles struct {
	mu      sync.Mutex
	circles []models.Circle
	members map[int64][]int64
}

func (f *fakeCircles) ListCircles(ctx context.Context) ([]models.Circle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Circle(nil), f.circles...), nil
}

func (f *fakeCircles) ListCirclesWithMembers(ctx context.Context) ([]models.CircleWithMembers, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CircleWithMembers
	for _, c := range f.circles {
		cw := models.CircleWithMembers{Circle: c, Members: []models.PersonSummary{}}
		for _, id := range f.members[c.ID] {
			cw.Members = append(cw.Members, models.PersonSummary{ID: id})
		}
		out = append(out, cw)
	}
	return out, nil
}

func (f *fakeCircles) CreateCircle(ctx context.Context, name, color string) (*models.Circle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.circles {
		if c.Name == name {
			return nil, db.ErrCircleNameTaken
		}
	}
	c := models.Circle{ID: int64(len(f.circles) + 1), Name: name, Color: color}
	f.circles = append(f.circles, c)
	return &c, nil
}

func (f *fakeCircles) DeleteCircle(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.circles {
		if c.ID == id {
			f.circles = append(f.circles[:i], f.circles[i+1:]...)
			return nil
		}
	}
	return db.ErrNotFound
}

func (f *fakeCircles) AddCircleMember(ctx context.Context, circleID, personID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members == nil {
		f.members = map[int64][]int64{}
	}
	f.members[circleID] = append(f.members[circleID], personID)
	return nil
}

func (f *fakeCircles) RemoveCircleMember(ctx context.Context, circleID, personID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, id := range f.members[circleID] {
		if id == personID {
			f.members[circleID] = append(f.members[circleID][:i], f.members[circleID][i+1:]...)
			return nil
		}
	}
	return db.ErrNotFound
}

func TestCircleRoutes(t *testing.T) {
	srv, _ := newTestServer(t, stubExtractor{})

	resp, body := do(t, http.MethodGet, srv.URL+"/circles", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(body))

	resp, body = do(t, http.MethodPost, srv.URL+"/circles", models.CircleCreate{Name: "家人"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var family models.Circle
	require.NoError(t, json.Unmarshal(body, &family))
	assert.Equal(t, models.CircleColors[0], family.Color)

	resp, _ = do(t, http.MethodPost, srv.URL+"/circles", models.CircleCreate{Name: "家人"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, srv.URL+"/circles", models.CircleCreate{Name: ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/circles/1/members", CircleMemberRequest{PersonID: 2})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, srv.URL+"/circles/1/members", CircleMemberRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodGet, srv.URL+"/circles?members=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var withMembers []models.CircleWithMembers
	require.NoError(t, json.Unmarshal(body, &withMembers))
	require.Len(t, withMembers, 1)
	assert.Equal(t, "家人", withMembers[0].Name)
	require.Len(t, withMembers[0].Members, 1)
	assert.Equal(t, int64(2), withMembers[0].Members[0].ID)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/circles/1/members/2", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodDelete, srv.URL+"/circles/1/members/2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/circles/1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodDelete, srv.URL+"/circles/x", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
