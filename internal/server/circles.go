package server

import (
	"fmt"
	"net/http"

	"github.com/raphaelgruber/circles/internal/models"
	"github.com/raphaelgruber/circles/internal/service"
)

// CircleMemberRequest is the body of POST /circles/{id}/members.
type CircleMemberRequest struct {
	PersonID int64 `json:"person_id"`
}

// handleListCircles serves GET /circles. With ?members=true every circle
// carries its member summaries.
func (a *API) handleListCircles(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("members") == "true" {
		circles, err := a.circles.ListCirclesWithMembers(r.Context())
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if circles == nil {
			circles = []models.CircleWithMembers{}
		}
		writeJSON(w, http.StatusOK, circles)
		return
	}

	circles, err := a.circles.ListCircles(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if circles == nil {
		circles = []models.Circle{}
	}
	writeJSON(w, http.StatusOK, circles)
}

func (a *API) handleCreateCircle(w http.ResponseWriter, r *http.Request) {
	var req models.CircleCreate
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	ci, err := a.circles.CreateCircle(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ci)
}

func (a *API) handleDeleteCircle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.circles.DeleteCircle(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAddCircleMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req CircleMemberRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.PersonID <= 0 {
		a.writeError(w, r, fmt.Errorf("%w: person_id is required", service.ErrInvalidInput))
		return
	}
	if err := a.circles.AddMember(r.Context(), id, req.PersonID); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRemoveCircleMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	personID, err := pathID(r, "personID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.circles.RemoveMember(r.Context(), id, personID); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
