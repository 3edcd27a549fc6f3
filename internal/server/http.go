package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/raphaelgruber/circles/internal/db"
	"github.com/raphaelgruber/circles/internal/llm"
	"github.com/raphaelgruber/circles/internal/models"
	"github.com/raphaelgruber/circles/internal/reconcile"
	"github.com/raphaelgruber/circles/internal/service"
)

// maxBodyBytes bounds request bodies. Imports carry whole note files.
const maxBodyBytes = 16 << 20

// API serves the REST endpoints used by the CLI and the graph view.
type API struct {
	persons *service.PersonService
	imports *service.ImportService
	circles *service.CircleService
	layouts *layoutHub
	logger  *slog.Logger
}

// NewAPI creates the REST API on top of deps.
func NewAPI(deps *Deps) *API {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		persons: deps.Persons,
		imports: deps.Imports,
		circles: deps.Circles,
		layouts: newLayoutHub(deps.Persons, deps.Scheduler, logger),
		logger:  logger,
	}
}

// NewHandler returns the HTTP handler with all routes and request logging.
func NewHandler(deps *Deps) http.Handler {
	api := NewAPI(deps)
	return HTTPLoggingMiddleware(api.logger, api.Routes())
}

// Routes registers every endpoint on a new mux.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("GET /stats", a.handleStats)

	mux.HandleFunc("POST /extract", a.handleExtract)
	mux.HandleFunc("POST /extract/check-name", a.handleCheckName)
	mux.HandleFunc("POST /extract/compare", a.handleCompare)
	mux.HandleFunc("POST /confirm", a.handleConfirm)

	mux.HandleFunc("GET /persons", a.handleListPersons)
	mux.HandleFunc("GET /persons/{id}", a.handleGetPerson)
	mux.HandleFunc("PUT /persons/{id}", a.handleUpdatePerson)
	mux.HandleFunc("DELETE /persons/{id}", a.handleDeletePerson)
	mux.HandleFunc("DELETE /persons/{id}/{kind}/{itemID}", a.handleDeleteItem)

	mux.HandleFunc("GET /circles", a.handleListCircles)
	mux.HandleFunc("POST /circles", a.handleCreateCircle)
	mux.HandleFunc("DELETE /circles/{id}", a.handleDeleteCircle)
	mux.HandleFunc("POST /circles/{id}/members", a.handleAddCircleMember)
	mux.HandleFunc("DELETE /circles/{id}/members/{personID}", a.handleRemoveCircleMember)

	mux.HandleFunc("GET /graph", a.handleGraph)
	mux.HandleFunc("GET /graph/layout", a.handleGetLayout)
	mux.HandleFunc("POST /graph/layout", a.handleSaveLayout)
	mux.HandleFunc("DELETE /graph/layout", a.handleResetLayout)
	mux.HandleFunc("GET "+wsPath, a.layouts.serve)

	mux.HandleFunc("POST /import", a.handleImport)
	mux.HandleFunc("GET /jobs", a.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}", a.handleGetJob)

	return mux
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Detail string `json:"detail"`
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, reconcile.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrNameTaken), errors.Is(err, db.ErrCircleNameTaken), errors.Is(err, db.ErrTransactionConflict):
		return http.StatusConflict
	case errors.Is(err, llm.ErrFatalAPI), errors.Is(err, llm.ErrMalformedOutput):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response failed", "error", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("handler error", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Detail: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode request body: %v", service.ErrInvalidInput, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", service.ErrInvalidInput, name, r.PathValue(name))
	}
	return id, nil
}

// ExtractRequest is the body of POST /extract.
type ExtractRequest struct {
	Text string `json:"text"`
}

// CheckNameRequest is the body of POST /extract/check-name.
type CheckNameRequest struct {
	Name string `json:"name"`
}

// CompareRequest is the body of POST /extract/compare.
type CompareRequest struct {
	PersonID  int64                  `json:"person_id"`
	Extracted models.ExtractResponse `json:"extracted"`
}

// LayoutEnvelope wraps the layout blob on GET and POST /graph/layout.
type LayoutEnvelope struct {
	LayoutJSON any `json:"layout_json"`
}

// SaveLayoutResponse acknowledges a layout save.
type SaveLayoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ImportRequest is the body of POST /import.
type ImportRequest struct {
	service.ImportOptions
	Files []service.ImportFile `json:"files"`
}

func (a *API) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.persons.Extract(r.Context(), req.Text)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleCheckName(w http.ResponseWriter, r *http.Request) {
	var req CheckNameRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.persons.CheckName(r.Context(), req.Name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.PersonID <= 0 {
		a.writeError(w, r, fmt.Errorf("%w: person_id is required", service.ErrInvalidInput))
		return
	}
	res, err := a.persons.Compare(r.Context(), req.PersonID, req.Extracted)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req models.ConfirmRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.persons.Confirm(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleListPersons(w http.ResponseWriter, r *http.Request) {
	persons, err := a.persons.ListPersons(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if persons == nil {
		persons = []models.Person{}
	}
	writeJSON(w, http.StatusOK, persons)
}

func (a *API) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.persons.GetPerson(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var upd models.PersonUpdate
	if err := decode(w, r, &upd); err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.persons.UpdatePerson(r.Context(), id, upd)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.persons.DeletePerson(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	personID, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.persons.DeleteItem(r.Context(), r.PathValue("kind"), personID, itemID); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleGraph(w http.ResponseWriter, r *http.Request) {
	g, err := a.persons.GetGraph(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (a *API) handleGetLayout(w http.ResponseWriter, r *http.Request) {
	l, err := a.persons.GetGraphLayout(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if l == nil {
		writeJSON(w, http.StatusOK, LayoutEnvelope{LayoutJSON: map[string]any{}})
		return
	}
	writeJSON(w, http.StatusOK, LayoutEnvelope{LayoutJSON: l})
}

func (a *API) handleSaveLayout(w http.ResponseWriter, r *http.Request) {
	var req LayoutEnvelope
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	l, err := models.ParseGraphLayoutValue(req.LayoutJSON)
	if err != nil {
		a.writeError(w, r, fmt.Errorf("%w: %v", service.ErrInvalidInput, err))
		return
	}
	if l == nil {
		l = &models.GraphLayout{}
	}
	if err := a.persons.SaveGraphLayout(r.Context(), *l); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SaveLayoutResponse{Success: true, Message: "layout saved"})
}

func (a *API) handleResetLayout(w http.ResponseWriter, r *http.Request) {
	if err := a.persons.ResetGraphLayout(r.Context()); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	job, err := a.imports.ImportAsync(req.Files, req.ImportOptions)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (a *API) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := a.imports.Jobs().ListJobs()
	out := make([]*service.Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Snapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job := a.imports.Jobs().GetJob(r.PathValue("id"))
	if job == nil {
		a.writeError(w, r, fmt.Errorf("job %q: %w", r.PathValue("id"), db.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.persons.Stats(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
