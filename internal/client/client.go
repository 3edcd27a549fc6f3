// Package client provides an HTTP client for the circles server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/raphaelgruber/circles/internal/models"
	"github.com/raphaelgruber/circles/internal/service"
)

// Errors matched by status code. Use errors.Is() on returned errors.
var (
	ErrInvalid     = errors.New("invalid request")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrModel       = errors.New("model failure")
	ErrUnavailable = errors.New("server error")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
}

// Unwrap maps the status code to one of the package errors.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return ErrInvalid
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusBadGateway:
		return ErrModel
	}
	return ErrUnavailable
}

// Client talks to the circles REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client.
// If baseURL is empty, uses CIRCLES_SERVER_URL or defaults to localhost:8484.
// A non-positive timeout defaults to two minutes, enough for a model call.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("CIRCLES_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8484"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends a JSON request and decodes the JSON response into result.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Detail: strings.TrimSpace(string(data))}
		var body struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(data, &body) == nil && body.Detail != "" {
			apiErr.Detail = body.Detail
		}
		return apiErr
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// Health checks that the server is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// Extract turns free text into structured person data.
func (c *Client) Extract(ctx context.Context, text string) (*models.ExtractResponse, error) {
	var res models.ExtractResponse
	if err := c.do(ctx, http.MethodPost, "/extract", map[string]string{"text": text}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CheckName reports whether a person with this exact name exists.
func (c *Client) CheckName(ctx context.Context, name string) (*models.NameCheckResult, error) {
	var res models.NameCheckResult
	if err := c.do(ctx, http.MethodPost, "/extract/check-name", map[string]string{"name": name}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Compare diffs extracted data against a stored person.
func (c *Client) Compare(ctx context.Context, personID int64, extracted models.ExtractResponse) (*models.CompareResult, error) {
	body := map[string]any{"person_id": personID, "extracted": extracted}
	var res models.CompareResult
	if err := c.do(ctx, http.MethodPost, "/extract/compare", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Confirm persists a reconciliation.
func (c *Client) Confirm(ctx context.Context, req models.ConfirmRequest) (*models.ConfirmResponse, error) {
	var res models.ConfirmResponse
	if err := c.do(ctx, http.MethodPost, "/confirm", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// =============================================================================
// PERSONS
// =============================================================================

// ListPersons returns all persons with their items.
func (c *Client) ListPersons(ctx context.Context) ([]models.Person, error) {
	var persons []models.Person
	if err := c.do(ctx, http.MethodGet, "/persons", nil, &persons); err != nil {
		return nil, err
	}
	return persons, nil
}

// GetPerson returns one person.
func (c *Client) GetPerson(ctx context.Context, id int64) (*models.Person, error) {
	var p models.Person
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/persons/%d", id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePerson applies a partial update.
func (c *Client) UpdatePerson(ctx context.Context, id int64, upd models.PersonUpdate) (*models.Person, error) {
	var p models.Person
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/persons/%d", id), upd, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePerson deletes a person and everything it owns.
func (c *Client) DeletePerson(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/persons/%d", id), nil, nil)
}

// DeleteItem deletes one event, annotation or development of a person.
// kind is "events", "annotations" or "developments".
func (c *Client) DeleteItem(ctx context.Context, kind string, personID, itemID int64) error {
	path := fmt.Sprintf("/persons/%d/%s/%d", personID, url.PathEscape(kind), itemID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// =============================================================================
// CIRCLES
// =============================================================================

// ListCircles returns all circles.
func (c *Client) ListCircles(ctx context.Context) ([]models.Circle, error) {
	var circles []models.Circle
	if err := c.do(ctx, http.MethodGet, "/circles", nil, &circles); err != nil {
		return nil, err
	}
	return circles, nil
}

// ListCirclesWithMembers returns all circles with their members.
func (c *Client) ListCirclesWithMembers(ctx context.Context) ([]models.CircleWithMembers, error) {
	var circles []models.CircleWithMembers
	if err := c.do(ctx, http.MethodGet, "/circles?members=true", nil, &circles); err != nil {
		return nil, err
	}
	return circles, nil
}

// CreateCircle creates a circle. An empty color picks the next palette color.
func (c *Client) CreateCircle(ctx context.Context, name, color string) (*models.Circle, error) {
	var ci models.Circle
	if err := c.do(ctx, http.MethodPost, "/circles", models.CircleCreate{Name: name, Color: color}, &ci); err != nil {
		return nil, err
	}
	return &ci, nil
}

// DeleteCircle deletes a circle; its members are kept.
func (c *Client) DeleteCircle(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/circles/%d", id), nil, nil)
}

// AddCircleMember assigns a person to a circle.
func (c *Client) AddCircleMember(ctx context.Context, circleID, personID int64) error {
	body := map[string]int64{"person_id": personID}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/circles/%d/members", circleID), body, nil)
}

// RemoveCircleMember takes a person out of a circle.
func (c *Client) RemoveCircleMember(ctx context.Context, circleID, personID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/circles/%d/members/%d", circleID, personID), nil, nil)
}

// =============================================================================
// GRAPH
// =============================================================================

// GetGraph returns the relationship graph.
func (c *Client) GetGraph(ctx context.Context) (*models.GraphResponse, error) {
	var g models.GraphResponse
	if err := c.do(ctx, http.MethodGet, "/graph", nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// GetGraphLayout returns the stored layout, or nil when none is stored.
func (c *Client) GetGraphLayout(ctx context.Context) (*models.GraphLayout, error) {
	var env struct {
		LayoutJSON json.RawMessage `json:"layout_json"`
	}
	if err := c.do(ctx, http.MethodGet, "/graph/layout", nil, &env); err != nil {
		return nil, err
	}
	return models.ParseGraphLayout(env.LayoutJSON)
}

// SaveGraphLayout replaces the stored layout.
func (c *Client) SaveGraphLayout(ctx context.Context, layout models.GraphLayout) error {
	return c.do(ctx, http.MethodPost, "/graph/layout", map[string]any{"layout_json": layout}, nil)
}

// ResetGraphLayout drops the stored layout.
func (c *Client) ResetGraphLayout(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/graph/layout", nil, nil)
}

// =============================================================================
// IMPORT JOBS
// =============================================================================

// Import starts a background import of files and returns the job.
func (c *Client) Import(ctx context.Context, files []service.ImportFile, opts service.ImportOptions) (*service.Job, error) {
	body := struct {
		service.ImportOptions
		Files []service.ImportFile `json:"files"`
	}{opts, files}

	var job service.Job
	if err := c.do(ctx, http.MethodPost, "/import", body, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns all import jobs, most recent first.
func (c *Client) ListJobs(ctx context.Context) ([]*service.Job, error) {
	var jobs []*service.Job
	if err := c.do(ctx, http.MethodGet, "/jobs", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetJob retrieves a job by ID.
func (c *Client) GetJob(ctx context.Context, id string) (*service.Job, error) {
	var job service.Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Stats returns record counts and server runtime metrics.
func (c *Client) Stats(ctx context.Context) (*service.Stats, error) {
	var st service.Stats
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
