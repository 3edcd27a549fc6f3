// Package service provides business logic for circles operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/circles/internal/metrics"
	"github.com/raphaelgruber/circles/internal/models"
	"github.com/raphaelgruber/circles/internal/reconcile"
)

// ErrInvalidInput indicates a request failed server-side validation.
var ErrInvalidInput = errors.New("invalid input")

// Repository is the persistence layer used by PersonService.
// *db.Client implements it.
type Repository interface {
	ListPersons(ctx context.Context) ([]models.Person, error)
	GetPerson(ctx context.Context, id int64) (*models.Person, error)
	GetPersonByName(ctx context.Context, name string) (*models.Person, error)
	ConfirmPerson(ctx context.Context, req models.ConfirmRequest) (int64, error)
	UpdatePerson(ctx context.Context, id int64, upd models.PersonUpdate) (*models.Person, error)
	DeletePerson(ctx context.Context, id int64) error
	DeleteEvent(ctx context.Context, personID, eventID int64) error
	DeleteAnnotation(ctx context.Context, personID, annotationID int64) error
	DeleteDevelopment(ctx context.Context, personID, developmentID int64) error
	GetGraph(ctx context.Context) (*models.GraphResponse, error)
	GetGraphLayout(ctx context.Context) (*models.GraphLayout, error)
	SaveGraphLayout(ctx context.Context, layout models.GraphLayout) error
	DeleteGraphLayout(ctx context.Context) error
	Counts(ctx context.Context) (persons, relations int, err error)
}

// PersonService handles extraction, reconciliation and person operations.
type PersonService struct {
	repo      Repository
	extractor reconcile.Extractor
	metrics   *metrics.Collector
	maxText   int

	// confirmMu serializes confirms. Unattended imports hold it from
	// name check through confirm.
	confirmMu sync.Mutex
}

// NewPersonService creates a new person service. extractor and mc may be nil;
// without an extractor Extract fails.
func NewPersonService(repo Repository, extractor reconcile.Extractor, mc *metrics.Collector, maxTextLength int) *PersonService {
	return &PersonService{
		repo:      repo,
		extractor: extractor,
		metrics:   mc,
		maxText:   maxTextLength,
	}
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Extract turns free text into structured person data.
func (s *PersonService) Extract(ctx context.Context, text string) (*models.ExtractResponse, error) {
	defer s.metrics.Since(metrics.OpExtract, time.Now())

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalidf("text must not be empty")
	}
	if s.maxText > 0 && len([]rune(text)) > s.maxText {
		return nil, invalidf("text exceeds %d characters", s.maxText)
	}
	if s.extractor == nil {
		return nil, fmt.Errorf("extract: no model configured")
	}

	res, err := s.extractor.Extract(ctx, text)
	if err != nil {
		return nil, err
	}
	slog.Info("extracted person data", "name", res.Profile.Name,
		"events", len(res.Profile.Events), "relations", len(res.Relations))
	return res, nil
}

// CheckName reports whether a person with exactly this name exists.
func (s *PersonService) CheckName(ctx context.Context, name string) (*models.NameCheckResult, error) {
	defer s.metrics.Since(metrics.OpCheckName, time.Now())

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidf("name must not be empty")
	}
	p, err := s.repo.GetPersonByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return &models.NameCheckResult{Exists: false}, nil
	}
	summary := p.Summary()
	return &models.NameCheckResult{Exists: true, Person: &summary}, nil
}

// Compare diffs extracted data against the stored person.
func (s *PersonService) Compare(ctx context.Context, personID int64, extracted models.ExtractResponse) (*models.CompareResult, error) {
	defer s.metrics.Since(metrics.OpCompare, time.Now())

	p, err := s.repo.GetPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	return reconcile.Aggregate(p, extracted)
}

// Confirm validates and persists a reconciliation in one transaction.
func (s *PersonService) Confirm(ctx context.Context, req models.ConfirmRequest) (*models.ConfirmResponse, error) {
	s.confirmMu.Lock()
	defer s.confirmMu.Unlock()
	return s.confirmLocked(ctx, req)
}

// confirmLocked is Confirm for callers already holding confirmMu.
func (s *PersonService) confirmLocked(ctx context.Context, req models.ConfirmRequest) (*models.ConfirmResponse, error) {
	defer s.metrics.Since(metrics.OpConfirm, time.Now())

	if err := validateConfirm(&req); err != nil {
		return nil, err
	}

	id, err := s.repo.ConfirmPerson(ctx, req)
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("created %s", req.Profile.Name)
	if !req.IsNewPerson {
		msg = fmt.Sprintf("updated %s", req.Profile.Name)
	}
	slog.Info("confirmed person", "person_id", id, "new", req.IsNewPerson,
		"events", len(req.Profile.Events), "annotations", len(req.Annotations),
		"developments", len(req.Developments), "relations", len(req.Relations))
	return &models.ConfirmResponse{Success: true, PersonID: id, Message: msg}, nil
}

func validateConfirm(req *models.ConfirmRequest) error {
	req.Profile.Name = strings.TrimSpace(req.Profile.Name)
	if req.Profile.Name == "" {
		return invalidf("name must not be empty")
	}
	if b := models.Deref(req.Profile.Birthday); b != "" && !reconcile.ValidBirthday(b) {
		return invalidf("birthday %q must be MM-DD or YYYY-MM-DD", b)
	}
	if !req.IsNewPerson && req.PersonID == nil {
		return invalidf("person_id is required when updating")
	}
	for _, r := range req.Relations {
		if strings.TrimSpace(r.Name) == req.Profile.Name {
			return invalidf("%s cannot be related to themselves", r.Name)
		}
	}
	for _, e := range req.Profile.Events {
		if strings.TrimSpace(e.Description) == "" {
			return invalidf("event description must not be empty")
		}
	}
	return nil
}

// ListPersons returns all persons.
func (s *PersonService) ListPersons(ctx context.Context) ([]models.Person, error) {
	return s.repo.ListPersons(ctx)
}

// GetPerson returns one person.
func (s *PersonService) GetPerson(ctx context.Context, id int64) (*models.Person, error) {
	return s.repo.GetPerson(ctx, id)
}

// UpdatePerson applies a partial update.
func (s *PersonService) UpdatePerson(ctx context.Context, id int64, upd models.PersonUpdate) (*models.Person, error) {
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, invalidf("name must not be empty")
	}
	if b, ok := upd.Profile["birthday"].(string); ok && b != "" && !reconcile.ValidBirthday(b) {
		return nil, invalidf("birthday %q must be MM-DD or YYYY-MM-DD", b)
	}
	return s.repo.UpdatePerson(ctx, id, upd)
}

// DeletePerson removes a person and everything it owns.
func (s *PersonService) DeletePerson(ctx context.Context, id int64) error {
	if err := s.repo.DeletePerson(ctx, id); err != nil {
		return err
	}
	slog.Info("deleted person", "person_id", id)
	return nil
}

// Item kinds accepted by DeleteItem.
const (
	ItemEvents       = "events"
	ItemAnnotations  = "annotations"
	ItemDevelopments = "developments"
)

// DeleteItem removes one owned item of kind events, annotations or developments.
func (s *PersonService) DeleteItem(ctx context.Context, kind string, personID, itemID int64) error {
	switch kind {
	case ItemEvents:
		return s.repo.DeleteEvent(ctx, personID, itemID)
	case ItemAnnotations:
		return s.repo.DeleteAnnotation(ctx, personID, itemID)
	case ItemDevelopments:
		return s.repo.DeleteDevelopment(ctx, personID, itemID)
	}
	return invalidf("unknown item kind %q", kind)
}

// GetGraph returns the relationship graph.
func (s *PersonService) GetGraph(ctx context.Context) (*models.GraphResponse, error) {
	return s.repo.GetGraph(ctx)
}

// GetGraphLayout returns the stored layout or nil.
func (s *PersonService) GetGraphLayout(ctx context.Context) (*models.GraphLayout, error) {
	return s.repo.GetGraphLayout(ctx)
}

// SaveGraphLayout stores the layout.
func (s *PersonService) SaveGraphLayout(ctx context.Context, layout models.GraphLayout) error {
	defer s.metrics.Since(metrics.OpLayoutSave, time.Now())
	if layout.Nodes == nil {
		layout.Nodes = map[string]models.Point{}
	}
	return s.repo.SaveGraphLayout(ctx, layout)
}

// ResetGraphLayout drops the stored layout.
func (s *PersonService) ResetGraphLayout(ctx context.Context) error {
	return s.repo.DeleteGraphLayout(ctx)
}

// Stats is the server statistics report.
type Stats struct {
	Persons   int              `json:"persons"`
	Relations int              `json:"relations"`
	Metrics   metrics.Snapshot `json:"metrics"`
}

// Stats returns record counts and runtime metrics.
func (s *PersonService) Stats(ctx context.Context) (*Stats, error) {
	persons, relations, err := s.repo.Counts(ctx)
	if err != nil {
		return nil, err
	}
	st := &Stats{Persons: persons, Relations: relations}
	if s.metrics != nil {
		st.Metrics = s.metrics.Snapshot()
	}
	return st, nil
}
