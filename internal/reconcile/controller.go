package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/raphaelgruber/circles/internal/models"
)

// Extractor turns free text into structured person data.
type Extractor interface {
	Extract(ctx context.Context, text string) (*models.ExtractResponse, error)
}

// Directory is the persistence collaborator used by a session.
type Directory interface {
	CheckName(ctx context.Context, name string) (*models.NameCheckResult, error)
	Compare(ctx context.Context, personID int64, extracted models.ExtractResponse) (*models.CompareResult, error)
	Confirm(ctx context.Context, req models.ConfirmRequest) (*models.ConfirmResponse, error)
}

// PersonCache is the read-only known-persons list, refreshed after confirm.
type PersonCache interface {
	Persons() []models.Person
	RefreshPersons(ctx context.Context) error
}

// Notifier receives user-facing failure notices. kind is one of the error
// kinds of this package.
type Notifier interface {
	Notify(kind error, message string)
}

// State is the position of the controller in the reconciliation workflow.
type State int

const (
	Idle State = iota
	Extracting
	NameCheck
	Comparing
	Editing
	Confirming
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Extracting:
		return "extracting"
	case NameCheck:
		return "name_check"
	case Comparing:
		return "comparing"
	case Editing:
		return "editing"
	case Confirming:
		return "confirming"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// event drives transitions between states.
type event int

const (
	evSubmit event = iota
	evExtracted
	evExtractFailed
	evNoMatch
	evMatch
	evCompared
	evCompareFailed
	evDifferentPerson
	evCollision
	evConfirm
	evConfirmed
	evConfirmFailed
	evCancel
)

// transitions lists every allowed move. Anything missing is invalid.
var transitions = map[State]map[event]State{
	Idle: {
		evSubmit: Extracting,
	},
	Extracting: {
		evExtracted:     NameCheck,
		evExtractFailed: Idle,
		evCancel:        Idle,
	},
	NameCheck: {
		evNoMatch:         Editing,
		evMatch:           NameCheck,
		evCompared:        Comparing,
		evCompareFailed:   NameCheck,
		evDifferentPerson: Editing,
		evCancel:          Idle,
	},
	Editing: {
		evCollision: NameCheck,
		evConfirm:   Confirming,
		evCancel:    Idle,
	},
	Comparing: {
		evCollision: NameCheck,
		evConfirm:   Confirming,
		evCancel:    Idle,
	},
	Confirming: {
		evConfirmed: Idle,
		// evConfirmFailed is resolved by next from the session mode.
	},
}

// next is the single transition function of the workflow.
func next(from State, ev event, compared bool) (State, error) {
	if from == Confirming && ev == evConfirmFailed {
		if compared {
			return Comparing, nil
		}
		return Editing, nil
	}
	to, ok := transitions[from][ev]
	if !ok {
		return from, fmt.Errorf("%w: %s does not accept this operation", ErrInvalidTransition, from)
	}
	return to, nil
}

// NameMatch is a pending same-or-different decision.
type NameMatch struct {
	Person        models.PersonSummary
	SuggestedName string
}

// Config tunes a Controller.
type Config struct {
	// MaxTextLength bounds submitted text in runes. Zero means no limit.
	MaxTextLength int
}

// Controller drives one user's reconciliation workflow. It owns at most
// one Session. Methods are safe for concurrent use; no lock is held while
// a collaborator is called, and overlapping calls are rejected with ErrBusy.
type Controller struct {
	extractor Extractor
	dir       Directory
	cache     PersonCache
	notifier  Notifier
	logger    *slog.Logger
	cfg       Config

	mu      sync.Mutex
	state   State
	busy    bool
	gen     uint64
	session *Session
	pending *NameMatch
}

// NewController creates a controller. notifier and logger may be nil.
func NewController(extractor Extractor, dir Directory, cache PersonCache, notifier Notifier, logger *slog.Logger, cfg Config) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		extractor: extractor,
		dir:       dir,
		cache:     cache,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a collaborator call is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy || c.state == Extracting || c.state == Confirming
}

// Session returns a copy of the active session, or nil.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.Clone()
}

// Pending returns the open same-or-different decision, or nil.
func (c *Controller) Pending() *NameMatch {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	m := *c.pending
	return &m
}

// move applies a transition. Caller must hold c.mu.
func (c *Controller) move(ev event) error {
	compared := c.session != nil && c.session.IsComparedMode
	to, err := next(c.state, ev, compared)
	if err != nil {
		return err
	}
	if to != c.state {
		c.logger.Debug("reconcile transition", "from", c.state.String(), "to", to.String())
	}
	c.state = to
	return nil
}

// fail logs and reports a collaborator failure. Caller must hold c.mu.
func (c *Controller) fail(kind, err error) error {
	wrapped := wrapKind(kind, err)
	c.logger.Warn("reconcile operation failed", "kind", kind.Error(), "error", err)
	if c.notifier != nil {
		c.notifier.Notify(kind, wrapped.Error())
	}
	return wrapped
}

// Submit extracts text, creates a session and checks the extracted name.
// On return the controller is in Editing (new person) or in NameCheck with
// a pending decision.
func (c *Controller) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return validationErrorf("text must not be empty")
	}
	if c.cfg.MaxTextLength > 0 && len([]rune(text)) > c.cfg.MaxTextLength {
		return validationErrorf("text exceeds %d characters", c.cfg.MaxTextLength)
	}

	c.mu.Lock()
	if c.state == Extracting || c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	if err := c.move(evSubmit); err != nil {
		c.mu.Unlock()
		return err
	}
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	extracted, err := c.extractor.Extract(ctx, text)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return ErrCancelled
	}
	if err == nil && extracted == nil {
		err = fmt.Errorf("empty extraction result")
	}
	if err != nil {
		_ = c.move(evExtractFailed)
		defer c.mu.Unlock()
		return c.fail(ErrExtraction, err)
	}
	c.session = NewSession(text, *extracted)
	_ = c.move(evExtracted)
	name := c.session.Profile.Name
	if name == "" {
		_ = c.move(evNoMatch)
		c.mu.Unlock()
		return nil
	}
	c.busy = true
	c.mu.Unlock()

	return c.checkName(ctx, gen, name)
}

// checkName runs the remote name check for a freshly extracted session.
func (c *Controller) checkName(ctx context.Context, gen uint64, name string) error {
	res, err := c.dir.CheckName(ctx, name)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return ErrCancelled
	}
	c.busy = false

	if err != nil {
		// Degrade to "no match" so the user can still proceed.
		_ = c.fail(ErrNameCheck, err)
		res = nil
	}
	if res == nil || !res.Exists || res.Person == nil {
		c.session.IsNewPerson = true
		return c.move(evNoMatch)
	}
	c.pending = &NameMatch{
		Person:        *res.Person,
		SuggestedName: SuggestName(name, c.cache.Persons()),
	}
	return c.move(evMatch)
}

// SamePerson answers the pending decision with "this is the stored person"
// and compares the working copy against it.
func (c *Controller) SamePerson(ctx context.Context) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state != NameCheck || c.pending == nil || c.session == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: no pending name decision", ErrInvalidTransition)
	}
	target := c.pending.Person.ID
	extracted := c.session.extraction()
	gen := c.gen
	c.busy = true
	c.mu.Unlock()

	cmp, err := c.dir.Compare(ctx, target, extracted)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return ErrCancelled
	}
	c.busy = false
	if err == nil && cmp == nil {
		err = fmt.Errorf("empty compare result")
	}
	if err != nil {
		_ = c.move(evCompareFailed)
		return c.fail(ErrCompare, err)
	}
	cmp.PersonID = target
	c.session.applyCompare(cmp)
	c.pending = nil
	return c.move(evCompared)
}

// DifferentPerson answers the pending decision with "this is someone else".
// An empty name takes the suggested disambiguated name.
func (c *Controller) DifferentPerson(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	if c.state != NameCheck || c.pending == nil || c.session == nil {
		return fmt.Errorf("%w: no pending name decision", ErrInvalidTransition)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = c.pending.SuggestedName
	}
	if p := Resolve(name, c.cache.Persons()); p != nil {
		return validationErrorf("name %q is already used by person %d", name, p.ID)
	}
	c.session.asNewPerson(name)
	c.pending = nil
	return c.move(evDifferentPerson)
}

// Edit applies a synchronous mutation to the working copy. It is only
// allowed while editing or comparing.
func (c *Controller) Edit(fn func(*Session) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return err
	}
	return fn(c.session)
}

// editable checks the working copy may be mutated. Caller must hold c.mu.
func (c *Controller) editable() error {
	if c.busy || c.state == Confirming {
		return ErrBusy
	}
	if c.session == nil {
		return ErrNoSession
	}
	if c.state != Editing && c.state != Comparing {
		return fmt.Errorf("%w: cannot edit in %s", ErrInvalidTransition, c.state)
	}
	return nil
}

// Resolve applies a resolution to one conflict item.
func (c *Controller) Resolve(field string, action models.Resolution) error {
	return c.Edit(func(s *Session) error { return s.Resolve(field, action) })
}

// ResolveAll applies a resolution to every unresolved conflict item.
func (c *Controller) ResolveAll(action models.Resolution) error {
	return c.Edit(func(s *Session) error { return s.ResolveAll(action) })
}

// NameBlur re-runs the name resolver for the current name against the
// known-persons cache. A collision with a person other than the current
// target re-opens the same-or-different decision and returns true.
func (c *Controller) NameBlur() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return false, err
	}
	name := c.session.Profile.Name
	known := c.cache.Persons()
	match := Resolve(name, known)
	if match == nil {
		return false, nil
	}
	if c.session.TargetPersonID != nil && *c.session.TargetPersonID == match.ID {
		return false, nil
	}
	c.pending = &NameMatch{
		Person:        match.Summary(),
		SuggestedName: SuggestName(name, known),
	}
	return true, c.move(evCollision)
}

// Confirm validates the working copy and persists it in one request. On
// success the session is discarded, the known-persons cache refreshed and
// the controller returns to Idle. On failure the session is kept.
func (c *Controller) Confirm(ctx context.Context) (*models.ConfirmResponse, error) {
	c.mu.Lock()
	if c.state == Confirming || c.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if c.session == nil {
		c.mu.Unlock()
		return nil, ErrNoSession
	}
	if c.state != Editing && c.state != Comparing {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot confirm in %s", ErrInvalidTransition, c.state)
	}
	if err := c.session.Validate(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	payload := c.session.Payload()
	if err := c.move(evConfirm); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()

	resp, err := c.dir.Confirm(ctx, payload)
	if err == nil && (resp == nil || !resp.Success) {
		msg := "confirm rejected"
		if resp != nil && resp.Message != "" {
			msg = resp.Message
		}
		err = fmt.Errorf("%s", msg)
	}

	c.mu.Lock()
	if err != nil {
		_ = c.move(evConfirmFailed)
		defer c.mu.Unlock()
		return nil, c.fail(ErrPersistence, err)
	}
	_ = c.move(evConfirmed)
	c.session = nil
	c.pending = nil
	c.gen++
	c.mu.Unlock()

	if err := c.cache.RefreshPersons(ctx); err != nil {
		c.logger.Warn("refresh known persons after confirm", "error", err)
	}
	c.logger.Info("person confirmed", "person_id", resp.PersonID, "new", payload.IsNewPerson)
	return resp, nil
}

// Cancel discards the session from any state except Confirming. A result
// still in flight is dropped when it returns.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Idle {
		return nil
	}
	if err := c.move(evCancel); err != nil {
		return fmt.Errorf("%w: cannot cancel while confirming", ErrBusy)
	}
	c.session = nil
	c.pending = nil
	c.busy = false
	c.gen++
	return nil
}
