package reconcile

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

type fakeExtractor struct {
	res   *models.ExtractResponse
	err   error
	block chan struct{}
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, text string) (*models.ExtractResponse, error) {
	f.calls++
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	res := *f.res
	return &res, nil
}

type fakeDirectory struct {
	mu          sync.Mutex
	persons     []models.Person
	nameErr     error
	compareErr  error
	confirmErr  error
	confirmGate chan struct{}
	confirmed   []models.ConfirmRequest
	refreshes   int
}

func (f *fakeDirectory) CheckName(ctx context.Context, name string) (*models.NameCheckResult, error) {
	if f.nameErr != nil {
		return nil, f.nameErr
	}
	if p := Resolve(name, f.Persons()); p != nil {
		s := p.Summary()
		return &models.NameCheckResult{Exists: true, Person: &s}, nil
	}
	return &models.NameCheckResult{}, nil
}

func (f *fakeDirectory) Compare(ctx context.Context, id int64, extracted models.ExtractResponse) (*models.CompareResult, error) {
	if f.compareErr != nil {
		return nil, f.compareErr
	}
	for _, p := range f.Persons() {
		if p.ID == id {
			return Aggregate(&p, extracted)
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeDirectory) Confirm(ctx context.Context, req models.ConfirmRequest) (*models.ConfirmResponse, error) {
	if f.confirmGate != nil {
		<-f.confirmGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	f.confirmed = append(f.confirmed, req)
	return &models.ConfirmResponse{Success: true, PersonID: 99}, nil
}

func (f *fakeDirectory) Persons() []models.Person {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Person(nil), f.persons...)
}

func (f *fakeDirectory) RefreshPersons(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return nil
}

type recordingNotifier struct {
	kinds []error
}

func (n *recordingNotifier) Notify(kind error, message string) {
	n.kinds = append(n.kinds, kind)
}

func zhangExtraction() *models.ExtractResponse {
	return &models.ExtractResponse{
		Profile: models.Profile{
			Name:   "张三",
			Job:    models.Ptr("AI工程师"),
			Events: []models.Event{{Date: "2025-03-15", Description: "一起吃饭"}},
		},
		Relations: []models.ExtractedRelation{{Name: "李四", RelationType: "同事"}},
	}
}

func newTestController(ex *fakeExtractor, dir *fakeDirectory, n Notifier) *Controller {
	return NewController(ex, dir, dir, n, nil, Config{MaxTextLength: 2000})
}

func TestControllerNewPersonFlow(t *testing.T) {
	ctx := context.Background()
	dir := &fakeDirectory{}
	c := newTestController(&fakeExtractor{res: zhangExtraction()}, dir, nil)

	require.NoError(t, c.Submit(ctx, "今天和张三吃饭"))
	assert.Equal(t, Editing, c.State())
	require.NotNil(t, c.Session())
	assert.True(t, c.Session().IsNewPerson)

	require.NoError(t, c.Edit(func(s *Session) error {
		s.SetJob("研究员")
		return s.AddEvent(models.Event{Date: "2025-05-01", Description: "爬山"})
	}))

	resp, err := c.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(99), resp.PersonID)

	assert.Equal(t, Idle, c.State())
	assert.Nil(t, c.Session())
	require.Len(t, dir.confirmed, 1)
	p := dir.confirmed[0]
	assert.Len(t, p.Profile.Events, 2)
	assert.Equal(t, "研究员", *p.Profile.Job)
	assert.Equal(t, "今天和张三吃饭", p.OriginalText)
	assert.Equal(t, 1, dir.refreshes)
}

func TestControllerSamePersonFlow(t *testing.T) {
	ctx := context.Background()
	dir := &fakeDirectory{persons: []models.Person{*storedZhang()}}
	c := newTestController(&fakeExtractor{res: zhangExtraction()}, dir, nil)

	require.NoError(t, c.Submit(ctx, "张三"))
	assert.Equal(t, NameCheck, c.State())
	m := c.Pending()
	require.NotNil(t, m)
	assert.Equal(t, int64(7), m.Person.ID)
	assert.Equal(t, "张三(2)", m.SuggestedName)

	require.NoError(t, c.SamePerson(ctx))
	assert.Equal(t, Comparing, c.State())
	s := c.Session()
	require.NotNil(t, s.TargetPersonID)
	assert.Equal(t, int64(7), *s.TargetPersonID)
	assert.True(t, s.IsComparedMode)
	assert.NotEmpty(t, s.Conflicts)

	_, err := c.Confirm(ctx)
	assert.True(t, errors.Is(err, ErrValidation), "unresolved conflicts must block confirm")
	assert.Empty(t, dir.confirmed)

	require.NoError(t, c.ResolveAll(models.UseNew))
	_, err = c.Confirm(ctx)
	require.NoError(t, err)
	require.Len(t, dir.confirmed, 1)
	assert.False(t, dir.confirmed[0].IsNewPerson)
	assert.Equal(t, int64(7), *dir.confirmed[0].PersonID)
}

func TestControllerDifferentPerson(t *testing.T) {
	ctx := context.Background()
	dir := &fakeDirectory{persons: []models.Person{{ID: 1, Name: "张三"}, {ID: 2, Name: "张三(2)"}}}
	c := newTestController(&fakeExtractor{res: zhangExtraction()}, dir, nil)

	require.NoError(t, c.Submit(ctx, "张三"))
	require.NotNil(t, c.Pending())

	t.Run("custom name must not collide", func(t *testing.T) {
		err := c.DifferentPerson("张三(2)")
		assert.True(t, errors.Is(err, ErrValidation))
		assert.Equal(t, NameCheck, c.State())
	})

	require.NoError(t, c.DifferentPerson(""))
	assert.Equal(t, Editing, c.State())
	s := c.Session()
	assert.Equal(t, "张三(3)", s.Profile.Name)
	assert.True(t, s.IsNewPerson)
	assert.Nil(t, s.TargetPersonID)
}

func TestControllerExtractionFailure(t *testing.T) {
	n := &recordingNotifier{}
	c := newTestController(&fakeExtractor{err: errors.New("model offline")}, &fakeDirectory{}, n)

	err := c.Submit(context.Background(), "text")
	assert.True(t, errors.Is(err, ErrExtraction))
	assert.Equal(t, Idle, c.State())
	assert.Nil(t, c.Session())
	require.Len(t, n.kinds, 1)
	assert.Equal(t, ErrExtraction, n.kinds[0])
}

func TestControllerNameCheckFailureDegrades(t *testing.T) {
	n := &recordingNotifier{}
	dir := &fakeDirectory{nameErr: errors.New("timeout")}
	c := newTestController(&fakeExtractor{res: zhangExtraction()}, dir, n)

	require.NoError(t, c.Submit(context.Background(), "text"))
	assert.Equal(t, Editing, c.State())
	assert.True(t, c.Session().IsNewPerson)
	assert.Equal(t, []error{ErrNameCheck}, n.kinds)
}

func TestControllerCompareFailureKeepsPrompt(t *testing.T) {
	ctx := context.Background()
	dir := &fakeDirectory{persons: []models.Person{*storedZhang()}, compareErr: errors.New("boom")}
	c := newTestController(&fakeExtractor{res: zhangExtraction()}, dir, nil)

	require.NoError(t, c.Submit(ctx, "text"))
	err := c.SamePerson(ctx)
	assert.True(t, errors.Is(err, ErrCompare))
	assert.Equal(t, NameCheck, c.State())
	assert.NotNil(t, c.Pending())
}

func TestControllerConfirmFailureKeepsEdits(t *testing.T) {
	ctx := context.Background()
	dir := &fakeDirectory{confirmErr: errors.New("db down")}
	c := newTestController(&fakeExtractor{res: zhangExtraction()}, dir, nil)

	require.NoError(t, c.Submit(ctx, "text"))
	require.NoError(t, c.Edit(func(s *Session) error { return s.AddNote("keep me") }))

	_, err := c.Confirm(ctx)
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.Equal(t, Editing, c.State())
	assert.Equal(t, []string{"keep me"}, c.Session().Profile.Notes)

	dir.confirmErr = nil
	_, err = c.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep me"}, dir.confirmed[0].Profile.Notes)
}

func TestControllerValidationBeforeNetwork(t *testing.T) {
	ctx := context.Background()
	dir := &fakeDirectory{}
	c := newTestController(&fakeExtractor{res: zhangExtraction()}, dir, nil)

	assert.True(t, errors.Is(c.Submit(ctx, "   "), ErrValidation))

	require.NoError(t, c.Submit(ctx, "text"))
	require.NoError(t, c.Edit(func(s *Session) error { s.SetName(""); return nil }))
	_, err := c.Confirm(ctx)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Empty(t, dir.confirmed)
	assert.Equal(t, Editing, c.State())
}

func TestControllerCancelDiscardsEdits(t *testing.T) {
	ctx := context.Background()
	dir := &fakeDirectory{persons: []models.Person{*storedZhang()}}
	c := newTestController(&fakeExtractor{res: zhangExtraction()}, dir, nil)

	require.NoError(t, c.Submit(ctx, "same text"))
	require.NoError(t, c.SamePerson(ctx))
	require.NoError(t, c.Resolve(FieldJob, models.UseNew))
	require.NoError(t, c.Edit(func(s *Session) error { return s.AddNote("draft") }))

	require.NoError(t, c.Cancel())
	assert.Equal(t, Idle, c.State())
	assert.Nil(t, c.Session())

	require.NoError(t, c.Submit(ctx, "same text"))
	require.NoError(t, c.SamePerson(ctx))
	s := c.Session()
	assert.Empty(t, s.Profile.Notes)
	for _, ci := range s.Conflicts {
		assert.Nil(t, ci.Action, ci.Field)
	}
}

func TestControllerCancelDropsInFlightExtraction(t *testing.T) {
	block := make(chan struct{})
	ex := &fakeExtractor{res: zhangExtraction(), block: block}
	c := newTestController(ex, &fakeDirectory{}, nil)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), "text") }()

	require.Eventually(t, func() bool { return c.State() == Extracting }, time.Second, time.Millisecond)
	assert.True(t, c.Busy())
	assert.True(t, errors.Is(c.Submit(context.Background(), "again"), ErrBusy))

	require.NoError(t, c.Cancel())
	close(block)

	assert.True(t, errors.Is(<-done, ErrCancelled))
	assert.Equal(t, Idle, c.State())
	assert.Nil(t, c.Session())
}

func TestControllerConfirmEnteredOnce(t *testing.T) {
	ctx := context.Background()
	dir := &fakeDirectory{confirmGate: make(chan struct{})}
	c := newTestController(&fakeExtractor{res: zhangExtraction()}, dir, nil)
	require.NoError(t, c.Submit(ctx, "今天和张三吃饭"))

	done := make(chan error, 1)
	go func() {
		_, err := c.Confirm(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return c.State() == Confirming }, time.Second, time.Millisecond)

	_, err := c.Confirm(ctx)
	assert.True(t, errors.Is(err, ErrBusy), "got %v", err)
	assert.True(t, errors.Is(c.Cancel(), ErrBusy))
	assert.Equal(t, Confirming, c.State())

	close(dir.confirmGate)
	require.NoError(t, <-done)
	assert.Equal(t, Idle, c.State())
	assert.Len(t, dir.confirmed, 1)
}

func TestControllerNameBlurCollision(t *testing.T) {
	ctx := context.Background()
	dir := &fakeDirectory{persons: []models.Person{{ID: 5, Name: "李四"}}}
	c := newTestController(&fakeExtractor{res: zhangExtraction()}, dir, nil)

	require.NoError(t, c.Submit(ctx, "text"))
	require.Equal(t, Editing, c.State())

	collided, err := c.NameBlur()
	require.NoError(t, err)
	assert.False(t, collided)

	require.NoError(t, c.Edit(func(s *Session) error { s.SetName("李四"); return nil }))
	collided, err = c.NameBlur()
	require.NoError(t, err)
	assert.True(t, collided)
	assert.Equal(t, NameCheck, c.State())
	require.NotNil(t, c.Pending())
	assert.Equal(t, int64(5), c.Pending().Person.ID)

	require.NoError(t, c.SamePerson(ctx))
	assert.Equal(t, Comparing, c.State())
	assert.Equal(t, int64(5), *c.Session().TargetPersonID)

	// Blurring the target's own name is not a collision.
	collided, err = c.NameBlur()
	require.NoError(t, err)
	assert.False(t, collided)
}

func TestTransitionTable(t *testing.T) {
	_, err := next(Idle, evConfirm, false)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	to, err := next(Confirming, evConfirmFailed, true)
	require.NoError(t, err)
	assert.Equal(t, Comparing, to)

	to, err = next(Confirming, evConfirmFailed, false)
	require.NoError(t, err)
	assert.Equal(t, Editing, to)

	_, err = next(Confirming, evCancel, false)
	assert.Error(t, err)
}

func TestControllerEditRequiresSession(t *testing.T) {
	c := newTestController(&fakeExtractor{res: zhangExtraction()}, &fakeDirectory{}, nil)
	err := c.Edit(func(s *Session) error { return nil })
	assert.True(t, errors.Is(err, ErrNoSession))
	_, err = c.Confirm(context.Background())
	assert.True(t, errors.Is(err, ErrNoSession))
}
