package reconcile

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/raphaelgruber/circles/internal/models"
)

// mergeSeparator joins the stored and new value of a merged scalar.
const mergeSeparator = " / "

// Session is the in-memory working copy of one reconciliation.
//
// Staged items (Profile.Notes, Profile.Events, Annotations, Developments,
// Relations) are new and will be created on confirm. Items under Existing
// are already persisted; editing one marks it for update and deleting one
// queues its id in Deleted.
type Session struct {
	OriginalText   string
	IsNewPerson    bool
	TargetPersonID *int64
	IsComparedMode bool

	Profile      models.Profile
	Annotations  []models.Annotation
	Developments []models.Development
	Relations    []models.ExtractedRelation

	Existing  models.ExistingSections
	Conflicts []models.ConflictItem
	Deleted   models.DeletedItems

	dirtyEvents       map[int64]bool
	dirtyAnnotations  map[int64]bool
	dirtyDevelopments map[int64]bool
}

// NewSession starts a session for a new person from an extraction result.
func NewSession(text string, extracted models.ExtractResponse) *Session {
	s := &Session{
		OriginalText: text,
		IsNewPerson:  true,
		Profile: models.Profile{
			Name:     strings.TrimSpace(extracted.Profile.Name),
			Job:      nonEmpty(extracted.Profile.Job),
			Birthday: nonEmpty(extracted.Profile.Birthday),
			Notes:    cloneSlice(extracted.Profile.Notes),
			Events:   cloneSlice(extracted.Profile.Events),
		},
		Annotations:  cloneSlice(extracted.Annotations),
		Developments: normalizeDevelopments(extracted.Developments),
		Relations:    cloneSlice(extracted.Relations),
	}
	s.resetTracking()
	return s
}

func (s *Session) resetTracking() {
	s.Existing = models.ExistingSections{}
	s.Conflicts = nil
	s.Deleted = models.DeletedItems{}
	s.dirtyEvents = map[int64]bool{}
	s.dirtyAnnotations = map[int64]bool{}
	s.dirtyDevelopments = map[int64]bool{}
}

// applyCompare switches the session to merging into the compared person.
func (s *Session) applyCompare(cmp *models.CompareResult) {
	id := cmp.PersonID
	s.IsNewPerson = false
	s.TargetPersonID = &id
	s.IsComparedMode = true
	s.resetTracking()

	s.Profile = cmp.Profile
	s.Annotations = cloneSlice(cmp.Annotations)
	s.Developments = cloneSlice(cmp.Developments)
	s.Relations = cloneSlice(cmp.Relations)
	s.Existing = cmp.Existing
	s.Conflicts = cloneSlice(cmp.Conflicts)
}

// asNewPerson switches the session to creating a new person named name.
func (s *Session) asNewPerson(name string) {
	s.IsNewPerson = true
	s.TargetPersonID = nil
	s.IsComparedMode = false
	s.resetTracking()
	s.Profile.Name = name
}

// extraction returns the staged working copy in extraction form, used when
// a renamed session is compared against another stored person.
func (s *Session) extraction() models.ExtractResponse {
	return models.ExtractResponse{
		Profile: models.Profile{
			Name:     s.Profile.Name,
			Job:      s.Profile.Job,
			Birthday: s.Profile.Birthday,
			Notes:    cloneSlice(s.Profile.Notes),
			Events:   cloneSlice(s.Profile.Events),
		},
		Annotations:  cloneSlice(s.Annotations),
		Developments: cloneSlice(s.Developments),
		Relations:    cloneSlice(s.Relations),
	}
}

// --- scalars ---

// SetName replaces the person name. Collisions are checked on blur.
func (s *Session) SetName(name string) {
	s.Profile.Name = strings.TrimSpace(name)
}

// SetJob replaces the job. An edit of a conflicting field resolves it.
func (s *Session) SetJob(job string) {
	s.Profile.Job = nonEmpty(&job)
	s.touchScalar(FieldJob, job)
}

// SetBirthday replaces the birthday (MM-DD or YYYY-MM-DD, checked on confirm).
func (s *Session) SetBirthday(birthday string) {
	s.Profile.Birthday = nonEmpty(&birthday)
	s.touchScalar(FieldBirthday, birthday)
}

func (s *Session) touchScalar(field, value string) {
	for i := range s.Conflicts {
		if s.Conflicts[i].Field == field {
			action := models.UseNew
			s.Conflicts[i].New = value
			s.Conflicts[i].Action = &action
			return
		}
	}
}

// --- notes ---

func (s *Session) AddNote(note string) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return validationErrorf("note must not be empty")
	}
	s.Profile.Notes = append(s.Profile.Notes, note)
	return nil
}

func (s *Session) EditNote(i int, note string) error {
	if err := checkIndex("note", i, len(s.Profile.Notes)); err != nil {
		return err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return validationErrorf("note must not be empty")
	}
	s.Profile.Notes[i] = note
	return nil
}

func (s *Session) DeleteNote(i int) error {
	if err := checkIndex("note", i, len(s.Profile.Notes)); err != nil {
		return err
	}
	s.Profile.Notes = slices.Delete(s.Profile.Notes, i, i+1)
	s.dropAddition(SectionNotes, i)
	return nil
}

// --- events ---

func (s *Session) AddEvent(e models.Event) error {
	if strings.TrimSpace(e.Description) == "" {
		return validationErrorf("event description must not be empty")
	}
	e.ID = nil
	s.Profile.Events = append(s.Profile.Events, e)
	return nil
}

func (s *Session) EditEvent(i int, e models.Event) error {
	if err := checkIndex("event", i, len(s.Profile.Events)); err != nil {
		return err
	}
	e.ID = nil
	s.Profile.Events[i] = e
	return nil
}

func (s *Session) DeleteEvent(i int) error {
	if err := checkIndex("event", i, len(s.Profile.Events)); err != nil {
		return err
	}
	s.Profile.Events = slices.Delete(s.Profile.Events, i, i+1)
	s.dropAddition(SectionEvents, i)
	return nil
}

// EditExistingEvent updates a persisted event in place.
func (s *Session) EditExistingEvent(id int64, e models.Event) error {
	i := slices.IndexFunc(s.Existing.Events, func(v models.Event) bool { return idIs(v.ID, id) })
	if i < 0 {
		return validationErrorf("event %d is not part of this person", id)
	}
	e.ID = models.Ptr(id)
	s.Existing.Events[i] = e
	s.dirtyEvents[id] = true
	return nil
}

// DeleteExistingEvent removes a persisted event and queues its deletion.
func (s *Session) DeleteExistingEvent(id int64) error {
	i := slices.IndexFunc(s.Existing.Events, func(v models.Event) bool { return idIs(v.ID, id) })
	if i < 0 {
		return validationErrorf("event %d is not part of this person", id)
	}
	s.Existing.Events = slices.Delete(s.Existing.Events, i, i+1)
	delete(s.dirtyEvents, id)
	s.Deleted.Events = append(s.Deleted.Events, id)
	return nil
}

// --- annotations ---

func (s *Session) AddAnnotation(a models.Annotation) error {
	if strings.TrimSpace(a.Description) == "" {
		return validationErrorf("annotation description must not be empty")
	}
	a.ID = nil
	s.Annotations = append(s.Annotations, a)
	return nil
}

func (s *Session) EditAnnotation(i int, a models.Annotation) error {
	if err := checkIndex("annotation", i, len(s.Annotations)); err != nil {
		return err
	}
	a.ID = nil
	s.Annotations[i] = a
	return nil
}

func (s *Session) DeleteAnnotation(i int) error {
	if err := checkIndex("annotation", i, len(s.Annotations)); err != nil {
		return err
	}
	s.Annotations = slices.Delete(s.Annotations, i, i+1)
	s.dropAddition(SectionAnnotation, i)
	return nil
}

func (s *Session) EditExistingAnnotation(id int64, a models.Annotation) error {
	i := slices.IndexFunc(s.Existing.Annotations, func(v models.Annotation) bool { return idIs(v.ID, id) })
	if i < 0 {
		return validationErrorf("annotation %d is not part of this person", id)
	}
	a.ID = models.Ptr(id)
	s.Existing.Annotations[i] = a
	s.dirtyAnnotations[id] = true
	return nil
}

func (s *Session) DeleteExistingAnnotation(id int64) error {
	i := slices.IndexFunc(s.Existing.Annotations, func(v models.Annotation) bool { return idIs(v.ID, id) })
	if i < 0 {
		return validationErrorf("annotation %d is not part of this person", id)
	}
	s.Existing.Annotations = slices.Delete(s.Existing.Annotations, i, i+1)
	delete(s.dirtyAnnotations, id)
	s.Deleted.Annotations = append(s.Deleted.Annotations, id)
	return nil
}

// --- developments ---

func (s *Session) AddDevelopment(d models.Development) error {
	if strings.TrimSpace(d.Content) == "" {
		return validationErrorf("development content must not be empty")
	}
	d.ID = nil
	if d.Type == "" {
		d.Type = models.DefaultDevelopmentType
	}
	s.Developments = append(s.Developments, d)
	return nil
}

func (s *Session) EditDevelopment(i int, d models.Development) error {
	if err := checkIndex("development", i, len(s.Developments)); err != nil {
		return err
	}
	d.ID = nil
	if d.Type == "" {
		d.Type = models.DefaultDevelopmentType
	}
	s.Developments[i] = d
	return nil
}

func (s *Session) DeleteDevelopment(i int) error {
	if err := checkIndex("development", i, len(s.Developments)); err != nil {
		return err
	}
	s.Developments = slices.Delete(s.Developments, i, i+1)
	s.dropAddition(SectionDevelop, i)
	return nil
}

func (s *Session) EditExistingDevelopment(id int64, d models.Development) error {
	i := slices.IndexFunc(s.Existing.Developments, func(v models.Development) bool { return idIs(v.ID, id) })
	if i < 0 {
		return validationErrorf("development %d is not part of this person", id)
	}
	d.ID = models.Ptr(id)
	if d.Type == "" {
		d.Type = models.DefaultDevelopmentType
	}
	s.Existing.Developments[i] = d
	s.dirtyDevelopments[id] = true
	return nil
}

func (s *Session) DeleteExistingDevelopment(id int64) error {
	i := slices.IndexFunc(s.Existing.Developments, func(v models.Development) bool { return idIs(v.ID, id) })
	if i < 0 {
		return validationErrorf("development %d is not part of this person", id)
	}
	s.Existing.Developments = slices.Delete(s.Existing.Developments, i, i+1)
	delete(s.dirtyDevelopments, id)
	s.Deleted.Developments = append(s.Deleted.Developments, id)
	return nil
}

// --- relations ---

func (s *Session) AddRelation(r models.ExtractedRelation) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return validationErrorf("relation name must not be empty")
	}
	s.Relations = append(s.Relations, r)
	return nil
}

func (s *Session) EditRelation(i int, r models.ExtractedRelation) error {
	if err := checkIndex("relation", i, len(s.Relations)); err != nil {
		return err
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return validationErrorf("relation name must not be empty")
	}
	s.Relations[i] = r
	return nil
}

func (s *Session) DeleteRelation(i int) error {
	if err := checkIndex("relation", i, len(s.Relations)); err != nil {
		return err
	}
	s.Relations = slices.Delete(s.Relations, i, i+1)
	s.dropAddition(SectionRelations, i)
	return nil
}

// --- conflicts ---

// Resolve applies a resolution to the conflict item at field.
//
// For scalars keep_existing restores the stored value, use_new takes the
// extracted value and merge joins both. For additions keep_existing drops
// the proposed item and the other actions keep it.
func (s *Session) Resolve(field string, action models.Resolution) error {
	if !action.Valid() {
		return validationErrorf("unknown resolution %q", action)
	}
	ci := slices.IndexFunc(s.Conflicts, func(c models.ConflictItem) bool { return c.Field == field })
	if ci < 0 {
		return validationErrorf("no conflict for field %q", field)
	}
	c := &s.Conflicts[ci]

	if field == FieldJob || field == FieldBirthday {
		existing, incoming := asString(c.Existing), asString(c.New)
		var value string
		switch action {
		case models.KeepExisting:
			value = existing
		case models.UseNew:
			value = incoming
		case models.Merge:
			if field == FieldBirthday {
				return validationErrorf("birthday values cannot be merged")
			}
			value = existing + mergeSeparator + incoming
		}
		if field == FieldJob {
			s.Profile.Job = nonEmpty(&value)
		} else {
			s.Profile.Birthday = nonEmpty(&value)
		}
		c.Action = &action
		return nil
	}

	section, idx, ok := ParseAdditionField(field)
	if !ok {
		return validationErrorf("malformed conflict field %q", field)
	}
	if action != models.KeepExisting {
		c.Action = &action
		return nil
	}
	switch section {
	case SectionNotes:
		return s.DeleteNote(idx)
	case SectionEvents:
		return s.DeleteEvent(idx)
	case SectionAnnotation:
		return s.DeleteAnnotation(idx)
	case SectionDevelop:
		return s.DeleteDevelopment(idx)
	case SectionRelations:
		return s.DeleteRelation(idx)
	}
	return validationErrorf("malformed conflict field %q", field)
}

// ResolveAll applies action to every unresolved conflict.
func (s *Session) ResolveAll(action models.Resolution) error {
	if !action.Valid() {
		return validationErrorf("unknown resolution %q", action)
	}
	var fields []string
	for _, c := range s.Conflicts {
		if c.Action != nil {
			continue
		}
		if c.Field == FieldBirthday && action == models.Merge {
			return validationErrorf("birthday values cannot be merged; resolve %s first", FieldBirthday)
		}
		fields = append(fields, c.Field)
	}
	// Dropping additions renumbers later items of the same section, so walk
	// back to front.
	for i := len(fields) - 1; i >= 0; i-- {
		if err := s.Resolve(fields[i], action); err != nil {
			return err
		}
	}
	return nil
}

// Unresolved returns the conflict items still lacking a resolution.
func (s *Session) Unresolved() []models.ConflictItem {
	var out []models.ConflictItem
	for _, c := range s.Conflicts {
		if c.Action == nil {
			out = append(out, c)
		}
	}
	return out
}

// dropAddition removes the conflict for section.i and shifts the indices
// of later additions in the same section down by one.
func (s *Session) dropAddition(section string, i int) {
	out := s.Conflicts[:0]
	for _, c := range s.Conflicts {
		sec, idx, ok := ParseAdditionField(c.Field)
		if ok && sec == section {
			if idx == i {
				continue
			}
			if idx > i {
				c.Field = AdditionField(section, idx-1)
			}
		}
		out = append(out, c)
	}
	s.Conflicts = out
}

// --- confirm ---

// Validate checks the working copy before it is sent for persistence.
func (s *Session) Validate() error {
	if strings.TrimSpace(s.Profile.Name) == "" {
		return validationErrorf("name must not be empty")
	}
	if b := models.Deref(s.Profile.Birthday); b != "" && !ValidBirthday(b) {
		return validationErrorf("birthday %q must be MM-DD or YYYY-MM-DD", b)
	}
	for _, r := range s.Relations {
		if r.Name == s.Profile.Name {
			return validationErrorf("%s cannot be related to themselves", r.Name)
		}
	}
	if s.IsComparedMode {
		if n := len(s.Unresolved()); n > 0 {
			return validationErrorf("%d conflict(s) still unresolved", n)
		}
	}
	return nil
}

// Payload builds the atomic confirm request from the working copy.
func (s *Session) Payload() models.ConfirmRequest {
	events := cloneSlice(s.Profile.Events)
	for _, e := range s.Existing.Events {
		if e.ID != nil && s.dirtyEvents[*e.ID] {
			events = append(events, e)
		}
	}
	annotations := cloneSlice(s.Annotations)
	for _, a := range s.Existing.Annotations {
		if a.ID != nil && s.dirtyAnnotations[*a.ID] {
			annotations = append(annotations, a)
		}
	}
	developments := cloneSlice(s.Developments)
	for _, d := range s.Existing.Developments {
		if d.ID != nil && s.dirtyDevelopments[*d.ID] {
			developments = append(developments, d)
		}
	}

	req := models.ConfirmRequest{
		OriginalText: s.OriginalText,
		IsNewPerson:  s.IsNewPerson,
		Profile: models.Profile{
			Name:     s.Profile.Name,
			Job:      s.Profile.Job,
			Birthday: s.Profile.Birthday,
			Notes:    cloneSlice(s.Profile.Notes),
			Events:   events,
		},
		Annotations:  annotations,
		Developments: developments,
		Relations:    cloneSlice(s.Relations),
		Deleted: models.DeletedItems{
			Events:       cloneSlice(s.Deleted.Events),
			Annotations:  cloneSlice(s.Deleted.Annotations),
			Developments: cloneSlice(s.Deleted.Developments),
		},
	}
	if s.TargetPersonID != nil {
		req.PersonID = models.Ptr(*s.TargetPersonID)
	}
	return req
}

// Clone returns a copy safe to hand out to readers.
func (s *Session) Clone() *Session {
	c := *s
	c.Profile.Notes = cloneSlice(s.Profile.Notes)
	c.Profile.Events = cloneSlice(s.Profile.Events)
	c.Annotations = cloneSlice(s.Annotations)
	c.Developments = cloneSlice(s.Developments)
	c.Relations = cloneSlice(s.Relations)
	c.Existing = models.ExistingSections{
		Notes:        cloneSlice(s.Existing.Notes),
		Events:       cloneSlice(s.Existing.Events),
		Annotations:  cloneSlice(s.Existing.Annotations),
		Developments: cloneSlice(s.Existing.Developments),
	}
	c.Conflicts = cloneSlice(s.Conflicts)
	c.Deleted = models.DeletedItems{
		Events:       cloneSlice(s.Deleted.Events),
		Annotations:  cloneSlice(s.Deleted.Annotations),
		Developments: cloneSlice(s.Deleted.Developments),
	}
	if s.TargetPersonID != nil {
		c.TargetPersonID = models.Ptr(*s.TargetPersonID)
	}
	c.dirtyEvents = maps.Clone(s.dirtyEvents)
	c.dirtyAnnotations = maps.Clone(s.dirtyAnnotations)
	c.dirtyDevelopments = maps.Clone(s.dirtyDevelopments)
	return &c
}

// ValidBirthday reports whether b is a real date in MM-DD or YYYY-MM-DD form.
func ValidBirthday(b string) bool {
	switch len(b) {
	case len("01-02"):
		_, err := time.Parse("01-02", b)
		return err == nil
	case len("2006-01-02"):
		_, err := time.Parse("2006-01-02", b)
		return err == nil
	}
	return false
}

func checkIndex(kind string, i, n int) error {
	if i < 0 || i >= n {
		return validationErrorf("%s index %d out of range", kind, i)
	}
	return nil
}

func idIs(id *int64, want int64) bool {
	return id != nil && *id == want
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
