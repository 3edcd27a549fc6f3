package models

// Resolution is the user's decision for a conflict item.
type Resolution string

const (
	KeepExisting Resolution = "keep_existing"
	UseNew       Resolution = "use_new"
	Merge        Resolution = "merge"
)

// Valid reports whether r is a known resolution.
func (r Resolution) Valid() bool {
	switch r {
	case KeepExisting, UseNew, Merge:
		return true
	}
	return false
}

// ConflictItem records one field-level difference between a stored person
// and newly extracted data. Field is a dotted path such as "profile.job" or
// "annotations.2". Existing is nil for list additions.
type ConflictItem struct {
	Field    string      `json:"field"`
	Existing any         `json:"existing"`
	New      any         `json:"new"`
	Action   *Resolution `json:"action,omitempty"`
}

// IsAddition reports whether the item proposes a new list element.
func (c ConflictItem) IsAddition() bool {
	return c.Existing == nil
}

// ExistingSections holds the stored list items of a person, untouched by a compare.
type ExistingSections struct {
	Notes        []string      `json:"notes"`
	Events       []Event       `json:"events"`
	Annotations  []Annotation  `json:"annotations"`
	Developments []Development `json:"developments"`
}

// CompareResult is the outcome of comparing extracted data with a stored person.
type CompareResult struct {
	PersonID     int64               `json:"person_id"`
	Profile      Profile             `json:"profile"`
	Annotations  []Annotation        `json:"annotations"`
	Developments []Development       `json:"developments"`
	Relations    []ExtractedRelation `json:"relations"`
	Existing     ExistingSections    `json:"existing"`
	Conflicts    []ConflictItem      `json:"conflicts"`
}

// DeletedItems lists ids of stored items removed during a session.
type DeletedItems struct {
	Events       []int64 `json:"events,omitempty"`
	Annotations  []int64 `json:"annotations,omitempty"`
	Developments []int64 `json:"developments,omitempty"`
}

// Empty reports whether no deletions are queued.
func (d DeletedItems) Empty() bool {
	return len(d.Events) == 0 && len(d.Annotations) == 0 && len(d.Developments) == 0
}

// ConfirmRequest is the single atomic payload persisted on confirm.
type ConfirmRequest struct {
	OriginalText string              `json:"original_text"`
	IsNewPerson  bool                `json:"is_new_person"`
	PersonID     *int64              `json:"person_id,omitempty"`
	Profile      Profile             `json:"profile"`
	Annotations  []Annotation        `json:"annotations"`
	Developments []Development       `json:"developments"`
	Relations    []ExtractedRelation `json:"relations"`
	Deleted      DeletedItems        `json:"deleted"`
}

// ConfirmResponse reports the outcome of a confirm.
type ConfirmResponse struct {
	Success  bool   `json:"success"`
	PersonID int64  `json:"person_id"`
	Message  string `json:"message"`
}
