package reconcile

import (
	"fmt"
	"strconv"

	"github.com/raphaelgruber/circles/internal/models"
)

// Field paths used in conflict items.
const (
	FieldJob          = "profile.job"
	FieldBirthday     = "profile.birthday"
	SectionNotes      = "profile.notes"
	SectionEvents     = "profile.events"
	SectionAnnotation = "annotations"
	SectionDevelop    = "developments"
	SectionRelations  = "relations"
)

// sectionOrder is the fixed order of conflict items after the scalar fields.
var sectionOrder = []string{SectionNotes, SectionEvents, SectionAnnotation, SectionDevelop, SectionRelations}

// Diff compares one scalar field. It reports a conflict only when both
// values are present, non-empty and different. When the stored value is
// empty the new value is carried forward without a conflict.
func Diff(field string, existing, incoming *string) *models.ConflictItem {
	ex := models.Deref(existing)
	in := models.Deref(incoming)
	if ex == "" || in == "" || ex == in {
		return nil
	}
	return &models.ConflictItem{Field: field, Existing: ex, New: in}
}

// DiffList proposes every element of incoming as an addition to section.
// Stored elements are never overwritten.
func DiffList[T any](section string, incoming []T) []models.ConflictItem {
	items := make([]models.ConflictItem, 0, len(incoming))
	for i, v := range incoming {
		items = append(items, models.ConflictItem{
			Field: AdditionField(section, i),
			New:   v,
		})
	}
	return items
}

// AdditionField builds the field path of the i-th proposed element of section.
func AdditionField(section string, i int) string {
	return fmt.Sprintf("%s.%d", section, i)
}

// ParseAdditionField splits an addition field path into section and index.
func ParseAdditionField(field string) (section string, index int, ok bool) {
	for _, s := range sectionOrder {
		prefix := s + "."
		if len(field) <= len(prefix) || field[:len(prefix)] != prefix {
			continue
		}
		n, err := strconv.Atoi(field[len(prefix):])
		if err != nil || n < 0 {
			return "", 0, false
		}
		return s, n, true
	}
	return "", 0, false
}

// EventGroup is a set of events sharing one date, in display order.
type EventGroup struct {
	Key    string
	Date   string
	Events []models.Event
}

// GroupEvents groups events by date in order of first appearance. An event
// with an empty date forms its own group keyed by its position.
func GroupEvents(events []models.Event) []EventGroup {
	var groups []EventGroup
	index := make(map[string]int)
	for i, e := range events {
		key := e.Date
		if key == "" {
			key = fmt.Sprintf("no-date-%d", i)
		}
		if gi, ok := index[key]; ok {
			groups[gi].Events = append(groups[gi].Events, e)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, EventGroup{Key: key, Date: e.Date, Events: []models.Event{e}})
	}
	return groups
}
