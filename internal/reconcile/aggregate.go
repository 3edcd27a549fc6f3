package reconcile

import (
	"github.com/raphaelgruber/circles/internal/models"
)

// Aggregate compares extracted data with a stored person and returns the
// merged view plus the ordered conflict set.
//
// Scalars keep the stored value; an empty stored value is filled from the
// extraction. List items from the extraction are returned as proposed
// additions, each with its own conflict item. Stored list items are
// returned untouched under Existing.
func Aggregate(existing *models.Person, extracted models.ExtractResponse) (*models.CompareResult, error) {
	if existing == nil {
		return nil, ErrNoTarget
	}

	storedJob := existing.ProfileString("job")
	storedBirthday := existing.ProfileString("birthday")

	result := &models.CompareResult{
		PersonID: existing.ID,
		Profile: models.Profile{
			Name:     existing.Name,
			Job:      pick(storedJob, extracted.Profile.Job),
			Birthday: pick(storedBirthday, extracted.Profile.Birthday),
			Notes:    cloneSlice(extracted.Profile.Notes),
			Events:   cloneSlice(extracted.Profile.Events),
		},
		Annotations:  cloneSlice(extracted.Annotations),
		Developments: normalizeDevelopments(extracted.Developments),
		Relations:    cloneSlice(extracted.Relations),
		Existing: models.ExistingSections{
			Notes:        cloneSlice(existing.Notes()),
			Events:       cloneSlice(existing.Events),
			Annotations:  cloneSlice(existing.Annotations),
			Developments: cloneSlice(existing.Developments),
		},
	}

	var conflicts []models.ConflictItem
	if c := Diff(FieldJob, storedJob, extracted.Profile.Job); c != nil {
		conflicts = append(conflicts, *c)
	}
	if c := Diff(FieldBirthday, storedBirthday, extracted.Profile.Birthday); c != nil {
		conflicts = append(conflicts, *c)
	}
	conflicts = append(conflicts, DiffList(SectionNotes, result.Profile.Notes)...)
	conflicts = append(conflicts, DiffList(SectionEvents, result.Profile.Events)...)
	conflicts = append(conflicts, DiffList(SectionAnnotation, result.Annotations)...)
	conflicts = append(conflicts, DiffList(SectionDevelop, result.Developments)...)
	conflicts = append(conflicts, DiffList(SectionRelations, result.Relations)...)
	result.Conflicts = conflicts

	return result, nil
}

// pick keeps the stored value unless it is empty.
func pick(stored, incoming *string) *string {
	if models.Deref(stored) != "" {
		return models.Ptr(*stored)
	}
	if models.Deref(incoming) != "" {
		return models.Ptr(*incoming)
	}
	return nil
}

func normalizeDevelopments(devs []models.Development) []models.Development {
	out := cloneSlice(devs)
	for i := range out {
		if out[i].Type == "" {
			out[i].Type = models.DefaultDevelopmentType
		}
	}
	return out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
