package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/circles/internal/models"
)

// Policy decides what an unattended reconciliation does when the extracted
// name belongs to a stored person.
type Policy string

const (
	// PolicyMerge merges into the stored person. Proposed additions are
	// accepted and conflicting scalars keep the stored value.
	PolicyMerge Policy = "merge"
	// PolicyNew creates a new person under the suggested suffixed name.
	PolicyNew Policy = "new"
	// PolicySkip leaves the stored person untouched.
	PolicySkip Policy = "skip"
)

// ErrSkipped is returned by Plan when PolicySkip applies.
var ErrSkipped = errors.New("skipped: person already exists")

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyMerge, PolicyNew, PolicySkip:
		return p, nil
	case "":
		return PolicyMerge, nil
	}
	return "", validationErrorf("unknown conflict policy %q (want merge, new or skip)", s)
}

// Plan runs one text through extraction, name check and, for a matching
// name, compare, and returns the confirm payload without user interaction.
// known is the current person list, used to suggest a free name.
func Plan(ctx context.Context, text string, policy Policy, ex Extractor, dir Directory, known []models.Person) (*models.ConfirmRequest, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationErrorf("text must not be empty")
	}

	extracted, err := ex.Extract(ctx, text)
	if err != nil {
		return nil, wrapKind(ErrExtraction, err)
	}
	if extracted == nil {
		return nil, wrapKind(ErrExtraction, fmt.Errorf("empty extraction result"))
	}
	s := NewSession(text, *extracted)
	if s.Profile.Name == "" {
		return nil, validationErrorf("no person name found in text")
	}

	match, err := dir.CheckName(ctx, s.Profile.Name)
	if err != nil {
		return nil, wrapKind(ErrNameCheck, err)
	}

	if match != nil && match.Exists && match.Person != nil {
		switch policy {
		case PolicySkip:
			return nil, fmt.Errorf("%w: %s", ErrSkipped, s.Profile.Name)
		case PolicyNew:
			s.asNewPerson(SuggestName(s.Profile.Name, known))
		default:
			cmp, err := dir.Compare(ctx, match.Person.ID, s.extraction())
			if err != nil {
				return nil, wrapKind(ErrCompare, err)
			}
			s.applyCompare(cmp)
			if err := s.autoResolve(); err != nil {
				return nil, err
			}
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	req := s.Payload()
	return &req, nil
}

// autoResolve accepts additions and keeps stored scalars.
func (s *Session) autoResolve() error {
	for _, field := range []string{FieldJob, FieldBirthday} {
		for _, c := range s.Unresolved() {
			if c.Field == field {
				if err := s.Resolve(field, models.KeepExisting); err != nil {
					return err
				}
			}
		}
	}
	return s.ResolveAll(models.UseNew)
}
