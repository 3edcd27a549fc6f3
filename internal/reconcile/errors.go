// Package reconcile decides whether extracted person data describes a new or
// a known person, diffs it against the stored record and drives the
// review-edit-confirm session that produces the payload to persist.
package reconcile

import (
	"errors"
	"fmt"
)

// Error kinds reported by the session controller.
// Use errors.Is() to check for these in calling code.
var (
	// ErrExtraction indicates the extraction collaborator failed. No session is created.
	ErrExtraction = errors.New("extraction failed")

	// ErrNameCheck indicates the name lookup failed. The controller treats it as no match.
	ErrNameCheck = errors.New("name check failed")

	// ErrCompare indicates the compare call failed. The decision prompt stays open.
	ErrCompare = errors.New("compare failed")

	// ErrPersistence indicates confirm failed. The session is kept intact.
	ErrPersistence = errors.New("persistence failed")

	// ErrValidation indicates local validation rejected the input. No network call was made.
	ErrValidation = errors.New("validation failed")

	// ErrBusy indicates an operation is already in flight.
	ErrBusy = errors.New("session busy")

	// ErrInvalidTransition indicates the operation is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrNoSession indicates there is no active session to operate on.
	ErrNoSession = errors.New("no active session")

	// ErrCancelled is returned to the caller whose in-flight result was dropped by Cancel.
	ErrCancelled = errors.New("session cancelled")

	// ErrNoTarget indicates a compare was requested without a stored person.
	ErrNoTarget = fmt.Errorf("%w: no target person", ErrCompare)
)

// wrapKind tags err with one of the error kinds above.
func wrapKind(kind, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// validationErrorf builds an ErrValidation with a formatted reason.
func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
