package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for database operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNameTaken indicates a person with the same name already exists.
	// Person names are unique; the unique index rejects the write.
	ErrNameTaken = errors.New("person name already taken")

	// ErrCircleNameTaken indicates a circle with the same name already exists.
	ErrCircleNameTaken = errors.New("circle name already taken")

	// ErrTransactionConflict indicates a SurrealDB transaction conflict.
	// This occurs when multiple concurrent operations attempt to modify the same records.
	// Callers should typically retry or skip the operation.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
)

// wrapQueryError inspects a SurrealDB error and wraps it with the appropriate
// sentinel error if it's a known query error type. Returns the original error
// if it's not a QueryError or doesn't match known patterns.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		if strings.Contains(msg, "person_name") && strings.Contains(msg, "already contains") {
			return fmt.Errorf("%w: %s", ErrNameTaken, msg)
		}
		if strings.Contains(msg, "circle_name") && strings.Contains(msg, "already contains") {
			return fmt.Errorf("%w: %s", ErrCircleNameTaken, msg)
		}
		if strings.Contains(msg, "Transaction conflict") {
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		}
		if strings.Contains(msg, "person not found") || strings.Contains(msg, "circle not found") {
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		}
	}

	return err
}
