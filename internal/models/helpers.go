package models

import (
	"fmt"
	"math"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// RecordIDInt safely extracts the integer ID from a SurrealDB RecordID.
// CBOR decoding may yield any integer width or a float for whole numbers.
func RecordIDInt(id surrealmodels.RecordID) (int64, error) {
	switch v := id.ID.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("record ID out of range: %d", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("record ID is not integral: %v", v)
		}
		return int64(v), nil
	}
	return 0, fmt.Errorf("unexpected ID type: %T (expected integer)", id.ID)
}

// MustRecordIDInt extracts the integer ID, panicking if not an integer.
// Use only for records created by this module.
func MustRecordIDInt(id surrealmodels.RecordID) int64 {
	n, err := RecordIDInt(id)
	if err != nil {
		panic(err)
	}
	return n
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
