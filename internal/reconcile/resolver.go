package reconcile

import (
	"fmt"

	"github.com/raphaelgruber/circles/internal/models"
)

// Resolve returns the first known person whose name equals candidate
// exactly, or nil. Matching is case-sensitive with no normalisation.
func Resolve(candidate string, known []models.Person) *models.Person {
	if candidate == "" {
		return nil
	}
	for i := range known {
		if known[i].Name == candidate {
			return &known[i]
		}
	}
	return nil
}

// SuggestName returns name(n) for the smallest n >= 2 that no known
// person uses.
func SuggestName(name string, known []models.Person) string {
	taken := make(map[string]struct{}, len(known))
	for _, p := range known {
		taken[p.Name] = struct{}{}
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s(%d)", name, n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
