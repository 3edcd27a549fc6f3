package reconcile

import (
	"testing"

	"github.com/raphaelgruber/circles/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func people(names ...string) []models.Person {
	out := make([]models.Person, len(names))
	for i, n := range names {
		out[i] = models.Person{ID: int64(i + 1), Name: n}
	}
	return out
}

func TestResolve(t *testing.T) {
	known := people("张三", "李四", "Alice")

	t.Run("absent name returns nil", func(t *testing.T) {
		assert.Nil(t, Resolve("王五", known))
		assert.Nil(t, Resolve("王五", nil))
	})

	t.Run("exact match returns the person", func(t *testing.T) {
		p := Resolve("李四", known)
		require.NotNil(t, p)
		assert.Equal(t, int64(2), p.ID)
	})

	t.Run("idempotent", func(t *testing.T) {
		first := Resolve("Alice", known)
		second := Resolve("Alice", known)
		require.NotNil(t, first)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("case sensitive", func(t *testing.T) {
		assert.Nil(t, Resolve("alice", known))
		assert.Nil(t, Resolve(" Alice", known))
	})

	t.Run("empty candidate never matches", func(t *testing.T) {
		assert.Nil(t, Resolve("", people("")))
	})
}

func TestSuggestName(t *testing.T) {
	tests := []struct {
		name  string
		known []string
		input string
		want  string
	}{
		{"first suffix", []string{"张三"}, "张三", "张三(2)"},
		{"skips taken suffix", []string{"张三", "张三(2)"}, "张三", "张三(3)"},
		{"fills gap", []string{"Bob", "Bob(3)"}, "Bob", "Bob(2)"},
		{"no collisions", nil, "Eve", "Eve(2)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SuggestName(tt.input, people(tt.known...)))
		})
	}
}
