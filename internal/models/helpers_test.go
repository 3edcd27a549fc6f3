package models

import (
	"testing"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIDInt(t *testing.T) {
	tests := []struct {
		name    string
		id      any
		want    int64
		wantErr bool
	}{
		{"int64", int64(7), 7, false},
		{"int", 3, 3, false},
		{"uint64", uint64(12), 12, false},
		{"whole float", float64(42), 42, false},
		{"fractional float", 1.5, 0, true},
		{"string", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RecordIDInt(surrealmodels.RecordID{Table: "person", ID: tt.id})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseGraphLayout(t *testing.T) {
	t.Run("full shape", func(t *testing.T) {
		l, err := ParseGraphLayout([]byte(`{"nodes":{"1":{"x":10,"y":20}},"zoom":1.5,"pan":{"x":3,"y":4}}`))
		require.NoError(t, err)
		require.NotNil(t, l)
		assert.Equal(t, Point{X: 10, Y: 20}, l.Nodes["1"])
		assert.Equal(t, 1.5, l.Zoom)
		assert.Equal(t, Point{X: 3, Y: 4}, l.Pan)
	})

	t.Run("legacy flat map", func(t *testing.T) {
		l, err := ParseGraphLayout([]byte(`{"1":{"x":1,"y":2},"2":{"x":3,"y":4}}`))
		require.NoError(t, err)
		require.NotNil(t, l)
		assert.Len(t, l.Nodes, 2)
		assert.Zero(t, l.Zoom)
	})

	t.Run("empty object", func(t *testing.T) {
		l, err := ParseGraphLayout([]byte(`{}`))
		require.NoError(t, err)
		assert.Nil(t, l)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseGraphLayout([]byte(`[1,2]`))
		assert.Error(t, err)
	})
}

func TestPersonProfileAccessors(t *testing.T) {
	p := &Person{Profile: map[string]any{
		"job":      "engineer",
		"birthday": "",
		"notes":    []any{"likes tea", 3, "runs"},
	}}

	require.NotNil(t, p.ProfileString("job"))
	assert.Equal(t, "engineer", *p.ProfileString("job"))
	assert.Nil(t, p.ProfileString("birthday"))
	assert.Nil(t, p.ProfileString("missing"))
	assert.Equal(t, []string{"likes tea", "runs"}, p.Notes())

	var nilPerson *Person
	assert.Nil(t, nilPerson.ProfileString("job"))
}
