package reconcile

import (
	"testing"

	"github.com/raphaelgruber/circles/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	s := func(v string) *string { return &v }

	tests := []struct {
		name     string
		existing *string
		incoming *string
		conflict bool
	}{
		{"empty existing is an addition", s(""), s("工程师"), false},
		{"absent existing is an addition", nil, s("工程师"), false},
		{"different values conflict", s("工程师"), s("产品经理"), true},
		{"equal values", s("工程师"), s("工程师"), false},
		{"empty incoming", s("工程师"), s(""), false},
		{"both absent", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(FieldJob, tt.existing, tt.incoming)
			if !tt.conflict {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, FieldJob, got.Field)
			assert.Equal(t, "工程师", got.Existing)
			assert.Equal(t, "产品经理", got.New)
			assert.Nil(t, got.Action)
		})
	}
}

func TestDiffList(t *testing.T) {
	items := DiffList(SectionAnnotation, []models.Annotation{
		{Description: "a"}, {Description: "b"},
	})
	require.Len(t, items, 2)
	assert.Equal(t, "annotations.0", items[0].Field)
	assert.Equal(t, "annotations.1", items[1].Field)
	assert.True(t, items[1].IsAddition())
	assert.Nil(t, items[1].Action)
}

func TestParseAdditionField(t *testing.T) {
	tests := []struct {
		field   string
		section string
		index   int
		ok      bool
	}{
		{"profile.notes.3", SectionNotes, 3, true},
		{"profile.events.0", SectionEvents, 0, true},
		{"annotations.12", SectionAnnotation, 12, true},
		{"developments.1", SectionDevelop, 1, true},
		{"relations.0", SectionRelations, 0, true},
		{"profile.job", "", 0, false},
		{"annotations.x", "", 0, false},
		{"annotations.", "", 0, false},
		{"unknown.1", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			section, index, ok := ParseAdditionField(tt.field)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.section, section)
			assert.Equal(t, tt.index, index)
		})
	}
}

func TestGroupEvents(t *testing.T) {
	groups := GroupEvents([]models.Event{
		{Date: "05-01", Description: "A"},
		{Date: "05-01", Description: "B"},
		{Date: "", Description: "C"},
	})

	require.Len(t, groups, 2)
	assert.Equal(t, "05-01", groups[0].Key)
	assert.Len(t, groups[0].Events, 2)
	assert.Equal(t, "no-date-2", groups[1].Key)
	assert.Len(t, groups[1].Events, 1)

	t.Run("undated events never share a group", func(t *testing.T) {
		groups := GroupEvents([]models.Event{{Description: "x"}, {Description: "y"}})
		require.Len(t, groups, 2)
		assert.NotEqual(t, groups[0].Key, groups[1].Key)
	})

	t.Run("first appearance order", func(t *testing.T) {
		groups := GroupEvents([]models.Event{
			{Date: "2024-02-01"}, {Date: "2023-01-01"}, {Date: "2024-02-01"},
		})
		require.Len(t, groups, 2)
		assert.Equal(t, "2024-02-01", groups[0].Date)
		assert.Equal(t, "2023-01-01", groups[1].Date)
	})
}
