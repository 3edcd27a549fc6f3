package db

import (
	"errors"
	"strings"
	"testing"

	"github.com/raphaelgruber/circles/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go"
)

func TestWrapQueryError(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want error
	}{
		{"name taken", "Database index `person_name` already contains '张三', with record `person:1`", ErrNameTaken},
		{"conflict", "Transaction conflict: resource busy", ErrTransactionConflict},
		{"not found", "An error occurred: person not found", ErrNotFound},
		{"circle name taken", "Database index `circle_name` already contains '家人', with record `circle:1`", ErrCircleNameTaken},
		{"circle not found", "An error occurred: circle not found", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapQueryError(&surrealdb.QueryError{Message: tt.msg})
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	plain := errors.New("socket closed")
	assert.Equal(t, plain, wrapQueryError(plain))
	assert.NoError(t, wrapQueryError(nil))
}

func TestDedupeEdges(t *testing.T) {
	edges := []models.GraphEdge{
		{Source: 2, Target: 1, RelationType: "friend"},
		{Source: 1, Target: 2, RelationType: "friend"},
		{Source: 3, Target: 3, RelationType: "self"},
		{Source: 1, Target: 3, RelationType: "colleague"},
		{Source: 3, Target: 1, RelationType: "colleague"},
	}

	got := DedupeEdges(edges)
	require.Len(t, got, 2)
	assert.Equal(t, models.GraphEdge{Source: 2, Target: 1, RelationType: "friend"}, got[0])
	assert.Equal(t, models.GraphEdge{Source: 1, Target: 3, RelationType: "colleague"}, got[1])
}

func TestTxBuilderItems(t *testing.T) {
	b := newTx()
	id := int64(4)
	b.events([]models.Event{
		{Date: "2025-03-15", Description: "dinner", Location: models.Ptr("Beijing")},
		{ID: &id, Date: "2025-04-01", Description: "edited"},
	})
	b.deletions(models.DeletedItems{Annotations: []int64{9}})

	sql := b.sql()
	assert.True(t, strings.HasPrefix(sql, "BEGIN TRANSACTION;"))
	assert.Contains(t, sql, `CREATE type::record("event", fn::next_id("event")) SET person = $person, source = "user", date = $ev_0.date`)
	assert.Contains(t, sql, `UPDATE type::record("event", $ev_1_id) SET date = $ev_1.date`)
	assert.Contains(t, sql, "DELETE annotation WHERE person = $person AND record::id(id) IN $del_annotation;")
	assert.True(t, strings.HasSuffix(sql, "RETURN record::id($person);"))

	assert.Equal(t, map[string]any{"date": "2025-03-15", "description": "dinner", "location": "Beijing"}, b.vars["ev_0"])
	assert.NotContains(t, b.vars["ev_1"], "location", "absent location stays NONE")
	assert.Equal(t, int64(4), b.vars["ev_1_id"])
}

func TestTxBuilderRelationsSkipDuplicates(t *testing.T) {
	b := newTx()
	b.relations([]models.ExtractedRelation{
		{Name: "李四", RelationType: "同事"},
		{Name: " 李四 ", RelationType: "朋友"},
		{Name: "", RelationType: "x"},
	})
	assert.Equal(t, "李四", b.vars["rel_0_name"])
	assert.NotContains(t, b.vars, "rel_1_name")
	assert.NotContains(t, b.vars, "rel_2_name")
	assert.Equal(t, 1, strings.Count(b.sql(), "RELATE $person->knows->"))
}
