package reconcile

import (
	"errors"
	"testing"

	"github.com/raphaelgruber/circles/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedZhang() *models.Person {
	return &models.Person{
		ID:   7,
		Name: "张三",
		Profile: map[string]any{
			"job":   "工程师",
			"notes": []any{"喜欢茶"},
		},
		Events:       []models.Event{{ID: models.Ptr(int64(1)), Date: "2024-01-01", Description: "old"}},
		Annotations:  []models.Annotation{{ID: models.Ptr(int64(2)), Description: "stored"}},
		Developments: []models.Development{{ID: models.Ptr(int64(3)), Content: "GPU", Type: "resource"}},
	}
}

func TestAggregate(t *testing.T) {
	extracted := models.ExtractResponse{
		Profile: models.Profile{
			Name:     "张三",
			Job:      models.Ptr("产品经理"),
			Birthday: models.Ptr("05-20"),
			Notes:    []string{"养猫"},
			Events:   []models.Event{{Date: "2025-03-15", Description: "一起吃饭"}},
		},
		Annotations:  []models.Annotation{{Time: "2025-04-01", Description: "出差"}},
		Developments: []models.Development{{Content: "AI芯片"}},
		Relations:    []models.ExtractedRelation{{Name: "李四", RelationType: "同事"}},
	}

	res, err := Aggregate(storedZhang(), extracted)
	require.NoError(t, err)

	t.Run("scalars keep stored value and fill empty ones", func(t *testing.T) {
		assert.Equal(t, "工程师", *res.Profile.Job)
		assert.Equal(t, "05-20", *res.Profile.Birthday)
		assert.Equal(t, "张三", res.Profile.Name)
	})

	t.Run("conflicts are ordered", func(t *testing.T) {
		fields := make([]string, len(res.Conflicts))
		for i, c := range res.Conflicts {
			fields[i] = c.Field
		}
		assert.Equal(t, []string{
			"profile.job",
			"profile.notes.0",
			"profile.events.0",
			"annotations.0",
			"developments.0",
			"relations.0",
		}, fields)
	})

	t.Run("stored items untouched", func(t *testing.T) {
		assert.Equal(t, []string{"喜欢茶"}, res.Existing.Notes)
		require.Len(t, res.Existing.Events, 1)
		assert.Equal(t, "old", res.Existing.Events[0].Description)
		assert.Len(t, res.Existing.Annotations, 1)
		assert.Len(t, res.Existing.Developments, 1)
	})

	t.Run("development type defaults", func(t *testing.T) {
		assert.Equal(t, models.DefaultDevelopmentType, res.Developments[0].Type)
	})

	t.Run("person id carried", func(t *testing.T) {
		assert.Equal(t, int64(7), res.PersonID)
	})
}

func TestAggregateNoTarget(t *testing.T) {
	_, err := Aggregate(nil, models.ExtractResponse{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCompare))
	assert.True(t, errors.Is(err, ErrNoTarget))
}

func TestAggregateNoChanges(t *testing.T) {
	res, err := Aggregate(storedZhang(), models.ExtractResponse{
		Profile: models.Profile{Name: "张三", Job: models.Ptr("工程师")},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Conflicts)
}
