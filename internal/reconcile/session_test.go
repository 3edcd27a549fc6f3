package reconcile

import (
	"errors"
	"testing"

	"github.com/raphaelgruber/circles/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func comparedSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession("text", models.ExtractResponse{})
	cmp, err := Aggregate(storedZhang(), models.ExtractResponse{
		Profile: models.Profile{
			Name:   "张三",
			Job:    models.Ptr("产品经理"),
			Notes:  []string{"n0", "n1"},
			Events: []models.Event{{Date: "05-01", Description: "e0"}},
		},
		Annotations: []models.Annotation{{Description: "a0"}, {Description: "a1"}, {Description: "a2"}},
	})
	require.NoError(t, err)
	s.applyCompare(cmp)
	return s
}

func TestSessionResolveScalar(t *testing.T) {
	tests := []struct {
		action models.Resolution
		want   string
	}{
		{models.KeepExisting, "工程师"},
		{models.UseNew, "产品经理"},
		{models.Merge, "工程师 / 产品经理"},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			s := comparedSession(t)
			require.NoError(t, s.Resolve(FieldJob, tt.action))
			assert.Equal(t, tt.want, *s.Profile.Job)
			require.NotNil(t, s.Conflicts[0].Action)
			assert.Equal(t, tt.action, *s.Conflicts[0].Action)
		})
	}
}

func TestSessionResolveUnknown(t *testing.T) {
	s := comparedSession(t)
	assert.True(t, errors.Is(s.Resolve("profile.name", models.UseNew), ErrValidation))
	assert.True(t, errors.Is(s.Resolve(FieldJob, "whatever"), ErrValidation))
}

func TestSessionRejectAdditionRenumbers(t *testing.T) {
	s := comparedSession(t)

	require.NoError(t, s.Resolve("annotations.0", models.KeepExisting))

	require.Len(t, s.Annotations, 2)
	assert.Equal(t, "a1", s.Annotations[0].Description)

	var fields []string
	for _, c := range s.Conflicts {
		if sec, _, ok := ParseAdditionField(c.Field); ok && sec == SectionAnnotation {
			fields = append(fields, c.Field)
		}
	}
	assert.Equal(t, []string{"annotations.0", "annotations.1"}, fields)

	// The renumbered item still resolves the right element.
	require.NoError(t, s.Resolve("annotations.1", models.KeepExisting))
	require.Len(t, s.Annotations, 1)
	assert.Equal(t, "a1", s.Annotations[0].Description)
}

func TestSessionResolveAll(t *testing.T) {
	t.Run("keep existing drops every addition", func(t *testing.T) {
		s := comparedSession(t)
		require.NoError(t, s.ResolveAll(models.KeepExisting))
		assert.Empty(t, s.Unresolved())
		assert.Empty(t, s.Profile.Notes)
		assert.Empty(t, s.Profile.Events)
		assert.Empty(t, s.Annotations)
		assert.Equal(t, "工程师", *s.Profile.Job)
	})

	t.Run("use new keeps additions", func(t *testing.T) {
		s := comparedSession(t)
		require.NoError(t, s.ResolveAll(models.UseNew))
		assert.Empty(t, s.Unresolved())
		assert.Len(t, s.Annotations, 3)
		assert.Equal(t, "产品经理", *s.Profile.Job)
	})

	t.Run("merge with open birthday changes nothing", func(t *testing.T) {
		stored := storedZhang()
		stored.Profile["birthday"] = "03-14"
		s := NewSession("text", models.ExtractResponse{})
		cmp, err := Aggregate(stored, models.ExtractResponse{
			Profile: models.Profile{Name: "张三", Job: models.Ptr("产品经理"), Birthday: models.Ptr("04-01"), Notes: []string{"n0"}},
		})
		require.NoError(t, err)
		s.applyCompare(cmp)
		open := len(s.Unresolved())

		assert.True(t, errors.Is(s.ResolveAll(models.Merge), ErrValidation))
		assert.Len(t, s.Unresolved(), open)
		assert.Equal(t, []string{"n0"}, s.Profile.Notes)

		require.NoError(t, s.Resolve(FieldBirthday, models.KeepExisting))
		require.NoError(t, s.ResolveAll(models.Merge))
		assert.Empty(t, s.Unresolved())
		assert.Equal(t, "工程师 / 产品经理", *s.Profile.Job)
		assert.Equal(t, "03-14", *s.Profile.Birthday)
	})
}

func TestSessionValidate(t *testing.T) {
	t.Run("empty name", func(t *testing.T) {
		s := NewSession("x", models.ExtractResponse{})
		assert.True(t, errors.Is(s.Validate(), ErrValidation))
	})

	t.Run("bad birthday", func(t *testing.T) {
		s := NewSession("x", models.ExtractResponse{Profile: models.Profile{Name: "A"}})
		s.SetBirthday("13-40")
		assert.True(t, errors.Is(s.Validate(), ErrValidation))
		s.SetBirthday("1990-02-03")
		assert.NoError(t, s.Validate())
	})

	t.Run("unresolved conflicts block compared sessions", func(t *testing.T) {
		s := comparedSession(t)
		assert.True(t, errors.Is(s.Validate(), ErrValidation))
		require.NoError(t, s.ResolveAll(models.UseNew))
		assert.NoError(t, s.Validate())
	})

	t.Run("editing a conflicting scalar resolves it", func(t *testing.T) {
		s := comparedSession(t)
		s.SetJob("架构师")
		require.NotNil(t, s.Conflicts[0].Action)
		assert.Equal(t, "架构师", s.Conflicts[0].New)
	})

	t.Run("self relation", func(t *testing.T) {
		s := NewSession("x", models.ExtractResponse{Profile: models.Profile{Name: "A"}})
		require.NoError(t, s.AddRelation(models.ExtractedRelation{Name: "A", RelationType: "friend"}))
		assert.True(t, errors.Is(s.Validate(), ErrValidation))
	})
}

func TestValidBirthday(t *testing.T) {
	valid := []string{"05-20", "02-29", "1990-12-31"}
	invalid := []string{"", "5-20", "13-01", "02-30", "1990-13-01", "1990/01/01", "May 20"}
	for _, b := range valid {
		assert.True(t, ValidBirthday(b), b)
	}
	for _, b := range invalid {
		assert.False(t, ValidBirthday(b), b)
	}
}

func TestSessionPayload(t *testing.T) {
	extracted := models.ExtractResponse{
		Profile: models.Profile{
			Name:   "张三",
			Job:    models.Ptr("AI工程师"),
			Events: []models.Event{{Date: "2025-03-15", Description: "一起吃饭"}},
		},
	}
	s := NewSession("原文", extracted)

	require.NoError(t, s.AddEvent(models.Event{Date: "2025-05-01", Description: "爬山"}))
	s.SetJob("研究员")

	p := s.Payload()
	assert.Equal(t, "原文", p.OriginalText)
	assert.True(t, p.IsNewPerson)
	assert.Nil(t, p.PersonID)
	assert.Len(t, p.Profile.Events, len(extracted.Profile.Events)+1)
	assert.Equal(t, "研究员", *p.Profile.Job)
	assert.True(t, p.Deleted.Empty())
}

func TestSessionExistingItems(t *testing.T) {
	s := comparedSession(t)
	require.NoError(t, s.ResolveAll(models.UseNew))

	require.NoError(t, s.EditExistingEvent(1, models.Event{Date: "2024-01-02", Description: "moved"}))
	require.NoError(t, s.DeleteExistingAnnotation(2))
	assert.True(t, errors.Is(s.DeleteExistingAnnotation(2), ErrValidation))

	p := s.Payload()
	require.NotNil(t, p.PersonID)
	assert.Equal(t, int64(7), *p.PersonID)
	assert.False(t, p.IsNewPerson)

	// one staged event plus the edited stored one
	require.Len(t, p.Profile.Events, 2)
	edited := p.Profile.Events[1]
	require.NotNil(t, edited.ID)
	assert.Equal(t, int64(1), *edited.ID)
	assert.Equal(t, "moved", edited.Description)

	assert.Equal(t, []int64{2}, p.Deleted.Annotations)
	// untouched stored development is not re-sent
	assert.Empty(t, p.Developments)
}

func TestSessionStagedIndexBounds(t *testing.T) {
	s := NewSession("x", models.ExtractResponse{Profile: models.Profile{Name: "A"}})
	assert.True(t, errors.Is(s.DeleteEvent(0), ErrValidation))
	assert.True(t, errors.Is(s.EditNote(3, "x"), ErrValidation))
	assert.True(t, errors.Is(s.AddNote("  "), ErrValidation))
}

func TestSessionClone(t *testing.T) {
	s := comparedSession(t)
	c := s.Clone()
	c.Annotations[0].Description = "changed"
	c.Profile.Notes = append(c.Profile.Notes, "extra")
	assert.Equal(t, "a0", s.Annotations[0].Description)
	assert.Len(t, s.Profile.Notes, 2)
}
