package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/raphaelgruber/circles/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestIsFatalAPIError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"credit balance", errors.New("insufficient credit balance"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota exceeded", errors.New("quota exceeded for model"), true},
		{"billing issue", errors.New("billing account inactive"), true},
		{"invalid api key", errors.New("invalid api key"), true},
		{"authentication failed", errors.New("authentication failed"), true},
		{"unauthorized", errors.New("unauthorized request"), true},
		{"401 status", errors.New("HTTP 401: not allowed"), true},
		{"403 status", errors.New("HTTP 403: forbidden"), true},
		{"wrapped error", fmt.Errorf("extract: %w", errors.New("credit balance too low")), true},
		{"404 not fatal", errors.New("HTTP 404: not found"), false},
		{"timeout not fatal", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isFatalAPIError(tt.err)
			if got != tt.fatal {
				t.Errorf("isFatalAPIError(%v) = %v, want %v", tt.err, got, tt.fatal)
			}
		})
	}
}

func TestWrapFatalError(t *testing.T) {
	t.Run("wraps fatal error", func(t *testing.T) {
		err := errors.New("invalid api key provided")
		wrapped := wrapFatalError(err)
		if !errors.Is(wrapped, ErrFatalAPI) {
			t.Errorf("expected wrapped error to match ErrFatalAPI")
		}
	})

	t.Run("passes through non-fatal error", func(t *testing.T) {
		err := errors.New("network timeout")
		result := wrapFatalError(err)
		if errors.Is(result, ErrFatalAPI) {
			t.Errorf("non-fatal error should not be wrapped with ErrFatalAPI")
		}
		if result != err {
			t.Errorf("expected original error returned, got %v", result)
		}
	})

	t.Run("nil error", func(t *testing.T) {
		result := wrapFatalError(nil)
		if result != nil {
			t.Errorf("expected nil, got %v", result)
		}
	})
}

func TestParseExtraction(t *testing.T) {
	raw := "```json\n" + `{
  "profile": {"name": " 张三 ", "job": "AI工程师", "birthday": "", "notes": ["", "爱喝茶"],
    "events": [{"date": "2025-03-15", "location": "北京", "description": "一起吃饭"}, {"date": "", "description": " "}]},
  "annotations": [{"time": "2025-04-01", "location": "", "description": "出差"}],
  "developments": [{"content": "AI芯片", "type": ""}],
  "relations": [{"name": "李四", "relation_type": "同事"}, {"name": "张三", "relation_type": "self"}]
}` + "\n```"

	res, err := ParseExtraction(raw)
	require.NoError(t, err)

	assert.Equal(t, "张三", res.Profile.Name)
	require.NotNil(t, res.Profile.Job)
	assert.Equal(t, "AI工程师", *res.Profile.Job)
	assert.Nil(t, res.Profile.Birthday)
	assert.Equal(t, []string{"爱喝茶"}, res.Profile.Notes)
	require.Len(t, res.Profile.Events, 1)
	assert.Equal(t, "北京", *res.Profile.Events[0].Location)
	require.Len(t, res.Annotations, 1)
	assert.Nil(t, res.Annotations[0].Location)
	assert.Equal(t, "resource", res.Developments[0].Type)
	require.Len(t, res.Relations, 1, "self relation dropped")
	assert.Equal(t, "李四", res.Relations[0].Name)
}

func TestParseExtractionWithProse(t *testing.T) {
	res, err := ParseExtraction(`Sure! {"profile": {"name": "Ann"}} Hope this helps.`)
	require.NoError(t, err)
	assert.Equal(t, "Ann", res.Profile.Name)
}

func TestParseExtractionMalformed(t *testing.T) {
	for _, raw := range []string{"", "no json here", `{"profile": [}`} {
		_, err := ParseExtraction(raw)
		assert.True(t, errors.Is(err, ErrMalformedOutput), raw)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))

	long := strings.Repeat("张", 100)
	got := truncate(long, 80)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("张", 77)+"...", got)

	_, err := ParseExtraction(long)
	require.Error(t, err)
	assert.True(t, utf8.ValidString(err.Error()))
}

// stubLLM answers every call with a fixed completion.
type stubLLM struct {
	answer string
	err    error
}

func (s *stubLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        s.answer,
		GenerationInfo: map[string]any{"PromptTokens": 120, "CompletionTokens": 40},
	}}}, nil
}

func (s *stubLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return s.answer, s.err
}

func TestModelExtract(t *testing.T) {
	mc := metrics.NewCollector()
	m := NewModelFrom(&stubLLM{answer: `{"profile":{"name":"Bo","job":"chef"}}`}, "stub", true, mc)

	res, err := m.Extract(context.Background(), "Bo is a chef")
	require.NoError(t, err)
	assert.Equal(t, "Bo", res.Profile.Name)

	snap := mc.Snapshot()
	require.NotNil(t, snap.LLMGenerate)
	assert.Equal(t, int64(1), snap.LLMGenerate.Count)
	require.NotNil(t, snap.LLMGenerate.TotalInputTokens)
	assert.Equal(t, int64(120), *snap.LLMGenerate.TotalInputTokens)
}

func TestModelExtractFatal(t *testing.T) {
	m := NewModelFrom(&stubLLM{err: errors.New("HTTP 401: invalid api key")}, "stub", false, nil)
	_, err := m.Extract(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrFatalAPI))
}
