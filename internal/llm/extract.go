package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raphaelgruber/circles/internal/models"
)

const extractSystemPrompt = `You extract structured facts about ONE person from personal notes.
Answer with a single JSON object and nothing else, using exactly this shape:

{
  "profile": {
    "name": "the person's name as written",
    "job": "job title or empty string",
    "birthday": "MM-DD or YYYY-MM-DD, or empty string",
    "notes": ["short standalone facts"],
    "events": [{"date": "YYYY-MM-DD or MM-DD or empty", "location": "place or empty", "description": "what happened"}]
  },
  "annotations": [{"time": "when, free form", "location": "place or empty", "description": "observation"}],
  "developments": [{"content": "resource, skill or opportunity", "type": "resource"}],
  "relations": [{"name": "other person's name", "relation_type": "how they relate, e.g. colleague"}]
}

Rules:
- Only use information present in the text. Never invent values.
- Keep the language of the original text.
- Use empty strings or empty arrays when something is unknown.`

// Extract turns free-text notes into structured person data.
func (m *Model) Extract(ctx context.Context, text string) (*models.ExtractResponse, error) {
	raw, err := m.GenerateWithSystem(ctx, extractSystemPrompt, "Text:\n"+text)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	res, err := ParseExtraction(raw)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return res, nil
}

// ParseExtraction decodes a model answer into an ExtractResponse. It
// tolerates code fences and prose around the JSON object and normalises
// the result: blank strings become absent and empty items are dropped.
func ParseExtraction(raw string) (*models.ExtractResponse, error) {
	body := stripFences(raw)
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in %q", ErrMalformedOutput, truncate(raw, 80))
	}

	var res models.ExtractResponse
	if err := json.Unmarshal([]byte(body[start:end+1]), &res); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	normalize(&res)
	return &res, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

func normalize(res *models.ExtractResponse) {
	p := &res.Profile
	p.Name = strings.TrimSpace(p.Name)
	p.Job = blankToNil(p.Job)
	p.Birthday = blankToNil(p.Birthday)

	notes := p.Notes[:0]
	for _, n := range p.Notes {
		if n = strings.TrimSpace(n); n != "" {
			notes = append(notes, n)
		}
	}
	p.Notes = notes

	events := p.Events[:0]
	for _, e := range p.Events {
		e.Description = strings.TrimSpace(e.Description)
		if e.Description == "" {
			continue
		}
		e.Date = strings.TrimSpace(e.Date)
		e.Location = blankToNil(e.Location)
		e.ID = nil
		events = append(events, e)
	}
	p.Events = events

	annotations := res.Annotations[:0]
	for _, a := range res.Annotations {
		a.Description = strings.TrimSpace(a.Description)
		if a.Description == "" {
			continue
		}
		a.Location = blankToNil(a.Location)
		a.ID = nil
		annotations = append(annotations, a)
	}
	res.Annotations = annotations

	developments := res.Developments[:0]
	for _, d := range res.Developments {
		d.Content = strings.TrimSpace(d.Content)
		if d.Content == "" {
			continue
		}
		if d.Type = strings.TrimSpace(d.Type); d.Type == "" {
			d.Type = models.DefaultDevelopmentType
		}
		d.ID = nil
		developments = append(developments, d)
	}
	res.Developments = developments

	relations := res.Relations[:0]
	for _, r := range res.Relations {
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" || r.Name == p.Name {
			continue
		}
		r.RelationType = strings.TrimSpace(r.RelationType)
		relations = append(relations, r)
	}
	res.Relations = relations
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
