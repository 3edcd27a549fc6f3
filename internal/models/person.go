// Package models defines data structures for the circles relationship manager.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// DefaultDevelopmentType is used when an extracted development carries no type.
const DefaultDevelopmentType = "resource"

// Event is a dated occurrence in a person's timeline.
// Events sharing a Date form one display group.
type Event struct {
	ID          *int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Date        string  `json:"date" yaml:"date"`
	Location    *string `json:"location,omitempty" yaml:"location,omitempty"`
	Description string  `json:"description" yaml:"description"`
}

// Annotation is a free-form observation about a person.
type Annotation struct {
	ID          *int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Time        string  `json:"time" yaml:"time"`
	Location    *string `json:"location,omitempty" yaml:"location,omitempty"`
	Description string  `json:"description" yaml:"description"`
}

// Development is a note about resources, skills or opportunities.
type Development struct {
	ID      *int64 `json:"id,omitempty" yaml:"id,omitempty"`
	Content string `json:"content" yaml:"content"`
	Type    string `json:"type" yaml:"type"`
}

// Profile holds the scalar attributes of a person plus notes and events.
type Profile struct {
	Name     string   `json:"name" yaml:"name"`
	Job      *string  `json:"job,omitempty" yaml:"job,omitempty"`
	Birthday *string  `json:"birthday,omitempty" yaml:"birthday,omitempty"`
	Notes    []string `json:"notes,omitempty" yaml:"notes,omitempty"`
	Events   []Event  `json:"events,omitempty" yaml:"events,omitempty"`
}

// ExtractedRelation names another person and how they relate.
type ExtractedRelation struct {
	Name         string `json:"name" yaml:"name"`
	RelationType string `json:"relation_type" yaml:"relation_type"`
}

// ExtractResponse is the structured result of text extraction.
type ExtractResponse struct {
	Profile      Profile             `json:"profile"`
	Annotations  []Annotation        `json:"annotations"`
	Developments []Development       `json:"developments"`
	Relations    []ExtractedRelation `json:"relations"`
}

// Person is a stored person with owned events, annotations and developments.
type Person struct {
	ID           int64          `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	Avatar       *string        `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	Profile      map[string]any `json:"profile" yaml:"profile"`
	Events       []Event        `json:"events" yaml:"events"`
	Annotations  []Annotation   `json:"annotations" yaml:"annotations"`
	Developments []Development  `json:"developments" yaml:"developments"`
	CreatedAt    time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt    *time.Time     `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// ProfileString returns a scalar profile attribute, or nil when absent or empty.
func (p *Person) ProfileString(key string) *string {
	if p == nil || p.Profile == nil {
		return nil
	}
	s, ok := p.Profile[key].(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

// Notes returns the stored notes list from the open profile map.
func (p *Person) Notes() []string {
	if p == nil || p.Profile == nil {
		return nil
	}
	switch v := p.Profile["notes"].(type) {
	case []string:
		return v
	case []any:
		notes := make([]string, 0, len(v))
		for _, n := range v {
			if s, ok := n.(string); ok {
				notes = append(notes, s)
			}
		}
		return notes
	}
	return nil
}

// Summary returns the short form used by name checks.
func (p *Person) Summary() PersonSummary {
	return PersonSummary{
		ID:       p.ID,
		Name:     p.Name,
		Job:      p.ProfileString("job"),
		Birthday: p.ProfileString("birthday"),
	}
}

// PersonSummary is the subset of a person shown in a name-collision prompt.
type PersonSummary struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Job      *string `json:"job,omitempty"`
	Birthday *string `json:"birthday,omitempty"`
}

// NameCheckResult reports whether a candidate name is already taken.
type NameCheckResult struct {
	Exists bool           `json:"exists"`
	Person *PersonSummary `json:"person,omitempty"`
}

// PersonUpdate is a partial update of a stored person.
// Nil fields are left untouched.
type PersonUpdate struct {
	Name         *string        `json:"name,omitempty"`
	Avatar       *string        `json:"avatar,omitempty"`
	Profile      map[string]any `json:"profile,omitempty"`
	Events       []Event        `json:"events,omitempty"`
	Annotations  []Annotation   `json:"annotations,omitempty"`
	Developments []Development  `json:"developments,omitempty"`
}

// PersonRecord is the database shape of a person row.
type PersonRecord struct {
	ID        surrealmodels.RecordID `json:"id"`
	Name      string                 `json:"name"`
	Avatar    *string                `json:"avatar,omitempty"`
	Profile   map[string]any         `json:"profile"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt *time.Time             `json:"updated_at,omitempty"`
}
