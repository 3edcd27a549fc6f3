package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// CircleColors is the palette new circles cycle through when no color
// is given.
var CircleColors = []string{"#4A7B9C", "#9B6B6B", "#5F7256", "#B5A189", "#9251A8"}

// Circle is a named group of persons, such as family or a team.
type Circle struct {
	ID        int64     `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Color     string    `json:"color" yaml:"color"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// CircleWithMembers is a circle with the persons assigned to it.
type CircleWithMembers struct {
	Circle
	Members []PersonSummary `json:"members"`
}

// CircleCreate is the body of a circle creation request.
type CircleCreate struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// CircleRecord is the database shape of a circle row.
type CircleRecord struct {
	ID        surrealmodels.RecordID `json:"id"`
	Name      string                 `json:"name"`
	Color     string                 `json:"color"`
	CreatedAt time.Time              `json:"created_at"`
}

// ToCircle converts the row to its API form.
func (r CircleRecord) ToCircle() (Circle, error) {
	id, err := RecordIDInt(r.ID)
	if err != nil {
		return Circle{}, err
	}
	return Circle{ID: id, Name: r.Name, Color: r.Color, CreatedAt: r.CreatedAt}, nil
}
