package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphaelgruber/circles/internal/models"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

type memberRow struct {
	In  surrealmodels.RecordID `json:"in"`
	Out surrealmodels.RecordID `json:"out"`
}

// ListCircles returns all circles ordered by id.
func (c *Client) ListCircles(ctx context.Context) ([]models.Circle, error) {
	res, err := query[[]models.CircleRecord](ctx, c, `SELECT * FROM circle ORDER BY id`, nil)
	if err != nil {
		return nil, fmt.Errorf("list circles: %w", err)
	}
	circles := make([]models.Circle, 0)
	for _, r := range rows(res) {
		ci, err := r.ToCircle()
		if err != nil {
			return nil, fmt.Errorf("list circles: %w", err)
		}
		circles = append(circles, ci)
	}
	return circles, nil
}

// ListCirclesWithMembers returns all circles with member summaries in
// assignment order.
func (c *Client) ListCirclesWithMembers(ctx context.Context) ([]models.CircleWithMembers, error) {
	circles, err := c.ListCircles(ctx)
	if err != nil {
		return nil, err
	}
	memberRes, err := query[[]memberRow](ctx, c, `SELECT in, out, created_at FROM member_of ORDER BY created_at`, nil)
	if err != nil {
		return nil, fmt.Errorf("list circle members: %w", err)
	}
	personRes, err := query[[]models.PersonRecord](ctx, c, `SELECT id, name, profile, created_at FROM person`, nil)
	if err != nil {
		return nil, fmt.Errorf("list circle members: %w", err)
	}

	summaries := make(map[int64]models.PersonSummary)
	for _, r := range rows(personRes) {
		id, err := models.RecordIDInt(r.ID)
		if err != nil {
			return nil, fmt.Errorf("list circle members: %w", err)
		}
		p := models.Person{ID: id, Name: r.Name, Profile: r.Profile}
		summaries[id] = p.Summary()
	}

	members := make(map[int64][]models.PersonSummary)
	for _, r := range rows(memberRes) {
		pid, cid, err := itemIDs(r.In, r.Out)
		if err != nil {
			return nil, fmt.Errorf("list circle members: %w", err)
		}
		if s, ok := summaries[pid]; ok {
			members[cid] = append(members[cid], s)
		}
	}

	out := make([]models.CircleWithMembers, 0, len(circles))
	for _, ci := range circles {
		m := members[ci.ID]
		if m == nil {
			m = []models.PersonSummary{}
		}
		out = append(out, models.CircleWithMembers{Circle: ci, Members: m})
	}
	return out, nil
}

// CreateCircle stores a new circle.
// Returns ErrCircleNameTaken if the name is already used.
func (c *Client) CreateCircle(ctx context.Context, name, color string) (*models.Circle, error) {
	res, err := query[[]models.CircleRecord](ctx, c, `
		CREATE type::record("circle", fn::next_id("circle")) SET name = $name, color = $color RETURN AFTER
	`, map[string]any{"name": strings.TrimSpace(name), "color": color})
	if err != nil {
		return nil, fmt.Errorf("create circle: %w", err)
	}
	row := first(res)
	if row == nil {
		return nil, fmt.Errorf("create circle: empty result")
	}
	ci, err := row.ToCircle()
	if err != nil {
		return nil, fmt.Errorf("create circle: %w", err)
	}
	return &ci, nil
}

// DeleteCircle removes a circle and its memberships. Persons are kept.
// Returns ErrNotFound if the circle does not exist.
func (c *Client) DeleteCircle(ctx context.Context, id int64) error {
	_, err := query[any](ctx, c, `
		BEGIN TRANSACTION;
		LET $circle = type::record("circle", $id);
		IF (SELECT VALUE id FROM $circle)[0] = NONE { THROW "circle not found" };
		DELETE member_of WHERE out = $circle;
		DELETE $circle;
		COMMIT TRANSACTION;
	`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete circle %d: %w", id, err)
	}
	return nil
}

// AddCircleMember assigns a person to a circle. Assigning twice is a no-op.
// Returns ErrNotFound if the person or the circle does not exist.
func (c *Client) AddCircleMember(ctx context.Context, circleID, personID int64) error {
	_, err := query[any](ctx, c, `
		BEGIN TRANSACTION;
		LET $person = type::record("person", $person_id);
		LET $circle = type::record("circle", $circle_id);
		IF (SELECT VALUE id FROM $person)[0] = NONE { THROW "person not found" };
		IF (SELECT VALUE id FROM $circle)[0] = NONE { THROW "circle not found" };
		IF (SELECT VALUE id FROM member_of WHERE in = $person AND out = $circle)[0] = NONE {
			RELATE $person->member_of->$circle SET assigned_by_user = true;
		};
		COMMIT TRANSACTION;
	`, map[string]any{"person_id": personID, "circle_id": circleID})
	if err != nil {
		return fmt.Errorf("add person %d to circle %d: %w", personID, circleID, err)
	}
	return nil
}

// RemoveCircleMember removes a person from a circle.
// Returns ErrNotFound if the person was not a member.
func (c *Client) RemoveCircleMember(ctx context.Context, circleID, personID int64) error {
	res, err := query[[]map[string]any](ctx, c, `
		DELETE member_of WHERE in = type::record("person", $person_id) AND out = type::record("circle", $circle_id) RETURN BEFORE
	`, map[string]any{"person_id": personID, "circle_id": circleID})
	if err != nil {
		return fmt.Errorf("remove person %d from circle %d: %w", personID, circleID, err)
	}
	if first(res) == nil {
		return fmt.Errorf("person %d is not in circle %d: %w", personID, circleID, ErrNotFound)
	}
	return nil
}
