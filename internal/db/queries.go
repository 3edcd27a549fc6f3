// Package db provides SurrealDB query functions for persons, their items,
// the relationship graph and the graph layout.
package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/raphaelgruber/circles/internal/models"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// DefaultLayoutUser keys the single stored graph layout.
const DefaultLayoutUser = "default"

type eventRow struct {
	ID          surrealmodels.RecordID `json:"id"`
	Person      surrealmodels.RecordID `json:"person"`
	Date        string                 `json:"date"`
	Location    *string                `json:"location,omitempty"`
	Description string                 `json:"description"`
}

type annotationRow struct {
	ID          surrealmodels.RecordID `json:"id"`
	Person      surrealmodels.RecordID `json:"person"`
	Time        string                 `json:"time"`
	Location    *string                `json:"location,omitempty"`
	Description string                 `json:"description"`
}

type developmentRow struct {
	ID      surrealmodels.RecordID `json:"id"`
	Person  surrealmodels.RecordID `json:"person"`
	Content string                 `json:"content"`
	Type    string                 `json:"type"`
}

type knowsRow struct {
	In           surrealmodels.RecordID `json:"in"`
	Out          surrealmodels.RecordID `json:"out"`
	RelationType string                 `json:"relation_type"`
}

// personItems groups owned items by person id.
type personItems struct {
	events       map[int64][]models.Event
	annotations  map[int64][]models.Annotation
	developments map[int64][]models.Development
}

// ListPersons returns all persons with their events, annotations and
// developments, ordered by id.
func (c *Client) ListPersons(ctx context.Context) ([]models.Person, error) {
	res, err := query[[]models.PersonRecord](ctx, c, `SELECT * FROM person ORDER BY id`, nil)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	records := rows(res)

	items, err := c.loadItems(ctx, "", nil)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}

	persons := make([]models.Person, 0, len(records))
	for _, r := range records {
		p, err := toPerson(r, items)
		if err != nil {
			return nil, fmt.Errorf("list persons: %w", err)
		}
		persons = append(persons, p)
	}
	return persons, nil
}

// GetPerson retrieves a person with all owned items.
// Returns ErrNotFound if the person does not exist.
func (c *Client) GetPerson(ctx context.Context, id int64) (*models.Person, error) {
	res, err := query[[]models.PersonRecord](ctx, c, `
		SELECT * FROM type::record("person", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	rec := first(res)
	if rec == nil {
		return nil, fmt.Errorf("get person %d: %w", id, ErrNotFound)
	}
	return c.withItems(ctx, *rec)
}

// GetPersonByName retrieves a person by exact name.
// Returns nil if no person has that name.
func (c *Client) GetPersonByName(ctx context.Context, name string) (*models.Person, error) {
	res, err := query[[]models.PersonRecord](ctx, c, `
		SELECT * FROM person WHERE name = $name LIMIT 1
	`, map[string]any{"name": name})
	if err != nil {
		return nil, fmt.Errorf("get person by name: %w", err)
	}
	rec := first(res)
	if rec == nil {
		return nil, nil
	}
	return c.withItems(ctx, *rec)
}

func (c *Client) withItems(ctx context.Context, rec models.PersonRecord) (*models.Person, error) {
	items, err := c.loadItems(ctx, "WHERE person = $person", map[string]any{"person": rec.ID})
	if err != nil {
		return nil, err
	}
	p, err := toPerson(rec, items)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// loadItems fetches owned items, optionally filtered by where.
func (c *Client) loadItems(ctx context.Context, where string, vars map[string]any) (*personItems, error) {
	items := &personItems{
		events:       map[int64][]models.Event{},
		annotations:  map[int64][]models.Annotation{},
		developments: map[int64][]models.Development{},
	}

	evRes, err := query[[]eventRow](ctx, c, "SELECT * FROM event "+where+" ORDER BY id", vars)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	for _, r := range rows(evRes) {
		id, pid, err := itemIDs(r.ID, r.Person)
		if err != nil {
			return nil, err
		}
		items.events[pid] = append(items.events[pid], models.Event{
			ID: &id, Date: r.Date, Location: r.Location, Description: r.Description,
		})
	}

	anRes, err := query[[]annotationRow](ctx, c, "SELECT * FROM annotation "+where+" ORDER BY id", vars)
	if err != nil {
		return nil, fmt.Errorf("load annotations: %w", err)
	}
	for _, r := range rows(anRes) {
		id, pid, err := itemIDs(r.ID, r.Person)
		if err != nil {
			return nil, err
		}
		items.annotations[pid] = append(items.annotations[pid], models.Annotation{
			ID: &id, Time: r.Time, Location: r.Location, Description: r.Description,
		})
	}

	devRes, err := query[[]developmentRow](ctx, c, "SELECT * FROM development "+where+" ORDER BY id", vars)
	if err != nil {
		return nil, fmt.Errorf("load developments: %w", err)
	}
	for _, r := range rows(devRes) {
		id, pid, err := itemIDs(r.ID, r.Person)
		if err != nil {
			return nil, err
		}
		items.developments[pid] = append(items.developments[pid], models.Development{
			ID: &id, Content: r.Content, Type: r.Type,
		})
	}

	return items, nil
}

func itemIDs(item, person surrealmodels.RecordID) (int64, int64, error) {
	id, err := models.RecordIDInt(item)
	if err != nil {
		return 0, 0, err
	}
	pid, err := models.RecordIDInt(person)
	if err != nil {
		return 0, 0, err
	}
	return id, pid, nil
}

func toPerson(rec models.PersonRecord, items *personItems) (models.Person, error) {
	id, err := models.RecordIDInt(rec.ID)
	if err != nil {
		return models.Person{}, err
	}
	profile := rec.Profile
	if profile == nil {
		profile = map[string]any{}
	}
	p := models.Person{
		ID:           id,
		Name:         rec.Name,
		Avatar:       rec.Avatar,
		Profile:      profile,
		Events:       items.events[id],
		Annotations:  items.annotations[id],
		Developments: items.developments[id],
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
	if p.Events == nil {
		p.Events = []models.Event{}
	}
	if p.Annotations == nil {
		p.Annotations = []models.Annotation{}
	}
	if p.Developments == nil {
		p.Developments = []models.Development{}
	}
	return p, nil
}

// txBuilder accumulates the statements and parameters of one transaction.
type txBuilder struct {
	stmts []string
	vars  map[string]any
}

func newTx() *txBuilder {
	return &txBuilder{
		stmts: []string{"BEGIN TRANSACTION;"},
		vars:  map[string]any{},
	}
}

func (b *txBuilder) add(stmt string) {
	b.stmts = append(b.stmts, stmt)
}

func (b *txBuilder) sql() string {
	return strings.Join(append(b.stmts, "COMMIT TRANSACTION;", "RETURN record::id($person);"), "\n")
}

// item writes one owned item: an update when id is set, a create otherwise.
// Absent optional fields are left out of fields so they are stored as NONE.
func (b *txBuilder) item(table, key string, id *int64, fields map[string]any, columns []string) {
	b.vars[key] = fields
	sets := make([]string, 0, len(columns))
	for _, col := range columns {
		sets = append(sets, fmt.Sprintf("%s = $%s.%s", col, key, col))
	}
	if id != nil {
		b.vars[key+"_id"] = *id
		b.add(fmt.Sprintf(`UPDATE type::record("%s", $%s_id) SET %s WHERE person = $person;`,
			table, key, strings.Join(sets, ", ")))
		return
	}
	b.add(fmt.Sprintf(`CREATE type::record("%s", fn::next_id("%s")) SET person = $person, source = "user", %s;`,
		table, table, strings.Join(sets, ", ")))
}

func (b *txBuilder) events(events []models.Event) {
	for i, e := range events {
		fields := map[string]any{"date": e.Date, "description": e.Description}
		if e.Location != nil {
			fields["location"] = *e.Location
		}
		b.item("event", fmt.Sprintf("ev_%d", i), e.ID, fields, []string{"date", "location", "description"})
	}
}

func (b *txBuilder) annotations(annotations []models.Annotation) {
	for i, a := range annotations {
		fields := map[string]any{"time": a.Time, "description": a.Description}
		if a.Location != nil {
			fields["location"] = *a.Location
		}
		b.item("annotation", fmt.Sprintf("an_%d", i), a.ID, fields, []string{"time", "location", "description"})
	}
}

func (b *txBuilder) developments(developments []models.Development) {
	for i, d := range developments {
		typ := d.Type
		if typ == "" {
			typ = models.DefaultDevelopmentType
		}
		fields := map[string]any{"content": d.Content, "type": typ}
		b.item("development", fmt.Sprintf("dev_%d", i), d.ID, fields, []string{"content", "type"})
	}
}

func (b *txBuilder) deletions(d models.DeletedItems) {
	del := func(table string, ids []int64) {
		if len(ids) == 0 {
			return
		}
		key := "del_" + table
		b.vars[key] = ids
		b.add(fmt.Sprintf("DELETE %s WHERE person = $person AND record::id(id) IN $%s;", table, key))
	}
	del("event", d.Events)
	del("annotation", d.Annotations)
	del("development", d.Developments)
}

// relations links the person to each named person, creating missing ones.
// Both directions are written unless a link exists in either direction.
func (b *txBuilder) relations(relations []models.ExtractedRelation) {
	seen := map[string]bool{}
	for i, r := range relations {
		name := strings.TrimSpace(r.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		key := fmt.Sprintf("rel_%d", i)
		b.vars[key+"_name"] = name
		b.vars[key+"_type"] = r.RelationType
		b.add(fmt.Sprintf(`LET $%[1]s = (SELECT VALUE id FROM person WHERE name = $%[1]s_name LIMIT 1)[0];`, key))
		b.add(fmt.Sprintf(`LET $%[1]s = IF $%[1]s = NONE {
			(CREATE type::record("person", fn::next_id("person")) SET name = $%[1]s_name, profile = {} RETURN VALUE id)[0]
		} ELSE { $%[1]s };`, key))
		b.add(fmt.Sprintf(`IF $%[1]s != $person AND (SELECT VALUE id FROM knows WHERE (in = $person AND out = $%[1]s) OR (in = $%[1]s AND out = $person) LIMIT 1)[0] = NONE {
			RELATE $person->knows->$%[1]s SET relation_type = $%[1]s_type, confirmed_by_user = true;
			RELATE $%[1]s->knows->$person SET relation_type = $%[1]s_type, confirmed_by_user = true;
		};`, key))
	}
}

// ConfirmPerson persists a confirmed reconciliation in one transaction and
// returns the person id. A new person is created with its profile; an
// existing one gets non-empty job and birthday overwritten and notes
// appended. Items with an id are updated, items without one are created,
// queued deletions are applied and related persons are linked.
func (c *Client) ConfirmPerson(ctx context.Context, req models.ConfirmRequest) (int64, error) {
	b := newTx()
	name := strings.TrimSpace(req.Profile.Name)
	notes := req.Profile.Notes
	if notes == nil {
		notes = []string{}
	}

	if req.IsNewPerson || req.PersonID == nil {
		profile := map[string]any{"notes": notes}
		if job := models.Deref(req.Profile.Job); job != "" {
			profile["job"] = job
		}
		if bday := models.Deref(req.Profile.Birthday); bday != "" {
			profile["birthday"] = bday
		}
		b.vars["person_data"] = map[string]any{"name": name, "profile": profile}
		b.add(`LET $person = (CREATE type::record("person", fn::next_id("person")) CONTENT $person_data RETURN VALUE id)[0];`)
	} else {
		b.vars["person_id"] = *req.PersonID
		b.vars["name"] = name
		b.vars["notes"] = notes
		b.add(`LET $person = type::record("person", $person_id);`)
		b.add(`IF (SELECT VALUE id FROM $person)[0] = NONE { THROW "person not found" };`)

		sets := []string{"name = $name", "profile.notes = array::concat(profile.notes OR [], $notes)", "updated_at = time::now()"}
		if job := models.Deref(req.Profile.Job); job != "" {
			b.vars["job"] = job
			sets = append(sets, "profile.job = $job")
		}
		if bday := models.Deref(req.Profile.Birthday); bday != "" {
			b.vars["birthday"] = bday
			sets = append(sets, "profile.birthday = $birthday")
		}
		b.add("UPDATE $person SET " + strings.Join(sets, ", ") + ";")
	}

	b.events(req.Profile.Events)
	b.annotations(req.Annotations)
	b.developments(req.Developments)
	b.deletions(req.Deleted)
	b.relations(req.Relations)

	id, err := c.runTx(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("confirm person: %w", err)
	}
	return id, nil
}

// UpdatePerson applies a partial update. Profile keys are merged into the
// stored profile; items with an id are updated, others are created.
func (c *Client) UpdatePerson(ctx context.Context, id int64, upd models.PersonUpdate) (*models.Person, error) {
	b := newTx()
	b.vars["person_id"] = id
	b.add(`LET $person = type::record("person", $person_id);`)
	b.add(`IF (SELECT VALUE id FROM $person)[0] = NONE { THROW "person not found" };`)

	sets := []string{"updated_at = time::now()"}
	if upd.Name != nil {
		b.vars["name"] = strings.TrimSpace(*upd.Name)
		sets = append(sets, "name = $name")
	}
	if upd.Avatar != nil {
		b.vars["avatar"] = *upd.Avatar
		sets = append(sets, "avatar = $avatar")
	}
	if len(upd.Profile) > 0 {
		b.vars["profile"] = upd.Profile
		sets = append(sets, "profile = object::extend(profile, $profile)")
	}
	b.add("UPDATE $person SET " + strings.Join(sets, ", ") + ";")

	b.events(upd.Events)
	b.annotations(upd.Annotations)
	b.developments(upd.Developments)

	if _, err := c.runTx(ctx, b); err != nil {
		return nil, fmt.Errorf("update person: %w", err)
	}
	return c.GetPerson(ctx, id)
}

// runTx executes a built transaction and returns the person id it reports.
func (c *Client) runTx(ctx context.Context, b *txBuilder) (int64, error) {
	start := time.Now()
	res, err := query[any](ctx, c, b.sql(), b.vars)
	if err != nil {
		return 0, err
	}
	if res == nil || len(*res) == 0 {
		return 0, fmt.Errorf("empty transaction result")
	}
	last := (*res)[len(*res)-1].Result
	id, err := models.RecordIDInt(surrealmodels.RecordID{Table: "person", ID: last})
	if err != nil {
		return 0, fmt.Errorf("read person id: %w", err)
	}
	c.logger.Debug("transaction committed", "statements", len(b.stmts)+1, "duration_ms", time.Since(start).Milliseconds())
	return id, nil
}

// DeletePerson removes a person with its owned items and relations.
// Returns ErrNotFound if the person does not exist.
func (c *Client) DeletePerson(ctx context.Context, id int64) error {
	_, err := query[any](ctx, c, `
		BEGIN TRANSACTION;
		LET $person = type::record("person", $id);
		IF (SELECT VALUE id FROM $person)[0] = NONE { THROW "person not found" };
		DELETE event WHERE person = $person;
		DELETE annotation WHERE person = $person;
		DELETE development WHERE person = $person;
		DELETE knows WHERE in = $person OR out = $person;
		DELETE member_of WHERE in = $person;
		DELETE $person;
		COMMIT TRANSACTION;
	`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete person %d: %w", id, err)
	}
	return nil
}

// DeleteEvent removes one event owned by personID.
func (c *Client) DeleteEvent(ctx context.Context, personID, eventID int64) error {
	return c.deleteItem(ctx, "event", personID, eventID)
}

// DeleteAnnotation removes one annotation owned by personID.
func (c *Client) DeleteAnnotation(ctx context.Context, personID, annotationID int64) error {
	return c.deleteItem(ctx, "annotation", personID, annotationID)
}

// DeleteDevelopment removes one development owned by personID.
func (c *Client) DeleteDevelopment(ctx context.Context, personID, developmentID int64) error {
	return c.deleteItem(ctx, "development", personID, developmentID)
}

func (c *Client) deleteItem(ctx context.Context, table string, personID, itemID int64) error {
	res, err := query[[]map[string]any](ctx, c, `
		DELETE type::record($tb, $id) WHERE person = type::record("person", $person) RETURN BEFORE
	`, map[string]any{"tb": table, "id": itemID, "person": personID})
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", table, itemID, err)
	}
	if first(res) == nil {
		return fmt.Errorf("delete %s %d of person %d: %w", table, itemID, personID, ErrNotFound)
	}
	return nil
}

// GetGraph returns all persons as nodes and one edge per related pair.
func (c *Client) GetGraph(ctx context.Context) (*models.GraphResponse, error) {
	nodeRes, err := query[[]models.PersonRecord](ctx, c, `SELECT id, name, avatar, profile, created_at FROM person ORDER BY id`, nil)
	if err != nil {
		return nil, fmt.Errorf("graph nodes: %w", err)
	}
	edgeRes, err := query[[]knowsRow](ctx, c, `SELECT in, out, relation_type, created_at FROM knows ORDER BY created_at`, nil)
	if err != nil {
		return nil, fmt.Errorf("graph edges: %w", err)
	}

	graph := &models.GraphResponse{Nodes: []models.GraphNode{}, Edges: []models.GraphEdge{}}
	for _, r := range rows(nodeRes) {
		id, err := models.RecordIDInt(r.ID)
		if err != nil {
			return nil, fmt.Errorf("graph nodes: %w", err)
		}
		graph.Nodes = append(graph.Nodes, models.GraphNode{ID: id, Name: r.Name, Avatar: r.Avatar})
	}

	edges := make([]models.GraphEdge, 0)
	for _, r := range rows(edgeRes) {
		src, dst, err := itemIDs(r.In, r.Out)
		if err != nil {
			return nil, fmt.Errorf("graph edges: %w", err)
		}
		edges = append(edges, models.GraphEdge{Source: src, Target: dst, RelationType: r.RelationType})
	}
	graph.Edges = DedupeEdges(edges)
	return graph, nil
}

// DedupeEdges keeps the first edge of each unordered person pair and drops
// self loops. The result is sorted by pair.
func DedupeEdges(edges []models.GraphEdge) []models.GraphEdge {
	type pair struct{ a, b int64 }
	seen := make(map[pair]bool, len(edges))
	out := make([]models.GraphEdge, 0, len(edges)/2+1)
	for _, e := range edges {
		if e.Source == e.Target {
			continue
		}
		k := pair{e.Source, e.Target}
		if k.a > k.b {
			k.a, k.b = k.b, k.a
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, bi := min(out[i].Source, out[i].Target), max(out[i].Source, out[i].Target)
		aj, bj := min(out[j].Source, out[j].Target), max(out[j].Source, out[j].Target)
		if ai != aj {
			return ai < aj
		}
		return bi < bj
	})
	return out
}

// GetGraphLayout returns the stored layout, or nil when none was saved.
func (c *Client) GetGraphLayout(ctx context.Context) (*models.GraphLayout, error) {
	res, err := query[[]any](ctx, c, `
		SELECT VALUE layout FROM type::record("graph_layout", $user)
	`, map[string]any{"user": DefaultLayoutUser})
	if err != nil {
		return nil, fmt.Errorf("get graph layout: %w", err)
	}
	v := first(res)
	if v == nil {
		return nil, nil
	}
	layout, err := models.ParseGraphLayoutValue(*v)
	if err != nil {
		return nil, fmt.Errorf("get graph layout: %w", err)
	}
	return layout, nil
}

// SaveGraphLayout replaces the stored layout.
func (c *Client) SaveGraphLayout(ctx context.Context, layout models.GraphLayout) error {
	nodes := make(map[string]any, len(layout.Nodes))
	for id, p := range layout.Nodes {
		nodes[id] = map[string]any{"x": p.X, "y": p.Y}
	}
	doc := map[string]any{
		"nodes": nodes,
		"zoom":  layout.Zoom,
		"pan":   map[string]any{"x": layout.Pan.X, "y": layout.Pan.Y},
	}
	_, err := query[any](ctx, c, `
		UPSERT type::record("graph_layout", $user) SET layout = $layout, updated_at = time::now()
	`, map[string]any{"user": DefaultLayoutUser, "layout": doc})
	if err != nil {
		return fmt.Errorf("save graph layout: %w", err)
	}
	return nil
}

// DeleteGraphLayout removes the stored layout so the next load starts fresh.
func (c *Client) DeleteGraphLayout(ctx context.Context) error {
	_, err := query[any](ctx, c, `
		DELETE type::record("graph_layout", $user)
	`, map[string]any{"user": DefaultLayoutUser})
	if err != nil {
		return fmt.Errorf("delete graph layout: %w", err)
	}
	return nil
}

// Counts returns the number of persons and stored relation links.
func (c *Client) Counts(ctx context.Context) (persons, relations int, err error) {
	persons, err = c.count(ctx, "person")
	if err != nil {
		return 0, 0, err
	}
	relations, err = c.count(ctx, "knows")
	if err != nil {
		return 0, 0, err
	}
	return persons, relations, nil
}

func (c *Client) count(ctx context.Context, table string) (int, error) {
	res, err := query[[]struct{ C int }](ctx, c, "SELECT count() AS c FROM "+table+" GROUP ALL", nil)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	row := first(res)
	if row == nil {
		return 0, nil
	}
	return row.C, nil
}
