package tools_test

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/circles/internal/db"
	"github.com/raphaelgruber/circles/internal/models"
	"github.com/raphaelgruber/circles/internal/service"
	"github.com/raphaelgruber/circles/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// repo is a minimal in-memory service.Repository.
type repo struct {
	mu      sync.Mutex
	persons []models.Person
}

func (r *repo) ListPersons(ctx context.Context) ([]models.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Person(nil), r.persons...), nil
}

func (r *repo) GetPerson(ctx context.Context, id int64) (*models.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.persons {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *repo) GetPersonByName(ctx context.Context, name string) (*models.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.persons {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *repo) ConfirmPerson(ctx context.Context, req models.ConfirmRequest) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req.PersonID != nil {
		return *req.PersonID, nil
	}
	id := int64(len(r.persons) + 1)
	r.persons = append(r.persons, models.Person{ID: id, Name: req.Profile.Name, Profile: map[string]any{}})
	return id, nil
}

func (r *repo) UpdatePerson(ctx context.Context, id int64, upd models.PersonUpdate) (*models.Person, error) {
	return r.GetPerson(ctx, id)
}
func (r *repo) DeletePerson(ctx context.Context, id int64) error                { return nil }
func (r *repo) DeleteEvent(ctx context.Context, personID, id int64) error       { return nil }
func (r *repo) DeleteAnnotation(ctx context.Context, personID, id int64) error  { return nil }
func (r *repo) DeleteDevelopment(ctx context.Context, personID, id int64) error { return nil }
func (r *repo) GetGraphLayout(ctx context.Context) (*models.GraphLayout, error) { return nil, nil }
func (r *repo) SaveGraphLayout(ctx context.Context, l models.GraphLayout) error { return nil }
func (r *repo) DeleteGraphLayout(ctx context.Context) error                     { return nil }
func (r *repo) Counts(ctx context.Context) (int, int, error)                    { return len(r.persons), 0, nil }
func (r *repo) GetGraph(ctx context.Context) (*models.GraphResponse, error) {
	return &models.GraphResponse{Nodes: []models.GraphNode{{ID: 1, Name: "张三"}}}, nil
}

// firstWord extracts the first word of the text as the person name.
type firstWord struct{}

func (firstWord) Extract(ctx context.Context, text string) (*models.ExtractResponse, error) {
	name, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	return &models.ExtractResponse{Profile: models.Profile{Name: name}}, nil
}

func connect(t *testing.T) (*mcp.ClientSession, context.Context) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := &repo{persons: []models.Person{{ID: 1, Name: "张三", Profile: map[string]any{"job": "工程师"}}}}
	persons := service.NewPersonService(r, firstWord{}, nil, 0)
	deps := &tools.Dependencies{
		Persons: persons,
		Imports: service.NewImportService(persons, service.NewJobManager(1)),
		Logger:  logger,
	}

	server := mcp.NewServer(&mcp.Implementation{Name: "test-circles", Version: "0.0.1-test"}, nil)
	tools.RegisterAll(server, deps)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	go func() {
		_ = server.Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err, "client should connect successfully")
	t.Cleanup(func() { _ = session.Close() })
	return session, ctx
}

func call(t *testing.T, ctx context.Context, s *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := s.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected TextContent")
	return text.Text, res.IsError
}

func TestToolsRegistered(t *testing.T) {
	session, ctx := connect(t)

	result, err := session.ListTools(ctx, nil)
	require.NoError(t, err)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	assert.ElementsMatch(t, []string{
		"ping", "extract_person", "check_name", "compare_person", "confirm_person",
		"remember_person", "list_persons", "get_person", "get_graph", "stats",
	}, names)
}

func TestPingTool(t *testing.T) {
	session, ctx := connect(t)

	text, isErr := call(t, ctx, session, "ping", map[string]any{})
	assert.False(t, isErr)
	assert.Equal(t, "pong: 1 persons, 0 relations", text)

	text, _ = call(t, ctx, session, "ping", map[string]any{"echo": "hello"})
	assert.Equal(t, "hello", text)
}

// extraction builds an extract_person result with empty sections.
func extraction(profile map[string]any) map[string]any {
	return map[string]any{
		"profile":      profile,
		"annotations":  []any{},
		"developments": []any{},
		"relations":    []any{},
	}
}

func TestReconciliationTools(t *testing.T) {
	session, ctx := connect(t)

	text, isErr := call(t, ctx, session, "check_name", map[string]any{"name": "张三"})
	require.False(t, isErr, text)
	assert.Contains(t, text, `"exists": true`)

	text, isErr = call(t, ctx, session, "compare_person", map[string]any{
		"person_id": 1,
		"extracted": extraction(map[string]any{"name": "张三", "job": "医生"}),
	})
	require.False(t, isErr, text)
	assert.Contains(t, text, "医生")

	text, isErr = call(t, ctx, session, "compare_person", map[string]any{
		"person_id": 9,
		"extracted": extraction(map[string]any{"name": "x"}),
	})
	assert.True(t, isErr)
	assert.Contains(t, text, "list_persons")

	text, isErr = call(t, ctx, session, "confirm_person", map[string]any{
		"original_text": "",
		"is_new_person": true,
		"profile":       map[string]any{"name": ""},
		"annotations":   []any{},
		"developments":  []any{},
		"relations":     []any{},
		"deleted":       map[string]any{},
	})
	assert.True(t, isErr)
	assert.Contains(t, text, "name must not be empty")
}

func TestRememberAndList(t *testing.T) {
	session, ctx := connect(t)

	text, isErr := call(t, ctx, session, "remember_person", map[string]any{"text": "李四 plays go"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "created 李四")

	text, isErr = call(t, ctx, session, "remember_person", map[string]any{"text": "张三 again", "on_conflict": "skip"})
	assert.True(t, isErr)
	assert.Contains(t, text, "skipped")

	text, isErr = call(t, ctx, session, "list_persons", map[string]any{})
	require.False(t, isErr)
	assert.Contains(t, text, "1\t张三\t工程师")
	assert.Contains(t, text, "李四")

	text, _ = call(t, ctx, session, "list_persons", map[string]any{"query": "王"})
	assert.Equal(t, "No persons found", text)

	text, isErr = call(t, ctx, session, "stats", map[string]any{})
	require.False(t, isErr)
	assert.Contains(t, text, `"persons": 2`)
}
