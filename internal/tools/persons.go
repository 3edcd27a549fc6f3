package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/circles/internal/models"
	"github.com/raphaelgruber/circles/internal/reconcile"
)

// ExtractInput defines the input schema for the extract_person tool.
type ExtractInput struct {
	Text string `json:"text" jsonschema:"Free text describing one person"`
}

// NewExtractHandler creates the extract_person tool handler.
// Returns the structured profile without storing anything.
func NewExtractHandler(deps *Dependencies) mcp.ToolHandlerFor[ExtractInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ExtractInput) (*mcp.CallToolResult, any, error) {
		res, err := deps.Persons.Extract(ctx, input.Text)
		if err != nil {
			return serviceError(deps, "extract", err), nil, nil
		}
		return JSONResult(res), nil, nil
	}
}

// CheckNameInput defines the input schema for the check_name tool.
type CheckNameInput struct {
	Name string `json:"name" jsonschema:"Exact person name"`
}

// NewCheckNameHandler creates the check_name tool handler.
func NewCheckNameHandler(deps *Dependencies) mcp.ToolHandlerFor[CheckNameInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input CheckNameInput) (*mcp.CallToolResult, any, error) {
		res, err := deps.Persons.CheckName(ctx, input.Name)
		if err != nil {
			return serviceError(deps, "check name", err), nil, nil
		}
		return JSONResult(res), nil, nil
	}
}

// CompareInput defines the input schema for the compare_person tool.
type CompareInput struct {
	PersonID  int64                  `json:"person_id" jsonschema:"Id of the stored person"`
	Extracted models.ExtractResponse `json:"extracted" jsonschema:"Output of extract_person"`
}

// NewCompareHandler creates the compare_person tool handler.
func NewCompareHandler(deps *Dependencies) mcp.ToolHandlerFor[CompareInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input CompareInput) (*mcp.CallToolResult, any, error) {
		if input.PersonID <= 0 {
			return ErrorResult("person_id is required", "Use check_name to find the stored person"), nil, nil
		}
		res, err := deps.Persons.Compare(ctx, input.PersonID, input.Extracted)
		if err != nil {
			return serviceError(deps, "compare", err), nil, nil
		}
		return JSONResult(res), nil, nil
	}
}

// NewConfirmHandler creates the confirm_person tool handler.
func NewConfirmHandler(deps *Dependencies) mcp.ToolHandlerFor[models.ConfirmRequest, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input models.ConfirmRequest) (*mcp.CallToolResult, any, error) {
		res, err := deps.Persons.Confirm(ctx, input)
		if err != nil {
			return serviceError(deps, "confirm", err), nil, nil
		}
		return JSONResult(res), nil, nil
	}
}

// RememberInput defines the input schema for the remember_person tool.
type RememberInput struct {
	Text       string `json:"text" jsonschema:"Free text describing one person"`
	OnConflict string `json:"on_conflict,omitempty" jsonschema:"merge (default), new or skip when the name already exists"`
}

// NewRememberHandler creates the remember_person tool handler.
// Runs extraction, name check, compare and confirm in one call.
func NewRememberHandler(deps *Dependencies) mcp.ToolHandlerFor[RememberInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RememberInput) (*mcp.CallToolResult, any, error) {
		res, isNew, err := deps.Imports.Remember(ctx, input.Text, reconcile.Policy(input.OnConflict))
		if err != nil {
			return serviceError(deps, "remember", err), nil, nil
		}
		deps.Logger.Info("remember completed", "person_id", res.PersonID, "new", isNew)
		return JSONResult(res), nil, nil
	}
}

// ListPersonsInput defines the input schema for the list_persons tool.
type ListPersonsInput struct {
	Query string `json:"query,omitempty" jsonschema:"Only list names containing this text"`
}

// NewListPersonsHandler creates the list_persons tool handler.
// Output is one "id<TAB>name<TAB>job" line per person.
func NewListPersonsHandler(deps *Dependencies) mcp.ToolHandlerFor[ListPersonsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListPersonsInput) (*mcp.CallToolResult, any, error) {
		persons, err := deps.Persons.ListPersons(ctx)
		if err != nil {
			return serviceError(deps, "list persons", err), nil, nil
		}

		lines := make([]string, 0, len(persons))
		for _, p := range persons {
			if input.Query != "" && !strings.Contains(p.Name, input.Query) {
				continue
			}
			lines = append(lines, fmt.Sprintf("%d\t%s\t%s", p.ID, p.Name, models.Deref(p.ProfileString("job"))))
		}
		if len(lines) == 0 {
			return TextResult("No persons found"), nil, nil
		}
		return TextResult(FormatResults(lines)), nil, nil
	}
}

// GetPersonInput defines the input schema for the get_person tool.
type GetPersonInput struct {
	ID int64 `json:"id" jsonschema:"Person id"`
}

// NewGetPersonHandler creates the get_person tool handler.
func NewGetPersonHandler(deps *Dependencies) mcp.ToolHandlerFor[GetPersonInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GetPersonInput) (*mcp.CallToolResult, any, error) {
		p, err := deps.Persons.GetPerson(ctx, input.ID)
		if err != nil {
			return serviceError(deps, "get person", err), nil, nil
		}
		return JSONResult(p), nil, nil
	}
}

// NewGetGraphHandler creates the get_graph tool handler.
func NewGetGraphHandler(deps *Dependencies) mcp.ToolHandlerFor[struct{}, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
		g, err := deps.Persons.GetGraph(ctx)
		if err != nil {
			return serviceError(deps, "get graph", err), nil, nil
		}
		return JSONResult(g), nil, nil
	}
}

// NewStatsHandler creates the stats tool handler.
func NewStatsHandler(deps *Dependencies) mcp.ToolHandlerFor[struct{}, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
		st, err := deps.Persons.Stats(ctx)
		if err != nil {
			return serviceError(deps, "stats", err), nil, nil
		}
		return JSONResult(st), nil, nil
	}
}
