package tools

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/circles/internal/db"
	"github.com/raphaelgruber/circles/internal/llm"
	"github.com/raphaelgruber/circles/internal/reconcile"
	"github.com/raphaelgruber/circles/internal/service"
)

// ErrorResult creates a tool error result with optional recovery hint.
// If hint is non-empty, formats as "{msg}. {hint}".
// Returns IsError=true so LLM can see the error and self-correct.
func ErrorResult(msg, hint string) *mcp.CallToolResult {
	text := msg
	if hint != "" {
		text = msg + ". " + hint
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

// TextResult creates a success result with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// FormatResults joins items with newlines for list output.
func FormatResults(items []string) string {
	return strings.Join(items, "\n")
}

// JSONResult creates a success result with v rendered as indented JSON.
func JSONResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ErrorResult("Failed to encode result", err.Error())
	}
	return TextResult(string(data))
}

// serviceError turns a service error into a tool error with a recovery hint.
func serviceError(deps *Dependencies, op string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, reconcile.ErrValidation):
		return ErrorResult(err.Error(), "Fix the input and retry")
	case errors.Is(err, db.ErrNotFound):
		return ErrorResult(err.Error(), "Use list_persons to find valid ids")
	case errors.Is(err, db.ErrNameTaken):
		return ErrorResult(err.Error(), "Use check_name and merge into the existing person")
	case errors.Is(err, reconcile.ErrSkipped):
		return ErrorResult(err.Error(), "Use on_conflict merge or new to store it anyway")
	case errors.Is(err, llm.ErrFatalAPI):
		return ErrorResult(err.Error(), "The extraction model is unavailable")
	}
	if deps != nil && deps.Logger != nil {
		deps.Logger.Error(op+" failed", "error", err)
	}
	return ErrorResult(op+" failed", "Database may be unavailable")
}
