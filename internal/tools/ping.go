package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// PingInput defines the input schema for the ping tool.
type PingInput struct {
	Echo string `json:"echo,omitempty" jsonschema:"Text to echo back instead of the store summary"`
}

// NewPingHandler creates a ping tool handler. Without echo it reports
// whether the person store answers and how much it holds.
func NewPingHandler(deps *Dependencies) mcp.ToolHandlerFor[PingInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input PingInput) (*mcp.CallToolResult, any, error) {
		if deps.Logger != nil {
			deps.Logger.Debug("ping tool called", "echo", input.Echo)
		}
		if input.Echo != "" {
			return TextResult(input.Echo), nil, nil
		}
		if deps.Persons == nil {
			return TextResult("pong"), nil, nil
		}
		st, err := deps.Persons.Stats(ctx)
		if err != nil {
			return ErrorResult("pong, but the person store is unreachable: "+err.Error(), "check the database connection"), nil, nil
		}
		return TextResult(fmt.Sprintf("pong: %d persons, %d relations", st.Persons, st.Relations)), nil, nil
	}
}
