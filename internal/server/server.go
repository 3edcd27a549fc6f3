// Package server provides the HTTP API, the layout websocket and the MCP
// server wrapper with lifecycle management.
package server

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// instructions tells agents how the person tools fit together.
const instructions = `circles keeps a directory of people and how they know each other.

To record what a note says about someone, either call remember_person with
the text and an on_conflict policy (merge, new or skip), or walk the steps
yourself: extract_person, then check_name on the extracted name, then
compare_person against the stored person if the name exists, then
confirm_person with every conflict resolved.

Names match exactly. A different person with a taken name needs the
suggested name from check_name, e.g. 张三(2).

Use list_persons and get_person to read, get_graph for relations.`

// Server wraps the MCP server with dependencies and lifecycle management.
type Server struct {
	mcp    *mcp.Server
	logger *slog.Logger
}

// New creates the circles MCP server with the given version and logger.
func New(version string, logger *slog.Logger) *Server {
	impl := &mcp.Implementation{
		Name:    "circles",
		Title:   "circles relationship manager",
		Version: version,
	}

	return &Server{
		mcp:    mcp.NewServer(impl, &mcp.ServerOptions{Instructions: instructions}),
		logger: logger,
	}
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting circles MCP server", "transport", "stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server for tool registration.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Setup installs the request logging middleware.
func (s *Server) Setup() {
	s.mcp.AddReceivingMiddleware(LoggingMiddleware(s.logger))
}
