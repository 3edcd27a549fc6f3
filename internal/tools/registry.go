package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ping",
		Description: "Health check - reports person and relation counts, or echoes input",
	}, NewPingHandler(deps))

	// Reconciliation steps, for agents that review conflicts themselves
	mcp.AddTool(server, &mcp.Tool{
		Name:        "extract_person",
		Description: "Extract a structured person profile (notes, events, annotations, developments, relations) from free text without storing it",
	}, NewExtractHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_name",
		Description: "Check whether a person with exactly this name is already stored",
	}, NewCheckNameHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "compare_person",
		Description: "Compare an extracted profile with a stored person and list field conflicts and proposed additions",
	}, NewCompareHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "confirm_person",
		Description: "Persist a reviewed person: create a new one or merge into person_id, with deletions and relations, in one transaction",
	}, NewConfirmHandler(deps))

	// One-shot reconciliation
	mcp.AddTool(server, &mcp.Tool{
		Name:        "remember_person",
		Description: "Extract, reconcile and store a person from free text in one call. Existing names are merged unless on_conflict says otherwise",
	}, NewRememberHandler(deps))

	// Reads
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_persons",
		Description: "List stored persons as id, name and job",
	}, NewListPersonsHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_person",
		Description: "Retrieve a person by id with events, annotations and developments",
	}, NewGetPersonHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_graph",
		Description: "Return the relationship graph: persons as nodes, one edge per related pair",
	}, NewGetGraphHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "stats",
		Description: "Report person and relation counts and operation timings",
	}, NewStatsHandler(deps))
}
