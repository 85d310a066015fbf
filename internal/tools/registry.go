package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ping",
		Description: "Responds with pong or echoes input; optionally checks the analysis backend",
	}, NewPingHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "capture_note",
		Description: "Analyze text and save it as a tagged note in the vault incoming folder",
	}, NewCaptureHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_folders",
		Description: "List vault folders up to a depth",
	}, NewListFoldersHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_related_notes",
		Description: "Rank vault notes by tag and entity overlap",
	}, NewRelatedHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_notes",
		Description: "Case-insensitive text search over vault notes",
	}, NewSearchHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "suggest",
		Description: "Suggest a summary, tags, folder or connections for text without saving",
	}, NewSuggestHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "stats",
		Description: "Report pipeline metrics and per-provider audit totals",
	}, NewStatsHandler(deps))
}
