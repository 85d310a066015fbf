package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SuggestInput defines the input schema for the suggest tool.
type SuggestInput struct {
	Text string `json:"text" jsonschema:"Content to analyze"`
	Kind string `json:"kind" jsonschema:"One of: summary, tags, folder, connections"`
}

// NewSuggestHandler creates the suggest tool handler. It runs a single
// narrow analysis without saving anything.
func NewSuggestHandler(deps *Dependencies) mcp.ToolHandlerFor[SuggestInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SuggestInput) (*mcp.CallToolResult, any, error) {
		if input.Text == "" {
			return ErrorResult("text is required", ""), nil, nil
		}

		app := deps.App
		p := app.Provider
		var (
			out any
			err error
		)
		switch input.Kind {
		case "summary":
			out, err = p.Summarize(ctx, input.Text, 50)
		case "tags":
			out, err = p.SuggestTags(ctx, input.Text, app.Config.AI.MaxTags)
		case "folder":
			out, err = p.SuggestFolder(ctx, input.Text, app.Writer.ListFolders(app.Config.Vault.FolderDepth))
		case "connections":
			notes, serr := app.Finder.Summaries(ctx, 50)
			if serr != nil {
				return finderError(serr), nil, nil
			}
			out, err = p.FindConnections(ctx, input.Text, notes)
		default:
			return ErrorResult(fmt.Sprintf("unknown kind %q", input.Kind),
				"Use summary, tags, folder or connections"), nil, nil
		}
		if err != nil {
			return ErrorResult(fmt.Sprintf("%s failed: %v", input.Kind, err), ""), nil, nil
		}
		res, err := JSONResult(out)
		return res, nil, err
	}
}
