package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	defaultLimit = 5
	maxLimit     = 50
)

func clampLimit(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return min(n, maxLimit)
}

// ListFoldersInput defines the input schema for the list_folders tool.
type ListFoldersInput struct {
	Depth int `json:"depth,omitempty" jsonschema:"Maximum folder depth (default: configured depth)"`
}

// NewListFoldersHandler creates the list_folders tool handler.
func NewListFoldersHandler(deps *Dependencies) mcp.ToolHandlerFor[ListFoldersInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListFoldersInput) (*mcp.CallToolResult, any, error) {
		depth := input.Depth
		if depth <= 0 {
			depth = deps.App.Config.Vault.FolderDepth
		}
		folders := deps.App.Writer.ListFolders(depth)
		if len(folders) == 0 {
			return TextResult("No folders in vault"), nil, nil
		}
		return TextResult(FormatResults(folders)), nil, nil
	}
}

// RelatedInput defines the input schema for the find_related_notes tool.
type RelatedInput struct {
	Tags     []string `json:"tags,omitempty" jsonschema:"Tags to match against note text"`
	Entities []string `json:"entities,omitempty" jsonschema:"Entity names to count in note text"`
	Limit    int      `json:"limit,omitempty" jsonschema:"Maximum number of notes (default 5, max 50)"`
}

// NewRelatedHandler creates the find_related_notes tool handler.
func NewRelatedHandler(deps *Dependencies) mcp.ToolHandlerFor[RelatedInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RelatedInput) (*mcp.CallToolResult, any, error) {
		if len(input.Tags) == 0 && len(input.Entities) == 0 {
			return ErrorResult("tags or entities required", "Provide at least one tag or entity"), nil, nil
		}
		notes, err := deps.App.Finder.Related(ctx, input.Tags, input.Entities, clampLimit(input.Limit))
		if err != nil {
			return finderError(err), nil, nil
		}
		res, err := JSONResult(notes)
		return res, nil, err
	}
}

// SearchInput defines the input schema for the search_notes tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"Case-insensitive text to look for (at least 3 characters)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of notes (default 5, max 50)"`
}

// NewSearchHandler creates the search_notes tool handler.
func NewSearchHandler(deps *Dependencies) mcp.ToolHandlerFor[SearchInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, any, error) {
		if len([]rune(input.Query)) < 3 {
			return ErrorResult("query too short", "Use at least 3 characters"), nil, nil
		}
		notes, err := deps.App.Finder.Search(ctx, input.Query, clampLimit(input.Limit))
		if err != nil {
			return finderError(err), nil, nil
		}
		if len(notes) == 0 {
			return TextResult(fmt.Sprintf("No notes match %q", input.Query)), nil, nil
		}
		res, err := JSONResult(notes)
		return res, nil, err
	}
}

func finderError(err error) *mcp.CallToolResult {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorResult("vault scan timed out", "Try a narrower query")
	}
	return ErrorResult(fmt.Sprintf("vault scan failed: %v", err), "")
}
