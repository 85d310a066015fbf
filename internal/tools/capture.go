package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/vaultbot/internal/llm"
	"github.com/raphaelgruber/vaultbot/internal/service"
	"github.com/raphaelgruber/vaultbot/internal/vault"
)

// CaptureInput defines the input schema for the capture_note tool.
type CaptureInput struct {
	Text      string `json:"text" jsonschema:"Content to capture; URLs are fetched and summarized"`
	Subfolder string `json:"subfolder,omitempty" jsonschema:"Optional folder below the incoming folder"`
	Source    string `json:"source,omitempty" jsonschema:"Source label recorded in front matter (default: mcp)"`
}

// NewCaptureHandler creates the capture_note tool handler.
func NewCaptureHandler(deps *Dependencies) mcp.ToolHandlerFor[CaptureInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input CaptureInput) (*mcp.CallToolResult, any, error) {
		source := input.Source
		if source == "" {
			source = "mcp"
		}

		saved, err := deps.App.Pipeline.Capture(ctx, service.Message{
			Text:      input.Text,
			Source:    source,
			Subfolder: input.Subfolder,
		})
		switch {
		case errors.Is(err, service.ErrEmptyMessage):
			return ErrorResult("text is required", "Provide the content to capture"), nil, nil
		case errors.Is(err, llm.ErrFatalAPI):
			return ErrorResult(fmt.Sprintf("analysis backend rejected the request: %v", err),
				"Check credentials and quota"), nil, nil
		case errors.Is(err, vault.ErrPathEscape):
			return ErrorResult("subfolder escapes the vault", "Use a relative folder name"), nil, nil
		case err != nil:
			deps.Logger.Error("capture failed", "error", err)
			return ErrorResult(fmt.Sprintf("capture failed: %v", err), ""), nil, nil
		}

		res, err := JSONResult(saved)
		return res, nil, err
	}
}
