package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// PingInput defines the input schema for the ping tool.
type PingInput struct {
	Echo  string `json:"echo,omitempty" jsonschema:"Optional message to echo back"`
	Check bool   `json:"check,omitempty" jsonschema:"Also check that the analysis backend is reachable"`
}

// NewPingHandler creates the ping tool handler.
// Returns "pong" or the echo text; with check set, appends backend health.
func NewPingHandler(deps *Dependencies) mcp.ToolHandlerFor[PingInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input PingInput) (*mcp.CallToolResult, any, error) {
		response := "pong"
		if input.Echo != "" {
			response = input.Echo
		}
		if !input.Check {
			return TextResult(response), nil, nil
		}

		p := deps.App.Provider
		if err := deps.App.Health(ctx); err != nil {
			deps.Logger.Warn("backend health check failed", "provider", p.Name(), "error", err)
			return ErrorResult(fmt.Sprintf("%s: backend %s unreachable: %v", response, p.Name(), err),
				"Check that the backend is running and the configuration is correct"), nil, nil
		}
		return TextResult(fmt.Sprintf("%s (%s %s ok)", response, p.Name(), p.Model())), nil, nil
	}
}
