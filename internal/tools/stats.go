package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StatsInput defines the input schema for the stats tool.
type StatsInput struct {
	SinceHours int `json:"since_hours,omitempty" jsonschema:"Aggregate audit records from the last N hours (default 24)"`
}

// NewStatsHandler creates the stats tool handler.
func NewStatsHandler(deps *Dependencies) mcp.ToolHandlerFor[StatsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatsInput) (*mcp.CallToolResult, any, error) {
		hours := input.SinceHours
		if hours <= 0 {
			hours = 24
		}
		st, err := deps.App.Stats(ctx, time.Now().Add(-time.Duration(hours)*time.Hour))
		if err != nil {
			return ErrorResult(fmt.Sprintf("stats failed: %v", err), ""), nil, nil
		}
		res, err := JSONResult(st)
		return res, nil, err
	}
}
