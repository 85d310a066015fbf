package llm

import (
	"fmt"

	"github.com/raphaelgruber/vaultbot/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

// Claude is the hosted Anthropic backend.
type Claude struct {
	*engine
}

// Compile-time check that Claude implements Provider.
var _ Provider = (*Claude)(nil)

// NewClaude creates the Anthropic backend from configuration.
func NewClaude(cfg config.AIConfig, deps Deps) (*Claude, error) {
	if cfg.Claude.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key required")
	}
	model, err := anthropic.New(
		anthropic.WithToken(cfg.Claude.APIKey),
		anthropic.WithModel(cfg.Claude.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create anthropic model: %w", err)
	}
	return newClaude(model, cfg, deps), nil
}

func newClaude(model llms.Model, cfg config.AIConfig, deps Deps) *Claude {
	e := newEngine(config.ProviderClaude, cfg.Claude.Model, model, cfg.Claude.Timeout, cfg.MaxContentChars, deps,
		llms.WithTemperature(cfg.Claude.Temperature),
		llms.WithMaxTokens(cfg.Claude.MaxTokens),
	)
	e.price = pricing{input: cfg.Claude.InputPrice, output: cfg.Claude.OutputPrice}
	return &Claude{engine: e}
}
