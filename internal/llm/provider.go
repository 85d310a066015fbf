// Package llm implements the analysis backends behind one Provider contract.
package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/vaultbot/internal/audit"
	"github.com/raphaelgruber/vaultbot/internal/config"
	"github.com/raphaelgruber/vaultbot/internal/metrics"
	"github.com/raphaelgruber/vaultbot/internal/models"
)

// Provider is an analysis backend. All errors are *ProviderError.
type Provider interface {
	Name() string
	Model() string
	Analyze(ctx context.Context, content string, actx models.AnalysisContext) (models.Analysis, error)
	Summarize(ctx context.Context, content string, maxWords int) (string, error)
	SuggestTags(ctx context.Context, content string, maxTags int) ([]string, error)
	SuggestFolder(ctx context.Context, content string, folders []string) (string, error)
	FindConnections(ctx context.Context, content string, notes []models.NoteSummary) ([]string, error)
}

// Pinger is implemented by providers that can check backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the shared collaborators injected into every provider.
type Deps struct {
	Sink    audit.Sink
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Sink == nil {
		d.Sink = audit.Discard
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// New builds the provider selected by cfg.Provider.
func New(cfg config.AIConfig, deps Deps) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderClaude:
		return NewClaude(cfg, deps)
	case config.ProviderOllama:
		return NewOllama(cfg, deps)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %q", cfg.Provider)
	}
}

// DefaultMaxContentChars is the truncation ceiling when none is configured.
const DefaultMaxContentChars = 10000

const truncationMarker = "\n\n[Content truncated for analysis...]"

// Truncate cuts content to maxChars runes and appends a marker when it did.
func Truncate(content string, maxChars int) (string, bool) {
	if maxChars <= 0 {
		maxChars = DefaultMaxContentChars
	}
	r := []rune(content)
	if len(r) <= maxChars {
		return content, false
	}
	return string(r[:maxChars]) + truncationMarker, true
}
