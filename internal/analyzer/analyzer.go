// Package analyzer turns raw content into a validated Analysis, substituting
// a locally built fallback when the backend fails.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/vaultbot/internal/llm"
	"github.com/raphaelgruber/vaultbot/internal/models"
	"github.com/raphaelgruber/vaultbot/internal/prompts"
)

// defaultSource labels content whose origin is unknown.
const defaultSource = "chat"

// Analyzer orchestrates one analysis attempt per request. It never retries.
type Analyzer struct {
	provider llm.Provider
	fallback bool
	maxTags  int
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock overrides the clock used in fallback summaries.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// New creates an Analyzer. With fallbackOnError set, backend failures yield
// a fallback analysis instead of an error.
func New(p llm.Provider, fallbackOnError bool, maxTags int, opts ...Option) *Analyzer {
	a := &Analyzer{
		provider: p,
		fallback: fallbackOnError,
		maxTags:  maxTags,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider returns the backend in use.
func (a *Analyzer) Provider() llm.Provider {
	return a.provider
}

// Analyze returns a complete analysis. On success it is tagged with the
// backend name. On failure it returns a fallback analysis, or the backend
// error unchanged when fallback is disabled.
func (a *Analyzer) Analyze(ctx context.Context, content string, actx models.AnalysisContext) (models.Analysis, error) {
	a.logger.Info("analyzing content",
		"source", sourceOrDefault(actx.Source),
		"content_type", actx.ContentType,
		"content_length", len([]rune(content)))

	result, err := a.call(ctx, content, actx)
	if err != nil {
		if !a.fallback {
			return models.Analysis{}, err
		}
		a.logger.Warn("analysis failed, using fallback", "provider", a.provider.Name(), "error", err)
		return a.Fallback(content, actx.Source), nil
	}

	result = Validate(result, a.maxTags)
	result.ProviderName = a.provider.Name()
	result.Succeeded = true
	return result, nil
}

// call invokes the backend and converts a panic into an error.
func (a *Analyzer) call(ctx context.Context, content string, actx models.AnalysisContext) (result models.Analysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("provider panicked", "provider", a.provider.Name(), "panic", r)
			err = fmt.Errorf("analyze: provider %s panicked: %v", a.provider.Name(), r)
		}
	}()
	return a.provider.Analyze(ctx, content, actx)
}

// Fallback builds the analysis used when the backend is unavailable.
func (a *Analyzer) Fallback(content, source string) models.Analysis {
	source = sourceOrDefault(source)

	title := ""
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			title = line
			break
		}
	}
	if r := []rune(title); len(r) > maxTitleLen {
		title = string(r[:maxTitleLen])
	}
	if title == "" {
		title = "Note from " + source
	}

	out := prompts.FallbackAnalysis()
	out.Title = SanitizeTitle(title)
	out.Summary = fmt.Sprintf("Content received from %s on %s", source, a.now().Format("2006-01-02"))
	out.ProviderName = models.FallbackSource
	out.Succeeded = false
	return out
}

func sourceOrDefault(s string) string {
	if s == "" {
		return defaultSource
	}
	return s
}
