// Package llmtest provides a scriptable llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/raphaelgruber/vaultbot/internal/llm"
	"github.com/raphaelgruber/vaultbot/internal/models"
)

// Fake is an llm.Provider returning canned results. Safe for concurrent use.
type Fake struct {
	ProviderName string
	Result       models.Analysis
	Err          error
	Panic        any

	Summary     string
	Tags        []string
	Folder      string
	Connections []string

	mu    sync.Mutex
	calls []Call
}

// Call records one Analyze invocation.
type Call struct {
	Content string
	Context models.AnalysisContext
}

var _ llm.Provider = (*Fake)(nil)

// Name returns ProviderName, defaulting to "fake".
func (f *Fake) Name() string {
	if f.ProviderName == "" {
		return "fake"
	}
	return f.ProviderName
}

// Model returns a fixed model name.
func (f *Fake) Model() string { return "fake-model" }

// Analyze records the call and returns Result or Err.
func (f *Fake) Analyze(_ context.Context, content string, actx models.AnalysisContext) (models.Analysis, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Content: content, Context: actx})
	f.mu.Unlock()

	if f.Panic != nil {
		panic(f.Panic)
	}
	if f.Err != nil {
		return models.Analysis{}, f.Err
	}
	return f.Result.Clone(), nil
}

// Summarize returns Summary or Err.
func (f *Fake) Summarize(context.Context, string, int) (string, error) {
	return f.Summary, f.Err
}

// SuggestTags returns Tags or Err.
func (f *Fake) SuggestTags(_ context.Context, _ string, maxTags int) ([]string, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	tags := models.CloneStrings(f.Tags)
	if maxTags > 0 && len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return tags, nil
}

// SuggestFolder returns Folder or Err.
func (f *Fake) SuggestFolder(context.Context, string, []string) (string, error) {
	return f.Folder, f.Err
}

// FindConnections returns Connections or Err.
func (f *Fake) FindConnections(context.Context, string, []models.NoteSummary) ([]string, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return models.CloneStrings(f.Connections), nil
}

// Calls returns the recorded Analyze calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}
