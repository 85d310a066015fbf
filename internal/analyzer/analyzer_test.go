package analyzer

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/raphaelgruber/vaultbot/internal/llm"
	"github.com/raphaelgruber/vaultbot/internal/llm/llmtest"
	"github.com/raphaelgruber/vaultbot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAnalyzer(p llm.Provider, fallback bool) *Analyzer {
	return New(p, fallback, 5, WithClock(fixedNow), WithLogger(quietLogger()))
}

func assertComplete(t *testing.T, a models.Analysis) {
	t.Helper()
	assert.NotEmpty(t, a.Title)
	assert.NotEmpty(t, a.SuggestedFolder)
	assert.NotNil(t, a.Tags)
	assert.NotNil(t, a.Connections)
	assert.NotNil(t, a.Entities)
	assert.NotEmpty(t, a.ProviderName)
}

func TestAnalyzeSuccessTagsProvider(t *testing.T) {
	p := &llmtest.Fake{ProviderName: "claude", Result: models.Analysis{
		Title:           "Distributed Caching Idea",
		Tags:            []string{"distributed-systems", "caching"},
		SuggestedFolder: "Knowledge/Tech",
	}}

	a, err := newAnalyzer(p, true).Analyze(context.Background(), "content", models.AnalysisContext{Source: "cli"})
	require.NoError(t, err)
	assertComplete(t, a)
	assert.True(t, a.Succeeded)
	assert.Equal(t, "claude", a.ProviderName)
	assert.Equal(t, "Distributed Caching Idea", a.Title)
	assert.Equal(t, "cli", p.Calls()[0].Context.Source)
}

func TestAnalyzeValidatesResult(t *testing.T) {
	p := &llmtest.Fake{Result: models.Analysis{
		Title:           "  ",
		Tags:            []string{"a", "b", "c", "d", "e", "f", "g"},
		SuggestedFolder: "/Projects:Alpha/",
	}}

	a, err := newAnalyzer(p, true).Analyze(context.Background(), "content", models.AnalysisContext{})
	require.NoError(t, err)
	assertComplete(t, a)
	assert.Equal(t, "Untitled Note", a.Title)
	assert.Len(t, a.Tags, 5)
	assert.Equal(t, "Projects-Alpha", a.SuggestedFolder)
}

func TestAnalyzeFallbackOnError(t *testing.T) {
	p := &llmtest.Fake{Err: &llm.ProviderError{Provider: "fake", Op: "analyze", Kind: llm.ErrUnavailable}}

	a, err := newAnalyzer(p, true).Analyze(context.Background(), "\n\n  First line here  \nsecond line", models.AnalysisContext{Source: "telegram"})
	require.NoError(t, err)
	assertComplete(t, a)
	assert.False(t, a.Succeeded)
	assert.Equal(t, "fallback", a.ProviderName)
	assert.Equal(t, "First line here", a.Title)
	assert.Equal(t, "Content received from telegram on 2025-01-15", a.Summary)
	assert.Equal(t, []string{"inbox", "unprocessed"}, a.Tags)
	assert.Equal(t, "Inbox", a.SuggestedFolder)
	assert.Empty(t, a.Connections)
	assert.Empty(t, a.Entities)
}

func TestAnalyzeFallbackCoversEveryErrorKind(t *testing.T) {
	kinds := []error{llm.ErrAuth, llm.ErrQuota, llm.ErrFatalAPI, llm.ErrRateLimited, llm.ErrTimeout, llm.ErrEmptyResponse}
	for _, kind := range kinds {
		t.Run(kind.Error(), func(t *testing.T) {
			p := &llmtest.Fake{Err: &llm.ProviderError{Provider: "fake", Op: "analyze", Kind: kind}}

			a, err := newAnalyzer(p, true).Analyze(context.Background(), "note", models.AnalysisContext{})
			require.NoError(t, err)
			assert.Equal(t, "fallback", a.ProviderName)

			_, err = newAnalyzer(p, false).Analyze(context.Background(), "note", models.AnalysisContext{})
			assert.ErrorIs(t, err, kind)
		})
	}
}

func TestAnalyzeFallbackOnPanic(t *testing.T) {
	p := &llmtest.Fake{Panic: "boom"}

	a, err := newAnalyzer(p, true).Analyze(context.Background(), "hello", models.AnalysisContext{})
	require.NoError(t, err)
	assert.False(t, a.Succeeded)
	assert.Equal(t, "hello", a.Title)
}

func TestAnalyzeFallbackDisabledPropagatesError(t *testing.T) {
	perr := &llm.ProviderError{Provider: "fake", Op: "analyze", Kind: llm.ErrQuota}
	p := &llmtest.Fake{Err: perr}

	_, err := newAnalyzer(p, false).Analyze(context.Background(), "hello", models.AnalysisContext{})
	require.Error(t, err)
	assert.Same(t, perr, err)
	assert.ErrorIs(t, err, llm.ErrFatalAPI)
}

func TestAnalyzeFallbackDisabledPanicIsError(t *testing.T) {
	p := &llmtest.Fake{Panic: "boom"}

	_, err := newAnalyzer(p, false).Analyze(context.Background(), "hello", models.AnalysisContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestFallbackTitle(t *testing.T) {
	a := newAnalyzer(&llmtest.Fake{}, true)

	tests := []struct {
		name    string
		content string
		source  string
		want    string
	}{
		{"first line", "Buy milk\nand eggs", "cli", "Buy milk"},
		{"empty content", "   \n ", "telegram", "Note from telegram"},
		{"default source", "", "", "Note from chat"},
		{"sanitized", "What is a/b?", "cli", "What is a-b-"},
		{"capped", strings.Repeat("x", 150), "cli", strings.Repeat("x", 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Fallback(tt.content, tt.source).Title)
		})
	}
}

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Normal Title", "Normal Title"},
		{`a/b\c:d*e?f"g<h>i|j`, "a-b-c-d-e-f-g-h-i-j"},
		{"...dots and spaces.. ", "dots and spaces"},
		{"", "Untitled Note"},
		{" . ", "Untitled Note"},
		{strings.Repeat("ab", 60), strings.Repeat("ab", 50)},
		{"Caching\n# Second heading", "Caching # Second heading"},
		{"  multi\r\n\tline   title\n", "multi line title"},
		{"\n\n", "Untitled Note"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeTitle(tt.in))
		})
	}
}

func TestSanitizeFolder(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/Projects:Alpha/", "Projects-Alpha"},
		{"Knowledge/Tech", "Knowledge/Tech"},
		{"  ", "Inbox"},
		{"///", "Inbox"},
		{`Work\Notes`, "Work-Notes"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFolder(tt.in))
		})
	}
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	in := models.Analysis{Tags: []string{" a ", "", "b"}}
	out := Validate(in, 5)

	assert.Equal(t, []string{"a", "b"}, out.Tags)
	assert.Equal(t, []string{" a ", "", "b"}, in.Tags)
	assert.NotNil(t, out.Connections)
	assert.NotNil(t, out.Entities)
}
