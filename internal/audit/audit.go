// Package audit records structured evaluation data for every backend call.
//
// Records are written to an explicitly constructed Sink handed to each
// provider. Nothing in this package keeps process-wide state.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/vaultbot/internal/models"
)

// Kind classifies an audit record.
type Kind string

const (
	KindEvaluation   Kind = "evaluation"
	KindError        Kind = "error"
	KindParseFailure Kind = "parse_failure"
)

// previewLen is the number of characters kept in Input.Preview.
const previewLen = 200

// Record is one evaluation, error or parse-failure entry.
type Record struct {
	ID          string    `json:"id"`
	Time        time.Time `json:"timestamp"`
	Kind        Kind      `json:"kind"`
	Operation   string    `json:"operation"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model,omitempty"`
	ContentType string    `json:"content_type,omitempty"`

	Input    *Input           `json:"input,omitempty"`
	Prompt   *Prompt          `json:"prompt,omitempty"`
	Response *Response        `json:"response,omitempty"`
	Parsed   *models.Analysis `json:"parsed_analysis,omitempty"`
	Metrics  *Metrics         `json:"metrics,omitempty"`
	Quality  *Quality         `json:"quality_indicators,omitempty"`

	Error        string `json:"error,omitempty"`
	ErrorType    string `json:"error_type,omitempty"`
	FallbackUsed bool   `json:"fallback_used,omitempty"`
}

// Input describes the content sent to the backend.
type Input struct {
	ContentLength int    `json:"content_length"`
	Truncated     bool   `json:"truncated"`
	Preview       string `json:"content_preview"`
}

// Prompt holds the full prompt text.
type Prompt struct {
	Text   string `json:"full_prompt"`
	Length int    `json:"prompt_length"`
}

// Response holds the raw backend output.
type Response struct {
	Raw    string `json:"raw_response"`
	Length int    `json:"response_length"`
}

// Metrics holds timing, token and cost figures for one call.
type Metrics struct {
	ElapsedSeconds  float64 `json:"elapsed_time_seconds"`
	InputTokens     int64   `json:"input_tokens"`
	OutputTokens    int64   `json:"output_tokens"`
	TotalTokens     int64   `json:"total_tokens"`
	TokensPerSecond float64 `json:"tokens_per_second,omitempty"`
	CostUSD         float64 `json:"cost_estimate_usd"`
}

// Quality summarizes how complete a parsed analysis is.
type Quality struct {
	HasTitle          bool `json:"has_title"`
	HasSummary        bool `json:"has_summary"`
	NumTags           int  `json:"num_tags"`
	HasFolder         bool `json:"has_folder"`
	NumConnections    int  `json:"num_connections"`
	NumEntities       int  `json:"num_entities"`
	ParsingSuccessful bool `json:"parsing_successful"`
}

// Sink receives audit records.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// New returns a record stamped with a fresh ID and the current time.
func New(kind Kind, operation, provider, model string) Record {
	return Record{
		ID:        uuid.NewString(),
		Time:      time.Now().UTC(),
		Kind:      kind,
		Operation: operation,
		Provider:  provider,
		Model:     model,
	}
}

// NewInput builds an Input with a bounded preview of content.
func NewInput(originalLength int, truncated bool, content string) *Input {
	return &Input{
		ContentLength: originalLength,
		Truncated:     truncated,
		Preview:       Preview(content, previewLen),
	}
}

// QualityOf computes quality indicators for a parsed analysis.
func QualityOf(a models.Analysis, parsed bool) *Quality {
	return &Quality{
		HasTitle:          a.Title != "",
		HasSummary:        a.Summary != "",
		NumTags:           len(a.Tags),
		HasFolder:         a.SuggestedFolder != "",
		NumConnections:    len(a.Connections),
		NumEntities:       len(a.Entities),
		ParsingSuccessful: parsed,
	}
}

// Preview cuts s to n runes, appending "..." when something was cut.
func Preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Discard drops every record.
var Discard Sink = discard{}

type discard struct{}

func (discard) Write(context.Context, Record) error { return nil }

// Multi fans a record out to every sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

type multi []Sink

func (m multi) Write(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Memory keeps records in memory. Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

// Write appends rec.
func (m *Memory) Write(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Records returns a copy of everything written so far.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}
