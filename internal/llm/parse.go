package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raphaelgruber/vaultbot/internal/models"
	"github.com/raphaelgruber/vaultbot/internal/prompts"
)

// strategy extracts a JSON object candidate from a raw response.
type strategy struct {
	name    string
	extract func(raw string) (string, bool)
}

// strategies are tried in order; the first candidate that decodes wins.
var strategies = []strategy{
	{"direct", extractDirect},
	{"json_fence", extractJSONFence},
	{"generic_fence", extractGenericFence},
	{"braces", extractBraces},
}

// ParseAnalysis decodes a structured analysis from a raw model response.
// When no strategy succeeds it returns prompts.FallbackAnalysis() and false.
func ParseAnalysis(raw string) (models.Analysis, bool) {
	a, _, ok := parseAnalysis(raw)
	return a, ok
}

// parseAnalysis also reports which strategy succeeded.
func parseAnalysis(raw string) (models.Analysis, string, bool) {
	for _, s := range strategies {
		candidate, ok := s.extract(raw)
		if !ok {
			continue
		}
		if a, err := decodeAnalysis(candidate); err == nil {
			return a, s.name, true
		}
	}
	return prompts.FallbackAnalysis(), "", false
}

func extractDirect(raw string) (string, bool) {
	return strings.TrimSpace(raw), true
}

func extractJSONFence(raw string) (string, bool) {
	return between(raw, "```json", "```")
}

func extractGenericFence(raw string) (string, bool) {
	return between(raw, "```", "```")
}

func extractBraces(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// between returns the trimmed text after the first open marker up to the
// next close marker.
func between(raw, open, close string) (string, bool) {
	i := strings.Index(raw, open)
	if i < 0 {
		return "", false
	}
	rest := raw[i+len(open):]
	j := strings.Index(rest, close)
	if j <= 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:j]), true
}

// analysisJSON is the wire shape requested by prompts.Analysis.
type analysisJSON struct {
	Title           flexString `json:"title"`
	Summary         flexString `json:"summary"`
	Tags            stringList `json:"tags"`
	SuggestedFolder flexString `json:"suggested_folder"`
	Connections     stringList `json:"connections"`
	Entities        stringList `json:"entities"`
}

func decodeAnalysis(candidate string) (models.Analysis, error) {
	if !strings.HasPrefix(candidate, "{") {
		return models.Analysis{}, fmt.Errorf("not a JSON object")
	}
	var raw analysisJSON
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return models.Analysis{}, err
	}
	return models.Analysis{
		Title:           strings.TrimSpace(string(raw.Title)),
		Summary:         strings.TrimSpace(string(raw.Summary)),
		Tags:            models.CompactStrings(raw.Tags),
		SuggestedFolder: strings.TrimSpace(string(raw.SuggestedFolder)),
		Connections:     models.CompactStrings(raw.Connections),
		Entities:        models.CompactStrings(raw.Entities),
	}, nil
}

// flexString accepts a JSON string, number, bool or null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexString(scalarString(v))
	return nil
}

// stringList accepts a JSON list or a single string. A single string is
// split on commas.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*l = nil
	case string:
		*l = strings.Split(t, ",")
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, scalarString(item))
		}
		*l = out
	default:
		*l = []string{scalarString(t)}
	}
	return nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64, bool:
		return fmt.Sprint(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// ParseTags splits a comma-separated tag response, strips '#' and caps the result.
func ParseTags(raw string, maxTags int) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(p), "#"))
		if t == "" {
			continue
		}
		tags = append(tags, t)
		if maxTags > 0 && len(tags) == maxTags {
			break
		}
	}
	return tags
}

// ParseFolder trims whitespace and surrounding quotes from a folder response.
func ParseFolder(raw string) string {
	return strings.Trim(strings.TrimSpace(raw), `"'`)
}

// ParseConnections decodes a JSON array, falling back to one entry per
// non-empty line with list bullets removed.
func ParseConnections(raw string) []string {
	raw = strings.TrimSpace(raw)

	var list []any
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, scalarString(item))
		}
		return models.CompactStrings(out)
	}

	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return models.CompactStrings(out)
}
