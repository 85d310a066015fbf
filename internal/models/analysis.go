// Package models defines the data structures shared by the vaultbot pipeline.
package models

// Default values used when an analysis field is missing or empty.
const (
	DefaultTitle   = "Untitled Note"
	DefaultFolder  = "Inbox"
	FallbackSource = "fallback"
)

// FallbackTags are attached to notes whose analysis could not be completed.
var FallbackTags = []string{"inbox", "unprocessed"}

// Analysis is the structured suggestion set produced for one piece of content.
type Analysis struct {
	Title           string   `json:"title"`
	Summary         string   `json:"summary"`
	Tags            []string `json:"tags"`
	SuggestedFolder string   `json:"suggested_folder"`
	Connections     []string `json:"connections"`
	Entities        []string `json:"entities"`

	// ProviderName identifies the backend that produced the analysis,
	// or "fallback" when the analysis was synthesized locally.
	ProviderName string `json:"ai_provider"`
	// Succeeded is false only for the fallback path.
	Succeeded bool `json:"analysis_successful"`
}

// Clone returns a deep copy so callers can adjust a result without
// touching the original slices.
func (a Analysis) Clone() Analysis {
	out := a
	out.Tags = CloneStrings(a.Tags)
	out.Connections = CloneStrings(a.Connections)
	out.Entities = CloneStrings(a.Entities)
	return out
}

// AnalysisContext is the ambient input assembled fresh for each request.
type AnalysisContext struct {
	Source          string
	ContentType     ContentType
	ExistingFolders []string
	ExistingNotes   []NoteSummary
}

// NoteSummary describes an existing note for connection finding.
type NoteSummary struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}
