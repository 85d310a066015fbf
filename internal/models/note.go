package models

// NoteDocument is a rendered note ready for persistence.
type NoteDocument struct {
	Text         string
	FilenameStem string
}

// RelatedNote is a vault note matched by the note finder.
type RelatedNote struct {
	Title string   `json:"title"`
	Path  string   `json:"path"`
	Tags  []string `json:"tags,omitempty"`
	Score float64  `json:"score,omitempty"`
}

// SavedNote describes the outcome of one pipeline run.
type SavedNote struct {
	Path        string        `json:"path"`
	Attachments []string      `json:"attachments,omitempty"`
	Analysis    Analysis      `json:"analysis"`
	Related     []RelatedNote `json:"related,omitempty"`
	Preview     string        `json:"preview"`
}
