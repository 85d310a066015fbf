package note

import (
	"strings"

	"github.com/raphaelgruber/vaultbot/internal/models"
)

// Preview renders the plain-text confirmation sent back after a note is
// saved. extra lines are appended before the availability notice.
func Preview(a models.Analysis, path string, extra ...string) string {
	lines := []string{"✓ Saved to vault", ""}

	lines = append(lines, "Title: "+a.Title)
	if a.SuggestedFolder != "" {
		lines = append(lines, "Folder: "+a.SuggestedFolder)
	}
	if len(a.Tags) > 0 {
		lines = append(lines, "Tags: "+hashtags(a.Tags, ", "))
	}
	if path != "" {
		lines = append(lines, "Path: "+path)
	}
	if a.Summary != "" {
		lines = append(lines, "", "Summary: "+a.Summary)
	}
	if len(a.Connections) > 0 {
		lines = append(lines, "", "Related to: "+a.Connections[0])
	}
	for _, e := range extra {
		if e != "" {
			lines = append(lines, "", e)
		}
	}
	if !a.Succeeded {
		lines = append(lines, "", "Note: AI analysis was unavailable")
	}
	return strings.Join(lines, "\n")
}
