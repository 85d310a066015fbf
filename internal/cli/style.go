package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/vaultbot/internal/models"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) boxStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Status).
		Padding(0, 1)
}

// printSaved renders the confirmation preview of a saved note, followed by
// attachments and related notes.
func printSaved(w io.Writer, saved *models.SavedNote) {
	t := defaultTheme
	fmt.Fprintln(w, t.boxStyle().Render(strings.TrimRight(saved.Preview, "\n")))

	if len(saved.Attachments) > 0 {
		fmt.Fprintln(w, t.hintStyle().Render("Attachments: "+strings.Join(saved.Attachments, ", ")))
	}
	if len(saved.Related) > 0 {
		fmt.Fprintln(w, t.statusStyle().Render("Related notes:"))
		for _, r := range saved.Related {
			fmt.Fprintf(w, "  • %s (%s, %.1f)\n", r.Title, r.Path, r.Score)
		}
	}
}

// printNotes lists finder results one per line.
func printNotes(w io.Writer, notes []models.RelatedNote) {
	if len(notes) == 0 {
		fmt.Fprintln(w, "No notes found")
		return
	}
	for _, n := range notes {
		line := fmt.Sprintf("%s  %s", n.Title, defaultTheme.hintStyle().Render(n.Path))
		if n.Score > 0 {
			line += fmt.Sprintf("  [%.1f]", n.Score)
		}
		if len(n.Tags) > 0 {
			line += "  #" + strings.Join(n.Tags, " #")
		}
		fmt.Fprintln(w, line)
	}
}
