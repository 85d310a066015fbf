package analyzer

import (
	"strings"

	"github.com/raphaelgruber/vaultbot/internal/models"
)

const maxTitleLen = 100

var (
	titleReplacer  = strings.NewReplacer("/", "-", `\`, "-", ":", "-", "*", "-", "?", "-", `"`, "-", "<", "-", ">", "-", "|", "-")
	folderReplacer = strings.NewReplacer(`\`, "-", ":", "-", "*", "-", "?", "-", `"`, "-", "<", "-", ">", "-", "|", "-")
)

// Validate fills defaults for empty fields and sanitizes title, tags and
// folder. The result always has a non-empty title and folder and non-nil
// slices. maxTags <= 0 leaves tags uncapped.
func Validate(a models.Analysis, maxTags int) models.Analysis {
	out := a.Clone()

	out.Title = SanitizeTitle(out.Title)
	out.Summary = strings.TrimSpace(out.Summary)
	out.Tags = models.CompactStrings(out.Tags)
	if maxTags > 0 && len(out.Tags) > maxTags {
		out.Tags = out.Tags[:maxTags]
	}
	out.SuggestedFolder = SanitizeFolder(out.SuggestedFolder)
	out.Connections = models.CompactStrings(out.Connections)
	out.Entities = models.CompactStrings(out.Entities)

	return out
}

// SanitizeTitle folds the title onto one line, replaces characters that are
// invalid in file names, strips edge dots and spaces and caps the length.
func SanitizeTitle(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return models.DefaultTitle
	}

	s := titleReplacer.Replace(title)
	s = strings.Trim(s, ". ")

	if r := []rune(s); len(r) > maxTitleLen {
		s = strings.TrimSpace(string(r[:maxTitleLen]))
	}
	if s == "" {
		return models.DefaultTitle
	}
	return s
}

// SanitizeFolder trims edge slashes and replaces characters that are invalid
// in paths.
func SanitizeFolder(folder string) string {
	if strings.TrimSpace(folder) == "" {
		return models.DefaultFolder
	}

	s := strings.Trim(strings.TrimSpace(folder), "/")
	s = folderReplacer.Replace(s)
	s = strings.Trim(strings.TrimSpace(s), "/")

	if s == "" {
		return models.DefaultFolder
	}
	return s
}
