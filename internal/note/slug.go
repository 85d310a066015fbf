package note

import (
	"regexp"
	"strings"
)

const (
	maxSlugLen  = 60
	defaultSlug = "untitled"
)

var (
	slugStrip   = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s-]`)
	slugSpaces  = regexp.MustCompile(`[\s_]+`)
	slugHyphens = regexp.MustCompile(`-+`)
)

// Slug turns a title into a lowercase, hyphen-separated file name fragment
// of at most 60 characters. It returns "untitled" when nothing is left.
func Slug(title string) string {
	s := strings.ToLower(title)
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugHyphens.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if r := []rune(s); len(r) > maxSlugLen {
		s = strings.TrimRight(string(r[:maxSlugLen]), "-")
	}
	if s == "" {
		return defaultSlug
	}
	return s
}
