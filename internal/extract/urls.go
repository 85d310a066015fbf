// Package extract pulls extra content out of incoming messages: URLs,
// web articles and text in images.
package extract

import (
	"regexp"
	"sort"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://(?:www\.)?[-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b(?:[-a-zA-Z0-9()@:%_+.~#?&/=]*)`)

// URLs returns the http(s) URLs in text in order of appearance, without
// duplicates.
func URLs(text string) []string {
	return dedupe(urlPattern.FindAllString(text, -1))
}

// MergeURLs appends extra URLs to base, keeping first occurrences only.
func MergeURLs(base []string, extra ...string) []string {
	return dedupe(append(append([]string{}, base...), extra...))
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// LinkEntity marks a span of message text that links to URL. Offset and
// Length count characters (runes).
type LinkEntity struct {
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	URL    string `json:"url"`
}

// ApplyLinkEntities rewrites every entity span into a Markdown link
// "[span](url)". Spans out of range or overlapping an earlier one are ignored.
func ApplyLinkEntities(text string, entities []LinkEntity) string {
	if len(entities) == 0 {
		return text
	}
	runes := []rune(text)

	valid := make([]LinkEntity, 0, len(entities))
	for _, e := range entities {
		if e.URL == "" || e.Offset < 0 || e.Length <= 0 || e.Offset+e.Length > len(runes) {
			continue
		}
		valid = append(valid, e)
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Offset < valid[j].Offset })

	var b strings.Builder
	pos := 0
	for _, e := range valid {
		if e.Offset < pos {
			continue
		}
		b.WriteString(string(runes[pos:e.Offset]))
		b.WriteString("[" + string(runes[e.Offset:e.Offset+e.Length]) + "](" + e.URL + ")")
		pos = e.Offset + e.Length
	}
	b.WriteString(string(runes[pos:]))
	return b.String()
}

// EntityURLs returns the URLs of entities.
func EntityURLs(entities []LinkEntity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.URL)
	}
	return out
}
