// Package parser extracts front matter, titles and tags from vault notes.
package parser

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MarkdownDoc represents a parsed Markdown note.
type MarkdownDoc struct {
	// Frontmatter metadata (from YAML)
	Frontmatter map[string]any

	// Title from the first h1, then frontmatter
	Title string

	// Content after the frontmatter
	Content string

	// Tags from frontmatter and inline hashtags, deduplicated in order of appearance
	Tags []string
}

var (
	h1Regex        = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	inlineTagRegex = regexp.MustCompile(`(?:^|[^\w&/#])#([\p{L}\p{N}_][\p{L}\p{N}_/-]*)`)
)

// ParseMarkdown parses a note. Malformed frontmatter is ignored.
func ParseMarkdown(content string) *MarkdownDoc {
	doc := &MarkdownDoc{
		Frontmatter: make(map[string]any),
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	remaining := content
	if strings.HasPrefix(content, "---\n") {
		endIdx := strings.Index(content[4:], "\n---")
		if endIdx >= 0 {
			frontmatterYAML := content[4 : 4+endIdx]
			remaining = strings.TrimPrefix(content[4+endIdx+4:], "\n")

			if err := yaml.Unmarshal([]byte(frontmatterYAML), &doc.Frontmatter); err != nil || doc.Frontmatter == nil {
				doc.Frontmatter = make(map[string]any)
			}
		}
	}

	doc.Content = remaining
	doc.Title = extractTitle(doc.Frontmatter, remaining)
	doc.Tags = extractTags(doc.Frontmatter, remaining)
	return doc
}

// extractTitle gets the title from the first h1 or frontmatter.
func extractTitle(fm map[string]any, content string) string {
	if match := h1Regex.FindStringSubmatch(content); len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	if title, ok := fm["title"].(string); ok && title != "" {
		return strings.TrimSpace(title)
	}
	return ""
}

func extractTags(fm map[string]any, content string) []string {
	var tags []string
	seen := make(map[string]bool)
	add := func(t string) {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		tags = append(tags, t)
	}

	switch v := fm["tags"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			add(s)
		}
	}

	for _, match := range inlineTagRegex.FindAllStringSubmatch(content, -1) {
		add(match[1])
	}
	return tags
}

// GetFrontmatterString extracts a string from frontmatter.
func (d *MarkdownDoc) GetFrontmatterString(key string) string {
	if v, ok := d.Frontmatter[key].(string); ok {
		return v
	}
	return ""
}
