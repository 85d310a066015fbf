package note

import (
	"strings"
	"testing"
	"time"

	"github.com/raphaelgruber/vaultbot/internal/config"
	"github.com/raphaelgruber/vaultbot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var received = time.Date(2025, 1, 15, 14, 20, 30, 0, time.UTC)

func successAnalysis() models.Analysis {
	return models.Analysis{
		Title:           "Distributed Caching Idea",
		Summary:         "Caching across nodes.",
		Tags:            []string{"distributed-systems", "caching"},
		SuggestedFolder: "Knowledge/Tech",
		Connections:     []string{"scaling", "consistency"},
		Entities:        []string{"Redis", "Memcached"},
		ProviderName:    "claude",
		Succeeded:       true,
	}
}

func textMeta() models.DeliveryMetadata {
	return models.DeliveryMetadata{
		Timestamp:  received,
		Source:     "telegram",
		SourceType: models.ContentText,
		UserID:     "42",
		Username:   "alice",
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello, World! / Test", "hello-world-test"},
		{"!!!???***", "untitled"},
		{"", "untitled"},
		{"snake_case  and   spaces", "snake-case-and-spaces"},
		{"--edge--hyphens--", "edge-hyphens"},
		{"Café Über", "café-über"},
		{"Cafe\u0301 notes", "cafe\u0301-notes"},
		{"नमस्ते दुनिया", "नमस्ते-दुनिया"},
		{strings.Repeat("word ", 20), "word-word-word-word-word-word-word-word-word-word-word-word"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Slug(tt.in)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len([]rune(got)), 60)
			assert.False(t, strings.HasSuffix(got, "-"))
		})
	}
}

func TestFilenameStrategies(t *testing.T) {
	tests := []struct {
		strategy string
		want     string
	}{
		{config.FilenameTimestamp, "2025-01-15-142030"},
		{config.FilenameTitle, "hello-world-test"},
		{config.FilenameDateTitle, "2025-01-15 - hello-world-test"},
		{"bogus", "2025-01-15 - hello-world-test"},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			s := NewSynthesizer(tt.strategy, config.TagFormatBlock)
			assert.Equal(t, tt.want, s.Filename("Hello, World! / Test", received))
		})
	}
}

func TestSynthesizeFullDocument(t *testing.T) {
	s := NewSynthesizer(config.FilenameDateTitle, config.TagFormatBlock)
	doc := s.Synthesize(successAnalysis(), "Just had a great idea about distributed caching", textMeta())

	want := `---
created: 2025-01-15T14:20:30
source: telegram
source_type: text
user_id: "42"
username: alice
tags:
  - distributed-systems
  - caching
suggested_folder: Knowledge/Tech
ai_analyzed: true
ai_provider: claude
---

# Distributed Caching Idea

Just had a great idea about distributed caching

---

## AI Analysis

**Summary**: Caching across nodes.

**Key Entities**: Redis, Memcached

**Suggested Connections**:
- scaling
- consistency

---

**Source**: telegram (text)
**Received**: 2025-01-15 14:20:30
`
	assert.Equal(t, want, doc.Text)
	assert.Equal(t, "2025-01-15 - distributed-caching-idea", doc.FilenameStem)
	assert.Equal(t, 1, countHeadings(doc.Text))
}

func countHeadings(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "# ") {
			n++
		}
	}
	return n
}

func TestSynthesizeMultilineTitle(t *testing.T) {
	s := NewSynthesizer(config.FilenameDateTitle, config.TagFormatBlock)
	a := successAnalysis()
	a.Title = "Caching\n# Second heading"

	doc := s.Synthesize(a, "body", textMeta())
	assert.Equal(t, 1, countHeadings(doc.Text))
	assert.Contains(t, doc.Text, "\n# Caching # Second heading\n")
}

func TestSynthesizeIsIdempotent(t *testing.T) {
	s := NewSynthesizer(config.FilenameDateTitle, config.TagFormatInline)
	a, meta := successAnalysis(), textMeta()

	first := s.Synthesize(a, "content", meta)
	second := s.Synthesize(a, "content", meta)
	assert.Equal(t, first, second)
}

func TestSynthesizeFallbackOmitsAnalysis(t *testing.T) {
	a := models.Analysis{
		Title:           "First line",
		Summary:         "Content received from telegram on 2025-01-15",
		Tags:            []string{"inbox", "unprocessed"},
		SuggestedFolder: "Inbox",
		Connections:     []string{},
		Entities:        []string{},
		ProviderName:    "fallback",
	}
	doc := NewSynthesizer(config.FilenameDateTitle, config.TagFormatBlock).Synthesize(a, "First line\nmore", textMeta())

	assert.NotContains(t, doc.Text, "## AI Analysis")
	assert.NotContains(t, doc.Text, "ai_analyzed")
	assert.NotContains(t, doc.Text, "ai_provider")
	assert.Contains(t, doc.Text, "First line\nmore")
	assert.Equal(t, 2, strings.Count(doc.Text, "\n---\n"), "only the header close and the footer rule")
}

func TestSynthesizeNoEmptySections(t *testing.T) {
	a := successAnalysis()
	a.Summary, a.Entities, a.Connections = "", []string{}, []string{}
	a.Tags = []string{}

	doc := NewSynthesizer(config.FilenameDateTitle, config.TagFormatInline).Synthesize(a, "body", models.DeliveryMetadata{Timestamp: received})

	assert.NotContains(t, doc.Text, "## AI Analysis")
	assert.NotContains(t, doc.Text, "## Attachments")
	assert.NotContains(t, doc.Text, "## Extracted Text")
	assert.NotContains(t, doc.Text, "tags:")
	assert.NotContains(t, doc.Text, "\n\n\n")
	assert.Contains(t, doc.Text, "**Source**: chat (text)")
}

func TestSynthesizeInlineTags(t *testing.T) {
	a := successAnalysis()
	a.Tags = []string{"machine learning", "go"}
	doc := NewSynthesizer(config.FilenameTitle, config.TagFormatInline).Synthesize(a, "body", textMeta())

	assert.NotContains(t, doc.Text, "tags:")
	assert.Contains(t, doc.Text, "# Distributed Caching Idea\n\n#machine-learning #go\n\nbody")
}

func TestSynthesizeMediaAndOCR(t *testing.T) {
	meta := textMeta()
	meta.SourceType = models.ContentPhoto
	meta.HasMedia = true
	meta.MediaType = "photo"
	meta.MediaAttachments = []string{"_attachments/photo_1.jpg"}
	meta.HasOCR = true
	meta.OCRText = "WHITEBOARD TEXT"

	doc := NewSynthesizer(config.FilenameDateTitle, config.TagFormatBlock).Synthesize(successAnalysis(), "Caption", meta)

	assert.Contains(t, doc.Text, "has_media: true\nmedia_type: photo\nhas_ocr: true\n")
	assert.Contains(t, doc.Text, "## Attachments\n\n![[_attachments/photo_1.jpg]]")
	assert.Contains(t, doc.Text, "## Extracted Text (OCR)\n\nWHITEBOARD TEXT")
	assert.Contains(t, doc.Text, "**Source**: telegram (photo)")

	attach := strings.Index(doc.Text, "## Attachments")
	ocr := strings.Index(doc.Text, "## Extracted Text")
	ai := strings.Index(doc.Text, "## AI Analysis")
	assert.Less(t, attach, ocr)
	assert.Less(t, ocr, ai)
}

func TestSynthesizeOCRSkippedWhenNotDistinct(t *testing.T) {
	tests := []struct {
		name       string
		sourceType models.ContentType
		content    string
	}{
		{"same as content", models.ContentPhoto, "WHITEBOARD TEXT"},
		{"text message", models.ContentText, "Caption"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := textMeta()
			meta.SourceType = tt.sourceType
			meta.OCRText = "WHITEBOARD TEXT"

			doc := NewSynthesizer(config.FilenameDateTitle, config.TagFormatBlock).Synthesize(successAnalysis(), tt.content, meta)
			assert.NotContains(t, doc.Text, "## Extracted Text")
		})
	}
}

func TestFrontMatterIsValidYAML(t *testing.T) {
	a := successAnalysis()
	a.SuggestedFolder = "Notes: misc"
	meta := textMeta()
	meta.ArticleURL = "https://example.com/a?b=c#d"

	doc := NewSynthesizer(config.FilenameDateTitle, config.TagFormatBlock).Synthesize(a, "body", meta)
	parts := strings.SplitN(doc.Text, "---\n", 3)
	require.Len(t, parts, 3)

	var fm map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(parts[1]), &fm))
	assert.Equal(t, "Notes: misc", fm["suggested_folder"])
	assert.Equal(t, "https://example.com/a?b=c#d", fm["article_url"])
	assert.Equal(t, "42", fm["user_id"])
	assert.Equal(t, []any{"distributed-systems", "caching"}, fm["tags"])
}

func TestPreview(t *testing.T) {
	got := Preview(successAnalysis(), "Incoming/2025-01-15 - distributed-caching-idea.md", "OCR: 120 characters extracted")

	assert.True(t, strings.HasPrefix(got, "✓ Saved to vault\n\nTitle: Distributed Caching Idea\n"))
	assert.Contains(t, got, "Folder: Knowledge/Tech")
	assert.Contains(t, got, "Tags: #distributed-systems, #caching")
	assert.Contains(t, got, "Summary: Caching across nodes.")
	assert.Contains(t, got, "Related to: scaling")
	assert.Contains(t, got, "OCR: 120 characters extracted")
	assert.NotContains(t, got, "unavailable")

	fallback := Preview(models.Analysis{Title: "x"}, "")
	assert.Contains(t, fallback, "Note: AI analysis was unavailable")
	assert.NotContains(t, fallback, "Path:")
}
