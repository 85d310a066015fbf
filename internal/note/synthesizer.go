// Package note renders analyzed content into vault documents.
package note

import (
	"fmt"
	"strings"
	"time"

	"github.com/raphaelgruber/vaultbot/internal/config"
	"github.com/raphaelgruber/vaultbot/internal/models"
	"gopkg.in/yaml.v3"
)

const (
	createdLayout   = "2006-01-02T15:04:05"
	receivedLayout  = "2006-01-02 15:04:05"
	timestampLayout = "2006-01-02-150405"
	dateLayout      = "2006-01-02"
)

// defaultSource labels notes whose delivery metadata has no source.
const defaultSource = "chat"

// Synthesizer renders notes. It holds only configuration and is safe for
// concurrent use.
type Synthesizer struct {
	strategy  string
	tagFormat string
}

// NewSynthesizer creates a synthesizer. Unknown values fall back to the
// date_title strategy and block tags.
func NewSynthesizer(strategy, tagFormat string) *Synthesizer {
	switch strategy {
	case config.FilenameTimestamp, config.FilenameTitle, config.FilenameDateTitle:
	default:
		strategy = config.FilenameDateTitle
	}
	if tagFormat != config.TagFormatInline {
		tagFormat = config.TagFormatBlock
	}
	return &Synthesizer{strategy: strategy, tagFormat: tagFormat}
}

// Synthesize renders the document and derives its file name stem.
// Identical inputs always produce identical output.
func (s *Synthesizer) Synthesize(a models.Analysis, content string, meta models.DeliveryMetadata) models.NoteDocument {
	blocks := []string{
		s.frontMatter(a, meta),
		"# " + strings.Join(strings.Fields(a.Title), " "),
	}
	if s.tagFormat == config.TagFormatInline && len(a.Tags) > 0 {
		blocks = append(blocks, hashtags(a.Tags, " "))
	}
	if c := strings.TrimSpace(content); c != "" {
		blocks = append(blocks, c)
	}
	if len(meta.MediaAttachments) > 0 {
		blocks = append(blocks, attachments(meta.MediaAttachments))
	}
	if showOCR(content, meta) {
		blocks = append(blocks, "## Extracted Text (OCR)\n\n"+strings.TrimSpace(meta.OCRText))
	}
	if a.Succeeded {
		if section := analysisSection(a); section != "" {
			blocks = append(blocks, "---", section)
		}
	}
	blocks = append(blocks, "---", footer(meta))

	return models.NoteDocument{
		Text:         strings.Join(blocks, "\n\n") + "\n",
		FilenameStem: s.Filename(a.Title, meta.Timestamp),
	}
}

// Filename derives the file name stem for title and timestamp.
func (s *Synthesizer) Filename(title string, ts time.Time) string {
	switch s.strategy {
	case config.FilenameTimestamp:
		return ts.Format(timestampLayout)
	case config.FilenameTitle:
		return Slug(title)
	default:
		return ts.Format(dateLayout) + " - " + Slug(title)
	}
}

func (s *Synthesizer) frontMatter(a models.Analysis, meta models.DeliveryMetadata) string {
	var b strings.Builder
	b.WriteString("---\n")

	field := func(key, value string) {
		fmt.Fprintf(&b, "%s: %s\n", key, value)
	}

	field("created", meta.Timestamp.Format(createdLayout))
	field("source", scalar(sourceOrDefault(meta.Source)))
	field("source_type", scalar(string(sourceType(meta))))
	if meta.UserID != "" {
		field("user_id", scalar(meta.UserID))
	}
	if meta.Username != "" {
		field("username", scalar(meta.Username))
	}
	if s.tagFormat == config.TagFormatBlock && len(a.Tags) > 0 {
		b.WriteString("tags:\n")
		for _, t := range a.Tags {
			fmt.Fprintf(&b, "  - %s\n", scalar(t))
		}
	}
	if a.SuggestedFolder != "" {
		field("suggested_folder", scalar(a.SuggestedFolder))
	}
	if a.Succeeded {
		field("ai_analyzed", "true")
		field("ai_provider", scalar(a.ProviderName))
	}
	if meta.HasMedia {
		field("has_media", "true")
	}
	if meta.MediaType != "" {
		field("media_type", scalar(meta.MediaType))
	}
	if meta.HasOCR {
		field("has_ocr", "true")
	}
	if meta.ArticleURL != "" {
		field("article_url", scalar(meta.ArticleURL))
	}

	b.WriteString("---")
	return b.String()
}

// scalar renders s as a YAML scalar, quoting only when needed.
func scalar(s string) string {
	out, err := yaml.Marshal(s)
	if err != nil {
		return s
	}
	return strings.TrimSuffix(string(out), "\n")
}

func hashtags(tags []string, sep string) string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, "#"+strings.ReplaceAll(strings.TrimSpace(t), " ", "-"))
	}
	return strings.Join(out, sep)
}

func attachments(paths []string) string {
	lines := []string{"## Attachments", ""}
	for _, p := range paths {
		lines = append(lines, "![["+p+"]]")
	}
	return strings.Join(lines, "\n")
}

// showOCR reports whether the OCR section adds anything to the note: the
// text must not already appear in the body.
func showOCR(content string, meta models.DeliveryMetadata) bool {
	ocr := strings.TrimSpace(meta.OCRText)
	if ocr == "" {
		return false
	}
	st := sourceType(meta)
	if st != models.ContentPhoto && st != models.ContentDocument {
		return false
	}
	return !strings.Contains(content, ocr)
}

func analysisSection(a models.Analysis) string {
	var parts []string
	if a.Summary != "" {
		parts = append(parts, "**Summary**: "+a.Summary)
	}
	if len(a.Entities) > 0 {
		parts = append(parts, "**Key Entities**: "+strings.Join(a.Entities, ", "))
	}
	if len(a.Connections) > 0 {
		lines := []string{"**Suggested Connections**:"}
		for _, c := range a.Connections {
			lines = append(lines, "- "+c)
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	if len(parts) == 0 {
		return ""
	}
	return "## AI Analysis\n\n" + strings.Join(parts, "\n\n")
}

func footer(meta models.DeliveryMetadata) string {
	return fmt.Sprintf("**Source**: %s (%s)\n**Received**: %s",
		sourceOrDefault(meta.Source), sourceType(meta), meta.Timestamp.Format(receivedLayout))
}

func sourceOrDefault(s string) string {
	if s == "" {
		return defaultSource
	}
	return s
}

func sourceType(meta models.DeliveryMetadata) models.ContentType {
	if meta.SourceType == "" {
		return models.ContentText
	}
	return meta.SourceType
}
