package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/raphaelgruber/vaultbot/internal/analyzer"
	"github.com/raphaelgruber/vaultbot/internal/config"
	"github.com/raphaelgruber/vaultbot/internal/extract"
	"github.com/raphaelgruber/vaultbot/internal/models"
	"github.com/raphaelgruber/vaultbot/internal/note"
	"github.com/raphaelgruber/vaultbot/internal/vault"
)

const (
	noTextPlaceholder = "[Image with no text detected]"
	articleSeparator  = "\n\n---\n\n"
	maxContextNotes   = 50
)

// ErrEmptyMessage is returned for a message with neither text nor media.
var ErrEmptyMessage = errors.New("message has no text or media")

// Media is a binary attachment delivered with a message.
type Media struct {
	// Kind is photo, document or voice.
	Kind     models.ContentType
	Filename string
	Data     []byte
	Duration time.Duration
}

// Message is one inbound unit of content, independent of transport.
type Message struct {
	Text      string
	Links     []extract.LinkEntity
	Source    string
	UserID    string
	Username  string
	Timestamp time.Time
	// Subfolder below the incoming folder; empty saves directly into it.
	Subfolder string
	Media     *Media
}

// Pipeline turns messages into saved notes: extract, analyze, render,
// persist. It is safe for concurrent use.
type Pipeline struct {
	analyzer *analyzer.Analyzer
	synth    *note.Synthesizer
	writer   *vault.Writer
	finder   *vault.Finder
	fetcher  extract.Fetcher
	ocr      extract.OCR
	cfg      config.PipelineConfig
	depth    int
	now      func() time.Time
	logger   *slog.Logger
}

// PipelineDeps are the collaborators of a Pipeline. Fetcher and OCR are
// optional.
type PipelineDeps struct {
	Analyzer    *analyzer.Analyzer
	Synthesizer *note.Synthesizer
	Writer      *vault.Writer
	Finder      *vault.Finder
	Fetcher     extract.Fetcher
	OCR         extract.OCR
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(cfg config.Config, deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		analyzer: deps.Analyzer,
		synth:    deps.Synthesizer,
		writer:   deps.Writer,
		finder:   deps.Finder,
		fetcher:  deps.Fetcher,
		ocr:      deps.OCR,
		cfg:      cfg.Pipeline,
		depth:    cfg.Vault.FolderDepth,
		now:      deps.Now,
		logger:   deps.Logger,
	}
	if p.synth == nil {
		p.synth = note.NewSynthesizer(cfg.Vault.FilenameStrategy, cfg.Vault.TagFormat)
	}
	if p.finder == nil && p.writer != nil {
		p.finder = vault.NewFinder(p.writer.Root(), deps.Logger)
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// capture is the state of one message moving through the pipeline.
type capture struct {
	content    string // analyzed
	body       string // rendered as the note body
	ctype      models.ContentType
	titleHint  string
	meta       models.DeliveryMetadata
	previewExt []string
}

// Capture processes msg into a note. Attachments are persisted before the
// note, so they survive a later failure. Analysis failures only surface
// when fallback is disabled.
func (p *Pipeline) Capture(ctx context.Context, msg Message) (models.SavedNote, error) {
	if strings.TrimSpace(msg.Text) == "" && msg.Media == nil {
		return models.SavedNote{}, ErrEmptyMessage
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = p.now()
	}
	if msg.Source == "" {
		msg.Source = p.cfg.Source
	}

	c := &capture{meta: models.DeliveryMetadata{
		Timestamp: msg.Timestamp,
		Source:    msg.Source,
		UserID:    msg.UserID,
		Username:  msg.Username,
	}}

	var err error
	switch {
	case msg.Media == nil:
		p.prepareText(ctx, msg, c)
	case msg.Media.Kind == models.ContentVoice:
		err = p.prepareVoice(msg, c)
	default:
		err = p.prepareImage(ctx, msg, c)
	}
	if err != nil {
		return models.SavedNote{}, err
	}
	c.meta.SourceType = metaType(c)

	actx := models.AnalysisContext{
		Source:          msg.Source,
		ContentType:     c.ctype,
		ExistingFolders: p.writer.ListFolders(p.depth),
	}
	if p.cfg.FindRelated > 0 {
		notes, err := p.finder.Summaries(ctx, maxContextNotes)
		if err != nil {
			p.logger.Warn("could not list vault notes", "error", err)
		}
		actx.ExistingNotes = notes
	}

	analysis, err := p.analyzer.Analyze(ctx, c.content, actx)
	if err != nil {
		return models.SavedNote{}, fmt.Errorf("analyze: %w", err)
	}
	if c.titleHint != "" {
		analysis.Title = analyzer.SanitizeTitle(c.titleHint)
	}

	doc := p.synth.Synthesize(analysis, c.body, c.meta)
	path, err := p.writer.PersistDocument(doc.Text, doc.FilenameStem, msg.Subfolder)
	if err != nil {
		return models.SavedNote{}, fmt.Errorf("save note: %w", err)
	}
	rel := p.writer.Rel(path)

	saved := models.SavedNote{
		Path:        rel,
		Attachments: models.CloneStrings(c.meta.MediaAttachments),
		Analysis:    analysis,
		Related:     p.related(ctx, analysis, rel),
	}
	saved.Preview = note.Preview(analysis, rel, c.previewExt...)

	p.logger.Info("message captured",
		"path", rel,
		"content_type", c.ctype,
		"provider", analysis.ProviderName,
		"ai_analyzed", analysis.Succeeded)
	return saved, nil
}

// prepareText handles plain text, optionally enriched with the first
// linked article.
func (p *Pipeline) prepareText(ctx context.Context, msg Message, c *capture) {
	text := extract.ApplyLinkEntities(msg.Text, msg.Links)
	urls := extract.MergeURLs(extract.URLs(msg.Text), extract.EntityURLs(msg.Links)...)

	c.content, c.body, c.ctype = text, text, models.ContentText
	if len(urls) == 0 {
		return
	}

	c.ctype = models.ContentTextWithURL
	p.logger.Debug("found urls in message", "count", len(urls))
	if !p.cfg.FetchArticles || p.fetcher == nil {
		return
	}

	article := p.fetcher.Fetch(ctx, urls[0])
	if !article.Success {
		return
	}
	combined := text + articleSeparator + extract.FormatArticle(article, true)
	c.content, c.body = combined, combined
	c.ctype = models.ContentArticle
	c.titleHint = article.Title
	c.meta.ArticleURL = urls[0]
}

// prepareImage saves the attachment, then runs OCR on the saved file.
func (p *Pipeline) prepareImage(ctx context.Context, msg Message, c *capture) error {
	kind := msg.Media.Kind
	if kind != models.ContentDocument {
		kind = models.ContentPhoto
	}
	rel, err := p.saveMedia(msg, kind)
	if err != nil {
		return err
	}

	caption := strings.TrimSpace(msg.Text)
	var ocr models.OCRResult
	if p.ocr != nil {
		ocr, err = p.ocr.Extract(ctx, filepath.Join(p.writer.Root(), filepath.FromSlash(rel)))
		if err != nil {
			p.logger.Warn("ocr failed", "path", rel, "error", err)
		}
	}

	c.ctype = kind
	c.meta.HasMedia = true
	c.meta.MediaType = string(kind)
	c.meta.MediaAttachments = []string{rel}

	switch {
	case ocr.HasText && caption != "":
		c.content = caption + "\n\n## Extracted Text\n\n" + ocr.Text
	case ocr.HasText:
		c.content = ocr.Text
	case caption != "":
		c.content = caption
	default:
		c.content = noTextPlaceholder
	}

	c.body = caption
	if caption == "" && !ocr.HasText {
		c.body = noTextPlaceholder
	}
	if ocr.HasText {
		c.meta.HasOCR = true
		c.meta.OCRText = ocr.Text
		c.previewExt = append(c.previewExt, fmt.Sprintf("OCR: %d characters extracted", len([]rune(ocr.Text))))
	}
	return nil
}

// prepareVoice saves the recording and stands in a placeholder for the
// transcript.
func (p *Pipeline) prepareVoice(msg Message, c *capture) error {
	rel, err := p.saveMedia(msg, models.ContentVoice)
	if err != nil {
		return err
	}

	seconds := int(msg.Media.Duration.Round(time.Second) / time.Second)
	placeholder := fmt.Sprintf("[Voice message - %d seconds]\n\nVoice transcription not yet implemented.", seconds)
	if caption := strings.TrimSpace(msg.Text); caption != "" {
		placeholder = caption + "\n\n" + placeholder
	}

	c.content, c.body = placeholder, placeholder
	c.ctype = models.ContentVoice
	c.titleHint = "Voice Note - " + msg.Timestamp.Format("2006-01-02 15:04")
	c.meta.HasMedia = true
	c.meta.MediaType = string(models.ContentVoice)
	c.meta.MediaAttachments = []string{rel}
	c.previewExt = append(c.previewExt, "Note: Transcription not yet implemented")
	return nil
}

func (p *Pipeline) saveMedia(msg Message, kind models.ContentType) (string, error) {
	name := MediaFilename(msg.Media.Filename, kind, msg.Timestamp)
	rel, err := p.writer.PersistBinary(msg.Media.Data, name)
	if err != nil {
		return "", fmt.Errorf("save attachment: %w", err)
	}
	return rel, nil
}

func (p *Pipeline) related(ctx context.Context, a models.Analysis, self string) []models.RelatedNote {
	if p.cfg.FindRelated <= 0 {
		return nil
	}
	found, err := p.finder.Related(ctx, a.Tags, a.Entities, p.cfg.FindRelated+1)
	if err != nil {
		p.logger.Warn("could not find related notes", "error", err)
		return nil
	}
	out := make([]models.RelatedNote, 0, len(found))
	for _, r := range found {
		if r.Path == self {
			continue
		}
		out = append(out, r)
	}
	if len(out) > p.cfg.FindRelated {
		out = out[:p.cfg.FindRelated]
	}
	return out
}

// metaType is the source type recorded in front matter. An unreachable
// article is stored as plain text.
func metaType(c *capture) models.ContentType {
	if c.ctype == models.ContentTextWithURL {
		return models.ContentText
	}
	return c.ctype
}

var defaultExt = map[models.ContentType]string{
	models.ContentPhoto: ".jpg",
	models.ContentVoice: ".ogg",
}

// MediaFilename names an attachment "<kind>_<YYYYMMDD_HHMMSS>[_<stem>]<ext>".
// The stem of original is kept, capped at 30 characters.
func MediaFilename(original string, kind models.ContentType, ts time.Time) string {
	stamp := ts.Format("20060102_150405")
	original = filepath.Base(filepath.Clean("/" + original))
	if original == "/" || original == "." {
		original = ""
	}
	if original == "" {
		return fmt.Sprintf("%s_%s%s", kind, stamp, defaultExt[kind])
	}

	ext := filepath.Ext(original)
	stem := []rune(strings.TrimSuffix(original, ext))
	if len(stem) > 30 {
		stem = stem[:30]
	}
	return fmt.Sprintf("%s_%s_%s%s", kind, stamp, string(stem), ext)
}
