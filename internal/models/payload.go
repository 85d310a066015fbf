package models

import "time"

// ContentType tags the kind of content carried by a payload.
type ContentType string

const (
	ContentText        ContentType = "text"
	ContentTextWithURL ContentType = "text_with_url"
	ContentArticle     ContentType = "article"
	ContentPhoto       ContentType = "photo"
	ContentDocument    ContentType = "document"
	ContentVoice       ContentType = "voice"
)

// Valid reports whether t is one of the known content types.
func (t ContentType) Valid() bool {
	switch t {
	case ContentText, ContentTextWithURL, ContentArticle, ContentPhoto, ContentDocument, ContentVoice:
		return true
	}
	return false
}

// ContentPayload is the unit of work handed to the pipeline.
// Fields are unexported so a payload cannot change after construction.
type ContentPayload struct {
	text        string
	contentType ContentType
	ocrText     string
	urls        []string
}

// NewPayload builds a payload. An empty content type defaults to text.
func NewPayload(text string, contentType ContentType, ocrText string, urls []string) ContentPayload {
	if contentType == "" {
		contentType = ContentText
	}
	return ContentPayload{
		text:        text,
		contentType: contentType,
		ocrText:     ocrText,
		urls:        CloneStrings(urls),
	}
}

func (p ContentPayload) Text() string             { return p.text }
func (p ContentPayload) ContentType() ContentType { return p.contentType }
func (p ContentPayload) OCRText() string          { return p.ocrText }
func (p ContentPayload) URLs() []string           { return CloneStrings(p.urls) }

// DeliveryMetadata describes how and when a message arrived.
type DeliveryMetadata struct {
	Timestamp  time.Time
	Source     string
	SourceType ContentType
	UserID     string
	Username   string

	HasMedia         bool
	MediaType        string
	MediaAttachments []string
	HasOCR           bool
	OCRText          string
	ArticleURL       string
}

// ArticleResult is returned by an article fetcher.
type ArticleResult struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Text        string     `json:"text"`
	Summary     string     `json:"summary"`
	Author      string     `json:"author,omitempty"`
	PublishDate *time.Time `json:"publish_date,omitempty"`
	Success     bool       `json:"success"`
	Error       string     `json:"error,omitempty"`
}

// OCRResult is returned by an OCR engine.
type OCRResult struct {
	Text       string  `json:"ocr_text"`
	HasText    bool    `json:"has_text"`
	Confidence float64 `json:"confidence"`
}
