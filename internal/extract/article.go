package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/raphaelgruber/vaultbot/internal/metrics"
	"github.com/raphaelgruber/vaultbot/internal/models"
)

const (
	// DefaultSummaryChars caps SimpleSummary output.
	DefaultSummaryChars = 500
	// MaxArticleTextChars caps the article text embedded in a note.
	MaxArticleTextChars = 5000

	untitledArticle  = "Untitled Article"
	userAgent        = "Mozilla/5.0 (compatible; vaultbot/1.0)"
	maxBodyBytes     = 5 << 20
	fetchTimeout     = 10 * time.Second
	minSentenceChars = 20
	maxSentences     = 5
)

// Fetcher retrieves a web article. Failures are reported in the result,
// never as an error.
type Fetcher interface {
	Fetch(ctx context.Context, url string) models.ArticleResult
}

// HTTPFetcher downloads pages over HTTP and extracts readable text.
type HTTPFetcher struct {
	client       *http.Client
	summaryChars int
	metrics      *metrics.Collector
	logger       *slog.Logger
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithFetchMetrics records fetch timings.
func WithFetchMetrics(c *metrics.Collector) FetcherOption {
	return func(f *HTTPFetcher) { f.metrics = c }
}

// WithFetchLogger sets the logger.
func WithFetchLogger(l *slog.Logger) FetcherOption {
	return func(f *HTTPFetcher) { f.logger = l }
}

// NewHTTPFetcher creates a fetcher whose summaries are capped at
// summaryChars (DefaultSummaryChars when not positive).
func NewHTTPFetcher(summaryChars int, opts ...FetcherOption) *HTTPFetcher {
	if summaryChars <= 0 {
		summaryChars = DefaultSummaryChars
	}
	f := &HTTPFetcher{
		client:       &http.Client{Timeout: fetchTimeout},
		summaryChars: summaryChars,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url and extracts title, author, publish date and text.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) models.ArticleResult {
	start := time.Now()
	f.logger.Info("fetching article", "url", url)

	res, err := f.fetch(ctx, url)
	if err != nil {
		f.metrics.RecordFailure(metrics.OpArticleFetch)
		f.logger.Warn("article fetch failed", "url", url, "error", err)
		return models.ArticleResult{URL: url, Error: err.Error()}
	}

	f.metrics.RecordTiming(metrics.OpArticleFetch, time.Since(start))
	f.logger.Info("fetched article", "url", url, "title", res.Title, "chars", len(res.Text))
	return res
}

func (f *HTTPFetcher) fetch(ctx context.Context, url string) (models.ArticleResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.ArticleResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return models.ArticleResult{}, fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.ArticleResult{}, fmt.Errorf("get: status %d", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.ArticleResult{}, fmt.Errorf("parse html: %w", err)
	}

	page := readPage(doc)
	res := models.ArticleResult{
		URL:         url,
		Title:       page.title,
		Text:        page.text,
		Author:      page.author,
		PublishDate: page.published,
		Success:     true,
	}
	if res.Title == "" {
		res.Title = untitledArticle
	}
	res.Summary = page.description
	if res.Summary == "" {
		res.Summary = SimpleSummary(res.Text, f.summaryChars)
	}
	return res, nil
}

// page is what readPage extracts from a document.
type page struct {
	title       string
	author      string
	description string
	published   *time.Time
	text        string
}

// skipped elements never contribute article text.
var skipped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Nav: true,
	atom.Header: true, atom.Footer: true, atom.Aside: true, atom.Form: true,
	atom.Svg: true, atom.Iframe: true, atom.Template: true,
}

// blocks are the elements whose text forms one paragraph of output.
var blocks = map[atom.Atom]bool{
	atom.P: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Li: true, atom.Pre: true, atom.Blockquote: true,
}

func readPage(doc *html.Node) page {
	var p page
	var h1, ogTitle string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if p.title == "" {
					p.title = collapse(textOf(n))
				}
			case atom.H1:
				if h1 == "" {
					h1 = collapse(textOf(n))
				}
			case atom.Meta:
				key := strings.ToLower(attr(n, "property"))
				if key == "" {
					key = strings.ToLower(attr(n, "name"))
				}
				content := strings.TrimSpace(attr(n, "content"))
				switch key {
				case "og:title":
					ogTitle = content
				case "author", "article:author":
					if p.author == "" {
						p.author = content
					}
				case "og:description", "description":
					if p.description == "" {
						p.description = content
					}
				case "article:published_time", "date", "pubdate":
					if p.published == nil {
						p.published = parseDate(content)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if p.title == "" {
		p.title = ogTitle
	}
	if p.title == "" {
		p.title = h1
	}

	root := find(doc, atom.Article)
	if root == nil {
		root = find(doc, atom.Main)
	}
	if root == nil {
		root = find(doc, atom.Body)
	}
	if root != nil {
		p.text = strings.Join(paragraphs(root), "\n")
	}
	return p
}

func paragraphs(n *html.Node) []string {
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipped[n.DataAtom] {
				return
			}
			if blocks[n.DataAtom] {
				if t := collapse(textOf(n)); t != "" {
					out = append(out, t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipped[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func parseDate(s string) *time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// SimpleSummary joins the first few sentences of text longer than twenty
// characters, stopping before maxChars would be exceeded.
func SimpleSummary(text string, maxChars int) string {
	var parts []string
	total := 0
	for _, s := range sentenceEnd.Split(text, -1) {
		s = strings.TrimSpace(s)
		if len([]rune(s)) <= minSentenceChars {
			continue
		}
		if len(parts) == maxSentences {
			break
		}
		n := len([]rune(s))
		if total+n > maxChars {
			break
		}
		parts = append(parts, s)
		total += n
	}

	summary := strings.Join(parts, ". ")
	if summary != "" && !strings.HasSuffix(summary, ".") {
		summary += "."
	}
	return summary
}

// FormatArticle renders an article as Markdown for inclusion in a note.
// With fullText the article text is appended, capped at MaxArticleTextChars.
func FormatArticle(a models.ArticleResult, fullText bool) string {
	if !a.Success {
		reason := a.Error
		if reason == "" {
			reason = "Unknown error"
		}
		return "[Could not fetch article: " + reason + "]"
	}

	title := a.Title
	if title == "" {
		title = untitledArticle
	}
	lines := []string{"## " + title + "\n"}
	if a.Author != "" {
		lines = append(lines, "**Author**: "+a.Author)
	}
	if a.PublishDate != nil {
		lines = append(lines, "**Published**: "+a.PublishDate.Format("2006-01-02"))
	}
	lines = append(lines, "**URL**: "+a.URL+"\n")

	if a.Summary != "" {
		lines = append(lines, "### Summary\n", a.Summary+"\n")
	}
	if fullText && a.Text != "" {
		text := a.Text
		if r := []rune(text); len(r) > MaxArticleTextChars {
			text = string(r[:MaxArticleTextChars]) + "\n\n[Article truncated...]"
		}
		lines = append(lines, "### Article Text\n", text)
	}
	return strings.Join(lines, "\n")
}
