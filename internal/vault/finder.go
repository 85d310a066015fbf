package vault

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/raphaelgruber/vaultbot/internal/models"
	"github.com/raphaelgruber/vaultbot/internal/parser"
)

// Relevance weights for Related.
const (
	tagMatchScore    = 2.0
	entityHitScore   = 0.5
	entityScoreLimit = 2.0
)

// minQueryLen is the shortest query Search accepts.
const minQueryLen = 3

// Finder scans vault notes with simple substring heuristics.
type Finder struct {
	root   string
	logger *slog.Logger
}

// NewFinder creates a finder over the vault at root.
func NewFinder(root string, logger *slog.Logger) *Finder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finder{root: root, logger: logger}
}

// noteFile is one readable note.
type noteFile struct {
	rel     string
	content string
}

// walk calls fn for every visible .md file until fn returns false.
func (f *Finder) walk(ctx context.Context, fn func(noteFile) bool) error {
	stop := fs.SkipAll
	return filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			f.logger.Warn("could not read vault entry", "path", p, "error", walkErr)
			if d != nil && d.IsDir() && p != f.root {
				return fs.SkipDir
			}
			return nil
		}
		if p != f.root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			f.logger.Warn("could not read note", "path", p, "error", err)
			return nil
		}
		rel, _ := filepath.Rel(f.root, p)
		if !fn(noteFile{rel: filepath.ToSlash(rel), content: string(data)}) {
			return stop
		}
		return nil
	})
}

// Related returns up to max notes scored by tag and entity matches,
// highest score first. Notes scoring zero are omitted.
func (f *Finder) Related(ctx context.Context, tags, entities []string, max int) ([]models.RelatedNote, error) {
	if len(tags) == 0 && len(entities) == 0 {
		return []models.RelatedNote{}, nil
	}

	var results []models.RelatedNote
	err := f.walk(ctx, func(n noteFile) bool {
		score := RelevanceScore(n.content, tags, entities)
		if score <= 0 {
			return true
		}
		doc := parser.ParseMarkdown(n.content)
		results = append(results, models.RelatedNote{
			Title: titleOf(doc, n.rel),
			Path:  n.rel,
			Tags:  models.CloneStrings(doc.Tags),
			Score: score,
		})
		return true
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})
	if max > 0 && len(results) > max {
		results = results[:max]
	}
	if results == nil {
		results = []models.RelatedNote{}
	}
	f.logger.Debug("found related notes", "count", len(results))
	return results, nil
}

// RelevanceScore adds 2.0 for every tag found as "#tag" or "- tag", and
// min(0.5*occurrences, 2.0) for every entity. Matching ignores case.
func RelevanceScore(content string, tags, entities []string) float64 {
	lower := strings.ToLower(content)

	score := 0.0
	for _, tag := range tags {
		t := strings.ToLower(tag)
		if t == "" {
			continue
		}
		if strings.Contains(lower, "#"+t) || strings.Contains(lower, "- "+t) {
			score += tagMatchScore
		}
	}
	for _, entity := range entities {
		e := strings.ToLower(entity)
		if e == "" {
			continue
		}
		if count := strings.Count(lower, e); count > 0 {
			score += min(float64(count)*entityHitScore, entityScoreLimit)
		}
	}
	return score
}

// Search returns up to max notes containing query, ignoring case. Queries
// shorter than three characters return nothing.
func (f *Finder) Search(ctx context.Context, query string, max int) ([]models.RelatedNote, error) {
	results := []models.RelatedNote{}
	if len([]rune(query)) < minQueryLen {
		return results, nil
	}

	q := strings.ToLower(query)
	err := f.walk(ctx, func(n noteFile) bool {
		if !strings.Contains(strings.ToLower(n.content), q) {
			return true
		}
		doc := parser.ParseMarkdown(n.content)
		results = append(results, models.RelatedNote{
			Title: titleOf(doc, n.rel),
			Path:  n.rel,
			Tags:  models.CloneStrings(doc.Tags),
		})
		return max <= 0 || len(results) < max
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Summaries returns title and tags of up to max notes, for connection finding.
func (f *Finder) Summaries(ctx context.Context, max int) ([]models.NoteSummary, error) {
	out := []models.NoteSummary{}
	err := f.walk(ctx, func(n noteFile) bool {
		doc := parser.ParseMarkdown(n.content)
		out = append(out, models.NoteSummary{Title: titleOf(doc, n.rel), Tags: models.CloneStrings(doc.Tags)})
		return max <= 0 || len(out) < max
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func titleOf(doc *parser.MarkdownDoc, rel string) string {
	if doc.Title != "" {
		return doc.Title
	}
	return strings.TrimSuffix(filepath.Base(rel), ".md")
}
