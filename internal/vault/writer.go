package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/raphaelgruber/vaultbot/internal/config"
	"github.com/raphaelgruber/vaultbot/internal/metrics"
)

// MaxCollisionAttempts bounds the numbered suffixes tried for one name.
const MaxCollisionAttempts = 1000

// Writer stores documents and attachments under the vault root.
// It is safe for concurrent use; collision handling is best effort across
// processes.
type Writer struct {
	root        string // absolute path to vault directory
	incoming    string
	attachments string

	metrics *metrics.Collector
	logger  *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithMetrics records write timings.
func WithMetrics(c *metrics.Collector) Option {
	return func(w *Writer) { w.metrics = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// NewWriter creates a writer for cfg.Path. The directory must already exist.
func NewWriter(cfg config.VaultConfig, opts ...Option) (*Writer, error) {
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, &Error{Op: "open", Path: cfg.Path, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, &Error{Op: "open", Path: abs, Err: ErrVaultMissing}
	}

	w := &Writer{
		root:        abs,
		incoming:    cfg.IncomingFolder,
		attachments: cfg.AttachmentsFolder,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Root returns the absolute vault root.
func (w *Writer) Root() string { return w.root }

// Rel returns path relative to the vault root with forward slashes.
func (w *Writer) Rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// PersistDocument writes text as <incoming>/<subfolder>/<stem>.md and returns
// the absolute path actually used.
func (w *Writer) PersistDocument(text, stem, subfolder string) (string, error) {
	if stem == "" || stem == "." || stem == ".." || strings.ContainsAny(stem, `/\`) {
		return "", &Error{Op: "persist_document", Path: stem, Err: ErrPathEscape}
	}
	name := stem
	if !strings.HasSuffix(name, ".md") {
		name += ".md"
	}
	dir, err := w.safePath(filepath.Join(w.incoming, subfolder))
	if err != nil {
		return "", err
	}

	path, err := w.writeNew("persist_document", dir, name, []byte(text))
	if err != nil {
		return "", err
	}
	w.logger.Info("note saved", "path", w.Rel(path))
	return path, nil
}

// PersistBinary writes data under the attachments folder and returns the
// vault-relative path for embedding.
func (w *Writer) PersistBinary(data []byte, filename string) (string, error) {
	dir, err := w.safePath(w.attachments)
	if err != nil {
		return "", err
	}
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		return "", &Error{Op: "persist_binary", Path: filename, Err: ErrPathEscape}
	}

	path, err := w.writeNew("persist_binary", dir, name, data)
	if err != nil {
		return "", err
	}
	rel := w.Rel(path)
	w.logger.Info("attachment saved", "path", rel)
	return rel, nil
}

// safePath resolves a relative path against the vault root and rejects
// any result that escapes it (directory traversal).
func (w *Writer) safePath(rel string) (string, error) {
	if rel == "" {
		return w.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", &Error{Op: "resolve", Path: rel, Err: ErrPathEscape}
	}
	abs := filepath.Join(w.root, cleaned)
	// Ensure the resolved path is still under root.
	if !strings.HasPrefix(abs, w.root+string(os.PathSeparator)) && abs != w.root {
		return "", &Error{Op: "resolve", Path: rel, Err: ErrPathEscape}
	}
	return abs, nil
}

// writeNew atomically creates a new file in dir: tmp file → fsync → link.
// The hard link fails if another writer claimed the name first, in which
// case the next free name is tried.
func (w *Writer) writeNew(op, dir, name string, data []byte) (path string, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			w.metrics.RecordFailure(metrics.OpVaultWrite)
			return
		}
		w.metrics.RecordTiming(metrics.OpVaultWrite, time.Since(start))
	}()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &Error{Op: op, Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".vaultbot-tmp-*")
	if err != nil {
		return "", &Error{Op: op, Path: dir, Err: fmt.Errorf("create temp: %w", err)}
	}
	tmpName := tmp.Name()
	// The temp name is always removed; the content lives on under the link.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", &Error{Op: op, Path: tmpName, Err: fmt.Errorf("write temp: %w", err)}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", &Error{Op: op, Path: tmpName, Err: fmt.Errorf("fsync: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return "", &Error{Op: op, Path: tmpName, Err: fmt.Errorf("close temp: %w", err)}
	}

	desired := filepath.Join(dir, name)
	for attempt := 0; attempt < MaxCollisionAttempts; attempt++ {
		target, err := ResolveCollision(desired, fileExists)
		if err != nil {
			return "", &Error{Op: op, Path: desired, Err: err}
		}

		err = os.Link(tmpName, target)
		switch {
		case err == nil:
			if target != desired {
				w.logger.Debug("resolved filename conflict", "requested", filepath.Base(desired), "used", filepath.Base(target))
			}
			return target, nil
		case errors.Is(err, fs.ErrExist):
			continue
		default:
			// Filesystems without hard links get a plain rename.
			if err := os.Rename(tmpName, target); err != nil {
				return "", &Error{Op: op, Path: target, Err: fmt.Errorf("rename: %w", err)}
			}
			return target, nil
		}
	}
	return "", &Error{Op: op, Path: desired, Err: ErrCollisionExhausted}
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// ResolveCollision returns path if it is free, otherwise the first free
// "<name>-N<ext>" for N in 1..MaxCollisionAttempts.
func ResolveCollision(path string, exists func(string) bool) (string, error) {
	if !exists(path) {
		return path, nil
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; n <= MaxCollisionAttempts; n++ {
		candidate := fmt.Sprintf("%s-%d%s", base, n, ext)
		if !exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrCollisionExhausted, MaxCollisionAttempts)
}

// ListFolders returns vault folders up to maxDepth levels deep, relative to
// the root with forward slashes, sorted. Hidden folders and their contents
// are skipped. Unreadable directories are ignored.
func (w *Writer) ListFolders(maxDepth int) []string {
	if maxDepth <= 0 {
		return []string{}
	}

	seen := make(map[string]bool)
	_ = filepath.WalkDir(w.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if d != nil && d.IsDir() && p != w.root {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() || p == w.root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}

		rel := w.Rel(p)
		if depth := strings.Count(rel, "/") + 1; depth > maxDepth {
			return fs.SkipDir
		}
		seen[rel] = true
		return nil
	})

	folders := make([]string, 0, len(seen))
	for f := range seen {
		folders = append(folders, f)
	}
	sort.Strings(folders)
	w.logger.Debug("scanned vault folders", "count", len(folders))
	return folders
}
