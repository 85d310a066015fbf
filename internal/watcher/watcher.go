// Package watcher captures files dropped into a folder. Each supported file
// is ingested once, then moved to an archive folder.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/raphaelgruber/vaultbot/internal/llm"
	"github.com/raphaelgruber/vaultbot/internal/models"
	"github.com/raphaelgruber/vaultbot/internal/service"
	"github.com/raphaelgruber/vaultbot/internal/vault"
)

// DefaultDebounce is how long a file must stay quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

const failedDir = "failed"

// ResultFunc is called after each file has been handled.
type ResultFunc func(path string, saved models.SavedNote, err error)

// Watcher ingests files dropped into a directory.
type Watcher struct {
	dir      string
	archive  string
	ingest   *service.IngestService
	opts     service.IngestOptions
	debounce time.Duration
	onResult ResultFunc
	logger   *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithResultFunc registers a callback invoked after each file.
func WithResultFunc(fn ResultFunc) Option {
	return func(w *Watcher) { w.onResult = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithIngestOptions sets the source and subfolder used for created notes.
func WithIngestOptions(opts service.IngestOptions) Option {
	return func(w *Watcher) { w.opts = opts }
}

// New creates a watcher on dir. Processed files move to archive, which
// defaults to a hidden ".processed" folder inside dir.
func New(dir, archive string, ingest *service.IngestService, opts ...Option) *Watcher {
	if archive == "" {
		archive = filepath.Join(dir, ".processed")
	}
	w := &Watcher{
		dir:      dir,
		archive:  archive,
		ingest:   ingest,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes files already present in the directory, then watches for
// new ones until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Join(w.archive, failedDir), 0o755); err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watcher: started", "dir", w.dir, "archive", w.archive)

	ready := make(chan string, 64)
	timers := make(map[string]*time.Timer)
	schedule := func(path string) {
		if t, ok := timers[path]; ok {
			t.Reset(w.debounce)
			return
		}
		timers[path] = time.AfterFunc(w.debounce, func() {
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", w.dir, err)
	}
	for _, e := range entries {
		path := filepath.Join(w.dir, e.Name())
		if !e.IsDir() && w.accepts(path) {
			schedule(path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			for _, t := range timers {
				t.Stop()
			}
			w.logger.Info("watcher: stopped")
			return nil

		case path := <-ready:
			delete(timers, path)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			w.process(ctx, path)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !w.accepts(ev.Name) {
				continue
			}
			if info, err := os.Stat(ev.Name); err != nil || info.IsDir() {
				continue
			}
			schedule(ev.Name)

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", "error", watchErr)
		}
	}
}

func (w *Watcher) accepts(path string) bool {
	name := filepath.Base(path)
	return !strings.HasPrefix(name, ".") && service.Supported(path)
}

// process ingests one file. Successes are archived and ordinary failures
// move to the failed folder. Files hit by a fatal backend error stay in
// place for the next run.
func (w *Watcher) process(ctx context.Context, path string) {
	saved, err := w.ingest.IngestFile(ctx, path, w.opts)
	switch {
	case err == nil:
		w.logger.Info("watcher: captured", "file", filepath.Base(path), "note", saved.Path)
		w.move(path, w.archive)
	case errors.Is(err, llm.ErrFatalAPI), ctx.Err() != nil:
		w.logger.Error("watcher: capture failed, leaving file", "file", filepath.Base(path), "error", err)
	default:
		w.logger.Warn("watcher: capture failed", "file", filepath.Base(path), "error", err)
		w.move(path, filepath.Join(w.archive, failedDir))
	}
	if w.onResult != nil {
		w.onResult(path, saved, err)
	}
}

func (w *Watcher) move(path, dir string) {
	target, err := vault.ResolveCollision(filepath.Join(dir, filepath.Base(path)), exists)
	if err == nil {
		err = os.Rename(path, target)
	}
	if err != nil {
		w.logger.Error("watcher: archive failed", "file", filepath.Base(path), "error", err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
