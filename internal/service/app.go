package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/vaultbot/internal/analyzer"
	"github.com/raphaelgruber/vaultbot/internal/audit"
	"github.com/raphaelgruber/vaultbot/internal/config"
	"github.com/raphaelgruber/vaultbot/internal/extract"
	"github.com/raphaelgruber/vaultbot/internal/llm"
	"github.com/raphaelgruber/vaultbot/internal/metrics"
	"github.com/raphaelgruber/vaultbot/internal/note"
	"github.com/raphaelgruber/vaultbot/internal/vault"
)

// App holds every long-lived component. Transports (CLI, HTTP, MCP,
// watcher) share one App.
type App struct {
	Config   config.Config
	Provider llm.Provider
	Analyzer *analyzer.Analyzer
	Writer   *vault.Writer
	Finder   *vault.Finder
	Pipeline *Pipeline
	Ingest   *IngestService
	Jobs     *JobManager
	Metrics  *metrics.Collector
	// Store is nil unless audit.sqlite_path is set.
	Store  *audit.Store
	Logger *slog.Logger

	closers []func() error
}

// AppOption configures New.
type AppOption func(*appOptions)

type appOptions struct {
	provider llm.Provider
	fetcher  extract.Fetcher
	ocr      extract.OCR
	now      func() time.Time
}

// WithProvider uses p instead of building a backend from configuration.
func WithProvider(p llm.Provider) AppOption {
	return func(o *appOptions) { o.provider = p }
}

// WithFetcher replaces the HTTP article fetcher.
func WithFetcher(f extract.Fetcher) AppOption {
	return func(o *appOptions) { o.fetcher = f }
}

// WithOCR replaces the tesseract OCR engine.
func WithOCR(ocr extract.OCR) AppOption {
	return func(o *appOptions) { o.ocr = ocr }
}

// WithNow overrides the clock used for message timestamps.
func WithNow(now func() time.Time) AppOption {
	return func(o *appOptions) { o.now = now }
}

// New wires the application from a validated configuration.
func New(cfg config.Config, logger *slog.Logger, opts ...AppOption) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{
		Config:  cfg,
		Metrics: metrics.NewCollector(),
		Logger:  logger,
	}

	writer, err := vault.NewWriter(cfg.Vault, vault.WithMetrics(app.Metrics), vault.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	app.Writer = writer
	app.Finder = vault.NewFinder(writer.Root(), logger)

	sinks, err := app.openAudit()
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	provider := o.provider
	if provider == nil {
		provider, err = llm.New(cfg.AI, llm.Deps{
			Sink:    audit.Multi(sinks...),
			Metrics: app.Metrics,
			Logger:  logger,
		})
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("create provider: %w", err)
		}
	}
	app.Provider = provider
	app.Analyzer = analyzer.New(provider, cfg.Pipeline.FallbackOnError, cfg.AI.MaxTags, analyzer.WithLogger(logger))

	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = extract.NewHTTPFetcher(cfg.Pipeline.ArticleMaxChars,
			extract.WithFetchMetrics(app.Metrics), extract.WithFetchLogger(logger))
	}
	ocr := o.ocr
	if ocr == nil && cfg.Pipeline.OCR.Enabled {
		ocr = extract.NewTesseract(cfg.Pipeline.OCR, app.Metrics, logger)
	}

	app.Pipeline = NewPipeline(cfg, PipelineDeps{
		Analyzer:    app.Analyzer,
		Synthesizer: note.NewSynthesizer(cfg.Vault.FilenameStrategy, cfg.Vault.TagFormat),
		Writer:      writer,
		Finder:      app.Finder,
		Fetcher:     fetcher,
		OCR:         ocr,
		Now:         o.now,
		Logger:      logger,
	})
	app.Ingest = NewIngestService(app.Pipeline, logger)
	app.Jobs = NewJobManager(cfg.Pipeline.Concurrency, logger)

	logger.Info("vaultbot ready",
		"provider", provider.Name(),
		"model", provider.Model(),
		"vault", writer.Root())
	return app, nil
}

func (a *App) openAudit() ([]audit.Sink, error) {
	var sinks []audit.Sink
	if dir := a.Config.Audit.Dir; dir != "" {
		daily, err := audit.NewDailyFile(dir)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, daily.Close)
		sinks = append(sinks, daily)
	}
	if dsn := a.Config.Audit.SQLitePath; dsn != "" {
		store, err := audit.OpenStore(dsn)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		a.Store = store
		sinks = append(sinks, store)
	}
	return sinks, nil
}

// Close releases audit sinks.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Stats is the runtime report served by the stats surfaces.
type Stats struct {
	Provider  string                `json:"provider"`
	Model     string                `json:"model"`
	Metrics   metrics.Snapshot      `json:"metrics"`
	Providers []audit.ProviderStats `json:"providers,omitempty"`
}

// Stats reports in-process metrics and, when the SQLite store is enabled,
// aggregated evaluation records since the given time.
func (a *App) Stats(ctx context.Context, since time.Time) (Stats, error) {
	st := Stats{
		Provider: a.Provider.Name(),
		Model:    a.Provider.Model(),
		Metrics:  a.Metrics.Snapshot(),
	}
	if a.Store != nil {
		ps, err := a.Store.Stats(ctx, since)
		if err != nil {
			return st, err
		}
		st.Providers = ps
	}
	return st, nil
}

// Health checks the backend when it supports pinging.
func (a *App) Health(ctx context.Context) error {
	if p, ok := a.Provider.(llm.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
