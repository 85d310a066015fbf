// Package main provides the HTTP server for vaultbot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/vaultbot/internal/api"
	"github.com/raphaelgruber/vaultbot/internal/config"
	"github.com/raphaelgruber/vaultbot/internal/service"
	"github.com/raphaelgruber/vaultbot/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfgPath := flag.String("config", os.Getenv("VAULTBOT_CONFIG"), "path to config.yaml")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger, closeLog := config.SetupLogger(cfg.Log)
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	app, err := service.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close app", "error", err)
		}
	}()

	router, err := api.NewRouter(app)
	if err != nil {
		return err
	}
	httpServer := api.NewServer(cfg.HTTP.Addr, router)
	if cfg.HTTP.Token == "" {
		logger.Warn("http.token is empty; the API accepts unauthenticated requests")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if dir := cfg.Watch.Dir; dir != "" {
		w := watcher.New(dir, cfg.Watch.ArchiveDir, app.Ingest,
			watcher.WithLogger(logger),
			watcher.WithIngestOptions(service.IngestOptions{Source: "watch"}))
		g.Go(func() error {
			if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watcher: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
