// Package main provides the entry point for the vaultbot MCP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/vaultbot/internal/config"
	"github.com/raphaelgruber/vaultbot/internal/server"
	"github.com/raphaelgruber/vaultbot/internal/service"
	"github.com/raphaelgruber/vaultbot/internal/tools"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load(os.Getenv("VAULTBOT_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the protocol; console logs go to stderr only.
	logger, cleanup := config.SetupLogger(cfg.Log)
	defer func() { _ = cleanup() }()

	logger.Info("vaultbot-mcp starting",
		"version", version,
		"provider", cfg.AI.Provider,
		"vault", cfg.Vault.Path,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := service.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() { _ = app.Close() }()

	srv := server.New(version, logger)
	srv.Setup()
	tools.RegisterAll(srv.MCPServer(), &tools.Dependencies{App: app, Logger: logger})

	logger.Info("server ready, awaiting connections")

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
