// Package cli provides the command-line interface for vaultbot.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/vaultbot/internal/client"
	"github.com/raphaelgruber/vaultbot/internal/config"
	"github.com/raphaelgruber/vaultbot/internal/service"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	cfgPath   string
	verbose   bool
	serverURL string
	token     string

	// Loaded in PersistentPreRunE for local commands
	cfg           config.Config
	logger        *slog.Logger
	closeLog      func() error
	app           *service.App
	extraAppOpts  []service.AppOption
	skipPreRunFor = map[string]bool{"version": true, "help": true, "doctor": true}
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "vaultbot",
	Short: "Capture notes into an Obsidian-style vault",
	Long: `Vaultbot turns quick captures into organized Markdown notes.

Text, links, photos and voice messages are analyzed by an AI backend
(Claude or a local Ollama model) that suggests a title, summary, tags and
folder. The result is written into the incoming folder of your vault.

Commands run against the local vault by default. With --server they talk
to a running vaultbot-server instead.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipPreRunFor[cmd.Name()] || serverURL != "" {
			return nil
		}
		return loadConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			if err := app.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close: %v\n", err)
			}
			app = nil
		}
		if closeLog != nil {
			_ = closeLog()
			closeLog = nil
		}
	},
}

func loadConfig() error {
	var err error
	cfg, err = config.Load(cfgPath)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Log.Level = "DEBUG"
	}
	logger, closeLog = config.SetupLogger(cfg.Log)
	slog.SetDefault(logger)
	return nil
}

// getApp lazily wires the application; commands that only list files or
// folders never build a provider.
func getApp() (*service.App, error) {
	if app != nil {
		return app, nil
	}
	var err error
	app, err = service.New(cfg, logger, extraAppOpts...)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return app, nil
}

// remote returns a client when --server is set.
func remote() *client.Client {
	if serverURL == "" {
		return nil
	}
	return client.New(serverURL, token)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", os.Getenv("VAULTBOT_CONFIG"), "path to config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "vaultbot-server URL; run against a server instead of the local vault")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token for --server (default $VAULTBOT_HTTP_TOKEN)")

	// Add subcommands
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(foldersCmd)
	rootCmd.AddCommand(relatedCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}
