package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg := Default()
	cfg.Vault.Path = t.TempDir()
	cfg.AI.Claude.APIKey = "sk-test"
	return cfg
}

func TestDefaultNeedsVaultAndKey(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid claude", func(*Config) {}, ""},
		{"valid ollama without key", func(c *Config) {
			c.AI.Provider = ProviderOllama
			c.AI.Claude.APIKey = ""
		}, ""},
		{"provider is case insensitive", func(c *Config) { c.AI.Provider = " Claude " }, ""},
		{"unknown provider", func(c *Config) { c.AI.Provider = "openai" }, "provider"},
		{"claude without key", func(c *Config) { c.AI.Claude.APIKey = "" }, "claude provider"},
		{"missing vault dir", func(c *Config) { c.Vault.Path = "/does/not/exist" }, "does not exist"},
		{"bad filename strategy", func(c *Config) { c.Vault.FilenameStrategy = "hybrid" }, "filename_strategy"},
		{"bad tag format", func(c *Config) { c.Vault.TagFormat = "yaml" }, "tag_format"},
		{"zero max tags", func(c *Config) { c.AI.MaxTags = 0 }, "max_tags"},
		{"zero concurrency", func(c *Config) { c.Pipeline.Concurrency = 0 }, "concurrency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	vault := t.TempDir()
	path := filepath.Join(t.TempDir(), "vaultbot.yaml")
	yamlData := `
ai:
  provider: ollama
  max_tags: 3
  ollama:
    model: mistral
    timeout: 45s
vault:
  path: ${TEST_VAULT_DIR}
  tag_format: inline
pipeline:
  fallback_on_error: false
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o644))
	t.Setenv("TEST_VAULT_DIR", vault)
	t.Setenv("VAULTBOT_INCOMING_FOLDER", "Drop")
	t.Setenv("OLLAMA_HOST", "http://ollama:11434")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderOllama, cfg.AI.Provider)
	assert.Equal(t, 3, cfg.AI.MaxTags)
	assert.Equal(t, "mistral", cfg.AI.Ollama.Model)
	assert.Equal(t, 45*time.Second, cfg.AI.Ollama.Timeout)
	assert.Equal(t, "http://ollama:11434", cfg.AI.Ollama.Host)
	assert.Equal(t, vault, cfg.Vault.Path)
	assert.Equal(t, "Drop", cfg.Vault.IncomingFolder)
	assert.Equal(t, TagFormatInline, cfg.Vault.TagFormat)
	assert.False(t, cfg.Pipeline.FallbackOnError)
	// untouched defaults survive the overlay
	assert.Equal(t, "_attachments", cfg.Vault.AttachmentsFolder)
	assert.Equal(t, FilenameDateTitle, cfg.Vault.FilenameStrategy)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, LogConfig{Level: tt.in}.LogLevel())
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var console, file bytes.Buffer
	logger := SetupLoggerWithWriters(&console, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("note saved", "path", "Incoming/a.md")

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "note saved")

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(file.String())), &rec))
	assert.Equal(t, "note saved", rec["msg"])
	assert.Equal(t, "Incoming/a.md", rec["path"])
}

func TestSetupLoggerCreatesLogDir(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "nested", "vaultbot.log")
	logger, cleanup := SetupLogger(LogConfig{File: logFile, Level: "info"})
	logger.Info("hello")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
