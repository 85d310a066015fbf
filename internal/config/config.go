// Package config loads and validates vaultbot settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported AI providers.
const (
	ProviderClaude = "claude"
	ProviderOllama = "ollama"
)

// Filename strategies for new notes.
const (
	FilenameTimestamp = "timestamp"
	FilenameTitle     = "title"
	FilenameDateTitle = "date_title"
)

// Tag rendering modes.
const (
	TagFormatBlock  = "block"
	TagFormatInline = "inline"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

func init() {
	// Report validation failures with the keys used in the YAML file.
	validation.ErrorTag = "yaml"
}

// Config holds all configuration values.
type Config struct {
	AI       AIConfig       `yaml:"ai"`
	Vault    VaultConfig    `yaml:"vault"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Audit    AuditConfig    `yaml:"audit"`
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Watch    WatchConfig    `yaml:"watch"`
}

// AIConfig selects and tunes the analysis backend.
type AIConfig struct {
	Provider        string       `yaml:"provider"`
	MaxTags         int          `yaml:"max_tags"`
	MaxContentChars int          `yaml:"max_content_chars"`
	Claude          ClaudeConfig `yaml:"claude"`
	Ollama          OllamaConfig `yaml:"ollama"`
}

// ClaudeConfig configures the hosted Anthropic backend.
type ClaudeConfig struct {
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`

	// Prices in USD per million tokens, used for cost estimates.
	InputPrice  float64 `yaml:"input_price"`
	OutputPrice float64 `yaml:"output_price"`
}

// OllamaConfig configures the locally hosted backend.
type OllamaConfig struct {
	Host        string        `yaml:"host"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// VaultConfig describes the vault layout and note rendering.
type VaultConfig struct {
	Path              string `yaml:"path"`
	IncomingFolder    string `yaml:"incoming_folder"`
	AttachmentsFolder string `yaml:"attachments_folder"`
	FilenameStrategy  string `yaml:"filename_strategy"`
	TagFormat         string `yaml:"tag_format"`
	FolderDepth       int    `yaml:"folder_depth"`
}

// PipelineConfig tunes message processing.
type PipelineConfig struct {
	Source          string    `yaml:"source"`
	FallbackOnError bool      `yaml:"fallback_on_error"`
	FetchArticles   bool      `yaml:"fetch_articles"`
	ArticleMaxChars int       `yaml:"article_max_chars"`
	FindRelated     int       `yaml:"find_related"`
	Concurrency     int       `yaml:"concurrency"`
	OCR             OCRConfig `yaml:"ocr"`
}

// OCRConfig configures the external OCR command.
type OCRConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Language string `yaml:"language"`
	Command  string `yaml:"command"`
}

// AuditConfig configures where evaluation records go.
type AuditConfig struct {
	Dir        string `yaml:"dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	File    string `yaml:"file"`
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// HTTPConfig configures the intake API.
type HTTPConfig struct {
	Addr  string `yaml:"addr"`
	Token string `yaml:"token"`
	// Rate uses the limiter format, e.g. "30-M".
	Rate string `yaml:"rate"`
}

// WatchConfig configures the drop-folder watcher.
type WatchConfig struct {
	Dir        string `yaml:"dir"`
	ArchiveDir string `yaml:"archive_dir"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		AI: AIConfig{
			Provider:        ProviderClaude,
			MaxTags:         5,
			MaxContentChars: 10000,
			Claude: ClaudeConfig{
				Model:       "claude-sonnet-4-20250514",
				MaxTokens:   2000,
				Temperature: 0.7,
				Timeout:     60 * time.Second,
				InputPrice:  3.00,
				OutputPrice: 15.00,
			},
			Ollama: OllamaConfig{
				Host:        "http://localhost:11434",
				Model:       "llama3.1:8b",
				Temperature: 0.7,
				Timeout:     120 * time.Second,
			},
		},
		Vault: VaultConfig{
			IncomingFolder:    "Incoming",
			AttachmentsFolder: "_attachments",
			FilenameStrategy:  FilenameDateTitle,
			TagFormat:         TagFormatBlock,
			FolderDepth:       3,
		},
		Pipeline: PipelineConfig{
			Source:          "chat",
			FallbackOnError: true,
			FetchArticles:   true,
			ArticleMaxChars: 500,
			Concurrency:     4,
			OCR: OCRConfig{
				Enabled:  true,
				Language: "eng",
				Command:  "tesseract",
			},
		},
		Audit: AuditConfig{
			Dir: "logs/eval",
		},
		Log: LogConfig{
			File:    "logs/vaultbot.log",
			Level:   "INFO",
			Console: true,
		},
		HTTP: HTTPConfig{
			Addr: ":8585",
			Rate: "30-M",
		},
	}
}

// Load reads .env, the optional YAML file at path and environment overrides,
// in that order, and validates the result.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.AI.Provider = getEnv("VAULTBOT_AI_PROVIDER", cfg.AI.Provider)
	cfg.AI.Claude.APIKey = getEnv("ANTHROPIC_API_KEY", getEnv("CLAUDE_API_KEY", cfg.AI.Claude.APIKey))
	cfg.AI.Claude.Model = getEnv("VAULTBOT_CLAUDE_MODEL", cfg.AI.Claude.Model)
	cfg.AI.Ollama.Host = getEnv("OLLAMA_HOST", getEnv("OLLAMA_BASE_URL", cfg.AI.Ollama.Host))
	cfg.AI.Ollama.Model = getEnv("VAULTBOT_OLLAMA_MODEL", cfg.AI.Ollama.Model)

	cfg.Vault.Path = getEnv("VAULTBOT_VAULT_PATH", getEnv("OBSIDIAN_VAULT_PATH", cfg.Vault.Path))
	cfg.Vault.IncomingFolder = getEnv("VAULTBOT_INCOMING_FOLDER", cfg.Vault.IncomingFolder)

	if v, err := strconv.ParseBool(getEnv("VAULTBOT_FALLBACK_ON_ERROR", "")); err == nil {
		cfg.Pipeline.FallbackOnError = v
	}

	cfg.Log.File = getEnv("VAULTBOT_LOG_FILE", cfg.Log.File)
	cfg.Log.Level = getEnv("VAULTBOT_LOG_LEVEL", getEnv("LOG_LEVEL", cfg.Log.Level))

	cfg.HTTP.Addr = getEnv("VAULTBOT_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.Token = getEnv("VAULTBOT_HTTP_TOKEN", cfg.HTTP.Token)

	cfg.Watch.Dir = getEnv("VAULTBOT_WATCH_DIR", cfg.Watch.Dir)
}

// Validate checks every section and wraps the first failure in ErrInvalid.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		fn   func() error
	}{
		{"ai", c.AI.Validate},
		{"vault", c.Vault.Validate},
		{"pipeline", c.Pipeline.Validate},
		{"http", c.HTTP.Validate},
	}
	for _, s := range sections {
		if err := s.fn(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalid, s.name, err)
		}
	}
	return nil
}

// Validate validates the AI configuration.
func (c *AIConfig) Validate() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(ProviderClaude, ProviderOllama)),
		validation.Field(&c.MaxTags, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxContentChars, validation.Required, validation.Min(100)),
	); err != nil {
		return err
	}

	switch c.Provider {
	case ProviderClaude:
		return validation.ValidateStruct(&c.Claude,
			validation.Field(&c.Claude.APIKey, validation.Required.Error("is required for the claude provider")),
			validation.Field(&c.Claude.Model, validation.Required),
			validation.Field(&c.Claude.MaxTokens, validation.Required, validation.Min(1)),
			validation.Field(&c.Claude.Temperature, validation.Min(0.0), validation.Max(1.0)),
		)
	case ProviderOllama:
		return validation.ValidateStruct(&c.Ollama,
			validation.Field(&c.Ollama.Host, validation.Required),
			validation.Field(&c.Ollama.Model, validation.Required),
			validation.Field(&c.Ollama.Temperature, validation.Min(0.0), validation.Max(2.0)),
		)
	}
	return nil
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required, validation.By(dirExists)),
		validation.Field(&c.IncomingFolder, validation.Required),
		validation.Field(&c.AttachmentsFolder, validation.Required),
		validation.Field(&c.FilenameStrategy, validation.Required,
			validation.In(FilenameTimestamp, FilenameTitle, FilenameDateTitle)),
		validation.Field(&c.TagFormat, validation.Required, validation.In(TagFormatBlock, TagFormatInline)),
		validation.Field(&c.FolderDepth, validation.Min(1)),
	)
}

// Validate validates the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Source, validation.Required),
		validation.Field(&c.ArticleMaxChars, validation.Min(0)),
		validation.Field(&c.FindRelated, validation.Min(0)),
		validation.Field(&c.Concurrency, validation.Min(1)),
	)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Addr, validation.Required),
	)
}

// LogLevel returns the parsed log level.
func (c LogConfig) LogLevel() slog.Level {
	return parseLogLevel(c.Level)
}

func dirExists(value any) error {
	path, _ := value.(string)
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("vault path does not exist: %s", path)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault path is not a directory: %s", path)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
