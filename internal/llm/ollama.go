package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"github.com/raphaelgruber/vaultbot/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Ollama is the locally hosted backend. Generation goes through langchaingo;
// health and model listing use the native client.
type Ollama struct {
	*engine
	client *api.Client
}

// Compile-time check that Ollama implements Provider.
var _ Provider = (*Ollama)(nil)

// NewOllama creates the Ollama backend from configuration.
func NewOllama(cfg config.AIConfig, deps Deps) (*Ollama, error) {
	base, err := url.Parse(cfg.Ollama.Host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	model, err := ollama.New(
		ollama.WithModel(cfg.Ollama.Model),
		ollama.WithServerURL(cfg.Ollama.Host),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}
	return newOllama(model, api.NewClient(base, http.DefaultClient), cfg, deps), nil
}

func newOllama(model llms.Model, client *api.Client, cfg config.AIConfig, deps Deps) *Ollama {
	e := newEngine(config.ProviderOllama, cfg.Ollama.Model, model, cfg.Ollama.Timeout, cfg.MaxContentChars, deps,
		llms.WithTemperature(cfg.Ollama.Temperature),
	)
	return &Ollama{engine: e, client: client}
}

// Ping checks that the server is reachable.
func (o *Ollama) Ping(ctx context.Context) error {
	if err := o.client.Heartbeat(ctx); err != nil {
		return o.wrapError("ping", err)
	}
	return nil
}

// Models lists the models installed on the server.
func (o *Ollama) Models(ctx context.Context) ([]string, error) {
	resp, err := o.client.List(ctx)
	if err != nil {
		return nil, o.wrapError("list_models", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// HasModel reports whether the configured model is installed.
func (o *Ollama) HasModel(ctx context.Context) (bool, error) {
	names, err := o.Models(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == o.model {
			return true, nil
		}
	}
	return false, nil
}
