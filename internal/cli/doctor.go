package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/vaultbot/internal/config"
	"github.com/raphaelgruber/vaultbot/internal/extract"
	"github.com/raphaelgruber/vaultbot/internal/llm"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, vault, AI backend and OCR",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

type checkReport struct {
	out    io.Writer
	failed int
}

func (r *checkReport) ok(name, detail string) {
	fmt.Fprintf(r.out, "%s %s: %s\n", defaultTheme.completedStyle().Render("✓"), name, detail)
}

func (r *checkReport) warn(name, detail string) {
	fmt.Fprintf(r.out, "%s %s: %s\n", defaultTheme.statusStyle().Render("!"), name, detail)
}

func (r *checkReport) fail(name string, err error) {
	r.failed++
	fmt.Fprintf(r.out, "%s %s: %v\n", defaultTheme.errorStyle().Render("✗"), name, err)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	r := &checkReport{out: cmd.OutOrStdout()}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	c, err := config.Load(cfgPath)
	if err != nil {
		r.fail("config", err)
		return fmt.Errorf("%d check(s) failed", r.failed)
	}
	r.ok("config", fmt.Sprintf("provider %s, vault %s", c.AI.Provider, c.Vault.Path))

	checkVault(r, c.Vault)
	checkBackend(ctx, r, c.AI)

	ocr := extract.NewTesseract(c.Pipeline.OCR, nil, nil)
	switch {
	case !c.Pipeline.OCR.Enabled:
		r.warn("ocr", "disabled")
	case ocr.Available():
		r.ok("ocr", c.Pipeline.OCR.Command+" found")
	default:
		r.warn("ocr", c.Pipeline.OCR.Command+" not on PATH; images are saved without extracted text")
	}

	if dir := c.Audit.Dir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			r.fail("audit", err)
		} else {
			r.ok("audit", dir)
		}
	}

	if r.failed > 0 {
		return fmt.Errorf("%d check(s) failed", r.failed)
	}
	return nil
}

func checkVault(r *checkReport, v config.VaultConfig) {
	tmp, err := os.CreateTemp(v.Path, ".vaultbot-doctor-*")
	if err != nil {
		r.fail("vault", fmt.Errorf("not writable: %w", err))
		return
	}
	tmp.Close()
	_ = os.Remove(tmp.Name())

	incoming := filepath.Join(v.Path, v.IncomingFolder)
	if _, err := os.Stat(incoming); err != nil {
		r.warn("vault", incoming+" does not exist yet; it is created on first capture")
		return
	}
	r.ok("vault", "writable")
}

func checkBackend(ctx context.Context, r *checkReport, ai config.AIConfig) {
	if ai.Provider != config.ProviderOllama {
		r.ok("backend", fmt.Sprintf("claude %s (API key set)", ai.Claude.Model))
		return
	}

	o, err := llm.NewOllama(ai, llm.Deps{})
	if err != nil {
		r.fail("backend", err)
		return
	}
	if err := o.Ping(ctx); err != nil {
		r.fail("backend", fmt.Errorf("ollama at %s: %w", ai.Ollama.Host, err))
		return
	}
	has, err := o.HasModel(ctx)
	switch {
	case err != nil:
		r.fail("backend", err)
	case !has:
		r.fail("backend", fmt.Errorf("model %s is not installed; run: ollama pull %s", ai.Ollama.Model, ai.Ollama.Model))
	default:
		r.ok("backend", fmt.Sprintf("ollama %s at %s", ai.Ollama.Model, ai.Ollama.Host))
	}
}
