package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/raphaelgruber/vaultbot/internal/config"
	"github.com/raphaelgruber/vaultbot/internal/metrics"
	"github.com/raphaelgruber/vaultbot/internal/models"
)

// ErrOCRUnavailable indicates the OCR command could not be found.
var ErrOCRUnavailable = errors.New("ocr command not available")

// OCR extracts text from an image file.
type OCR interface {
	Extract(ctx context.Context, imagePath string) (models.OCRResult, error)
}

// runFunc runs a command and returns its standard output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
	}
	return out, err
}

// Tesseract runs the tesseract CLI in TSV mode, which yields words and
// per-word confidence in one pass.
type Tesseract struct {
	enabled  bool
	command  string
	language string
	run      runFunc
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// NewTesseract creates an OCR engine from cfg. A disabled engine returns
// empty results without running anything.
func NewTesseract(cfg config.OCRConfig, m *metrics.Collector, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	command := cfg.Command
	if command == "" {
		command = "tesseract"
	}
	language := cfg.Language
	if language == "" {
		language = "eng"
	}
	return &Tesseract{
		enabled:  cfg.Enabled,
		command:  command,
		language: language,
		run:      execRun,
		metrics:  m,
		logger:   logger,
	}
}

// Available reports whether OCR is enabled and the command is on PATH.
func (t *Tesseract) Available() bool {
	if !t.enabled {
		return false
	}
	_, err := exec.LookPath(t.command)
	return err == nil
}

// Extract runs OCR on imagePath. Text is trimmed; Confidence is the mean
// word confidence in percent.
func (t *Tesseract) Extract(ctx context.Context, imagePath string) (models.OCRResult, error) {
	if !t.enabled {
		t.logger.Debug("ocr disabled, skipping image")
		return models.OCRResult{}, nil
	}

	start := time.Now()
	out, err := t.run(ctx, t.command, imagePath, "stdout", "-l", t.language, "tsv")
	if err != nil {
		t.metrics.RecordFailure(metrics.OpOCR)
		if errors.Is(err, exec.ErrNotFound) {
			err = fmt.Errorf("%w: %s", ErrOCRUnavailable, t.command)
		}
		return models.OCRResult{}, fmt.Errorf("ocr %s: %w", imagePath, err)
	}

	res := parseTSV(string(out))
	t.metrics.RecordTiming(metrics.OpOCR, time.Since(start))
	t.logger.Info("ocr completed", "has_text", res.HasText, "confidence", fmt.Sprintf("%.1f", res.Confidence))
	return res, nil
}

// parseTSV rebuilds text from tesseract TSV output. Columns are level,
// page_num, block_num, par_num, line_num, word_num, left, top, width,
// height, conf, text. Words on one line are joined by spaces, lines by
// newlines and blocks by a blank line.
func parseTSV(out string) models.OCRResult {
	var (
		b        strings.Builder
		lastLine string
		lastBlk  string
		confSum  float64
		confN    int
	)

	for i, row := range strings.Split(out, "\n") {
		if i == 0 || row == "" {
			continue
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 12 {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}
		confSum += conf
		confN++

		blk := cols[1] + "/" + cols[2]
		line := blk + "/" + cols[3] + "/" + cols[4]
		switch {
		case b.Len() == 0:
		case blk != lastBlk:
			b.WriteString("\n\n")
		case line != lastLine:
			b.WriteByte('\n')
		default:
			b.WriteByte(' ')
		}
		b.WriteString(word)
		lastBlk, lastLine = blk, line
	}

	text := strings.TrimSpace(b.String())
	res := models.OCRResult{Text: text, HasText: text != ""}
	if confN > 0 {
		res.Confidence = confSum / float64(confN)
	}
	return res
}
