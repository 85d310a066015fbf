package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/vaultbot/internal/audit"
	"github.com/raphaelgruber/vaultbot/internal/metrics"
	"github.com/raphaelgruber/vaultbot/internal/models"
	"github.com/raphaelgruber/vaultbot/internal/prompts"
	"github.com/tmc/langchaingo/llms"
)

// pricing is USD per million tokens.
type pricing struct {
	input  float64
	output float64
}

func (p pricing) cost(in, out int64) float64 {
	return float64(in)/1e6*p.input + float64(out)/1e6*p.output
}

// engine runs prompts against a langchaingo model and implements every
// Provider operation on top of it.
type engine struct {
	name     string
	model    string
	llm      llms.Model
	opts     []llms.CallOption
	timeout  time.Duration
	maxChars int
	price    pricing

	sink    audit.Sink
	metrics *metrics.Collector
	logger  *slog.Logger
}

func newEngine(name, model string, m llms.Model, timeout time.Duration, maxChars int, deps Deps, opts ...llms.CallOption) *engine {
	deps = deps.withDefaults()
	return &engine{
		name:     name,
		model:    model,
		llm:      m,
		opts:     opts,
		timeout:  timeout,
		maxChars: maxChars,
		sink:     deps.Sink,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With("provider", name, "model", model),
	}
}

// Name returns the backend identifier.
func (e *engine) Name() string { return e.name }

// Model returns the model identifier.
func (e *engine) Model() string { return e.model }

// call is the outcome of one successful generation.
type call struct {
	text    string
	elapsed time.Duration
	usage   usage
}

// generate sends prompt as a single human message under the per-call timeout.
func (e *engine) generate(ctx context.Context, op, prompt string) (call, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := e.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, e.opts...)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return call{elapsed: elapsed}, &ProviderError{Provider: e.name, Op: op, Kind: ErrTimeout, Err: err}
		}
		return call{elapsed: elapsed}, e.wrapError(op, err)
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return call{elapsed: elapsed}, &ProviderError{Provider: e.name, Op: op, Kind: ErrEmptyResponse}
	}

	choice := resp.Choices[0]
	u := usageFrom(choice.GenerationInfo)
	e.metrics.RecordLLMUsage(op, elapsed, u.input, u.output)

	return call{text: strings.TrimSpace(choice.Content), elapsed: elapsed, usage: u}, nil
}

// Analyze runs the full structured analysis. Unparseable responses yield the
// fallback analysis without an error.
func (e *engine) Analyze(ctx context.Context, content string, actx models.AnalysisContext) (models.Analysis, error) {
	op := metrics.OpAnalyze
	text, truncated := Truncate(content, e.maxChars)
	prompt := prompts.Analysis(text, actx)

	rec := e.newRecord(audit.KindEvaluation, op, actx.ContentType, content, truncated, prompt)

	c, err := e.generate(ctx, op, prompt)
	if err != nil {
		e.fail(ctx, rec, c, err)
		return models.Analysis{}, err
	}

	a, strategy, ok := parseAnalysis(c.text)
	if !ok {
		rec.Kind = audit.KindParseFailure
		rec.FallbackUsed = true
		rec.Error = "JSON parsing failed"
		e.logger.Warn("could not parse analysis response, using fallback",
			"response_preview", audit.Preview(c.text, 200))
	} else {
		e.logger.Debug("analysis parsed", "strategy", strategy, "duration_ms", c.elapsed.Milliseconds())
	}
	rec.Parsed = &a
	rec.Quality = audit.QualityOf(a, ok)
	e.succeed(ctx, rec, c)

	return a, nil
}

// Summarize returns a plain-text summary.
func (e *engine) Summarize(ctx context.Context, content string, maxWords int) (string, error) {
	op := metrics.OpSummarize
	text, truncated := Truncate(content, e.maxChars)
	prompt := prompts.Summary(text, maxWords)

	rec := e.newRecord(audit.KindEvaluation, op, "", content, truncated, prompt)
	c, err := e.generate(ctx, op, prompt)
	if err != nil {
		e.fail(ctx, rec, c, err)
		return "", err
	}
	e.succeed(ctx, rec, c)
	return c.text, nil
}

// SuggestTags returns at most maxTags tags.
func (e *engine) SuggestTags(ctx context.Context, content string, maxTags int) ([]string, error) {
	op := metrics.OpSuggestTags
	text, truncated := Truncate(content, e.maxChars)
	prompt := prompts.Tags(text, maxTags)

	rec := e.newRecord(audit.KindEvaluation, op, "", content, truncated, prompt)
	c, err := e.generate(ctx, op, prompt)
	if err != nil {
		e.fail(ctx, rec, c, err)
		return nil, err
	}
	e.succeed(ctx, rec, c)
	return ParseTags(c.text, maxTags), nil
}

// SuggestFolder returns a single folder path.
func (e *engine) SuggestFolder(ctx context.Context, content string, folders []string) (string, error) {
	op := metrics.OpSuggestFolder
	text, truncated := Truncate(content, e.maxChars)
	prompt := prompts.Folder(text, folders)

	rec := e.newRecord(audit.KindEvaluation, op, "", content, truncated, prompt)
	c, err := e.generate(ctx, op, prompt)
	if err != nil {
		e.fail(ctx, rec, c, err)
		return "", err
	}
	e.succeed(ctx, rec, c)
	return ParseFolder(c.text), nil
}

// FindConnections returns conceptual connections to the given notes.
func (e *engine) FindConnections(ctx context.Context, content string, notes []models.NoteSummary) ([]string, error) {
	op := metrics.OpFindConnections
	text, truncated := Truncate(content, e.maxChars)
	prompt := prompts.Connections(text, notes)

	rec := e.newRecord(audit.KindEvaluation, op, "", content, truncated, prompt)
	c, err := e.generate(ctx, op, prompt)
	if err != nil {
		e.fail(ctx, rec, c, err)
		return nil, err
	}
	e.succeed(ctx, rec, c)
	return ParseConnections(c.text), nil
}

func (e *engine) newRecord(kind audit.Kind, op string, ct models.ContentType, content string, truncated bool, prompt string) audit.Record {
	rec := audit.New(kind, op, e.name, e.model)
	rec.ContentType = string(ct)
	rec.Input = audit.NewInput(len([]rune(content)), truncated, content)
	rec.Prompt = &audit.Prompt{Text: prompt, Length: len([]rune(prompt))}
	return rec
}

func (e *engine) succeed(ctx context.Context, rec audit.Record, c call) {
	rec.Response = &audit.Response{Raw: c.text, Length: len([]rune(c.text))}
	rec.Metrics = e.callMetrics(c)

	e.logger.Info("backend call complete",
		"operation", rec.Operation,
		"duration_ms", c.elapsed.Milliseconds(),
		"input_tokens", c.usage.input,
		"output_tokens", c.usage.output)
	e.write(ctx, rec)
}

func (e *engine) fail(ctx context.Context, rec audit.Record, c call, err error) {
	rec.Kind = audit.KindError
	rec.Error = err.Error()
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Kind != nil {
		rec.ErrorType = pe.Kind.Error()
	}
	rec.Metrics = &audit.Metrics{ElapsedSeconds: c.elapsed.Seconds()}

	e.metrics.RecordFailure(rec.Operation)
	e.logger.Error("backend call failed", "operation", rec.Operation, "error", err)
	e.write(ctx, rec)
}

// write never fails the caller; audit problems are only logged.
func (e *engine) write(ctx context.Context, rec audit.Record) {
	if err := e.sink.Write(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.Warn("failed to write audit record", "error", err)
	}
}

func (e *engine) callMetrics(c call) *audit.Metrics {
	m := &audit.Metrics{
		ElapsedSeconds: c.elapsed.Seconds(),
		InputTokens:    c.usage.input,
		OutputTokens:   c.usage.output,
		TotalTokens:    c.usage.total(),
		CostUSD:        e.price.cost(c.usage.input, c.usage.output),
	}
	if secs := c.elapsed.Seconds(); secs > 0 && c.usage.output > 0 {
		m.TokensPerSecond = float64(c.usage.output) / secs
	}
	return m
}

// usage is token accounting for one call.
type usage struct {
	input    int64
	output   int64
	reported int64
}

func (u usage) total() int64 {
	if u.reported > 0 {
		return u.reported
	}
	return u.input + u.output
}

// usageFrom reads token counts from langchaingo generation info. The keys
// differ between backends.
func usageFrom(info map[string]any) usage {
	return usage{
		input:    firstInt(info, "InputTokens", "PromptTokens", "prompt_eval_count"),
		output:   firstInt(info, "OutputTokens", "CompletionTokens", "eval_count"),
		reported: firstInt(info, "TotalTokens"),
	}
}

func firstInt(info map[string]any, keys ...string) int64 {
	for _, k := range keys {
		v, ok := info[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int:
			return int64(n)
		case int32:
			return int64(n)
		case int64:
			return n
		case float64:
			return int64(n)
		}
	}
	return 0
}
