// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Failures  int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Token counts, only fed by backend operations.
	Input  tokenRange
	Output tokenRange
}

// tokenRange tracks the sum and bounds of a token count.
type tokenRange struct {
	total, min, max int64
	seen            bool
}

func (r *tokenRange) add(n int64) {
	r.total += n
	if !r.seen || n < r.min {
		r.min = n
	}
	if n > r.max {
		r.max = n
	}
	r.seen = true
}

// TokenStats summarizes token counts across calls.
type TokenStats struct {
	Total int64   `json:"total"`
	Avg   float64 `json:"avg"`
	Min   int64   `json:"min"`
	Max   int64   `json:"max"`
}

func (r tokenRange) stats(calls int64) *TokenStats {
	if !r.seen || calls == 0 {
		return nil
	}
	return &TokenStats{
		Total: r.total,
		Avg:   float64(r.total) / float64(calls),
		Min:   r.min,
		Max:   r.max,
	}
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	Failures    int64   `json:"failures,omitempty"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`

	// nil for operations that never reported token usage
	InputTokens  *TokenStats `json:"input_tokens,omitempty"`
	OutputTokens *TokenStats `json:"output_tokens,omitempty"`
}

// Snapshot represents the full process statistics at a point in time.
type Snapshot struct {
	UptimeSeconds   float64            `json:"uptime_seconds"`
	Analyze         *OperationSnapshot `json:"analyze,omitempty"`
	Summarize       *OperationSnapshot `json:"summarize,omitempty"`
	SuggestTags     *OperationSnapshot `json:"suggest_tags,omitempty"`
	SuggestFolder   *OperationSnapshot `json:"suggest_folder,omitempty"`
	FindConnections *OperationSnapshot `json:"find_connections,omitempty"`
	VaultWrite      *OperationSnapshot `json:"vault_write,omitempty"`
	ArticleFetch    *OperationSnapshot `json:"article_fetch,omitempty"`
	OCR             *OperationSnapshot `json:"ocr,omitempty"`
}

// Operation names for the collector. Backend operation names double as the
// operation field of audit records.
const (
	OpAnalyze         = "analyze"
	OpSummarize       = "summarize"
	OpSuggestTags     = "suggest_tags"
	OpSuggestFolder   = "suggest_folder"
	OpFindConnections = "find_connections"
	OpVaultWrite      = "vault_write"
	OpArticleFetch    = "article_fetch"
	OpOCR             = "ocr"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe. A nil *Collector discards everything.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

func (m *OperationMetrics) addTiming(duration time.Duration) {
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.getOrCreate(op).addTiming(duration)
}

// RecordFailure records a failed call. Failures do not count toward timing.
func (c *Collector) RecordFailure(op string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.getOrCreate(op).Failures++
}

// RecordLLMUsage records timing and token usage for a backend operation.
func (c *Collector) RecordLLMUsage(op string, duration time.Duration, inputTokens, outputTokens int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.addTiming(duration)

	m.Input.add(inputTokens)
	m.Output.add(outputTokens)
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || (m.Count == 0 && m.Failures == 0) {
		return nil
	}

	snap := &OperationSnapshot{
		Count:        m.Count,
		Failures:     m.Failures,
		TotalTimeMs:  m.TotalTime.Milliseconds(),
		InputTokens:  m.Input.stats(m.Count),
		OutputTokens: m.Output.stats(m.Count),
	}
	if m.Count > 0 {
		snap.AvgTimeMs = float64(m.TotalTime.Milliseconds()) / float64(m.Count)
		snap.MinTimeMs = m.MinTime.Milliseconds()
		snap.MaxTimeMs = m.MaxTime.Milliseconds()
	}
	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds:   time.Since(c.startTime).Seconds(),
		Analyze:         snapshotOp(c.ops[OpAnalyze]),
		Summarize:       snapshotOp(c.ops[OpSummarize]),
		SuggestTags:     snapshotOp(c.ops[OpSuggestTags]),
		SuggestFolder:   snapshotOp(c.ops[OpSuggestFolder]),
		FindConnections: snapshotOp(c.ops[OpFindConnections]),
		VaultWrite:      snapshotOp(c.ops[OpVaultWrite]),
		ArticleFetch:    snapshotOp(c.ops[OpArticleFetch]),
		OCR:             snapshotOp(c.ops[OpOCR]),
	}
}
