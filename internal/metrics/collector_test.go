package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotEmpty(t *testing.T) {
	snap := NewCollector().Snapshot()
	assert.Nil(t, snap.Analyze)
	assert.Nil(t, snap.VaultWrite)
	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)
}

func TestRecordLLMUsage(t *testing.T) {
	c := NewCollector()
	c.RecordLLMUsage(OpAnalyze, 100*time.Millisecond, 200, 50)
	c.RecordLLMUsage(OpAnalyze, 300*time.Millisecond, 400, 10)

	snap := c.Snapshot().Analyze
	require.NotNil(t, snap)
	assert.Equal(t, int64(2), snap.Count)
	assert.Equal(t, int64(400), snap.TotalTimeMs)
	assert.InDelta(t, 200.0, snap.AvgTimeMs, 0.001)
	assert.Equal(t, int64(100), snap.MinTimeMs)
	assert.Equal(t, int64(300), snap.MaxTimeMs)

	require.NotNil(t, snap.InputTokens)
	require.NotNil(t, snap.OutputTokens)
	assert.Equal(t, TokenStats{Total: 600, Avg: 300, Min: 200, Max: 400}, *snap.InputTokens)
	assert.Equal(t, TokenStats{Total: 60, Avg: 30, Min: 10, Max: 50}, *snap.OutputTokens)
}

func TestRecordTimingHasNoTokens(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpVaultWrite, 5*time.Millisecond)

	snap := c.Snapshot().VaultWrite
	require.NotNil(t, snap)
	assert.Equal(t, int64(1), snap.Count)
	assert.Nil(t, snap.InputTokens)
}

func TestRecordFailureOnly(t *testing.T) {
	c := NewCollector()
	c.RecordFailure(OpSummarize)

	snap := c.Snapshot().Summarize
	require.NotNil(t, snap)
	assert.Equal(t, int64(0), snap.Count)
	assert.Equal(t, int64(1), snap.Failures)
	assert.Zero(t, snap.AvgTimeMs)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordTiming(OpOCR, time.Second)
		c.RecordFailure(OpOCR)
		c.RecordLLMUsage(OpAnalyze, time.Second, 1, 1)
		_ = c.Snapshot()
	})
}

func TestConcurrentRecording(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordTiming(OpArticleFetch, time.Millisecond)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), c.Snapshot().ArticleFetch.Count)
}
