// Package metrics provides in-memory runtime statistics for the docs QA backend.
package metrics

import (
	"sync"
	"time"
)

// Operation names for the collector.
const (
	OpEmbedding   = "embedding"
	OpLLMGenerate = "llm_generate"
	OpRetrieval   = "retrieval"
	OpIndexBuild  = "index_build"
	OpRequest     = "http_request"
)

// OperationSnapshot is the reported view of one operation.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	Failures    int64   `json:"failures,omitempty"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`

	// Token stats, set only for LLM operations that reported usage.
	TotalInputTokens  *int64   `json:"total_input_tokens,omitempty"`
	TotalOutputTokens *int64   `json:"total_output_tokens,omitempty"`
	AvgInputTokens    *float64 `json:"avg_input_tokens,omitempty"`
	AvgOutputTokens   *float64 `json:"avg_output_tokens,omitempty"`
	MinInputTokens    *int64   `json:"min_input_tokens,omitempty"`
	MaxInputTokens    *int64   `json:"max_input_tokens,omitempty"`
	MinOutputTokens   *int64   `json:"min_output_tokens,omitempty"`
	MaxOutputTokens   *int64   `json:"max_output_tokens,omitempty"`
}

// Snapshot is the full set of statistics served on /api/health.
type Snapshot struct {
	UptimeSeconds float64            `json:"uptime_seconds"`
	Embedding     *OperationSnapshot `json:"embedding,omitempty"`
	LLMGenerate   *OperationSnapshot `json:"llm_generate,omitempty"`
	Retrieval     *OperationSnapshot `json:"retrieval,omitempty"`
	IndexBuild    *OperationSnapshot `json:"index_build,omitempty"`
	Requests      *OperationSnapshot `json:"requests,omitempty"`
}

// span tracks min/max/total of a series. The zero value is empty.
type span struct {
	n             int64
	total         int64
	lowest, upper int64
}

func (s *span) add(v int64) {
	if s.n == 0 || v < s.lowest {
		s.lowest = v
	}
	if v > s.upper {
		s.upper = v
	}
	s.total += v
	s.n++
}

type opStats struct {
	time     span // nanoseconds
	input    span
	output   span
	failures int64
}

func (o *opStats) snapshot() *OperationSnapshot {
	if o == nil || o.time.n == 0 {
		return nil
	}
	snap := &OperationSnapshot{
		Count:       o.time.n,
		Failures:    o.failures,
		TotalTimeMs: time.Duration(o.time.total).Milliseconds(),
		MinTimeMs:   time.Duration(o.time.lowest).Milliseconds(),
		MaxTimeMs:   time.Duration(o.time.upper).Milliseconds(),
	}
	snap.AvgTimeMs = float64(snap.TotalTimeMs) / float64(o.time.n)

	if o.input.n > 0 && (o.input.total > 0 || o.output.total > 0) {
		snap.TotalInputTokens, snap.MinInputTokens, snap.MaxInputTokens, snap.AvgInputTokens = o.input.report()
		snap.TotalOutputTokens, snap.MinOutputTokens, snap.MaxOutputTokens, snap.AvgOutputTokens = o.output.report()
	}
	return snap
}

func (s span) report() (total, lowest, upper *int64, avg *float64) {
	a := float64(s.total) / float64(s.n)
	return &s.total, &s.lowest, &s.upper, &a
}

// Collector aggregates runtime statistics. It is safe for concurrent use.
type Collector struct {
	mu      sync.RWMutex
	started time.Time
	ops     map[string]*opStats
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{started: time.Now(), ops: map[string]*opStats{}}
}

// op returns the stats for name. Caller holds the write lock.
func (c *Collector) op(name string) *opStats {
	o, ok := c.ops[name]
	if !ok {
		o = &opStats{}
		c.ops[name] = o
	}
	return o
}

// RecordTiming records one completed operation.
func (c *Collector) RecordTiming(op string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.op(op).time.add(int64(d))
}

// RecordLLMUsage records one model call with its token usage.
func (c *Collector) RecordLLMUsage(op string, d time.Duration, inputTokens, outputTokens int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o := c.op(op)
	o.time.add(int64(d))
	o.input.add(inputTokens)
	o.output.add(outputTokens)
}

// RecordFailure counts a failed operation. Timing is recorded separately.
func (c *Collector) RecordFailure(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.op(op).failures++
}

// Snapshot returns the current statistics. Operations never recorded are nil.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.started).Seconds(),
		Embedding:     c.ops[OpEmbedding].snapshot(),
		LLMGenerate:   c.ops[OpLLMGenerate].snapshot(),
		Retrieval:     c.ops[OpRetrieval].snapshot(),
		IndexBuild:    c.ops[OpIndexBuild].snapshot(),
		Requests:      c.ops[OpRequest].snapshot(),
	}
}
