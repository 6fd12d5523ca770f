// Package metrics records per-stage timings of the retrieval pipeline.
package metrics

import (
	"sync"
	"time"
)

// Op names a pipeline stage.
type Op string

// Pipeline stages, in the order a full run passes through them.
const (
	OpFetch       Op = "fetch"
	OpEmbedding   Op = "embedding"
	OpIndexBuild  Op = "index_build"
	OpIndexSearch Op = "index_search"
	OpGenerate    Op = "generate"
)

// Ops lists every stage in pipeline order.
var Ops = []Op{OpFetch, OpEmbedding, OpIndexBuild, OpIndexSearch, OpGenerate}

// Stage holds the aggregated calls of one stage. Token counts are only
// reported by generation.
type Stage struct {
	Op     Op
	Calls  int64
	Errors int64
	Total  time.Duration
	Min    time.Duration
	Max    time.Duration

	InputTokens  int64
	OutputTokens int64
}

// Mean returns the average call duration.
func (s Stage) Mean() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Calls)
}

// Snapshot is a copy of the collector state.
type Snapshot struct {
	Uptime time.Duration
	// Stages holds the stages that saw at least one call, in Ops order.
	Stages []Stage
}

// Stage returns the stats of op, if it was called.
func (s Snapshot) Stage(op Op) (Stage, bool) {
	for _, st := range s.Stages {
		if st.Op == op {
			return st, true
		}
	}
	return Stage{}, false
}

// Collector aggregates stage timings. It is safe for concurrent use, and a
// nil *Collector discards everything.
type Collector struct {
	mu     sync.Mutex
	start  time.Time
	stages map[Op]*Stage
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		start:  time.Now(),
		stages: make(map[Op]*Stage, len(Ops)),
	}
}

// stage returns the entry for op. Caller must hold mu.
func (c *Collector) stage(op Op) *Stage {
	st, ok := c.stages[op]
	if !ok {
		st = &Stage{Op: op}
		c.stages[op] = st
	}
	return st
}

// Observe records one call of op that took d. A non-nil err counts as a failed call.
func (c *Collector) Observe(op Op, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.stage(op)
	st.Calls++
	if err != nil {
		st.Errors++
	}
	st.Total += d
	if st.Calls == 1 || d < st.Min {
		st.Min = d
	}
	st.Max = max(st.Max, d)
}

// Time runs fn and observes its duration and error under op.
func (c *Collector) Time(op Op, fn func() error) error {
	start := time.Now()
	err := fn()
	c.Observe(op, time.Since(start), err)
	return err
}

// AddTokens adds token usage to op without counting a call.
func (c *Collector) AddTokens(op Op, input, output int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.stage(op)
	st.InputTokens += input
	st.OutputTokens += output
}

// Snapshot copies the current state.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{Uptime: time.Since(c.start)}
	for _, op := range Ops {
		if st, ok := c.stages[op]; ok && st.Calls > 0 {
			snap.Stages = append(snap.Stages, *st)
		}
	}
	return snap
}
