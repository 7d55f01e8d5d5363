// Package events is the engine's structured-event sink: a typed Event, a
// Handler callback, and a Collector that batches events under a mutex with
// a pre-allocated buffer pool. Adapted from the teacher's
// datalog/annotations package, with this engine's own hierarchical event
// names in place of the teacher's query/execution ones.
package events

import (
	"sync"
	"time"
)

// Event name constants, hierarchical by subsystem.
const (
	// Refresh cycle phases (SPEC_FULL.md §5).
	RefreshStructureBegin    = "refresh/structure.begin"
	RefreshStructureComplete = "refresh/structure.complete"
	RefreshMatchPointBegin   = "refresh/match-point.begin"
	RefreshMatchBegin        = "refresh/match.begin"
	RefreshMatchComplete     = "refresh/match.complete"

	// Query-calc node lifecycle.
	QueryCalcRegistered     = "querycalc/registered"
	QueryCalcMatchesUpdated = "querycalc/matches.updated"
	QueryCalcSuspended      = "querycalc/suspended"
	QueryCalcResumed        = "querycalc/resumed"

	// Order service lifecycle.
	OrderServiceSuspended = "orderservice/suspended"
	OrderServiceRefreshed = "orderservice/refreshed"

	// Compiler / executor.
	CompilerCompiled   = "compiler/compiled"
	CompilerMemoHit    = "compiler/memo.hit"
	CompilerMemoMiss   = "compiler/memo.miss"
	ExecutorCacheBuilt = "executor/cache.built"

	// Errors (SPEC_FULL.md §7 error categories).
	ErrorShapeFallback = "error/shape.fallback"
	ErrorProgrammer    = "error/programmer"
)

// Event represents a single structured event emitted during a refresh
// cycle, compile, or query-calc/order-service transition.
type Event struct {
	Name    string
	Start   time.Time
	End     time.Time
	Latency time.Duration
	Data    map[string]interface{}
	Caller  string
}

// Handler processes events as they occur.
type Handler func(event Event)

// Collector accumulates events, optionally forwarding each to a Handler as
// it arrives.
type Collector struct {
	enabled bool
	handler Handler
	events  []Event

	dataPool []map[string]interface{}
	poolIdx  int
	mu       sync.Mutex
}

// NewCollector creates a collector. A nil handler disables collection
// entirely (Add becomes a no-op), so call sites don't need to branch on
// whether a debug sink is attached.
func NewCollector(handler Handler) *Collector {
	const poolSize = 32
	c := &Collector{
		enabled:  handler != nil,
		handler:  handler,
		events:   make([]Event, 0, 128),
		dataPool: make([]map[string]interface{}, poolSize),
	}
	for i := range c.dataPool {
		c.dataPool[i] = make(map[string]interface{}, 8)
	}
	return c
}

// Handler returns the underlying event handler.
func (c *Collector) Handler() Handler { return c.handler }

// Add records event, forwarding to the handler outside the lock.
func (c *Collector) Add(event Event) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	if c.handler != nil {
		c.handler(event)
	}
}

// AddTiming records an event spanning [start, now), with data attached.
func (c *Collector) AddTiming(name string, start time.Time, data map[string]interface{}) {
	if !c.enabled {
		return
	}
	end := time.Now()
	c.Add(Event{Name: name, Start: start, End: end, Latency: end.Sub(start), Data: data})
}

// GetDataMap returns a pooled map for event data, falling back to a fresh
// allocation once the pool is exhausted.
func (c *Collector) GetDataMap() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.poolIdx >= len(c.dataPool) {
		return make(map[string]interface{}, 4)
	}
	m := c.dataPool[c.poolIdx]
	c.poolIdx++
	for k := range m {
		delete(m, k)
	}
	return m
}

// Events returns a copy of every event collected so far.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Reset clears the collector for reuse, keeping its handler and enabled
// state.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
	c.poolIdx = 0
}
