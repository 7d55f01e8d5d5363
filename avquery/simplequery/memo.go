package simplequery

import (
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Memo caches compiled executors. The source system keys its compile cache
// by the term's object identity under a weak map, so that re-parsing the
// same query object reuses its prior compilation for free; Go has no weak
// maps, so this substitutes a structural hash (xxhash over a canonical
// rendering of the term) plus a size-bounded, TTL-expiring cache, mirroring
// planner.PlanCache's eviction policy.
type Memo struct {
	mu      sync.Mutex
	entries map[uint64]*memoEntry
	maxSize int
	ttl     time.Duration

	hits, misses int64
}

type memoEntry struct {
	exec      *Executor
	timestamp time.Time
}

// NewMemo creates a compile-result cache. maxSize <= 0 defaults to 1000
// entries; ttl <= 0 defaults to 5 minutes.
func NewMemo(maxSize int, ttl time.Duration) *Memo {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Memo{
		entries: make(map[uint64]*memoEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Compile compiles term, reusing a cached executor when an equivalent term
// (by structural hash) was compiled within the TTL.
func (m *Memo) Compile(term Term) *Executor {
	if m == nil {
		return Compile(term)
	}
	key := hashTerm(term)

	m.mu.Lock()
	if e, ok := m.entries[key]; ok && time.Since(e.timestamp) <= m.ttl {
		m.hits++
		m.mu.Unlock()
		return e.exec
	}
	m.misses++
	m.mu.Unlock()

	exec := Compile(term)

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) >= m.maxSize {
		m.evictExpired()
		if len(m.entries) >= m.maxSize {
			m.evictOldest()
		}
	}
	m.entries[key] = &memoEntry{exec: exec, timestamp: time.Now()}
	return exec
}

// Stats reports cache hit/miss/size counters.
func (m *Memo) Stats() (hits, misses int64, size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses, len(m.entries)
}

// Clear empties the cache.
func (m *Memo) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[uint64]*memoEntry)
	m.hits, m.misses = 0, 0
}

func (m *Memo) evictExpired() {
	now := time.Now()
	for k, e := range m.entries {
		if now.Sub(e.timestamp) > m.ttl {
			delete(m.entries, k)
		}
	}
}

func (m *Memo) evictOldest() {
	var oldestKey uint64
	var oldestTime time.Time
	first := true
	for k, e := range m.entries {
		if first || e.timestamp.Before(oldestTime) {
			oldestKey, oldestTime, first = k, e.timestamp, false
		}
	}
	if !first {
		delete(m.entries, oldestKey)
	}
}

// hashTerm renders term into a canonical byte stream and xxhashes it. It is
// the structural-identity substitute discussed in DESIGN.md: two distinct
// term objects with the same shape and contents hash identically, so
// queries sharing a parse (or independently re-built but equal terms) still
// share one compiled Executor.
func hashTerm(term Term) uint64 {
	h := xxhash.New()
	writeTerm(h, term)
	return h.Sum64()
}

func writeTerm(h *xxhash.Digest, term Term) {
	switch t := term.(type) {
	case Wildcard:
		h.WriteString("W;")
	case Undefined:
		h.WriteString("U;")
	case Scalar:
		fmt.Fprintf(h, "S:%v;", t.Value)
	case Range:
		fmt.Fprintf(h, "R:%v,%v,%v,%v;", t.Bound.Min, t.Bound.Max, t.Bound.ClosedLower, t.Bound.ClosedUpper)
	case Substring:
		fmt.Fprintf(h, "B:%s;", t.Pattern)
	case ElementRef:
		fmt.Fprintf(h, "E:%d;", t.EID)
	case Set:
		h.WriteString("O(")
		for _, it := range t.Items {
			writeTerm(h, it)
		}
		h.WriteString(");")
	case Neg:
		h.WriteString("N(")
		for _, s := range t.Subs {
			writeTerm(h, s)
		}
		h.WriteString(");")
	case AV:
		h.WriteString("A{")
		for _, f := range t.Fields {
			fmt.Fprintf(h, "%s:", f.Attr)
			writeTerm(h, f.Value)
		}
		h.WriteString("};")
	default:
		fmt.Fprintf(h, "?%T;", term)
	}
}
