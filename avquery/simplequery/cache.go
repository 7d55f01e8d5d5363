package simplequery

import (
	"sort"
	"sync"

	"github.com/wbrown/avquery"
)

// Result is the data object ExecuteAndCache attaches its lazy indices to.
// Sharing one Result across several scalar/range executors amortizes index
// construction across all of them, the way IndexedMemoryMatcher amortizes
// its hash indices across every pattern that touches the same datom set.
type Result struct {
	Data   []Value
	Idents []avquery.EID

	mu      sync.Mutex
	indices map[indexKey]*builtIndex
}

type indexKey struct {
	attr string // "" for a root-level (non-AV) executor
	kind Kind
}

type builtIndex struct {
	once sync.Once

	// scalar index: value -> data positions, in ascending position order.
	scalar map[interface{}][]int

	// range index: positions sorted by numeric value, for binary search.
	sortedPositions []int
	sortedValues    []float64

	// disabled when the indexed data actually contains range-typed Keys —
	// the index can't answer overlap queries against a scalar structure.
	disabled bool
}

func (r *Result) indexFor(key indexKey) *builtIndex {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indices == nil {
		r.indices = make(map[indexKey]*builtIndex)
	}
	idx, ok := r.indices[key]
	if !ok {
		idx = &builtIndex{}
		r.indices[key] = idx
	}
	return idx
}

func leafValue(v Value, attr string) (avquery.Key, bool) {
	if attr == "" {
		if !v.IsLeaf {
			return avquery.Key{}, false
		}
		return v.Key, true
	}
	sub, ok := v.Attrs[attr]
	if !ok || !sub.IsLeaf {
		return avquery.Key{}, false
	}
	return sub.Key, true
}

func (idx *builtIndex) build(result *Result, attr string) {
	idx.once.Do(func() {
		idx.scalar = make(map[interface{}][]int)
		for i, v := range result.Data {
			k, ok := leafValue(v, attr)
			if !ok {
				continue
			}
			if k.IsRange() {
				idx.disabled = true
				return
			}
			idx.scalar[k.Value] = append(idx.scalar[k.Value], i)
		}
		positions := make([]int, 0, len(result.Data))
		values := make([]float64, 0, len(result.Data))
		for i, v := range result.Data {
			k, ok := leafValue(v, attr)
			if !ok {
				continue
			}
			f, isNum := toFloat(k.Value)
			if !isNum {
				continue
			}
			positions = append(positions, i)
			values = append(values, f)
		}
		sort.Sort(byValue{positions, values})
		idx.sortedPositions = positions
		idx.sortedValues = values
	})
}

type byValue struct {
	positions []int
	values    []float64
}

func (b byValue) Len() int { return len(b.positions) }
func (b byValue) Less(i, j int) bool {
	return b.values[i] < b.values[j]
}
func (b byValue) Swap(i, j int) {
	b.positions[i], b.positions[j] = b.positions[j], b.positions[i]
	b.values[i], b.values[j] = b.values[j], b.values[i]
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// ExecuteAndCache is available on range and scalar-value-matching
// selections (CanCache() == true). It builds, on first use for this
// (Result, executor-shape) pairing, either a scalar hash index or a sorted
// binary-search array, and reuses it on subsequent calls against the same
// Result. Calling it on an executor with CanCache() == false is a
// programmer error.
func (e *Executor) ExecuteAndCache(result *Result, outIdents *[]avquery.EID, outPositions *[]DataPosition) []Value {
	if !e.canCache {
		avquery.Fatalf("ExecuteAndCache", "executor kind %v does not support caching", e.kind)
	}

	key := indexKey{attr: e.attr, kind: e.kind}
	idx := result.indexFor(key)
	idx.build(result, e.attr)

	if idx.disabled {
		return e.Execute(result.Data, result.Idents, outIdents, outPositions)
	}

	switch e.kind {
	case KindSingleAttrSimpleValue, KindSimpleValueSelection:
		var v interface{}
		for val := range e.values {
			v = val
		}
		return e.collectPositions(result, idx.scalar[v], outIdents, outPositions)

	case KindSingleAttrSimpleValueMultiple, KindSimpleValueMultipleSelection:
		var positions []int
		for val := range e.values {
			positions = append(positions, idx.scalar[val]...)
		}
		sort.Ints(positions)
		return e.collectPositions(result, positions, outIdents, outPositions)

	case KindSingleAttrRange, KindSimpleRangeCC, KindSimpleRangeCO, KindSimpleRangeOC, KindSimpleRangeOO:
		lo, hi := rangeBounds(e.rng, idx.sortedValues)
		positions := append([]int{}, idx.sortedPositions[lo:hi]...)
		sort.Ints(positions)
		return e.collectPositions(result, positions, outIdents, outPositions)

	default:
		avquery.Fatalf("ExecuteAndCache", "executor kind %v does not support caching", e.kind)
		return nil
	}
}

// rangeBounds finds [lo, hi) into sortedValues covering e.rng via binary
// search, honoring open/closed endpoints.
func rangeBounds(r avquery.RangeValue, sortedValues []float64) (int, int) {
	lo := 0
	if r.Min != nil {
		min, _ := toFloat(r.Min)
		if r.ClosedLower {
			lo = sort.SearchFloat64s(sortedValues, min)
		} else {
			lo = sort.Search(len(sortedValues), func(i int) bool { return sortedValues[i] > min })
		}
	}
	hi := len(sortedValues)
	if r.Max != nil {
		max, _ := toFloat(r.Max)
		if r.ClosedUpper {
			hi = sort.Search(len(sortedValues), func(i int) bool { return sortedValues[i] > max })
		} else {
			hi = sort.SearchFloat64s(sortedValues, max)
		}
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func (e *Executor) collectPositions(result *Result, positions []int, outIdents *[]avquery.EID, outPositions *[]DataPosition) []Value {
	out := make([]Value, 0, len(positions))
	for _, i := range positions {
		out = append(out, result.Data[i])
		if outIdents != nil && result.Idents != nil {
			*outIdents = append(*outIdents, result.Idents[i])
		}
		if outPositions != nil {
			*outPositions = append(*outPositions, DataPosition{SourceIndex: i})
		}
	}
	return out
}
