package querycalc

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbrown/avquery"
	"github.com/wbrown/avquery/internal/memindexer"
)

type recordingListener struct {
	added, removed [][]avquery.EID
}

func (l *recordingListener) AddMatches(eids []avquery.EID) {
	l.added = append(l.added, append([]avquery.EID{}, eids...))
}
func (l *recordingListener) RemoveMatches(eids []avquery.EID) {
	l.removed = append(l.removed, append([]avquery.EID{}, eids...))
}

func sortedEIDs(m map[avquery.EID]struct{}) []avquery.EID {
	out := make([]avquery.EID, 0, len(m))
	for e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TestScenario_S1_SimpleQueryCalc mirrors spec.md scenario S1 at the
// query-calc layer (as opposed to the compiler layer covered in
// simplequery's own S1 test): data at path x is [{a:1},{a:2},{a:2},{a:3}]
// with identifiers e1..e4; a SimpleQueryCalc registered with value 2
// matches e2, e3.
func TestScenario_S1_SimpleQueryCalc(t *testing.T) {
	idx := memindexer.New()
	const pathX avquery.PID = 1
	idx.AddElement(pathX, 1, avquery.ScalarKey(avquery.KeyTypeNumber, 1.0))
	idx.AddElement(pathX, 2, avquery.ScalarKey(avquery.KeyTypeNumber, 2.0))
	idx.AddElement(pathX, 3, avquery.ScalarKey(avquery.KeyTypeNumber, 2.0))
	idx.AddElement(pathX, 4, avquery.ScalarKey(avquery.KeyTypeNumber, 3.0))

	node := NewSimpleQueryCalc(pathX, 1, idx)
	node.AddValue(100, avquery.KeyTypeNumber, avquery.ScalarKey(avquery.KeyTypeNumber, 2.0))

	got := sortedEIDs(node.GetMatchesAsObj())
	require.Equal(t, []avquery.EID{2, 3}, got)

	node.RemoveValue(100)
	require.Empty(t, sortedEIDs(node.GetMatchesAsObj()), "expected no matches after RemoveValue")

	node.AddValue(100, avquery.KeyTypeNumber, avquery.ScalarKey(avquery.KeyTypeNumber, 2.0))
	require.Equal(t, []avquery.EID{2, 3}, sortedEIDs(node.GetMatchesAsObj()), "expected matches restored to [e2,e3]")
}

// TestScenario_S4_OverlappingQueryValues mirrors spec.md scenario S4 at
// the query-calc layer: query values r(0,10) id A and r(5,15) id B merge
// into one registered interval [0,15]; removing A leaves [5,15]
// registered under B's cover id.
func TestScenario_S4_OverlappingQueryValues(t *testing.T) {
	idx := memindexer.New()
	const pathX avquery.PID = 1
	for eid := avquery.EID(1); eid <= 20; eid++ {
		idx.AddElement(pathX, eid, avquery.ScalarKey(avquery.KeyTypeNumber, float64(eid)))
	}

	node := NewSimpleQueryCalc(pathX, 1, idx)
	rangeA := avquery.RangeValue{Min: 0.0, Max: 10.0, ClosedLower: true, ClosedUpper: true}
	rangeB := avquery.RangeValue{Min: 5.0, Max: 15.0, ClosedLower: true, ClosedUpper: true}
	node.AddValue(1 /* A */, avquery.KeyTypeNumber, avquery.RangeKey(rangeA))
	node.AddValue(2 /* B */, avquery.KeyTypeNumber, avquery.RangeKey(rangeB))

	require.Equal(t, 1, node.disjointFor(avquery.KeyTypeNumber).CoverCount(), "expected A and B to merge into one cover")

	node.RemoveValue(1) // remove A
	require.Equal(t, 1, node.disjointFor(avquery.KeyTypeNumber).CoverCount(), "expected one cover to remain registered as B")
	ci, ok := node.disjointFor(avquery.KeyTypeNumber).CoverOf(cover(2))
	require.True(t, ok)
	require.Equal(t, 5.0, ci.Interval.Lo.Value)
	require.Equal(t, 15.0, ci.Interval.Hi.Value)
}

// TestSimpleQueryCalcProjMatches exercises the Consumer API's projection-
// forwarding methods: AddProjMatches only keeps the subset the node
// actually matches, GetProjMatches reports it back per resultID, and
// RemoveProjMatches retracts it.
func TestSimpleQueryCalcProjMatches(t *testing.T) {
	idx := memindexer.New()
	const pathX avquery.PID = 1
	idx.AddElement(pathX, 1, avquery.ScalarKey(avquery.KeyTypeNumber, 1.0))
	idx.AddElement(pathX, 2, avquery.ScalarKey(avquery.KeyTypeNumber, 2.0))
	idx.AddElement(pathX, 3, avquery.ScalarKey(avquery.KeyTypeNumber, 2.0))

	node := NewSimpleQueryCalc(pathX, 1, idx)
	node.AddValue(100, avquery.KeyTypeNumber, avquery.ScalarKey(avquery.KeyTypeNumber, 2.0))

	const resultID uint64 = 7
	node.AddProjMatches([]avquery.EID{1, 2, 3}, resultID)
	require.Equal(t, []avquery.EID{2, 3}, sorted(node.GetProjMatches(resultID)), "expected only the node's own matches to be forwarded")

	node.RemoveProjMatches([]avquery.EID{2}, resultID)
	require.Equal(t, []avquery.EID{3}, sorted(node.GetProjMatches(resultID)))
}

// TestSimpleQueryCalcFullyRaisedAndPositions exercises GetFullyRaisedMatches
// (raising through memindexer's flat GetEntry, a no-op here since it always
// reports no parent) and FilterMatchPositions.
func TestSimpleQueryCalcFullyRaisedAndPositions(t *testing.T) {
	idx := memindexer.New()
	const pathX avquery.PID = 1
	idx.AddElement(pathX, 1, avquery.ScalarKey(avquery.KeyTypeNumber, 1.0))
	idx.AddElement(pathX, 2, avquery.ScalarKey(avquery.KeyTypeNumber, 2.0))

	node := NewSimpleQueryCalc(pathX, 1, idx)
	node.AddValue(100, avquery.KeyTypeNumber, avquery.ScalarKey(avquery.KeyTypeNumber, 2.0))

	require.Equal(t, []avquery.EID{2}, node.GetFullyRaisedMatches())

	positions := node.FilterMatchPositions([]avquery.EID{1, 2})
	require.Equal(t, []int{1}, positions, "expected only index 1 (eid 2) to be reported as a match position")
}

func TestMatchRequiredPredicateTracksSelectionProjection(t *testing.T) {
	idx := memindexer.New()
	const pathX avquery.PID = 1
	idx.AddElement(pathX, 1, avquery.ScalarKey(avquery.KeyTypeNumber, 1.0))

	node := NewSimpleQueryCalc(pathX, 1, idx)
	node.AddValue(1, avquery.KeyTypeNumber, avquery.ScalarKey(avquery.KeyTypeNumber, 1.0))
	require.False(t, node.hasMatches, "expected no match table for a single non-range value with no selection-projection flag")
	node.SetSelectionProjection(true)
	require.True(t, node.hasMatches, "expected a selection-projection node to build its match table")
	node.SetSelectionProjection(false)
	require.False(t, node.hasMatches, "expected the match table to be torn down once selection-projection clears")
}
