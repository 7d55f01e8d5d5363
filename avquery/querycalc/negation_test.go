package querycalc

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbrown/avquery"
	"github.com/wbrown/avquery/internal/memindexer"
)

// fakeSub is a minimal Sub whose match set is driven directly by the test,
// standing in for a SimpleQueryCalc sub-node.
type fakeSub struct {
	listeners []MatchListener
	matches   map[avquery.EID]struct{}
}

func newFakeSub(initial ...avquery.EID) *fakeSub {
	s := &fakeSub{matches: make(map[avquery.EID]struct{})}
	for _, e := range initial {
		s.matches[e] = struct{}{}
	}
	return s
}

func (s *fakeSub) AddListener(l MatchListener) { s.listeners = append(s.listeners, l) }
func (s *fakeSub) RemoveListener(l MatchListener) {
	for i, existing := range s.listeners {
		if existing == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}
func (s *fakeSub) GetMatchesAsObj() map[avquery.EID]struct{} { return s.matches }

func (s *fakeSub) remove(eid avquery.EID) {
	delete(s.matches, eid)
	for _, l := range s.listeners {
		l.RemoveMatches([]avquery.EID{eid})
	}
}

func sorted(eids []avquery.EID) []avquery.EID {
	out := append([]avquery.EID{}, eids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TestScenario_S3_NegationOfUnion mirrors spec.md scenario S3.
func TestScenario_S3_NegationOfUnion(t *testing.T) {
	idx := memindexer.New()
	const pathX avquery.PID = 1
	for eid := avquery.EID(1); eid <= 5; eid++ {
		idx.AddElement(pathX, eid, avquery.ScalarKey(avquery.KeyTypeNumber, float64(eid)))
	}

	neg := NewNegationQueryCalc(pathX, 1, idx)
	s1 := newFakeSub(1, 2)
	s2 := newFakeSub(4)
	neg.AddSelectionSub(s1)
	neg.AddSelectionSub(s2)

	require.Equal(t, []avquery.EID{3, 5}, sorted(neg.GetMatches()), "expected neg matches {3,5}")

	listener := &recordingListener{}
	neg.AddListener(listener)

	// Removing 4 from data: the indexer-path removal is delivered first
	// (the scheduler's longer-path-first guarantee), so by the time S2's
	// own removal of 4 arrives it finds count already below the match
	// boundary and no spurious transient match is ever published.
	idx.RemoveElement(4)
	s2.remove(4)

	require.Equal(t, []avquery.EID{3, 5}, sorted(neg.GetMatches()), "expected neg matches to stay {3,5} after 4 is deleted")
	for _, batch := range listener.added {
		for _, e := range batch {
			require.NotEqual(t, avquery.EID(4), e, "expected no spurious transient add(4), got add batches %v", listener.added)
		}
	}

	// Removing S2 entirely: neg universe is now {1,2,3,5}; only S1's
	// matches {1,2} remain excluded, so neg -> {3,5} unioned with nothing
	// new since 4 is already gone.
	neg.RemoveSelectionSub(s2)
	require.Equal(t, []avquery.EID{3, 5}, sorted(neg.GetMatches()), "expected neg matches {3,5} after removing S2")
}

// TestNegationProjectionSubAlgebra exercises SPEC_FULL.md §4.3's
// projection-adds-matches mode: once a projection sub is registered, the
// indexer's own membership contribution is suppressed and replaced by the
// projection sub's own selection matches.
func TestNegationProjectionSubAlgebra(t *testing.T) {
	idx := memindexer.New()
	const pathX avquery.PID = 1
	for eid := avquery.EID(1); eid <= 5; eid++ {
		idx.AddElement(pathX, eid, avquery.ScalarKey(avquery.KeyTypeNumber, float64(eid)))
	}

	neg := NewNegationQueryCalc(pathX, 1, idx)

	proj := newFakeSub(1, 2)
	neg.AddProjectionSub(proj)
	require.True(t, neg.projAddsMatches, "expected registering a projection sub to flip into projection-adds-matches mode")
	require.Equal(t, []avquery.EID{1, 2}, sorted(neg.GetMatches()), "expected indexer membership to be replaced by the projection sub's own matches")

	sel := newFakeSub(2)
	neg.AddSelectionSub(sel)
	require.Equal(t, []avquery.EID{1}, sorted(neg.GetMatches()), "expected eid 2 to be excluded once a selection sub also matches it")

	neg.RemoveSelectionSub(sel)
	require.Equal(t, []avquery.EID{1, 2}, sorted(neg.GetMatches()))

	neg.RemoveProjectionSub(proj)
	require.False(t, neg.projAddsMatches, "expected removing the last projection sub to flip back to indexer-driven membership")
	require.Equal(t, []avquery.EID{1, 2, 3, 4, 5}, sorted(neg.GetMatches()), "expected the indexer universe to be restored")
}

// TestNegationSuspendResume exercises the suspension protocol: GetMatches
// must return a stable snapshot while suspended, and Resume must emit
// exactly one delta covering everything that changed in the meantime.
func TestNegationSuspendResume(t *testing.T) {
	idx := memindexer.New()
	const pathX avquery.PID = 1
	for eid := avquery.EID(1); eid <= 3; eid++ {
		idx.AddElement(pathX, eid, avquery.ScalarKey(avquery.KeyTypeNumber, float64(eid)))
	}
	neg := NewNegationQueryCalc(pathX, 1, idx)
	neg.AddSelectionSub(newFakeSub()) // trigger registration against the indexer universe
	require.Equal(t, []avquery.EID{1, 2, 3}, sorted(neg.GetMatches()))

	listener := &recordingListener{}
	neg.AddListener(listener)

	neg.Suspend()
	idx.RemoveElement(2)
	idx.AddElement(pathX, 4, avquery.ScalarKey(avquery.KeyTypeNumber, 4.0))
	require.Equal(t, []avquery.EID{1, 2, 3}, sorted(neg.GetMatches()), "expected a stable snapshot while suspended")

	neg.Resume()
	require.Equal(t, []avquery.EID{1, 3, 4}, sorted(neg.GetMatches()), "expected the live matches once resumed")
	require.Equal(t, [][]avquery.EID{{4}}, listener.added, "expected exactly one add batch on resume")
	require.Equal(t, [][]avquery.EID{{2}}, listener.removed, "expected exactly one remove batch on resume")
}

// TestNegationConsumerAPI exercises GetFullyRaisedMatches,
// FilterMatchPositions, and the AddProjMatches/GetProjMatches/
// RemoveProjMatches projection-forwarding trio.
func TestNegationConsumerAPI(t *testing.T) {
	idx := memindexer.New()
	const pathX avquery.PID = 1
	for eid := avquery.EID(1); eid <= 3; eid++ {
		idx.AddElement(pathX, eid, avquery.ScalarKey(avquery.KeyTypeNumber, float64(eid)))
	}
	neg := NewNegationQueryCalc(pathX, 1, idx)
	sel := newFakeSub(2)
	neg.AddSelectionSub(sel)
	require.Equal(t, []avquery.EID{1, 3}, sorted(neg.GetMatches()))

	require.Equal(t, []avquery.EID{1, 3}, sorted(neg.GetFullyRaisedMatches()))

	positions := neg.FilterMatchPositions([]avquery.EID{2, 3, 1})
	require.Equal(t, []int{1, 2}, positions, "expected positions 1 and 2 (eids 3 and 1) to be reported")

	const resultID uint64 = 9
	neg.AddProjMatches([]avquery.EID{1, 2, 3}, resultID)
	require.Equal(t, []avquery.EID{1, 3}, sorted(neg.GetProjMatches(resultID)))

	neg.RemoveProjMatches([]avquery.EID{1}, resultID)
	require.Equal(t, []avquery.EID{3}, sorted(neg.GetProjMatches(resultID)))
}

// TestNegationPendingRemovalBufferPreventsTransientMatch exercises the
// buffering path directly: with an indexer-path removal still pending for
// this node, a sub's removal must be deferred rather than applied
// immediately.
func TestNegationPendingRemovalBufferPreventsTransientMatch(t *testing.T) {
	idx := memindexer.New()
	const pathX avquery.PID = 1
	for eid := avquery.EID(1); eid <= 3; eid++ {
		idx.AddElement(pathX, eid, avquery.ScalarKey(avquery.KeyTypeNumber, float64(eid)))
	}
	neg := NewNegationQueryCalc(pathX, 1, idx)
	s1 := newFakeSub(2)
	neg.AddSelectionSub(s1)

	idx.SetRemovalsPending(pathX, true)
	s1.remove(2) // buffered: count for 2 stays at 3 (1 indexer + 2 sub) for now

	_, isMatch := neg.GetMatchesAsObj()[2]
	require.False(t, isMatch, "expected eid 2 to remain a non-match while the removal is buffered")
	require.Len(t, neg.pendingSubRemovals, 1, "expected the sub removal to be buffered")

	idx.SetRemovalsPending(pathX, false)
	idx.RemoveElement(2) // drains the buffer once the indexer-path removal lands
	_, isMatch = neg.GetMatchesAsObj()[2]
	require.False(t, isMatch, "expected eid 2 to be fully gone, not a match")
	require.Empty(t, neg.pendingSubRemovals, "expected the pending buffer to drain")
}
