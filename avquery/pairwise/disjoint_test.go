package pairwise

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func closedInterval(lo, hi int64) Interval {
	return Interval{Lo: Bound{Value: lo, Open: false}, Hi: Bound{Value: hi, Open: false}}
}

func materialize(d *Disjoint) map[CoverID]Interval {
	out := map[CoverID]Interval{}
	for _, c := range d.Covers() {
		out[c.ID] = c.Interval
	}
	return out
}

// applyEditScript is the test-side replay used to check invariant 4: given
// a previous materialization and the edit script a mutation returned,
// reconstruct what the materialization should now look like, independent of
// querying the Disjoint directly.
func applyEditScript(prev map[CoverID]Interval, es EditScript) map[CoverID]Interval {
	out := map[CoverID]Interval{}
	for k, v := range prev {
		out[k] = v
	}
	for _, id := range es.RemovedIntervals {
		delete(out, id)
	}
	for _, r := range es.RestoredIntervals {
		out[r.ID] = r.Interval
	}
	if es.CoveringInterval != nil {
		out[es.CoveringInterval.ID] = es.CoveringInterval.Interval
	}
	if es.ModifiedInterval != nil {
		out[es.ModifiedInterval.ID] = es.ModifiedInterval.Interval
	}
	return out
}

func TestInsertDisjointNonOverlapping(t *testing.T) {
	d := New()
	es1 := d.Insert(1, closedInterval(0, 5))
	require.NotNil(t, es1.CoveringInterval, "expected a fresh covering interval")
	require.Nil(t, es1.ModifiedInterval)

	es2 := d.Insert(2, closedInterval(10, 15))
	require.NotNil(t, es2.CoveringInterval, "expected a second disjoint covering interval")
	require.Equal(t, 2, d.CoverCount())
}

// TestScenario_S4_OverlappingQueryValues mirrors spec.md scenario S4.
func TestScenario_S4_OverlappingQueryValues(t *testing.T) {
	d := New()
	d.Insert(1, closedInterval(0, 10))       // id A
	es := d.Insert(2, closedInterval(5, 15)) // id B

	require.Equal(t, 1, d.CoverCount(), "expected overlapping intervals to merge into one cover")
	cover, ok := d.CoverOf(2)
	require.True(t, ok, "expected member 2 to be covered")
	require.Equal(t, int64(0), cover.Interval.Lo.Value.(int64))
	require.Equal(t, int64(15), cover.Interval.Hi.Value.(int64))
	require.True(t, es.ModifiedInterval != nil || es.CoveringInterval != nil, "expected insert to report a change")

	// Removing A should leave the cover registered as exactly B's interval [5,15].
	rm := d.Remove(1)
	require.NotNil(t, rm.ModifiedInterval, "expected a modified (shrunk) cover after removing A")
	cover2, ok := d.CoverOf(2)
	require.True(t, ok, "expected member 2 to still be covered")
	require.Equal(t, int64(5), cover2.Interval.Lo.Value.(int64))
	require.Equal(t, int64(15), cover2.Interval.Hi.Value.(int64))
}

func TestRemoveSplitsCoverIntoRestoredPieces(t *testing.T) {
	d := New()
	d.Insert(1, closedInterval(0, 5))  // A
	d.Insert(2, closedInterval(3, 8))  // B: bridges A and C
	d.Insert(3, closedInterval(7, 12)) // C

	require.Equal(t, 1, d.CoverCount(), "expected one bridged cover")

	es := d.Remove(2) // remove the bridge
	require.Len(t, es.RemovedIntervals, 1, "expected the bridged cover to be removed")
	require.Len(t, es.RestoredIntervals, 2, "expected the cover to split into two restored pieces")

	gotBounds := make([][2]int64, 0, 2)
	for _, r := range es.RestoredIntervals {
		gotBounds = append(gotBounds, [2]int64{r.Interval.Lo.Value.(int64), r.Interval.Hi.Value.(int64)})
	}
	sort.Slice(gotBounds, func(i, j int) bool { return gotBounds[i][0] < gotBounds[j][0] })
	want := [][2]int64{{0, 5}, {7, 12}}
	require.Equal(t, want, gotBounds)
}

// TestInvariant4_EditScriptReplay checks spec.md invariant 4: replaying a
// modifyInterval call's edit script against the prior materialization
// reproduces the new materialization.
func TestInvariant4_EditScriptReplay(t *testing.T) {
	d := New()
	d.Insert(1, closedInterval(0, 5))
	d.Insert(2, closedInterval(20, 25))
	prev := materialize(d)

	es := d.Modify(1, closedInterval(18, 22)) // now overlaps member 2's cover
	replayed := applyEditScript(prev, es)
	actual := materialize(d)

	require.Equal(t, actual, replayed, "replayed materialization does not match actual")
}

func TestRemoveUnknownIDIsNoOp(t *testing.T) {
	d := New()
	d.Insert(1, closedInterval(0, 5))
	es := d.Remove(999)
	require.True(t, es.IsEmpty(), "expected removing an unknown id to be a no-op")
}

func TestOpenBoundsDoNotMergeAtTouchingPoint(t *testing.T) {
	d := New()
	d.Insert(1, Interval{Lo: Bound{Value: int64(0), Open: false}, Hi: Bound{Value: int64(5), Open: true}})
	d.Insert(2, Interval{Lo: Bound{Value: int64(5), Open: false}, Hi: Bound{Value: int64(10), Open: false}})
	require.Equal(t, 2, d.CoverCount(), "expected [0,5) and [5,10] to remain disjoint (touching but not overlapping)")
}

func TestClosedBoundsMergeAtTouchingPoint(t *testing.T) {
	d := New()
	d.Insert(1, closedInterval(0, 5))
	d.Insert(2, closedInterval(5, 10))
	require.Equal(t, 1, d.CoverCount(), "expected [0,5] and [5,10] to merge at the shared closed boundary")
}
