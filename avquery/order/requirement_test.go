package order

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbrown/avquery"
)

type recordingRangeListener struct {
	added, removed   [][]avquery.EID
	removedAll       int
	posUpdates       []PosUpdate
}

func (l *recordingRangeListener) AddMatches(eids []avquery.EID) {
	l.added = append(l.added, append([]avquery.EID{}, eids...))
}
func (l *recordingRangeListener) RemoveMatches(eids []avquery.EID) {
	l.removed = append(l.removed, append([]avquery.EID{}, eids...))
}
func (l *recordingRangeListener) UpdatePos(u PosUpdate) {
	l.posUpdates = append(l.posUpdates, u)
}
func (l *recordingRangeListener) RemoveAllMatches() {
	l.removedAll++
}

// TestScenario_S5_RangeOrderRequirement mirrors spec.md scenario S5.
func TestScenario_S5_RangeOrderRequirement(t *testing.T) {
	// EIDs 1..5 stand in for a..e under alpha order.
	const a, b, c, d, e = avquery.EID(1), avquery.EID(2), avquery.EID(3), avquery.EID(4), avquery.EID(5)

	tree := NewTree(numericCompare)
	for _, eid := range []avquery.EID{a, b, c, d, e} {
		tree.InsertElement(eid)
	}

	listener := &recordingRangeListener{}
	lo := OffsetBound{Offset: 1}
	hi := OffsetBound{Offset: 3}
	req := NewRangeOrderRequirement(tree, lo, hi, true, listener)
	defer req.Destroy()

	tree.NotifyListeners()
	require.Len(t, listener.added, 1)
	require.True(t, sameSet(listener.added[0], []avquery.EID{b, c, d}), "expected initial addMatches([b,c,d]), got %v", listener.added)

	// Reverse the comparator: set membership in the window is unchanged,
	// only the order within it, so only updatePos should fire.
	tree.UpdateCompareFunc(reverseCompare)
	tree.RefreshOrder()
	tree.NotifyListeners()

	require.Len(t, listener.added, 1, "expected no set-level delta on pure reorder")
	require.Empty(t, listener.removed, "expected no set-level delta on pure reorder")
	require.Len(t, listener.posUpdates, 1, "expected one updatePos after reorder")
	u := listener.posUpdates[0]
	require.Equal(t, []avquery.EID{d, c, b}, u.OrderedEIDs)
	require.Equal(t, 1, u.FirstOffset)
	require.Equal(t, 3, u.LastOffset)
	require.Equal(t, 5, u.SetSize)

	// Remove c: the window shrinks to size 4, so it now also gains 'a'.
	tree.RemoveElement(c)
	tree.NotifyListeners()

	require.Len(t, listener.removed, 1)
	require.True(t, sameSet(listener.removed[0], []avquery.EID{c}), "expected removeMatches([c]), got %v", listener.removed)
	require.Len(t, listener.added, 2)
	require.True(t, sameSet(listener.added[1], []avquery.EID{a}), "expected addMatches([a]) as the window absorbs the vacated slot, got %v", listener.added)
	require.Len(t, listener.posUpdates, 2, "expected a second updatePos after the removal")
	u2 := listener.posUpdates[1]
	require.Equal(t, []avquery.EID{d, b, a}, u2.OrderedEIDs)
	require.Equal(t, 4, u2.SetSize)
}

func sameSet(got, want []avquery.EID) bool {
	if len(got) != len(want) {
		return false
	}
	seen := make(map[avquery.EID]bool, len(got))
	for _, e := range got {
		seen[e] = true
	}
	for _, e := range want {
		if !seen[e] {
			return false
		}
	}
	return true
}

type recordingElementListener struct {
	calls []struct {
		eid    avquery.EID
		offset int
		absent bool
	}
}

func (l *recordingElementListener) UpdateOffset(eid avquery.EID, offset int, absent bool) {
	l.calls = append(l.calls, struct {
		eid    avquery.EID
		offset int
		absent bool
	}{eid, offset, absent})
}

func TestElementOrderRequirement(t *testing.T) {
	tree := NewTree(numericCompare)
	for _, e := range []avquery.EID{1, 2, 3} {
		tree.InsertElement(e)
	}
	listener := &recordingElementListener{}
	req := NewElementOrderRequirement(tree, 2, false, listener)
	defer req.Destroy()

	tree.NotifyListeners()
	require.Len(t, listener.calls, 1)
	require.Equal(t, 1, listener.calls[0].offset, "expected initial offset 1")
	require.False(t, listener.calls[0].absent)

	tree.RemoveElement(1)
	tree.NotifyListeners()
	require.Equal(t, 0, listener.calls[len(listener.calls)-1].offset, "expected offset to shift to 0 after removing a predecessor")

	tree.RemoveElement(2)
	tree.NotifyListeners()
	last := listener.calls[len(listener.calls)-1]
	require.True(t, last.absent, "expected absent after removing the tracked element, got %+v", last)
}

func TestElementOrderRequirementBackward(t *testing.T) {
	tree := NewTree(numericCompare)
	for _, e := range []avquery.EID{1, 2, 3} {
		tree.InsertElement(e)
	}
	listener := &recordingElementListener{}
	req := NewElementOrderRequirement(tree, 1, true, listener)
	defer req.Destroy()
	tree.NotifyListeners()
	require.Equal(t, 2, listener.calls[0].offset, "expected backward offset of first element to be 2 (last)")
}
