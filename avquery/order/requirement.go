package order

import "github.com/wbrown/avquery"

// OffsetBound is one endpoint of a RangeOrderRequirement's window: an
// offset counted from the front (FromEnd false) or the back (FromEnd true)
// of the current ordering, inclusive unless Open excludes it.
type OffsetBound struct {
	Offset  int
	FromEnd bool
	Open    bool
}

// resolveLower/resolveUpper turn an OffsetBound into a concrete forward
// (0-based) index against a set of size setSize. Mixing one FromEnd bound
// with one from-the-front bound ("complement") is handled transparently:
// each bound resolves independently against the current size.
func resolveLower(b OffsetBound, setSize int) int {
	idx := b.Offset
	if b.FromEnd {
		idx = setSize - 1 - b.Offset
	}
	if b.Open {
		idx++
	}
	return idx
}

func resolveUpper(b OffsetBound, setSize int) int {
	idx := b.Offset
	if b.FromEnd {
		idx = setSize - 1 - b.Offset
	}
	if b.Open {
		idx--
	}
	return idx
}

// PosUpdate is what RangeListener.UpdatePos receives. When only the set
// size changed and the window's order did not, OrderedEIDs is nil and
// FirstOffset/LastOffset are -1 — updatePos is not guaranteed incremental,
// so consumers must reconcile against GetOrderedMatches or SetSize rather
// than diff PosUpdates against each other.
type PosUpdate struct {
	OrderedEIDs []avquery.EID
	FirstOffset int
	LastOffset  int
	SetSize     int
	SizeOnly    bool
}

// RangeListener receives incremental notifications from a
// RangeOrderRequirement.
type RangeListener interface {
	AddMatches(eids []avquery.EID)
	RemoveMatches(eids []avquery.EID)
	UpdatePos(update PosUpdate)
	RemoveAllMatches()
}

// RangeOrderRequirement observes a window of offsets [lo, hi] in the tree's
// current order and reports the elements that fall in it, plus (when
// TrackOrder is set) their relative positions.
type RangeOrderRequirement struct {
	tree       *Tree
	lo, hi     OffsetBound
	trackOrder bool
	listener   RangeListener

	current     map[avquery.EID]struct{}
	lastOrdered []avquery.EID
	lastSize    int
	everNotified bool
}

// NewRangeOrderRequirement registers a new range requirement on tree. The
// requirement starts empty; its first AddMatches batch arrives on the next
// NotifyListeners call.
func NewRangeOrderRequirement(tree *Tree, lo, hi OffsetBound, trackOrder bool, listener RangeListener) *RangeOrderRequirement {
	r := &RangeOrderRequirement{
		tree:       tree,
		lo:         lo,
		hi:         hi,
		trackOrder: trackOrder,
		listener:   listener,
		current:    make(map[avquery.EID]struct{}),
	}
	tree.register(r)
	return r
}

// Destroy detaches the requirement from its tree.
func (r *RangeOrderRequirement) Destroy() {
	r.tree.unregister(r)
}

// CurrentMatches returns the requirement's last-materialized match set,
// i.e. the view as of the most recent NotifyListeners call (not reflecting
// any mutation that hasn't been flushed yet).
func (r *RangeOrderRequirement) CurrentMatches() []avquery.EID {
	out := make([]avquery.EID, 0, len(r.current))
	for e := range r.current {
		out = append(out, e)
	}
	return out
}

// UpdateOffsets changes the requirement's window; the change takes effect
// on the next NotifyListeners call.
func (r *RangeOrderRequirement) UpdateOffsets(lo, hi OffsetBound) {
	r.lo, r.hi = lo, hi
}

func (r *RangeOrderRequirement) onNotify(t *Tree) {
	setSize := t.Len()
	loIdx := resolveLower(r.lo, setSize)
	hiIdx := resolveUpper(r.hi, setSize)
	ordered := t.RangeByOffset(loIdx, hiIdx)

	newSet := make(map[avquery.EID]struct{}, len(ordered))
	for _, e := range ordered {
		newSet[e] = struct{}{}
	}

	var removed, added []avquery.EID
	for e := range r.current {
		if _, ok := newSet[e]; !ok {
			removed = append(removed, e)
		}
	}
	for _, e := range ordered {
		if _, ok := r.current[e]; !ok {
			added = append(added, e)
		}
	}

	if len(newSet) == 0 && len(r.current) > 0 {
		r.listener.RemoveAllMatches()
	} else {
		if len(removed) > 0 {
			r.listener.RemoveMatches(removed)
		}
		if len(added) > 0 {
			r.listener.AddMatches(added)
		}
	}
	r.current = newSet

	if r.trackOrder {
		orderChanged := !equalEIDSlices(ordered, r.lastOrdered)
		sizeChanged := setSize != r.lastSize
		switch {
		case orderChanged && r.everNotified:
			r.listener.UpdatePos(PosUpdate{OrderedEIDs: ordered, FirstOffset: loIdx, LastOffset: hiIdx, SetSize: setSize})
		case sizeChanged && r.everNotified:
			r.listener.UpdatePos(PosUpdate{SizeOnly: true, FirstOffset: -1, LastOffset: -1, SetSize: setSize})
		}
		r.lastOrdered = append([]avquery.EID{}, ordered...)
		r.lastSize = setSize
	}
	r.everNotified = true
}

func equalEIDSlices(a, b []avquery.EID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ElementListener receives incremental offset notifications from an
// ElementOrderRequirement.
type ElementListener interface {
	UpdateOffset(eid avquery.EID, offset int, absent bool)
}

// ElementOrderRequirement tracks a single EID's offset in the tree's
// current order, in the requested direction.
type ElementOrderRequirement struct {
	tree     *Tree
	eid      avquery.EID
	backward bool
	listener ElementListener

	lastOffset   int
	lastAbsent   bool
	everNotified bool
}

// NewElementOrderRequirement registers a new element requirement on tree.
func NewElementOrderRequirement(tree *Tree, eid avquery.EID, backward bool, listener ElementListener) *ElementOrderRequirement {
	r := &ElementOrderRequirement{tree: tree, eid: eid, backward: backward, listener: listener}
	tree.register(r)
	return r
}

// Destroy detaches the requirement from its tree.
func (r *ElementOrderRequirement) Destroy() {
	r.tree.unregister(r)
}

func (r *ElementOrderRequirement) onNotify(t *Tree) {
	forward, ok := t.OffsetOf(r.eid)
	absent := !ok
	offset := 0
	if ok {
		if r.backward {
			offset = t.Len() - 1 - forward
		} else {
			offset = forward
		}
	}
	if !r.everNotified || absent != r.lastAbsent || (!absent && offset != r.lastOffset) {
		r.listener.UpdateOffset(r.eid, offset, absent)
		r.lastAbsent = absent
		r.lastOffset = offset
		r.everNotified = true
	}
}
