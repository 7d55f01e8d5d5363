// Package order implements the shared partial-order tree that backs the
// ordering service: a balanced, comparator-keyed order-statistic tree over
// EIDs, plus the RangeOrderRequirement and ElementOrderRequirement observer
// types that translate tree mutations into incremental position/offset
// notifications for many concurrent consumers.
package order

import (
	"math/rand"

	"github.com/wbrown/avquery"
)

// CompareFunc orders two EIDs; it defines the tree's current total preorder.
type CompareFunc func(a, b avquery.EID) int

type node struct {
	eid      avquery.EID
	priority int64
	size     int
	left     *node
	right    *node
}

func sizeOf(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func recompute(n *node) {
	n.size = 1 + sizeOf(n.left) + sizeOf(n.right)
}

// Tree is a randomized treap augmented with subtree sizes, giving expected
// O(log n) insert/delete/rank/offset operations under any comparator. It is
// kept resorted by re-priority-ing on each refreshOrder rather than
// rebalancing by key, so ties broken by insertion order remain stable across
// a comparator change.
type Tree struct {
	root    *node
	compare CompareFunc
	seq     map[avquery.EID]int64
	nextSeq int64
	rnd     *rand.Rand

	requirements []requirement
}

type requirement interface {
	onNotify(t *Tree)
}

// NewTree creates an order tree under the given comparator. A nil
// comparator is valid and orders everything as equal (by insertion
// sequence) until UpdateCompareFunc supplies a real one.
func NewTree(compare CompareFunc) *Tree {
	if compare == nil {
		compare = func(a, b avquery.EID) int { return 0 }
	}
	return &Tree{
		compare: compare,
		seq:     make(map[avquery.EID]int64),
		rnd:     rand.New(rand.NewSource(1)),
	}
}

// order3 breaks ties in the comparator by insertion sequence, so equal
// elements keep a stable relative order (first inserted sorts first).
func (t *Tree) order3(a, b avquery.EID) int {
	if c := t.compare(a, b); c != 0 {
		return c
	}
	sa, sb := t.seq[a], t.seq[b]
	if sa < sb {
		return -1
	} else if sa > sb {
		return 1
	}
	return 0
}

// Len returns the number of elements currently in the tree.
func (t *Tree) Len() int {
	return sizeOf(t.root)
}

// Contains reports whether eid is currently in the tree.
func (t *Tree) Contains(eid avquery.EID) bool {
	_, ok := t.seq[eid]
	return ok
}

// InsertElement inserts eid under the current comparator. Re-inserting an
// already-present EID is a no-op.
func (t *Tree) InsertElement(eid avquery.EID) {
	if t.Contains(eid) {
		return
	}
	t.seq[eid] = t.nextSeq
	t.nextSeq++
	t.root = t.insert(t.root, eid, t.rnd.Int63())
}

func (t *Tree) insert(n *node, eid avquery.EID, priority int64) *node {
	if n == nil {
		return &node{eid: eid, priority: priority, size: 1}
	}
	if t.order3(eid, n.eid) < 0 {
		n.left = t.insert(n.left, eid, priority)
		if n.left.priority > n.priority {
			n = t.rotateRight(n)
		}
	} else {
		n.right = t.insert(n.right, eid, priority)
		if n.right.priority > n.priority {
			n = t.rotateLeft(n)
		}
	}
	recompute(n)
	return n
}

func (t *Tree) rotateRight(n *node) *node {
	l := n.left
	n.left = l.right
	l.right = n
	recompute(n)
	recompute(l)
	return l
}

func (t *Tree) rotateLeft(n *node) *node {
	r := n.right
	n.right = r.left
	r.left = n
	recompute(n)
	recompute(r)
	return r
}

// RemoveElement removes eid from the tree, if present.
func (t *Tree) RemoveElement(eid avquery.EID) {
	if !t.Contains(eid) {
		return
	}
	t.root = t.remove(t.root, eid)
	delete(t.seq, eid)
}

func (t *Tree) remove(n *node, eid avquery.EID) *node {
	if n == nil {
		return nil
	}
	c := t.order3(eid, n.eid)
	switch {
	case c < 0:
		n.left = t.remove(n.left, eid)
	case c > 0:
		n.right = t.remove(n.right, eid)
	default:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.priority > n.right.priority {
			n = t.rotateRight(n)
			n.right = t.remove(n.right, eid)
		} else {
			n = t.rotateLeft(n)
			n.left = t.remove(n.left, eid)
		}
	}
	if n != nil {
		recompute(n)
	}
	return n
}

// RemoveAllElements empties the tree.
func (t *Tree) RemoveAllElements() {
	t.root = nil
	t.seq = make(map[avquery.EID]int64)
}

// UpdateCompareFunc installs a new comparator. The tree is not resorted
// until RefreshOrder is called, matching the ordering service's suspension
// protocol: consumers see the old order until the refresh cycle completes.
func (t *Tree) UpdateCompareFunc(compare CompareFunc) {
	if compare == nil {
		compare = func(a, b avquery.EID) int { return 0 }
	}
	t.compare = compare
}

// RefreshOrder performs a bulk re-sort of every currently-inserted element
// under the current comparator, preserving each element's original
// insertion sequence for tie-breaking.
func (t *Tree) RefreshOrder() {
	elems := t.OrderedEIDs()
	t.root = nil
	for _, eid := range elems {
		t.root = t.insert(t.root, eid, t.rnd.Int63())
	}
}

// OffsetOf returns eid's forward offset (0-based rank) in the current
// order, or (0, false) if it is absent.
func (t *Tree) OffsetOf(eid avquery.EID) (int, bool) {
	if !t.Contains(eid) {
		return 0, false
	}
	n := t.root
	offset := 0
	for n != nil {
		c := t.order3(eid, n.eid)
		switch {
		case c == 0:
			return offset + sizeOf(n.left), true
		case c < 0:
			n = n.left
		default:
			offset += sizeOf(n.left) + 1
			n = n.right
		}
	}
	return 0, false
}

// ElementAtOffset returns the EID at forward offset i (0-based), or false
// if i is out of range.
func (t *Tree) ElementAtOffset(i int) (avquery.EID, bool) {
	if i < 0 || i >= sizeOf(t.root) {
		return 0, false
	}
	n := t.root
	for n != nil {
		ls := sizeOf(n.left)
		switch {
		case i < ls:
			n = n.left
		case i == ls:
			return n.eid, true
		default:
			i -= ls + 1
			n = n.right
		}
	}
	return 0, false
}

// RangeByOffset returns, in order, the EIDs occupying forward offsets
// [lo, hi] inclusive. Out-of-range bounds are clamped.
func (t *Tree) RangeByOffset(lo, hi int) []avquery.EID {
	n := sizeOf(t.root)
	if n == 0 {
		return nil
	}
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	if lo > hi {
		return nil
	}
	out := make([]avquery.EID, 0, hi-lo+1)
	t.collectRange(t.root, lo, hi, &out)
	return out
}

func (t *Tree) collectRange(n *node, lo, hi int, out *[]avquery.EID) {
	if n == nil {
		return
	}
	ls := sizeOf(n.left)
	if lo < ls {
		t.collectRange(n.left, lo, hi, out)
	}
	if lo <= ls && ls <= hi {
		*out = append(*out, n.eid)
	}
	if hi > ls {
		t.collectRange(n.right, lo-ls-1, hi-ls-1, out)
	}
}

// OrderedEIDs returns every element currently in the tree, in order.
func (t *Tree) OrderedEIDs() []avquery.EID {
	out := make([]avquery.EID, 0, sizeOf(t.root))
	var walk func(*node)
	walk = func(n *node) {
		if n == nil {
			return
		}
		walk(n.left)
		out = append(out, n.eid)
		walk(n.right)
	}
	walk(t.root)
	return out
}

// register attaches an observer to this tree; called by the
// OrderRequirement constructors in this package.
func (t *Tree) register(r requirement) {
	t.requirements = append(t.requirements, r)
}

// unregister detaches an observer (used when a requirement is destroyed).
func (t *Tree) unregister(r requirement) {
	for i, existing := range t.requirements {
		if existing == r {
			t.requirements = append(t.requirements[:i], t.requirements[i+1:]...)
			return
		}
	}
}

// NotifyListeners flushes deferred notifications to every active
// requirement registered on this tree. Structural mutations (insert,
// remove, refresh) apply immediately to the tree; NotifyListeners is the
// point at which requirements diff their materialized view against the
// tree's current state and dispatch incremental deltas.
func (t *Tree) NotifyListeners() {
	for _, r := range t.requirements {
		r.onNotify(t)
	}
}
