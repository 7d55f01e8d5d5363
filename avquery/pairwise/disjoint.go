// Package pairwise maintains a set of intervals as a pairwise-disjoint
// cover. Callers add, remove, and modify intervals under caller-chosen IDs;
// the cover internally merges overlapping intervals and reports what
// changed as an edit script, so a consumer (SimpleQueryCalc's per-type
// registration with the indexer, per SPEC_FULL.md) can replay the same
// sequence of removals/restorations/merges against its own downstream state
// without recomputing the whole cover from scratch.
package pairwise

import "github.com/wbrown/avquery"

// ID identifies a caller-inserted interval.
type ID uint64

// CoverID identifies one of the disjoint cover intervals this package
// maintains internally. A cover's ID is stable across mutations that only
// grow or shrink it in place (reported as ModifiedInterval); it changes when
// covers merge or split.
type CoverID uint64

// Bound is one endpoint of an Interval. A nil Value means unbounded (-inf
// for a Lo bound, +inf for a Hi bound).
type Bound struct {
	Value interface{}
	Open  bool
}

// Interval is a half-open-or-closed range over an ordered scalar type.
type Interval struct {
	Lo Bound
	Hi Bound
}

func (iv Interval) toRange() avquery.RangeValue {
	return avquery.RangeValue{
		Min:         iv.Lo.Value,
		Max:         iv.Hi.Value,
		ClosedLower: !iv.Lo.Open,
		ClosedUpper: !iv.Hi.Open,
	}
}

func (iv Interval) overlaps(other Interval) bool {
	return iv.toRange().Overlaps(other.toRange())
}

func unionInterval(a, b Interval) Interval {
	lo := a.Lo
	if boundCompareLo(b.Lo, a.Lo) < 0 {
		lo = b.Lo
	}
	hi := a.Hi
	if boundCompareHi(b.Hi, a.Hi) > 0 {
		hi = b.Hi
	}
	return Interval{Lo: lo, Hi: hi}
}

// boundCompareLo orders two Lo bounds by where they start: -1 if a starts
// before b. At equal value, a closed bound starts before an open one (it
// includes the boundary point, the open one excludes it).
func boundCompareLo(a, b Bound) int {
	if a.Value == nil && b.Value == nil {
		return 0
	}
	if a.Value == nil {
		return -1
	}
	if b.Value == nil {
		return 1
	}
	if c := avquery.CompareScalars(a.Value, b.Value); c != 0 {
		return c
	}
	if a.Open == b.Open {
		return 0
	}
	if a.Open {
		return 1
	}
	return -1
}

// boundCompareHi orders two Hi bounds by where they end: -1 if a ends
// before b. At equal value, an open bound ends before a closed one.
func boundCompareHi(a, b Bound) int {
	if a.Value == nil && b.Value == nil {
		return 0
	}
	if a.Value == nil {
		return 1
	}
	if b.Value == nil {
		return -1
	}
	if c := avquery.CompareScalars(a.Value, b.Value); c != 0 {
		return c
	}
	if a.Open == b.Open {
		return 0
	}
	if a.Open {
		return -1
	}
	return 1
}

// CoverInterval is a snapshot of one cover: its ID, its current bounds, and
// the member IDs currently merged into it.
type CoverInterval struct {
	ID       CoverID
	Interval Interval
	Members  []ID
}

// EditScript enumerates what changed in the cover as the result of one
// mutation (or, for Modify, one remove-then-insert pair — see Modify).
type EditScript struct {
	RemovedIntervals  []CoverID
	RestoredIntervals []CoverInterval
	CoveringInterval  *CoverInterval
	ModifiedInterval  *CoverInterval
}

// IsEmpty reports whether the edit script represents no change.
func (es EditScript) IsEmpty() bool {
	return len(es.RemovedIntervals) == 0 && len(es.RestoredIntervals) == 0 &&
		es.CoveringInterval == nil && es.ModifiedInterval == nil
}

type coverState struct {
	interval Interval
	members  map[ID]struct{}
}

// Disjoint is a pairwise-disjoint interval cover. The zero value is not
// usable; construct with New.
type Disjoint struct {
	nextCoverID CoverID
	members     map[ID]Interval
	memberCover map[ID]CoverID
	covers      map[CoverID]*coverState
}

// New creates an empty disjoint cover.
func New() *Disjoint {
	return &Disjoint{
		nextCoverID: 1,
		members:     make(map[ID]Interval),
		memberCover: make(map[ID]CoverID),
		covers:      make(map[CoverID]*coverState),
	}
}

// Len returns the number of currently-inserted member intervals.
func (d *Disjoint) Len() int {
	return len(d.members)
}

// CoverCount returns the number of disjoint cover intervals currently
// materialized.
func (d *Disjoint) CoverCount() int {
	return len(d.covers)
}

// Covers returns a snapshot of the current disjoint cover intervals.
func (d *Disjoint) Covers() []CoverInterval {
	out := make([]CoverInterval, 0, len(d.covers))
	for id, cs := range d.covers {
		out = append(out, CoverInterval{ID: id, Interval: cs.interval, Members: memberIDs(cs)})
	}
	return out
}

// CoverOf returns the cover currently containing member id, if any.
func (d *Disjoint) CoverOf(id ID) (CoverInterval, bool) {
	cid, ok := d.memberCover[id]
	if !ok {
		return CoverInterval{}, false
	}
	cs := d.covers[cid]
	return CoverInterval{ID: cid, Interval: cs.interval, Members: memberIDs(cs)}, true
}

func memberIDs(cs *coverState) []ID {
	out := make([]ID, 0, len(cs.members))
	for id := range cs.members {
		out = append(out, id)
	}
	return out
}

// Insert adds a new member interval under id (which must not already be
// present — use Modify to change an existing member) and returns the edit
// script describing how the cover changed.
func (d *Disjoint) Insert(id ID, iv Interval) EditScript {
	d.members[id] = iv

	touched := make([]CoverID, 0, 2)
	merged := iv
	for {
		again := false
		for cid, cs := range d.covers {
			if containsCoverID(touched, cid) {
				continue
			}
			if cs.interval.overlaps(merged) {
				touched = append(touched, cid)
				merged = unionInterval(merged, cs.interval)
				again = true
			}
		}
		if !again {
			break
		}
	}

	switch len(touched) {
	case 0:
		cid := d.allocCoverID()
		d.covers[cid] = &coverState{interval: iv, members: map[ID]struct{}{id: {}}}
		d.memberCover[id] = cid
		ci := CoverInterval{ID: cid, Interval: iv, Members: []ID{id}}
		return EditScript{CoveringInterval: &ci}

	case 1:
		cid := touched[0]
		cs := d.covers[cid]
		cs.members[id] = struct{}{}
		cs.interval = merged
		d.memberCover[id] = cid
		ci := CoverInterval{ID: cid, Interval: merged, Members: memberIDs(cs)}
		return EditScript{ModifiedInterval: &ci}

	default:
		newMembers := map[ID]struct{}{id: {}}
		for _, cid := range touched {
			for mid := range d.covers[cid].members {
				newMembers[mid] = struct{}{}
			}
			delete(d.covers, cid)
		}
		newID := d.allocCoverID()
		d.covers[newID] = &coverState{interval: merged, members: newMembers}
		for mid := range newMembers {
			d.memberCover[mid] = newID
		}
		ci := CoverInterval{ID: newID, Interval: merged, Members: memberIDsFromSet(newMembers)}
		return EditScript{RemovedIntervals: touched, CoveringInterval: &ci}
	}
}

func (d *Disjoint) allocCoverID() CoverID {
	id := d.nextCoverID
	d.nextCoverID++
	return id
}

func containsCoverID(ids []CoverID, id CoverID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func memberIDsFromSet(s map[ID]struct{}) []ID {
	out := make([]ID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// Remove deletes member id from the cover, returning the edit script. If
// removing id disconnects its cover into multiple pieces (the member was
// the only thing bridging two otherwise-non-overlapping groups), the
// original cover is reported removed and the resulting pieces are reported
// as RestoredIntervals. Removing an unknown id is a no-op.
func (d *Disjoint) Remove(id ID) EditScript {
	cid, ok := d.memberCover[id]
	if !ok {
		return EditScript{}
	}
	cs := d.covers[cid]
	delete(cs.members, id)
	delete(d.memberCover, id)
	delete(d.members, id)

	if len(cs.members) == 0 {
		delete(d.covers, cid)
		return EditScript{RemovedIntervals: []CoverID{cid}}
	}

	remaining := memberIDs(cs)
	components := d.connectedComponents(remaining)

	if len(components) == 1 {
		newIv := d.unionAll(components[0])
		cs.interval = newIv
		ci := CoverInterval{ID: cid, Interval: newIv, Members: components[0]}
		return EditScript{ModifiedInterval: &ci}
	}

	delete(d.covers, cid)
	restored := make([]CoverInterval, 0, len(components))
	for _, comp := range components {
		newIv := d.unionAll(comp)
		newID := d.allocCoverID()
		members := make(map[ID]struct{}, len(comp))
		for _, m := range comp {
			members[m] = struct{}{}
			d.memberCover[m] = newID
		}
		d.covers[newID] = &coverState{interval: newIv, members: members}
		restored = append(restored, CoverInterval{ID: newID, Interval: newIv, Members: comp})
	}
	return EditScript{RemovedIntervals: []CoverID{cid}, RestoredIntervals: restored}
}

// Modify changes member id's interval to newIv in one step. It is
// implemented as a remove followed by an insert (mirroring the value-id
// remapping two-pass alignment used elsewhere in this engine); the returned
// edit script concatenates the remove phase's effects followed by the
// insert phase's, so replaying it in order against the prior materialization
// reproduces the new one exactly as it was built.
func (d *Disjoint) Modify(id ID, newIv Interval) EditScript {
	rm := d.Remove(id)
	ins := d.Insert(id, newIv)

	modified := ins.ModifiedInterval
	if modified == nil {
		modified = rm.ModifiedInterval
	}

	return EditScript{
		RemovedIntervals:  append(append([]CoverID{}, rm.RemovedIntervals...), ins.RemovedIntervals...),
		RestoredIntervals: append(append([]CoverInterval{}, rm.RestoredIntervals...), ins.RestoredIntervals...),
		CoveringInterval:  ins.CoveringInterval,
		ModifiedInterval:  modified,
	}
}

// connectedComponents groups member IDs into maximal overlap-connected
// components, using the intervals currently recorded in d.members.
func (d *Disjoint) connectedComponents(ids []ID) [][]ID {
	visited := make(map[ID]bool, len(ids))
	var components [][]ID
	for _, start := range ids {
		if visited[start] {
			continue
		}
		queue := []ID{start}
		visited[start] = true
		var comp []ID
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			comp = append(comp, cur)
			for _, other := range ids {
				if visited[other] {
					continue
				}
				if d.members[cur].overlaps(d.members[other]) {
					visited[other] = true
					queue = append(queue, other)
				}
			}
		}
		components = append(components, comp)
	}
	return components
}

func (d *Disjoint) unionAll(ids []ID) Interval {
	result := d.members[ids[0]]
	for _, id := range ids[1:] {
		result = unionInterval(result, d.members[id])
	}
	return result
}
