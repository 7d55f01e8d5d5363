package querycalc

import "github.com/wbrown/avquery"

// CountTable is an EID -> match-count map. Its presence or absence on a
// node is modeled explicitly via the matches field below (hasMatches),
// rather than by a nullable-but-sometimes-empty map, per the match-count
// table discipline in SPEC_FULL.md §4.2.
type CountTable map[avquery.EID]int

// base holds the fields shared by SimpleQueryCalc and NegationQueryCalc:
// the node's path, its match-point set, and its optional match-count
// table.
type base struct {
	pathID avquery.PID

	matchPoints map[avquery.PID]struct{}

	hasMatches bool
	matches    CountTable

	selectionProjection bool

	suspended        bool
	suspendedMatches map[avquery.EID]struct{}
}

func newBase(pathID avquery.PID) base {
	return base{
		pathID:      pathID,
		matchPoints: make(map[avquery.PID]struct{}),
	}
}

// PathID implements Node.
func (b *base) PathID() avquery.PID { return b.pathID }

// SetMatchPoints implements Node.
func (b *base) SetMatchPoints(points []avquery.PID) {
	b.matchPoints = make(map[avquery.PID]struct{}, len(points))
	for _, p := range points {
		b.matchPoints[p] = struct{}{}
	}
}

// AddToMatchPoints implements Node.
func (b *base) AddToMatchPoints(p avquery.PID) {
	b.matchPoints[p] = struct{}{}
}

// RemoveFromMatchPoints implements Node.
func (b *base) RemoveFromMatchPoints(p avquery.PID) {
	delete(b.matchPoints, p)
}

// MatchPoints returns a snapshot of the node's current match points.
func (b *base) MatchPoints() []avquery.PID {
	out := make([]avquery.PID, 0, len(b.matchPoints))
	for p := range b.matchPoints {
		out = append(out, p)
	}
	return out
}

// ensureMatches builds the match table on demand (ensureMatches is called
// when the match-count-required predicate newly holds, or when a caller
// needs the table regardless). seed holds the initial per-EID counts, from
// which the caller has already subtracted queued-but-undelivered deltas.
func (b *base) ensureMatches(seed map[avquery.EID]int) {
	if b.hasMatches {
		return
	}
	b.hasMatches = true
	b.matches = make(CountTable, len(seed))
	for eid, n := range seed {
		b.matches[eid] = n
	}
}

// dropMatches tears down the table once the match-count-required
// predicate stops holding (the "matches are lazy and may be torn down"
// resource policy).
func (b *base) dropMatches() {
	b.hasMatches = false
	b.matches = nil
}

// fullyRaise walks eid up its parent chain to the query root, for the
// "fully raised matches" consumer getter — a data element read off a
// deeply-nested match table reported in terms of its top-level element.
func fullyRaise(indexer Indexer, eid avquery.EID) avquery.EID {
	for {
		_, parent, ok := indexer.GetEntry(eid)
		if !ok || parent == 0 {
			return eid
		}
		eid = parent
	}
}

// snapshotSuspend captures the node's current match set so that
// GetMatches() returns a stable view while suspended.
func (b *base) snapshotSuspend(current map[avquery.EID]struct{}) {
	b.suspended = true
	b.suspendedMatches = current
}

// resumeDelta computes what changed between the suspended snapshot and
// newCurrent, clearing the suspension.
func (b *base) resumeDelta(newCurrent map[avquery.EID]struct{}) (added, removed []avquery.EID) {
	for eid := range newCurrent {
		if _, ok := b.suspendedMatches[eid]; !ok {
			added = append(added, eid)
		}
	}
	for eid := range b.suspendedMatches {
		if _, ok := newCurrent[eid]; !ok {
			removed = append(removed, eid)
		}
	}
	b.suspended = false
	b.suspendedMatches = nil
	return added, removed
}
