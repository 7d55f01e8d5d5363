package querycalc

import "github.com/wbrown/avquery"

// Sub is the surface a query-calc node exposes to a NegationQueryCalc that
// has it as a sub-query: it can be listened to for raised match deltas,
// and its current match set can be read directly at registration time.
type Sub interface {
	AddListener(l MatchListener)
	RemoveListener(l MatchListener)
	GetMatchesAsObj() map[avquery.EID]struct{}
}

// ProjSub is implemented by a Sub that can itself receive forwarded
// projection matches (SPEC_FULL.md §4.3 "Projection matches") — a
// projection-shaped sub-node further down the same query root.
type ProjSub interface {
	Sub
	AddProjMatches(eids []avquery.EID, resultID uint64)
	RemoveProjMatches(eids []avquery.EID, resultID uint64)
}

type pendingRemoval struct {
	eids  []avquery.EID
	delta int
	proj  bool
}

// matchPointSource is implemented by every Sub in this package (promoted
// from base) — a parent negation node folds a newly-registered projection
// sub's match points into its own projMatchPoints.
type matchPointSource interface {
	MatchPoints() []avquery.PID
}

// NegationQueryCalc selects EIDs at pathId that no sub-query matches. Its
// match-count algebra (SPEC_FULL.md §4.3): indexer membership contributes
// +1 per EID; each selection sub-match contributes +2; if projection subs
// must add, each EID present in projSelectionMatches contributes +1 in
// place of the (suppressed) indexer contribution. Final match is
// count == 1 (present in the universe, matched by no sub).
type NegationQueryCalc struct {
	base

	indexer Indexer
	nodeID  uint64

	selSubs []Sub
	adapter map[Sub]MatchListener

	projSubs    []Sub
	projAdapter map[Sub]MatchListener

	// projMatchPoints holds the sub-projection match points below pathID,
	// used to lower forwarded projection matches down to this node's
	// projection subs and result consumers.
	projMatchPoints map[avquery.PID]struct{}

	// projSelectionMatches is a refcount of how many registered projection
	// subs currently match each EID (raised to pathID). While projAddsMatches
	// is set, a refcount crossing 0 <-> >0 contributes the membership term
	// that the indexer's own AddMatches/RemoveMatches calls now suppress.
	projSelectionMatches map[avquery.EID]int
	projAddsMatches      bool

	counts map[avquery.EID]int

	listeners []MatchListener

	// projConsumers tracks, per result consumer id, the lowered projection
	// matches last forwarded to it (SPEC_FULL.md §6 AddProjMatches/
	// RemoveProjMatches/GetProjMatches).
	projConsumers map[uint64]map[avquery.EID]struct{}

	pendingSubRemovals []pendingRemoval

	registered bool
}

// NewNegationQueryCalc creates a negation node at pathID, backed by
// indexer.
func NewNegationQueryCalc(pathID avquery.PID, nodeID uint64, indexer Indexer) *NegationQueryCalc {
	return &NegationQueryCalc{
		base:                 newBase(pathID),
		indexer:              indexer,
		nodeID:               nodeID,
		adapter:              make(map[Sub]MatchListener),
		projAdapter:          make(map[Sub]MatchListener),
		projMatchPoints:      make(map[avquery.PID]struct{}),
		projSelectionMatches: make(map[avquery.EID]int),
		counts:               make(map[avquery.EID]int),
		projConsumers:        make(map[uint64]map[avquery.EID]struct{}),
	}
}

func (n *NegationQueryCalc) AddListener(l MatchListener) { n.listeners = append(n.listeners, l) }

func (n *NegationQueryCalc) RemoveListener(l MatchListener) {
	for i, existing := range n.listeners {
		if existing == l {
			n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
			return
		}
	}
}

func (n *NegationQueryCalc) ensureRegistered() {
	if n.registered {
		return
	}
	n.registered = true
	points := n.indexer.AddQueryCalcToPathNode(n)
	n.SetMatchPoints(points)
	n.applyDelta(n.indexer.GetAllMatches(n.pathID), 1)
}

// AddSelectionSub registers sub as a selection sub-query: its current
// matches, raised to this node's path, each contribute +2 to the count
// algebra, and future changes are forwarded incrementally.
func (n *NegationQueryCalc) AddSelectionSub(sub Sub) {
	n.ensureRegistered()
	n.selSubs = append(n.selSubs, sub)

	adapter := &subListener{owner: n}
	n.adapter[sub] = adapter
	sub.AddListener(adapter)

	var initial []avquery.EID
	for eid := range sub.GetMatchesAsObj() {
		initial = append(initial, n.raise(eid))
	}
	n.applyDelta(initial, 2)
}

// RemoveSelectionSub unregisters sub entirely: its current contribution is
// subtracted back out.
func (n *NegationQueryCalc) RemoveSelectionSub(sub Sub) {
	adapter, ok := n.adapter[sub]
	if !ok {
		return
	}
	sub.RemoveListener(adapter)
	delete(n.adapter, sub)
	for i, s := range n.selSubs {
		if s == sub {
			n.selSubs = append(n.selSubs[:i], n.selSubs[i+1:]...)
			break
		}
	}
	var current []avquery.EID
	for eid := range sub.GetMatchesAsObj() {
		current = append(current, n.raise(eid))
	}
	n.applyDelta(current, -2)
}

// AddProjectionSub registers sub as a projection sub-node: besides being a
// target for forwarded projection matches (see AddProjMatches), its own
// current selection matches, raised to this node's path, imply universe
// membership in place of the indexer (SPEC_FULL.md §4.3 "if projection
// subs must add"). The first registered projection sub flips the node
// into that mode; the indexer's own +1 contribution stays suppressed for
// as long as any projection sub is registered.
func (n *NegationQueryCalc) AddProjectionSub(sub Sub) {
	n.ensureRegistered()

	if len(n.projSubs) == 0 {
		n.enterProjAddsMatches()
	}
	n.projSubs = append(n.projSubs, sub)
	if src, ok := sub.(matchPointSource); ok {
		for _, p := range src.MatchPoints() {
			n.projMatchPoints[p] = struct{}{}
		}
	}

	adapter := &projSubListener{owner: n}
	n.projAdapter[sub] = adapter
	sub.AddListener(adapter)

	var initial []avquery.EID
	for eid := range sub.GetMatchesAsObj() {
		initial = append(initial, n.raise(eid))
	}
	n.addProjSelectionMatches(initial)
}

// RemoveProjectionSub unregisters sub; if it was the last projection sub,
// the node flips back to indexer-driven membership.
func (n *NegationQueryCalc) RemoveProjectionSub(sub Sub) {
	adapter, ok := n.projAdapter[sub]
	if !ok {
		return
	}
	sub.RemoveListener(adapter)
	delete(n.projAdapter, sub)
	for i, s := range n.projSubs {
		if s == sub {
			n.projSubs = append(n.projSubs[:i], n.projSubs[i+1:]...)
			break
		}
	}

	var current []avquery.EID
	for eid := range sub.GetMatchesAsObj() {
		current = append(current, n.raise(eid))
	}
	n.removeProjSelectionMatches(current)

	if len(n.projSubs) == 0 {
		n.exitProjAddsMatches()
	}
}

// enterProjAddsMatches subtracts the indexer's +1 contribution (the parity
// bit) from every currently-odd count in one pass, since membership is now
// implied by projSelectionMatches instead of raw indexer membership.
func (n *NegationQueryCalc) enterProjAddsMatches() {
	n.projAddsMatches = true
	var removed []avquery.EID
	for eid, before := range n.counts {
		if before%2 == 0 {
			continue
		}
		after := before - 1
		if after == 0 {
			delete(n.counts, eid)
		} else {
			n.counts[eid] = after
		}
		if before == 1 {
			removed = append(removed, eid)
		}
	}
	if !n.suspended && len(removed) > 0 {
		for _, l := range n.listeners {
			l.RemoveMatches(removed)
		}
	}
}

// exitProjAddsMatches undoes the projSelectionMatches presence terms in one
// pass, then re-sums the indexer's current universe back into the count
// table, pushing any newly matched EIDs.
func (n *NegationQueryCalc) exitProjAddsMatches() {
	var removed []avquery.EID
	for eid, c := range n.projSelectionMatches {
		if c == 0 {
			continue
		}
		before := n.counts[eid]
		after := before - 1
		if after == 0 {
			delete(n.counts, eid)
		} else {
			n.counts[eid] = after
		}
		if before == 1 {
			removed = append(removed, eid)
		}
	}
	n.projSelectionMatches = make(map[avquery.EID]int)
	n.projAddsMatches = false
	if !n.suspended && len(removed) > 0 {
		for _, l := range n.listeners {
			l.RemoveMatches(removed)
		}
	}
	n.applyDelta(n.indexer.GetAllMatches(n.pathID), 1)
}

// addProjSelectionMatches folds raised EIDs into the projSelectionMatches
// refcount; an EID whose refcount newly leaves zero contributes the
// membership term while projAddsMatches is set.
func (n *NegationQueryCalc) addProjSelectionMatches(eids []avquery.EID) {
	var crossed []avquery.EID
	for _, eid := range eids {
		before := n.projSelectionMatches[eid]
		n.projSelectionMatches[eid] = before + 1
		if before == 0 {
			crossed = append(crossed, eid)
		}
	}
	if n.projAddsMatches && len(crossed) > 0 {
		n.applyDelta(crossed, 1)
	}
}

// removeProjSelectionMatches is addProjSelectionMatches's inverse.
func (n *NegationQueryCalc) removeProjSelectionMatches(eids []avquery.EID) {
	var crossed []avquery.EID
	for _, eid := range eids {
		before := n.projSelectionMatches[eid]
		if before == 0 {
			continue
		}
		after := before - 1
		if after == 0 {
			delete(n.projSelectionMatches, eid)
			crossed = append(crossed, eid)
		} else {
			n.projSelectionMatches[eid] = after
		}
	}
	if n.projAddsMatches && len(crossed) > 0 {
		n.applyDelta(crossed, -1)
	}
}

func (n *NegationQueryCalc) raise(eid avquery.EID) avquery.EID {
	return n.indexer.RaiseToPath(eid, n.pathID)
}

// subListener adapts a selection sub-query's MatchListener callbacks into
// the negation's count algebra, applying the pending-removal buffering
// rule: removals from a sub must wait if the indexer has a removal queued
// at this path that hasn't been delivered yet, to avoid a spurious
// transient match.
type subListener struct{ owner *NegationQueryCalc }

func (s *subListener) AddMatches(eids []avquery.EID) {
	raised := make([]avquery.EID, len(eids))
	for i, e := range eids {
		raised[i] = s.owner.raise(e)
	}
	s.owner.applyDelta(raised, 2)
}

func (s *subListener) RemoveMatches(eids []avquery.EID) {
	raised := make([]avquery.EID, len(eids))
	for i, e := range eids {
		raised[i] = s.owner.raise(e)
	}
	if s.owner.indexer.PathHasRemovalsPending(s.owner.pathID, s.owner.nodeID) {
		s.owner.pendingSubRemovals = append(s.owner.pendingSubRemovals, pendingRemoval{eids: raised, delta: -2})
		return
	}
	s.owner.applyDelta(raised, -2)
}

// projSubListener adapts a projection sub-node's MatchListener callbacks
// into the projSelectionMatches refcount, under the same pending-removal
// buffering rule as subListener.
type projSubListener struct{ owner *NegationQueryCalc }

func (s *projSubListener) AddMatches(eids []avquery.EID) {
	raised := make([]avquery.EID, len(eids))
	for i, e := range eids {
		raised[i] = s.owner.raise(e)
	}
	s.owner.addProjSelectionMatches(raised)
}

func (s *projSubListener) RemoveMatches(eids []avquery.EID) {
	raised := make([]avquery.EID, len(eids))
	for i, e := range eids {
		raised[i] = s.owner.raise(e)
	}
	if s.owner.indexer.PathHasRemovalsPending(s.owner.pathID, s.owner.nodeID) {
		s.owner.pendingSubRemovals = append(s.owner.pendingSubRemovals, pendingRemoval{eids: raised, proj: true})
		return
	}
	s.owner.removeProjSelectionMatches(raised)
}

// GetMatches returns the node's current match set (count == 1 members).
// While suspended, it returns the snapshot taken at Suspend time instead of
// the live table, per SPEC_FULL.md §4.3's suspension protocol.
func (n *NegationQueryCalc) GetMatches() []avquery.EID {
	obj := n.GetMatchesAsObj()
	out := make([]avquery.EID, 0, len(obj))
	for eid := range obj {
		out = append(out, eid)
	}
	return out
}

func (n *NegationQueryCalc) GetMatchesAsObj() map[avquery.EID]struct{} {
	if n.suspended {
		out := make(map[avquery.EID]struct{}, len(n.suspendedMatches))
		for eid := range n.suspendedMatches {
			out[eid] = struct{}{}
		}
		return out
	}
	out := make(map[avquery.EID]struct{})
	for eid, c := range n.counts {
		if c == 1 {
			out[eid] = struct{}{}
		}
	}
	return out
}

// Suspend snapshots the node's current match set so that GetMatches keeps
// returning a stable view until Resume is called.
func (n *NegationQueryCalc) Suspend() {
	n.snapshotSuspend(n.GetMatchesAsObj())
}

// Resume clears the suspension and emits one delta to listeners covering
// everything that changed while suspended.
func (n *NegationQueryCalc) Resume() {
	added, removed := n.resumeDelta(n.currentMatchesAsObj())
	if len(added) > 0 {
		for _, l := range n.listeners {
			l.AddMatches(added)
		}
	}
	if len(removed) > 0 {
		for _, l := range n.listeners {
			l.RemoveMatches(removed)
		}
	}
}

// currentMatchesAsObj computes the live match set, bypassing the
// suspension snapshot — used by Resume to compare against what changed.
func (n *NegationQueryCalc) currentMatchesAsObj() map[avquery.EID]struct{} {
	out := make(map[avquery.EID]struct{})
	for eid, c := range n.counts {
		if c == 1 {
			out[eid] = struct{}{}
		}
	}
	return out
}

// GetFullyRaisedMatches returns the node's current matches raised all the
// way to the query root, per SPEC_FULL.md §6's Consumer API.
func (n *NegationQueryCalc) GetFullyRaisedMatches() []avquery.EID {
	matches := n.GetMatches()
	out := make([]avquery.EID, len(matches))
	for i, eid := range matches {
		out[i] = fullyRaise(n.indexer, eid)
	}
	return out
}

// FilterMatchPositions returns, for each matching EID in eids, its index
// within eids — the position-returning counterpart to FilterMatches.
func (n *NegationQueryCalc) FilterMatchPositions(eids []avquery.EID) []int {
	obj := n.GetMatchesAsObj()
	var positions []int
	for i, eid := range eids {
		if _, ok := obj[eid]; ok {
			positions = append(positions, i)
		}
	}
	return positions
}

// AddProjMatches intersects eids with this node's current matches, lowers
// the surviving set to projMatchPoints, records it against resultID, and
// forwards it to every registered projection sub-node.
func (n *NegationQueryCalc) AddProjMatches(eids []avquery.EID, resultID uint64) {
	obj := n.GetMatchesAsObj()
	var owned []avquery.EID
	for _, eid := range eids {
		if _, ok := obj[eid]; ok {
			owned = append(owned, eid)
		}
	}
	if len(owned) == 0 {
		return
	}
	lowered := n.indexer.LowerDataElementsTo(owned, n.projMatchPointsSlice())

	set, ok := n.projConsumers[resultID]
	if !ok {
		set = make(map[avquery.EID]struct{})
		n.projConsumers[resultID] = set
	}
	for _, eid := range lowered {
		set[eid] = struct{}{}
	}

	for _, sub := range n.projSubs {
		if ps, ok := sub.(ProjSub); ok {
			ps.AddProjMatches(lowered, resultID)
		}
	}
}

// RemoveProjMatches is AddProjMatches's inverse.
func (n *NegationQueryCalc) RemoveProjMatches(eids []avquery.EID, resultID uint64) {
	set, ok := n.projConsumers[resultID]
	if !ok {
		return
	}
	lowered := n.indexer.LowerDataElementsTo(eids, n.projMatchPointsSlice())
	for _, eid := range lowered {
		delete(set, eid)
	}
	for _, sub := range n.projSubs {
		if ps, ok := sub.(ProjSub); ok {
			ps.RemoveProjMatches(lowered, resultID)
		}
	}
}

// GetProjMatches returns the projection matches currently forwarded to
// resultID.
func (n *NegationQueryCalc) GetProjMatches(resultID uint64) []avquery.EID {
	set := n.projConsumers[resultID]
	out := make([]avquery.EID, 0, len(set))
	for eid := range set {
		out = append(out, eid)
	}
	return out
}

func (n *NegationQueryCalc) projMatchPointsSlice() []avquery.PID {
	out := make([]avquery.PID, 0, len(n.projMatchPoints))
	for p := range n.projMatchPoints {
		out = append(out, p)
	}
	return out
}

// applyDelta applies delta to every eid's count, emitting AddMatches for
// EIDs whose count newly becomes 1 and RemoveMatches for EIDs whose count
// newly leaves 1 — the parity-adjustment single pass described in
// SPEC_FULL.md §9 (never a second transient structure). While suspended,
// counts still update but no listener notification is sent; Resume later
// reconciles and emits one combined delta.
func (n *NegationQueryCalc) applyDelta(eids []avquery.EID, delta int) {
	var added, removed []avquery.EID
	for _, eid := range eids {
		before := n.counts[eid]
		after := before + delta
		if after == 0 {
			delete(n.counts, eid)
		} else {
			n.counts[eid] = after
		}
		wasMatch := before == 1
		isMatch := after == 1
		if !wasMatch && isMatch {
			added = append(added, eid)
		} else if wasMatch && !isMatch {
			removed = append(removed, eid)
		}
	}
	if n.suspended {
		return
	}
	if len(added) > 0 {
		for _, l := range n.listeners {
			l.AddMatches(added)
		}
	}
	if len(removed) > 0 {
		for _, l := range n.listeners {
			l.RemoveMatches(removed)
		}
	}
}

// --- Node interface: indexer-driven universe membership callbacks ---

func (n *NegationQueryCalc) AddMatches(eids []avquery.EID) {
	if n.projAddsMatches {
		return
	}
	n.applyDelta(eids, 1)
}

func (n *NegationQueryCalc) RemoveMatches(eids []avquery.EID) {
	if !n.projAddsMatches {
		n.applyDelta(eids, -1)
	}
	n.drainPendingRemovals()
}

func (n *NegationQueryCalc) drainPendingRemovals() {
	pending := n.pendingSubRemovals
	n.pendingSubRemovals = nil
	for _, p := range pending {
		if p.proj {
			n.removeProjSelectionMatches(p.eids)
		} else {
			n.applyDelta(p.eids, p.delta)
		}
	}
}

func (n *NegationQueryCalc) UpdateMatchCount(deltas map[avquery.EID]int) {
	for eid, d := range deltas {
		n.applyDelta([]avquery.EID{eid}, d)
	}
}

func (n *NegationQueryCalc) RemoveAllIndexerMatches() {
	var universe []avquery.EID
	for eid := range n.counts {
		universe = append(universe, eid)
	}
	n.applyDelta(universe, -1)
}
