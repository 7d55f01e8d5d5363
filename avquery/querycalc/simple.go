package querycalc

import "github.com/wbrown/avquery"

// MatchListener receives incremental match-set deltas from a query-calc
// node — the "consumer API" surface a parent node or result object
// subscribes through.
type MatchListener interface {
	AddMatches(eids []avquery.EID)
	RemoveMatches(eids []avquery.EID)
}

type registeredValue struct {
	typ avquery.KeyType
	key avquery.Key
}

// coverKey identifies one registered cover within one type's disjoint
// registration at this node.
type coverKey struct {
	typ avquery.KeyType
	cid uint64
}

// SimpleQueryCalc is the terminal query-calc node: it holds a path id and
// a set of query values added by the compiler under external value ids,
// canonicalizes them per type into a pairwise-disjoint cover (so a data
// element can be matched by at most one registered query value per type),
// and forwards the indexer's resulting match set to its listeners.
type SimpleQueryCalc struct {
	base

	indexer Indexer
	nodeID  uint64

	values   map[uint64]registeredValue // external value id -> value
	covers   map[coverKey]avquery.Key   // registered cover -> the key last pushed to the indexer
	disjoint map[avquery.KeyType]*disjointSet

	listeners []MatchListener

	// projMatchPoints holds the match points forwarded projection matches
	// are lowered to, and projConsumers tracks, per result consumer id, the
	// lowered set currently forwarded to it (SPEC_FULL.md §6).
	projMatchPoints map[avquery.PID]struct{}
	projConsumers   map[uint64]map[avquery.EID]struct{}

	registered bool
}

// NewSimpleQueryCalc creates a terminal query-calc node at pathID, backed
// by indexer. nodeID disambiguates this node from others sharing a path,
// for PathHasRemovalsPending lookups.
func NewSimpleQueryCalc(pathID avquery.PID, nodeID uint64, indexer Indexer) *SimpleQueryCalc {
	return &SimpleQueryCalc{
		base:            newBase(pathID),
		indexer:         indexer,
		nodeID:          nodeID,
		values:          make(map[uint64]registeredValue),
		covers:          make(map[coverKey]avquery.Key),
		disjoint:        make(map[avquery.KeyType]*disjointSet),
		projMatchPoints: make(map[avquery.PID]struct{}),
		projConsumers:   make(map[uint64]map[avquery.EID]struct{}),
	}
}

// AddListener subscribes a consumer to this node's match deltas.
func (n *SimpleQueryCalc) AddListener(l MatchListener) { n.listeners = append(n.listeners, l) }

// RemoveListener unsubscribes a consumer.
func (n *SimpleQueryCalc) RemoveListener(l MatchListener) {
	for i, existing := range n.listeners {
		if existing == l {
			n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
			return
		}
	}
}

func (n *SimpleQueryCalc) ensureRegistered() {
	if n.registered {
		return
	}
	n.registered = true
	points := n.indexer.AddQueryCalcToPathNode(n)
	n.SetMatchPoints(points)
}

// AddValue registers a new query value under an external id allocated by
// the compiler. Adding an id that already exists is a programmer error —
// use ModifyValue.
func (n *SimpleQueryCalc) AddValue(extID uint64, typ avquery.KeyType, key avquery.Key) {
	n.ensureRegistered()
	if _, exists := n.values[extID]; exists {
		avquery.Fatalf("AddValue", "value id %d already registered", extID)
	}
	n.values[extID] = registeredValue{typ: typ, key: key}
	n.syncType(typ, translateEditScript(typ, n.disjointFor(typ).Insert(cover(extID), keyInterval(key))))
	n.refreshMatchRequirement()
}

// RemoveValue unregisters a previously-added query value.
func (n *SimpleQueryCalc) RemoveValue(extID uint64) {
	rv, ok := n.values[extID]
	if !ok {
		return
	}
	delete(n.values, extID)
	n.syncType(rv.typ, translateEditScript(rv.typ, n.disjointFor(rv.typ).Remove(cover(extID))))
	n.refreshMatchRequirement()
}

// ModifyValue changes an already-registered query value's key.
func (n *SimpleQueryCalc) ModifyValue(extID uint64, newKey avquery.Key) {
	rv, ok := n.values[extID]
	if !ok {
		avquery.Fatalf("ModifyValue", "value id %d is not registered", extID)
	}
	n.values[extID] = registeredValue{typ: rv.typ, key: newKey}
	n.syncType(rv.typ, translateEditScript(rv.typ, n.disjointFor(rv.typ).Modify(cover(extID), keyInterval(newKey))))
	n.refreshMatchRequirement()
}

// GetMatches returns the node's current match set, in no particular order.
func (n *SimpleQueryCalc) GetMatches() []avquery.EID {
	obj := n.GetMatchesAsObj()
	out := make([]avquery.EID, 0, len(obj))
	for eid := range obj {
		out = append(out, eid)
	}
	return out
}

// GetMatchesAsObj returns the node's current match set as a membership
// set. When the match-count table is absent, this re-queries the indexer
// live rather than maintaining a redundant incremental set.
func (n *SimpleQueryCalc) GetMatchesAsObj() map[avquery.EID]struct{} {
	if n.hasMatches {
		out := make(map[avquery.EID]struct{}, len(n.matches))
		for eid, c := range n.matches {
			if c > 0 {
				out[eid] = struct{}{}
			}
		}
		return out
	}
	out := make(map[avquery.EID]struct{})
	for ck, key := range n.covers {
		for _, eid := range n.indexer.GetSimpleQueryValueMatches(n, ck.cid, ck.typ, key) {
			out[eid] = struct{}{}
		}
	}
	return out
}

// FilterMatches returns the subset of eids this node currently matches.
func (n *SimpleQueryCalc) FilterMatches(eids []avquery.EID) []avquery.EID {
	obj := n.GetMatchesAsObj()
	out := make([]avquery.EID, 0, len(eids))
	for _, e := range eids {
		if _, ok := obj[e]; ok {
			out = append(out, e)
		}
	}
	return out
}

// GetFullyRaisedMatches returns the node's current matches raised all the
// way to the query root (SPEC_FULL.md §6 Consumer API).
func (n *SimpleQueryCalc) GetFullyRaisedMatches() []avquery.EID {
	matches := n.GetMatches()
	out := make([]avquery.EID, len(matches))
	for i, eid := range matches {
		out[i] = fullyRaise(n.indexer, eid)
	}
	return out
}

// FilterMatchPositions returns, for each matching EID in eids, its index
// within eids — the position-returning counterpart to FilterMatches.
func (n *SimpleQueryCalc) FilterMatchPositions(eids []avquery.EID) []int {
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
// the surviving set to projMatchPoints, and records it against resultID.
func (n *SimpleQueryCalc) AddProjMatches(eids []avquery.EID, resultID uint64) {
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
}

// RemoveProjMatches is AddProjMatches's inverse.
func (n *SimpleQueryCalc) RemoveProjMatches(eids []avquery.EID, resultID uint64) {
	set, ok := n.projConsumers[resultID]
	if !ok {
		return
	}
	lowered := n.indexer.LowerDataElementsTo(eids, n.projMatchPointsSlice())
	for _, eid := range lowered {
		delete(set, eid)
	}
}

// GetProjMatches returns the projection matches currently forwarded to
// resultID.
func (n *SimpleQueryCalc) GetProjMatches(resultID uint64) []avquery.EID {
	set := n.projConsumers[resultID]
	out := make([]avquery.EID, 0, len(set))
	for eid := range set {
		out = append(out, eid)
	}
	return out
}

func (n *SimpleQueryCalc) projMatchPointsSlice() []avquery.PID {
	out := make([]avquery.PID, 0, len(n.projMatchPoints))
	for p := range n.projMatchPoints {
		out = append(out, p)
	}
	return out
}

// matchRequired implements the match-count table discipline of
// SPEC_FULL.md §4.2: the node maintains `matches` iff it is a
// selection-projection, or there are >= 2 distinct query values of a type
// for which the indexer currently has any range values at this path.
func (n *SimpleQueryCalc) matchRequired() bool {
	if n.selectionProjection {
		return true
	}
	countByType := make(map[avquery.KeyType]int)
	for _, rv := range n.values {
		countByType[rv.typ]++
	}
	for typ, count := range countByType {
		if count >= 2 && n.indexer.HasRangeValues(n.pathID, typ) {
			return true
		}
	}
	return false
}

func (n *SimpleQueryCalc) refreshMatchRequirement() {
	required := n.matchRequired()
	switch {
	case required && !n.hasMatches:
		seed := make(map[avquery.EID]int)
		for eid := range n.GetMatchesAsObj() {
			seed[eid] = 1
		}
		for eid, delta := range n.indexer.GetSimpleQueryQueuedUpdates(n) {
			seed[eid] -= delta
		}
		n.ensureMatches(seed)
	case !required && n.hasMatches:
		n.dropMatches()
	}
}

// SetSelectionProjection flips the selection->projection bit (driven by
// the structural phase: set when this node is dominated by a multi-
// projection union).
func (n *SimpleQueryCalc) SetSelectionProjection(v bool) {
	if n.selectionProjection == v {
		return
	}
	n.selectionProjection = v
	n.refreshMatchRequirement()
}

// --- Node interface: indexer-driven callbacks ---

func (n *SimpleQueryCalc) AddMatches(eids []avquery.EID) {
	if len(eids) == 0 {
		return
	}
	if n.hasMatches {
		for _, e := range eids {
			n.matches[e]++
		}
	}
	for _, l := range n.listeners {
		l.AddMatches(eids)
	}
}

func (n *SimpleQueryCalc) RemoveMatches(eids []avquery.EID) {
	if len(eids) == 0 {
		return
	}
	if n.hasMatches {
		for _, e := range eids {
			if n.matches[e] <= 1 {
				delete(n.matches, e)
			} else {
				n.matches[e]--
			}
		}
	}
	for _, l := range n.listeners {
		l.RemoveMatches(eids)
	}
}

func (n *SimpleQueryCalc) UpdateMatchCount(deltas map[avquery.EID]int) {
	var added, removed []avquery.EID
	for eid, d := range deltas {
		if !n.hasMatches {
			continue
		}
		before := n.matches[eid]
		after := before + d
		switch {
		case before <= 0 && after > 0:
			added = append(added, eid)
		case before > 0 && after <= 0:
			removed = append(removed, eid)
		}
		if after <= 0 {
			delete(n.matches, eid)
		} else {
			n.matches[eid] = after
		}
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

func (n *SimpleQueryCalc) RemoveAllIndexerMatches() {
	var all []avquery.EID
	if n.hasMatches {
		for eid := range n.matches {
			all = append(all, eid)
		}
		n.matches = make(CountTable)
	} else {
		for eid := range n.GetMatchesAsObj() {
			all = append(all, eid)
		}
	}
	if len(all) > 0 {
		for _, l := range n.listeners {
			l.RemoveMatches(all)
		}
	}
}

// --- internal: pairwise-disjoint <-> indexer synchronization ---

func (n *SimpleQueryCalc) disjointFor(typ avquery.KeyType) *disjointSet {
	d, ok := n.disjoint[typ]
	if !ok {
		d = newDisjointSet()
		n.disjoint[typ] = d
	}
	return d
}

// syncType pushes the edit script produced by inserting/removing/modifying
// one query value of typ into the indexer's registration for this node,
// and updates this node's own match accounting to match.
func (n *SimpleQueryCalc) syncType(typ avquery.KeyType, es editScript) {
	for _, cid := range es.removed {
		ck := coverKey{typ: typ, cid: cid}
		oldKey, had := n.covers[ck]
		if !had {
			continue
		}
		before := n.indexer.GetSimpleQueryValueMatches(n, cid, typ, oldKey)
		n.indexer.UnregisterQueryValue(n, cid, typ, oldKey)
		delete(n.covers, ck)
		n.RemoveMatches(before)
	}
	for _, restored := range es.restoredOrCovering {
		ck := coverKey{typ: typ, cid: restored.cid}
		prevKeyPtr := (*avquery.Key)(nil)
		if old, had := n.covers[ck]; had {
			prevKeyPtr = &old
		}
		newKey := restored.key
		n.indexer.UpdateSimpleQuery(n, restored.cid, typ, &newKey, prevKeyPtr)
		after := n.indexer.GetSimpleQueryValueMatches(n, restored.cid, typ, newKey)
		n.covers[ck] = newKey
		n.AddMatches(after)
	}
	if es.modified != nil {
		ck := coverKey{typ: typ, cid: es.modified.cid}
		oldKey, had := n.covers[ck]
		var before []avquery.EID
		if had {
			before = n.indexer.GetSimpleQueryValueMatches(n, es.modified.cid, typ, oldKey)
		}
		newKey := es.modified.key
		var prevKeyPtr *avquery.Key
		if had {
			prevKeyPtr = &oldKey
		}
		n.indexer.UpdateSimpleQuery(n, es.modified.cid, typ, &newKey, prevKeyPtr)
		after := n.indexer.GetSimpleQueryValueMatches(n, es.modified.cid, typ, newKey)
		n.covers[ck] = newKey

		beforeSet := toSet(before)
		afterSet := toSet(after)
		var removedEIDs, addedEIDs []avquery.EID
		for e := range beforeSet {
			if _, ok := afterSet[e]; !ok {
				removedEIDs = append(removedEIDs, e)
			}
		}
		for e := range afterSet {
			if _, ok := beforeSet[e]; !ok {
				addedEIDs = append(addedEIDs, e)
			}
		}
		if len(removedEIDs) > 0 {
			n.RemoveMatches(removedEIDs)
		}
		if len(addedEIDs) > 0 {
			n.AddMatches(addedEIDs)
		}
	}
}

func toSet(eids []avquery.EID) map[avquery.EID]struct{} {
	out := make(map[avquery.EID]struct{}, len(eids))
	for _, e := range eids {
		out[e] = struct{}{}
	}
	return out
}
