// Package querycalc implements the two query-calc node kinds — the
// terminal SimpleQueryCalc and the compound NegationQueryCalc — that sit
// between a compiled SimpleQuery executor and the indexer's data elements,
// maintaining an incrementally-correct match set across structural,
// match-point, and match refresh phases.
package querycalc

import "github.com/wbrown/avquery"

// Node is what an Indexer invokes on a registered query-calc node.
type Node interface {
	PathID() avquery.PID

	SetMatchPoints(points []avquery.PID)
	AddToMatchPoints(p avquery.PID)
	RemoveFromMatchPoints(p avquery.PID)

	AddMatches(eids []avquery.EID)
	RemoveMatches(eids []avquery.EID)
	UpdateMatchCount(deltas map[avquery.EID]int)
	RemoveAllIndexerMatches()
}

// Indexer is the upstream contract a query-calc node consumes, per
// SPEC_FULL.md §6. A single in-memory implementation lives in
// internal/memindexer for use by the indexer-facing tests in this package.
type Indexer interface {
	// AddQueryCalcToPathNode registers node at its PathID, returning the
	// current match points the indexer already knows about for that path.
	AddQueryCalcToPathNode(node Node) []avquery.PID

	// AllocatePathIDByPathID allocates a fresh descendant path under pid.
	AllocatePathIDByPathID(pid avquery.PID) avquery.PID

	// UpdateSimpleQuery registers (or re-keys) a unique value id's query
	// value. SimpleQueryCalc does not read the returned EditScript.
	UpdateSimpleQuery(node Node, uniqueValueID uint64, typ avquery.KeyType, newKey, prevKey *avquery.Key) EditScript

	// UnregisterQueryValue removes a unique value id's registration.
	UnregisterQueryValue(node Node, uniqueValueID uint64, typ avquery.KeyType, key avquery.Key) EditScript

	// GetSimpleQueryValueMatches returns the EIDs the indexer currently
	// associates with one registered query value.
	GetSimpleQueryValueMatches(node Node, uniqueValueID uint64, typ avquery.KeyType, key avquery.Key) []avquery.EID

	// GetSimpleQueryQueuedUpdates returns unsent match-count deltas queued
	// for node (added but not yet delivered via UpdateMatchCount).
	GetSimpleQueryQueuedUpdates(node Node) map[avquery.EID]int

	// HasRangeValues reports whether any data element at pid currently
	// carries a range-typed value of typ.
	HasRangeValues(pid avquery.PID, typ avquery.KeyType) bool

	// PathHasRemovalsPending reports whether pid has queued-but-undelivered
	// removals for nodeID, used by NegationQueryCalc's pending-update
	// buffering.
	PathHasRemovalsPending(pid avquery.PID, nodeID uint64) bool

	GetAllMatches(pid avquery.PID) []avquery.EID
	GetAllMatchesAsObj(pid avquery.PID) map[avquery.EID]struct{}
	FilterDataNodesAtPath(pid avquery.PID, eids []avquery.EID) []avquery.EID
	FilterDataNodesAtPathWithDiff(pid avquery.PID, eids []avquery.EID) (added, removed []avquery.EID)

	RaiseToPath(eid avquery.EID, pid avquery.PID) avquery.EID
	LowerDataElementsTo(eids []avquery.EID, pids []avquery.PID) []avquery.EID
	GetPathID(eid avquery.EID) avquery.PID
	GetEntry(eid avquery.EID) (pathID avquery.PID, parent avquery.EID, ok bool)
}

// EditScript is the value an Indexer returns from UpdateSimpleQuery and
// UnregisterQueryValue, a narrower view of pairwise.EditScript's shape.
// SimpleQueryCalc keeps its own per-type PairwiseDisjoint covers (cover.go)
// and does not consult it; internal/memindexer returns an empty one.
type EditScript struct {
	RemovedValueIDs  []uint64
	RestoredValueIDs []uint64
	Covering         bool
	Modified         bool
}
