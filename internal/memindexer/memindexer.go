// Package memindexer is a reference in-memory implementation of the
// querycalc.Indexer contract, used as the test fixture for
// SimpleQueryCalc, NegationQueryCalc, and the order service — standing in
// for the real attribute-tree indexer that would sit underneath this
// engine in production.
package memindexer

import (
	"github.com/wbrown/avquery"
	"github.com/wbrown/avquery/querycalc"
)

type element struct {
	pathID avquery.PID
	key    avquery.Key
}

// Indexer is a minimal, single-path-aware in-memory indexer: elements are
// inserted at a PID with a Key, and every registered query-calc Node at
// that PID is notified incrementally as elements come and go.
type Indexer struct {
	elements map[avquery.EID]element
	byPath   map[avquery.PID][]avquery.EID
	nodes    map[avquery.PID][]querycalc.Node

	removalsPending map[avquery.PID]bool
	nextPathID      avquery.PID
}

// New creates an empty indexer.
func New() *Indexer {
	return &Indexer{
		elements:        make(map[avquery.EID]element),
		byPath:          make(map[avquery.PID][]avquery.EID),
		nodes:           make(map[avquery.PID][]querycalc.Node),
		removalsPending: make(map[avquery.PID]bool),
		nextPathID:      1,
	}
}

// AddElement inserts eid at pid with key, notifying every node registered
// at pid.
func (m *Indexer) AddElement(pid avquery.PID, eid avquery.EID, key avquery.Key) {
	m.elements[eid] = element{pathID: pid, key: key}
	m.byPath[pid] = append(m.byPath[pid], eid)
	for _, n := range m.nodes[pid] {
		n.AddMatches([]avquery.EID{eid})
	}
}

// RemoveElement deletes eid, notifying every node registered at its path.
func (m *Indexer) RemoveElement(eid avquery.EID) {
	el, ok := m.elements[eid]
	if !ok {
		return
	}
	delete(m.elements, eid)
	list := m.byPath[el.pathID]
	for i, e := range list {
		if e == eid {
			m.byPath[el.pathID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	for _, n := range m.nodes[el.pathID] {
		n.RemoveMatches([]avquery.EID{eid})
	}
}

// SetRemovalsPending simulates the scheduler's longer-path-first ordering
// guarantee for tests that need to exercise NegationQueryCalc's pending-
// removal buffer directly, independent of AddElement/RemoveElement's
// immediate-delivery ordering.
func (m *Indexer) SetRemovalsPending(pid avquery.PID, pending bool) {
	m.removalsPending[pid] = pending
}

// --- querycalc.Indexer ---

func (m *Indexer) AddQueryCalcToPathNode(node querycalc.Node) []avquery.PID {
	pid := node.PathID()
	m.nodes[pid] = append(m.nodes[pid], node)
	return nil
}

func (m *Indexer) AllocatePathIDByPathID(pid avquery.PID) avquery.PID {
	m.nextPathID++
	return m.nextPathID
}

func (m *Indexer) UpdateSimpleQuery(node querycalc.Node, uniqueValueID uint64, typ avquery.KeyType, newKey, prevKey *avquery.Key) querycalc.EditScript {
	return querycalc.EditScript{}
}

func (m *Indexer) UnregisterQueryValue(node querycalc.Node, uniqueValueID uint64, typ avquery.KeyType, key avquery.Key) querycalc.EditScript {
	return querycalc.EditScript{}
}

func (m *Indexer) GetSimpleQueryValueMatches(node querycalc.Node, uniqueValueID uint64, typ avquery.KeyType, key avquery.Key) []avquery.EID {
	var out []avquery.EID
	for _, eid := range m.byPath[node.PathID()] {
		el := m.elements[eid]
		if el.key.IsRange() || el.key.Type != typ {
			continue
		}
		if key.IsRange() {
			if key.Range.Contains(el.key.Value) {
				out = append(out, eid)
			}
		} else if avquery.ScalarsEqual(el.key.Value, key.Value) {
			out = append(out, eid)
		}
	}
	return out
}

func (m *Indexer) GetSimpleQueryQueuedUpdates(node querycalc.Node) map[avquery.EID]int {
	return nil
}

func (m *Indexer) HasRangeValues(pid avquery.PID, typ avquery.KeyType) bool {
	for _, eid := range m.byPath[pid] {
		if m.elements[eid].key.IsRange() {
			return true
		}
	}
	return false
}

func (m *Indexer) PathHasRemovalsPending(pid avquery.PID, nodeID uint64) bool {
	return m.removalsPending[pid]
}

func (m *Indexer) GetAllMatches(pid avquery.PID) []avquery.EID {
	return append([]avquery.EID{}, m.byPath[pid]...)
}

func (m *Indexer) GetAllMatchesAsObj(pid avquery.PID) map[avquery.EID]struct{} {
	out := make(map[avquery.EID]struct{})
	for _, eid := range m.byPath[pid] {
		out[eid] = struct{}{}
	}
	return out
}

func (m *Indexer) FilterDataNodesAtPath(pid avquery.PID, eids []avquery.EID) []avquery.EID {
	set := m.GetAllMatchesAsObj(pid)
	var out []avquery.EID
	for _, e := range eids {
		if _, ok := set[e]; ok {
			out = append(out, e)
		}
	}
	return out
}

func (m *Indexer) FilterDataNodesAtPathWithDiff(pid avquery.PID, eids []avquery.EID) (added, removed []avquery.EID) {
	set := m.GetAllMatchesAsObj(pid)
	for _, e := range eids {
		if _, ok := set[e]; ok {
			added = append(added, e)
		} else {
			removed = append(removed, e)
		}
	}
	return added, removed
}

func (m *Indexer) RaiseToPath(eid avquery.EID, pid avquery.PID) avquery.EID {
	return eid
}

func (m *Indexer) LowerDataElementsTo(eids []avquery.EID, pids []avquery.PID) []avquery.EID {
	return eids
}

func (m *Indexer) GetPathID(eid avquery.EID) avquery.PID {
	return m.elements[eid].pathID
}

func (m *Indexer) GetEntry(eid avquery.EID) (pathID avquery.PID, parent avquery.EID, ok bool) {
	el, found := m.elements[eid]
	return el.pathID, 0, found
}
