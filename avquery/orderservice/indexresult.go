package orderservice

import (
	"github.com/wbrown/avquery"
	"github.com/wbrown/avquery/order"
)

// SecondaryIndexer is the publish side of IndexOrderResult: a store keyed
// by EID that holds each tracked element's current forward offset as a
// plain numeric key, so downstream consumers can query it like any other
// data source (SPEC_FULL.md §4.5, §6). internal/badgerindex implements
// this against durable storage; MapSecondaryIndexer below is the in-memory
// default.
type SecondaryIndexer interface {
	SetOffset(eid avquery.EID, offset int)
	ClearOffset(eid avquery.EID)
}

// MapSecondaryIndexer is a minimal in-memory SecondaryIndexer.
type MapSecondaryIndexer struct {
	offsets map[avquery.EID]int
}

// NewMapSecondaryIndexer creates an empty indexer.
func NewMapSecondaryIndexer() *MapSecondaryIndexer {
	return &MapSecondaryIndexer{offsets: make(map[avquery.EID]int)}
}

func (m *MapSecondaryIndexer) SetOffset(eid avquery.EID, offset int) { m.offsets[eid] = offset }
func (m *MapSecondaryIndexer) ClearOffset(eid avquery.EID)           { delete(m.offsets, eid) }

// Get returns eid's published offset, if any.
func (m *MapSecondaryIndexer) Get(eid avquery.EID) (int, bool) {
	v, ok := m.offsets[eid]
	return v, ok
}

// IndexOrderResult owns one ElementOrderRequirement per tracked EID and
// publishes each one's current offset into a SecondaryIndexer. Dual data
// inputs: SetOrderedData defines the sort universe (forwarded to the
// OrderService as ordinary add/remove matches); SetToIndexData defines
// which EIDs within that universe actually get tracked and published.
type IndexOrderResult struct {
	service   *OrderService
	secondary SecondaryIndexer
	backward  bool

	orderedUniverse map[avquery.EID]struct{}
	tracked         map[avquery.EID]*order.ElementOrderRequirement
	offsets         map[avquery.EID]int
}

// NewIndexOrderResult creates a result over service, publishing into
// secondary. backward selects ElementOrderRequirement's direction for every
// tracked EID.
func NewIndexOrderResult(service *OrderService, secondary SecondaryIndexer, backward bool) *IndexOrderResult {
	r := &IndexOrderResult{
		service:         service,
		secondary:       secondary,
		backward:        backward,
		orderedUniverse: make(map[avquery.EID]struct{}),
		tracked:         make(map[avquery.EID]*order.ElementOrderRequirement),
		offsets:         make(map[avquery.EID]int),
	}
	service.RegisterResult(r)
	return r
}

// SetOrderedData defines the sort universe: EIDs present here but not
// before are added to the service's tree; EIDs no longer present are
// removed.
func (r *IndexOrderResult) SetOrderedData(eids []avquery.EID) {
	next := make(map[avquery.EID]struct{}, len(eids))
	for _, e := range eids {
		next[e] = struct{}{}
	}
	var added, removed []avquery.EID
	for e := range r.orderedUniverse {
		if _, ok := next[e]; !ok {
			removed = append(removed, e)
		}
	}
	for _, e := range eids {
		if _, ok := r.orderedUniverse[e]; !ok {
			added = append(added, e)
		}
	}
	r.orderedUniverse = next
	if len(removed) > 0 {
		r.service.RemoveMatches(removed)
	}
	if len(added) > 0 {
		r.service.AddMatches(added)
	}
}

// SetToIndexData defines which EIDs to track and publish offsets for.
func (r *IndexOrderResult) SetToIndexData(eids []avquery.EID) {
	want := make(map[avquery.EID]struct{}, len(eids))
	for _, e := range eids {
		want[e] = struct{}{}
	}
	for e, req := range r.tracked {
		if _, ok := want[e]; !ok {
			req.Destroy()
			delete(r.tracked, e)
			delete(r.offsets, e)
			r.secondary.ClearOffset(e)
		}
	}
	for e := range want {
		if _, ok := r.tracked[e]; !ok {
			r.tracked[e] = order.NewElementOrderRequirement(r.service.Tree(), e, r.backward, r)
		}
	}
}

// GetValues returns, in eids' order, each one's current published offset
// (nil if untracked or absent from the order universe), its key type, and
// whether it has a value at all.
func (r *IndexOrderResult) GetValues(eids []avquery.EID) (keys []interface{}, types []avquery.KeyType, hasAttrs []bool) {
	for _, e := range eids {
		if off, ok := r.offsets[e]; ok {
			keys = append(keys, off)
			types = append(types, avquery.KeyTypeNumber)
			hasAttrs = append(hasAttrs, true)
		} else {
			keys = append(keys, nil)
			types = append(types, avquery.KeyTypeUnknown)
			hasAttrs = append(hasAttrs, false)
		}
	}
	return keys, types, hasAttrs
}

// --- order.ElementListener ---

func (r *IndexOrderResult) UpdateOffset(eid avquery.EID, offset int, absent bool) {
	if absent {
		delete(r.offsets, eid)
		r.secondary.ClearOffset(eid)
		return
	}
	r.offsets[eid] = offset
	r.secondary.SetOffset(eid, offset)
}

func (r *IndexOrderResult) allNotificationsReceived() {}
