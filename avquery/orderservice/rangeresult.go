package orderservice

import (
	"github.com/wbrown/avquery"
	"github.com/wbrown/avquery/order"
)

// RangeConsumer receives the add/remove match deltas a RangeOrderResult
// forwards from its underlying window.
type RangeConsumer interface {
	AddMatches(eids []avquery.EID)
	RemoveMatches(eids []avquery.EID)
}

// OrderTracingListener receives position updates; registration is explicit
// and the reference is strong (SPEC_FULL.md §4.5 "add/remove explicit").
type OrderTracingListener interface {
	UpdatePos(update order.PosUpdate)
}

// RangeOrderResult owns a RangeOrderRequirement over its service's tree and
// fans its notifications out to two independent audiences: active
// consumers (add/remove) and order-tracing listeners (updatePos).
type RangeOrderResult struct {
	service *OrderService
	req     *order.RangeOrderRequirement

	consumers []RangeConsumer
	tracing   []OrderTracingListener
}

// NewRangeOrderResult registers a window [lo, hi] on service's tree.
func NewRangeOrderResult(service *OrderService, lo, hi order.OffsetBound, trackOrder bool) *RangeOrderResult {
	r := &RangeOrderResult{service: service}
	r.req = order.NewRangeOrderRequirement(service.Tree(), lo, hi, trackOrder, r)
	service.RegisterResult(r)
	return r
}

// Destroy detaches the result from its tree.
func (r *RangeOrderResult) Destroy() { r.req.Destroy() }

// AddConsumer registers c to receive future AddMatches/RemoveMatches calls.
func (r *RangeOrderResult) AddConsumer(c RangeConsumer) { r.consumers = append(r.consumers, c) }

// RemoveConsumer detaches c.
func (r *RangeOrderResult) RemoveConsumer(c RangeConsumer) {
	for i, existing := range r.consumers {
		if existing == c {
			r.consumers = append(r.consumers[:i], r.consumers[i+1:]...)
			return
		}
	}
}

// AddOrderTracing registers l to receive future position updates.
func (r *RangeOrderResult) AddOrderTracing(l OrderTracingListener) {
	r.tracing = append(r.tracing, l)
}

// RemoveOrderTracing detaches l.
func (r *RangeOrderResult) RemoveOrderTracing(l OrderTracingListener) {
	for i, existing := range r.tracing {
		if existing == l {
			r.tracing = append(r.tracing[:i], r.tracing[i+1:]...)
			return
		}
	}
}

// UpdateOffsets changes the window; it takes effect the next time the
// underlying tree notifies its requirements.
func (r *RangeOrderResult) UpdateOffsets(lo, hi order.OffsetBound) {
	r.req.UpdateOffsets(lo, hi)
}

// GetDominatedMatches returns the pre-update set: the window's membership
// as of the last completed refresh cycle, so that subsequent add/remove
// deltas against it remain fully incremental.
func (r *RangeOrderResult) GetDominatedMatches() []avquery.EID {
	return r.req.CurrentMatches()
}

// GetOrderedMatches returns the current match set including still-queued
// updates: the dominated view folded with any add/remove batches the
// service has buffered but not yet applied to the tree. This is an
// optimistic view — a queued add isn't yet positioned by the comparator —
// but it is the set the caller would see once the pending refresh lands.
// The slice is built from a set and is in no particular order; it is not
// sorted by the comparator.
func (r *RangeOrderResult) GetOrderedMatches() []avquery.EID {
	set := make(map[avquery.EID]struct{})
	for _, e := range r.req.CurrentMatches() {
		set[e] = struct{}{}
	}
	for _, p := range r.service.pending {
		for _, e := range p.eids {
			if p.add {
				set[e] = struct{}{}
			} else {
				delete(set, e)
			}
		}
	}
	out := make([]avquery.EID, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	return out
}

// --- order.RangeListener ---

func (r *RangeOrderResult) AddMatches(eids []avquery.EID) {
	for _, c := range r.consumers {
		c.AddMatches(eids)
	}
}

func (r *RangeOrderResult) RemoveMatches(eids []avquery.EID) {
	for _, c := range r.consumers {
		c.RemoveMatches(eids)
	}
}

func (r *RangeOrderResult) RemoveAllMatches() {
	// The requirement still holds the pre-update set while it notifies.
	removed := r.req.CurrentMatches()
	for _, c := range r.consumers {
		c.RemoveMatches(removed)
	}
}

func (r *RangeOrderResult) UpdatePos(update order.PosUpdate) {
	for _, l := range r.tracing {
		l.UpdatePos(update)
	}
}

func (r *RangeOrderResult) allNotificationsReceived() {}
