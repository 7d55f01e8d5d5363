// Package orderservice implements the shared OrderService and its
// OrderResult façades (SPEC_FULL.md §4.5): one order.Tree per underlying
// data object, reference-counted across consumers, with a suspension
// protocol that defers incoming match deltas across a comparator refresh.
package orderservice

import (
	"github.com/wbrown/avquery"
	"github.com/wbrown/avquery/order"
)

// RefreshQueue is the host's cooperative scheduler: OrderServices enqueue
// themselves here instead of refreshing inline, and the host drains it at
// a quiescent point. Never blocks; Drain runs every queued task to a fixed
// point, including tasks a running task itself enqueues.
type RefreshQueue struct {
	tasks []func()
}

// NewRefreshQueue creates an empty queue.
func NewRefreshQueue() *RefreshQueue { return &RefreshQueue{} }

// Enqueue schedules fn to run on the next Drain.
func (q *RefreshQueue) Enqueue(fn func()) { q.tasks = append(q.tasks, fn) }

// Drain runs every queued task, including ones newly enqueued by a task
// that is itself draining, until the queue is empty.
func (q *RefreshQueue) Drain() {
	for len(q.tasks) > 0 {
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		task()
	}
}

// OrderResult is the interface every OrderService consumer (RangeOrderResult,
// IndexOrderResult) satisfies so the service can batch-notify it once a
// refresh cycle's tree mutations have all landed.
type OrderResult interface {
	allNotificationsReceived()
}

type pendingUpdate struct {
	eids []avquery.EID
	add  bool
}

// OrderService wraps one tree per underlying data object. It is
// reference-counted and shared among every OrderResult pointing at the
// same data.
type OrderService struct {
	tree      *order.Tree
	dominated Dominated
	queue     *RefreshQueue

	refCount  int
	suspended bool
	pending   []pendingUpdate
	results   []OrderResult
}

// NewOrderService creates a service over dominated, scheduling refreshes on
// queue. The service starts suspended: its first refresh (seeding the
// initial comparator) runs the next time queue is drained.
func NewOrderService(dominated Dominated, queue *RefreshQueue) *OrderService {
	s := &OrderService{
		tree:      order.NewTree(nil),
		dominated: dominated,
		queue:     queue,
	}
	s.scheduleRefresh()
	return s
}

// Tree exposes the underlying order tree so OrderResult implementations can
// register RangeOrderRequirement/ElementOrderRequirement instances on it.
func (s *OrderService) Tree() *order.Tree { return s.tree }

// Retain increments the service's reference count.
func (s *OrderService) Retain() { s.refCount++ }

// Release decrements the service's reference count; callers tear the
// service down once it reaches zero.
func (s *OrderService) Release() int {
	s.refCount--
	return s.refCount
}

// RegisterResult attaches an OrderResult consumer so it receives
// allNotificationsReceived after every refresh cycle.
func (s *OrderService) RegisterResult(r OrderResult) {
	s.results = append(s.results, r)
}

// RefreshComparator marks the service suspended and schedules a refresh:
// called whenever the dominated data object's comparator changes, per
// SPEC_FULL.md §4.5 ("When the service becomes active or the comparator is
// refreshed, the service is suspended").
func (s *OrderService) RefreshComparator() {
	s.scheduleRefresh()
}

func (s *OrderService) scheduleRefresh() {
	if s.suspended {
		return
	}
	s.suspended = true
	s.queue.Enqueue(s.runRefresh)
}

// AddMatches inserts eids into the order universe. While suspended, the
// batch is buffered in s.pending instead of touching the tree
// directly.
func (s *OrderService) AddMatches(eids []avquery.EID) {
	if s.suspended {
		s.pending = append(s.pending, pendingUpdate{eids: eids, add: true})
		return
	}
	for _, e := range eids {
		s.tree.InsertElement(e)
	}
	s.tree.NotifyListeners()
}

// RemoveMatches removes eids from the order universe, subject to the same
// suspension buffering as AddMatches.
func (s *OrderService) RemoveMatches(eids []avquery.EID) {
	if s.suspended {
		s.pending = append(s.pending, pendingUpdate{eids: eids, add: false})
		return
	}
	for _, e := range eids {
		s.tree.RemoveElement(e)
	}
	s.tree.NotifyListeners()
}

// Notify flushes the current tree state to every registered requirement
// without otherwise touching the order universe — the hook structural
// changes (e.g. IndexOrderResult tracking a new EID) use to get their
// first position notification once registered, mirroring the match-point
// vs. match-refresh phase split of SPEC_FULL.md §5. A no-op while
// suspended; the pending refresh will notify once it runs.
func (s *OrderService) Notify() {
	if s.suspended {
		return
	}
	s.tree.NotifyListeners()
}

// runRefresh performs the four-step refresh cycle of SPEC_FULL.md §4.5: pull
// the current comparator, resort the tree under it, drain the pending
// queue in arrival order, then notify listeners and every registered
// OrderResult.
func (s *OrderService) runRefresh() {
	if info, ok := s.dominated.GetDominatedComparison(); ok {
		s.tree.UpdateCompareFunc(info.GetCompareFunc())
	}
	s.tree.RefreshOrder()

	pending := s.pending
	s.pending = nil
	s.suspended = false
	for _, p := range pending {
		if p.add {
			for _, e := range p.eids {
				s.tree.InsertElement(e)
			}
		} else {
			for _, e := range p.eids {
				s.tree.RemoveElement(e)
			}
		}
	}

	s.tree.NotifyListeners()
	for _, r := range s.results {
		r.allNotificationsReceived()
	}
}
