package orderservice

import "github.com/wbrown/avquery/order"

// CompInfo is what a dominated data object returns to describe its current
// total preorder over EIDs.
type CompInfo interface {
	GetCompareFunc() order.CompareFunc
}

// Dominated is implemented by the data object an OrderService wraps: it
// exposes whichever comparator is currently in force, or none if the data
// isn't ordered by anything yet. The order service re-reads this whenever
// it resumes from suspension (SPEC_FULL.md §6 "Comparator contract").
type Dominated interface {
	GetDominatedComparison() (CompInfo, bool)
}

// StaticComparator is the common case: a fixed CompareFunc that doesn't
// change across refreshes.
type StaticComparator struct {
	Compare order.CompareFunc
}

// GetCompareFunc implements CompInfo.
func (c StaticComparator) GetCompareFunc() order.CompareFunc { return c.Compare }

// FuncDominated adapts a plain closure into a Dominated, for callers that
// want to swap comparators without defining a named type.
type FuncDominated func() (CompInfo, bool)

// GetDominatedComparison implements Dominated.
func (f FuncDominated) GetDominatedComparison() (CompInfo, bool) { return f() }
