package querycalc

import (
	"github.com/wbrown/avquery"
	"github.com/wbrown/avquery/pairwise"
)

// disjointSet is the per-type pairwise-disjoint cover a SimpleQueryCalc
// registers its query values into. It is a thin alias so this package's
// public surface talks in terms of its own cid/key vocabulary instead of
// leaking pairwise.ID/pairwise.CoverID everywhere.
type disjointSet = pairwise.Disjoint

func newDisjointSet() *disjointSet { return pairwise.New() }

func cover(extID uint64) pairwise.ID { return pairwise.ID(extID) }

// keyInterval converts a registered query value's Key into the interval
// the disjoint cover reasons about: a point interval for a scalar, or the
// Key's own bounds for a range.
func keyInterval(key avquery.Key) pairwise.Interval {
	if key.IsRange() {
		return pairwise.Interval{
			Lo: pairwise.Bound{Value: key.Range.Min, Open: !key.Range.ClosedLower},
			Hi: pairwise.Bound{Value: key.Range.Max, Open: !key.Range.ClosedUpper},
		}
	}
	return pairwise.Interval{
		Lo: pairwise.Bound{Value: key.Value},
		Hi: pairwise.Bound{Value: key.Value},
	}
}

// keyFromInterval is keyInterval's inverse: it turns a cover's combined
// interval back into the Key pushed to the indexer. A degenerate [v,v]
// closed interval (the common case of one un-merged scalar value) renders
// as a scalar Key rather than a single-point range, so the indexer's
// existing scalar-match path handles it without a range-aware special
// case.
func keyFromInterval(typ avquery.KeyType, iv pairwise.Interval) avquery.Key {
	if !iv.Lo.Open && !iv.Hi.Open && iv.Lo.Value == iv.Hi.Value {
		return avquery.ScalarKey(typ, iv.Lo.Value)
	}
	return avquery.RangeKey(avquery.RangeValue{
		Min: iv.Lo.Value, Max: iv.Hi.Value,
		ClosedLower: !iv.Lo.Open, ClosedUpper: !iv.Hi.Open,
	})
}

// coverInfo pairs a cover id with the key it should now be registered
// under.
type coverInfo struct {
	cid uint64
	key avquery.Key
}

// editScript is pairwise.EditScript translated into this package's
// vocabulary (cover ids as uint64, keys instead of raw intervals).
type editScript struct {
	removed            []uint64
	restoredOrCovering []coverInfo
	modified           *coverInfo
}

func translateEditScript(typ avquery.KeyType, es pairwise.EditScript) editScript {
	out := editScript{}
	for _, cid := range es.RemovedIntervals {
		out.removed = append(out.removed, uint64(cid))
	}
	for _, ci := range es.RestoredIntervals {
		out.restoredOrCovering = append(out.restoredOrCovering, coverInfo{cid: uint64(ci.ID), key: keyFromInterval(typ, ci.Interval)})
	}
	if es.CoveringInterval != nil {
		ci := es.CoveringInterval
		out.restoredOrCovering = append(out.restoredOrCovering, coverInfo{cid: uint64(ci.ID), key: keyFromInterval(typ, ci.Interval)})
	}
	if es.ModifiedInterval != nil {
		ci := es.ModifiedInterval
		out.modified = &coverInfo{cid: uint64(ci.ID), key: keyFromInterval(typ, ci.Interval)}
	}
	return out
}
