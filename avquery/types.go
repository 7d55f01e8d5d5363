// Package avquery holds the shared data model for the query and ordering
// engine: element and path identifiers, the primitive key/value representation,
// and the comparator glue the rest of the engine is built on.
package avquery

import "fmt"

// EID is an element identifier. It is opaque and unique within an indexer;
// every EID has a PathID denoting its location in the attribute tree.
type EID uint64

// String renders an EID for debug output.
func (e EID) String() string {
	return fmt.Sprintf("e%d", uint64(e))
}

// PID is a path identifier: a position in the hierarchical attribute tree.
// PIDs are allocated so that p1 <= p2 (numeric comparison) iff p1 is a
// prefix of p2 — longer paths always sort after their ancestors.
type PID uint64

// String renders a PID for debug output.
func (p PID) String() string {
	return fmt.Sprintf("p%d", uint64(p))
}

// IsPrefixOf reports whether p is an ancestor path of (or equal to) other.
// By construction PIDs compare numerically: p <= other.
func (p PID) IsPrefixOf(other PID) bool {
	return p <= other
}

// KeyType tags the primitive type carried by a Key.
type KeyType int

const (
	KeyTypeUnknown KeyType = iota
	KeyTypeNumber
	KeyTypeString
	KeyTypeBoolean
	KeyTypeRange
)

func (t KeyType) String() string {
	switch t {
	case KeyTypeNumber:
		return "number"
	case KeyTypeString:
		return "string"
	case KeyTypeBoolean:
		return "boolean"
	case KeyTypeRange:
		return "range"
	default:
		return "unknown"
	}
}

// RangeValue denotes an interval over an ordered primitive type: [Min, Max]
// with independently open/closed endpoints.
type RangeValue struct {
	Min         interface{}
	Max         interface{}
	ClosedLower bool
	ClosedUpper bool
}

// Contains reports whether v falls inside the range, using CompareScalars
// for the endpoint comparisons.
func (r RangeValue) Contains(v interface{}) bool {
	if r.Min != nil {
		c := CompareScalars(v, r.Min)
		if c < 0 || (c == 0 && !r.ClosedLower) {
			return false
		}
	}
	if r.Max != nil {
		c := CompareScalars(v, r.Max)
		if c > 0 || (c == 0 && !r.ClosedUpper) {
			return false
		}
	}
	return true
}

// Overlaps reports whether two ranges share any point.
func (r RangeValue) Overlaps(other RangeValue) bool {
	if r.Max != nil && other.Min != nil {
		c := CompareScalars(r.Max, other.Min)
		if c < 0 || (c == 0 && !(r.ClosedUpper && other.ClosedLower)) {
			return false
		}
	}
	if other.Max != nil && r.Min != nil {
		c := CompareScalars(other.Max, r.Min)
		if c < 0 || (c == 0 && !(other.ClosedUpper && r.ClosedLower)) {
			return false
		}
	}
	return true
}

// Key is either a primitive scalar tagged by KeyType, or a RangeValue.
type Key struct {
	Type  KeyType
	Value interface{} // scalar payload when Type != KeyTypeRange
	Range RangeValue  // payload when Type == KeyTypeRange
}

// ScalarKey builds a Key around a tagged scalar value.
func ScalarKey(t KeyType, v interface{}) Key {
	return Key{Type: t, Value: v}
}

// RangeKey builds a Key wrapping a RangeValue.
func RangeKey(r RangeValue) Key {
	return Key{Type: KeyTypeRange, Range: r}
}

// IsRange reports whether the key carries a RangeValue rather than a scalar.
func (k Key) IsRange() bool {
	return k.Type == KeyTypeRange
}

// String renders a Key for debug output.
func (k Key) String() string {
	if k.IsRange() {
		lo := "("
		if k.Range.ClosedLower {
			lo = "["
		}
		hi := ")"
		if k.Range.ClosedUpper {
			hi = "]"
		}
		return fmt.Sprintf("%s%v,%v%s", lo, k.Range.Min, k.Range.Max, hi)
	}
	return fmt.Sprintf("%v", k.Value)
}
