// Package simplequery compiles declarative query terms into specialized
// executors, per an exhaustive shape dispatch: the chosen specialization is
// determined by the shape of the term, never by a class hierarchy.
package simplequery

import "github.com/wbrown/avquery"

// Term is a declarative query term, as produced by a query parser upstream
// of this package. It is a closed sum type; Compile switches exhaustively
// over its concrete types.
type Term interface {
	isTerm()
}

// Wildcard selects (and, inside an AV, projects) everything at a position.
type Wildcard struct{}

// Undefined matches nothing — the root-level "select none" term.
type Undefined struct{}

// Scalar is a bare scalar value: bool, number, or string.
type Scalar struct{ Value interface{} }

// Range is an inclusive/exclusive bound pair, r(lo, hi).
type Range struct{ Bound avquery.RangeValue }

// Substring is a substring-match pattern, s(pattern).
type Substring struct{ Pattern string }

// ElementRef matches a single EID directly, independent of attribute value.
type ElementRef struct{ EID avquery.EID }

// Set is an "or-of" term, o(q1, ..., qn): true iff any sub-term matches.
type Set struct{ Items []Term }

// Neg is a negation term, n(q1, ..., qn): true iff no sub-term matches.
type Neg struct{ Subs []Term }

// AVField is one attribute/value-term pair inside an AV object term.
type AVField struct {
	Attr  string
	Value Term
}

// AV is an attribute-value object term: {k1: v1, k2: v2, ...}. An AV with
// no fields is the empty-object pass-through term {}.
type AV struct{ Fields []AVField }

func (Wildcard) isTerm()   {}
func (Undefined) isTerm()  {}
func (Scalar) isTerm()     {}
func (Range) isTerm()      {}
func (Substring) isTerm()  {}
func (ElementRef) isTerm() {}
func (Set) isTerm()        {}
func (Neg) isTerm()        {}
func (AV) isTerm()         {}

// IsEmptySet reports whether s is o() — the empty disjunction, which
// combines with a single AV field to form the SelectNone shape {k: o()}.
func (s Set) IsEmptySet() bool { return len(s.Items) == 0 }

// IsWildcardOnly reports whether n is n() — the empty negation, which
// is itself a pass-through (negating nothing excludes nothing).
func (n Neg) IsWildcardOnly() bool { return len(n.Subs) == 0 }
