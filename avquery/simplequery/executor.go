package simplequery

import (
	"github.com/wbrown/avquery"
)

// Value is one data element flowing through an executor. A leaf element
// carries a Key; an AV-shaped element carries nested attributes. Exactly
// one of IsLeaf's corresponding field is meaningful.
type Value struct {
	IsLeaf bool
	Key    avquery.Key
	Attrs  map[string]Value
}

// Leaf wraps a scalar or range Key as a leaf Value.
func Leaf(k avquery.Key) Value { return Value{IsLeaf: true, Key: k} }

// Object wraps an attribute set as an AV-shaped Value.
func Object(attrs map[string]Value) Value { return Value{Attrs: attrs} }

// HasAttr reports whether an AV-shaped value has attr present (and, for
// set-valued attributes flattened at compile time, non-empty).
func (v Value) HasAttr(attr string) bool {
	if v.IsLeaf {
		return false
	}
	_, ok := v.Attrs[attr]
	return ok
}

// DataPosition records, for one surviving output element, its source index
// in the input slice and — for a projection that expands one input into n
// outputs — the expansion length and the sub-path it was drawn from.
type DataPosition struct {
	SourceIndex  int
	ExpansionLen int
	SubPath      string
}

// Kind tags an Executor's shape specialization. The compiler dispatches
// exhaustively on term shape to pick a Kind; Execute dispatches on Kind.
// This is the tagged-variant replacement for what the source system
// expresses as a class hierarchy of executor objects (see DESIGN.md).
type Kind int

const (
	KindPassThrough Kind = iota
	KindSelectNone
	KindBoolSelection
	KindSingleAttrTrue
	KindSingleAttrFalse
	KindSingleAttrPresentFalse
	KindSingleAttrAbsent
	KindSingleAttrSimpleValue
	KindSingleAttrSimpleValueMultiple
	KindSingleAttrSimpleValueInv
	KindSingleAttrSimpleValueInvMultiple
	KindSingleAttrRange
	KindSingleAttrSubstring
	KindSingleAttrProjection
	KindDoubleAttrProjection
	KindSimpleValueSelection
	KindSimpleValueMultipleSelection
	KindSimpleSubstringSelection
	KindElementReferenceSelection
	KindElementReferenceMultiple
	KindSimpleRangeCC
	KindSimpleRangeCO
	KindSimpleRangeOC
	KindSimpleRangeOO
	KindSimpleNegation
	KindSimpleOrSelection
	KindSimpleQueryChain
	KindInterpretedQuery
)

func (k Kind) String() string {
	switch k {
	case KindPassThrough:
		return "PassThrough"
	case KindSelectNone:
		return "SelectNone"
	case KindBoolSelection:
		return "BoolSelection"
	case KindSingleAttrTrue:
		return "SingleAttributeTrueSelection"
	case KindSingleAttrFalse:
		return "SingleAttributeFalseSelection"
	case KindSingleAttrPresentFalse:
		return "SingleAttributePresentFalseSelection"
	case KindSingleAttrAbsent:
		return "SingleAttributeAbsentSelection"
	case KindSingleAttrSimpleValue:
		return "SingleAttributeSimpleValueSelection"
	case KindSingleAttrSimpleValueMultiple:
		return "SingleAttributeSimpleValueMultipleSelection"
	case KindSingleAttrSimpleValueInv:
		return "SingleAttributeSimpleValueInvSelection"
	case KindSingleAttrSimpleValueInvMultiple:
		return "SingleAttributeSimpleValueInvMultipleSelection"
	case KindSingleAttrRange:
		return "SingleAttributeRangeSelection"
	case KindSingleAttrSubstring:
		return "SingleAttributeSubStringSelection"
	case KindSingleAttrProjection:
		return "SingleAttributeProjection"
	case KindDoubleAttrProjection:
		return "DoubleAttributeProjection"
	case KindSimpleValueSelection:
		return "SimpleValueSelection"
	case KindSimpleValueMultipleSelection:
		return "SimpleValueMultipleSelection"
	case KindSimpleSubstringSelection:
		return "SimpleSubstringSelection"
	case KindElementReferenceSelection:
		return "ElementReferenceSelection"
	case KindElementReferenceMultiple:
		return "ElementReferenceMultipleSelection"
	case KindSimpleRangeCC, KindSimpleRangeCO, KindSimpleRangeOC, KindSimpleRangeOO:
		return "SimpleRangeSelection"
	case KindSimpleNegation:
		return "SimpleNegation"
	case KindSimpleOrSelection:
		return "SimpleOrSelection"
	case KindSimpleQueryChain:
		return "SimpleQueryChain"
	case KindInterpretedQuery:
		return "SimpleQueryInterpretedQuery"
	default:
		return "Unknown"
	}
}

// Executor is a compiled query term. Every specialization the compiler can
// produce is represented by one Kind value plus the fields it needs; there
// is exactly one Execute method, switching on Kind.
type Executor struct {
	kind Kind

	attr  string // single-attribute forms
	attr2 string // DoubleAttributeProjection's second attribute

	wantBool bool // BoolSelection / SingleAttr{True,False}

	values map[interface{}]struct{} // SimpleValue(Multiple) comparison set
	rng    avquery.RangeValue       // range forms
	substr string                   // substring forms

	eid  avquery.EID            // ElementReferenceSelection
	eids map[avquery.EID]struct{} // ElementReferenceMultiple

	sub   *Executor   // SingleAttrProjection's inner conjoined steps, SimpleNegation's lone wrapped term
	subs  []*Executor  // SimpleOrSelection / SimpleNegation
	chain []*Executor  // SimpleQueryChain: AND-composed steps, last may be a projection

	interpret func(Value) (matched bool, projected []Value)

	isProjection bool
	canCache     bool
}

// IsProjection reports whether this executor expands elements (vs. purely
// selecting a subset unchanged).
func (e *Executor) IsProjection() bool { return e.isProjection }

// CanCache reports whether ExecuteAndCache is available on this executor.
func (e *Executor) CanCache() bool { return e.canCache }

// Kind exposes the executor's shape tag, mainly for tests and debug output.
func (e *Executor) Kind() Kind { return e.kind }

// Execute runs the compiled term against data, in order. Accepted (or
// projected) values are appended to newData; when idents/outPositions are
// supplied, the corresponding identifier / DataPosition is appended in
// lock-step so the three slices stay aligned.
func (e *Executor) Execute(data []Value, idents []avquery.EID, outIdents *[]avquery.EID, outPositions *[]DataPosition) (newData []Value) {
	for i, v := range data {
		matched, projected := e.test(v)
		if !matched {
			continue
		}
		if len(projected) == 0 && e.isProjection {
			continue // empty projection yields no element
		}
		if !e.isProjection {
			projected = []Value{v}
		}
		for j, pv := range projected {
			newData = append(newData, pv)
			if idents != nil && outIdents != nil {
				*outIdents = append(*outIdents, idents[i])
			}
			if outPositions != nil {
				pos := DataPosition{SourceIndex: i}
				if e.isProjection && len(projected) > 1 {
					pos.ExpansionLen = len(projected)
					pos.SubPath = e.attr
				}
				_ = j
				*outPositions = append(*outPositions, pos)
			}
		}
	}
	return newData
}

// test evaluates the executor against one value, returning whether it
// matched and, for projections, the (possibly multi-valued, possibly
// flattened) set of projected values.
func (e *Executor) test(v Value) (bool, []Value) {
	switch e.kind {
	case KindPassThrough:
		return true, nil

	case KindSelectNone:
		return false, nil

	case KindBoolSelection:
		if v.IsLeaf && v.Key.Type == avquery.KeyTypeBoolean {
			return v.Key.Value == e.wantBool, nil
		}
		return false, nil

	case KindSingleAttrTrue:
		sub, ok := v.Attrs[e.attr]
		return ok && sub.IsLeaf && sub.Key.Type == avquery.KeyTypeBoolean && sub.Key.Value == true, nil

	case KindSingleAttrFalse:
		sub, ok := v.Attrs[e.attr]
		return ok && sub.IsLeaf && sub.Key.Type == avquery.KeyTypeBoolean && sub.Key.Value == false, nil

	case KindSingleAttrPresentFalse:
		// {k: n(true)}: attribute present, and its value is not `true`.
		sub, ok := v.Attrs[e.attr]
		if !ok {
			return false, nil
		}
		return !(sub.IsLeaf && sub.Key.Type == avquery.KeyTypeBoolean && sub.Key.Value == true), nil

	case KindSingleAttrAbsent:
		_, ok := v.Attrs[e.attr]
		return !ok, nil

	case KindSingleAttrSimpleValue, KindSingleAttrSimpleValueMultiple:
		sub, ok := v.Attrs[e.attr]
		if !ok || !sub.IsLeaf {
			return false, nil
		}
		_, found := e.values[scalarOf(sub.Key)]
		return found, nil

	case KindSingleAttrSimpleValueInv, KindSingleAttrSimpleValueInvMultiple:
		sub, ok := v.Attrs[e.attr]
		if !ok || !sub.IsLeaf {
			return true, nil
		}
		_, found := e.values[scalarOf(sub.Key)]
		return !found, nil

	case KindSingleAttrRange:
		sub, ok := v.Attrs[e.attr]
		if !ok || !sub.IsLeaf {
			return false, nil
		}
		return e.rng.Contains(scalarOf(sub.Key)), nil

	case KindSingleAttrSubstring:
		sub, ok := v.Attrs[e.attr]
		if !ok || !sub.IsLeaf {
			return false, nil
		}
		s, isStr := sub.Key.Value.(string)
		return isStr && containsSubstring(s, e.substr), nil

	case KindSingleAttrProjection:
		sub, ok := v.Attrs[e.attr]
		if !ok {
			return false, nil
		}
		if e.sub != nil {
			matched, _ := e.sub.test(v)
			if !matched {
				return false, nil
			}
		}
		return true, flattenProjected(sub)

	case KindDoubleAttrProjection:
		a, aok := v.Attrs[e.attr]
		_, bok := v.Attrs[e.attr2]
		if !aok || !bok {
			return false, nil
		}
		return true, flattenProjected(a)

	case KindSimpleValueSelection, KindSimpleValueMultipleSelection:
		if !v.IsLeaf {
			return false, nil
		}
		_, found := e.values[scalarOf(v.Key)]
		return found, nil

	case KindSimpleSubstringSelection:
		if !v.IsLeaf {
			return false, nil
		}
		s, isStr := v.Key.Value.(string)
		return isStr && containsSubstring(s, e.substr), nil

	case KindElementReferenceSelection:
		return v.IsLeaf && v.Key.Type == avquery.KeyTypeNumber && eidOf(v.Key) == e.eid, nil

	case KindElementReferenceMultiple:
		if !v.IsLeaf {
			return false, nil
		}
		_, found := e.eids[eidOf(v.Key)]
		return found, nil

	case KindSimpleRangeCC, KindSimpleRangeCO, KindSimpleRangeOC, KindSimpleRangeOO:
		if !v.IsLeaf {
			return false, nil
		}
		return e.rng.Contains(scalarOf(v.Key)), nil

	case KindSimpleNegation:
		for _, s := range e.subs {
			if matched, _ := s.test(v); matched {
				return false, nil
			}
		}
		return true, nil

	case KindSimpleOrSelection:
		for _, s := range e.subs {
			if matched, _ := s.test(v); matched {
				return true, nil
			}
		}
		return false, nil

	case KindSimpleQueryChain:
		for i, step := range e.chain {
			matched, projected := step.test(v)
			if !matched {
				return false, nil
			}
			if i == len(e.chain)-1 && step.isProjection {
				return true, projected
			}
		}
		return true, nil

	case KindInterpretedQuery:
		return e.interpret(v)

	default:
		avquery.Fatalf("Executor.test", "unhandled kind %v", e.kind)
		return false, nil
	}
}

func flattenProjected(v Value) []Value {
	// A projection of a single value is itself; no multi-valued attribute
	// representation is modeled beyond the single nested Value, so
	// projection is always a one-element result unless absent.
	return []Value{v}
}

func scalarOf(k avquery.Key) interface{} {
	if k.IsRange() {
		return k.Range
	}
	return k.Value
}

func eidOf(k avquery.Key) avquery.EID {
	switch n := k.Value.(type) {
	case avquery.EID:
		return n
	case int:
		return avquery.EID(n)
	case int64:
		return avquery.EID(n)
	case uint64:
		return avquery.EID(n)
	default:
		return 0
	}
}

func containsSubstring(s, substr string) bool {
	if substr == "" {
		return true
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
