package simplequery

import "github.com/wbrown/avquery"

// Compile turns a declarative Term into a specialized Executor. Dispatch is
// exhaustive on the *shape* of term — never on its contents beyond what is
// needed to recognize the shape — per the compiler contract.
func Compile(term Term) *Executor {
	switch t := term.(type) {
	case Wildcard:
		return &Executor{kind: KindPassThrough, isProjection: false}

	case Undefined:
		return &Executor{kind: KindSelectNone}

	case Scalar:
		if b, ok := t.Value.(bool); ok {
			return &Executor{kind: KindBoolSelection, wantBool: b}
		}
		return &Executor{kind: KindSimpleValueSelection, values: singleton(t.Value), canCache: true}

	case Range:
		return compileRootRange(t.Bound)

	case Substring:
		return &Executor{kind: KindSimpleSubstringSelection, substr: t.Pattern}

	case ElementRef:
		return &Executor{kind: KindElementReferenceSelection, eid: t.EID}

	case Set:
		return compileSet(t)

	case Neg:
		return compileNeg(t)

	case AV:
		return compileAV(t)

	default:
		return compileInterpreted(term)
	}
}

func singleton(v interface{}) map[interface{}]struct{} {
	return map[interface{}]struct{}{v: {}}
}

func valueSet(items []Term) (map[interface{}]struct{}, bool) {
	out := make(map[interface{}]struct{}, len(items))
	for _, it := range items {
		s, ok := it.(Scalar)
		if !ok {
			return nil, false
		}
		out[s.Value] = struct{}{}
	}
	return out, true
}

func compileRootRange(r avquery.RangeValue) *Executor {
	kind := KindSimpleRangeCC
	switch {
	case r.ClosedLower && r.ClosedUpper:
		kind = KindSimpleRangeCC
	case r.ClosedLower && !r.ClosedUpper:
		kind = KindSimpleRangeCO
	case !r.ClosedLower && r.ClosedUpper:
		kind = KindSimpleRangeOC
	default:
		kind = KindSimpleRangeOO
	}
	return &Executor{kind: kind, rng: r, canCache: true}
}

// compileSet handles o(q1, ..., qn) at the root. An empty set at the root
// compiles to SelectNone, as an empty-set AV field does; a set
// containing any projecting sub-term falls back to the interpreter, since
// SimpleOrSelection requires every branch to be a non-projecting selection.
func compileSet(t Set) *Executor {
	if len(t.Items) == 0 {
		return &Executor{kind: KindSelectNone}
	}
	if vals, ok := valueSet(t.Items); ok {
		return &Executor{kind: KindSimpleValueMultipleSelection, values: vals, canCache: true}
	}
	subs := make([]*Executor, 0, len(t.Items))
	for _, it := range t.Items {
		sub := Compile(it)
		if sub.isProjection {
			return compileInterpreted(t)
		}
		subs = append(subs, sub)
	}
	return &Executor{kind: KindSimpleOrSelection, subs: subs}
}

// compileNeg handles n(q1, ..., qn) at the root.
func compileNeg(t Neg) *Executor {
	if t.IsWildcardOnly() {
		return &Executor{kind: KindPassThrough}
	}
	subs := make([]*Executor, 0, len(t.Subs))
	for _, s := range t.Subs {
		sub := Compile(s)
		if sub.isProjection {
			return compileInterpreted(t)
		}
		subs = append(subs, sub)
	}
	return &Executor{kind: KindSimpleNegation, subs: subs}
}

// compileAV handles an attribute-value object term.
func compileAV(t AV) *Executor {
	if len(t.Fields) == 0 {
		return &Executor{kind: KindPassThrough}
	}

	// SelectNone: {k: o()}.
	if len(t.Fields) == 1 {
		if s, ok := t.Fields[0].Value.(Set); ok && s.IsEmptySet() {
			return &Executor{kind: KindSelectNone}
		}
	}

	// Count wildcard fields. A two-field AV with exactly one wildcard
	// compiles to DoubleAttributeProjection below; with more than one
	// wildcard the chain has a projection step that is not last, so it
	// falls back to the interpreter.
	wildcardAttrs := make([]string, 0, 2)
	for _, f := range t.Fields {
		if _, ok := f.Value.(Wildcard); ok {
			wildcardAttrs = append(wildcardAttrs, f.Attr)
		}
	}

	if len(t.Fields) == 1 {
		f := t.Fields[0]
		if exec, ok := compileSingleAttrField(f); ok {
			return exec
		}
	}

	if len(wildcardAttrs) == 1 && len(t.Fields) == 2 {
		// DoubleAttributeProjection: {proj: wildcard, k2: anything-present}.
		var projAttr, otherAttr string
		for _, f := range t.Fields {
			if f.Attr == wildcardAttrs[0] {
				projAttr = f.Attr
			} else {
				otherAttr = f.Attr
			}
		}
		return &Executor{kind: KindDoubleAttrProjection, attr: projAttr, attr2: otherAttr, isProjection: true}
	}

	// SimpleQueryChain: AND-composed single-attribute steps, with at most
	// one trailing projection step.
	chain := make([]*Executor, 0, len(t.Fields))
	isProj := false
	for i, f := range t.Fields {
		step, ok := compileSingleAttrField(f)
		if !ok {
			return compileInterpreted(t)
		}
		if step.isProjection {
			if i != len(t.Fields)-1 {
				return compileInterpreted(t)
			}
			isProj = true
		}
		chain = append(chain, step)
	}
	return &Executor{kind: KindSimpleQueryChain, chain: chain, isProjection: isProj}
}

// compileSingleAttrField compiles one AVField into its SingleAttribute*
// specialization, if its value term has a recognized shape. ok is false
// when the field's value shape is not one of the single-attribute forms
// (e.g. a nested AV or an unflattened set), signalling the caller to fall
// through to a chain step or the interpreter.
func compileSingleAttrField(f AVField) (*Executor, bool) {
	switch v := f.Value.(type) {
	case Wildcard:
		return &Executor{kind: KindSingleAttrProjection, attr: f.Attr, isProjection: true}, true

	case Scalar:
		if b, ok := v.Value.(bool); ok {
			if b {
				return &Executor{kind: KindSingleAttrTrue, attr: f.Attr}, true
			}
			return &Executor{kind: KindSingleAttrFalse, attr: f.Attr}, true
		}
		return &Executor{kind: KindSingleAttrSimpleValue, attr: f.Attr, values: singleton(v.Value), canCache: true}, true

	case Range:
		return &Executor{kind: KindSingleAttrRange, attr: f.Attr, rng: v.Bound, canCache: true}, true

	case Substring:
		return &Executor{kind: KindSingleAttrSubstring, attr: f.Attr, substr: v.Pattern}, true

	case Set:
		if v.IsEmptySet() {
			return &Executor{kind: KindSingleAttrAbsent, attr: f.Attr}, true
		}
		if vals, ok := valueSet(v.Items); ok {
			return &Executor{kind: KindSingleAttrSimpleValueMultiple, attr: f.Attr, values: vals, canCache: true}, true
		}
		return nil, false

	case Neg:
		if v.IsWildcardOnly() {
			return &Executor{kind: KindSingleAttrAbsent, attr: f.Attr}, true
		}
		if len(v.Subs) == 1 {
			if s, ok := v.Subs[0].(Scalar); ok {
				if b, isBool := s.Value.(bool); isBool && b {
					return &Executor{kind: KindSingleAttrPresentFalse, attr: f.Attr}, true
				}
				return &Executor{kind: KindSingleAttrSimpleValueInv, attr: f.Attr, values: singleton(s.Value)}, true
			}
			if s, ok := v.Subs[0].(Set); ok {
				if vals, ok := valueSet(s.Items); ok {
					return &Executor{kind: KindSingleAttrSimpleValueInvMultiple, attr: f.Attr, values: vals}, true
				}
			}
		}
		return nil, false

	default:
		return nil, false
	}
}

// compileInterpreted builds the generic fallback executor: it evaluates
// arbitrary term shapes by direct recursive interpretation rather than a
// specialized test. It is flagged as a projection iff term contains any
// wildcard site, anywhere in its structure.
func compileInterpreted(term Term) *Executor {
	proj := containsWildcard(term)
	return &Executor{
		kind:         KindInterpretedQuery,
		isProjection: proj,
		interpret: func(v Value) (bool, []Value) {
			return evalTerm(term, v)
		},
	}
}

func containsWildcard(term Term) bool {
	switch t := term.(type) {
	case Wildcard:
		return true
	case Set:
		for _, it := range t.Items {
			if containsWildcard(it) {
				return true
			}
		}
	case Neg:
		for _, s := range t.Subs {
			if containsWildcard(s) {
				return true
			}
		}
	case AV:
		for _, f := range t.Fields {
			if containsWildcard(f.Value) {
				return true
			}
		}
	}
	return false
}

// evalTerm is the generic interpreter used by the fallback executor. It
// mirrors Compile's shape logic but without memoizing a dedicated
// specialization, trading speed for generality on shapes the compiler does
// not specialize (e.g. a nested AV attribute value, or a set mixing
// projecting and non-projecting sub-terms).
func evalTerm(term Term, v Value) (bool, []Value) {
	switch t := term.(type) {
	case Wildcard:
		return true, []Value{v}

	case Undefined:
		return false, nil

	case Scalar:
		if !v.IsLeaf {
			return false, nil
		}
		return scalarOf(v.Key) == t.Value, nil

	case Range:
		if !v.IsLeaf {
			return false, nil
		}
		return t.Bound.Contains(scalarOf(v.Key)), nil

	case Substring:
		if !v.IsLeaf {
			return false, nil
		}
		s, ok := v.Key.Value.(string)
		return ok && containsSubstring(s, t.Pattern), nil

	case ElementRef:
		return v.IsLeaf && eidOf(v.Key) == t.EID, nil

	case Set:
		for _, it := range t.Items {
			if matched, projected := evalTerm(it, v); matched {
				return true, projected
			}
		}
		return false, nil

	case Neg:
		for _, s := range t.Subs {
			if matched, _ := evalTerm(s, v); matched {
				return false, nil
			}
		}
		return true, nil

	case AV:
		var projected []Value
		for _, f := range t.Fields {
			sub, ok := v.Attrs[f.Attr]
			if !ok {
				return false, nil
			}
			matched, p := evalTerm(f.Value, sub)
			if !matched {
				return false, nil
			}
			if _, isWildcard := f.Value.(Wildcard); isWildcard {
				projected = p
			}
		}
		if projected != nil {
			return true, projected
		}
		return true, nil

	default:
		avquery.Fatalf("evalTerm", "unhandled term type %T", term)
		return false, nil
	}
}
