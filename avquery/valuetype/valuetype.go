// Package valuetype implements the ValueType sum-of-flags lattice with the
// operations Merge, Subsumes, CanMatch, AddSize and IsStrictSelection. The
// full algebra sketched by the upstream type-inference helper is out of
// scope. The simple-query compiler does not consult this package: it picks
// SingleAttributeProjection, DoubleAttributeProjection or the interpreted
// executor from the term's shape alone.
package valuetype

// Flag is one bit of the ValueType lattice.
type Flag uint32

const (
	Unknown Flag = 1 << iota
	Remote
	DataSource
	AnyData
	Undef
	String
	Number
	Boolean
	Query
	Range
	Projector
	TerminalSymbol
	ForeignInterface
	Defun
	ComparisonFunction
	Object
	Areas
)

// AreaID identifies one branch of an Areas-flagged ValueType.
type AreaID string

// SizeRange is a cardinality estimate: the value has between Min and Max
// occurrences (Max == -1 means unbounded).
type SizeRange struct {
	Min int
	Max int // -1 = unbounded
}

// ValueType is a lattice element: a set of flags plus, for the flags that
// carry structure, the nested detail (Defun's parameter type, Object's
// per-attribute map, Areas' per-area map) and a cardinality estimate.
type ValueType struct {
	Flags Flag

	DefunParam *ValueType            // valid when Flags&Defun != 0
	ObjectAttr map[string]*ValueType // valid when Flags&Object != 0
	AreaTypes  map[AreaID]*ValueType // valid when Flags&Areas != 0

	Sizes []SizeRange
}

// Has reports whether every bit in f is set.
func (vt ValueType) Has(f Flag) bool {
	return vt.Flags&f == f
}

// New builds a ValueType with the given flags and no structural detail.
func New(flags Flag) ValueType {
	return ValueType{Flags: flags}
}

// Merge computes the least upper bound of two ValueTypes: the union of their
// flags, with structural detail (Object attrs, Areas, Defun param) merged
// recursively attribute-by-attribute / area-by-area, and size ranges unioned.
func Merge(a, b ValueType) ValueType {
	out := ValueType{Flags: a.Flags | b.Flags}

	if a.Has(Defun) || b.Has(Defun) {
		switch {
		case a.DefunParam != nil && b.DefunParam != nil:
			merged := Merge(*a.DefunParam, *b.DefunParam)
			out.DefunParam = &merged
		case a.DefunParam != nil:
			out.DefunParam = a.DefunParam
		default:
			out.DefunParam = b.DefunParam
		}
	}

	if a.Has(Object) || b.Has(Object) {
		out.ObjectAttr = mergeAttrMaps(a.ObjectAttr, b.ObjectAttr)
	}

	if a.Has(Areas) || b.Has(Areas) {
		out.AreaTypes = mergeAreaMaps(a.AreaTypes, b.AreaTypes)
	}

	out.Sizes = mergeSizes(a.Sizes, b.Sizes)
	return out
}

func mergeAttrMaps(a, b map[string]*ValueType) map[string]*ValueType {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	out := make(map[string]*ValueType, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if existing, ok := out[k]; ok {
			merged := Merge(*existing, *v)
			out[k] = &merged
		} else {
			out[k] = v
		}
	}
	return out
}

func mergeAreaMaps(a, b map[AreaID]*ValueType) map[AreaID]*ValueType {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	out := make(map[AreaID]*ValueType, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if existing, ok := out[k]; ok {
			merged := Merge(*existing, *v)
			out[k] = &merged
		} else {
			out[k] = v
		}
	}
	return out
}

// mergeSizes unions two cardinality estimates by widening the combined
// min/max into a single range; callers that need per-branch detail should
// keep their own bookkeeping, this lattice only needs a coarse estimate.
func mergeSizes(a, b []SizeRange) []SizeRange {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	min, max := a[0].Min, a[0].Max
	for _, s := range append(append([]SizeRange{}, a...), b...) {
		if s.Min < min {
			min = s.Min
		}
		if max != -1 && (s.Max == -1 || s.Max > max) {
			max = s.Max
		}
	}
	return []SizeRange{{Min: min, Max: max}}
}

// AddSize widens vt's cardinality estimate to also cover r, returning the
// updated ValueType.
func AddSize(vt ValueType, r SizeRange) ValueType {
	vt.Sizes = mergeSizes(vt.Sizes, []SizeRange{r})
	return vt
}

// Subsumes reports whether every value described by other is also described
// by vt: every flag set in other must be set in vt, and for structural flags
// the nested detail must subsume as well.
func Subsumes(vt, other ValueType) bool {
	if vt.Flags&other.Flags != other.Flags {
		return false
	}
	if other.Has(Defun) {
		if vt.DefunParam == nil || other.DefunParam == nil {
			return vt.DefunParam == other.DefunParam
		}
		if !Subsumes(*vt.DefunParam, *other.DefunParam) {
			return false
		}
	}
	if other.Has(Object) {
		for attr, ot := range other.ObjectAttr {
			vtAttr, ok := vt.ObjectAttr[attr]
			if !ok || !Subsumes(*vtAttr, *ot) {
				return false
			}
		}
	}
	if other.Has(Areas) {
		for area, ot := range other.AreaTypes {
			vtArea, ok := vt.AreaTypes[area]
			if !ok || !Subsumes(*vtArea, *ot) {
				return false
			}
		}
	}
	return true
}

// CanMatch reports whether a value of type vt could possibly satisfy a query
// against a value of type queryType — i.e. whether the two lattice elements
// share any flag. Disjoint flag sets (e.g. String vs Number) can never
// match.
func CanMatch(vt, queryType ValueType) bool {
	if vt.Flags&Unknown != 0 || queryType.Flags&Unknown != 0 {
		return true // unknown type: can't rule anything out
	}
	return vt.Flags&queryType.Flags != 0
}

// IsStrictSelection reports whether vt describes a type that can only ever
// be used as a boolean-style selection predicate (never projected): plain
// Boolean with no other flags set.
func IsStrictSelection(vt ValueType) bool {
	return vt.Flags == Boolean
}
