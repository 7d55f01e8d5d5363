package simplequery

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbrown/avquery"
)

func numKey(n float64) avquery.Key {
	return avquery.ScalarKey(avquery.KeyTypeNumber, n)
}

func avOf(attr string, v avquery.Key) Value {
	return Object(map[string]Value{attr: Leaf(v)})
}

// TestScenario_S1_ScalarSelection mirrors spec.md scenario S1.
func TestScenario_S1_ScalarSelection(t *testing.T) {
	data := []Value{
		avOf("a", numKey(1)),
		avOf("a", numKey(2)),
		avOf("a", numKey(2)),
		avOf("a", numKey(3)),
	}
	idents := []avquery.EID{1, 2, 3, 4}

	term := AV{Fields: []AVField{{Attr: "a", Value: Scalar{Value: float64(2)}}}}
	exec := Compile(term)
	require.Equal(t, KindSingleAttrSimpleValue, exec.Kind())

	var outIdents []avquery.EID
	exec.Execute(data, idents, &outIdents, nil)
	require.Equal(t, []avquery.EID{2, 3}, outIdents)

	// "removeValue" is modeled here as mutating the query value set to
	// empty and recompiling, then restoring it — compilation itself is
	// pure, so this just re-validates the round trip.
	emptyTerm := AV{Fields: []AVField{{Attr: "a", Value: Set{}}}}
	emptyExec := Compile(emptyTerm)
	var noIdents []avquery.EID
	emptyExec.Execute(data, idents, &noIdents, nil)
	require.Empty(t, noIdents)

	var again []avquery.EID
	exec.Execute(data, idents, &again, nil)
	require.Equal(t, []avquery.EID{2, 3}, again)
}

// TestScenario_S2_RangeSelectionWithCache mirrors spec.md scenario S2.
func TestScenario_S2_RangeSelectionWithCache(t *testing.T) {
	data := []Value{
		avOf("a", numKey(5)),
		avOf("a", numKey(10)),
		avOf("a", numKey(15)),
		avOf("a", numKey(20)),
	}
	result := &Result{Data: data}

	term := AV{Fields: []AVField{{Attr: "a", Value: Range{Bound: avquery.RangeValue{
		Min: float64(8), Max: float64(18), ClosedLower: true, ClosedUpper: true,
	}}}}}
	exec := Compile(term)
	require.True(t, exec.CanCache(), "expected range selection to support ExecuteAndCache")

	got := exec.ExecuteAndCache(result, nil, nil)
	want := []Value{avOf("a", numKey(10)), avOf("a", numKey(15))}
	require.Equal(t, want, got)

	// Mutate the query to a narrower range; same Result, same cached index.
	narrower := AV{Fields: []AVField{{Attr: "a", Value: Range{Bound: avquery.RangeValue{
		Min: float64(12), Max: float64(17), ClosedLower: true, ClosedUpper: true,
	}}}}}
	execNarrow := Compile(narrower)
	got2 := execNarrow.ExecuteAndCache(result, nil, nil)
	want2 := []Value{avOf("a", numKey(15))}
	require.Equal(t, want2, got2)

	require.Len(t, result.indices, 1, "expected the sorted index to be shared across both queries on attribute a")
}

func TestPassThroughAndSelectNone(t *testing.T) {
	data := []Value{Leaf(numKey(1)), Leaf(numKey(2))}
	idents := []avquery.EID{10, 20}

	pt := Compile(AV{})
	var got []avquery.EID
	pt.Execute(data, idents, &got, nil)
	require.Equal(t, idents, got, "expected pass-through to select everything")

	none := Compile(Undefined{})
	var got2 []avquery.EID
	none.Execute(data, idents, &got2, nil)
	require.Empty(t, got2, "expected SelectNone to select nothing")
}

func TestSimpleNegationAndOr(t *testing.T) {
	data := []Value{numKeyVal(1), numKeyVal(2), numKeyVal(3)}
	idents := []avquery.EID{1, 2, 3}

	neg := Compile(Neg{Subs: []Term{Scalar{Value: float64(2)}}})
	var got []avquery.EID
	neg.Execute(data, idents, &got, nil)
	require.Equal(t, []avquery.EID{1, 3}, got, "expected negation to exclude 2")

	or := Compile(Set{Items: []Term{Scalar{Value: float64(1)}, Scalar{Value: float64(3)}}})
	require.Equal(t, KindSimpleValueMultipleSelection, or.Kind(), "expected an all-scalar set to compile to SimpleValueMultipleSelection")
	var got2 []avquery.EID
	or.Execute(data, idents, &got2, nil)
	require.Equal(t, []avquery.EID{1, 3}, got2, "expected or-selection to match 1 and 3")
}

func numKeyVal(n float64) Value { return Leaf(numKey(n)) }

func TestSingleAttributeProjection(t *testing.T) {
	data := []Value{
		Object(map[string]Value{"a": Leaf(numKey(1)), "b": Leaf(numKey(100))}),
		Object(map[string]Value{"b": Leaf(numKey(200))}), // no "a": excluded
	}
	idents := []avquery.EID{1, 2}

	term := AV{Fields: []AVField{{Attr: "a", Value: Wildcard{}}}}
	exec := Compile(term)
	require.True(t, exec.IsProjection(), "expected SingleAttributeProjection to be a projection")
	var outIdents []avquery.EID
	out := exec.Execute(data, idents, &outIdents, nil)
	require.Len(t, out, 1)
	require.Equal(t, []avquery.EID{1}, outIdents, "expected one projected element from e1")
	require.Equal(t, float64(1), out[0].Key.Value, "expected projected value 1")
}

// TestSingleAttrFalseVsPresentFalse pins down that {k: false} and {k: n(true)}
// are distinct specializations: the former only matches a literal boolean
// false, the latter matches any present non-true value.
func TestSingleAttrFalseVsPresentFalse(t *testing.T) {
	data := []Value{
		avOf("a", avquery.ScalarKey(avquery.KeyTypeBoolean, false)),
		avOf("a", numKey(2)), // present, non-boolean: not false, but not-true
	}
	idents := []avquery.EID{1, 2}

	falseTerm := AV{Fields: []AVField{{Attr: "a", Value: Scalar{Value: false}}}}
	falseExec := Compile(falseTerm)
	require.Equal(t, KindSingleAttrFalse, falseExec.Kind())
	var falseIdents []avquery.EID
	falseExec.Execute(data, idents, &falseIdents, nil)
	require.Equal(t, []avquery.EID{1}, falseIdents, "expected {k: false} to match only the literal boolean false")

	presentFalseTerm := AV{Fields: []AVField{{Attr: "a", Value: Neg{Subs: []Term{Scalar{Value: true}}}}}}
	presentFalseExec := Compile(presentFalseTerm)
	require.Equal(t, KindSingleAttrPresentFalse, presentFalseExec.Kind())
	var presentFalseIdents []avquery.EID
	presentFalseExec.Execute(data, idents, &presentFalseIdents, nil)
	require.Equal(t, []avquery.EID{1, 2}, presentFalseIdents, "expected {k: n(true)} to match any present non-true value")
}

func TestMemoCompileReusesExecutor(t *testing.T) {
	memo := NewMemo(10, 0)
	term1 := AV{Fields: []AVField{{Attr: "a", Value: Scalar{Value: float64(2)}}}}
	term2 := AV{Fields: []AVField{{Attr: "a", Value: Scalar{Value: float64(2)}}}}

	e1 := memo.Compile(term1)
	e2 := memo.Compile(term2)
	require.True(t, e1 == e2, "expected structurally-equal terms to share one compiled executor")

	hits, misses, size := memo.Stats()
	require.Equal(t, int64(1), hits)
	require.Equal(t, int64(1), misses)
	require.Equal(t, 1, size)
}
