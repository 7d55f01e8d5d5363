package valuetype

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeUnionsFlags(t *testing.T) {
	a := New(String)
	b := New(Number)
	m := Merge(a, b)
	require.True(t, m.Has(String), "expected merge to carry the String flag")
	require.True(t, m.Has(Number), "expected merge to carry the Number flag")
}

func TestMergeObjectAttrsRecursive(t *testing.T) {
	strT := New(String)
	numT := New(Number)
	a := ValueType{Flags: Object, ObjectAttr: map[string]*ValueType{"x": &strT}}
	b := ValueType{Flags: Object, ObjectAttr: map[string]*ValueType{"x": &numT, "y": &strT}}

	m := Merge(a, b)
	require.True(t, m.Has(Object))
	require.True(t, m.ObjectAttr["x"].Has(String), "expected attribute x to merge String and Number")
	require.True(t, m.ObjectAttr["x"].Has(Number), "expected attribute x to merge String and Number")
	require.True(t, m.ObjectAttr["y"].Has(String), "expected attribute y to carry over")
}

func TestSubsumes(t *testing.T) {
	broad := New(String | Number)
	narrow := New(String)
	require.True(t, Subsumes(broad, narrow), "expected broader type to subsume narrower type")
	require.False(t, Subsumes(narrow, broad), "narrower type should not subsume broader type")
}

func TestCanMatch(t *testing.T) {
	require.False(t, CanMatch(New(String), New(Number)), "disjoint types should not be able to match")
	require.True(t, CanMatch(New(String|Number), New(Number)), "overlapping types should be able to match")
	require.True(t, CanMatch(New(Unknown), New(Number)), "unknown type should never rule out a match")
}

func TestIsStrictSelection(t *testing.T) {
	require.True(t, IsStrictSelection(New(Boolean)), "plain boolean should be a strict selection type")
	require.False(t, IsStrictSelection(New(Boolean|String)), "boolean combined with other flags is not strict selection")
}

func TestAddSize(t *testing.T) {
	vt := New(Number)
	vt = AddSize(vt, SizeRange{Min: 1, Max: 5})
	vt = AddSize(vt, SizeRange{Min: 0, Max: 10})
	require.Len(t, vt.Sizes, 1, "expected a single merged size range")
	require.Equal(t, 0, vt.Sizes[0].Min)
	require.Equal(t, 10, vt.Sizes[0].Max)
}
