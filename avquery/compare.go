package avquery

import (
	"fmt"
	"strings"
	"time"
)

// CompareScalars compares two scalar values and returns -1, 0, or 1.
// It mirrors the dynamic-dispatch style used throughout this engine's
// teacher lineage for comparing loosely-typed values: nil sorts lowest,
// same-type values compare natively, numeric types cross-convert, and
// anything else falls back to a string comparison rather than panicking.
func CompareScalars(left, right interface{}) int {
	if left == nil && right == nil {
		return 0
	}
	if left == nil {
		return -1
	}
	if right == nil {
		return 1
	}

	switch l := left.(type) {
	case int:
		return compareNumeric(int64(l), right)
	case int64:
		return compareNumeric(l, right)
	case float64:
		return compareFloat(l, right)
	case string:
		if r, ok := right.(string); ok {
			return strings.Compare(l, r)
		}
		return -1
	case bool:
		if r, ok := right.(bool); ok {
			if !l && r {
				return -1
			} else if l && !r {
				return 1
			}
			return 0
		}
		return -1
	case time.Time:
		if r, ok := right.(time.Time); ok {
			if l.Before(r) {
				return -1
			} else if l.After(r) {
				return 1
			}
			return 0
		}
		return -1
	}

	return strings.Compare(stringValue(left), stringValue(right))
}

func compareNumeric(left int64, right interface{}) int {
	switch r := right.(type) {
	case int:
		return compareInt64s(left, int64(r))
	case int64:
		return compareInt64s(left, r)
	case float64:
		return compareFloat(float64(left), right)
	}
	return -1
}

func compareFloat(left float64, right interface{}) int {
	switch r := right.(type) {
	case int:
		return compareFloats(left, float64(r))
	case int64:
		return compareFloats(left, float64(r))
	case float64:
		return compareFloats(left, r)
	}
	return -1
}

func compareInt64s(a, b int64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func compareFloats(a, b float64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// ScalarsEqual reports whether two scalars are the same value of the same
// dynamic type (times compared with time.Equal), without paying for a full
// three-way comparison. Unlike CompareScalars it does not treat numbers of
// different Go types as equal: int64(1) and float64(1) are not equal here.
func ScalarsEqual(a, b interface{}) bool {
	if a == b {
		return true
	}
	switch av := a.(type) {
	case int, int64, float64, string, bool:
		return a == b
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Equal(bv)
		}
	}
	return false
}

func stringValue(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
