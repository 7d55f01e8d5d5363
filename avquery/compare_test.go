package avquery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCompareScalars(t *testing.T) {
	tests := []struct {
		name        string
		left, right interface{}
		want        int
	}{
		{"nil vs nil", nil, nil, 0},
		{"nil vs value", nil, 1, -1},
		{"value vs nil", 1, nil, 1},
		{"int64 less", int64(1), int64(2), -1},
		{"int64 equal", int64(2), int64(2), 0},
		{"int64 greater", int64(3), int64(2), 1},
		{"int cross float", 1, 1.5, -1},
		{"string less", "a", "b", -1},
		{"bool false lt true", false, true, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CompareScalars(tt.left, tt.right))
		})
	}
}

func TestScalarsEqual(t *testing.T) {
	require.True(t, ScalarsEqual(int64(5), int64(5)), "expected equal int64s to be equal")
	require.False(t, ScalarsEqual(int64(5), int64(6)), "expected different int64s to be unequal")
	now := time.Now()
	require.True(t, ScalarsEqual(now, now), "expected identical times to be equal")
}
