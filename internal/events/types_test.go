package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCollectorAddAndReset(t *testing.T) {
	var received []Event
	c := NewCollector(func(e Event) { received = append(received, e) })

	c.AddTiming(QueryCalcMatchesUpdated, time.Now(), map[string]interface{}{"added": 2, "removed": 1})
	require.Len(t, received, 1, "expected handler to fire once")
	require.Len(t, c.Events(), 1, "expected 1 stored event")

	c.Reset()
	require.Empty(t, c.Events(), "expected events cleared after Reset")
}

func TestCollectorDisabledWithNilHandler(t *testing.T) {
	c := NewCollector(nil)
	c.Add(Event{Name: QueryCalcSuspended})
	require.Empty(t, c.Events(), "expected a nil-handler collector to discard events")
}

func TestGetDataMapPoolReuse(t *testing.T) {
	c := NewCollector(func(Event) {})
	m := c.GetDataMap()
	m["x"] = 1
	m2 := c.GetDataMap()
	require.Empty(t, m2, "expected a freshly handed-out pooled map to be empty")
}

func TestOutputFormatterFormatsKnownEvents(t *testing.T) {
	f := NewOutputFormatter(nil)
	out := f.Format(Event{Name: QueryCalcMatchesUpdated, Data: map[string]interface{}{"added": 2, "removed": 1}})
	require.NotEmpty(t, out, "expected a non-empty formatted line")
}
