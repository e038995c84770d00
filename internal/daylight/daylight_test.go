package daylight

import (
	"testing"
	"time"
)

// Greenwich on the June solstice: the sun is well up at noon UTC and well
// down near midnight.
const (
	testLat = 51.48
	testLon = 0.0
)

func gateAt(t *testing.T, stamp string) *Gate {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		t.Fatal(err)
	}
	g := New(testLat, testLon)
	g.now = func() time.Time { return ts }
	return g
}

func TestUp_Noon(t *testing.T) {
	if !gateAt(t, "2026-06-21T12:00:00Z").Up() {
		t.Error("Up() = false at solstice noon, want true")
	}
}

func TestUp_Night(t *testing.T) {
	if gateAt(t, "2026-06-21T23:30:00Z").Up() {
		t.Error("Up() = true near midnight, want false")
	}
}

func TestUp_WinterMorningStillDark(t *testing.T) {
	// Sunrise in Greenwich on the December solstice is after 08:00 UTC.
	if gateAt(t, "2026-12-21T06:30:00Z").Up() {
		t.Error("Up() = true before winter sunrise, want false")
	}
}
