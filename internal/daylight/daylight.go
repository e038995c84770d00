// Package daylight decides whether the sun is up at the configured site so
// the poller can skip the hours no production is possible.
package daylight

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// Gate answers "is it daylight right now" for a fixed location.
type Gate struct {
	lat, lon float64

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Gate for the given coordinates.
func New(lat, lon float64) *Gate {
	return &Gate{lat: lat, lon: lon, now: time.Now}
}

// Up reports whether the current time falls between today's sunrise and
// sunset at the gate's location.
func (g *Gate) Up() bool {
	now := g.now().UTC()
	rise, set := sunrise.SunriseSunset(g.lat, g.lon, now.Year(), now.Month(), now.Day())
	return now.After(rise) && now.Before(set)
}
