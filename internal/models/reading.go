// Package models defines the data structures shared between the inverter
// client and the output sinks. A Reading is never mutated after the client
// produces it.
package models

import (
	"math"
	"time"
)

// Reading is a single point-in-time snapshot of inverter production metrics.
type Reading struct {
	Timestamp time.Time `json:"timestamp"`

	// PowerWatts is the instantaneous AC output power.
	PowerWatts int `json:"power_watts"`

	// EnergyTodayKWh is the energy produced since midnight, as the inverter
	// reports it (after leading-zero repair).
	EnergyTodayKWh float64 `json:"energy_today_kwh"`

	// Status is the inverter's self-reported state, "OK" or "Error".
	Status string `json:"status"`
}

// EnergyTodayWh returns today's energy in watt-hours, the unit PVOutput
// and the CSV log use.
func (r Reading) EnergyTodayWh() int {
	return int(math.Round(r.EnergyTodayKWh * 1000))
}

// SystemInfo describes the PVOutput system this agent uploads to,
// as returned by the getsystem endpoint.
type SystemInfo struct {
	// Name is the system's display name on PVOutput.
	Name string

	// StatusInterval is the interval PVOutput expects status posts at.
	StatusInterval time.Duration
}
