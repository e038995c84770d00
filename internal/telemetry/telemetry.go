// Package telemetry exposes the agent's own operational metrics over an
// optional Prometheus endpoint.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the agent's Prometheus instruments.
type Metrics struct {
	PowerWatts     prometheus.Gauge
	EnergyTodayWh  prometheus.Gauge
	PollsTotal     prometheus.Counter
	PollFailures   prometheus.Counter
	RecordFailures prometheus.Counter
	UploadsTotal   prometheus.Counter
	UploadFailures prometheus.Counter

	registry *prometheus.Registry
}

// New creates and registers all instruments on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		PowerWatts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pvlog",
			Name:      "power_watts",
			Help:      "Instantaneous AC power from the last successful poll",
		}),
		EnergyTodayWh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pvlog",
			Name:      "energy_today_wh",
			Help:      "Energy produced since midnight from the last successful poll",
		}),
		PollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pvlog",
			Name:      "polls_total",
			Help:      "Successful inverter polls",
		}),
		PollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pvlog",
			Name:      "poll_failures_total",
			Help:      "Polls that failed or returned an unusable payload",
		}),
		RecordFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pvlog",
			Name:      "record_failures_total",
			Help:      "Readings that could not be appended to the local database",
		}),
		UploadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pvlog",
			Name:      "uploads_total",
			Help:      "Successful PVOutput status uploads",
		}),
		UploadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pvlog",
			Name:      "upload_failures_total",
			Help:      "PVOutput uploads rejected or unreachable",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.PowerWatts, m.EnergyTodayWh,
		m.PollsTotal, m.PollFailures,
		m.RecordFailures,
		m.UploadsTotal, m.UploadFailures,
	)
	return m
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts the metrics endpoint on addr. It blocks, so callers run it
// in its own goroutine; errors are returned when the listener dies.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
