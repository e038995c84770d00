// Package poller implements the agent's main loop: poll the inverter on a
// fixed interval, then hand the reading to each output sink in turn. Every
// sink is best-effort — one failing never stops the others, and no
// per-iteration error ever stops the loop. The loop runs on a single
// goroutine and exits only when its context is cancelled.
package poller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pvlog/agent/internal/models"
	"github.com/pvlog/agent/internal/telemetry"
)

// Inverter produces one reading per call.
type Inverter interface {
	Poll(ctx context.Context) (models.Reading, error)
}

// Store persists one reading locally.
type Store interface {
	Append(reading models.Reading) error
}

// Uploader sends one reading to the monitoring service.
type Uploader interface {
	AddStatus(ctx context.Context, reading models.Reading) error
}

// Publisher pushes one reading to local subscribers.
type Publisher interface {
	Publish(reading models.Reading) error
}

// Gate reports whether polling is currently worthwhile.
type Gate interface {
	Up() bool
}

// Poller drives the poll/record/publish/upload cycle.
type Poller struct {
	inverter Inverter
	store    Store
	interval time.Duration
	metrics  *telemetry.Metrics
	logger   *zap.Logger

	uploader  Uploader
	publisher Publisher
	gate      Gate
}

// New creates a Poller with the required components. Optional sinks are
// attached with the Set methods before Run.
func New(inv Inverter, store Store, interval time.Duration, m *telemetry.Metrics, logger *zap.Logger) *Poller {
	return &Poller{
		inverter: inv,
		store:    store,
		interval: interval,
		metrics:  m,
		logger:   logger,
	}
}

// SetUploader attaches the monitoring-service sink.
func (p *Poller) SetUploader(u Uploader) { p.uploader = u }

// SetPublisher attaches the MQTT sink.
func (p *Poller) SetPublisher(pub Publisher) { p.publisher = pub }

// SetGate attaches the daylight gate. Without one, the poller polls around
// the clock.
func (p *Poller) SetGate(g Gate) { p.gate = g }

// Run starts the loop and blocks until ctx is cancelled. The first poll
// happens immediately; after that the ticker sets the pace. Cancellation is
// checked at every wait point, so shutdown never waits out a full interval.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.iterate(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Poll loop stopped")
			return
		case <-ticker.C:
			p.iterate(ctx)
		}
	}
}

// iterate runs one poll/record/publish/upload sequence. All errors are
// handled here; none propagate to Run.
func (p *Poller) iterate(ctx context.Context) {
	if p.gate != nil && !p.gate.Up() {
		p.logger.Debug("Sun below horizon, skipping poll")
		return
	}

	reading, err := p.inverter.Poll(ctx)
	if err != nil {
		p.metrics.PollFailures.Inc()
		p.logger.Warn("Inverter poll failed", zap.Error(err))
		return
	}

	p.metrics.PollsTotal.Inc()
	p.metrics.PowerWatts.Set(float64(reading.PowerWatts))
	p.metrics.EnergyTodayWh.Set(float64(reading.EnergyTodayWh()))

	if reading.Status == "Error" {
		p.logger.Warn("Inverter reports error status")
	}
	p.logger.Info("Reading collected",
		zap.Int("power_w", reading.PowerWatts),
		zap.Float64("energy_today_kwh", reading.EnergyTodayKWh),
		zap.String("status", reading.Status))

	if err := p.store.Append(reading); err != nil {
		p.metrics.RecordFailures.Inc()
		p.logger.Warn("Failed to append reading to local database", zap.Error(err))
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(reading); err != nil {
			p.logger.Warn("Failed to publish reading", zap.Error(err))
		}
	}

	if p.uploader != nil {
		if err := p.uploader.AddStatus(ctx, reading); err != nil {
			p.metrics.UploadFailures.Inc()
			p.logger.Warn("Upload failed", zap.Error(err))
		} else {
			p.metrics.UploadsTotal.Inc()
			p.logger.Debug("Reading uploaded")
		}
	}
}
