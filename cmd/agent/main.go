// Package main is the entry point for the pvlog agent. It loads the layered
// configuration, probes PVOutput for the system's name and status interval,
// wires the inverter client to the output sinks, and runs the poll loop
// until terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pvlog/agent/internal/config"
	"github.com/pvlog/agent/internal/daylight"
	"github.com/pvlog/agent/internal/inverter"
	"github.com/pvlog/agent/internal/models"
	"github.com/pvlog/agent/internal/poller"
	"github.com/pvlog/agent/internal/publish"
	"github.com/pvlog/agent/internal/pvoutput"
	"github.com/pvlog/agent/internal/recorder"
	"github.com/pvlog/agent/internal/telemetry"
)

// fallbackInterval is used when neither the config nor PVOutput supplies a
// poll interval.
const fallbackInterval = 5 * time.Minute

var (
	// version is set at build time via -ldflags.
	version = "dev"

	configPath      = flag.String("config", "", "Path to configuration file (default: auto-discover)")
	inverterAddr    = flag.String("ip", "", "Inverter address, overrides configuration")
	intervalSeconds = flag.Int("interval", 0, "Poll interval in seconds, overrides configuration")
	showVersion     = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("pvlog-agent %s\n", version)
		os.Exit(0)
	}

	cli := config.CLIOverrides{
		InverterAddress: *inverterAddr,
		IntervalSeconds: *intervalSeconds,
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadLayered(cli, embeddedConfig, *configPath)
	} else {
		cfg, err = config.LoadLayered(cli, embeddedConfig)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)
	defer logger.Sync()

	logger.Info("Starting pvlog agent",
		zap.String("version", version),
		zap.String("inverter", cfg.Inverter.Address))

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// Probe PVOutput for the system name and its expected status interval.
	// Bad credentials are fatal here: every upload would fail the same way.
	system := models.SystemInfo{Name: "inverter"}
	var uploader *pvoutput.Client
	if cfg.PVOutput.Enabled {
		uploader = pvoutput.New(cfg.PVOutput.BaseURL, cfg.PVOutput.APIKey,
			cfg.PVOutput.SystemID, cfg.PVOutput.Timeout.Duration)

		probeCtx, cancel := context.WithTimeout(context.Background(), cfg.PVOutput.Timeout.Duration)
		info, err := uploader.GetSystem(probeCtx)
		cancel()
		switch {
		case err == nil:
			system = info
			logger.Info("PVOutput system found",
				zap.String("name", system.Name),
				zap.Duration("status_interval", system.StatusInterval))
		case pvoutput.IsUnauthorized(err):
			logger.Fatal("Could not authenticate with PVOutput, check API settings", zap.Error(err))
		default:
			logger.Warn("Could not query PVOutput system info, using defaults", zap.Error(err))
		}
	}

	interval := cfg.Poll.Interval.Duration
	if interval <= 0 {
		if system.StatusInterval > 0 {
			interval = system.StatusInterval
		} else {
			interval = fallbackInterval
		}
	}

	dbFile := cfg.Recorder.File
	if dbFile == "" {
		dbFile = fmt.Sprintf("%s database.csv", system.Name)
	}
	store := recorder.New(cfg.Recorder.Dir, dbFile)
	logger.Info("Logging readings", zap.String("database", store.Path()))

	metrics := telemetry.New()
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Listen); err != nil {
				logger.Error("Metrics endpoint failed", zap.Error(err))
			}
		}()
		logger.Info("Serving metrics", zap.String("listen", cfg.Metrics.Listen))
	}

	client := inverter.New(cfg.Inverter.Address, cfg.Inverter.Timeout.Duration)

	p := poller.New(client, store, interval, metrics, logger)
	if uploader != nil {
		p.SetUploader(uploader)
	}
	if cfg.MQTT.Broker != "" {
		pub, err := publish.Connect(cfg.MQTT.Broker, cfg.MQTT.TopicPrefix)
		if err != nil {
			logger.Warn("MQTT broker unreachable, publishing disabled", zap.Error(err))
		} else {
			defer pub.Close()
			p.SetPublisher(pub)
		}
	}
	if cfg.Poll.DaylightOnly {
		p.SetGate(daylight.New(cfg.Poll.Latitude, cfg.Poll.Longitude))
		logger.Info("Polling during daylight only",
			zap.Float64("latitude", cfg.Poll.Latitude),
			zap.Float64("longitude", cfg.Poll.Longitude))
	}

	// Handle OS signals for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received signal, shutting down",
			zap.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("Agent running", zap.Duration("poll_interval", interval))
	p.Run(ctx)
	logger.Info("Agent stopped")
}

// initLogger creates a zap logger based on the configuration.
// It outputs to both console (human-readable) and optionally a JSON log file.
func initLogger(cfg *config.Config) *zap.Logger {
	var level zapcore.Level
	switch cfg.Logging.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)

	cores := []zapcore.Core{consoleCore}

	if cfg.Logging.File != "" {
		file, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err == nil {
			fileCore := zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				zapcore.AddSync(file),
				level,
			)
			cores = append(cores, fileCore)
		}
	}

	return zap.New(zapcore.NewTee(cores...))
}
