// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: CLI flags > environment variables > config file > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a wrapper around time.Duration that supports YAML unmarshaling
// from human-readable strings like "15s", "5m", "1h".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		parsed, err := time.ParseDuration(value.Value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value.Value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("unsupported duration format: %v", value.Kind)
	}
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds all agent configuration.
type Config struct {
	Inverter InverterConfig `yaml:"inverter"`
	Poll     PollConfig     `yaml:"poll"`
	PVOutput PVOutputConfig `yaml:"pvoutput"`
	Recorder RecorderConfig `yaml:"recorder"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InverterConfig holds the local inverter endpoint settings.
type InverterConfig struct {
	// Address is the inverter's host or host:port on the local network.
	Address string   `yaml:"address"`
	Timeout Duration `yaml:"timeout"`
}

// PollConfig holds the polling schedule settings.
type PollConfig struct {
	// Interval between successive inverter queries. Zero means "use the
	// status interval PVOutput reports at startup".
	Interval Duration `yaml:"interval"`

	// DaylightOnly suppresses polling between sunset and sunrise.
	DaylightOnly bool    `yaml:"daylight_only"`
	Latitude     float64 `yaml:"latitude"`
	Longitude    float64 `yaml:"longitude"`
}

// PVOutputConfig holds upload service credentials and endpoint settings.
type PVOutputConfig struct {
	Enabled  bool     `yaml:"enabled"`
	APIKey   string   `yaml:"api_key"`
	SystemID string   `yaml:"system_id"`
	BaseURL  string   `yaml:"base_url"`
	Timeout  Duration `yaml:"timeout"`
}

// RecorderConfig holds local CSV log settings.
type RecorderConfig struct {
	// Dir is where the CSV database lives.
	Dir string `yaml:"dir"`

	// File overrides the database filename. When empty the filename is
	// derived from the PVOutput system name.
	File string `yaml:"file"`
}

// MQTTConfig holds the optional MQTT publisher settings.
// An empty broker address disables publishing.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// MetricsConfig holds the optional Prometheus listener settings.
// An empty listen address disables the endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Inverter: InverterConfig{
			Timeout: Duration{5 * time.Second},
		},
		Poll: PollConfig{
			Interval: Duration{0},
		},
		PVOutput: PVOutputConfig{
			Enabled: true,
			BaseURL: "https://pvoutput.org/service/r2",
			Timeout: Duration{10 * time.Second},
		},
		Recorder: RecorderConfig{
			Dir: ".",
		},
		MQTT: MQTTConfig{
			TopicPrefix: "pv_inverter",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// CLIOverrides holds values from command-line flags.
// Zero values are treated as "not set" and skipped.
type CLIOverrides struct {
	InverterAddress string
	IntervalSeconds int
}

// Locate searches standard config file paths and returns the first one found.
// Returns empty string if no config file exists.
func Locate() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	return []string{
		filepath.Join(home, ".pvlog", "config.yaml"),
		"/etc/pvlog/agent.yaml",
	}
}

// LoadLayered loads configuration with the full precedence chain:
// CLI flags > env vars > external YAML file > embedded bytes > defaults.
//
// An optional configPath argument controls external-file discovery:
//   - omitted        → auto-discover via Locate()
//   - explicit value  → use that path ("" means no external file)
func LoadLayered(cli CLIOverrides, embedded []byte, configPath ...string) (*Config, error) {
	cfg := DefaultConfig()

	// Layer 1: embedded config (lowest priority data layer)
	if len(embedded) > 0 {
		if err := yaml.Unmarshal(embedded, cfg); err != nil {
			return nil, fmt.Errorf("parsing embedded config: %w", err)
		}
	}

	// Layer 2: external YAML file
	var filePath string
	if len(configPath) > 0 {
		filePath = configPath[0] // caller-supplied (may be "")
	} else {
		filePath = Locate() // auto-discover
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
			}
		}
	}

	// Layer 3: environment variables
	applyEnvOverrides(cfg)

	// Layer 4: CLI flags (highest priority)
	if cli.InverterAddress != "" {
		cfg.Inverter.Address = cli.InverterAddress
	}
	if cli.IntervalSeconds != 0 {
		cfg.Poll.Interval = Duration{time.Duration(cli.IntervalSeconds) * time.Second}
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if addr := os.Getenv("PVLOG_INVERTER_ADDRESS"); addr != "" {
		cfg.Inverter.Address = addr
	}
	if key := os.Getenv("PVLOG_API_KEY"); key != "" {
		cfg.PVOutput.APIKey = key
	}
	if id := os.Getenv("PVLOG_SYSTEM_ID"); id != "" {
		cfg.PVOutput.SystemID = id
	}
	if level := os.Getenv("PVLOG_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

// Validate checks that the configuration can start the agent.
// A failure here is fatal: the process exits before the poll loop begins.
func (c *Config) Validate() error {
	if c.Inverter.Address == "" {
		return fmt.Errorf("inverter address is not set (config, PVLOG_INVERTER_ADDRESS, or -ip)")
	}
	if c.Poll.Interval.Duration < 0 {
		return fmt.Errorf("poll interval must not be negative (got %v; zero means use the PVOutput status interval)", c.Poll.Interval.Duration)
	}
	if c.Inverter.Timeout.Duration <= 0 {
		return fmt.Errorf("inverter timeout must be positive (got %v)", c.Inverter.Timeout.Duration)
	}
	if c.PVOutput.Enabled {
		if c.PVOutput.APIKey == "" {
			return fmt.Errorf("pvoutput api_key is required when uploading is enabled")
		}
		if c.PVOutput.SystemID == "" {
			return fmt.Errorf("pvoutput system_id is required when uploading is enabled")
		}
	}
	if c.Poll.DaylightOnly && c.Poll.Latitude == 0 && c.Poll.Longitude == 0 {
		return fmt.Errorf("daylight_only requires latitude and longitude")
	}
	return nil
}
