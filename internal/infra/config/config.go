package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PassphraseEnv is the environment variable holding the passphrase for
// enc:-prefixed secrets.
const PassphraseEnv = "SERVICE_NINJA_PASSPHRASE"

// Config is the top-level application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Probe   ProbeConfig   `yaml:"probe"`
	Sweep   SweepConfig   `yaml:"sweep"`
	Monitor MonitorConfig `yaml:"monitor"`
	Logger  LoggerConfig  `yaml:"logger"`
	Tracer  TracerConfig  `yaml:"tracer"`
	Server  ServerConfig  `yaml:"server"`
}

// StoreConfig selects and locates the entity store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // "json" or "sqlite"
	Dir     string `yaml:"dir"`     // data dir for the json backend
	Path    string `yaml:"path"`    // database file for the sqlite backend
}

// ProbeConfig holds HTTP health probe settings.
type ProbeConfig struct {
	Timeout      time.Duration `yaml:"timeout"`        // per-probe timeout
	UserAgent    string        `yaml:"user_agent"`     //
	MaxBodyBytes int64         `yaml:"max_body_bytes"` // read cap on probe responses
	Breaker      BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the per-host circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32 `yaml:"max_failures"`
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration `yaml:"timeout"`
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration `yaml:"interval"`
}

// SweepConfig holds aggregation fan-out settings.
type SweepConfig struct {
	Concurrency   int           `yaml:"concurrency"`     // worker pool size
	Timeout       time.Duration `yaml:"timeout"`         // aggregate deadline for a whole sweep
	RatePerSecond float64       `yaml:"rate_per_second"` // probe start rate; 0 = unlimited
	Burst         int           `yaml:"burst"`
}

// MonitorConfig holds scheduled background sweep settings.
type MonitorConfig struct {
	Enabled bool               `yaml:"enabled"`
	Jobs    []MonitorJobConfig `yaml:"jobs"`
}

// MonitorJobConfig defines one scheduled sweep.
type MonitorJobConfig struct {
	Name      string `yaml:"name"`
	Schedule  string `yaml:"schedule"` // cron expression
	ProjectID string `yaml:"project_id"`
	EnvID     string `yaml:"env_id,omitempty"` // empty = whole project
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stderr, stdout, or a file path
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "noop"
}

// ServerConfig identifies the MCP server to connecting clients.
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "json",
			Dir:     "./store",
			Path:    "./store/serviceninja.db",
		},
		Probe: ProbeConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "Service-Ninja-Agent/1.0",
			MaxBodyBytes: 1 << 20,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Sweep: SweepConfig{
			Concurrency:   8,
			Timeout:       2 * time.Minute,
			RatePerSecond: 0,
			Burst:         1,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		Server: ServerConfig{
			Name:    "service-ninja",
			Version: "1.0.0",
		},
	}
}

// Load reads the YAML config at path, layered over defaults. A missing file
// is not an error: defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Passphrase returns the secret passphrase from the environment, empty when
// unset.
func Passphrase() string {
	return os.Getenv(PassphraseEnv)
}
