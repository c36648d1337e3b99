// Package config loads the covid19 YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/smpawlowski/covid19/internal/blob"
	"github.com/smpawlowski/covid19/internal/domain"
	"github.com/smpawlowski/covid19/internal/etl"
)

// Config holds all covid19 configuration.
type Config struct {
	Logging  LoggingConfig `yaml:"logging"`
	Output   OutputConfig  `yaml:"output"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Service  ServiceConfig `yaml:"service"`
	Datasets []Dataset     `yaml:"datasets"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// OutputConfig lists where reports are published.
type OutputConfig struct {
	Blob      blob.Config      `yaml:"blob"`
	Databases []DatabaseOutput `yaml:"databases"`
}

// DatabaseOutput is an export destination backed by a database.
type DatabaseOutput struct {
	Name       string                    `yaml:"name"`
	Mode       etl.SyncMode              `yaml:"mode"` // replace (default) or append
	Connection domain.DatabaseConnection `yaml:"connection"`
}

// MetricsConfig configures the prometheus endpoint of `covid19 serve`.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

// ServiceConfig tunes report runs.
type ServiceConfig struct {
	RunTimeout    string `yaml:"run_timeout"`
	WatchDebounce string `yaml:"watch_debounce"`
	StateDB       string `yaml:"state_db"` // SQLite run history; empty keeps it in memory
}

// DefaultConfig returns the two reference datasets publishing to ./out.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Output: OutputConfig{
			Blob: blob.Config{Driver: blob.DriverFilesystem, Dir: "./out"},
		},
		Metrics: MetricsConfig{Addr: ":9090"},
		Service: ServiceConfig{RunTimeout: "5m", WatchDebounce: "500ms"},
		Datasets: []Dataset{
			GlobalDataset(),
			CantonalDataset(),
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("COVID19_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("COVID19_OUTPUT_DIR"); v != "" {
		c.Output.Blob.Dir = v
	}
	// A bucket switches publishing to S3.
	if v := os.Getenv("COVID19_S3_BUCKET"); v != "" {
		c.Output.Blob.Driver = blob.DriverS3
		c.Output.Blob.Bucket = v
	}
	if v := os.Getenv("COVID19_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("COVID19_STATE_DB"); v != "" {
		c.Service.StateDB = v
	}
}

// RunTimeout returns the per-run deadline.
func (c *Config) RunTimeout() time.Duration {
	return parseDuration(c.Service.RunTimeout, 5*time.Minute)
}

// WatchDebounce returns the quiet period before a file change triggers a run.
func (c *Config) WatchDebounce() time.Duration {
	return parseDuration(c.Service.WatchDebounce, 500*time.Millisecond)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Dataset returns the dataset with the given name.
func (c *Config) Dataset(name string) (*Dataset, bool) {
	for i := range c.Datasets {
		if c.Datasets[i].Name == name {
			return &c.Datasets[i], true
		}
	}
	return nil, false
}

// Validate checks the configuration. Source types are checked against the
// source registry, so the sources package must be linked in.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	switch c.Output.Blob.Driver {
	case "", blob.DriverFilesystem:
	case blob.DriverS3:
		if c.Output.Blob.Bucket == "" {
			return fmt.Errorf("output.blob: s3 needs a bucket")
		}
	default:
		return fmt.Errorf("output.blob: unknown driver %q", c.Output.Blob.Driver)
	}
	for i, db := range c.Output.Databases {
		if db.Name == "" {
			return fmt.Errorf("output.databases[%d]: name is required", i)
		}
		if db.Mode != "" && db.Mode != etl.SyncReplace && db.Mode != etl.SyncAppend {
			return fmt.Errorf("output.databases[%d]: unknown mode %q", i, db.Mode)
		}
		if err := db.Connection.Validate(); err != nil {
			return fmt.Errorf("output.databases[%d]: %w", i, err)
		}
	}

	if len(c.Datasets) == 0 {
		return fmt.Errorf("no datasets configured")
	}
	seen := make(map[string]bool, len(c.Datasets))
	for i := range c.Datasets {
		ds := &c.Datasets[i]
		if seen[ds.Name] {
			return fmt.Errorf("duplicate dataset name %q", ds.Name)
		}
		seen[ds.Name] = true
		if err := ds.Validate(); err != nil {
			return err
		}
	}
	return nil
}
