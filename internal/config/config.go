// Package config loads Wayfinder settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates application configuration values.
type Config struct {
	// Home is the data directory holding the plan database.
	Home string

	// DefaultPlan is used when a command or tool names no plan.
	DefaultPlan string

	// StartNode is the node id or name a route starts from when none is given.
	StartNode string

	// MetricsAddr is the listen address for the Prometheus endpoint.
	// Empty disables it.
	MetricsAddr string

	// WatchDebounce is how long file events are batched before re-import.
	WatchDebounce time.Duration

	Logging LoggingConfig
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level  string // debug|info|warn|error
	Format string // json|console
}

const (
	defaultHome          = ".wayfinder"
	defaultLoggingLevel  = "info"
	defaultLoggingFormat = "console"
	defaultWatchDebounce = 2 * time.Second
)

// Environment variable names.
const (
	EnvHome          = "WAYFINDER_HOME"
	EnvDefaultPlan   = "WAYFINDER_DEFAULT_PLAN"
	EnvStartNode     = "WAYFINDER_START_NODE"
	EnvLogLevel      = "WAYFINDER_LOG_LEVEL"
	EnvLogFormat     = "WAYFINDER_LOG_FORMAT"
	EnvMetricsAddr   = "WAYFINDER_METRICS_ADDR"
	EnvWatchDebounce = "WAYFINDER_WATCH_DEBOUNCE"
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Home:          valueOrDefault(EnvHome, defaultHome),
		DefaultPlan:   os.Getenv(EnvDefaultPlan),
		StartNode:     os.Getenv(EnvStartNode),
		MetricsAddr:   os.Getenv(EnvMetricsAddr),
		WatchDebounce: defaultWatchDebounce,
		Logging: LoggingConfig{
			Level:  valueOrDefault(EnvLogLevel, defaultLoggingLevel),
			Format: valueOrDefault(EnvLogFormat, defaultLoggingFormat),
		},
	}

	if v := os.Getenv(EnvWatchDebounce); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", EnvWatchDebounce, err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("invalid %s: must be positive, got %s", EnvWatchDebounce, v)
		}
		cfg.WatchDebounce = d
	}

	return cfg, nil
}

// LoadDotEnv populates unset environment variables from the given files.
// Missing files are skipped; variables already set are left alone.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// DBPath returns the location of the Badger plan database.
func (c Config) DBPath() string {
	return filepath.Join(c.Home, "badger")
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
