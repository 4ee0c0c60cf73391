package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration values.
type Config struct {
	DatabaseDriver string
	DatabaseURL    string
	ProbeTimeout   time.Duration
	SchedulerTick  time.Duration
	ShutdownGrace  time.Duration
	HTTPPort       string
}

// fileConfig mirrors Config for YAML decoding; durations are strings in
// time.ParseDuration syntax.
type fileConfig struct {
	DatabaseDriver string `yaml:"database_driver"`
	DatabaseURL    string `yaml:"database_url"`
	ProbeTimeout   string `yaml:"probe_timeout"`
	SchedulerTick  string `yaml:"scheduler_tick"`
	ShutdownGrace  string `yaml:"shutdown_grace"`
	HTTPPort       string `yaml:"http_port"`
}

func defaults() *Config {
	return &Config{
		DatabaseDriver: "sqlite",
		DatabaseURL:    "servicewatch.db",
		ProbeTimeout:   10 * time.Second,
		SchedulerTick:  time.Minute,
		ShutdownGrace:  10 * time.Second,
		HTTPPort:       "8080",
	}
}

// Load builds the configuration from defaults, then an optional YAML file
// named by CONFIG_FILE, then environment variables. Later layers win.
func Load() (*Config, error) {
	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

// loadFile overlays values from a YAML config file.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if fc.DatabaseDriver != "" {
		cfg.DatabaseDriver = fc.DatabaseDriver
	}
	if fc.DatabaseURL != "" {
		cfg.DatabaseURL = fc.DatabaseURL
	}
	if fc.HTTPPort != "" {
		cfg.HTTPPort = fc.HTTPPort
	}
	for _, d := range []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{fc.ProbeTimeout, "probe_timeout", &cfg.ProbeTimeout},
		{fc.SchedulerTick, "scheduler_tick", &cfg.SchedulerTick},
		{fc.ShutdownGrace, "shutdown_grace", &cfg.ShutdownGrace},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s in config file %s: %w", d.name, path, err)
		}
		*d.dst = v
	}
	return nil
}

// applyEnv overlays values from environment variables.
func applyEnv(cfg *Config) {
	cfg.DatabaseDriver = getEnv("DATABASE_DRIVER", cfg.DatabaseDriver)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.ProbeTimeout = getEnvDuration("PROBE_TIMEOUT", cfg.ProbeTimeout)
	cfg.SchedulerTick = getEnvDuration("SCHEDULER_TICK", cfg.SchedulerTick)
	cfg.ShutdownGrace = getEnvDuration("SHUTDOWN_GRACE", cfg.ShutdownGrace)
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
}

// Helper function to get an environment variable or return a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// Helper function to get an environment variable as a time.Duration.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return fallback
}
