package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path. It
// applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied, for processes
// running without a configuration file.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Environment variables follow the
// naming convention TOLLGATE_SECTION_FIELD and always take precedence over
// file-based configuration.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration. Table name variables are left to ResolveTables, which
// consults them on every resolution.
func ApplyEnvOverrides(cfg *Config) {
	// Store overrides
	if val := os.Getenv("TOLLGATE_STORE_BACKEND"); val != "" {
		cfg.Store.Backend = val
	}
	if val := os.Getenv("TOLLGATE_STORE_PATH"); val != "" {
		cfg.Store.Path = val
	}
	if val := os.Getenv("TOLLGATE_STORE_BUSY_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Store.BusyTimeout = d
		}
	}
	if val := os.Getenv("TOLLGATE_STORE_ADDR"); val != "" {
		cfg.Store.Addr = val
	}
	if val := os.Getenv("TOLLGATE_STORE_PASSWORD"); val != "" {
		cfg.Store.Password = val
	}
	if val := os.Getenv("TOLLGATE_STORE_DB"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Store.DB = i
		}
	}
	if val := os.Getenv("TOLLGATE_STORE_KEY_PREFIX"); val != "" {
		cfg.Store.KeyPrefix = val
	}

	// Defaults overrides
	if val := os.Getenv("TOLLGATE_DEFAULT_LIMIT"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Defaults.Limit = i
		}
	}
	if val := os.Getenv("TOLLGATE_DEFAULT_WINDOW_SEC"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Defaults.WindowSec = i
		}
	}

	// Limits document overrides
	if val := os.Getenv("TOLLGATE_LIMITS_PATH"); val != "" {
		cfg.Limits.Path = val
	}
	if val := os.Getenv("TOLLGATE_LIMITS_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Limits.Watch = b
		}
	}

	// Sweeper overrides
	if val := os.Getenv("TOLLGATE_SWEEPER_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Sweeper.Enabled = b
		}
	}
	if val := os.Getenv("TOLLGATE_SWEEPER_SCHEDULE"); val != "" {
		cfg.Sweeper.Schedule = val
	}

	// Logging overrides
	if val := os.Getenv("TOLLGATE_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("TOLLGATE_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
}
