package config

import "time"

// Storage backends accepted by StoreConfig.Backend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config is the root configuration for tollgate processes.
type Config struct {
	// Store selects and configures the storage backend.
	Store StoreConfig `yaml:"store"`

	// Tables names the tables and indexes. Unset names go through the
	// environment fallback chain (see ResolveTable).
	Tables TablesConfig `yaml:"tables"`

	// Defaults apply to resources without a limit row.
	Defaults DefaultsConfig `yaml:"defaults"`

	// Limits points at the administratively managed limits document.
	Limits LimitsConfig `yaml:"limits"`

	// Sweeper schedules expired-row purges for backends without native
	// TTL support.
	Sweeper SweeperConfig `yaml:"sweeper"`

	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig selects the storage backend.
type StoreConfig struct {
	// Backend is one of "memory", "sqlite" or "redis".
	Backend string `yaml:"backend"`

	// Path is the database file for the sqlite backend.
	Path string `yaml:"path"`

	// BusyTimeout bounds sqlite lock waits.
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// Addr is the redis server address.
	Addr string `yaml:"addr"`

	// Password authenticates against redis. Empty disables auth.
	Password string `yaml:"password"`

	// DB is the redis database number.
	DB int `yaml:"db"`

	// KeyPrefix namespaces redis keys.
	KeyPrefix string `yaml:"key_prefix"`
}

// TablesConfig names the tables and indexes shared by every process.
type TablesConfig struct {
	// Base synthesizes unset table names as base + "-" + suffix.
	Base string `yaml:"base"`

	Fungible    string `yaml:"fungible"`
	NonFungible string `yaml:"non_fungible"`
	Limit       string `yaml:"limit"`

	ServiceIndex  string `yaml:"service_index"`
	ResourceIndex string `yaml:"resource_index"`
}

// DefaultsConfig is the fallback limit for resources without a limit row.
// A zero Limit means no fallback: unconfigured resources are rejected.
type DefaultsConfig struct {
	Limit     int64 `yaml:"limit"`
	WindowSec int64 `yaml:"window_sec"`
}

// LimitsConfig points at the YAML limits document the loader syncs.
type LimitsConfig struct {
	// Path is the limits file. Empty disables loading.
	Path string `yaml:"path"`

	// Watch re-syncs when the file changes.
	Watch bool `yaml:"watch"`
}

// SweeperConfig schedules expired-row purges.
type SweeperConfig struct {
	// Enabled starts the sweeper alongside long-running processes.
	Enabled bool `yaml:"enabled"`

	// Schedule is a standard five-field cron expression.
	Schedule string `yaml:"schedule"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn" or "error".
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}
