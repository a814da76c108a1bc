package config

import "time"

// Default values for configuration fields.
const (
	// Store defaults
	DefaultStoreBackend      = BackendMemory
	DefaultSQLitePath        = "data/tollgate.db"
	DefaultSQLiteBusyTimeout = 5 * time.Second
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisKeyPrefix    = "tollgate"

	// Sweeper defaults
	DefaultSweeperSchedule = "*/5 * * * *"

	// Logging defaults
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "json"
)

// ApplyDefaults fills unset configuration fields with default values.
func ApplyDefaults(cfg *Config) {
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.Backend == BackendSQLite && cfg.Store.Path == "" {
		cfg.Store.Path = DefaultSQLitePath
	}
	if cfg.Store.BusyTimeout <= 0 {
		cfg.Store.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Store.Backend == BackendRedis && cfg.Store.Addr == "" {
		cfg.Store.Addr = DefaultRedisAddr
	}
	if cfg.Store.KeyPrefix == "" {
		cfg.Store.KeyPrefix = DefaultRedisKeyPrefix
	}

	if cfg.Sweeper.Schedule == "" {
		cfg.Sweeper.Schedule = DefaultSweeperSchedule
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}
}
