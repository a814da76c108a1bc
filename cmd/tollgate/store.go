package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"tollgate-hq/tollgate/pkg/config"
	"tollgate-hq/tollgate/pkg/limiter"
	"tollgate-hq/tollgate/pkg/limiter/store"
	"tollgate-hq/tollgate/pkg/logging"
)

// loadConfig loads the configuration for a command. When the default config
// path does not exist and the user did not ask for a specific file, it runs
// on built-in defaults plus environment overrides.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) && !rootCmd.PersistentFlags().Changed("config") {
		cfg := config.Default()
		config.ApplyEnvOverrides(cfg)
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.LoadConfigWithEnvOverrides(cfgFile)
}

// newLogger builds the process logger from config, honoring --verbose, and
// installs it as the slog default.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	logCfg := cfg.Logging
	if verbose {
		logCfg.Level = "debug"
	}

	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

// openStore builds the configured store backend with the secondary indexes
// every tollgate process declares: the limit table's service index and the
// token table's resource-id index.
func openStore(cfg *config.Config) (store.Store, config.Tables, error) {
	tables := cfg.ResolveTables()

	indexes := []store.Index{
		{Table: tables.Limit, Name: tables.ServiceIndex, Attribute: limiter.AttrServiceName},
		{Table: tables.NonFungible, Name: tables.ResourceIndex, Attribute: limiter.AttrResourceID},
	}

	switch cfg.Store.Backend {
	case config.BackendMemory:
		return store.NewMemoryWithConfig(store.MemoryConfig{Indexes: indexes}), tables, nil

	case config.BackendSQLite:
		st, err := store.NewSQLiteWithConfig(store.SQLiteConfig{
			DBPath:      cfg.Store.Path,
			Indexes:     indexes,
			BusyTimeout: cfg.Store.BusyTimeout,
		})
		if err != nil {
			return nil, tables, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return st, tables, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Addr,
			Password: cfg.Store.Password,
			DB:       cfg.Store.DB,
		})
		st, err := store.NewRedisWithConfig(store.RedisConfig{
			Client:    client,
			Indexes:   indexes,
			KeyPrefix: cfg.Store.KeyPrefix,
		})
		if err != nil {
			return nil, tables, fmt.Errorf("failed to open redis store: %w", err)
		}
		return st, tables, nil

	default:
		return nil, tables, fmt.Errorf("unsupported backend: %s (supported: memory, sqlite, redis)", cfg.Store.Backend)
	}
}
