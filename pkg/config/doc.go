// Package config provides configuration management for tollgate.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides, and resolves the table and
// index names shared by every process using the limit tables.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// Values are applied in order (later overrides earlier): defaults, YAML
// file, environment variables, then validation.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention TOLLGATE_SECTION_FIELD.
// For example:
//
//   - TOLLGATE_STORE_BACKEND overrides store.backend
//   - TOLLGATE_STORE_ADDR overrides store.addr
//   - TOLLGATE_LOGGING_LEVEL overrides logging.level
//
// # Table Name Resolution
//
// Table and index names are deployment-specific and resolved through a
// fallback chain: an explicitly configured name wins, then the table's own
// environment variable (e.g. TOLLGATE_FUNGIBLE_TABLE), then a name
// synthesized from TOLLGATE_TABLE_BASE plus the table's suffix, and finally
// the built-in default. A base of "prod" yields "prod-fungible",
// "prod-non-fungible" and "prod-limits".
//
// # Example Configuration
//
//	store:
//	  backend: redis
//	  addr: localhost:6379
//
//	tables:
//	  base: prod
//
//	defaults:
//	  limit: 10
//	  window_sec: 60
//
//	sweeper:
//	  schedule: "*/5 * * * *"
//
//	logging:
//	  level: info
//	  format: json
package config
