package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "store.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateDefaults(&cfg.Defaults)...)
	errs = append(errs, validateSweeper(&cfg.Sweeper)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateStore validates store configuration.
func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case BackendMemory:
		// No further requirements.
	case BackendSQLite:
		if cfg.Path == "" {
			errs = append(errs, FieldError{
				Field:   "store.path",
				Message: "path is required for the sqlite backend",
			})
		}
		if cfg.BusyTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "store.busy_timeout",
				Message: "busy timeout must be non-negative",
			})
		}
	case BackendRedis:
		if cfg.Addr == "" {
			errs = append(errs, FieldError{
				Field:   "store.addr",
				Message: "addr is required for the redis backend",
			})
		}
		if cfg.DB < 0 {
			errs = append(errs, FieldError{
				Field:   "store.db",
				Message: "db must be non-negative",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "store.backend",
			Message: fmt.Sprintf("unknown backend %q (must be one of: memory, sqlite, redis)", cfg.Backend),
		})
	}

	return errs
}

// validateDefaults validates the default limit parameters.
func validateDefaults(cfg *DefaultsConfig) []FieldError {
	var errs []FieldError

	if cfg.Limit < 0 {
		errs = append(errs, FieldError{
			Field:   "defaults.limit",
			Message: "limit must be non-negative",
		})
	}
	if cfg.WindowSec < 0 {
		errs = append(errs, FieldError{
			Field:   "defaults.window_sec",
			Message: "window must be non-negative",
		})
	}

	return errs
}

// validateSweeper validates sweeper configuration.
func validateSweeper(cfg *SweeperConfig) []FieldError {
	var errs []FieldError

	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "sweeper.schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	} else if cfg.Enabled {
		errs = append(errs, FieldError{
			Field:   "sweeper.schedule",
			Message: "schedule is required when the sweeper is enabled",
		})
	}

	return errs
}

// validateLogging validates logging configuration.
func validateLogging(cfg *LoggingConfig) []FieldError {
	var errs []FieldError

	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q (must be one of: debug, info, warn, error)", cfg.Level),
		})
	}

	switch cfg.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q (must be one of: json, text)", cfg.Format),
		})
	}

	return errs
}
