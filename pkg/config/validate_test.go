package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("expected valid config to pass, got: %v", err)
	}
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "unknown backend",
			mutate: func(c *Config) { c.Store.Backend = "dynamodb" },
			field:  "store.backend",
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.Store.Backend = BackendSQLite
				c.Store.Path = ""
			},
			field: "store.path",
		},
		{
			name: "negative busy timeout",
			mutate: func(c *Config) {
				c.Store.Backend = BackendSQLite
				c.Store.Path = "./tollgate.db"
				c.Store.BusyTimeout = -1
			},
			field: "store.busy_timeout",
		},
		{
			name: "redis without addr",
			mutate: func(c *Config) {
				c.Store.Backend = BackendRedis
				c.Store.Addr = ""
			},
			field: "store.addr",
		},
		{
			name: "negative redis db",
			mutate: func(c *Config) {
				c.Store.Backend = BackendRedis
				c.Store.Addr = "localhost:6379"
				c.Store.DB = -2
			},
			field: "store.db",
		},
		{
			name:   "negative default limit",
			mutate: func(c *Config) { c.Defaults.Limit = -1 },
			field:  "defaults.limit",
		},
		{
			name:   "negative default window",
			mutate: func(c *Config) { c.Defaults.WindowSec = -60 },
			field:  "defaults.window_sec",
		},
		{
			name:   "bad cron expression",
			mutate: func(c *Config) { c.Sweeper.Schedule = "every 5 minutes" },
			field:  "sweeper.schedule",
		},
		{
			name: "sweeper enabled without schedule",
			mutate: func(c *Config) {
				c.Sweeper.Enabled = true
				c.Sweeper.Schedule = ""
			},
			field: "sweeper.schedule",
		},
		{
			name:   "unknown logging level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
			field:  "logging.level",
		},
		{
			name:   "unknown logging format",
			mutate: func(c *Config) { c.Logging.Format = "logfmt" },
			field:  "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}

			validationErr, ok := err.(ValidationError)
			if !ok {
				t.Fatalf("expected ValidationError, got %T", err)
			}

			found := false
			for _, fe := range validationErr.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error for field %q, got: %v", tt.field, validationErr)
			}
		})
	}
}

func TestValidationError_SingleError(t *testing.T) {
	err := ValidationError{Errors: []FieldError{
		{Field: "store.backend", Message: "unknown backend"},
	}}

	msg := err.Error()
	if !strings.Contains(msg, "store.backend") {
		t.Errorf("expected message to name the field, got %q", msg)
	}
	if strings.Contains(msg, "errors:") {
		t.Errorf("single error should not use the multi-error format, got %q", msg)
	}
}

func TestValidationError_MultipleErrors(t *testing.T) {
	err := ValidationError{Errors: []FieldError{
		{Field: "store.backend", Message: "unknown backend"},
		{Field: "logging.level", Message: "unknown level"},
	}}

	msg := err.Error()
	if !strings.Contains(msg, "2 errors") {
		t.Errorf("expected multi-error header, got %q", msg)
	}
	if !strings.Contains(msg, "store.backend") || !strings.Contains(msg, "logging.level") {
		t.Errorf("expected both fields in message, got %q", msg)
	}
}
