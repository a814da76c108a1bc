package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configPath
}

func TestLoadConfig_ValidFile(t *testing.T) {
	configPath := writeConfig(t, `
store:
  backend: "sqlite"
  path: "./tollgate-test.db"
  busy_timeout: "2s"

tables:
  base: "prod"
  limit: "prod-custom-limits"

defaults:
  limit: 10
  window_sec: 60

limits:
  path: "./limits.yaml"
  watch: true

sweeper:
  enabled: true
  schedule: "*/10 * * * *"

logging:
  level: "debug"
  format: "text"
`)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("expected backend %q, got %q", BackendSQLite, cfg.Store.Backend)
	}
	if cfg.Store.Path != "./tollgate-test.db" {
		t.Errorf("expected path %q, got %q", "./tollgate-test.db", cfg.Store.Path)
	}
	if cfg.Store.BusyTimeout != 2*time.Second {
		t.Errorf("expected busy timeout %v, got %v", 2*time.Second, cfg.Store.BusyTimeout)
	}
	if cfg.Tables.Base != "prod" {
		t.Errorf("expected table base %q, got %q", "prod", cfg.Tables.Base)
	}
	if cfg.Tables.Limit != "prod-custom-limits" {
		t.Errorf("expected limit table %q, got %q", "prod-custom-limits", cfg.Tables.Limit)
	}
	if cfg.Defaults.Limit != 10 {
		t.Errorf("expected default limit 10, got %d", cfg.Defaults.Limit)
	}
	if cfg.Defaults.WindowSec != 60 {
		t.Errorf("expected default window 60, got %d", cfg.Defaults.WindowSec)
	}
	if !cfg.Limits.Watch {
		t.Error("expected limits watch to be enabled")
	}
	if !cfg.Sweeper.Enabled {
		t.Error("expected sweeper to be enabled")
	}
	if cfg.Sweeper.Schedule != "*/10 * * * *" {
		t.Errorf("expected sweeper schedule %q, got %q", "*/10 * * * *", cfg.Sweeper.Schedule)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected logging level %q, got %q", "debug", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected logging format %q, got %q", "text", cfg.Logging.Format)
	}
}

func TestLoadConfig_DefaultsApplied(t *testing.T) {
	configPath := writeConfig(t, `
defaults:
  limit: 5
`)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Store.Backend != DefaultStoreBackend {
		t.Errorf("expected default backend %q, got %q", DefaultStoreBackend, cfg.Store.Backend)
	}
	if cfg.Sweeper.Schedule != DefaultSweeperSchedule {
		t.Errorf("expected default schedule %q, got %q", DefaultSweeperSchedule, cfg.Sweeper.Schedule)
	}
	if cfg.Logging.Level != DefaultLoggingLevel {
		t.Errorf("expected default level %q, got %q", DefaultLoggingLevel, cfg.Logging.Level)
	}
	if cfg.Logging.Format != DefaultLoggingFormat {
		t.Errorf("expected default format %q, got %q", DefaultLoggingFormat, cfg.Logging.Format)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := Validate(cfg); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("expected backend %q, got %q", BackendMemory, cfg.Store.Backend)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
	if !strings.Contains(err.Error(), "no such file or directory") {
		t.Errorf("expected file not found error, got: %v", err)
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	configPath := writeConfig(t, `
store:
  backend: "memory"
  invalid yaml here: [
`)

	_, err := LoadConfig(configPath)
	if err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
store:
  backend: "dynamodb"

logging:
  level: "loud"
`)

	_, err := LoadConfig(configPath)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var validationErr ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError in error chain, got %T: %v", err, err)
	}
	if len(validationErr.Errors) != 2 {
		t.Errorf("expected 2 field errors, got %d: %v", len(validationErr.Errors), validationErr)
	}
}

func TestLoadConfigWithEnvOverrides_BasicOverrides(t *testing.T) {
	configPath := writeConfig(t, `
store:
  backend: "memory"

defaults:
  limit: 5

logging:
  level: "info"
`)

	os.Setenv("TOLLGATE_STORE_BACKEND", "redis")
	os.Setenv("TOLLGATE_STORE_ADDR", "redis.internal:6379")
	os.Setenv("TOLLGATE_DEFAULT_LIMIT", "25")
	os.Setenv("TOLLGATE_LOGGING_LEVEL", "debug")
	defer func() {
		os.Unsetenv("TOLLGATE_STORE_BACKEND")
		os.Unsetenv("TOLLGATE_STORE_ADDR")
		os.Unsetenv("TOLLGATE_DEFAULT_LIMIT")
		os.Unsetenv("TOLLGATE_LOGGING_LEVEL")
	}()

	cfg, err := LoadConfigWithEnvOverrides(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Store.Backend != BackendRedis {
		t.Errorf("expected backend %q from env, got %q", BackendRedis, cfg.Store.Backend)
	}
	if cfg.Store.Addr != "redis.internal:6379" {
		t.Errorf("expected addr %q from env, got %q", "redis.internal:6379", cfg.Store.Addr)
	}
	if cfg.Defaults.Limit != 25 {
		t.Errorf("expected default limit 25 from env, got %d", cfg.Defaults.Limit)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected logging level %q from env, got %q", "debug", cfg.Logging.Level)
	}
}

func TestLoadConfigWithEnvOverrides_BoolAndDurationParsing(t *testing.T) {
	configPath := writeConfig(t, `
store:
  backend: "sqlite"
  path: "./tollgate.db"
`)

	os.Setenv("TOLLGATE_STORE_BUSY_TIMEOUT", "250ms")
	os.Setenv("TOLLGATE_SWEEPER_ENABLED", "true")
	os.Setenv("TOLLGATE_LIMITS_WATCH", "true")
	defer func() {
		os.Unsetenv("TOLLGATE_STORE_BUSY_TIMEOUT")
		os.Unsetenv("TOLLGATE_SWEEPER_ENABLED")
		os.Unsetenv("TOLLGATE_LIMITS_WATCH")
	}()

	cfg, err := LoadConfigWithEnvOverrides(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Store.BusyTimeout != 250*time.Millisecond {
		t.Errorf("expected busy timeout %v from env, got %v", 250*time.Millisecond, cfg.Store.BusyTimeout)
	}
	if !cfg.Sweeper.Enabled {
		t.Error("expected sweeper enabled from env")
	}
	if !cfg.Limits.Watch {
		t.Error("expected limits watch from env")
	}
}

func TestLoadConfigWithEnvOverrides_RevalidatesAfterOverride(t *testing.T) {
	configPath := writeConfig(t, `
store:
  backend: "memory"
`)

	os.Setenv("TOLLGATE_LOGGING_FORMAT", "xml")
	defer os.Unsetenv("TOLLGATE_LOGGING_FORMAT")

	_, err := LoadConfigWithEnvOverrides(configPath)
	if err == nil {
		t.Fatal("expected validation error for env-injected format")
	}

	var validationErr ValidationError
	if !errors.As(err, &validationErr) {
		t.Errorf("expected ValidationError in error chain, got %T: %v", err, err)
	}
}
