package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"vigil/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.LogLevel)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("http addr = %q", cfg.HTTPAddr)
	}
	if cfg.Cooldown != 30*time.Second {
		t.Errorf("cooldown = %v, want 30s", cfg.Cooldown)
	}
	if cfg.Thresholds.TempHigh != 37.5 {
		t.Errorf("temp high = %v, want 37.5", cfg.Thresholds.TempHigh)
	}
	if cfg.Thresholds.HeartRateLow != 60 {
		t.Errorf("heart rate low = %v, want 60", cfg.Thresholds.HeartRateLow)
	}
	if kind := cfg.Bus.Topics["botibot/temp"]; kind != "temperature" {
		t.Errorf("topic mapping = %q, want temperature", kind)
	}
	if cfg.File.Interval != time.Second {
		t.Errorf("file interval = %v, want 1s", cfg.File.Interval)
	}
	if cfg.Store.Interval != 2*time.Second {
		t.Errorf("store interval = %v, want 2s", cfg.Store.Interval)
	}
	if cfg.Store.DSN != "" {
		t.Errorf("store DSN should default to disabled, got %q", cfg.Store.DSN)
	}
	if cfg.Audio.Enabled {
		t.Error("audio should default to disabled")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := `
log_level: debug
http_addr: ":9090"
alerts:
  cooldown: 45s
  temp_high: 38.0
store:
  dsn: /var/lib/vigil/vitals.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("http addr = %q, want :9090", cfg.HTTPAddr)
	}
	if cfg.Cooldown != 45*time.Second {
		t.Errorf("cooldown = %v, want 45s", cfg.Cooldown)
	}
	if cfg.Thresholds.TempHigh != 38.0 {
		t.Errorf("temp high = %v, want 38.0", cfg.Thresholds.TempHigh)
	}
	// Unset keys keep their defaults.
	if cfg.Thresholds.TempLow != 35.0 {
		t.Errorf("temp low = %v, want default 35.0", cfg.Thresholds.TempLow)
	}
	if cfg.Store.DSN != "/var/lib/vigil/vitals.db" {
		t.Errorf("store DSN = %q", cfg.Store.DSN)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := config.Load("/nonexistent/config.yml"); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("VIGIL_LOG_LEVEL", "warn")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("log level = %q, want warn from environment", cfg.LogLevel)
	}
}
