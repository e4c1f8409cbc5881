package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("got %+v, want defaults", cfg)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"dataDir":"/srv/warren","compression":true}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/srv/warren" || !cfg.Compression {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	// Untouched fields keep their defaults.
	if cfg.Fsync != "interval" || cfg.FsyncIntervalMs != 5 || cfg.LogLevel != "info" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("WARREN_DATA_DIR", "/env/data")
	t.Setenv("WARREN_FSYNC", "always")
	t.Setenv("WARREN_FSYNC_INTERVAL_MS", "25")
	t.Setenv("WARREN_JOURNAL_COMPRESSION", "true")
	t.Setenv("WARREN_LOG_LEVEL", "debug")

	cfg := Default()
	FromEnv(&cfg)
	if cfg.DataDir != "/env/data" || cfg.Fsync != "always" || cfg.FsyncIntervalMs != 25 ||
		!cfg.Compression || cfg.LogLevel != "debug" {
		t.Fatalf("env overlay not applied: %+v", cfg)
	}
}

func TestFromEnvIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("WARREN_FSYNC_INTERVAL_MS", "soon")
	cfg := Default()
	FromEnv(&cfg)
	if cfg.FsyncIntervalMs != 5 {
		t.Fatalf("invalid interval overrode default: %+v", cfg)
	}
}
