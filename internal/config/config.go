package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the journal tooling configuration loaded from file/env.
type Config struct {
	// DataDir is the directory used for Pebble-backed journals.
	DataDir string `json:"dataDir"`
	// Fsync selects WAL durability: "always", "interval" or "never".
	Fsync string `json:"fsync"`
	// FsyncIntervalMs controls group-commit when Fsync is "interval".
	FsyncIntervalMs int `json:"fsyncIntervalMs"`
	// Compression enables per-record zstd for newly created journal files.
	Compression bool `json:"compression"`
	// LogLevel sets the minimum log level ("debug", "info", ...).
	LogLevel string `json:"logLevel"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DataDir:         "./data",
		Fsync:           "interval",
		FsyncIntervalMs: 5,
		Compression:     false,
		LogLevel:        "info",
	}
}

// Load reads configuration from a JSON file. If path is empty, returns
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
