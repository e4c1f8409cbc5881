package config

import (
	"os"
	"strconv"
)

// FromEnv overlays WARREN_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("WARREN_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("WARREN_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("WARREN_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FsyncIntervalMs = n
		}
	}
	if v := os.Getenv("WARREN_JOURNAL_COMPRESSION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Compression = b
		}
	}
	if v := os.Getenv("WARREN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
