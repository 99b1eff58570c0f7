// Package config reads application settings from the environment. A .env
// file, if present, is loaded by the entry point before this runs.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application settings.
type Config struct {
	ListenAddr string
	DBPath     string

	ContentDir       string
	ContentURLPrefix string
	CacheTTL         time.Duration
	ImagesPerPage    int

	TaskTimeout time.Duration
}

// FromEnv builds a Config from environment variables, applying defaults for
// anything unset.
func FromEnv() Config {
	return Config{
		ListenAddr:       envStr("TEAMLENS_ADDR", ":8080"),
		DBPath:           envStr("TEAMLENS_DB", "db/teamlens.db"),
		ContentDir:       envStr("TEAMLENS_CONTENT_DIR", "static/images/library"),
		ContentURLPrefix: envStr("TEAMLENS_CONTENT_URL", "/content"),
		CacheTTL:         envSeconds("TEAMLENS_CACHE_TTL", 300),
		ImagesPerPage:    envInt("TEAMLENS_PER_PAGE", 20),
		TaskTimeout:      envSeconds("TEAMLENS_TASK_TIMEOUT", 120),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}
