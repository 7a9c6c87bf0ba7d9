package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	Port             string
	DatabaseDSN      string
	Env              string
	StorageDir       string
	LogLevel         string
	SchedulerEnabled bool
	ScanHour         int
	ScanMinute       int
}

// Load loads configuration from environment with sensible defaults.
// Precedence: explicit env var > .env file (if loaded by user) > default.
func Load() Config {
	cfg := Config{}
	cfg.Port = getEnv("PORT", "8080")
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", "renovaciones.db")
	cfg.Env = getEnv("APP_ENV", "development")
	cfg.StorageDir = getEnv("STORAGE_DIR", "storage")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.SchedulerEnabled = ParseBool("SCHEDULER_ENABLED", true)
	cfg.ScanHour = parseInt("SCAN_HOUR", 3)
	cfg.ScanMinute = parseInt("SCAN_MINUTE", 0)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ParseBool reads an env var as bool with default.
func ParseBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("invalid boolean for %s: %s", key, v)
			return def
		}
		return b
	}
	return def
}

func parseInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid integer for %s: %s", key, v)
			return def
		}
		return n
	}
	return def
}
