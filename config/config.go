package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every knob the server needs at startup (SPEC_FULL §2).
type Config struct {
	// Server
	Addr            string
	Env             string
	GracefulTimeout time.Duration

	// Data directory and persistence (spec §4.5)
	DataDir string

	// Time-series window sizes (spec §2/§4.3)
	HistoryMemoryDays int // S
	HistoryDiskDays   int // D

	// Worker pool (spec §4.6)
	WorkerPoolSize int

	// Accept-loop backpressure (SPEC_FULL §4)
	MaxConnections int

	// Admin HTTP observability surface (SPEC_FULL §3)
	AdminAddr string

	// Aggregation cache capacity; defaults to HistoryMemoryDays per
	// spec §4.4 ("Bounded size S entries"), configurable separately
	// for operational tuning.
	CacheCapacity int

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables and an optional
// .env file.
func Load() *Config {
	_ = godotenv.Load()

	gracefulSec := getEnvInt("DAILYSALES_GRACEFUL_TIMEOUT_SEC", 15)
	s := getEnvInt("DAILYSALES_HISTORY_MEMORY_DAYS", 7)
	d := getEnvInt("DAILYSALES_HISTORY_DISK_DAYS", 30)
	cacheCap := getEnvInt("DAILYSALES_CACHE_CAPACITY", s)

	return &Config{
		Addr:              getEnv("DAILYSALES_ADDR", ":12345"),
		Env:               getEnv("ENV", "development"),
		GracefulTimeout:   time.Duration(gracefulSec) * time.Second,
		DataDir:           getEnv("DAILYSALES_DATA_DIR", "data"),
		HistoryMemoryDays: s,
		HistoryDiskDays:   d,
		WorkerPoolSize:    getEnvInt("DAILYSALES_WORKER_POOL_SIZE", 16),
		MaxConnections:    getEnvInt("DAILYSALES_MAX_CONNECTIONS", 1024),
		AdminAddr:         getEnv("DAILYSALES_ADMIN_ADDR", ":9090"),
		CacheCapacity:     cacheCap,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
