package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	// Persistence backend: "file" (default) or "sqlite".
	Store      string
	DataFile   string
	SQLitePath string

	// Per-IP rate limiting
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from environment variables.
// In development, it loads from a .env file if present.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "4173"),
		Env:            getEnv("ENV", "development"),
		Store:          getEnv("STORE", "file"),
		DataFile:       getEnv("DATA_FILE", "./data/kovers-data.json"),
		SQLitePath:     getEnv("SQLITE_PATH", "./data/kovers.db"),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),
	}

	if cfg.Store != "file" && cfg.Store != "sqlite" {
		panic(fmt.Sprintf("STORE must be \"file\" or \"sqlite\", got %q", cfg.Store))
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
