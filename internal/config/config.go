// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the recommend service.
type Config struct {
	Port            string
	DatabaseURL     string
	RedisURL        string
	JSearchAPIKey   string
	ProviderTimeout time.Duration // per provider call
	LogLevel        string        // debug, info, warn, error
}

// Load reads environment variables (after a best-effort .env load) and
// returns a validated Config.
func Load() (*Config, error) {
	// .env is a local-development convenience; absence is not an error.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	timeout := 15 * time.Second
	if s := os.Getenv("PROVIDER_TIMEOUT_SECONDS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("PROVIDER_TIMEOUT_SECONDS must be a positive integer, got %q", s)
		}
		timeout = time.Duration(v) * time.Second
	}

	port := os.Getenv("RECOMMEND_PORT")
	if port == "" {
		port = "8083"
	}

	return &Config{
		Port:            port,
		DatabaseURL:     dbURL,
		RedisURL:        redisURL,
		JSearchAPIKey:   os.Getenv("JSEARCH_API_KEY"),
		ProviderTimeout: timeout,
		LogLevel:        os.Getenv("LOG_LEVEL"),
	}, nil
}
