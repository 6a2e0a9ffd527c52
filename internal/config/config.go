package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	Environment string
	ListenAddr  string

	// StoreDriver selects the persistence backend: postgres or sqlite.
	StoreDriver string
	DatabaseURL string
	SQLitePath  string

	RateAPIURL           string
	RateAPIKey           string
	RateCacheTTL         time.Duration
	RateRetryMax         int
	RateRetryBackoff     time.Duration
	RateBreakerThreshold uint32
	RateBreakerCooldown  time.Duration

	RedisAddr             string
	RateLimitCapacity     int
	RateLimitRefillPerSec int
	MaxBodyBytes          int64
}

// Load reads configuration from environment variables, applying
// defaults for everything optional.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: os.Getenv("APP_ENV"),
		ListenAddr:  getEnvDefault("LISTEN_ADDR", ":8080"),
		StoreDriver: getEnvDefault("STORE_DRIVER", "sqlite"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnvDefault("SQLITE_PATH", "transfer.db"),
		RateAPIURL:  os.Getenv("RATE_API_URL"),
		RateAPIKey:  os.Getenv("RATE_API_KEY"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
	}

	var err error
	if cfg.RateCacheTTL, err = getDuration("RATE_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateRetryBackoff, err = getDuration("RATE_RETRY_BACKOFF", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.RateBreakerCooldown, err = getDuration("RATE_BREAKER_COOLDOWN", 30*time.Second); err != nil {
		return nil, err
	}
	retryMax, err := getInt("RATE_RETRY_MAX", 3)
	if err != nil {
		return nil, err
	}
	cfg.RateRetryMax = retryMax
	threshold, err := getInt("RATE_BREAKER_THRESHOLD", 3)
	if err != nil {
		return nil, err
	}
	cfg.RateBreakerThreshold = uint32(threshold)
	if cfg.RateLimitCapacity, err = getInt("RATE_LIMIT_CAPACITY", 20); err != nil {
		return nil, err
	}
	if cfg.RateLimitRefillPerSec, err = getInt("RATE_LIMIT_REFILL_PER_SEC", 10); err != nil {
		return nil, err
	}
	maxBody, err := getInt("MAX_BODY_BYTES", 1<<20)
	if err != nil {
		return nil, err
	}
	cfg.MaxBodyBytes = int64(maxBody)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is complete for the selected
// backends, collecting every missing variable into one error.
func (c *Config) Validate() error {
	var missing []string

	if c.Environment == "" {
		missing = append(missing, "APP_ENV")
	}
	if c.RateAPIURL == "" {
		missing = append(missing, "RATE_API_URL")
	}
	if c.RateAPIKey == "" {
		missing = append(missing, "RATE_API_KEY")
	}

	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			missing = append(missing, "SQLITE_PATH")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or sqlite, got %q", c.StoreDriver)
	}

	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}

	if c.RateRetryMax < 1 {
		return errors.New("RATE_RETRY_MAX must be at least 1")
	}
	if c.RateBreakerThreshold < 1 {
		return errors.New("RATE_BREAKER_THRESHOLD must be at least 1")
	}
	return nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 5m or 30s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return i, nil
}
