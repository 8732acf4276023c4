package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the crashdesk server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Intake   IntakeConfig
	Console  ConsoleConfig
	Feed     FeedConfig
}

type ServerConfig struct {
	Port    int
	Env     string
	BaseURL string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// IntakeConfig controls the client-facing report endpoint.
type IntakeConfig struct {
	Secret          string
	MaxProblemBytes int64
	RatePerMin      int
}

// ConsoleConfig holds the single maintainer account for the web console.
type ConsoleConfig struct {
	Username     string
	PasswordHash string
	SessionTTL   time.Duration
}

type FeedConfig struct {
	Size     int
	CacheTTL time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:    envInt("CRASHDESK_PORT", 8080),
			Env:     envString("CRASHDESK_ENV", "development"),
			BaseURL: strings.TrimRight(envString("CRASHDESK_BASE_URL", "http://localhost:8080"), "/"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Intake: IntakeConfig{
			Secret:          os.Getenv("REPORT_SECRET"),
			MaxProblemBytes: int64(envInt("REPORT_MAX_PROBLEM_BYTES", 10<<20)),
			RatePerMin:      envInt("REPORT_RATE_PER_MIN", 30),
		},
		Console: ConsoleConfig{
			Username:     envString("CONSOLE_USERNAME", "admin"),
			PasswordHash: os.Getenv("CONSOLE_PASSWORD_HASH"),
			SessionTTL:   envDuration("CONSOLE_SESSION_TTL", 12*time.Hour),
		},
		Feed: FeedConfig{
			Size:     envInt("FEED_SIZE", 25),
			CacheTTL: envDuration("FEED_CACHE_TTL", 30*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !strings.HasPrefix(c.Server.BaseURL, "http://") && !strings.HasPrefix(c.Server.BaseURL, "https://") {
		return fmt.Errorf("CRASHDESK_BASE_URL must start with http:// or https://, got %q", c.Server.BaseURL)
	}

	if c.Intake.Secret == "" {
		return fmt.Errorf("REPORT_SECRET is required")
	}
	if c.Intake.MaxProblemBytes <= 0 {
		return fmt.Errorf("REPORT_MAX_PROBLEM_BYTES must be positive, got %d", c.Intake.MaxProblemBytes)
	}

	if c.Console.Username == "" {
		return fmt.Errorf("CONSOLE_USERNAME must not be empty")
	}
	if c.Console.PasswordHash == "" {
		return fmt.Errorf("CONSOLE_PASSWORD_HASH is required")
	}
	if !strings.HasPrefix(c.Console.PasswordHash, "$2") {
		return fmt.Errorf("CONSOLE_PASSWORD_HASH must be a bcrypt hash")
	}

	if c.Feed.Size <= 0 || c.Feed.Size > 500 {
		return fmt.Errorf("FEED_SIZE must be between 1 and 500, got %d", c.Feed.Size)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
