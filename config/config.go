package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	apperrors "github.com/launchkit/polarbridge/internal/errors"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
	Redis    RedisConfig
	Polar    PolarConfig
	Clerk    ClerkConfig
	Frontend FrontendConfig
}

type ServerConfig struct {
	Host                    string
	Port                    int
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	IdleTimeout             time.Duration
	GracefulShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string // json or text
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

type RedisConfig struct {
	URL string
	// RatePerMinute caps billing API calls per authenticated subject
	RatePerMinute int
}

// PolarConfig carries the billing provider credentials.
// Server selects the API host: "sandbox" or "production".
type PolarConfig struct {
	AccessToken    string
	OrganizationID string
	Server         string
	WebhookSecret  string
}

// ClerkConfig configures the identity provider. The issuer domain is
// derived from the publishable key; an empty key disables authentication
// (requests carry no identity and write paths reject).
type ClerkConfig struct {
	PublishableKey string
}

type FrontendConfig struct {
	// BaseURL is where checkout sessions redirect on success
	BaseURL string
}

// Load loads configuration from environment variables with sensible defaults.
// A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:                    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:                    getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:             getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:            getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:             getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			GracefulShutdownTimeout: getEnvDuration("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", 1*time.Hour),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Port:    getEnvInt("METRICS_PORT", 9090),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		Redis: RedisConfig{
			URL:           getEnv("REDIS_URL", ""),
			RatePerMinute: getEnvInt("BILLING_RATE_PER_MINUTE", 60),
		},
		Polar: PolarConfig{
			AccessToken:    getEnv("POLAR_ACCESS_TOKEN", ""),
			OrganizationID: getEnv("POLAR_ORGANIZATION_ID", ""),
			Server:         getEnv("POLAR_SERVER", "sandbox"),
			WebhookSecret:  getEnv("POLAR_WEBHOOK_SECRET", ""),
		},
		Clerk: ClerkConfig{
			PublishableKey: getEnv("CLERK_PUBLISHABLE_KEY", ""),
		},
		Frontend: FrontendConfig{
			BaseURL: getEnv("FRONTEND_URL", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration. Required provider values are
// checked here, once, so components never read the environment ad hoc.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}
	if c.Polar.AccessToken == "" {
		return apperrors.ConfigError{Name: "POLAR_ACCESS_TOKEN"}
	}
	if c.Polar.OrganizationID == "" {
		return apperrors.ConfigError{Name: "POLAR_ORGANIZATION_ID"}
	}
	if c.Polar.WebhookSecret == "" {
		return apperrors.ConfigError{Name: "POLAR_WEBHOOK_SECRET"}
	}
	if c.Polar.Server != "sandbox" && c.Polar.Server != "production" {
		return fmt.Errorf("invalid POLAR_SERVER: %s", c.Polar.Server)
	}
	if c.Frontend.BaseURL == "" {
		return apperrors.ConfigError{Name: "FRONTEND_URL"}
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
