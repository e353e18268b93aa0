package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session store backends.
const (
	SessionStoreMemory  = "memory"
	SessionStorePebble  = "pebble"
	SessionStoreSurreal = "surreal"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Upstream  UpstreamConfig
	Session   SessionConfig
	View      ViewConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string // debug, info, warn, or error
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// UpstreamConfig holds enrollment API client settings
type UpstreamConfig struct {
	BaseURL string
	Timeout time.Duration
	Rate    int // outbound calls per second, 0 disables throttling
	Burst   int
}

// SessionConfig holds session store settings
type SessionConfig struct {
	Store   string // memory, pebble, or surreal
	TTL     time.Duration
	SealKey string // 64 hex chars
	Pebble  PebbleConfig
	Surreal SurrealConfig
}

// PebbleConfig holds embedded session database settings
type PebbleConfig struct {
	Path string
}

// SurrealConfig holds shared SurrealDB session store settings
type SurrealConfig struct {
	Host      string
	Port      string
	Namespace string
	Database  string
	User      string
	Password  string
}

// ViewConfig holds affordance policy settings
type ViewConfig struct {
	AffordancesPath string // optional YAML override of the built-in table
}

// RateLimitConfig holds gateway ingress rate limit settings. Login gets
// its own tighter budget, keyed by the submitted email.
type RateLimitConfig struct {
	Rate   int
	Burst  int
	Window time.Duration

	LoginRate   int
	LoginBurst  int
	LoginWindow time.Duration
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Env:            getEnv("SERVER_ENV", "development"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			AllowedOrigins: getSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Upstream: UpstreamConfig{
			BaseURL: getEnv("UPSTREAM_BASE_URL", "http://localhost:9000"),
			Timeout: getDurationEnv("UPSTREAM_TIMEOUT", 10*time.Second),
			Rate:    getIntEnv("UPSTREAM_RATE", 50),
			Burst:   getIntEnv("UPSTREAM_BURST", 100),
		},
		Session: SessionConfig{
			Store:   getEnv("SESSION_STORE", SessionStorePebble),
			TTL:     getDurationEnv("SESSION_TTL", 12*time.Hour),
			SealKey: getEnv("SESSION_SEAL_KEY", ""),
			Pebble: PebbleConfig{
				Path: getEnv("SESSION_DB_PATH", "./data/sessions"),
			},
			Surreal: SurrealConfig{
				Host:      getEnv("DB_HOST", "localhost"),
				Port:      getEnv("DB_PORT", "8000"),
				Namespace: getEnv("DB_NAMESPACE", "registra"),
				Database:  getEnv("DB_DATABASE", "sessions"),
				User:      getEnv("DB_USER", "root"),
				Password:  getEnv("DB_PASSWORD", "root"),
			},
		},
		View: ViewConfig{
			AffordancesPath: getEnv("AFFORDANCES_PATH", ""),
		},
		RateLimit: RateLimitConfig{
			Rate:   getIntEnv("RATE_LIMIT_RATE", 100),
			Burst:  getIntEnv("RATE_LIMIT_BURST", 20),
			Window: getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

			LoginRate:   getIntEnv("RATE_LIMIT_LOGIN_RATE", 5),
			LoginBurst:  getIntEnv("RATE_LIMIT_LOGIN_BURST", 3),
			LoginWindow: getDurationEnv("RATE_LIMIT_LOGIN_WINDOW", time.Minute),
		},
	}, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	// Server validation
	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("SERVER_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must have at least one origin"))
	}
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be 'debug', 'info', 'warn', or 'error', got '%s'", c.Server.LogLevel))
	}

	// Upstream validation
	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("UPSTREAM_BASE_URL is required"))
	} else if !strings.HasPrefix(c.Upstream.BaseURL, "http://") && !strings.HasPrefix(c.Upstream.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("UPSTREAM_BASE_URL must be an http(s) URL, got '%s'", c.Upstream.BaseURL))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("UPSTREAM_TIMEOUT must be positive"))
	}

	// Session validation
	switch c.Session.Store {
	case SessionStoreMemory, SessionStorePebble, SessionStoreSurreal:
		// valid
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE must be 'memory', 'pebble', or 'surreal', got '%s'", c.Session.Store))
	}
	if c.Session.SealKey == "" {
		errs = append(errs, errors.New("SESSION_SEAL_KEY is required (generate one with the sealkey command)"))
	} else if len(c.Session.SealKey) != 64 {
		errs = append(errs, errors.New("SESSION_SEAL_KEY must be 64 hex characters"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.Session.Store == SessionStorePebble && c.Session.Pebble.Path == "" {
		errs = append(errs, errors.New("SESSION_DB_PATH is required when SESSION_STORE is 'pebble'"))
	}
	if c.Session.Store == SessionStoreSurreal {
		if c.Session.Surreal.Host == "" {
			errs = append(errs, errors.New("DB_HOST is required when SESSION_STORE is 'surreal'"))
		}
		if c.Session.Surreal.Port == "" {
			errs = append(errs, errors.New("DB_PORT is required when SESSION_STORE is 'surreal'"))
		}
		if c.Session.Surreal.Namespace == "" {
			errs = append(errs, errors.New("DB_NAMESPACE is required when SESSION_STORE is 'surreal'"))
		}
		if c.Session.Surreal.Database == "" {
			errs = append(errs, errors.New("DB_DATABASE is required when SESSION_STORE is 'surreal'"))
		}
	}

	// Rate limit validation
	if c.RateLimit.Rate <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RATE must be positive"))
	}
	if c.RateLimit.LoginRate <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_LOGIN_RATE must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
