package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Env:            "development",
			LogLevel:       "info",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Upstream: UpstreamConfig{
			BaseURL: "http://localhost:9000",
			Timeout: 10 * time.Second,
			Rate:    50,
			Burst:   100,
		},
		Session: SessionConfig{
			Store:   SessionStorePebble,
			TTL:     12 * time.Hour,
			SealKey: strings.Repeat("ab", 32),
			Pebble:  PebbleConfig{Path: "./data/sessions"},
		},
		RateLimit: RateLimitConfig{
			Rate:   100,
			Burst:  20,
			Window: time.Minute,

			LoginRate:   5,
			LoginBurst:  3,
			LoginWindow: time.Minute,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "missing seal key",
			mutate:  func(c *Config) { c.Session.SealKey = "" },
			wantMsg: "SESSION_SEAL_KEY is required",
		},
		{
			name:    "short seal key",
			mutate:  func(c *Config) { c.Session.SealKey = "abcd" },
			wantMsg: "64 hex characters",
		},
		{
			name:    "unknown session store",
			mutate:  func(c *Config) { c.Session.Store = "redis" },
			wantMsg: "SESSION_STORE must be",
		},
		{
			name:    "pebble without path",
			mutate:  func(c *Config) { c.Session.Pebble.Path = "" },
			wantMsg: "SESSION_DB_PATH is required",
		},
		{
			name: "surreal without host",
			mutate: func(c *Config) {
				c.Session.Store = SessionStoreSurreal
				c.Session.Surreal = SurrealConfig{Port: "8000", Namespace: "ns", Database: "db"}
			},
			wantMsg: "DB_HOST is required",
		},
		{
			name:    "bad upstream url",
			mutate:  func(c *Config) { c.Upstream.BaseURL = "localhost:9000" },
			wantMsg: "http(s) URL",
		},
		{
			name:    "zero upstream timeout",
			mutate:  func(c *Config) { c.Upstream.Timeout = 0 },
			wantMsg: "UPSTREAM_TIMEOUT must be positive",
		},
		{
			name:    "bad env",
			mutate:  func(c *Config) { c.Server.Env = "staging" },
			wantMsg: "SERVER_ENV must be",
		},
		{
			name:    "zero rate limit",
			mutate:  func(c *Config) { c.RateLimit.Rate = 0 },
			wantMsg: "RATE_LIMIT_RATE must be positive",
		},
		{
			name:    "zero login rate limit",
			mutate:  func(c *Config) { c.RateLimit.LoginRate = 0 },
			wantMsg: "RATE_LIMIT_LOGIN_RATE must be positive",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantMsg: "LOG_LEVEL must be",
		},
		{
			name:    "non-positive ttl",
			mutate:  func(c *Config) { c.Session.TTL = 0 },
			wantMsg: "SESSION_TTL must be positive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestValidate_JoinsMultipleFailures(t *testing.T) {
	cfg := validConfig()
	cfg.Session.SealKey = ""
	cfg.Upstream.BaseURL = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"SESSION_SEAL_KEY", "UPSTREAM_BASE_URL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Session.Store != SessionStorePebble {
		t.Errorf("session store = %q, want pebble", cfg.Session.Store)
	}
	if cfg.Session.TTL != 12*time.Hour {
		t.Errorf("session ttl = %v, want 12h", cfg.Session.TTL)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.RateLimit.LoginRate != 5 {
		t.Errorf("login rate = %d, want 5", cfg.RateLimit.LoginRate)
	}
}

func TestLoad_LogLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Server.LogLevel)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_BAD", "not-a-number")
	t.Setenv("TEST_DUR", "90s")
	t.Setenv("TEST_SLICE", "a,b,c")

	if got := getEnv("TEST_STR", "fallback"); got != "value" {
		t.Errorf("getEnv = %q", got)
	}
	if got := getEnv("TEST_ABSENT", "fallback"); got != "fallback" {
		t.Errorf("getEnv fallback = %q", got)
	}
	if got := getIntEnv("TEST_INT", 0); got != 42 {
		t.Errorf("getIntEnv = %d", got)
	}
	if got := getIntEnv("TEST_INT_BAD", 7); got != 7 {
		t.Errorf("getIntEnv bad value = %d, want fallback", got)
	}
	if got := getDurationEnv("TEST_DUR", 0); got != 90*time.Second {
		t.Errorf("getDurationEnv = %v", got)
	}
	if got := getSliceEnv("TEST_SLICE", nil); len(got) != 3 || got[1] != "b" {
		t.Errorf("getSliceEnv = %v", got)
	}
}
