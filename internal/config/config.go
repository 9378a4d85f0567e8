// Package config loads service configuration from an optional YAML
// file with environment overrides on top. Defaults are safe for local
// development: in-memory store, in-memory broker, greedy solver.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	HTTPAddr    string `yaml:"httpAddr"`
	DataDir     string `yaml:"dataDir"`
	DatabaseURL string `yaml:"databaseURL"`
	RedisURL    string `yaml:"redisURL"`

	Solver    SolverConfig    `yaml:"solver"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Auth      AuthConfig      `yaml:"auth"`
	Webhooks  WebhookConfig   `yaml:"webhooks"`
}

// SolverConfig tunes model construction and the solve call.
type SolverConfig struct {
	Backend      string `yaml:"backend"`
	URL          string `yaml:"url"`
	TimeLimitSec int    `yaml:"timeLimitSec"`
	Pool         int    `yaml:"pool"`
	Days         int    `yaml:"days"`
	MaxBinaries  int    `yaml:"maxBinaries"`
}

// TimeLimit returns the configured solve budget.
func (s SolverConfig) TimeLimit() time.Duration {
	return time.Duration(s.TimeLimitSec) * time.Second
}

// RateLimitConfig throttles plan creation.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// AuthConfig selects the request authentication mode: "dev" trusts
// headers, "hmac" verifies signed tokens.
type AuthConfig struct {
	Mode   string `yaml:"mode"`
	Secret string `yaml:"secret"`
}

// WebhookConfig tunes outbound delivery.
type WebhookConfig struct {
	MaxAttempts int `yaml:"maxAttempts"`
}

// Default returns the development configuration.
func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		DataDir:  "data",
		Solver: SolverConfig{
			Backend:      "greedy",
			TimeLimitSec: 300,
			Pool:         300,
			Days:         6,
			MaxBinaries:  2_000_000,
		},
		RateLimit: RateLimitConfig{RPS: 1, Burst: 3},
		Auth:      AuthConfig{Mode: "dev"},
		Webhooks:  WebhookConfig{MaxAttempts: 5},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&c.HTTPAddr, "HTTP_ADDR")
	setStr(&c.DataDir, "DATA_DIR")
	setStr(&c.DatabaseURL, "DATABASE_URL")
	setStr(&c.RedisURL, "REDIS_URL")
	setStr(&c.Solver.Backend, "SOLVER_BACKEND")
	setStr(&c.Solver.URL, "SOLVER_URL")
	setStr(&c.Auth.Mode, "AUTH_MODE")
	setStr(&c.Auth.Secret, "AUTH_SECRET")
	if v := os.Getenv("SOLVER_TIME_LIMIT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Solver.TimeLimitSec = n
		}
	}
	if v := os.Getenv("TRUCK_POOL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Solver.Pool = n
		}
	}
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Webhooks.MaxAttempts = n
		}
	}
}
