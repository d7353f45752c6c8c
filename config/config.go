// Package config provides application configuration loaded from
// environment variables with defaults and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"offerflow/offer"
)

// Config holds all settings for the engine binaries.
type Config struct {
	// DatabaseURL is the PostgreSQL DSN. Empty selects the in-memory
	// store, which is only useful for local development.
	DatabaseURL string

	// Server
	Port string

	// Logging
	LogLevel  string // debug|info|warn|error
	LogPretty bool

	// Automated thresholds, in days after sent_at.
	FollowUpDays int
	EscalateDays int
	ExpireDays   int

	// Action links
	ActionLinkSecret string
	ActionLinkTTL    time.Duration
}

// Rules builds the decision thresholds from the configured day offsets.
func (c Config) Rules() offer.Rules {
	return offer.Rules{
		FollowUpDays: c.FollowUpDays,
		EscalateDays: c.EscalateDays,
		ExpireDays:   c.ExpireDays,
	}
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	defaults := offer.DefaultRules()
	cfg := Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		Port:             envOr("PORT", "8080"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogPretty:        envBool("LOG_PRETTY", false),
		FollowUpDays:     envInt("FOLLOWUP_DAYS", defaults.FollowUpDays),
		EscalateDays:     envInt("ESCALATE_DAYS", defaults.EscalateDays),
		ExpireDays:       envInt("EXPIRE_DAYS", defaults.ExpireDays),
		ActionLinkSecret: os.Getenv("ACTION_LINK_SECRET"),
		ActionLinkTTL:    envDuration("ACTION_LINK_TTL", 7*24*time.Hour),
	}

	if err := cfg.Rules().Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.ActionLinkTTL <= 0 {
		return Config{}, fmt.Errorf("config: ACTION_LINK_TTL must be positive")
	}
	return cfg, nil
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
