// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into strongly-typed
Go structs, providing early validation and default values.

Usage:

	cfg, err := config.Load()       // API server
	clientCfg, err := config.LoadClient() // unpuff client

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, caches) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Server Configuration

// Config holds all runtime configuration for the Unpuff API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// PublicBaseURL is the externally reachable origin, used to build OAuth and verification links.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Cryptographic keys for access token signing
	JWTPrivKeyPath string        `env:"JWT_PRIVATE_KEY_PATH,required"`
	JWTPubKeyPath  string        `env:"JWT_PUBLIC_KEY_PATH,required"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"720h"`

	// Credential policy. The simple username variant ships with 3, the email variant with 6.
	PasswordMinLength        int  `env:"PASSWORD_MIN_LENGTH"        envDefault:"3"`
	RequireEmailConfirmation bool `env:"REQUIRE_EMAIL_CONFIRMATION" envDefault:"false"`

	// Google OAuth
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`

	// Cross-Origin Resource Sharing
	AllowedOriginSuffix string `env:"ALLOWED_ORIGIN_SUFFIX" envDefault:"unpuff.app"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.PasswordMinLength < 1 {
		return nil, fmt.Errorf("config: PASSWORD_MIN_LENGTH must be positive, got %d", cfg.PasswordMinLength)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// OriginSuffix returns the origin suffix accepted by CORS outside development.
func (c *Config) OriginSuffix() string {
	return c.AllowedOriginSuffix
}

// GoogleOAuthEnabled reports whether Google credentials were provided.
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// # Client Configuration

// Storage drivers accepted by [ClientConfig.StorageDriver].
const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// ClientConfig holds the runtime configuration of the unpuff client.
type ClientConfig struct {
	// APIBaseURL is the first-party identity API root (".../api").
	APIBaseURL  string        `env:"UNPUFF_API_URL"      envDefault:"http://localhost:8080/api"`
	HTTPTimeout time.Duration `env:"UNPUFF_HTTP_TIMEOUT" envDefault:"10s"`
	Debug       bool          `env:"UNPUFF_DEBUG"        envDefault:"false"`

	// Local durable storage. "redis" shares state between devices/tabs of the same user.
	StorageDriver  string `env:"UNPUFF_STORAGE"         envDefault:"file"`
	DataDir        string `env:"UNPUFF_DATA_DIR"        envDefault:".unpuff"`
	RedisURL       string `env:"UNPUFF_REDIS_URL"`
	RedisNamespace string `env:"UNPUFF_REDIS_NAMESPACE"`

	// RemoteProfile stores the profile in the API's profile table instead of locally.
	RemoteProfile bool `env:"UNPUFF_REMOTE_PROFILE" envDefault:"false"`

	// Credential policy applied before signup reaches the network.
	PasswordMinLength int `env:"UNPUFF_PASSWORD_MIN_LENGTH" envDefault:"3"`

	// RedirectURL is where OAuth and email links return. Native shells use the custom scheme.
	RedirectURL string `env:"UNPUFF_REDIRECT_URL" envDefault:"unpuff://auth/callback"`
}

// LoadClient parses environment variables into a [ClientConfig] struct.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse client environment: %w", err)
	}

	switch cfg.StorageDriver {
	case StorageFile, StorageMemory:
	case StorageRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("config: UNPUFF_REDIS_URL is required for the redis storage driver")
		}
	default:
		return nil, fmt.Errorf("config: unknown storage driver %q", cfg.StorageDriver)
	}

	if cfg.PasswordMinLength < 1 {
		return nil, fmt.Errorf("config: UNPUFF_PASSWORD_MIN_LENGTH must be positive, got %d", cfg.PasswordMinLength)
	}

	return cfg, nil
}
