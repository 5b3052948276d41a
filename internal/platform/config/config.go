// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. During local development
a '.env' file is read first (via 'joho/godotenv') so the same variables can live
next to the code.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, Mailer) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// # Configuration Schema

// Config holds all runtime configuration for the Tourly API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Store (Redis): registration drafts and attempt counters
	RedisURL string `env:"REDIS_URL,required,notEmpty"`

	// Cryptographic secrets for session tokens and one-time code hashes
	SessionSecret string `env:"SESSION_SECRET,required,notEmpty"`
	OTPSecret     string `env:"OTP_SECRET,required,notEmpty"`

	// SuperAdminEmail designates the single account with unconditional admin rights.
	SuperAdminEmail string `env:"SUPER_ADMIN_EMAIL"`

	// GoogleClientID is the expected audience of Google ID tokens. Empty disables Google sign-in.
	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`

	// Outbound mail (one-time codes)
	SMTP SMTPConfig `envPrefix:"SMTP_"`

	// Cross-Origin Resource Sharing
	AllowedOriginSuffix string `env:"ALLOWED_ORIGIN_SUFFIX" envDefault:"tourly.app"`
}

// SMTPConfig holds the transactional mail relay credentials.
type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     string `env:"PORT"     envDefault:"465"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
//
// A '.env' file in the working directory is loaded first when present. Variables
// already set in the process environment always win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read .env file: %w", err)
	}

	return Parse()
}

// Parse maps the current process environment into a [Config] without touching '.env'.
func Parse() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
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

// GoogleEnabled reports whether Google sign-in has been configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != ""
}

// MailEnabled reports whether an SMTP relay has been configured.
func (c *Config) MailEnabled() bool {
	return c.SMTP.Host != ""
}
