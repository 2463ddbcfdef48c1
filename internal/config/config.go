// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

// Package config loads Coursebook settings from defaults, an optional YAML
// file, a .env file, the environment and command-line flags, in that order
// of increasing precedence.
package config

import (
	"net/url"
	"time"

	"github.com/samber/oops"

	"github.com/coursebook/coursebook/internal/auth"
	"github.com/coursebook/coursebook/internal/logging"
)

// Redacted replaces secrets in Config.Redacted output.
const Redacted = "[redacted]"

// minSecretKeyLength is the shortest accepted cookie-signing key.
const minSecretKeyLength = 16

// Config is the complete application configuration.
type Config struct {
	HTTP      HTTPConfig     `koanf:"http" yaml:"http"`
	Metrics   MetricsConfig  `koanf:"metrics" yaml:"metrics"`
	Database  DatabaseConfig `koanf:"database" yaml:"database"`
	SecretKey string         `koanf:"secret_key" yaml:"secret_key" jsonschema:"description=Key for signing flash and CSRF cookies"`
	Session   SessionConfig  `koanf:"session" yaml:"session"`
	Hasher    HasherConfig   `koanf:"hasher" yaml:"hasher"`
	Log       LogConfig      `koanf:"log" yaml:"log"`
}

// HTTPConfig configures the web server.
type HTTPConfig struct {
	Addr         string `koanf:"addr" yaml:"addr"`
	CookieSecure bool   `koanf:"cookie_secure" yaml:"cookie_secure"`

	// RateLimit is login and register POSTs allowed per client IP per minute.
	// Zero disables the limit.
	RateLimit int `koanf:"rate_limit" yaml:"rate_limit" jsonschema:"minimum=0"`
}

// MetricsConfig configures the observability server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// DatabaseConfig configures PostgreSQL access.
type DatabaseConfig struct {
	URL            string `koanf:"url" yaml:"url"`
	AutoMigrate    bool   `koanf:"auto_migrate" yaml:"auto_migrate"`
	ConnectRetries uint64 `koanf:"connect_retries" yaml:"connect_retries"`
}

// SessionConfig configures login session lifetimes.
type SessionConfig struct {
	ShortTTL      time.Duration `koanf:"short_ttl" yaml:"short_ttl" jsonschema:"type=string"`
	LongTTL       time.Duration `koanf:"long_ttl" yaml:"long_ttl" jsonschema:"type=string"`
	SweepInterval time.Duration `koanf:"sweep_interval" yaml:"sweep_interval" jsonschema:"type=string"`
}

// HasherConfig holds the argon2id cost parameters.
type HasherConfig struct {
	Time    uint32 `koanf:"time" yaml:"time" jsonschema:"minimum=1"`
	Memory  uint32 `koanf:"memory" yaml:"memory" jsonschema:"description=Memory in KiB"`
	Threads uint8  `koanf:"threads" yaml:"threads" jsonschema:"minimum=1"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=warning,enum=error"`
}

// Default returns the built-in configuration. It has no secret key or
// database URL; those must come from the environment or a file.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:      "127.0.0.1:8080",
			RateLimit: 10,
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9100",
		},
		Database: DatabaseConfig{
			ConnectRetries: 6,
		},
		Session: SessionConfig{
			ShortTTL:      auth.DefaultShortSessionTTL,
			LongTTL:       auth.DefaultLongSessionTTL,
			SweepInterval: time.Hour,
		},
		Hasher: HasherConfig{
			Time:    auth.DefaultArgon2Params.Time,
			Memory:  auth.DefaultArgon2Params.Memory,
			Threads: auth.DefaultArgon2Params.Threads,
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
	}
}

// Validate checks the settings needed to serve requests.
func (c *Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
	}

	if c.HTTP.Addr == "" {
		return invalid("http.addr", "http.addr is required")
	}
	if c.HTTP.RateLimit < 0 {
		return invalid("http.rate_limit", "http.rate_limit must not be negative")
	}
	if c.Database.URL == "" {
		return invalid("database.url", "database.url is required (set DATABASE_URL or COURSEBOOK_DATABASE_URL)")
	}
	if len(c.SecretKey) < minSecretKeyLength {
		return invalid("secret_key", "secret_key must be at least %d characters (set SECRET_KEY)", minSecretKeyLength)
	}
	if c.Session.ShortTTL <= 0 {
		return invalid("session.short_ttl", "session.short_ttl must be positive")
	}
	if c.Session.LongTTL <= c.Session.ShortTTL {
		return invalid("session.long_ttl", "session.long_ttl must exceed session.short_ttl")
	}
	if c.Session.SweepInterval < 0 {
		return invalid("session.sweep_interval", "session.sweep_interval must not be negative")
	}
	if c.Hasher.Time < 1 || c.Hasher.Threads < 1 {
		return invalid("hasher", "hasher.time and hasher.threads must be at least 1")
	}
	if c.Hasher.Memory < 8*uint32(c.Hasher.Threads) {
		return invalid("hasher.memory", "hasher.memory must be at least 8 KiB per thread")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "log.format must be json or text, got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

// HasherParams converts the hasher settings to argon2id parameters.
func (c *Config) HasherParams() auth.Argon2Params {
	return auth.Argon2Params{Time: c.Hasher.Time, Memory: c.Hasher.Memory, Threads: c.Hasher.Threads}
}

// Redacted returns a copy safe to print: the secret key and any database
// password are masked.
func (c Config) Redacted() Config {
	if c.SecretKey != "" {
		c.SecretKey = Redacted
	}
	c.Database.URL = redactURL(c.Database.URL)
	return c
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if raw == "" {
			return ""
		}
		return Redacted
	}
	return u.Redacted()
}
