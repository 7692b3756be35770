// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

// Package config loads PulseTrack configuration from layered sources using
// Koanf v2: built-in defaults, then an optional YAML file, then environment
// variables. Precedence is ENV > file > defaults.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the complete PulseTrack configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Store    StoreConfig    `koanf:"store"`
	NATS     NATSConfig     `koanf:"nats"`
	Identity IdentityConfig `koanf:"identity"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig holds record persistence settings.
type StoreConfig struct {
	Dir        string        `koanf:"dir"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// NATSConfig holds change event transport settings. The embedded server is
// the default; point URL at an external broker and disable Embedded to share
// a cluster.
type NATSConfig struct {
	URL          string        `koanf:"url"`
	Embedded     bool          `koanf:"embedded"`
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	StoreDir     string        `koanf:"store_dir"`
	MaxMemory    int64         `koanf:"max_memory"`
	MaxStore     int64         `koanf:"max_store"`
	StreamMaxAge time.Duration `koanf:"stream_max_age"`
	DurableName  string        `koanf:"durable_name"`
	QueueGroup   string        `koanf:"queue_group"`
}

// IdentityConfig locates the external identity provider. PulseTrack never
// mints credentials; every token is verified against the IdP's signing keys.
type IdentityConfig struct {
	IssuerURL    string        `koanf:"issuer_url"`
	Audience     string        `koanf:"audience"`
	JWKSURI      string        `koanf:"jwks_uri"`
	JWKSCacheTTL time.Duration `koanf:"jwks_cache_ttl"`
}

// SecurityConfig holds CORS and rate limit settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for coherence. Called after loading,
// before any component starts.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Store.Dir == "" {
		return fmt.Errorf("store dir required")
	}

	if c.Identity.IssuerURL == "" {
		return fmt.Errorf("identity issuer_url required")
	}
	if u, err := url.Parse(c.Identity.IssuerURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("identity issuer_url %q is not a valid URL", c.Identity.IssuerURL)
	}
	if c.Identity.Audience == "" {
		return fmt.Errorf("identity audience required")
	}

	if !c.NATS.Embedded && c.NATS.URL == "" {
		return fmt.Errorf("nats url required when the embedded server is disabled")
	}
	if c.NATS.Embedded && c.NATS.StoreDir == "" {
		return fmt.Errorf("nats store_dir required for the embedded server")
	}

	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("rate limit requests must be positive")
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}

	return nil
}
