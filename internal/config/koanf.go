// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, first match wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pulsetrack/config.yaml",
	"/etc/pulsetrack/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns built-in defaults, applied before the config file and
// environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Dir:        "./data/records",
			GCInterval: 10 * time.Minute,
		},
		NATS: NATSConfig{
			URL:          "nats://127.0.0.1:4222",
			Embedded:     true,
			Host:         "127.0.0.1",
			Port:         4222,
			StoreDir:     "./data/nats",
			MaxMemory:    64 * 1024 * 1024,
			MaxStore:     1024 * 1024 * 1024,
			StreamMaxAge: 10 * time.Minute,
			DurableName:  "",
			QueueGroup:   "",
		},
		Identity: IdentityConfig{
			IssuerURL:    "",
			Audience:     "",
			JWKSURI:      "",
			JWKSCacheTTL: 15 * time.Minute,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first readable config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are the paths parsed as comma-separated slices when they
// arrive as env var strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated strings to slices for known
// slice fields. YAML-sourced values are already slices and are skipped.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransform maps environment variable names to config paths. Unmapped
// variables return "" and are ignored, so unrelated process environment never
// pollutes the configuration.
func envTransform(key string) string {
	mappings := map[string]string{
		// Server
		"http_host":             "server.host",
		"http_port":             "server.port",
		"http_read_timeout":     "server.read_timeout",
		"http_write_timeout":    "server.write_timeout",
		"http_shutdown_timeout": "server.shutdown_timeout",

		// Store
		"store_dir":         "store.dir",
		"store_gc_interval": "store.gc_interval",

		// NATS
		"nats_url":            "nats.url",
		"nats_embedded":       "nats.embedded",
		"nats_host":           "nats.host",
		"nats_port":           "nats.port",
		"nats_store_dir":      "nats.store_dir",
		"nats_max_memory":     "nats.max_memory",
		"nats_max_store":      "nats.max_store",
		"nats_stream_max_age": "nats.stream_max_age",
		"nats_durable_name":   "nats.durable_name",
		"nats_queue_group":    "nats.queue_group",

		// Identity provider
		"idp_issuer_url":     "identity.issuer_url",
		"idp_audience":       "identity.audience",
		"idp_jwks_uri":       "identity.jwks_uri",
		"idp_jwks_cache_ttl": "identity.jwks_cache_ttl",

		// Security
		"cors_origins":        "security.cors_origins",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := mappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
