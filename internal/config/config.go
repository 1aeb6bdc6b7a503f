// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

// Package config loads the Jukewire configuration from layered sources:
// built-in defaults, an optional YAML file, and environment variables,
// with environment variables taking the highest precedence.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the root configuration for the Jukewire server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Provider ProviderConfig `koanf:"provider"`
	Session  SessionConfig  `koanf:"session"`
	Credits  CreditsConfig  `koanf:"credits"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// ProviderConfig holds connection settings for the zone playback provider.
type ProviderConfig struct {
	// URL is the provider API base URL, e.g. https://api.provider.example.
	URL string `koanf:"url"`
	// Token authenticates provider API calls.
	Token string `koanf:"token"`
	// Timeout bounds each provider HTTP call.
	Timeout time.Duration `koanf:"timeout"`
	// BreakerEnabled wraps the client in a circuit breaker.
	BreakerEnabled bool `koanf:"breaker_enabled"`
}

// SessionConfig holds per-session playback reconciliation settings.
type SessionConfig struct {
	// TrackCost is the credit price a guest pays to queue a track.
	TrackCost int64 `koanf:"track_cost"`
	// VoteCost is the credit price a guest pays per reaction.
	VoteCost int64 `koanf:"vote_cost"`
	// PollInterval is the default reconciliation interval, and the
	// ceiling for the adaptive delay.
	PollInterval time.Duration `koanf:"poll_interval"`
	// PollFloor is the minimum reconciliation delay.
	PollFloor time.Duration `koanf:"poll_floor"`
	// PollBuffer is added to the remaining track time when computing the
	// adaptive delay, so the tick lands just after the track ends.
	PollBuffer time.Duration `koanf:"poll_buffer"`
	// AssignmentTimeout is how long an unconfirmed zone assignment may
	// stay outstanding before it is re-issued.
	AssignmentTimeout time.Duration `koanf:"assignment_timeout"`
	// DefaultContentID is optional fallback content assigned when the
	// queue is empty and the zone reports nothing playing.
	DefaultContentID string `koanf:"default_content_id"`
}

// CreditsConfig holds credit ledger settings.
type CreditsConfig struct {
	// Path is the Badger directory for ledger persistence.
	// Empty selects the in-memory ledger (tests, ephemeral deployments).
	Path string `koanf:"path"`
	// StartingBalance is granted to each identity on first use.
	StartingBalance int64 `koanf:"starting_balance"`
}

// SecurityConfig holds auth and HTTP hardening settings.
type SecurityConfig struct {
	// JWTSecret signs session tokens. Required.
	JWTSecret string `koanf:"jwt_secret"`
	// TokenTTL is the session token lifetime.
	TokenTTL time.Duration `koanf:"token_ttl"`
	// RateLimitReqs per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for values that would prevent the
// server from operating correctly.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Provider.URL != "" {
		if _, err := url.ParseRequestURI(c.Provider.URL); err != nil {
			return fmt.Errorf("provider.url is not a valid URL: %w", err)
		}
	}
	if c.Session.TrackCost < 0 || c.Session.VoteCost < 0 {
		return fmt.Errorf("session costs must be non-negative")
	}
	if c.Session.PollFloor > c.Session.PollInterval {
		return fmt.Errorf("session.poll_floor (%s) exceeds session.poll_interval (%s)",
			c.Session.PollFloor, c.Session.PollInterval)
	}
	if c.Session.AssignmentTimeout <= 0 {
		return fmt.Errorf("session.assignment_timeout must be positive")
	}
	if c.Credits.StartingBalance < 0 {
		return fmt.Errorf("credits.starting_balance must be non-negative")
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters")
	}
	return nil
}
