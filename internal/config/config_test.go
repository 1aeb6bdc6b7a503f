// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

package config

import (
	"strings"
	"testing"
	"time"
)

// validConfig returns a Default() config patched to pass validation.
func validConfig() *Config {
	cfg := Default()
	cfg.Security.JWTSecret = strings.Repeat("s", 32)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults with secret are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "invalid provider url",
			mutate:  func(c *Config) { c.Provider.URL = "not a url" },
			wantErr: "provider.url",
		},
		{
			name:    "negative track cost",
			mutate:  func(c *Config) { c.Session.TrackCost = -1 },
			wantErr: "costs",
		},
		{
			name: "poll floor above interval",
			mutate: func(c *Config) {
				c.Session.PollFloor = 10 * time.Second
				c.Session.PollInterval = 5 * time.Second
			},
			wantErr: "poll_floor",
		},
		{
			name:    "zero assignment timeout",
			mutate:  func(c *Config) { c.Session.AssignmentTimeout = 0 },
			wantErr: "assignment_timeout",
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Security.JWTSecret = "" },
			wantErr: "jwt_secret",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Security.JWTSecret = "short" },
			wantErr: "32 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"SERVER_PORT", "server.port"},
		{"SESSION_TRACK_COST", "session.track_cost"},
		{"SESSION_DEFAULT_CONTENT_ID", "session.default_content_id"},
		{"SECURITY_JWT_SECRET", "security.jwt_secret"},
		{"PROVIDER_BREAKER_ENABLED", "provider.breaker_enabled"},
		{"LOGGING_LEVEL", "logging.level"},
		{"PATH", ""},
		{"HOME", ""},
		{"SERVER_", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransformFunc(tt.input); got != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDefaultsAreInternallyConsistent(t *testing.T) {
	cfg := Default()
	if cfg.Session.PollFloor > cfg.Session.PollInterval {
		t.Error("default poll floor exceeds default poll interval")
	}
	if cfg.Session.AssignmentTimeout != 15*time.Second {
		t.Errorf("default assignment timeout = %s, want 15s", cfg.Session.AssignmentTimeout)
	}
}
