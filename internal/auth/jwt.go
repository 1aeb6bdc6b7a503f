// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

// Package auth issues and validates the bearer tokens that bind a caller
// to a session. A token is minted when a session is created or joined and
// carries the actor's identity and host flag; it is the only credential
// the HTTP and WebSocket surfaces accept.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jukewire/jukewire/internal/config"
	"github.com/jukewire/jukewire/internal/models"
)

// Claims binds a token to one actor within one session.
type Claims struct {
	SessionID string `json:"session_id"`
	ActorID   string `json:"actor_id"`
	Display   string `json:"display"`
	Host      bool   `json:"host"`
	jwt.RegisteredClaims
}

// Actor reconstructs the acting identity from the claims.
func (c *Claims) Actor() models.Actor {
	return models.Actor{ID: c.ActorID, Display: c.Display, Host: c.Host}
}

// Manager creates and validates session tokens. Signing is HMAC-SHA256;
// the secret is held as []byte and never logged.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager builds a token manager from the security configuration.
func NewManager(cfg *config.SecurityConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}
	return &Manager{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
	}, nil
}

// GenerateToken mints a signed token for an actor in a session. The token
// expires after the configured TTL; sessions outliving their tokens
// require a fresh join.
func (m *Manager) GenerateToken(sessionID string, actor models.Actor) (string, error) {
	now := time.Now()
	claims := &Claims{
		SessionID: sessionID,
		ActorID:   actor.ID,
		Display:   actor.Display,
		Host:      actor.Host,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks signature, algorithm, and time bounds, and returns
// the embedded claims. The algorithm check rejects anything but HMAC to
// prevent algorithm-confusion attacks.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.SessionID == "" || claims.ActorID == "" {
		return nil, fmt.Errorf("token missing session binding")
	}
	return claims, nil
}
