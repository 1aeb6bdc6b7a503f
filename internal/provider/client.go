// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

// Package provider implements the client for the external zone playback
// provider: now-playing queries, content assignment, and transport control.
// Errors are split into transient failures (network, 5xx, timeouts) that
// the reconciliation loop retries on its next tick, and permanent failures
// that indicate a caller bug or misconfiguration.
package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/jukewire/jukewire/internal/config"
	"github.com/jukewire/jukewire/internal/metrics"
	"github.com/jukewire/jukewire/internal/models"
)

// Client is the zone provider contract consumed by the playback monitor.
type Client interface {
	// GetNowPlaying reports what the zone is playing, or nil when the
	// zone is idle or the provider has no state for it.
	GetNowPlaying(ctx context.Context, zoneID string) (*models.NowPlaying, error)

	// SetZoneContent asks the zone to load the given track.
	SetZoneContent(ctx context.Context, zoneID, trackID string) error

	Play(ctx context.Context, zoneID string) error
	Pause(ctx context.Context, zoneID string) error
	SkipToNext(ctx context.Context, zoneID string) error
}

// TransientError marks a provider failure worth retrying: network errors,
// timeouts, and provider-side 5xx responses.
type TransientError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// HTTPClient talks JSON over HTTP to the provider API.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient builds a provider client from configuration.
func NewHTTPClient(cfg config.ProviderConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: cfg.URL,
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
	}
}

// nowPlayingResponse is the provider's wire format for zone state.
type nowPlayingResponse struct {
	TrackID    string `json:"track_id"`
	Name       string `json:"name"`
	Artists    string `json:"artists"`
	ImageURL   string `json:"image_url"`
	DurationMS int64  `json:"duration_ms"`
	StartedAt  string `json:"started_at"`
	Playing    bool   `json:"playing"`
}

// GetNowPlaying implements Client.
func (c *HTTPClient) GetNowPlaying(ctx context.Context, zoneID string) (*models.NowPlaying, error) {
	body, status, err := c.do(ctx, "now_playing", http.MethodGet, "/v1/zones/"+zoneID+"/now-playing", nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent || len(body) == 0 {
		return nil, nil
	}

	var resp nowPlayingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("provider now_playing: decode: %w", err)
	}
	if resp.TrackID == "" {
		return nil, nil
	}

	np := &models.NowPlaying{
		TrackID:    resp.TrackID,
		Name:       resp.Name,
		Artists:    resp.Artists,
		ImageURL:   resp.ImageURL,
		DurationMS: resp.DurationMS,
		Playing:    resp.Playing,
	}
	if resp.StartedAt != "" {
		if started, err := time.Parse(time.RFC3339, resp.StartedAt); err == nil {
			np.StartedAt = started
		}
	}
	return np, nil
}

// SetZoneContent implements Client.
func (c *HTTPClient) SetZoneContent(ctx context.Context, zoneID, trackID string) error {
	payload, err := json.Marshal(map[string]string{"track_id": trackID})
	if err != nil {
		return fmt.Errorf("provider set_content: encode: %w", err)
	}
	_, _, err = c.do(ctx, "set_content", http.MethodPut, "/v1/zones/"+zoneID+"/content", payload)
	return err
}

// Play implements Client.
func (c *HTTPClient) Play(ctx context.Context, zoneID string) error {
	_, _, err := c.do(ctx, "play", http.MethodPost, "/v1/zones/"+zoneID+"/play", nil)
	return err
}

// Pause implements Client.
func (c *HTTPClient) Pause(ctx context.Context, zoneID string) error {
	_, _, err := c.do(ctx, "pause", http.MethodPost, "/v1/zones/"+zoneID+"/pause", nil)
	return err
}

// SkipToNext implements Client.
func (c *HTTPClient) SkipToNext(ctx context.Context, zoneID string) error {
	_, _, err := c.do(ctx, "skip", http.MethodPost, "/v1/zones/"+zoneID+"/skip", nil)
	return err
}

// do executes one provider call and applies the error taxonomy.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, payload []byte) ([]byte, int, error) {
	start := time.Now()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("provider %s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	metrics.ProviderCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(op, "error").Inc()
		return nil, 0, &TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(op, "error").Inc()
		return nil, resp.StatusCode, &TransientError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode >= 500:
		metrics.ProviderCalls.WithLabelValues(op, "error").Inc()
		return nil, resp.StatusCode, &TransientError{Op: op, StatusCode: resp.StatusCode, Err: errors.New("provider server error")}
	case resp.StatusCode >= 400:
		metrics.ProviderCalls.WithLabelValues(op, "error").Inc()
		return nil, resp.StatusCode, fmt.Errorf("provider %s: status %d", op, resp.StatusCode)
	}

	metrics.ProviderCalls.WithLabelValues(op, "ok").Inc()
	return data, resp.StatusCode, nil
}
