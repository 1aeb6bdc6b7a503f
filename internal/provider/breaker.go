// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

package provider

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/jukewire/jukewire/internal/logging"
	"github.com/jukewire/jukewire/internal/metrics"
	"github.com/jukewire/jukewire/internal/models"
)

// BreakerClient wraps a provider Client with a circuit breaker so a
// provider outage cannot pile up blocked reconciliation passes.
//
// The breaker uses real time for its interval and timeout decisions; tests
// should exercise the wrapped client directly rather than waiting out the
// breaker.
type BreakerClient struct {
	inner Client
	cb    *gobreaker.CircuitBreaker[any]
}

// NewBreakerClient wraps inner with production breaker settings:
// opens after a 60% failure rate over at least 10 requests, allows 3
// trial requests half-open, recovers after 1 minute.
func NewBreakerClient(inner Client) *BreakerClient {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "zone-provider",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("provider circuit breaker opening")
				return true
			}
			return false
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("provider circuit breaker state change")
			metrics.BreakerState.Set(stateToFloat(to))
		},
	})

	return &BreakerClient{inner: inner, cb: cb}
}

// execute runs fn through the breaker, mapping breaker rejections to
// transient errors so the monitor treats an open circuit like any other
// retryable provider failure.
func (b *BreakerClient) execute(op string, fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &TransientError{Op: op, Err: err}
		}
		return nil, err
	}
	return result, nil
}

// GetNowPlaying implements Client.
func (b *BreakerClient) GetNowPlaying(ctx context.Context, zoneID string) (*models.NowPlaying, error) {
	result, err := b.execute("now_playing", func() (any, error) {
		return b.inner.GetNowPlaying(ctx, zoneID)
	})
	if err != nil {
		return nil, err
	}
	np, _ := result.(*models.NowPlaying)
	return np, nil
}

// SetZoneContent implements Client.
func (b *BreakerClient) SetZoneContent(ctx context.Context, zoneID, trackID string) error {
	_, err := b.execute("set_content", func() (any, error) {
		return nil, b.inner.SetZoneContent(ctx, zoneID, trackID)
	})
	return err
}

// Play implements Client.
func (b *BreakerClient) Play(ctx context.Context, zoneID string) error {
	_, err := b.execute("play", func() (any, error) {
		return nil, b.inner.Play(ctx, zoneID)
	})
	return err
}

// Pause implements Client.
func (b *BreakerClient) Pause(ctx context.Context, zoneID string) error {
	_, err := b.execute("pause", func() (any, error) {
		return nil, b.inner.Pause(ctx, zoneID)
	})
	return err
}

// SkipToNext implements Client.
func (b *BreakerClient) SkipToNext(ctx context.Context, zoneID string) error {
	_, err := b.execute("skip", func() (any, error) {
		return nil, b.inner.SkipToNext(ctx, zoneID)
	})
	return err
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
