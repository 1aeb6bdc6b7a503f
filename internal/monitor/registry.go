// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

// Package monitor keeps each session's playback zone synchronized with its
// queue. A Registry owns one reconciliation state per active session; a
// single-shot, cancel-and-replace timer drives reconciliation passes, and
// an in-progress flag guarantees a session never runs two passes at once.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jukewire/jukewire/internal/logging"
	"github.com/jukewire/jukewire/internal/metrics"
	"github.com/jukewire/jukewire/internal/models"
	"github.com/jukewire/jukewire/internal/provider"
)

// QueueStore is the queue surface the monitor consumes.
type QueueStore interface {
	GetQueueWithNext(sessionID string) *models.QueueView
	MarkTrackAsPlayed(sessionID, trackID string) bool
	GetMostRecentQueueItemForTrack(sessionID, trackID string) *models.QueueItem
}

// Broadcaster pushes reconciled state to connected clients.
type Broadcaster interface {
	PublishQueue(sessionID string, view *models.QueueView)
	PublishPlayback(sessionID string, state *models.PlaybackState)
}

// Config holds the reconciliation tuning knobs.
type Config struct {
	// PollInterval is the default delay between passes, and the ceiling
	// for the adaptive delay.
	PollInterval time.Duration
	// PollFloor is the minimum delay between passes.
	PollFloor time.Duration
	// PollBuffer is added to a track's remaining time so the next pass
	// lands just after the track ends.
	PollBuffer time.Duration
	// AssignmentTimeout is how long an unconfirmed assignment may stay
	// outstanding before being re-issued. Retries are unbounded.
	AssignmentTimeout time.Duration
	// DefaultContentID, when set, is assigned to a zone that has nothing
	// playing and an empty queue, so the room never goes silent.
	DefaultContentID string
}

// state is one session's reconciliation record. The timer and the
// in-progress flag are mutually exclusive: a scheduled tick clears the
// timer before running, and the pass re-arms it when it finishes.
type state struct {
	sessionID string
	hostID    string
	zoneID    string

	timer      *time.Timer
	inProgress bool

	// believedCurrent is the track last observed playing, used to detect
	// transitions. Empty until the first observation.
	believedCurrent string

	// pendingTrack/pendingIssuedAt form the in-flight assignment cursor;
	// both set or both zero.
	pendingTrack    string
	pendingIssuedAt time.Time
}

// Registry is the single mutation point for session monitor state.
// Entries are inserted by Ensure and removed by Stop; no other code path
// touches the map.
type Registry struct {
	mu       sync.Mutex
	monitors map[string]*state

	provider    provider.Client
	store       QueueStore
	broadcaster Broadcaster
	cfg         Config

	// baseCtx is the lifetime context for provider calls made by passes.
	baseCtx context.Context

	// clock and newTimer are injection points for tests.
	clock    func() time.Time
	newTimer func(d time.Duration, fn func()) *time.Timer
}

// NewRegistry creates an empty monitor registry.
func NewRegistry(p provider.Client, store QueueStore, b Broadcaster, cfg Config) *Registry {
	return &Registry{
		monitors:    make(map[string]*state),
		provider:    p,
		store:       store,
		broadcaster: b,
		cfg:         cfg,
		baseCtx:     context.Background(),
		clock:       time.Now,
		newTimer:    time.AfterFunc,
	}
}

// Ensure creates monitoring state for the session, scheduling an immediate
// pass. If state already exists the host and zone are updated idempotently
// without disturbing an in-flight or scheduled pass; if nothing is pending
// or running, an immediate pass is scheduled. Safe to call on every
// inbound request that touches a session.
func (r *Registry) Ensure(sessionID, hostID, zoneID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.monitors[sessionID]
	if !ok {
		m = &state{sessionID: sessionID, hostID: hostID, zoneID: zoneID}
		r.monitors[sessionID] = m
		metrics.ActiveMonitors.Inc()
		logging.Info().Str("session", sessionID).Str("zone", zoneID).Msg("playback monitor started")
		r.schedule(m, 0)
		return
	}

	m.hostID = hostID
	if zoneID != "" {
		m.zoneID = zoneID
	}
	if m.timer == nil && !m.inProgress {
		r.schedule(m, 0)
	}
}

// UpdateZone overwrites the session's target zone and requests an
// immediate reconciliation. No-op when the session is not monitored.
func (r *Registry) UpdateZone(sessionID, zoneID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.monitors[sessionID]
	if !ok {
		return
	}
	m.zoneID = zoneID
	logging.Info().Str("session", sessionID).Str("zone", zoneID).Msg("monitor zone updated")
	if !m.inProgress {
		r.schedule(m, 0)
	}
}

// RequestImmediate re-arms the session's timer to fire after delay. A pass
// already running absorbs the request through its own re-arm, so this is a
// no-op while in progress. No-op when the session is not monitored.
func (r *Registry) RequestImmediate(sessionID string, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.monitors[sessionID]
	if !ok || m.inProgress {
		return
	}
	r.schedule(m, delay)
}

// Stop cancels the session's scheduled timer and discards its state. A
// pass already running completes against the missing state as a no-op and
// does not resurrect it.
func (r *Registry) Stop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.monitors[sessionID]
	if !ok {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	delete(r.monitors, sessionID)
	metrics.ActiveMonitors.Dec()
	logging.Info().Str("session", sessionID).Msg("playback monitor stopped")
}

// Monitored reports whether the session currently has monitoring state.
func (r *Registry) Monitored(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.monitors[sessionID]
	return ok
}

// Serve implements suture.Service: the registry itself is passive (timers
// do the work), so Serve pins the lifetime context and tears all monitors
// down when it is canceled.
func (r *Registry) Serve(ctx context.Context) error {
	r.mu.Lock()
	r.baseCtx = ctx
	r.mu.Unlock()

	<-ctx.Done()
	r.stopAll()
	return ctx.Err()
}

func (r *Registry) stopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.monitors {
		if m.timer != nil {
			m.timer.Stop()
		}
		delete(r.monitors, id)
		metrics.ActiveMonitors.Dec()
	}
}

// schedule arms the session's single-shot timer, replacing any pending
// one. Must be called with mu held.
func (r *Registry) schedule(m *state, delay time.Duration) {
	if m.timer != nil {
		m.timer.Stop()
	}
	sessionID := m.sessionID
	m.timer = r.newTimer(delay, func() {
		r.runPass(sessionID)
	})
}
