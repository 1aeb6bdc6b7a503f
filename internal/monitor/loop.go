// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

package monitor

import (
	"context"
	"time"

	"github.com/jukewire/jukewire/internal/logging"
	"github.com/jukewire/jukewire/internal/metrics"
	"github.com/jukewire/jukewire/internal/models"
)

// unknownRequester is displayed when no queue entry matches the observed
// track (e.g. content assigned outside the queue).
const unknownRequester = "unknown"

// passState is the slice of monitor state a pass owns for its duration.
// Only one pass runs per session, so these fields need no further locking
// between snapshot and writeback.
type passState struct {
	zoneID   string
	believed string
	pending  string
	issuedAt time.Time
}

// runPass is the timer callback: it claims the session's in-progress flag,
// executes one reconciliation pass, writes the cursor state back, and
// re-arms the timer. If the monitor was stopped mid-pass the results are
// discarded and nothing is resurrected.
func (r *Registry) runPass(sessionID string) {
	r.mu.Lock()
	m, ok := r.monitors[sessionID]
	if !ok || m.inProgress {
		r.mu.Unlock()
		return
	}
	m.inProgress = true
	m.timer = nil
	snap := passState{
		zoneID:   m.zoneID,
		believed: m.believedCurrent,
		pending:  m.pendingTrack,
		issuedAt: m.pendingIssuedAt,
	}
	ctx := r.baseCtx
	r.mu.Unlock()

	start := r.clock()
	delay := r.cfg.PollInterval
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Error().Interface("panic", rec).Str("session", sessionID).Msg("reconciliation pass panicked")
				metrics.ReconcilePasses.WithLabelValues("panic").Inc()
			}
		}()
		delay = r.reconcile(ctx, sessionID, &snap)
	}()
	metrics.ReconcileDuration.Observe(r.clock().Sub(start).Seconds())

	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok = r.monitors[sessionID]
	if !ok {
		// Stopped while running; complete as a no-op.
		return
	}
	m.inProgress = false
	m.believedCurrent = snap.believed
	m.pendingTrack = snap.pending
	m.pendingIssuedAt = snap.issuedAt
	r.schedule(m, delay)
}

// reconcile executes one synchronization pass against the zone and the
// queue, mutating s as its working cursor, and returns the delay until the
// next pass. Errors never propagate: a failed pass logs, keeps its state,
// and retries on the returned delay.
func (r *Registry) reconcile(ctx context.Context, sessionID string, s *passState) time.Duration {
	log := logging.With().Str("session", sessionID).Str("zone", s.zoneID).Logger()

	if s.zoneID == "" {
		log.Debug().Msg("no zone configured, idling")
		metrics.ReconcilePasses.WithLabelValues("no_zone").Inc()
		return r.cfg.PollInterval
	}

	now := r.clock()

	np, err := r.provider.GetNowPlaying(ctx, s.zoneID)
	if err != nil {
		log.Warn().Err(err).Msg("now-playing query failed, retrying next tick")
		metrics.ReconcilePasses.WithLabelValues("provider_error").Inc()
		return r.cfg.PollInterval
	}

	view := r.store.GetQueueWithNext(sessionID)

	observed := ""
	if np != nil {
		observed = np.TrackID
	}

	// Assignment confirmation: the zone picked up what we asked for.
	prevBelieved := s.believed
	if s.pending != "" && s.pending == observed {
		log.Debug().Str("track", observed).Msg("assignment confirmed")
		s.pending = ""
		s.issuedAt = time.Time{}
	}

	// Transition detection: the previously playing track ended or changed.
	// A first observation (no prior belief) is adopted, not treated as a
	// transition.
	if prevBelieved != "" && prevBelieved != observed {
		if r.store.MarkTrackAsPlayed(sessionID, prevBelieved) {
			metrics.TracksMarkedPlayed.Inc()
			log.Info().Str("track", prevBelieved).Msg("track consumed")
			view = r.store.GetQueueWithNext(sessionID)
		}
	}
	s.believed = observed

	// Stuck-assignment retry: the zone never picked up the assignment.
	// Unbounded by design; the retry age in the log is the operator signal.
	if s.pending != "" && s.pending != observed && now.Sub(s.issuedAt) > r.cfg.AssignmentTimeout {
		log.Warn().
			Str("track", s.pending).
			Dur("outstanding", now.Sub(s.issuedAt)).
			Msg("assignment unconfirmed, re-issuing")
		metrics.AssignmentsIssued.WithLabelValues("retry").Inc()
		if err := r.assignAndPlay(ctx, s.zoneID, s.pending); err != nil {
			log.Warn().Err(err).Msg("assignment retry failed")
		}
		s.issuedAt = now
	}

	// Forward assignment, or fallback content when the queue is drained.
	switch {
	case view.NextUp != nil && view.NextUp.TrackID != observed && view.NextUp.TrackID != s.pending:
		track := view.NextUp.TrackID
		log.Info().Str("track", track).Msg("assigning next-up track")
		metrics.AssignmentsIssued.WithLabelValues("forward").Inc()
		if err := r.assignAndPlay(ctx, s.zoneID, track); err != nil {
			log.Warn().Err(err).Msg("forward assignment failed, retrying next tick")
		} else {
			s.pending = track
			s.issuedAt = now
		}
	case view.NextUp == nil && observed == "" && r.cfg.DefaultContentID != "" && s.pending != r.cfg.DefaultContentID:
		log.Info().Str("content", r.cfg.DefaultContentID).Msg("assigning fallback content")
		metrics.AssignmentsIssued.WithLabelValues("fallback").Inc()
		if err := r.assignAndPlay(ctx, s.zoneID, r.cfg.DefaultContentID); err != nil {
			log.Warn().Err(err).Msg("fallback assignment failed, retrying next tick")
		} else {
			s.pending = r.cfg.DefaultContentID
			s.issuedAt = now
		}
	}

	// Resolve who queued the observed track for display.
	requester := unknownRequester
	if observed != "" {
		if item := r.store.GetMostRecentQueueItemForTrack(sessionID, observed); item != nil {
			requester = item.AddedBy.Display
		}
	}

	r.broadcaster.PublishQueue(sessionID, view)
	r.broadcaster.PublishPlayback(sessionID, &models.PlaybackState{Playback: np, Requester: requester})

	metrics.ReconcilePasses.WithLabelValues("ok").Inc()
	return r.nextDelay(np, now)
}

// assignAndPlay loads content onto the zone and starts playback.
func (r *Registry) assignAndPlay(ctx context.Context, zoneID, trackID string) error {
	if err := r.provider.SetZoneContent(ctx, zoneID, trackID); err != nil {
		return err
	}
	return r.provider.Play(ctx, zoneID)
}

// nextDelay computes the adaptive re-arm delay. While a track with a known
// duration is actively playing, the next pass is aimed just past the end
// of the track (remaining + buffer), clamped to [PollFloor, PollInterval].
// Anything else polls at the default interval.
func (r *Registry) nextDelay(np *models.NowPlaying, now time.Time) time.Duration {
	if np == nil || !np.Playing || np.DurationMS <= 0 {
		return r.cfg.PollInterval
	}

	remaining := time.Duration(np.DurationMS-np.ProgressMS(now)) * time.Millisecond
	delay := remaining + r.cfg.PollBuffer
	if delay < r.cfg.PollFloor {
		delay = r.cfg.PollFloor
	}
	if delay > r.cfg.PollInterval {
		delay = r.cfg.PollInterval
	}
	return delay
}
