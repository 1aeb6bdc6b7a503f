// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

// Package session implements the session lifecycle and the credit-gated
// mutation protocol. Every queue mutation pairs a ledger operation with a
// queue write in a fixed order: adds spend before writing and compensate
// the spend if the write fails; removals write first and refund after, so
// a failed refund can never block the removal itself.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jukewire/jukewire/internal/credits"
	"github.com/jukewire/jukewire/internal/logging"
	"github.com/jukewire/jukewire/internal/metrics"
	"github.com/jukewire/jukewire/internal/models"
	"github.com/jukewire/jukewire/internal/provider"
	"github.com/jukewire/jukewire/internal/queue"
)

var (
	// ErrSessionNotFound is returned for unknown session identifiers.
	ErrSessionNotFound = errors.New("session not found")

	// ErrHostOnly is returned when a guest invokes a host-only operation.
	ErrHostOnly = errors.New("operation restricted to the session host")

	// ErrInvalidVote is returned for a vote direction outside up/down.
	ErrInvalidVote = errors.New("invalid vote direction")
)

// Monitor is the playback-monitor surface the service drives. Every
// mutation ensures monitoring exists and nudges an immediate pass so the
// zone converges without waiting for the next poll.
type Monitor interface {
	Ensure(sessionID, hostID, zoneID string)
	UpdateZone(sessionID, zoneID string)
	RequestImmediate(sessionID string, delay time.Duration)
	Stop(sessionID string)
}

// Broadcaster pushes queue snapshots to connected session clients.
type Broadcaster interface {
	PublishQueue(sessionID string, view *models.QueueView)
}

// Config holds the credit prices for guest mutations.
type Config struct {
	TrackCost int64
	VoteCost  int64
}

// Service orchestrates sessions, the queue store, the credit ledger, and
// the playback monitor. It holds no queue or credit state of its own.
type Service struct {
	store       *queue.Store
	ledger      credits.Ledger
	monitor     Monitor
	broadcaster Broadcaster
	provider    provider.Client
	cfg         Config

	sessions *sessionTable
}

// NewService wires the mutation protocol over its collaborators.
func NewService(store *queue.Store, ledger credits.Ledger, mon Monitor, b Broadcaster, p provider.Client, cfg Config) *Service {
	return &Service{
		store:       store,
		ledger:      ledger,
		monitor:     mon,
		broadcaster: b,
		provider:    p,
		cfg:         cfg,
		sessions:    newSessionTable(),
	}
}

// Create starts a session with the caller as host and begins monitoring
// its zone. The host actor bypasses all credit costs.
func (s *Service) Create(ctx context.Context, hostDisplay, zoneID string) (*models.Session, models.Actor, error) {
	host := models.Actor{
		ID:      uuid.NewString(),
		Display: hostDisplay,
		Host:    true,
	}
	sess := &models.Session{
		ID:        uuid.NewString(),
		HostID:    host.ID,
		ZoneID:    zoneID,
		CreatedAt: time.Now().UTC(),
	}
	s.sessions.put(sess)

	s.monitor.Ensure(sess.ID, sess.HostID, sess.ZoneID)
	metrics.SessionsCreated.Inc()
	logging.Info().
		Str("session", sess.ID).
		Str("zone", zoneID).
		Msg("session created")
	return sess, host, nil
}

// Join admits a guest into an existing session. Reading the guest's
// balance seeds the starting grant for identities the ledger has never
// seen, so the first mutation is never rejected for a missing account.
func (s *Service) Join(ctx context.Context, sessionID, display string) (*models.Session, models.Actor, *models.CreditState, error) {
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		return nil, models.Actor{}, nil, ErrSessionNotFound
	}

	guest := models.Actor{ID: uuid.NewString(), Display: display}
	state, err := s.ledger.Balance(ctx, guest.ID)
	if err != nil {
		return nil, models.Actor{}, nil, err
	}
	logging.Info().
		Str("session", sessionID).
		Str("actor", guest.ID).
		Msg("guest joined session")
	return sess, guest, state, nil
}

// Get returns the session record.
func (s *Service) Get(sessionID string) (*models.Session, error) {
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// End tears a session down: monitoring stops, queue state is dropped.
// Host only. Ledger balances survive the session.
func (s *Service) End(ctx context.Context, sessionID string, actor models.Actor) error {
	if _, ok := s.sessions.get(sessionID); !ok {
		return ErrSessionNotFound
	}
	if !actor.Host {
		return ErrHostOnly
	}
	s.monitor.Stop(sessionID)
	s.store.DropSession(sessionID)
	s.sessions.delete(sessionID)
	logging.Info().Str("session", sessionID).Msg("session ended")
	return nil
}

// SetZone retargets the session to a different playback zone. Host only.
func (s *Service) SetZone(ctx context.Context, sessionID string, actor models.Actor, zoneID string) (*models.Session, error) {
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !actor.Host {
		return nil, ErrHostOnly
	}
	sess = s.sessions.setZone(sessionID, zoneID)
	s.monitor.Ensure(sessionID, sess.HostID, zoneID)
	s.monitor.UpdateZone(sessionID, zoneID)
	return sess, nil
}

// Queue returns the current ordered queue view.
func (s *Service) Queue(sessionID string) (*models.QueueView, error) {
	if _, ok := s.sessions.get(sessionID); !ok {
		return nil, ErrSessionNotFound
	}
	return s.store.GetQueueWithNext(sessionID), nil
}

// Balance reports the acting identity's credit snapshot.
func (s *Service) Balance(ctx context.Context, actor models.Actor) (*models.CreditState, error) {
	return s.ledger.Balance(ctx, actor.ID)
}

// AddTrack queues a track. Guests spend the track cost before the queue
// write; if the write then fails the spend is compensated with an equal
// credit. A failed compensation is counted and logged, never retried
// inline, so the caller still sees the original queue error.
func (s *Service) AddTrack(ctx context.Context, sessionID string, actor models.Actor, in queue.AddInput) (*models.MutationResult, error) {
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.monitor.Ensure(sessionID, sess.HostID, sess.ZoneID)

	var creditState *models.CreditState
	if !actor.Host && s.cfg.TrackCost > 0 {
		state, err := s.ledger.Spend(ctx, actor.ID, s.cfg.TrackCost)
		if err != nil {
			observeSpend(err)
			return nil, err
		}
		metrics.CreditSpends.WithLabelValues("ok").Inc()
		creditState = state
	}

	item, err := s.store.AddToQueue(sessionID, in, actor)
	if err != nil {
		if creditState != nil {
			creditState = s.compensate(ctx, actor.ID, s.cfg.TrackCost, sessionID)
		}
		return nil, err
	}

	view := s.afterMutation(sessionID)
	logging.Info().
		Str("session", sessionID).
		Str("track", in.TrackID).
		Str("actor", actor.ID).
		Msg("track queued")
	return &models.MutationResult{Item: item, View: view, Credits: creditState}, nil
}

// CastVote applies an up or down reaction through the two-phase intent:
// the store first resolves what the vote would do, the ledger operation
// matching that outcome runs, and only then is the intent committed.
//   - added: spend the vote cost, then commit; a stale commit refunds it
//   - removed: commit the withdrawal, then refund the original cost
//   - none (duplicate): nothing moves
func (s *Service) CastVote(ctx context.Context, sessionID, itemID string, actor models.Actor, direction models.VoteDirection) (*models.MutationResult, error) {
	if !direction.Valid() {
		return nil, ErrInvalidVote
	}
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.monitor.Ensure(sessionID, sess.HostID, sess.ZoneID)

	intent, err := s.store.BeginVote(sessionID, itemID, actor, direction)
	if err != nil {
		return nil, err
	}

	charged := !actor.Host && s.cfg.VoteCost > 0
	var creditState *models.CreditState

	if intent.Action == models.VoteActionAdded && charged {
		state, err := s.ledger.Spend(ctx, actor.ID, s.cfg.VoteCost)
		if err != nil {
			observeSpend(err)
			s.store.Abort(intent)
			return nil, err
		}
		metrics.CreditSpends.WithLabelValues("ok").Inc()
		creditState = state
	}

	item, err := s.store.Commit(intent)
	if err != nil {
		if intent.Action == models.VoteActionAdded && charged {
			s.compensate(ctx, actor.ID, s.cfg.VoteCost, sessionID)
		}
		return nil, err
	}

	if intent.Action == models.VoteActionRemoved && charged {
		state, rerr := s.ledger.Credit(ctx, actor.ID, s.cfg.VoteCost)
		if rerr != nil {
			// The withdrawal stands; the refund is counted as lost.
			metrics.CompensationFailures.Inc()
			logging.Error().Err(rerr).
				Str("session", sessionID).
				Str("actor", actor.ID).
				Msg("vote refund failed")
		} else {
			metrics.CreditRefunds.WithLabelValues("vote_removed").Inc()
			creditState = state
		}
	}

	view := s.afterMutation(sessionID)
	return &models.MutationResult{Item: item, Action: intent.Action, View: view, Credits: creditState}, nil
}

// RemoveTrack deletes an unplayed item and refunds the adder's track cost
// when the adder was a paying guest. The removal is written first: a
// failed refund is counted and logged but never unwinds the removal.
func (s *Service) RemoveTrack(ctx context.Context, sessionID, itemID string, actor models.Actor) (*models.MutationResult, error) {
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.monitor.Ensure(sessionID, sess.HostID, sess.ZoneID)

	removed, err := s.store.RemoveFromQueue(sessionID, itemID, actor)
	if err != nil {
		return nil, err
	}

	var creditState *models.CreditState
	if !removed.AddedBy.Host && s.cfg.TrackCost > 0 {
		state, rerr := s.ledger.Credit(ctx, removed.AddedBy.ID, s.cfg.TrackCost)
		if rerr != nil {
			metrics.CompensationFailures.Inc()
			logging.Error().Err(rerr).
				Str("session", sessionID).
				Str("actor", removed.AddedBy.ID).
				Msg("removal refund failed")
		} else {
			metrics.CreditRefunds.WithLabelValues("track_removed").Inc()
			if removed.AddedBy.ID == actor.ID {
				creditState = state
			}
		}
	}

	view := s.afterMutation(sessionID)
	logging.Info().
		Str("session", sessionID).
		Str("item", itemID).
		Str("actor", actor.ID).
		Msg("track removed from queue")
	return &models.MutationResult{Item: removed, View: view, Credits: creditState}, nil
}

// Play resumes zone playback. Host only.
func (s *Service) Play(ctx context.Context, sessionID string, actor models.Actor) error {
	return s.transport(ctx, sessionID, actor, s.provider.Play)
}

// Pause halts zone playback. Host only.
func (s *Service) Pause(ctx context.Context, sessionID string, actor models.Actor) error {
	return s.transport(ctx, sessionID, actor, s.provider.Pause)
}

// Skip advances the zone past the current track. Host only.
func (s *Service) Skip(ctx context.Context, sessionID string, actor models.Actor) error {
	return s.transport(ctx, sessionID, actor, s.provider.SkipToNext)
}

func (s *Service) transport(ctx context.Context, sessionID string, actor models.Actor, op func(context.Context, string) error) error {
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if !actor.Host {
		return ErrHostOnly
	}
	if sess.ZoneID == "" {
		return errors.New("session has no playback zone configured")
	}
	if err := op(ctx, sess.ZoneID); err != nil {
		return err
	}
	s.monitor.RequestImmediate(sessionID, 0)
	return nil
}

// afterMutation refreshes the view, fans it out, and nudges the monitor.
func (s *Service) afterMutation(sessionID string) *models.QueueView {
	view := s.store.GetQueueWithNext(sessionID)
	s.broadcaster.PublishQueue(sessionID, view)
	s.monitor.RequestImmediate(sessionID, 0)
	return view
}

// compensate reverses a spend whose paired queue write failed. Returns
// the post-refund snapshot, or nil when the refund itself failed.
func (s *Service) compensate(ctx context.Context, identity string, amount int64, sessionID string) *models.CreditState {
	state, err := s.ledger.Credit(ctx, identity, amount)
	if err != nil {
		metrics.CompensationFailures.Inc()
		logging.Error().Err(err).
			Str("session", sessionID).
			Str("actor", identity).
			Int64("amount", amount).
			Msg("compensating credit failed, balance is short")
		return nil
	}
	metrics.CreditRefunds.WithLabelValues("compensation").Inc()
	return state
}

func observeSpend(err error) {
	if errors.Is(err, credits.ErrInsufficientCredits) {
		metrics.CreditSpends.WithLabelValues("insufficient").Inc()
		return
	}
	metrics.CreditSpends.WithLabelValues("error").Inc()
}
