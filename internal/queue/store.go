// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

// Package queue implements the per-session track queue: vote-ranked
// ordering, idempotent played-track retirement, and a two-phase vote
// protocol that lets the caller interleave a ledger charge between vote
// resolution and commit.
package queue

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jukewire/jukewire/internal/models"
)

var (
	// ErrDuplicateTrack is returned when the track is already queued and
	// unplayed in the session.
	ErrDuplicateTrack = errors.New("track already queued")

	// ErrNotAuthorized is returned when the actor may not remove the item.
	ErrNotAuthorized = errors.New("actor not authorized for this item")

	// ErrItemNotFound is returned for unknown queue item identifiers.
	ErrItemNotFound = errors.New("queue item not found")

	// ErrIntentStale is returned by Commit when the item's reaction state
	// changed between BeginVote and Commit.
	ErrIntentStale = errors.New("vote intent is stale")
)

// AddInput carries the track metadata for an add operation.
type AddInput struct {
	TrackID    string
	Name       string
	Artists    string
	Album      string
	ImageURL   string
	DurationMS int64
}

// Store holds every session's queue. All methods are safe for concurrent
// use; a single mutex suffices because operations are in-memory and short.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*sessionQueue
}

type sessionQueue struct {
	items []*models.QueueItem
	// reactions maps item ID -> actor ID -> direction.
	reactions map[string]map[string]models.VoteDirection
}

// NewStore creates an empty queue store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*sessionQueue)}
}

// AddToQueue appends a track for the session. Fails with ErrDuplicateTrack
// when the track is already queued and not yet played.
func (s *Store) AddToQueue(sessionID string, in AddInput, actor models.Actor) (*models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sq := s.session(sessionID)
	for _, item := range sq.items {
		if item.TrackID == in.TrackID && !item.Played {
			return nil, ErrDuplicateTrack
		}
	}

	item := &models.QueueItem{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		TrackID:    in.TrackID,
		Name:       in.Name,
		Artists:    in.Artists,
		Album:      in.Album,
		ImageURL:   in.ImageURL,
		DurationMS: in.DurationMS,
		AddedBy:    actor,
		AddedAt:    time.Now().UTC(),
	}
	sq.items = append(sq.items, item)
	return cloneItem(item), nil
}

// RemoveFromQueue deletes an unplayed item. Hosts may remove anything;
// guests only their own additions. Returns the removed item so the caller
// can decide on a refund.
func (s *Store) RemoveFromQueue(sessionID, itemID string, actor models.Actor) (*models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sq, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrItemNotFound
	}

	for i, item := range sq.items {
		if item.ID != itemID || item.Played {
			continue
		}
		if !actor.Host && actor.ID != item.AddedBy.ID {
			return nil, ErrNotAuthorized
		}
		sq.items = append(sq.items[:i], sq.items[i+1:]...)
		delete(sq.reactions, itemID)
		return cloneItem(item), nil
	}
	return nil, ErrItemNotFound
}

// GetQueueWithNext returns the ordered unplayed queue and the top-ranked
// item. Ordering is net vote score descending, then add time ascending.
func (s *Store) GetQueueWithNext(sessionID string) *models.QueueView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := &models.QueueView{Queue: []*models.QueueItem{}}
	sq, ok := s.sessions[sessionID]
	if !ok {
		return view
	}

	for _, item := range sq.items {
		if !item.Played {
			view.Queue = append(view.Queue, cloneItem(item))
		}
	}
	sort.SliceStable(view.Queue, func(i, j int) bool {
		if view.Queue[i].Score() != view.Queue[j].Score() {
			return view.Queue[i].Score() > view.Queue[j].Score()
		}
		return view.Queue[i].AddedAt.Before(view.Queue[j].AddedAt)
	})

	if len(view.Queue) > 0 {
		view.NextUp = view.Queue[0]
	}
	return view
}

// MarkTrackAsPlayed retires the oldest unplayed item for the track.
// Returns true when something changed; marking an unknown or already
// played track is a no-op.
func (s *Store) MarkTrackAsPlayed(sessionID, trackID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sq, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	for _, item := range sq.items {
		if item.TrackID == trackID && !item.Played {
			now := time.Now().UTC()
			item.Played = true
			item.PlayedAt = &now
			return true
		}
	}
	return false
}

// GetMostRecentQueueItemForTrack returns the latest-added item (played or
// not) matching the track, or nil when the track was never queued.
func (s *Store) GetMostRecentQueueItemForTrack(sessionID, trackID string) *models.QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sq, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	var latest *models.QueueItem
	for _, item := range sq.items {
		if item.TrackID != trackID {
			continue
		}
		if latest == nil || item.AddedAt.After(latest.AddedAt) {
			latest = item
		}
	}
	if latest == nil {
		return nil
	}
	return cloneItem(latest)
}

// DropSession discards all queue state for a session.
func (s *Store) DropSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// session returns the session's queue, creating it on first use.
// Must be called with mu held.
func (s *Store) session(sessionID string) *sessionQueue {
	sq, ok := s.sessions[sessionID]
	if !ok {
		sq = &sessionQueue{reactions: make(map[string]map[string]models.VoteDirection)}
		s.sessions[sessionID] = sq
	}
	return sq
}

func cloneItem(item *models.QueueItem) *models.QueueItem {
	clone := *item
	if item.PlayedAt != nil {
		at := *item.PlayedAt
		clone.PlayedAt = &at
	}
	return &clone
}
