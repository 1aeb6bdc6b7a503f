// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

package queue

import (
	"github.com/jukewire/jukewire/internal/models"
)

// VoteIntent is the decided-but-uncommitted outcome of a vote. BeginVote
// resolves what the vote would do; the caller performs its ledger
// operation, then either Commit (apply) or Abort (discard). Nothing is
// reserved between the two phases: Commit revalidates the item's reaction
// state and fails with ErrIntentStale if a concurrent vote changed it.
type VoteIntent struct {
	SessionID string
	ItemID    string
	Actor     models.Actor
	Direction models.VoteDirection

	// Action is what committing this intent will do.
	Action models.VoteAction

	// prior is the actor's reaction at resolution time (0 = none).
	prior models.VoteDirection
}

// BeginVote resolves a vote against the actor's existing reaction:
//   - no prior reaction: the vote would be added
//   - prior reaction in the same direction: duplicate, no-op
//   - prior reaction in the opposite direction: the prior reaction would
//     be removed (withdrawn), mirroring the cost symmetry of add/remove
func (s *Store) BeginVote(sessionID, itemID string, actor models.Actor, direction models.VoteDirection) (*VoteIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sq, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrItemNotFound
	}
	item := findUnplayed(sq, itemID)
	if item == nil {
		return nil, ErrItemNotFound
	}

	intent := &VoteIntent{
		SessionID: sessionID,
		ItemID:    itemID,
		Actor:     actor,
		Direction: direction,
		prior:     sq.reactions[itemID][actor.ID],
	}

	switch intent.prior {
	case 0:
		intent.Action = models.VoteActionAdded
	case direction:
		intent.Action = models.VoteActionNone
	default:
		intent.Action = models.VoteActionRemoved
	}
	return intent, nil
}

// Commit applies a resolved intent. Returns the updated item, or
// ErrIntentStale when the actor's reaction changed since BeginVote.
func (s *Store) Commit(intent *VoteIntent) (*models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sq, ok := s.sessions[intent.SessionID]
	if !ok {
		return nil, ErrItemNotFound
	}
	item := findUnplayed(sq, intent.ItemID)
	if item == nil {
		return nil, ErrItemNotFound
	}
	if sq.reactions[intent.ItemID][intent.Actor.ID] != intent.prior {
		return nil, ErrIntentStale
	}

	switch intent.Action {
	case models.VoteActionAdded:
		if sq.reactions[intent.ItemID] == nil {
			sq.reactions[intent.ItemID] = make(map[string]models.VoteDirection)
		}
		sq.reactions[intent.ItemID][intent.Actor.ID] = intent.Direction
		applyTally(item, intent.Direction, +1)
	case models.VoteActionRemoved:
		delete(sq.reactions[intent.ItemID], intent.Actor.ID)
		applyTally(item, intent.prior, -1)
	case models.VoteActionNone, models.VoteActionChanged:
		// Duplicate votes commit as no-ops.
	}
	return cloneItem(item), nil
}

// Abort discards an intent. Present for transaction-boundary symmetry;
// nothing is held between phases, so there is nothing to release.
func (s *Store) Abort(intent *VoteIntent) {}

func findUnplayed(sq *sessionQueue, itemID string) *models.QueueItem {
	for _, item := range sq.items {
		if item.ID == itemID && !item.Played {
			return item
		}
	}
	return nil
}

func applyTally(item *models.QueueItem, direction models.VoteDirection, delta int) {
	if direction == models.VoteUp {
		item.UpVotes += delta
	} else {
		item.DownVotes += delta
	}
}
