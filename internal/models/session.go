// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

// Package models defines the domain types shared across Jukewire packages:
// sessions, queue items, votes, playback state, and the API response envelope.
package models

import "time"

// Session is a physical-space listening session: one host, one target
// playback zone, any number of guests.
type Session struct {
	ID        string    `json:"id"`
	HostID    string    `json:"host_id"`
	ZoneID    string    `json:"zone_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Actor identifies who performed a queue mutation. Hosts bypass credit
// costs; guests pay them.
type Actor struct {
	ID      string `json:"id"`
	Display string `json:"display"`
	Host    bool   `json:"host"`
}

// VoteDirection is an up or down reaction on a queue item.
type VoteDirection int

const (
	VoteUp   VoteDirection = 1
	VoteDown VoteDirection = -1
)

// Valid reports whether the direction is one of the two allowed values.
func (d VoteDirection) Valid() bool {
	return d == VoteUp || d == VoteDown
}

// VoteAction is what a vote operation actually did once the store resolved
// it against the actor's existing reaction.
type VoteAction string

const (
	// VoteActionAdded means a new reaction was recorded.
	VoteActionAdded VoteAction = "added"
	// VoteActionRemoved means the actor's existing reaction was withdrawn
	// (casting the opposite direction of a prior vote).
	VoteActionRemoved VoteAction = "removed"
	// VoteActionChanged means an existing reaction switched direction in
	// place. Part of the store contract; the in-memory store resolves
	// opposite-direction votes as removals instead, keeping cost symmetry.
	VoteActionChanged VoteAction = "changed"
	// VoteActionNone means the vote was a duplicate no-op.
	VoteActionNone VoteAction = "none"
)
