// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

package models

import "time"

// QueueItem is a single queued track with its vote tally.
type QueueItem struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"session_id"`
	TrackID    string     `json:"track_id"`
	Name       string     `json:"name"`
	Artists    string     `json:"artists"`
	Album      string     `json:"album,omitempty"`
	ImageURL   string     `json:"image_url,omitempty"`
	DurationMS int64      `json:"duration_ms"`
	AddedBy    Actor      `json:"added_by"`
	AddedAt    time.Time  `json:"added_at"`
	UpVotes    int        `json:"up_votes"`
	DownVotes  int        `json:"down_votes"`
	Played     bool       `json:"played"`
	PlayedAt   *time.Time `json:"played_at,omitempty"`
}

// Score is the net vote tally used for queue ordering.
func (q *QueueItem) Score() int {
	return q.UpVotes - q.DownVotes
}

// QueueView is the ordered queue snapshot plus the top-ranked unplayed
// track, as returned by the queue store and broadcast to clients.
type QueueView struct {
	Queue  []*QueueItem `json:"queue"`
	NextUp *QueueItem   `json:"next_up"`
}

// NowPlaying is the provider's report of what a zone is currently playing.
type NowPlaying struct {
	TrackID    string    `json:"track_id"`
	Name       string    `json:"name,omitempty"`
	Artists    string    `json:"artists,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
	Playing    bool      `json:"playing"`
}

// ProgressMS reports elapsed playback time in milliseconds at the given
// instant. Clamped to [0, DurationMS] when the duration is known; a start
// time in the future (clock skew) reports zero.
func (n *NowPlaying) ProgressMS(now time.Time) int64 {
	if n.StartedAt.IsZero() {
		return 0
	}
	elapsed := now.Sub(n.StartedAt).Milliseconds()
	if elapsed < 0 {
		return 0
	}
	if n.DurationMS > 0 && elapsed > n.DurationMS {
		return n.DurationMS
	}
	return elapsed
}

// PlaybackState pairs the zone's now-playing report with the display name
// of whoever queued the observed track.
type PlaybackState struct {
	Playback  *NowPlaying `json:"playback"`
	Requester string      `json:"requester"`
}

// CreditState is the ledger's balance snapshot after a spend or credit.
// Relayed to the acting identity only; never interpreted by the core.
type CreditState struct {
	Identity  string    `json:"identity"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}
