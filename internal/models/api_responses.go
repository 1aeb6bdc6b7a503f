// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

package models

import "time"

// APIResponse is the standard envelope for all JSON API responses.
type APIResponse struct {
	Status   string      `json:"status"` // "success" or "error"
	Data     interface{} `json:"data,omitempty"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries per-response bookkeeping.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is a machine-readable error payload. Code values are stable
// identifiers clients can branch on (e.g. INSUFFICIENT_CREDITS,
// DUPLICATE_TRACK, NOT_AUTHORIZED).
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MutationResult is returned by queue-mutating endpoints: the refreshed
// queue view plus, when the acting identity paid or was refunded credits,
// that identity's balance snapshot.
type MutationResult struct {
	Item    *QueueItem   `json:"item,omitempty"`
	Action  VoteAction   `json:"action,omitempty"`
	View    *QueueView   `json:"view"`
	Credits *CreditState `json:"credits,omitempty"`
}
