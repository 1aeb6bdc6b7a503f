// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

package models

import (
	"testing"
	"time"
)

func TestNowPlayingProgressMS(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		np       NowPlaying
		expected int64
	}{
		{
			name:     "mid track",
			np:       NowPlaying{DurationMS: 180000, StartedAt: now.Add(-30 * time.Second)},
			expected: 30000,
		},
		{
			name:     "clamped to duration",
			np:       NowPlaying{DurationMS: 180000, StartedAt: now.Add(-10 * time.Minute)},
			expected: 180000,
		},
		{
			name:     "future start reports zero",
			np:       NowPlaying{DurationMS: 180000, StartedAt: now.Add(5 * time.Second)},
			expected: 0,
		},
		{
			name:     "zero start time reports zero",
			np:       NowPlaying{DurationMS: 180000},
			expected: 0,
		},
		{
			name:     "unknown duration not clamped",
			np:       NowPlaying{DurationMS: 0, StartedAt: now.Add(-90 * time.Second)},
			expected: 90000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.np.ProgressMS(now); got != tt.expected {
				t.Errorf("ProgressMS() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestQueueItemScore(t *testing.T) {
	item := &QueueItem{UpVotes: 5, DownVotes: 2}
	if got := item.Score(); got != 3 {
		t.Errorf("Score() = %d, want 3", got)
	}
}

func TestVoteDirectionValid(t *testing.T) {
	if !VoteUp.Valid() || !VoteDown.Valid() {
		t.Error("expected up and down directions to be valid")
	}
	if VoteDirection(0).Valid() || VoteDirection(2).Valid() {
		t.Error("expected out-of-range directions to be invalid")
	}
}
