// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

package session

import (
	"sync"

	"github.com/jukewire/jukewire/internal/models"
)

// sessionTable is the in-memory registry of live sessions. Reads return
// copies so callers never share the stored record.
type sessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func newSessionTable() *sessionTable {
	return &sessionTable{sessions: make(map[string]*models.Session)}
}

func (t *sessionTable) put(sess *models.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stored := *sess
	t.sessions[sess.ID] = &stored
}

func (t *sessionTable) get(id string) (*models.Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sess, ok := t.sessions[id]
	if !ok {
		return nil, false
	}
	copied := *sess
	return &copied, true
}

func (t *sessionTable) setZone(id, zoneID string) *models.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[id]
	if !ok {
		return nil
	}
	sess.ZoneID = zoneID
	copied := *sess
	return &copied
}

func (t *sessionTable) delete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}
