// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/jukewire/jukewire/internal/logging"
	"github.com/jukewire/jukewire/internal/metrics"
	"github.com/jukewire/jukewire/internal/models"
)

// Message types pushed to session clients.
const (
	MessageTypeQueueUpdate    = "queue_update"
	MessageTypePlaybackUpdate = "playback_update"
	MessageTypeSessionEnded   = "session_ended"
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
)

// Message is the wire envelope for WebSocket communication.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// envelope routes a message to one session's clients.
type envelope struct {
	sessionID string
	msg       Message
}

// Hub maintains the set of active clients, grouped by session, and fans
// messages out to the clients of the target session only.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan envelope, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Serve runs the hub under supervision until ctx is canceled, then closes
// every connected client and returns ctx.Err().
//
// Channel selection is priority-ordered so behavior stays predictable when
// several channels are ready at once: shutdown first, client lifecycle
// second, broadcasts last. Client state is therefore always settled before
// a message is fanned out.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		// Priority 1: shutdown (non-blocking check).
		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		default:
		}

		// Priority 2: client lifecycle events (non-blocking check).
		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		// Priority 3: broadcasts, or wait for any event (blocking).
		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case env := <-h.broadcast:
			h.fanOut(env)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WSClients.Inc()
	logging.Info().
		Str("session", client.sessionID).
		Int("total_clients", total).
		Msg("websocket client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		metrics.WSClients.Dec()
	}
	total := len(h.clients)
	h.mu.Unlock()
	logging.Info().
		Str("session", client.sessionID).
		Int("total_clients", total).
		Msg("websocket client disconnected")
}

// fanOut delivers an envelope to every client of its session. Clients are
// sorted by ID so iteration order is stable run to run; a client whose
// send buffer is full is dropped rather than allowed to stall the hub.
func (h *Hub) fanOut(env envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if client.sessionID == env.sessionID {
			clients = append(clients, client)
		}
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- env.msg:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WSClients.Dec()
		logging.Warn().
			Str("session", env.sessionID).
			Msg("slow websocket client dropped")
	}
}

// shutdown closes all connected clients in ID order.
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
		metrics.WSClients.Dec()
	}
	logging.Info().
		Str("component", "websocket-hub").
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
}

// PublishQueue pushes a refreshed queue snapshot to the session's clients.
// Non-blocking: if the broadcast buffer is full the update is dropped; the
// next reconciliation pass or mutation re-publishes current state anyway.
func (h *Hub) PublishQueue(sessionID string, view *models.QueueView) {
	h.publish(sessionID, Message{Type: MessageTypeQueueUpdate, Data: view})
}

// PublishPlayback pushes the reconciled playback state to the session's
// clients.
func (h *Hub) PublishPlayback(sessionID string, state *models.PlaybackState) {
	h.publish(sessionID, Message{Type: MessageTypePlaybackUpdate, Data: state})
}

// PublishSessionEnded tells the session's clients the session is gone.
func (h *Hub) PublishSessionEnded(sessionID string) {
	h.publish(sessionID, Message{Type: MessageTypeSessionEnded})
}

func (h *Hub) publish(sessionID string, msg Message) {
	select {
	case h.broadcast <- envelope{sessionID: sessionID, msg: msg}:
	default:
		metrics.WSMessagesDropped.Inc()
		logging.Warn().
			Str("session", sessionID).
			Str("message_type", msg.Type).
			Msg("broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of connected clients across all sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SessionClientCount returns the number of clients in one session.
func (h *Hub) SessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for client := range h.clients {
		if client.sessionID == sessionID {
			n++
		}
	}
	return n
}
