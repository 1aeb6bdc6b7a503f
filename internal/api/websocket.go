// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jukewire/jukewire/internal/logging"
	ws "github.com/jukewire/jukewire/internal/websocket"
)

// upgrader builds a WebSocket upgrader with origin checking and a
// handshake timeout against slow-client attacks.
func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates connection origins against the
// configured CORS allow-list. Requests without an Origin header
// (non-browser clients) are allowed.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("websocket origin rejected")
	return false
}

// WebSocket upgrades the connection and subscribes it to the session's
// live queue and playback updates. The initial state is pushed right
// after registration so clients render without waiting for the next
// reconciliation pass.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID, _, ok := h.sessionActor(w, r)
	if !ok {
		return
	}
	if _, err := h.svc.Get(sessionID); err != nil {
		respondMapped(w, err)
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn, sessionID)
	h.hub.Register <- client
	client.Start()

	if view, err := h.svc.Queue(sessionID); err == nil {
		h.hub.PublishQueue(sessionID, view)
	}
}
