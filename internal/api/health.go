// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

package api

import (
	"net/http"
	"time"

	"github.com/jukewire/jukewire/internal/models"
)

var startTime = time.Now()

// HealthStatus is the GET /api/v1/health payload.
type HealthStatus struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	WSClients     int    `json:"ws_clients"`
}

// Health reports overall service status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondSuccess(w, http.StatusOK, &HealthStatus{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		WSClients:     h.hub.ClientCount(),
	}, start)
}

// HealthLive is the liveness probe: the process is up and serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]string{"status": "alive"}, time.Now())
}

// HealthReady is the readiness probe. The credit ledger is the only
// stateful dependency; a failed read means mutations would 503, so the
// instance should not receive traffic.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if _, err := h.svc.Balance(r.Context(), models.Actor{ID: "healthcheck"}); err != nil {
		respondError(w, http.StatusServiceUnavailable, codeLedgerUnavailable, "credit ledger unavailable", err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"status": "ready"}, start)
}
