// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/jukewire/jukewire/internal/credits"
	"github.com/jukewire/jukewire/internal/logging"
	"github.com/jukewire/jukewire/internal/models"
	"github.com/jukewire/jukewire/internal/provider"
	"github.com/jukewire/jukewire/internal/queue"
	"github.com/jukewire/jukewire/internal/session"
)

// Stable error codes clients can branch on.
const (
	codeValidation          = "VALIDATION_ERROR"
	codeSessionNotFound     = "SESSION_NOT_FOUND"
	codeItemNotFound        = "ITEM_NOT_FOUND"
	codeDuplicateTrack      = "DUPLICATE_TRACK"
	codeInsufficientCredits = "INSUFFICIENT_CREDITS"
	codeNotAuthorized       = "NOT_AUTHORIZED"
	codeHostOnly            = "HOST_ONLY"
	codeConflict            = "CONFLICT"
	codeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	codeLedgerUnavailable   = "LEDGER_UNAVAILABLE"
	codeInternal            = "INTERNAL_ERROR"
)

// sanitizeLogValue strips control characters so attacker-supplied strings
// cannot forge log entries.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess wraps data in the standard envelope.
func respondSuccess(w http.ResponseWriter, status int, data interface{}, start time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().
			Str("code", sanitizeLogValue(code)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API Error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondMapped translates domain errors to HTTP status and stable codes.
func respondMapped(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, codeSessionNotFound, "session not found", nil)
	case errors.Is(err, queue.ErrItemNotFound):
		respondError(w, http.StatusNotFound, codeItemNotFound, "queue item not found", nil)
	case errors.Is(err, queue.ErrDuplicateTrack):
		respondError(w, http.StatusConflict, codeDuplicateTrack, "track is already queued", nil)
	case errors.Is(err, queue.ErrIntentStale):
		respondError(w, http.StatusConflict, codeConflict, "queue changed, retry the vote", nil)
	case errors.Is(err, credits.ErrInsufficientCredits):
		respondError(w, http.StatusPaymentRequired, codeInsufficientCredits, "not enough credits", nil)
	case errors.Is(err, session.ErrHostOnly):
		respondError(w, http.StatusForbidden, codeHostOnly, "only the session host may do this", nil)
	case errors.Is(err, queue.ErrNotAuthorized):
		respondError(w, http.StatusForbidden, codeNotAuthorized, "you may only remove your own tracks", nil)
	case errors.Is(err, session.ErrInvalidVote):
		respondError(w, http.StatusBadRequest, codeValidation, "vote direction must be 1 or -1", nil)
	case provider.IsTransient(err):
		respondError(w, http.StatusBadGateway, codeProviderUnavailable, "playback provider unavailable", err)
	case credits.IsLedgerError(err):
		respondError(w, http.StatusServiceUnavailable, codeLedgerUnavailable, "credit ledger unavailable", err)
	default:
		respondError(w, http.StatusInternalServerError, codeInternal, "internal error", err)
	}
}
