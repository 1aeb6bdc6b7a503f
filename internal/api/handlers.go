// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

// Package api provides the HTTP surface: session lifecycle, the
// credit-gated queue mutations, host transport controls, the WebSocket
// subscription, and health endpoints. Routing uses chi; payloads are
// validated with go-playground/validator and mapped to stable error
// codes.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/jukewire/jukewire/internal/auth"
	"github.com/jukewire/jukewire/internal/config"
	"github.com/jukewire/jukewire/internal/models"
	"github.com/jukewire/jukewire/internal/queue"
	"github.com/jukewire/jukewire/internal/session"
	ws "github.com/jukewire/jukewire/internal/websocket"
)

// Handler carries the collaborators every endpoint needs.
type Handler struct {
	svc      *session.Service
	tokens   *auth.Manager
	hub      *ws.Hub
	cfg      *config.Config
	validate *validator.Validate
}

// NewHandler creates the API handler.
func NewHandler(svc *session.Service, tokens *auth.Manager, hub *ws.Hub, cfg *config.Config) *Handler {
	return &Handler{
		svc:      svc,
		tokens:   tokens,
		hub:      hub,
		cfg:      cfg,
		validate: validator.New(),
	}
}

// decode unmarshals and validates a JSON request body. A false return
// means the error response was already written.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, "malformed JSON body", nil)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return false
	}
	return true
}

// sessionActor resolves the authenticated actor and checks that the token
// was minted for the session in the URL. A false return means the error
// response was already written.
func (h *Handler) sessionActor(w http.ResponseWriter, r *http.Request) (string, models.Actor, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	claims := auth.FromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, codeNotAuthorized, "missing credentials", nil)
		return "", models.Actor{}, false
	}
	if claims.SessionID != sessionID {
		respondError(w, http.StatusForbidden, codeNotAuthorized, "token is for a different session", nil)
		return "", models.Actor{}, false
	}
	return sessionID, claims.Actor(), true
}

// CreateSessionRequest is the POST /sessions payload.
type CreateSessionRequest struct {
	HostName string `json:"host_name" validate:"required,min=1,max=64"`
	ZoneID   string `json:"zone_id" validate:"max=128"`
}

// SessionResponse pairs a session with the caller's identity and token.
type SessionResponse struct {
	Session *models.Session     `json:"session"`
	Actor   models.Actor        `json:"actor"`
	Token   string              `json:"token"`
	Credits *models.CreditState `json:"credits,omitempty"`
}

// CreateSession starts a new session with the caller as host.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CreateSessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	sess, host, err := h.svc.Create(r.Context(), req.HostName, req.ZoneID)
	if err != nil {
		respondMapped(w, err)
		return
	}

	token, err := h.tokens.GenerateToken(sess.ID, host)
	if err != nil {
		respondMapped(w, err)
		return
	}

	respondSuccess(w, http.StatusCreated, &SessionResponse{
		Session: sess,
		Actor:   host,
		Token:   token,
	}, start)
}

// JoinSessionRequest is the POST /sessions/{id}/join payload.
type JoinSessionRequest struct {
	DisplayName string `json:"display_name" validate:"required,min=1,max=64"`
}

// JoinSession admits a guest and returns their token and starting balance.
func (h *Handler) JoinSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID := chi.URLParam(r, "sessionID")

	var req JoinSessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	sess, guest, creditState, err := h.svc.Join(r.Context(), sessionID, req.DisplayName)
	if err != nil {
		respondMapped(w, err)
		return
	}

	token, err := h.tokens.GenerateToken(sess.ID, guest)
	if err != nil {
		respondMapped(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, &SessionResponse{
		Session: sess,
		Actor:   guest,
		Token:   token,
		Credits: creditState,
	}, start)
}

// GetSession returns the session record.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID, _, ok := h.sessionActor(w, r)
	if !ok {
		return
	}

	sess, err := h.svc.Get(sessionID)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, sess, start)
}

// EndSession tears the session down. Host only.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID, actor, ok := h.sessionActor(w, r)
	if !ok {
		return
	}

	if err := h.svc.End(r.Context(), sessionID, actor); err != nil {
		respondMapped(w, err)
		return
	}
	h.hub.PublishSessionEnded(sessionID)
	respondSuccess(w, http.StatusOK, nil, start)
}

// GetQueue returns the ordered queue view.
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID, _, ok := h.sessionActor(w, r)
	if !ok {
		return
	}

	view, err := h.svc.Queue(sessionID)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, view, start)
}

// AddTrackRequest is the POST /sessions/{id}/queue payload.
type AddTrackRequest struct {
	TrackID    string `json:"track_id" validate:"required,max=256"`
	Name       string `json:"name" validate:"required,max=512"`
	Artists    string `json:"artists" validate:"max=512"`
	Album      string `json:"album" validate:"max=512"`
	ImageURL   string `json:"image_url" validate:"omitempty,url,max=2048"`
	DurationMS int64  `json:"duration_ms" validate:"gte=0"`
}

// AddTrack queues a track, charging the guest's credits.
func (h *Handler) AddTrack(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID, actor, ok := h.sessionActor(w, r)
	if !ok {
		return
	}

	var req AddTrackRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.svc.AddTrack(r.Context(), sessionID, actor, queue.AddInput{
		TrackID:    req.TrackID,
		Name:       req.Name,
		Artists:    req.Artists,
		Album:      req.Album,
		ImageURL:   req.ImageURL,
		DurationMS: req.DurationMS,
	})
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusCreated, result, start)
}

// VoteRequest is the vote payload; direction is +1 or -1.
type VoteRequest struct {
	Direction int `json:"direction" validate:"required,oneof=1 -1"`
}

// Vote casts, duplicates, or withdraws a reaction on a queue item.
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID, actor, ok := h.sessionActor(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "itemID")

	var req VoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.svc.CastVote(r.Context(), sessionID, itemID, actor, models.VoteDirection(req.Direction))
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, result, start)
}

// RemoveTrack deletes a queue item and refunds the adder when applicable.
func (h *Handler) RemoveTrack(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID, actor, ok := h.sessionActor(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "itemID")

	result, err := h.svc.RemoveTrack(r.Context(), sessionID, itemID, actor)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, result, start)
}

// SetZoneRequest is the PUT /sessions/{id}/zone payload.
type SetZoneRequest struct {
	ZoneID string `json:"zone_id" validate:"required,max=128"`
}

// SetZone retargets the session's playback zone. Host only.
func (h *Handler) SetZone(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID, actor, ok := h.sessionActor(w, r)
	if !ok {
		return
	}

	var req SetZoneRequest
	if !h.decode(w, r, &req) {
		return
	}

	sess, err := h.svc.SetZone(r.Context(), sessionID, actor, req.ZoneID)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, sess, start)
}

// Playback dispatches the host transport controls: play, pause, skip.
func (h *Handler) Playback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID, actor, ok := h.sessionActor(w, r)
	if !ok {
		return
	}

	var err error
	switch action := chi.URLParam(r, "action"); action {
	case "play":
		err = h.svc.Play(r.Context(), sessionID, actor)
	case "pause":
		err = h.svc.Pause(r.Context(), sessionID, actor)
	case "skip":
		err = h.svc.Skip(r.Context(), sessionID, actor)
	default:
		respondError(w, http.StatusBadRequest, codeValidation, "action must be play, pause, or skip", nil)
		return
	}
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusAccepted, nil, start)
}

// Balance reports the caller's credit balance.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	_, actor, ok := h.sessionActor(w, r)
	if !ok {
		return
	}

	state, err := h.svc.Balance(r.Context(), actor)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, state, start)
}
