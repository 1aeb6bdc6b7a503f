// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

// Package metrics defines the Prometheus instrumentation for Jukewire:
// reconciliation passes, provider calls, credit ledger activity, API
// traffic, and websocket fan-out.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reconciliation metrics
	ReconcilePasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jukewire_reconcile_passes_total",
			Help: "Total reconciliation passes per outcome",
		},
		[]string{"outcome"}, // "ok", "no_zone", "provider_error", "panic"
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jukewire_reconcile_duration_seconds",
			Help:    "Duration of a single reconciliation pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	TracksMarkedPlayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jukewire_tracks_marked_played_total",
			Help: "Queue items retired on observed track transitions",
		},
	)

	AssignmentsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jukewire_assignments_issued_total",
			Help: "Zone content assignments issued",
		},
		[]string{"kind"}, // "forward", "retry", "fallback"
	)

	ActiveMonitors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jukewire_active_monitors",
			Help: "Sessions currently under playback monitoring",
		},
	)

	// Provider metrics
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jukewire_provider_calls_total",
			Help: "Zone provider API calls",
		},
		[]string{"operation", "status"}, // status: "ok", "error"
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jukewire_provider_call_duration_seconds",
			Help:    "Zone provider API call latency",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jukewire_provider_breaker_state",
			Help: "Provider circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Credit ledger metrics
	CreditSpends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jukewire_credit_spends_total",
			Help: "Credit spend attempts",
		},
		[]string{"status"}, // "ok", "insufficient", "error"
	)

	CreditRefunds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jukewire_credit_refunds_total",
			Help: "Credit refunds, including compensations for failed writes",
		},
		[]string{"reason"}, // "vote_removed", "track_removed", "compensation"
	)

	CompensationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jukewire_credit_compensation_failures_total",
			Help: "Compensating refunds that could not be applied",
		},
	)

	// Session metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jukewire_sessions_created_total",
			Help: "Sessions created since start",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jukewire_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jukewire_api_request_duration_seconds",
			Help:    "API request duration",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket metrics
	WSClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jukewire_websocket_clients",
			Help: "Currently connected websocket clients",
		},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jukewire_websocket_messages_dropped_total",
			Help: "Broadcast messages dropped due to full client buffers",
		},
	)
)
