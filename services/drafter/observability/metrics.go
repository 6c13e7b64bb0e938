// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the drafter.
//
// # Description
//
// Metrics cover the streaming turn lifecycle:
//   - Turn counters (by status)
//   - Frame counters (by frame type)
//   - Tool dispatch counters (by tool and outcome)
//   - Turn duration histograms and an active-stream gauge
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for drafter turn metrics
const drafterSubsystem = "drafter"

// TurnMetrics holds all Prometheus metrics for streaming drafting turns.
// Initialize once at startup via InitMetrics().
type TurnMetrics struct {
	// TurnsTotal counts completed turns.
	// Labels: status (success, error, cancelled)
	TurnsTotal *prometheus.CounterVec

	// FramesTotal counts frames written to response streams.
	// Labels: frame_type (log, message, function, functionResult, error, end)
	FramesTotal *prometheus.CounterVec

	// DispatchesTotal counts tool dispatches.
	// Labels: tool, outcome (ok, error, unknown)
	DispatchesTotal *prometheus.CounterVec

	// TurnDurationSeconds measures total turn duration.
	// Labels: status (success, error, cancelled)
	TurnDurationSeconds *prometheus.HistogramVec

	// ActiveStreams tracks currently open response streams.
	ActiveStreams prometheus.Gauge

	// KeepAlivesTotal counts keepalive pings sent.
	KeepAlivesTotal prometheus.Counter

	// ErrorsTotal counts turn errors by type.
	// Labels: error_code (validation, llm_error, dispatch_error, internal, client_disconnect)
	ErrorsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of TurnMetrics.
// Initialized by InitMetrics(); all helpers nil-check it, so tests that
// never call InitMetrics() run without metrics.
var DefaultMetrics *TurnMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *TurnMetrics {
	DefaultMetrics = &TurnMetrics{
		TurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: drafterSubsystem,
				Name:      "turns_total",
				Help:      "Total number of drafting turns by terminal status",
			},
			[]string{"status"},
		),

		FramesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: drafterSubsystem,
				Name:      "frames_total",
				Help:      "Total stream frames written by frame type",
			},
			[]string{"frame_type"},
		),

		DispatchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: drafterSubsystem,
				Name:      "dispatches_total",
				Help:      "Total tool dispatches by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),

		TurnDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: drafterSubsystem,
				Name:      "turn_duration_seconds",
				Help:      "Total turn duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),

		ActiveStreams: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: drafterSubsystem,
				Name:      "active_streams",
				Help:      "Number of currently open response streams",
			},
		),

		KeepAlivesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: drafterSubsystem,
				Name:      "keepalives_total",
				Help:      "Total keepalive pings sent",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: drafterSubsystem,
				Name:      "errors_total",
				Help:      "Total turn errors by type",
			},
			[]string{"error_code"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode represents a categorized error type for metrics.
type ErrorCode string

const (
	// ErrorCodeValidation indicates request validation failure.
	ErrorCodeValidation ErrorCode = "validation"

	// ErrorCodeLLMError indicates provider API failure.
	ErrorCodeLLMError ErrorCode = "llm_error"

	// ErrorCodeDispatchError indicates a document store call failure.
	ErrorCodeDispatchError ErrorCode = "dispatch_error"

	// ErrorCodeInternal indicates internal server error.
	ErrorCodeInternal ErrorCode = "internal"

	// ErrorCodeClientDisconnect indicates client disconnected.
	ErrorCodeClientDisconnect ErrorCode = "client_disconnect"
)

// =============================================================================
// Helper Functions
// =============================================================================

// RecordTurn records a completed turn with its duration.
func RecordTurn(status string, seconds float64) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.TurnsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.TurnDurationSeconds.WithLabelValues(status).Observe(seconds)
}

// RecordFrame records one frame written to a response stream.
func RecordFrame(frameType string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.FramesTotal.WithLabelValues(frameType).Inc()
}

// RecordDispatch records one tool dispatch outcome.
func RecordDispatch(tool, outcome string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.DispatchesTotal.WithLabelValues(tool, outcome).Inc()
}

// RecordError records a turn error.
func RecordError(code ErrorCode) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.ErrorsTotal.WithLabelValues(string(code)).Inc()
}

// RecordKeepAlive increments the keepalive counter.
func RecordKeepAlive() {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.KeepAlivesTotal.Inc()
}

// StreamStarted increments the active streams gauge.
func StreamStarted() {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.ActiveStreams.Inc()
}

// StreamEnded decrements the active streams gauge.
func StreamEnded() {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.ActiveStreams.Dec()
}
