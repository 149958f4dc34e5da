// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the gateway.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the
// reliability core. Metrics include:
//   - Request counters and latency histograms (by route, method, status)
//   - Transaction outcomes and retry attempts (by operation type)
//   - Idempotency cache lookups (hit/miss/collision)
//   - Correlation registry and cache size gauges
//   - Upstream responses and circuit breaker state
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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "plc"

// Subsystem for gateway metrics
const gatewaySubsystem = "gateway"

// Lookup outcomes for the idempotency cache.
const (
	LookupHit       = "hit"
	LookupMiss      = "miss"
	LookupCollision = "collision"
)

// Metrics holds all Prometheus metrics for the gateway.
//
// Initialize once at startup via InitMetrics(), or with NewMetrics and
// a private registry in tests.
//
// # Thread Safety
//
// All operations are thread-safe.
type Metrics struct {
	// RequestsTotal counts HTTP requests by route, method, and status code.
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures request latency by route and method.
	RequestDurationSeconds *prometheus.HistogramVec

	// TransactionsTotal counts finished transactions by type and terminal status.
	// Labels: type (favorite_toggle, booking, ...), status (completed, failed, cancelled)
	TransactionsTotal *prometheus.CounterVec

	// RetryAttemptsTotal counts retry waits by transaction type.
	RetryAttemptsTotal *prometheus.CounterVec

	// IdempotencyLookupsTotal counts cache lookups by outcome.
	// Labels: outcome (hit, miss, collision)
	IdempotencyLookupsTotal *prometheus.CounterVec

	// ActiveContexts tracks resident correlation contexts.
	ActiveContexts prometheus.Gauge

	// IdempotencyRecords tracks resident idempotency records.
	IdempotencyRecords prometheus.Gauge

	// CleanupEvictionsTotal counts scheduler evictions by component.
	// Labels: component (contexts, idempotency, transactions)
	CleanupEvictionsTotal *prometheus.CounterVec

	// UpstreamResponsesTotal counts upstream responses by operation and status code.
	UpstreamResponsesTotal *prometheus.CounterVec

	// BreakerState reports the upstream circuit breaker state
	// (0=closed, 1=open, 2=half-open).
	BreakerState prometheus.Gauge
}

// DefaultMetrics is the singleton instance registered with the default
// Prometheus registry. Initialized by InitMetrics().
var DefaultMetrics *Metrics

// InitMetrics initializes the default metrics instance.
//
// Call once at application startup. Panics if called twice (duplicate
// registration with the default registry).
func InitMetrics() *Metrics {
	DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewMetrics creates and registers all gateway metrics with the given
// registerer. Tests pass a private prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "requests_total",
				Help:      "Total HTTP requests by route, method, and status code",
			},
			[]string{"route", "method", "status"},
		),

		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method"},
		),

		TransactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "transactions_total",
				Help:      "Finished transactions by type and terminal status",
			},
			[]string{"type", "status"},
		),

		RetryAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "retry_attempts_total",
				Help:      "Retry waits entered by transaction type",
			},
			[]string{"type"},
		),

		IdempotencyLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "idempotency_lookups_total",
				Help:      "Idempotency cache lookups by outcome",
			},
			[]string{"outcome"},
		),

		ActiveContexts: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "active_contexts",
				Help:      "Resident correlation contexts",
			},
		),

		IdempotencyRecords: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "idempotency_records",
				Help:      "Resident idempotency records",
			},
		),

		CleanupEvictionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "cleanup_evictions_total",
				Help:      "Scheduler evictions by component",
			},
			[]string{"component"},
		),

		UpstreamResponsesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "upstream_responses_total",
				Help:      "Upstream responses by operation and status code",
			},
			[]string{"operation", "status"},
		),

		BreakerState: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "breaker_state",
				Help:      "Upstream circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
		),
	}
}

// ====== Helper Methods ======

// RecordRequest records one finished HTTP request.
func (m *Metrics) RecordRequest(route, method string, status int, seconds float64) {
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.RequestDurationSeconds.WithLabelValues(route, method).Observe(seconds)
}

// RecordTransaction records a transaction reaching a terminal status.
func (m *Metrics) RecordTransaction(txnType, status string) {
	m.TransactionsTotal.WithLabelValues(txnType, status).Inc()
}

// RecordRetry records one retry wait for the given transaction type.
func (m *Metrics) RecordRetry(txnType string) {
	m.RetryAttemptsTotal.WithLabelValues(txnType).Inc()
}

// RecordLookup records an idempotency cache lookup outcome.
func (m *Metrics) RecordLookup(outcome string) {
	m.IdempotencyLookupsTotal.WithLabelValues(outcome).Inc()
}

// RecordCleanup records scheduler evictions for a component.
func (m *Metrics) RecordCleanup(component string, evictions int) {
	m.CleanupEvictionsTotal.WithLabelValues(component).Add(float64(evictions))
}

// RecordUpstreamResponse records one upstream response.
func (m *Metrics) RecordUpstreamResponse(operation string, status int) {
	m.UpstreamResponsesTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
}

// SetBreakerState publishes the circuit breaker state gauge.
func (m *Metrics) SetBreakerState(state int) {
	m.BreakerState.Set(float64(state))
}

// SetSizes publishes the registry size gauges.
func (m *Metrics) SetSizes(activeContexts, idempotencyRecords int64) {
	m.ActiveContexts.Set(float64(activeContexts))
	m.IdempotencyRecords.Set(float64(idempotencyRecords))
}
