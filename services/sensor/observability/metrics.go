// Copyright (C) 2025 Quantum Bio-Net (ops@qbionet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the biosensor node.
//
// # Description
//
// Metrics cover the simulation loop (scan cycles, detected anomalies,
// squeezed mode count), the actuation API, the event log, and the
// persistence sinks. Exposed via the /metrics endpoint for Prometheus
// scraping.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "photosynthos"

// Subsystem for sensor node metrics
const sensorSubsystem = "sensor"

// Metrics holds all Prometheus metrics for the sensor node service.
//
// # Fields
//
//   - ScansTotal: Counter of completed evolve+scan cycles.
//   - AnomaliesTotal: Counter of squeezing anomalies detected.
//   - ActuationsTotal: Counter of actuation calls by outcome.
//   - SqueezedModes: Gauge of modes currently latched squeezed.
//   - EventLogEntries: Gauge of entries in the event log.
//   - ScanDurationSeconds: Histogram of evolve+scan cycle duration.
//   - PersistFailuresTotal: Counter of persistence sink failures by sink.
type Metrics struct {
	ScansTotal           prometheus.Counter
	AnomaliesTotal       prometheus.Counter
	ActuationsTotal      *prometheus.CounterVec
	SqueezedModes        prometheus.Gauge
	EventLogEntries      prometheus.Gauge
	ScanDurationSeconds  prometheus.Histogram
	PersistFailuresTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance registered against the default
// Prometheus registry. Initialized by InitMetrics().
var DefaultMetrics *Metrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all metrics against the default registry. Call once
// at application startup; a second call panics on duplicate registration.
//
// # Outputs
//
//   - *Metrics: The initialized metrics instance.
func InitMetrics() *Metrics {
	DefaultMetrics = newMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewTestMetrics returns a Metrics instance backed by a private registry.
// Use in tests to avoid duplicate-registration panics.
func NewTestMetrics() *Metrics {
	return newMetrics(prometheus.NewRegistry())
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ScansTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: sensorSubsystem,
			Name:      "scans_total",
			Help:      "Total number of completed evolve+scan cycles",
		}),

		AnomaliesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: sensorSubsystem,
			Name:      "anomalies_total",
			Help:      "Total number of quantum squeezing anomalies detected",
		}),

		ActuationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: sensorSubsystem,
			Name:      "actuations_total",
			Help:      "Total actuation calls by outcome",
		}, []string{"status"}),

		SqueezedModes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: sensorSubsystem,
			Name:      "squeezed_modes",
			Help:      "Number of modes currently latched in a squeezed state",
		}),

		EventLogEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: sensorSubsystem,
			Name:      "event_log_entries",
			Help:      "Number of entries in the append-only event log",
		}),

		ScanDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: sensorSubsystem,
			Name:      "scan_duration_seconds",
			Help:      "Duration of one evolve+scan cycle in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),

		PersistFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: sensorSubsystem,
			Name:      "persist_failures_total",
			Help:      "Total persistence sink failures by sink name",
		}, []string{"sink"}),
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordScan records one completed evolve+scan cycle.
//
// # Inputs
//
//   - anomalies: Number of anomalies detected this cycle.
//   - squeezedModes: Current count of latched modes after the cycle.
//   - seconds: Cycle duration in seconds.
func (m *Metrics) RecordScan(anomalies, squeezedModes int, seconds float64) {
	m.ScansTotal.Inc()
	m.AnomaliesTotal.Add(float64(anomalies))
	m.SqueezedModes.Set(float64(squeezedModes))
	m.ScanDurationSeconds.Observe(seconds)
}

// RecordActuation records one actuation call.
//
// # Inputs
//
//   - applied: True if the actuation was accepted, false if rejected.
func (m *Metrics) RecordActuation(applied bool) {
	status := "applied"
	if !applied {
		status = "rejected"
	}
	m.ActuationsTotal.WithLabelValues(status).Inc()
}

// RecordPersistFailure records one failed persistence attempt for a sink.
func (m *Metrics) RecordPersistFailure(sink string) {
	m.PersistFailuresTotal.WithLabelValues(sink).Inc()
}

// SetEventLogEntries updates the event log size gauge.
func (m *Metrics) SetEventLogEntries(n int) {
	m.EventLogEntries.Set(float64(n))
}
