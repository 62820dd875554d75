// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ignition

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics receives per-signal and run-level measurements. Implementations
// must be safe for concurrent use. The coordinator makes no ordering
// guarantee between metric calls and event emission.
type Metrics interface {
	RecordSignalDuration(name string, d time.Duration)
	RecordSignalStatus(name string, status Status)
	RecordTotalDuration(d time.Duration)
}

// PrometheusMetrics is the built-in Metrics implementation.
//
// Thread Safety: Safe for concurrent use (Prometheus metrics are
// thread-safe).
type PrometheusMetrics struct {
	// SignalDurationSeconds measures individual signal durations.
	SignalDurationSeconds *prometheus.HistogramVec

	// SignalStatusTotal counts terminal statuses by signal and status.
	SignalStatusTotal *prometheus.CounterVec

	// TotalDurationSeconds measures whole-run durations.
	TotalDurationSeconds prometheus.Histogram
}

// NewPrometheusMetrics creates and registers the ignition metrics with the
// given registerer (nil uses the default registerer).
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		SignalDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ignition",
				Subsystem: "signal",
				Name:      "duration_seconds",
				Help:      "Duration of individual readiness signals",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"signal"},
		),

		SignalStatusTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ignition",
				Subsystem: "signal",
				Name:      "status_total",
				Help:      "Terminal signal statuses by signal and status",
			},
			[]string{"signal", "status"},
		),

		TotalDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "ignition",
				Subsystem: "run",
				Name:      "duration_seconds",
				Help:      "Total ignition run duration",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
	}
}

func (m *PrometheusMetrics) RecordSignalDuration(name string, d time.Duration) {
	m.SignalDurationSeconds.WithLabelValues(name).Observe(d.Seconds())
}

func (m *PrometheusMetrics) RecordSignalStatus(name string, status Status) {
	m.SignalStatusTotal.WithLabelValues(name, status.String()).Inc()
}

func (m *PrometheusMetrics) RecordTotalDuration(d time.Duration) {
	m.TotalDurationSeconds.Observe(d.Seconds())
}

var _ Metrics = (*PrometheusMetrics)(nil)
