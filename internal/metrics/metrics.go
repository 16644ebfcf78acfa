// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

// Package metrics provides Prometheus instrumentation for the
// recommendation service: HTTP latency and throughput, training and
// adaptation timings, explanation upstream health, and model-size gauges.
// Metrics are exposed at /metrics in Prometheus text format.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Recommendation pipeline metrics
	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommend_duration_seconds",
			Help:    "End-to-end recommendation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RecommendCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommend_candidates",
			Help:    "Number of candidate items scored per request",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000},
		},
	)

	// Training metrics
	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Duration of batch training runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	TrainingRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Total number of batch training runs",
		},
	)

	AdaptationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adaptations_total",
			Help: "Total number of online user adaptations",
		},
		[]string{"outcome"}, // "success", "error"
	)

	AdaptationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adaptation_duration_seconds",
			Help:    "Duration of online user adaptations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Model state gauges
	ModelUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_users",
			Help: "Number of encoded users in the predictor",
		},
	)

	ModelItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_items",
			Help: "Number of encoded items in the predictor",
		},
	)

	ModelVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_version",
			Help: "Current predictor version",
		},
	)

	BiasTableRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bias_table_rows",
			Help: "Number of (user,item) bias feature rows",
		},
	)

	// Explanation upstream metrics
	ExplanationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explanations_total",
			Help: "Total number of explanation attempts",
		},
		[]string{"outcome"}, // "success", "fallback"
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordAdaptation records one online adaptation attempt.
func RecordAdaptation(err error, duration time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	AdaptationsTotal.WithLabelValues(outcome).Inc()
	AdaptationDuration.Observe(duration.Seconds())
}

// RecordExplanation records one explanation attempt.
func RecordExplanation(fallback bool) {
	outcome := "success"
	if fallback {
		outcome = "fallback"
	}
	ExplanationsTotal.WithLabelValues(outcome).Inc()
}

// SetModelState updates the model-state gauges after training, adaptation,
// or artifact load.
func SetModelState(users, items, version, biasRows int) {
	ModelUsers.Set(float64(users))
	ModelItems.Set(float64(items))
	ModelVersion.Set(float64(version))
	BiasTableRows.Set(float64(biasRows))
}
