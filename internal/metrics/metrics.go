// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

// Package metrics provides Prometheus instrumentation for the training
// pipeline. All collectors are registered with the default registry via
// promauto and exposed on /metrics by the API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsPartitioned counts events accepted into an action dataset.
	EventsPartitioned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partition_events_total",
			Help: "Events accepted into action datasets",
		},
		[]string{"action"},
	)

	// EventsRejected counts events skipped for an incomplete identity.
	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partition_events_rejected_total",
			Help: "Events rejected and skipped because the actor or target identity was missing",
		},
		[]string{"action"},
	)

	// EmptyActionsDropped counts configured actions dropped for lack of events.
	EmptyActionsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "partition_empty_actions_dropped_total",
			Help: "Configured actions excluded from training because their dataset was empty",
		},
	)

	// CoercionIgnoredValues counts property values of unclassifiable shape.
	CoercionIgnoredValues = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fusion_coercion_ignored_total",
			Help: "Property values dropped as the explicit ignored variant during coercion",
		},
	)

	// FusionRecords tracks the size of the latest fused output.
	FusionRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fusion_records",
			Help: "Fused records produced by the latest training run",
		},
	)

	// FusionDuration observes end-to-end fusion time.
	FusionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fusion_duration_seconds",
			Help:    "Time spent merging all sources into fused records",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		},
	)

	// PublishPhaseDuration observes per-phase publish latency.
	PublishPhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "publish_phase_duration_seconds",
			Help:    "Latency of each index publish phase",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"phase"},
	)

	// PublishFailures counts aborted or degraded publishes per phase.
	PublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publish_failures_total",
			Help: "Publish failures by phase",
		},
		[]string{"phase"},
	)

	// PublishRecords counts records bulk-written to new indices.
	PublishRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "publish_records_total",
			Help: "Fused records bulk-written to freshly built indices",
		},
	)

	// RetirementRetries counts independent retries of old-index retirement.
	RetirementRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "publish_retirement_retries_total",
			Help: "Retries of superseded index deletion after a partial publish",
		},
	)

	// BulkBatchSize observes the record count of each bulk write request.
	BulkBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "index_bulk_batch_size",
			Help:    "Records per bulk write request",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
		},
	)

	// TrainDuration observes full training run latency.
	TrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "train_duration_seconds",
			Help:    "End-to-end training run duration",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// TrainRuns counts training runs by outcome.
	TrainRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "train_runs_total",
			Help: "Training runs by outcome (success, failure, skipped)",
		},
		[]string{"outcome"},
	)

	// LastTrainSuccess is the unix timestamp of the last successful run.
	LastTrainSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "train_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful training run",
		},
	)

	// BreakerState exposes the index backend circuit breaker state
	// (0=closed, 1=half-open, 2=open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "index_breaker_state",
			Help: "Index backend circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)
