// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VotesSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "votes_submitted_total",
		Help: "Ledger writes by resulting action",
	}, []string{"action"})

	StatsReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vote_stats_reads_total",
		Help: "Stats reads by the layer that answered them",
	}, []string{"source"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vote_cache_lookups_total",
		Help: "Aggregate cache lookups by result (hit, miss, expired)",
	}, []string{"result"})

	FlushBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vote_reconciler_flush_batches_total",
		Help: "Flush batches by outcome (committed, replayed, failed)",
	}, []string{"outcome"})

	FlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vote_reconciler_flush_duration_seconds",
		Help:    "Time spent in one reconciler flush",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	PendingItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vote_reconciler_pending_items",
		Help: "Items with unflushed deltas, including queued retries",
	})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
