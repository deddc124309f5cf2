// Package metrics exports the daemon's Prometheus counters through an
// explicit, non-default registry rather than the package-global
// promauto registry, so a test can spin up as many independent metrics
// sets as it has Crawlers.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set bundles the counters the crawler, syncer, and supervisor update.
type Set struct {
	Registry *prometheus.Registry

	TurnsCompleted  prometheus.Counter
	ChildrenWalked  prometheus.Counter
	JobFailures     prometheus.Counter
	RsyncBatches    prometheus.Counter
	RsyncFailures   prometheus.Counter
	RsyncBatchSize  prometheus.Histogram
	SupervisorState *prometheus.GaugeVec
}

// New builds a fresh, independent Set backed by its own registry.
func New() *Set {
	reg := prometheus.NewRegistry()
	s := &Set{
		Registry: reg,
		TurnsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "georepd_turns_completed_total",
			Help: "Number of completed crawl turns.",
		}),
		ChildrenWalked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "georepd_children_walked_total",
			Help: "Number of changed child entries dispatched by the crawler.",
		}),
		JobFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "georepd_job_failures_total",
			Help: "Number of failure jobs the crawler recorded against a directory.",
		}),
		RsyncBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "georepd_rsync_batches_total",
			Help: "Number of batches handed to Endpoint.Rsync.",
		}),
		RsyncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "georepd_rsync_failures_total",
			Help: "Number of batches for which Rsync returned false or an error.",
		}),
		RsyncBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "georepd_rsync_batch_size",
			Help:    "Number of files per rsync batch.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		SupervisorState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "georepd_supervisor_state",
			Help: "1 for the supervisor's current state, 0 for all others.",
		}, []string{"state"}),
	}
	reg.MustRegister(s.TurnsCompleted, s.ChildrenWalked, s.JobFailures,
		s.RsyncBatches, s.RsyncFailures, s.RsyncBatchSize, s.SupervisorState)
	return s
}
