// Package metrics exposes Prometheus counters for snapshot and overlay
// activity. Counters register on the default registry; serve them with
// promhttp.Handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CapturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memento_captures_total",
		Help: "Total number of successful snapshot captures",
	}, []string{"subject_type"})

	CaptureFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memento_capture_failures_total",
		Help: "Total number of failed snapshot captures",
	}, []string{"subject_type"})

	SnapshotsAppendedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memento_snapshots_appended_total",
		Help: "Total number of snapshots appended per store backend",
	}, []string{"backend"})

	OverlayTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memento_overlay_transitions_total",
		Help: "Total number of overlay state transitions",
	}, []string{"transition"})

	CaptureRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memento_capture_requests_total",
		Help: "Total number of deferred capture requests consumed",
	}, []string{"outcome"})
)
