// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kioskcm"

var (
	// LockRequests counts lock requests by outcome: acquired, renewed or conflict.
	LockRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "locks",
		Name:      "requests_total",
		Help:      "Lock requests by outcome.",
	}, []string{"outcome"})

	LocksReleased = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "locks",
		Name:      "released_total",
		Help:      "Locks released by their holder.",
	})

	LocksExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "locks",
		Name:      "expired_total",
		Help:      "Locks removed by the expiry sweep.",
	})

	// ProtectionFailures counts failed calls to the authorization service by operation.
	ProtectionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "protection",
		Name:      "failures_total",
		Help:      "Failed protected-resource operations.",
	}, []string{"operation"})

	ExportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "wall",
		Name:      "export_duration_seconds",
		Help:      "Time spent building wall exports.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"scope"})
)
