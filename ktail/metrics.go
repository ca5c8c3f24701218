package ktail

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "ktail"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "reconciler",
		Name:      "ticks_total",
		Help:      "Count of polls of the pod list",
	})
	listErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "reconciler",
		Name:      "list_errors_total",
		Help:      "Count of polls skipped because listing pods failed",
	})
	probeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "reconciler",
		Name:      "probe_failures_total",
		Help:      "Count of matching pods deferred because they were not ready",
	})

	streamsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "streams",
		Name:      "started_total",
		Help:      "Count of log streams opened",
	})
	streamsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "streams",
		Name:      "ended_total",
		Help:      "Count of log streams ended, by outcome",
	}, []string{"outcome"})
	streamsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "streams",
		Name:      "live",
		Help:      "Number of pods currently followed",
	})
	chunksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "output",
		Name:      "chunks_total",
		Help:      "Count of log chunks received, by stream name",
	}, []string{"stream"})
)
