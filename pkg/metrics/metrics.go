// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "snipewatch"

var (
	// Stream
	StreamConnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "connects_total",
		Help:      "Websocket connection attempts",
	})
	StreamDisconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "disconnects_total",
		Help:      "Closed websocket sessions by reason",
	}, []string{"reason"})
	StreamProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "probes_total",
		Help:      "Heartbeat decisions by outcome",
	}, []string{"outcome"})
	StreamFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "frames_total",
		Help:      "Inbound frames by kind",
	}, []string{"kind"})
	StreamQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "queue_depth",
		Help:      "Notifications waiting for the dispatcher",
	})

	// Tracker
	LargeTransfers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tracker",
		Name:      "large_transfers_total",
		Help:      "Outbound transfers above the threshold",
	})
	Retargets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tracker",
		Name:      "retargets_total",
		Help:      "Watch target switches by source",
	}, []string{"source"})
	MintsDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tracker",
		Name:      "mints_discovered_total",
		Help:      "Valid mints recorded as pending",
	})
	PendingTokens = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "tracker",
		Name:      "pending_tokens",
		Help:      "Mints waiting for a pool",
	})
	Purchases = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tracker",
		Name:      "purchases_total",
		Help:      "Purchase actions by result",
	}, []string{"result"})

	// RPC
	RPCCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Rate-limited RPC queries by method and result",
	}, []string{"method", "result"})
	RPCWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "limiter_wait_seconds",
		Help:      "Time spent waiting for the query throttle",
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ResultLabel maps an error to the "ok"/"error" label value.
func ResultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
