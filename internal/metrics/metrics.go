// Package metrics defines the Prometheus collectors shared across the
// gateway. A single Metrics value is created in main and handed to the
// upstream client, the session store, and the HTTP middleware.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all gateway collectors.
type Metrics struct {
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	RequestDuration  *prometheus.HistogramVec
	SessionsActive   prometheus.Gauge
	BroadcastFanout  prometheus.Histogram
}

// New creates and registers all collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "registra",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Upstream enrollment API calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "registra",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Upstream enrollment API call latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "registra",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Gateway HTTP request latency by method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "registra",
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently persisted in the session store.",
		}),
		BroadcastFanout: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "registra",
			Subsystem: "composer",
			Name:      "broadcast_fanout",
			Help:      "Number of per-member sends issued per role broadcast.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
	}

	reg.MustRegister(
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.RequestDuration,
		m.SessionsActive,
		m.BroadcastFanout,
	)
	return m
}

// NewTest creates metrics on a private registry for use in tests.
func NewTest() *Metrics {
	return New(prometheus.NewRegistry())
}
