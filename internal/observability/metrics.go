package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreOpLatency records persistence facade latency by backend, entity
	// and operation.
	StoreOpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bhabo_store_op_latency_seconds",
		Help:    "Persistence operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "entity", "operation"})

	// EmailsSent counts one-time-code emails by outcome.
	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bhabo_emails_sent_total",
		Help: "Total number of verification/reset emails by outcome",
	}, []string{"outcome"})

	// LoginAttempts counts login outcomes (success, invalid, unverified).
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bhabo_login_attempts_total",
		Help: "Total number of login attempts by outcome",
	}, []string{"outcome"})
)

// ObserveStoreOp records one facade call. Use with defer:
//
//	defer observability.ObserveStoreOp("file", "post", "feed")()
func ObserveStoreOp(backend, entity, operation string) func() {
	start := time.Now()
	return func() {
		StoreOpLatency.WithLabelValues(backend, entity, operation).Observe(time.Since(start).Seconds())
	}
}
