package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "resilient_client"

// Exporter mirrors the collector into Prometheus series on its own registry.
type Exporter struct {
	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	latency      prometheus.Histogram
	cacheLookups *prometheus.CounterVec
	attempts     *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
	health       *prometheus.GaugeVec
}

func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "User-visible calls by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end call latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache use per call.",
		}, []string{"result"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_attempts_total",
			Help:      "Network attempts per backend target.",
		}, []string{"target", "result"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Breaker state per target: 0 closed, 1 open, 2 half-open.",
		}, []string{"target"}),
		health: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_health",
			Help:      "Health per target: 0 unknown, 1 healthy, 2 degraded, 3 unreachable.",
		}, []string{"target"}),
	}

	e.registry.MustRegister(e.requests, e.latency, e.cacheLookups, e.attempts, e.breakerState, e.health)
	return e
}

func (e *Exporter) ObserveRequest(outcome Outcome, latency time.Duration, cacheUse CacheUse) {
	e.requests.WithLabelValues(string(outcome)).Inc()
	e.latency.Observe(latency.Seconds())
	e.cacheLookups.WithLabelValues(string(cacheUse)).Inc()
}

func (e *Exporter) ObserveAttempt(target string, failed bool) {
	result := "success"
	if failed {
		result = "failure"
	}
	e.attempts.WithLabelValues(target, result).Inc()
}

func (e *Exporter) SetBreakerState(target, state string) {
	var v float64
	switch state {
	case "open":
		v = 1
	case "half-open":
		v = 2
	}
	e.breakerState.WithLabelValues(target).Set(v)
}

func (e *Exporter) SetHealth(target, status string) {
	var v float64
	switch status {
	case "healthy":
		v = 1
	case "degraded":
		v = 2
	case "unreachable":
		v = 3
	}
	e.health.WithLabelValues(target).Set(v)
}

func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
