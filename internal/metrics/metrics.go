// Package metrics holds the Prometheus collectors for the arcade service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "arcade"

var (
	// SessionsCreated counts new sessions.
	// Labels: kind (matching, indentation, algorithm)
	SessionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sessions",
		Name:      "created_total",
		Help:      "Total game sessions created",
	}, []string{"kind"})

	// SessionsLive is the number of sessions with an engine in memory.
	SessionsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sessions",
		Name:      "live",
		Help:      "Game sessions currently held in memory",
	})

	// SessionsEnded counts sessions leaving memory.
	// Labels: reason (deleted, expired)
	SessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sessions",
		Name:      "ended_total",
		Help:      "Total game sessions removed from memory",
	}, []string{"reason"})

	// Events counts dispatched engine events.
	// Labels: kind, type (event type), result (ok, rejected, throttled)
	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "events_total",
		Help:      "Total events dispatched to engines",
	}, []string{"kind", "type", "result"})

	// Completions counts finished runs.
	// Labels: kind
	Completions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "completions_total",
		Help:      "Total completed runs",
	}, []string{"kind"})

	// Scores observes the score of each completed run.
	// Labels: kind
	Scores = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "score",
		Help:      "Distribution of completion scores",
		Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	}, []string{"kind"})

	// RewardOutcomes counts reward submissions by outcome.
	// Labels: status (claimed, already_completed, login_required, failed)
	RewardOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rewards",
		Name:      "outcomes_total",
		Help:      "Total reward submissions by outcome",
	}, []string{"status"})

	// RewardLatency measures reward submission round trips.
	RewardLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "rewards",
		Name:      "latency_seconds",
		Help:      "Reward submission latency in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// ContentReloads counts catalog reloads.
	// Labels: result (ok, error)
	ContentReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "content",
		Name:      "reloads_total",
		Help:      "Total content catalog reloads",
	}, []string{"result"})

	// HTTPRequests counts API requests.
	// Labels: method, route (chi route pattern), status
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests",
	}, []string{"method", "route", "status"})

	// HTTPDuration measures API request latency.
	// Labels: method, route
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// ObserveSince records the time elapsed since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
