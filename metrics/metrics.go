// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "estampados",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "estampados",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "estampados",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"method", "route"},
	)

	captures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "estampados",
			Subsystem: "capture",
			Name:      "artifacts_total",
			Help:      "Surface captures by variant and outcome.",
		},
		[]string{"variant", "outcome"},
	)

	captureDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "estampados",
			Subsystem: "capture",
			Name:      "duration_seconds",
			Help:      "Rasterize, encode and upload time per artifact.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"variant"},
	)

	backgroundRemovals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "estampados",
			Subsystem: "bgremoval",
			Name:      "passes_total",
			Help:      "Background cleaning passes by outcome.",
		},
		[]string{"outcome"},
	)

	regenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "estampados",
			Subsystem: "regeneration",
			Name:      "runs_total",
			Help:      "HD regeneration runs by trigger and outcome.",
		},
		[]string{"trigger", "outcome"},
	)

	regenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "estampados",
			Subsystem: "regeneration",
			Name:      "duration_seconds",
			Help:      "Duration of HD regeneration runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"trigger"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "estampados",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Customization sessions currently held in memory.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		captures,
		captureDuration,
		backgroundRemovals,
		regenerations,
		regenerationDuration,
		activeSessions,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request count and latency labelled by chi route pattern.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordCapture records one capture artifact outcome ("uploaded", "failed", "not_ready", ...)
func RecordCapture(variant, outcome string, duration time.Duration) {
	captures.WithLabelValues(variant, outcome).Inc()
	if duration > 0 {
		captureDuration.WithLabelValues(variant).Observe(duration.Seconds())
	}
}

// RecordBackgroundRemoval records one cleaning pass outcome
func RecordBackgroundRemoval(outcome string) {
	backgroundRemovals.WithLabelValues(outcome).Inc()
}

// RecordRegeneration records one HD regeneration run
func RecordRegeneration(trigger string, duration time.Duration, success bool) {
	if trigger == "" {
		trigger = "unknown"
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	regenerations.WithLabelValues(trigger, outcome).Inc()
	regenerationDuration.WithLabelValues(trigger).Observe(duration.Seconds())
}

// SetActiveSessions updates the session gauge
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
