// Package metrics exposes the Prometheus collectors of the tokens API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tokens_api",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokens_api",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tokens_api",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	partnerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokens_api",
			Subsystem: "partner",
			Name:      "requests_total",
			Help:      "Total number of requests sent to the partner.",
		},
		[]string{"operation", "status"},
	)

	partnerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tokens_api",
			Subsystem: "partner",
			Name:      "request_duration_seconds",
			Help:      "Duration of partner calls.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		},
		[]string{"operation"},
	)

	deviceRegistrations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tokens_api",
			Subsystem: "devices",
			Name:      "registrations_total",
			Help:      "Total number of successful device registrations.",
		},
	)

	logouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tokens_api",
			Subsystem: "devices",
			Name:      "logouts_total",
			Help:      "Total number of successful logouts.",
		},
	)

	profileCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokens_api",
			Subsystem: "profile_cache",
			Name:      "lookups_total",
			Help:      "Profile cache lookups by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		partnerRequests,
		partnerDuration,
		deviceRegistrations,
		logouts,
		profileCacheLookups,
	)
}

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// HTTPRequestStarted marks a request as in flight.
func HTTPRequestStarted() { httpInFlight.Inc() }

// HTTPRequestFinished records a finished request.
func HTTPRequestFinished(method, path string, status int, duration time.Duration) {
	httpInFlight.Dec()
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObservePartnerRequest records one partner call.
func ObservePartnerRequest(operation string, status int, duration time.Duration) {
	partnerRequests.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	partnerDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// DeviceRegistered counts a successful registration.
func DeviceRegistered() { deviceRegistrations.Inc() }

// LoggedOut counts a successful logout.
func LoggedOut() { logouts.Inc() }

// ProfileCacheHit counts a cache hit.
func ProfileCacheHit() { profileCacheLookups.WithLabelValues("hit").Inc() }

// ProfileCacheMiss counts a cache miss.
func ProfileCacheMiss() { profileCacheLookups.WithLabelValues("miss").Inc() }
