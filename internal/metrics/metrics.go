// Package metrics provides Prometheus metrics for sincro.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sincro_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sincro_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Version store metrics
	commitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sincro_commits_total",
			Help: "Commit attempts by outcome",
		},
		[]string{"result"},
	)

	driftChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sincro_drift_checks_total",
			Help: "Drift checks by trigger and outcome",
		},
		[]string{"trigger", "result"},
	)

	driftCheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sincro_drift_check_duration_seconds",
			Help:    "Time spent probing a deployment for drift",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Watcher metrics
	watchEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sincro_watch_events_total",
			Help: "Settled filesystem events by kind",
		},
		[]string{"kind"},
	)

	activeWatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sincro_active_watches",
			Help: "Number of deployments currently watched",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordCommit records a commit attempt. result is "committed", "no_changes" or "error".
func RecordCommit(result string) {
	commitsTotal.WithLabelValues(result).Inc()
}

// RecordDriftCheck records a drift check started by trigger ("watch", "manual").
func RecordDriftCheck(trigger string, changed bool, err error, duration time.Duration) {
	result := "clean"
	switch {
	case err != nil:
		result = "error"
	case changed:
		result = "changed"
	}
	driftChecksTotal.WithLabelValues(trigger, result).Inc()
	driftCheckDuration.Observe(duration.Seconds())
}

// RecordWatchEvent records a settled watch event.
func RecordWatchEvent(kind string) {
	watchEventsTotal.WithLabelValues(kind).Inc()
}

// SetActiveWatches sets the number of watched deployments.
func SetActiveWatches(count int) {
	activeWatches.Set(float64(count))
}
