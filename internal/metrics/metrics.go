// Package metrics holds the Prometheus collectors of the builder.
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

	injections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitebuilder",
			Subsystem: "injector",
			Name:      "injections_total",
			Help:      "Block injections by final state.",
		},
		[]string{"state"},
	)

	droppedNodes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sitebuilder",
			Subsystem: "injector",
			Name:      "dropped_nodes_total",
			Help:      "Nodes skipped during injection because their component type was unknown.",
		},
	)

	transpiles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitebuilder",
			Subsystem: "transpile",
			Name:      "runs_total",
			Help:      "Transpiler runs by artifact and whether diagnostics were emitted.",
		},
		[]string{"artifact", "diagnostic"},
	)

	publishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitebuilder",
			Subsystem: "publish",
			Name:      "pages_total",
			Help:      "Page publishes by outcome.",
		},
		[]string{"status"},
	)

	publishDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sitebuilder",
			Subsystem: "publish",
			Name:      "duration_seconds",
			Help:      "Duration of a single page publish.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitebuilder",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	Registry.MustRegister(
		injections,
		droppedNodes,
		transpiles,
		publishes,
		publishDuration,
		httpRequests,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordInjection counts a settled injection.
func RecordInjection(state string, dropped int) {
	injections.WithLabelValues(state).Inc()
	if dropped > 0 {
		droppedNodes.Add(float64(dropped))
	}
}

// RecordTranspile counts one artifact produced by the transpiler.
func RecordTranspile(artifact string, diagnostic bool) {
	transpiles.WithLabelValues(artifact, strconv.FormatBool(diagnostic)).Inc()
}

// RecordPublish counts a publish attempt and observes its duration.
func RecordPublish(err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	publishes.WithLabelValues(status).Inc()
	publishDuration.Observe(d.Seconds())
}

// RecordHTTP counts a handled request. route is the matched pattern, not
// the raw path, to keep label cardinality bounded.
func RecordHTTP(method, route string, status int) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
