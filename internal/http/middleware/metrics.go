// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the Prometheus collectors: HTTP traffic (labelled by
// method, registered route and status to keep cardinality bounded) and a few
// domain counters fed by the handlers.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8), // 256B..4MiB
		},
		[]string{"method", "path"},
	)

	// doseActions counts dose log changes by action (take, skip, undo, note).
	doseActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthline_dose_actions_total",
			Help: "Dose log changes by action.",
		},
		[]string{"action"},
	)

	// suggestionLookups counts autocomplete answers by source.
	suggestionLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthline_suggestion_lookups_total",
			Help: "Medication name suggestions served, by source (cache, remote, local, none).",
		},
		[]string{"source"},
	)

	// overdueDoses is the size of the last unfiltered alerts list.
	overdueDoses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "healthline_overdue_doses",
			Help: "Overdue doses reported by the last full alerts scan.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize,
		doseActions, suggestionLookups, overdueDoses)
}

// Metrics instruments every request. The path label is the registered route
// (c.FullPath()), or the raw path when nothing matched.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}

// ObserveDoseAction counts a dose log change.
func ObserveDoseAction(action string) { doseActions.WithLabelValues(action).Inc() }

// ObserveSuggestion counts a suggestion answer by source.
func ObserveSuggestion(source string) { suggestionLookups.WithLabelValues(source).Inc() }

// SetOverdueDoses records the size of a full alerts scan.
func SetOverdueDoses(n int) { overdueDoses.Set(float64(n)) }
