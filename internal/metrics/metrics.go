// Package metrics exposes Prometheus collectors for HTTP traffic and the
// exam session lifecycle.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Finalize triggers.
const (
	TriggerSubmit = "submit"
	TriggerExpiry = "expired"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_sessions_started_total",
			Help: "Exam sessions created, by domain and kind (exam or adhoc)",
		},
		[]string{"domain", "kind"},
	)

	SessionsFinalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_sessions_finalized_total",
			Help: "Exam sessions completed, by domain and trigger",
		},
		[]string{"domain", "trigger"},
	)

	RetakesConsumed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_retakes_consumed_total",
			Help: "Retake attempts spent on session start",
		},
	)

	ScoreRatio = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exam_session_score_ratio",
			Help:    "Finalized score divided by the maximum score",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"domain"},
	)
)

var registerOnce sync.Once

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter, RequestDuration, SessionsStarted, SessionsFinalized, RetakesConsumed, ScoreRatio)
	})
}

// ObserveFinalize records one completed session.
func ObserveFinalize(domain, trigger string, score, maxScore float64) {
	SessionsFinalized.WithLabelValues(domain, trigger).Inc()
	if maxScore > 0 {
		ScoreRatio.WithLabelValues(domain).Observe(score / maxScore)
	}
}

// MetricsMiddleware counts requests and observes their latency per route.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

// PrometheusHandler serves the default registry.
func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
