// Package metrics provides Prometheus instrumentation shared by the server
// and worker processes: HTTP request metrics, queue depth, and per-result
// judging counters.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oj",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "oj",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "oj",
			Name:      "queue_depth",
			Help:      "Number of jobs currently pending or in flight",
		},
		[]string{"queue", "state"},
	)

	JudgingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "oj",
			Name:      "judging_duration_seconds",
			Help:      "Duration of a full judging pipeline run",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"language"},
	)

	JudgingResultTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oj",
			Name:      "judging_result_total",
			Help:      "Total number of completed jobs by final result",
		},
		[]string{"language", "result"},
	)

	CaseMemoryBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "oj",
			Name:      "case_memory_bytes",
			Help:      "Observed peak memory usage per judged case",
			Buckets:   prometheus.ExponentialBuckets(1<<20, 2, 12),
		},
		[]string{"language"},
	)
)

// Middleware records HTTP request count and latency for every gin route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}
		status := strconv.Itoa(c.Writer.Status())
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// RecordJudging records the outcome of one completed job.
func RecordJudging(language string, result string, duration time.Duration) {
	JudgingDuration.WithLabelValues(language).Observe(duration.Seconds())
	JudgingResultTotal.WithLabelValues(language, result).Inc()
}

// RecordCaseMemory observes the peak memory usage of one judged case.
func RecordCaseMemory(language string, bytes uint64) {
	CaseMemoryBytes.WithLabelValues(language).Observe(float64(bytes))
}

// SetQueueDepth reports the current size of a named queue/state pair; called
// periodically by the reclaimer loop.
func SetQueueDepth(queue, state string, depth int64) {
	QueueDepth.WithLabelValues(queue, state).Set(float64(depth))
}
