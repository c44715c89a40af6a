package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_http_requests_total",
			Help: "Total number of HTTP requests processed by the messaging service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messaging_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	liveActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "messaging_live_active_connections",
			Help: "Number of active live delivery channels.",
		},
		[]string{"transport"},
	)
	liveEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_live_events_total",
			Help: "Total number of live channel lifecycle events.",
		},
		[]string{"transport", "event"},
	)
	pushOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_push_outcomes_total",
			Help: "Outcomes of best-effort push attempts.",
		},
		[]string{"outcome"},
	)
	mediaUploadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "messaging_media_upload_duration_seconds",
			Help:    "Latency of media pipeline uploads.",
			Buckets: prometheus.DefBuckets,
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		liveActiveConnections,
		liveEventsTotal,
		pushOutcomesTotal,
		mediaUploadDuration,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request counts and latencies per route.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncLiveActive(transport string) {
	liveActiveConnections.WithLabelValues(transport).Inc()
}

func DecLiveActive(transport string) {
	liveActiveConnections.WithLabelValues(transport).Dec()
}

func IncLiveEvent(transport, event string) {
	liveEventsTotal.WithLabelValues(transport, event).Inc()
}

// Push outcomes: delivered, no_channel, closed, full.
func IncPushOutcome(outcome string) {
	pushOutcomesTotal.WithLabelValues(outcome).Inc()
}

func ObserveMediaUpload(d time.Duration) {
	mediaUploadDuration.Observe(d.Seconds())
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
