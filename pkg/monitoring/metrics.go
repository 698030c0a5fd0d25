package monitoring

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Prometheus metrics for the ad lifecycle service
var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// Load metrics
	AdLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ad_loads_total",
			Help: "Total number of ad load attempts by outcome",
		},
		[]string{"format", "result"},
	)

	AdLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ad_load_duration_seconds",
			Help:    "Time from load request to load outcome",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"format"},
	)

	AdLoadRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ad_load_retries_total",
			Help: "Total number of delayed load retries scheduled",
		},
		[]string{"format"},
	)

	// Show metrics
	AdShowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ad_shows_total",
			Help: "Total number of show requests by outcome",
		},
		[]string{"format", "result"},
	)

	AdsPresenting = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ads_presenting",
			Help: "Number of ads currently on screen",
		},
		[]string{"format"},
	)

	// Revenue metrics
	PaidImpressionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ad_paid_impressions_total",
			Help: "Total number of paid impressions",
		},
		[]string{"format", "currency"},
	)

	AdRevenueTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ad_revenue_total",
			Help: "Accumulated impression revenue",
		},
		[]string{"format", "currency"},
	)

	// Configuration metrics
	ConfigWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ad_config_warnings_total",
			Help: "Total number of configuration warnings",
		},
		[]string{"kind"},
	)

	RegisteredUnits = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ad_registered_units",
			Help: "Number of registered ad units",
		},
		[]string{"format"},
	)

	// Event pipeline metrics
	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ad_events_dropped_total",
			Help: "Total number of events dropped by a sink",
		},
		[]string{"sink"},
	)

	EventWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ad_event_write_duration_seconds",
			Help:    "Event batch write time",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"sink"},
	)

	EventWriteErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ad_event_write_errors_total",
			Help: "Total number of failed event batch writes",
		},
		[]string{"sink"},
	)
)

// MetricsMiddleware creates a Gin middleware for collecting HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		// Normalize path to avoid high cardinality
		normalizedPath := normalizePath(path)

		HTTPRequestsTotal.WithLabelValues(method, normalizedPath, status).Inc()
		HTTPRequestDuration.WithLabelValues(method, normalizedPath, status).Observe(duration)
	}
}

// normalizePath reduces cardinality by grouping unit and native paths
func normalizePath(path string) string {
	switch {
	case path == "/", path == "/health", path == "/ready", path == "/metrics":
		return path
	case path == "/api/v1/units":
		return path
	case strings.HasPrefix(path, "/api/v1/units/"):
		switch {
		case strings.HasSuffix(path, "/load"):
			return "/api/v1/units/{format}/{name}/load"
		case strings.HasSuffix(path, "/show"):
			return "/api/v1/units/{format}/{name}/show"
		}
		return "/api/v1/units/{format}/{name}"
	case strings.HasPrefix(path, "/api/v1/natives/"):
		return "/api/v1/natives/{name}"
	case strings.HasPrefix(path, "/api/v1/events"):
		return "/api/v1/events"
	}
	return "/other"
}

// PrometheusHandler returns the Prometheus metrics handler
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// RecordLoad records the outcome of a load cycle
func RecordLoad(format, result string, duration time.Duration) {
	AdLoadsTotal.WithLabelValues(format, result).Inc()
	AdLoadDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// RecordRetryScheduled records a delayed retry
func RecordRetryScheduled(format string) {
	AdLoadRetriesTotal.WithLabelValues(format).Inc()
}

// RecordShow records the outcome of a show request
func RecordShow(format, result string) {
	AdShowsTotal.WithLabelValues(format, result).Inc()
}

// SetPresenting marks an ad of the format as on or off screen
func SetPresenting(format string, presenting bool) {
	if presenting {
		AdsPresenting.WithLabelValues(format).Inc()
		return
	}
	AdsPresenting.WithLabelValues(format).Dec()
}

// RecordPaidImpression records impression revenue
func RecordPaidImpression(format, currency string, value decimal.Decimal) {
	PaidImpressionsTotal.WithLabelValues(format, currency).Inc()
	AdRevenueTotal.WithLabelValues(format, currency).Add(value.InexactFloat64())
}

// RecordConfigWarning records a non-fatal configuration problem
func RecordConfigWarning(kind string) {
	ConfigWarningsTotal.WithLabelValues(kind).Inc()
}

// IncRegisteredUnits counts a newly registered unit
func IncRegisteredUnits(format string) {
	RegisteredUnits.WithLabelValues(format).Inc()
}

// RecordEventsDropped records events a sink could not accept
func RecordEventsDropped(sink string, count int) {
	EventsDroppedTotal.WithLabelValues(sink).Add(float64(count))
}

// RecordEventWrite records an event batch write
func RecordEventWrite(sink string, duration time.Duration, err error) {
	EventWriteDuration.WithLabelValues(sink).Observe(duration.Seconds())
	if err != nil {
		EventWriteErrorsTotal.WithLabelValues(sink).Inc()
	}
}
