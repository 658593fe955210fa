// Package telemetry records HTTP server metrics for the dashboard API on a
// prometheus registry.
package telemetry

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var defaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5}

var defaultSizeBuckets = []float64{100, 1000, 10000, 100000, 1000000}

// HTTPMetrics holds the request collectors.
type HTTPMetrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	responseSize prometheus.Histogram
	active       prometheus.Gauge
}

// NewHTTPMetrics registers the HTTP server collectors on reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	f := promauto.With(reg)
	return &HTTPMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_server_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		}, []string{"method", "route", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_server_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern",
			Buckets: defaultDurationBuckets,
		}, []string{"method", "route"}),
		responseSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "http_server_response_size_bytes",
			Help:    "HTTP response body sizes",
			Buckets: defaultSizeBuckets,
		}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_server_active_requests",
			Help: "HTTP requests currently being served",
		}),
	}
}

// Middleware returns an Echo middleware that records every request. Routes
// are labelled by pattern, so /api/v1/panels/agents counts under
// /api/v1/panels/:panel. Every 404 shares the "unmatched" label to keep
// scanners from inflating cardinality.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.active.Inc()
			defer m.active.Dec()

			start := time.Now()
			err := next(c)
			duration := time.Since(start).Seconds()

			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}

			route := c.Path()
			if route == "" || status == http.StatusNotFound {
				route = "unmatched"
			}
			method := c.Request().Method

			m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.duration.WithLabelValues(method, route).Observe(duration)
			if size := c.Response().Size; size > 0 {
				m.responseSize.Observe(float64(size))
			}
			return err
		}
	}
}
