// Package metrics exposes the coordinator's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopradar",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shopradar",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Routing metrics
	RouteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopradar",
		Subsystem: "routing",
		Name:      "requests_total",
		Help:      "Route computations by result, including suppressed ones",
	}, []string{"result"})

	RouteRefreshLag = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "shopradar",
		Subsystem: "routing",
		Name:      "provider_duration_seconds",
		Help:      "Latency of the routing provider",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// Location metrics
	LocateAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopradar",
		Subsystem: "location",
		Name:      "locate_attempts_total",
		Help:      "One-shot locate attempts by accuracy mode and outcome",
	}, []string{"accuracy", "outcome"})

	PositionReadings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shopradar",
		Subsystem: "location",
		Name:      "readings_total",
		Help:      "Device position readings ingested",
	})

	PositionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopradar",
		Subsystem: "location",
		Name:      "failures_total",
		Help:      "Device geolocation failures by category",
	}, []string{"category"})

	ActiveWatches = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "shopradar",
		Subsystem: "location",
		Name:      "active_watches",
		Help:      "Position watches currently running",
	})

	// Marker metrics
	MarkerOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopradar",
		Subsystem: "markers",
		Name:      "operations_total",
		Help:      "Marker instructions emitted by operation",
	}, []string{"op"})

	ActiveMarkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "shopradar",
		Subsystem: "markers",
		Name:      "active",
		Help:      "Marker handles currently alive",
	})

	// Directory metrics
	ShopFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopradar",
		Subsystem: "directory",
		Name:      "fetches_total",
		Help:      "Shop directory fetches by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	// Session metrics
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "shopradar",
		Subsystem: "sessions",
		Name:      "active",
		Help:      "Tracking sessions currently open",
	})

	InstructionsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shopradar",
		Subsystem: "sessions",
		Name:      "instructions_dropped_total",
		Help:      "Render instructions dropped due to a full session queue",
	})
)

// Middleware records request count and latency per route.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			method := c.Request().Method
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
