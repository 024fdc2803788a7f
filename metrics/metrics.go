// Package metrics owns the prometheus registry of the service and the
// collectors the other components report into.
package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portal"

type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	sessionOps    *prometheus.CounterVec
	cacheDegraded prometheus.Gauge
	cacheFlips    prometheus.Counter
	purged        prometheus.Counter
	purgeErrors   prometheus.Counter
}

type Option func(*Metrics)

func WithGoCollector() Option {
	return func(m *Metrics) {
		m.registry.MustRegister(collectors.NewGoCollector(
			collectors.WithGoCollectorRuntimeMetrics(collectors.GoRuntimeMetricsRule{Matcher: regexp.MustCompile("/.*")}),
		))
	}
}

func WithBuildInfoCollector() Option {
	return func(m *Metrics) {
		m.registry.MustRegister(collectors.NewBuildInfoCollector())
	}
}

func New(opts ...Option) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		sessionOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "operations_total",
			Help:      "Session operations by outcome.",
		}, []string{"op", "outcome"}),
		cacheDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "degraded",
			Help:      "1 while the cache is served from process memory.",
		}),
		cacheFlips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "mode_changes_total",
			Help:      "Switches between the remote and the in-process cache.",
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credentials",
			Name:      "purged_total",
			Help:      "Expired credentials deleted by the purge job.",
		}),
		purgeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credentials",
			Name:      "purge_failures_total",
			Help:      "Purge runs that failed.",
		}),
	}
	m.registry.MustRegister(m.requests, m.latency, m.sessionOps, m.cacheDegraded, m.cacheFlips, m.purged, m.purgeErrors)

	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Middleware records every request under its route template so that ids in
// the path do not explode the label set.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// ObserveSession matches the session manager observer signature.
func (m *Metrics) ObserveSession(op, outcome string) {
	m.sessionOps.WithLabelValues(op, outcome).Inc()
}

// CacheMode matches the cache state listener signature.
func (m *Metrics) CacheMode(degraded bool) {
	if degraded {
		m.cacheDegraded.Set(1)
	} else {
		m.cacheDegraded.Set(0)
	}
	m.cacheFlips.Inc()
}

// PurgeResult matches the purger hook signature.
func (m *Metrics) PurgeResult(n int64, err error) {
	if err != nil {
		m.purgeErrors.Inc()
		return
	}
	m.purged.Add(float64(n))
}
