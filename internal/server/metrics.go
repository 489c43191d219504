package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dyne/cifrado/internal/cipher"
)

// Metrics holds the Prometheus collectors for one Server. Each Server owns a
// private registry so tests can build many servers side by side.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	transformsTotal     *prometheus.CounterVec

	registry *prometheus.Registry
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cifrado_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cifrado_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		transformsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cifrado_transforms_total",
				Help: "Texts transformed by mode and input source",
			},
			[]string{"mode", "source"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.transformsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Transform counts one call into the cipher.
func (m *Metrics) Transform(mode cipher.Mode, source string) {
	m.transformsTotal.WithLabelValues(mode.String(), source).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, route, status string, d time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the private registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records count and latency for every request passing through.
func (m *Metrics) Middleware(metricsPath string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.RecordHTTPRequest(r.Method, routeName(r.URL.Path, metricsPath), strconv.Itoa(rec.status), time.Since(start))
	})
}

// routeName keeps the route label bounded: unknown paths collapse to "other".
func routeName(path, metricsPath string) string {
	switch path {
	case "/", "/healthz", "/encode", "/decode", "/process":
		return path
	case metricsPath:
		return "/metrics"
	default:
		return "other"
	}
}
