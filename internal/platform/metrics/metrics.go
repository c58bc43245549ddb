// Package metrics holds the prometheus collectors for the api and the parse pipeline
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketfeed"

// Metrics owns a private registry; a nil *Metrics records nothing
type Metrics struct {
	reg *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	files        *prometheus.CounterVec
	lines        *prometheus.CounterVec
	archives     *prometheus.CounterVec
	parseSeconds prometheus.Histogram
	markets      prometheus.Counter
}

// New registers every collector plus the go and process collectors
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "files_total",
			Help: "Files handled by operation and outcome.",
		}, []string{"op", "status"}),
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "feed", Name: "lines_total",
			Help: "Feed lines by reconstruction outcome.",
		}, []string{"outcome"}),
		archives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "archive", Name: "normalized_total",
			Help: "Archive payloads by detected method.",
		}, []string{"method"}),
		parseSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "feed", Name: "parse_duration_seconds",
			Help:    "Time to normalize and reconstruct one file.",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		}),
		markets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "feed", Name: "markets_total",
			Help: "Markets reconstructed across all parsed files.",
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.files, m.lines, m.archives, m.parseSeconds, m.markets,
	)
	return m
}

// Registry exposes the underlying registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveHTTP matches the access log observe hook
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// File counts one file through op ("upload", "parse", "export") with status ("ok", "error")
func (m *Metrics) File(op, status string) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(op, status).Inc()
}

// Lines adds n lines under outcome ("parsed", "skipped", "unkeyed", "invalid_utf8")
func (m *Metrics) Lines(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.lines.WithLabelValues(outcome).Add(float64(n))
}

// Archive counts one normalized payload
func (m *Metrics) Archive(method string) {
	if m == nil {
		return
	}
	m.archives.WithLabelValues(method).Inc()
}

// Parsed records one finished parse
func (m *Metrics) Parsed(elapsed time.Duration, markets int) {
	if m == nil {
		return
	}
	m.parseSeconds.Observe(elapsed.Seconds())
	m.markets.Add(float64(markets))
}
