// Package metrics exposes Prometheus collectors for the explorer.
//
// All collectors live on a dedicated registry so tests can create as many
// Metrics values as they like. Every Record method is safe on a nil
// *Metrics, which lets packages run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "explorer"

// Metrics holds every collector the service records to.
type Metrics struct {
	registry *prometheus.Registry

	LoadsTotal     *prometheus.CounterVec
	LoadDuration   *prometheus.HistogramVec
	RowsIngested   prometheus.Counter
	QueriesTotal   *prometheus.CounterVec
	QueryDuration  prometheus.Histogram
	ActiveSessions prometheus.Gauge
	ActiveLoads    prometheus.Gauge
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		LoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "loads_total",
				Help:      "Dataset loads by source format and outcome",
			},
			[]string{"format", "status"},
		),

		LoadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "load_duration_seconds",
				Help:      "Time spent loading a dataset",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"format"},
		),

		RowsIngested: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "rows_total",
				Help:      "Rows in successfully loaded datasets",
			},
		),

		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "queries_total",
				Help:      "Answered queries by matched intent",
			},
			[]string{"intent"},
		),

		QueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "duration_seconds",
				Help:      "Time to answer a query, including simulated latency",
				Buckets:   prometheus.DefBuckets,
			},
		),

		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "active",
				Help:      "Sessions currently held in memory",
			},
		),

		ActiveLoads: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "active_loads",
				Help:      "Loads currently holding a limiter slot",
			},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "status"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.LoadsTotal,
		m.LoadDuration,
		m.RowsIngested,
		m.QueriesTotal,
		m.QueryDuration,
		m.ActiveSessions,
		m.ActiveLoads,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordLoad records one finished load. rows is ignored unless status is
// "success".
func (m *Metrics) RecordLoad(format, status string, d time.Duration, rows int) {
	if m == nil {
		return
	}
	m.LoadsTotal.WithLabelValues(format, status).Inc()
	m.LoadDuration.WithLabelValues(format).Observe(d.Seconds())
	if status == "success" {
		m.RowsIngested.Add(float64(rows))
	}
}

// RecordQuery records one answered query.
func (m *Metrics) RecordQuery(intent string, d time.Duration) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(intent).Inc()
	m.QueryDuration.Observe(d.Seconds())
}

// SetActiveSessions sets the in-memory session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// SetActiveLoads sets the in-flight load gauge.
func (m *Metrics) SetActiveLoads(n int) {
	if m == nil {
		return
	}
	m.ActiveLoads.Set(float64(n))
}

// RecordHTTP records one served request.
func (m *Metrics) RecordHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
