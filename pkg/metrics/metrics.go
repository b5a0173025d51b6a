// Package metrics exposes Prometheus instrumentation for the API server,
// the designer core, and the execution engine.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds metrics configuration.
type Config struct {
	Enabled   bool   `json:"enabled"`
	Path      string `json:"path"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Namespace string `json:"namespace"`
}

// DefaultConfig returns the default metrics configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		Path:      "/metrics",
		Host:      "0.0.0.0",
		Port:      9090,
		Namespace: "flowcanvas",
	}
}

// Metrics holds every collector the service records into.
type Metrics struct {
	config   *Config
	registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Designer operations
	DesignOperationsTotal *prometheus.CounterVec
	DesignsTotal          prometheus.Gauge
	VersionsCreatedTotal  *prometheus.CounterVec

	// Executions
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	ExecutionsActive  prometheus.Gauge

	// Database
	DBQueriesTotal  *prometheus.CounterVec
	DBQueryDuration *prometheus.HistogramVec

	// Queue
	QueueMessagesTotal *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry.
func New(config *Config) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}

	m := &Metrics{
		config:   config,
		registry: prometheus.NewRegistry(),
	}

	ns := config.Namespace

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	m.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	m.HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "http_requests_in_flight",
		Help:      "HTTP requests currently being served.",
	})

	m.DesignOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "design_operations_total",
		Help:      "Design mutations by operation and outcome.",
	}, []string{"operation", "status"})

	m.DesignsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "designs_total",
		Help:      "Number of workflow designs known to the service.",
	})

	m.VersionsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "versions_created_total",
		Help:      "Version snapshots created, by trigger.",
	}, []string{"trigger"})

	m.ExecutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "executions_total",
		Help:      "Executions reaching a terminal state, by status.",
	}, []string{"status"})

	m.ExecutionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "execution_duration_seconds",
		Help:      "Wall-clock duration of terminal executions.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
	}, []string{"status"})

	m.ExecutionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "executions_active",
		Help:      "Executions currently pending or running.",
	})

	m.DBQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "db_queries_total",
		Help:      "Database queries by operation, table and outcome.",
	}, []string{"operation", "table", "status"})

	m.DBQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "db_query_duration_seconds",
		Help:      "Database query latency.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"operation", "table"})

	m.QueueMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "queue_messages_total",
		Help:      "Event broker messages by topic and outcome.",
	}, []string{"topic", "status"})

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.DesignOperationsTotal,
		m.DesignsTotal,
		m.VersionsCreatedTotal,
		m.ExecutionsTotal,
		m.ExecutionDuration,
		m.ExecutionsActive,
		m.DBQueriesTotal,
		m.DBQueryDuration,
		m.QueueMessagesTotal,
	)

	return m
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordDesignOperation records a design mutation outcome.
func (m *Metrics) RecordDesignOperation(operation, status string) {
	m.DesignOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordVersionCreated records a snapshot creation. trigger is "manual",
// "rollback" or "auto".
func (m *Metrics) RecordVersionCreated(trigger string) {
	m.VersionsCreatedTotal.WithLabelValues(trigger).Inc()
}

// RecordExecution records a terminal execution.
func (m *Metrics) RecordExecution(status string, duration time.Duration) {
	m.ExecutionsTotal.WithLabelValues(status).Inc()
	m.ExecutionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordDBQuery records a database query outcome.
func (m *Metrics) RecordDBQuery(operation, table, status string, duration time.Duration) {
	m.DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordQueueMessage records an event broker publish/consume outcome.
func (m *Metrics) RecordQueueMessage(topic, status string) {
	m.QueueMessagesTotal.WithLabelValues(topic, status).Inc()
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var (
	globalMetrics *Metrics
	globalOnce    sync.Once
)

// Initialize sets up the global metrics instance.
func Initialize(config *Config) *Metrics {
	globalOnce.Do(func() {
		globalMetrics = New(config)
	})
	return globalMetrics
}

// GetGlobal returns the global metrics instance, initializing with defaults
// when Initialize was never called.
func GetGlobal() *Metrics {
	if globalMetrics == nil {
		return Initialize(DefaultConfig())
	}
	return globalMetrics
}
