// Package metrics holds the prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config selects the metric name prefix and the default collectors.
type Config struct {
	Namespace        string
	CollectGoMetrics bool
	CollectProcess   bool
}

// DefaultConfig returns the production collector set.
func DefaultConfig() Config {
	return Config{Namespace: "productadmin", CollectGoMetrics: true, CollectProcess: true}
}

// Metrics owns a private registry and every collector registered on it.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	saves          *prometheus.CounterVec
	saveDuration   *prometheus.HistogramVec
	searchDuration *prometheus.HistogramVec
	sessions       prometheus.Gauge
}

func New(cfg Config) *Metrics {
	reg := prometheus.NewRegistry()
	if cfg.CollectGoMetrics {
		reg.MustRegister(collectors.NewGoCollector())
	}
	if cfg.CollectProcess {
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "product_detail",
			Name:      "saves_total",
			Help:      "Product detail saves by outcome.",
		}, []string{"outcome"}),
		saveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "product_detail",
			Name:      "save_duration_seconds",
			Help:      "Product detail save latency by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		searchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "listing",
			Name:      "search_duration_seconds",
			Help:      "List search latency by entity and result.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity", "result"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "product_detail",
			Name:      "open_sessions",
			Help:      "Open product detail sessions.",
		}),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.saves, m.saveDuration, m.searchDuration, m.sessions)
	return m
}

// Registry exposes the registry for gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) ObserveSave(outcome string, duration time.Duration) {
	m.saves.WithLabelValues(outcome).Inc()
	m.saveDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) ObserveSearch(entity string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.searchDuration.WithLabelValues(entity, result).Observe(duration.Seconds())
}

// SessionOpened and SessionClosed track the open session gauge.
func (m *Metrics) SessionOpened() { m.sessions.Inc() }

func (m *Metrics) SessionClosed() { m.sessions.Dec() }
