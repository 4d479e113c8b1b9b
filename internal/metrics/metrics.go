// Package metrics records route and import activity in a private
// Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Route outcomes.
const (
	OutcomeFound           = "found"
	OutcomeUnknownEndpoint = "unknown_endpoint"
	OutcomeUnreachable     = "unreachable"
	OutcomeMalformed       = "malformed"
	OutcomeError           = "error"
)

// Collector captures navigation metrics.
type Collector struct {
	registry      *prometheus.Registry
	routesTotal   *prometheus.CounterVec
	routeDuration *prometheus.HistogramVec
	routeLength   *prometheus.HistogramVec
	importsTotal  *prometheus.CounterVec
}

// NewCollector initializes a new metrics registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	collector := &Collector{
		registry: registry,
		routesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "wayfinder_routes_total", Help: "Total number of route requests"},
			[]string{"plan", "outcome"},
		),
		routeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wayfinder_route_duration_seconds",
				Help:    "Route search duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"plan"},
		),
		routeLength: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wayfinder_route_length",
				Help:    "Total edge length of found routes",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"plan"},
		),
		importsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "wayfinder_plans_imported_total", Help: "Total number of plan imports"},
			[]string{"status"},
		),
	}

	registry.MustRegister(collector.routesTotal, collector.routeDuration, collector.routeLength, collector.importsTotal)
	return collector
}

// ObserveRoute records a route outcome. length is only recorded for found routes.
func (c *Collector) ObserveRoute(plan, outcome string, duration time.Duration, length float64) {
	if c == nil {
		return
	}
	c.routesTotal.WithLabelValues(plan, outcome).Inc()
	c.routeDuration.WithLabelValues(plan).Observe(duration.Seconds())
	if outcome == OutcomeFound {
		c.routeLength.WithLabelValues(plan).Observe(length)
	}
}

// ObserveImport records a plan import attempt.
func (c *Collector) ObserveImport(ok bool) {
	if c == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	c.importsTotal.WithLabelValues(status).Inc()
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
