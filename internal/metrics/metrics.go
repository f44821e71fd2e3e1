// Package metrics holds the Prometheus collectors for the alerting engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for ingestion, alerting and delivery.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ReadingsTotal     *prometheus.CounterVec
	BreachesTotal     *prometheus.CounterVec
	AlertTransitions  *prometheus.CounterVec
	IngestDuration    prometheus.Histogram
	DeliveryPublished prometheus.Counter
	DeliveryDropped   prometheus.Counter
	SessionsAttached  prometheus.Gauge
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New registers and returns the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReadingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wardwatch_readings_total",
			Help: "Vital-sign readings ingested by source and result.",
		}, []string{"source", "result"}),
		BreachesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wardwatch_breaches_total",
			Help: "Threshold breaches detected by channel and severity.",
		}, []string{"channel", "severity"}),
		AlertTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wardwatch_alert_transitions_total",
			Help: "Alert store transitions: created, escalated, refreshed, acknowledged.",
		}, []string{"transition"}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wardwatch_ingest_duration_seconds",
			Help:    "Time to resolve, evaluate and record one reading.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms .. ~1s
		}),
		DeliveryPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wardwatch_delivery_published_total",
			Help: "Messages enqueued to clinician sessions.",
		}),
		DeliveryDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wardwatch_delivery_dropped_total",
			Help: "Messages dropped from full session queues.",
		}),
		SessionsAttached: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wardwatch_sessions_attached",
			Help: "Clinician sessions currently attached to the hub.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wardwatch_http_requests_total",
			Help: "HTTP requests by method, route template and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wardwatch_http_request_duration_seconds",
			Help:    "HTTP request latency by route template.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.ReadingsTotal,
		m.BreachesTotal,
		m.AlertTransitions,
		m.IngestDuration,
		m.DeliveryPublished,
		m.DeliveryDropped,
		m.SessionsAttached,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	return m
}

const (
	TransitionCreated      = "created"
	TransitionEscalated    = "escalated"
	TransitionRefreshed    = "refreshed"
	TransitionAcknowledged = "acknowledged"
)

func (m *Metrics) Reading(source, result string) {
	if m == nil {
		return
	}
	m.ReadingsTotal.WithLabelValues(source, result).Inc()
}

func (m *Metrics) Breach(channel, severity string) {
	if m == nil {
		return
	}
	m.BreachesTotal.WithLabelValues(channel, severity).Inc()
}

func (m *Metrics) Transition(name string) {
	if m == nil {
		return
	}
	m.AlertTransitions.WithLabelValues(name).Inc()
}

func (m *Metrics) ObserveIngest(seconds float64) {
	if m == nil {
		return
	}
	m.IngestDuration.Observe(seconds)
}

func (m *Metrics) Published() {
	if m == nil {
		return
	}
	m.DeliveryPublished.Inc()
}

func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.DeliveryDropped.Inc()
}

func (m *Metrics) SessionAttached() {
	if m == nil {
		return
	}
	m.SessionsAttached.Inc()
}

func (m *Metrics) SessionDetached() {
	if m == nil {
		return
	}
	m.SessionsAttached.Dec()
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(seconds)
}
