// Package metrics exposes Prometheus instrumentation for the responder and the
// orchestrated duties.
//
// All recording methods are nil-safe: a nil *Metrics records nothing, so
// components can be built without metrics at zero cost.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection results used as the "result" label of
// spoticord_responder_connections_total.
const (
	ResultAccepted  = "accepted"
	ResultRejected  = "rejected"
	ResultReadError = "read_error"
	ResultWriteErr  = "write_error"
	ResultServed    = "served"
)

// Metrics holds the process collectors.
type Metrics struct {
	registry *prometheus.Registry

	connections  *prometheus.CounterVec
	inFlight     *prometheus.GaugeVec
	queueDepth   *prometheus.GaugeVec
	dutyOutcomes *prometheus.CounterVec
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry: reg,
		connections: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "spoticord_responder_connections_total",
				Help: "Responder connections by variant and result",
			},
			[]string{"variant", "result"},
		),
		inFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "spoticord_responder_in_flight",
				Help: "Connections currently being answered by the responder",
			},
			[]string{"variant"},
		),
		queueDepth: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "spoticord_responder_queue_depth",
				Help: "Accepted connections waiting for a responder worker",
			},
			[]string{"variant"},
		),
		dutyOutcomes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "spoticord_duty_outcomes_total",
				Help: "Completed duties by name and result (ok, error)",
			},
			[]string{"duty", "result"},
		),
	}
}

// Registry returns the registry backing these collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordConnection counts a connection outcome for the given responder variant.
func (m *Metrics) RecordConnection(variant, result string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(variant, result).Inc()
}

// AddInFlight adjusts the in-flight gauge by delta.
func (m *Metrics) AddInFlight(variant string, delta float64) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(variant).Add(delta)
}

// SetQueueDepth records the number of queued connections.
func (m *Metrics) SetQueueDepth(variant string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(variant).Set(float64(depth))
}

// RecordDuty counts a finished duty.
func (m *Metrics) RecordDuty(duty string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.dutyOutcomes.WithLabelValues(duty, result).Inc()
}
