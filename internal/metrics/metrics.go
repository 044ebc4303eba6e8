// Package metrics holds the Prometheus counters for the trading core.
// Exposure (HTTP endpoint, push) is owned by the embedding application; the
// core only increments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics for the trading core. Counters are
// registered on a private registry so multiple engines can coexist in one
// process.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   prometheus.Counter
	RequestErrors   prometheus.Counter
	IterationsTotal prometheus.Counter
	IterationErrors prometheus.Counter
	SignalsTotal    *prometheus.CounterVec
	TradesTotal     *prometheus.CounterVec
	AlertsTotal     prometheus.Counter
}

// NewMetrics registers and returns the core metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iskra_marketdata_requests_total",
			Help: "Total market data requests issued",
		}),
		RequestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iskra_marketdata_request_errors_total",
			Help: "Market data requests that failed after retries",
		}),
		IterationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iskra_engine_iterations_total",
			Help: "Total trading loop iterations",
		}),
		IterationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iskra_engine_iteration_errors_total",
			Help: "Trading loop iterations that failed",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iskra_signals_total",
			Help: "Signals generated (by type)",
		}, []string{"type"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iskra_trades_total",
			Help: "Simulated fills (by side)",
		}, []string{"side"}),
		AlertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iskra_alerts_total",
			Help: "Anomaly and failure alerts emitted",
		}),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestErrors,
		m.IterationsTotal,
		m.IterationErrors,
		m.SignalsTotal,
		m.TradesTotal,
		m.AlertsTotal,
	)

	return m
}

// Registry returns the registry holding the core metrics, for the embedding
// application to expose.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
