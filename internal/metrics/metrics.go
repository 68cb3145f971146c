// Package metrics exposes pipeline Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hnpipe"

// Metrics holds all pipeline metrics
type Metrics struct {
	registry *prometheus.Registry

	// Warehouse
	TableRows *prometheus.GaugeVec
	RowsAdded *prometheus.CounterVec

	// Runs
	StepDuration *prometheus.HistogramVec
	StepFailures *prometheus.CounterVec
	RunsTotal    *prometheus.CounterVec

	// Dashboard
	ReloadSignals  prometheus.Counter
	DashboardLoads prometheus.Counter
}

// New registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		TableRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_rows",
			Help:      "Row count of a warehouse table after the last step that touched it.",
		}, []string{"table"}),
		RowsAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_added_total",
			Help:      "Rows appended to a warehouse table.",
		}, []string{"table"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of pipeline steps.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"step"}),
		StepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Pipeline steps that returned an error.",
		}, []string{"step"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by variant and outcome.",
		}, []string{"variant", "status"}),
		ReloadSignals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reload_signals_total",
			Help:      "Reload signals written by the pipeline.",
		}),
		DashboardLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_reloads_total",
			Help:      "Times the dashboard reloaded top words after a signal change.",
		}),
	}

	reg.MustRegister(
		m.TableRows,
		m.RowsAdded,
		m.StepDuration,
		m.StepFailures,
		m.RunsTotal,
		m.ReloadSignals,
		m.DashboardLoads,
	)

	return m
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler for /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
