package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	PhaseStartCell  = "start_cell"
	PhaseBorderNode = "border_node"
	PhaseActiveCell = "active_cell"

	StepPartition    = "partition"
	StepContour      = "contour"
	StepEccentricity = "eccentricity"
	StepBorderNodes  = "border_node_distances"

	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the collectors of preprocessing and isochrone queries.
type Metrics struct {
	QueriesTotal        *prometheus.CounterVec
	QueryPhaseDuration  *prometheus.HistogramVec
	ActiveCells         prometheus.Histogram
	FullyReachableCells prometheus.Histogram
	SettledNodes        *prometheus.HistogramVec

	PreprocessingDuration *prometheus.HistogramVec
	Cells                 prometheus.Gauge
	BorderNodes           prometheus.Gauge
}

// NewMetrics registers every collector on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "isochrone",
				Name:      "queries_total",
				Help:      "Total number of fast isochrone queries",
			},
			[]string{"status"},
		),
		QueryPhaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "isochrone",
				Name:      "phase_duration_seconds",
				Help:      "Duration of the query phases",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"phase"},
		),
		ActiveCells: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "isochrone",
				Name:      "active_cells",
				Help:      "Number of cells expanded node by node per query",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		FullyReachableCells: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "isochrone",
				Name:      "fully_reachable_cells",
				Help:      "Number of cells answered from eccentricities per query",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		SettledNodes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "isochrone",
				Name:      "settled_nodes",
				Help:      "Nodes settled per query phase",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"phase"},
		),
		PreprocessingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "preprocessing",
				Name:      "step_duration_seconds",
				Help:      "Duration of the preprocessing steps",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300, 900, 3600},
			},
			[]string{"step"},
		),
		Cells: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "preprocessing",
				Name:      "cells",
				Help:      "Number of cells of the last partition",
			},
		),
		BorderNodes: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "preprocessing",
				Name:      "border_nodes",
				Help:      "Number of border nodes of the last partition",
			},
		),
	}
}

func (m *Metrics) ObservePhase(phase string, d time.Duration, settledNodes int) {
	m.QueryPhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
	m.SettledNodes.WithLabelValues(phase).Observe(float64(settledNodes))
}

func (m *Metrics) RecordQuery(err error, activeCells, fullyReachableCells int) {
	if err != nil {
		m.QueriesTotal.WithLabelValues(StatusError).Inc()
		return
	}
	m.QueriesTotal.WithLabelValues(StatusOK).Inc()
	m.ActiveCells.Observe(float64(activeCells))
	m.FullyReachableCells.Observe(float64(fullyReachableCells))
}

func (m *Metrics) SetPartitionSize(cells, borderNodes int) {
	m.Cells.Set(float64(cells))
	m.BorderNodes.Set(float64(borderNodes))
}

// Timer measures one preprocessing step.
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

func NewTimer(histogram *prometheus.HistogramVec, labels ...string) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram.WithLabelValues(labels...),
	}
}

// ObserveDuration records and returns the time since NewTimer.
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	t.observer.Observe(duration.Seconds())
	return duration
}
