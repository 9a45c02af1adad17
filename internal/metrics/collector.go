package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes pipeline, backtest, and optimizer counters to
// Prometheus. It satisfies the pipeline Observer contract so it can be
// attached directly to a run.
type Collector struct {
	registry *prometheus.Registry

	snapshotsProcessed prometheus.Counter
	snapshotsSkipped   prometheus.Counter
	signalsEmitted     prometheus.Counter
	signalsRejected    prometheus.Counter
	tradesClosed       *prometheus.CounterVec
	candidatesDone     prometheus.Counter
	equity             prometheus.Gauge
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		snapshotsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tierflow_snapshots_processed_total",
			Help: "Snapshots that passed validation and entered the pipeline",
		}),
		snapshotsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tierflow_snapshots_skipped_total",
			Help: "Snapshots dropped for validation or insufficient-data reasons",
		}),
		signalsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tierflow_signals_emitted_total",
			Help: "Rotation signals accepted by the validation gate",
		}),
		signalsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tierflow_signals_rejected_total",
			Help: "Rotation signals rejected by the validation gate",
		}),
		tradesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tierflow_trades_closed_total",
			Help: "Closed backtest trades by terminal status",
		}, []string{"status"}),
		candidatesDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tierflow_optimizer_candidates_total",
			Help: "Optimizer candidate evaluations completed",
		}),
		equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tierflow_backtest_equity",
			Help: "Latest simulated equity value",
		}),
	}

	c.registry.MustRegister(
		c.snapshotsProcessed,
		c.snapshotsSkipped,
		c.signalsEmitted,
		c.signalsRejected,
		c.tradesClosed,
		c.candidatesDone,
		c.equity,
	)
	return c
}

// Registry returns the collector's registry for HTTP exposition.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// SnapshotProcessed implements the pipeline Observer contract.
func (c *Collector) SnapshotProcessed() { c.snapshotsProcessed.Inc() }

// SnapshotSkipped implements the pipeline Observer contract.
func (c *Collector) SnapshotSkipped() { c.snapshotsSkipped.Inc() }

// SignalEmitted implements the pipeline Observer contract.
func (c *Collector) SignalEmitted() { c.signalsEmitted.Inc() }

// SignalRejected implements the pipeline Observer contract.
func (c *Collector) SignalRejected() { c.signalsRejected.Inc() }

// TradeClosed records a closed trade by terminal status.
func (c *Collector) TradeClosed(status string) {
	c.tradesClosed.WithLabelValues(status).Inc()
}

// CandidateEvaluated records one completed optimizer candidate.
func (c *Collector) CandidateEvaluated() { c.candidatesDone.Inc() }

// SetEquity updates the equity gauge.
func (c *Collector) SetEquity(value float64) { c.equity.Set(value) }
