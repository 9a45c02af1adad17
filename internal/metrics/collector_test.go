package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()

	c.SnapshotProcessed()
	c.SnapshotProcessed()
	c.SnapshotSkipped()
	c.SignalEmitted()
	c.SignalRejected()
	c.SignalRejected()
	c.SignalRejected()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.snapshotsProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.snapshotsSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.signalsEmitted))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.signalsRejected))
}

func TestCollectorTradeStatusLabels(t *testing.T) {
	c := NewCollector()

	c.TradeClosed("stopped_out")
	c.TradeClosed("stopped_out")
	c.TradeClosed("took_profit")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.tradesClosed.WithLabelValues("stopped_out")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tradesClosed.WithLabelValues("took_profit")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.tradesClosed.WithLabelValues("closed")))
}

func TestCollectorEquityGauge(t *testing.T) {
	c := NewCollector()
	c.SetEquity(99400)
	assert.Equal(t, 99400.0, testutil.ToFloat64(c.equity))
	c.SetEquity(100200)
	assert.Equal(t, 100200.0, testutil.ToFloat64(c.equity))
}

func TestCollectorRegistryGathers(t *testing.T) {
	c := NewCollector()
	c.CandidateEvaluated()

	families, err := c.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["tierflow_snapshots_processed_total"])
	assert.True(t, names["tierflow_optimizer_candidates_total"])
	assert.True(t, names["tierflow_backtest_equity"])
}
