package rotation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obsAt(i int, vol float64) Observation {
	return Observation{
		Timestamp:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
		TierVolumes: []float64{vol},
		TierReturns: []float64{vol / 100},
	}
}

func TestWindowFIFOEviction(t *testing.T) {
	w := NewWindow(3)
	assert.Equal(t, 3, w.Capacity())
	assert.False(t, w.Full())

	for i := 0; i < 3; i++ {
		w.Push(obsAt(i, float64(i)))
	}
	require.True(t, w.Full())
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, []float64{0, 1, 2}, w.VolumeSeries(0))

	// Pushing past capacity evicts strictly oldest-first.
	w.Push(obsAt(3, 3))
	w.Push(obsAt(4, 4))
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, []float64{2, 3, 4}, w.VolumeSeries(0))
	assert.Equal(t, obsAt(2, 2).Timestamp, w.At(0).Timestamp)
	assert.Equal(t, obsAt(4, 4).Timestamp, w.At(2).Timestamp)
}

func TestWindowPartialFill(t *testing.T) {
	w := NewWindow(5)
	w.Push(obsAt(0, 10))
	w.Push(obsAt(1, 20))

	assert.Equal(t, 2, w.Len())
	assert.False(t, w.Full())
	assert.Equal(t, []float64{10, 20}, w.VolumeSeries(0))
	assert.Equal(t, []float64{0.1, 0.2}, w.ReturnSeries(0))
}

func TestWindowMissingTierIndex(t *testing.T) {
	w := NewWindow(2)
	w.Push(obsAt(0, 10))
	assert.Empty(t, w.VolumeSeries(5))
	assert.Empty(t, w.ReturnSeries(5))
}

func TestWindowReset(t *testing.T) {
	w := NewWindow(2)
	w.Push(obsAt(0, 1))
	w.Push(obsAt(1, 2))
	require.True(t, w.Full())

	w.Reset()
	assert.Equal(t, 0, w.Len())
	assert.False(t, w.Full())
	assert.Equal(t, 2, w.Capacity())

	w.Push(obsAt(2, 3))
	assert.Equal(t, []float64{3}, w.VolumeSeries(0))
}
