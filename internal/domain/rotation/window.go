package rotation

import "time"

// Observation is one snapshot's worth of tier aggregates kept in the rolling
// window: total traded volume and the period return of each tier's
// cap-weighted price index.
type Observation struct {
	Timestamp   time.Time
	TierVolumes []float64
	TierReturns []float64
}

// Window is a fixed-capacity FIFO ring buffer of observations. Eviction is
// strict FIFO and updates are O(1); the buffer never reallocates after
// construction.
type Window struct {
	buf   []Observation
	head  int // index of the oldest observation
	count int
}

// NewWindow creates a window holding at most capacity observations.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]Observation, capacity)}
}

// Push appends an observation, evicting the oldest once the window is full.
func (w *Window) Push(obs Observation) {
	if w.count < len(w.buf) {
		w.buf[(w.head+w.count)%len(w.buf)] = obs
		w.count++
		return
	}
	w.buf[w.head] = obs
	w.head = (w.head + 1) % len(w.buf)
}

// Len returns the number of observations currently held.
func (w *Window) Len() int { return w.count }

// Full reports whether the window has reached capacity.
func (w *Window) Full() bool { return w.count == len(w.buf) }

// Capacity returns the fixed window capacity.
func (w *Window) Capacity() int { return len(w.buf) }

// At returns the i-th observation in chronological order (0 = oldest).
func (w *Window) At(i int) Observation {
	return w.buf[(w.head+i)%len(w.buf)]
}

// VolumeSeries extracts the chronological volume series for one tier.
func (w *Window) VolumeSeries(tier int) []float64 {
	series := make([]float64, 0, w.count)
	for i := 0; i < w.count; i++ {
		obs := w.At(i)
		if tier < len(obs.TierVolumes) {
			series = append(series, obs.TierVolumes[tier])
		}
	}
	return series
}

// ReturnSeries extracts the chronological return series for one tier.
func (w *Window) ReturnSeries(tier int) []float64 {
	series := make([]float64, 0, w.count)
	for i := 0; i < w.count; i++ {
		obs := w.At(i)
		if tier < len(obs.TierReturns) {
			series = append(series, obs.TierReturns[tier])
		}
	}
	return series
}

// Reset drops all observations without reallocating.
func (w *Window) Reset() {
	w.head = 0
	w.count = 0
}
