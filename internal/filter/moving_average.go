package filter

import "gonum.org/v1/gonum/stat"

// StandardGravity in m/s².
const StandardGravity = 9.80665

// DefaultWindow is the moving-average window used for linear acceleration.
const DefaultWindow = 5

// MovingAverage keeps the last n values in a ring and reports their mean.
// A partially filled window averages only what it holds.
type MovingAverage struct {
	buf  []float64
	head int
	size int
}

func NewMovingAverage(window int) *MovingAverage {
	if window < 1 {
		window = 1
	}
	return &MovingAverage{buf: make([]float64, window)}
}

// Push adds v, evicting the oldest value when full, and returns the mean of
// the window.
func (m *MovingAverage) Push(v float32) float32 {
	m.buf[m.head] = float64(v)
	m.head = (m.head + 1) % len(m.buf)
	if m.size < len(m.buf) {
		m.size++
	}
	return float32(m.Mean())
}

// Mean of the current window; 0 when empty.
func (m *MovingAverage) Mean() float64 {
	if m.size == 0 {
		return 0
	}
	// until the ring wraps the values sit in buf[:size]
	if m.size < len(m.buf) {
		return stat.Mean(m.buf[:m.size], nil)
	}
	return stat.Mean(m.buf, nil)
}

func (m *MovingAverage) Len() int    { return m.size }
func (m *MovingAverage) Window() int { return len(m.buf) }

func (m *MovingAverage) Reset() {
	m.head = 0
	m.size = 0
}

// GForce converts an acceleration magnitude to multiples of standard gravity.
func GForce(magnitude float32) float32 {
	return magnitude / StandardGravity
}
