package filter

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestMovingAverageEvictsOldest(t *testing.T) {
	m := NewMovingAverage(5)
	var got float32
	for _, v := range []float32{10, 20, 30, 40, 50, 60} {
		got = m.Push(v)
	}
	if got != 40 {
		t.Fatalf("expected mean of [20..60] = 40, got %v", got)
	}
	if m.Len() != 5 {
		t.Fatalf("window should stay at capacity, got %d", m.Len())
	}
}

func TestMovingAveragePartialWindow(t *testing.T) {
	m := NewMovingAverage(5)
	if got := m.Push(10); got != 10 {
		t.Fatalf("first push should return itself, got %v", got)
	}
	if got := m.Push(20); got != 15 {
		t.Fatalf("expected 15 without zero padding, got %v", got)
	}
}

func TestMovingAverageReset(t *testing.T) {
	m := NewMovingAverage(3)
	m.Push(100)
	m.Push(100)
	m.Reset()
	if m.Len() != 0 || m.Mean() != 0 {
		t.Fatalf("reset should empty the window")
	}
	if got := m.Push(3); got != 3 {
		t.Fatalf("expected fresh window after reset, got %v", got)
	}
}

func TestMovingAverageMinimumWindow(t *testing.T) {
	m := NewMovingAverage(0)
	if m.Window() != 1 {
		t.Fatalf("expected window clamped to 1, got %d", m.Window())
	}
	m.Push(4)
	if got := m.Push(8); got != 8 {
		t.Fatalf("window of one tracks the last value, got %v", got)
	}
}

func TestMovingAverageProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		window := rapid.IntRange(1, 10).Draw(t, "window")
		values := rapid.SliceOfN(rapid.Float32Range(0, 100), 1, 50).Draw(t, "values")

		m := NewMovingAverage(window)
		for i, v := range values {
			got := m.Push(v)

			start := i + 1 - window
			if start < 0 {
				start = 0
			}
			var sum float64
			for _, w := range values[start : i+1] {
				sum += float64(w)
			}
			want := sum / float64(i+1-start)
			if math.Abs(float64(got)-want) > 1e-3 {
				t.Fatalf("push %d: got %v, want %v", i, got, want)
			}
		}
	})
}

func TestGForce(t *testing.T) {
	if got := GForce(StandardGravity); math.Abs(float64(got)-1) > 1e-6 {
		t.Fatalf("expected 1g, got %v", got)
	}
}
