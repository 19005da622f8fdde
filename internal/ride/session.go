// Package ride holds the state of one collection session: the running
// statistics and the raw samples recorded for export.
package ride

import (
	"sync"
	"time"

	"backend-mtbtrainer/internal/filter"
	"backend-mtbtrainer/internal/jump"
	"backend-mtbtrainer/internal/sensor"

	"github.com/google/uuid"
)

// Stats is a point-in-time view of a session. Nil means unset.
type Stats struct {
	MaxSpeedMps        *float32 `json:"maxSpeedMps,omitempty"`
	MaxGForce          *float32 `json:"maxGForce,omitempty"`
	MaxLinearAccel     *float32 `json:"maxLinearAccel,omitempty"`
	LastAirTimeSeconds *float32 `json:"lastAirTimeSeconds,omitempty"`
	CurrentSpeedMps    *float32 `json:"currentSpeedMps,omitempty"`
	CurrentLinearAccel *float32 `json:"currentLinearAccel,omitempty"`
	JumpCount          int      `json:"jumpCount"`
	EventCount         int      `json:"eventCount"`
}

func (s Stats) clone() Stats {
	out := s
	out.MaxSpeedMps = copyPtr(s.MaxSpeedMps)
	out.MaxGForce = copyPtr(s.MaxGForce)
	out.MaxLinearAccel = copyPtr(s.MaxLinearAccel)
	out.LastAirTimeSeconds = copyPtr(s.LastAirTimeSeconds)
	out.CurrentSpeedMps = copyPtr(s.CurrentSpeedMps)
	out.CurrentLinearAccel = copyPtr(s.CurrentLinearAccel)
	return out
}

func copyPtr(v *float32) *float32 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// raise stores v into *dst when dst is unset or v is strictly greater.
func raise(dst **float32, v float32) {
	if *dst == nil || v > **dst {
		*dst = &v
	}
}

type Config struct {
	Thresholds jump.Thresholds
	Window     int
}

func DefaultConfig() Config {
	return Config{Thresholds: jump.DefaultThresholds(), Window: filter.DefaultWindow}
}

// Session aggregates one start-to-stop cycle. OnEvent is meant to be called
// from a single consumer goroutine; every method is safe for concurrent use.
type Session struct {
	ID        string
	StartedAt time.Time

	mu        sync.RWMutex
	detector  *jump.Detector
	smoothing *filter.MovingAverage
	stats     Stats
	events    []sensor.Sample
	closed    bool
}

func NewSession(cfg Config, startedAt time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: startedAt,
		detector:  jump.NewDetector(cfg.Thresholds),
		smoothing: filter.NewMovingAverage(cfg.Window),
	}
}

// OnEvent routes a sample to the detector or the smoothing filter, updates
// the running values and records the sample. It reports whether a stat
// other than the event count changed. A closed session ignores the sample
// and returns false.
func (s *Session) OnEvent(sample sensor.Sample) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	changed := false
	switch v := sample.(type) {
	case sensor.Accelerometer:
		if air, ok := s.detector.Process(v); ok {
			s.stats.LastAirTimeSeconds = &air
			s.stats.JumpCount++
			changed = true
		}
	case sensor.LinearAccel:
		smoothed := s.smoothing.Push(v.Magnitude())
		current := smoothed
		s.stats.CurrentLinearAccel = &current
		raise(&s.stats.MaxLinearAccel, smoothed)
		raise(&s.stats.MaxGForce, filter.GForce(smoothed))
		changed = true
	case sensor.GPSSpeed:
		speed := v.SpeedMps
		s.stats.CurrentSpeedMps = &speed
		raise(&s.stats.MaxSpeedMps, speed)
		changed = true
	}

	s.events = append(s.events, sample)
	s.stats.EventCount = len(s.events)
	return changed
}

// ResetMax clears the maxima, the current speed and the last air time.
// Recorded samples are kept. It also applies to a closed session so the
// last snapshot can be cleared while idle.
func (s *Session) ResetMax() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.MaxSpeedMps = nil
	s.stats.MaxGForce = nil
	s.stats.MaxLinearAccel = nil
	s.stats.CurrentSpeedMps = nil
	s.stats.LastAirTimeSeconds = nil
}

func (s *Session) Snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats.clone()
}

func (s *Session) Events() []sensor.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]sensor.Sample, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

// Close ends the session and hands off the recorded samples. Later calls
// return nil.
func (s *Session) Close() []sensor.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	events := s.events
	s.events = nil
	s.detector.Reset()
	s.smoothing.Reset()
	return events
}
