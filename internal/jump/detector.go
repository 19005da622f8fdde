package jump

import (
	"time"

	"backend-mtbtrainer/internal/sensor"
)

// Thresholds tune the detector. The force values are compared against the raw
// accelerometer z axis in the sensor's own units (m/s²); they are calibrated
// constants, not g multiples.
type Thresholds struct {
	AirborneZ  float32
	LandingZ   float32
	MinAirTime time.Duration
	MaxAirTime time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		AirborneZ:  2.0,
		LandingZ:   15.0,
		MinAirTime: 150 * time.Millisecond,
		MaxAirTime: 10 * time.Second,
	}
}

type State int

const (
	OnGround State = iota
	Airborne
)

func (s State) String() string {
	if s == Airborne {
		return "airborne"
	}
	return "on_ground"
}

// Detector turns a time-ordered accelerometer stream into air-time
// measurements. It is not safe for concurrent use.
type Detector struct {
	cfg     Thresholds
	state   State
	takeoff int64
}

func NewDetector(cfg Thresholds) *Detector {
	return &Detector{cfg: cfg}
}

// Process feeds one sample and returns the air time in seconds when the
// sample completes a jump.
func (d *Detector) Process(s sensor.Accelerometer) (float32, bool) {
	switch d.state {
	case OnGround:
		if s.Z < d.cfg.AirborneZ {
			d.takeoff = s.Timestamp
			d.state = Airborne
		}
	case Airborne:
		elapsed := s.Timestamp - d.takeoff
		if s.Z > d.cfg.LandingZ {
			d.state = OnGround
			if elapsed > d.cfg.MinAirTime.Nanoseconds() {
				return float32(float64(elapsed) / 1e9), true
			}
		} else if elapsed > d.cfg.MaxAirTime.Nanoseconds() {
			// stuck airborne without a landing spike, most likely a glitch
			d.state = OnGround
		}
	}
	return 0, false
}

func (d *Detector) State() State {
	return d.state
}

// TakeoffNanos is the takeoff timestamp; only meaningful while airborne.
func (d *Detector) TakeoffNanos() int64 {
	return d.takeoff
}

func (d *Detector) Reset() {
	d.state = OnGround
	d.takeoff = 0
}
