package source

import (
	"context"
	"sync"
	"time"

	"backend-mtbtrainer/internal/merge"
	"backend-mtbtrainer/internal/sensor"
	"backend-mtbtrainer/internal/shared/geo"
)

// Throttle applies a location subscription's minimum update interval and
// minimum distance to the GPS samples of the wrapped source. Other kinds
// pass through. Filtered samples report as accepted.
type Throttle struct {
	src          merge.Source
	minInterval  time.Duration
	minDistanceM float64
}

func NewThrottle(src merge.Source, minInterval time.Duration, minDistanceM float64) *Throttle {
	return &Throttle{src: src, minInterval: minInterval, minDistanceM: minDistanceM}
}

func (t *Throttle) Name() string { return t.src.Name() }

func (t *Throttle) Run(ctx context.Context, emit merge.Emit) error {
	f := &gpsFilter{minInterval: t.minInterval.Nanoseconds(), minDistanceM: t.minDistanceM}
	return t.src.Run(ctx, func(s sensor.Sample) bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.allow(s) {
			return true
		}
		if !emit(s) {
			return false
		}
		f.mark(s)
		return true
	})
}

// gpsFilter lives for one Run. Push sources emit from many goroutines.
type gpsFilter struct {
	mu sync.Mutex

	minInterval  int64
	minDistanceM float64

	haveSpeed bool
	lastSpeed int64

	haveLoc bool
	lastLoc sensor.GPSLocation
}

func (f *gpsFilter) allow(s sensor.Sample) bool {
	switch v := s.(type) {
	case sensor.GPSSpeed:
		return !f.haveSpeed || v.Timestamp-f.lastSpeed >= f.minInterval
	case sensor.GPSLocation:
		if !f.haveLoc {
			return true
		}
		if v.Timestamp-f.lastLoc.Timestamp < f.minInterval {
			return false
		}
		return geo.HaversineM(f.lastLoc.Latitude, f.lastLoc.Longitude, v.Latitude, v.Longitude) >= f.minDistanceM
	}
	return true
}

func (f *gpsFilter) mark(s sensor.Sample) {
	switch v := s.(type) {
	case sensor.GPSSpeed:
		f.haveSpeed, f.lastSpeed = true, v.Timestamp
	case sensor.GPSLocation:
		f.haveLoc, f.lastLoc = true, v
	}
}
