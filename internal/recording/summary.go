package recording

import (
	"time"

	"backend-mtbtrainer/internal/ride"
	"backend-mtbtrainer/internal/sensor"
	"backend-mtbtrainer/internal/shared/geo"
)

// Summarize replays events through a fresh ride session and derives the
// stored summary columns. Distance sums the hops between GPS fixes.
func Summarize(cfg ride.Config, events []sensor.Sample) Summary {
	session := ride.NewSession(cfg, time.Time{})

	var (
		distance float64
		longest  float32
		last     *sensor.GPSLocation
	)
	for _, e := range events {
		session.OnEvent(e)
		if air := session.Snapshot().LastAirTimeSeconds; air != nil && *air > longest {
			longest = *air
		}
		if loc, ok := e.(sensor.GPSLocation); ok {
			if last != nil {
				distance += geo.HaversineM(last.Latitude, last.Longitude, loc.Latitude, loc.Longitude)
			}
			last = &loc
		}
	}

	stats := session.Snapshot()
	return Summary{
		EventCount:        stats.EventCount,
		JumpCount:         stats.JumpCount,
		MaxSpeedMps:       value(stats.MaxSpeedMps),
		MaxGForce:         value(stats.MaxGForce),
		MaxLinearAccel:    value(stats.MaxLinearAccel),
		LongestAirTimeSec: float64(longest),
		DistanceM:         distance,
	}
}

func value(v *float32) float64 {
	if v == nil {
		return 0
	}
	return float64(*v)
}

// span is the time covered by the sample timestamps.
func span(events []sensor.Sample) time.Duration {
	if len(events) == 0 {
		return 0
	}
	lo, hi := events[0].Nanos(), events[0].Nanos()
	for _, e := range events[1:] {
		if n := e.Nanos(); n < lo {
			lo = n
		} else if n > hi {
			hi = n
		}
	}
	return time.Duration(hi - lo)
}
