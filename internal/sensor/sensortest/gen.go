// Package sensortest holds rapid generators for sensor samples shared by the
// property tests of several packages.
package sensortest

import (
	"backend-mtbtrainer/internal/sensor"

	"pgregory.net/rapid"
)

func axis() *rapid.Generator[float32] {
	return rapid.Float32Range(-200, 200)
}

func optFloat32(t *rapid.T, label string, min, max float32) *float32 {
	if !rapid.Bool().Draw(t, "has_"+label) {
		return nil
	}
	v := rapid.Float32Range(min, max).Draw(t, label)
	return &v
}

// Sample draws one sample of any kind with the given timestamp.
func Sample(t *rapid.T, ts int64) sensor.Sample {
	kind := rapid.SampledFrom(sensor.Kinds).Draw(t, "kind")
	return SampleOf(t, kind, ts)
}

// SampleOf draws one sample of the given kind.
func SampleOf(t *rapid.T, kind sensor.Kind, ts int64) sensor.Sample {
	switch kind {
	case sensor.KindAccelerometer:
		return sensor.Accelerometer{Timestamp: ts, X: axis().Draw(t, "x"), Y: axis().Draw(t, "y"), Z: axis().Draw(t, "z")}
	case sensor.KindGyroscope:
		return sensor.Gyroscope{Timestamp: ts, X: axis().Draw(t, "x"), Y: axis().Draw(t, "y"), Z: axis().Draw(t, "z")}
	case sensor.KindLinearAccel:
		return sensor.LinearAccel{Timestamp: ts, X: axis().Draw(t, "x"), Y: axis().Draw(t, "y"), Z: axis().Draw(t, "z")}
	case sensor.KindBarometer:
		return sensor.Barometer{Timestamp: ts, X: axis().Draw(t, "x"), Y: axis().Draw(t, "y"), Z: axis().Draw(t, "z")}
	case sensor.KindGravity:
		return sensor.Gravity{Timestamp: ts, X: axis().Draw(t, "x"), Y: axis().Draw(t, "y"), Z: axis().Draw(t, "z")}
	case sensor.KindPressure:
		return sensor.Pressure{
			Timestamp:      ts,
			PressureHPa:    rapid.Float32Range(300, 1100).Draw(t, "pressure"),
			AltitudeMeters: optFloat32(t, "altitude", -400, 9000),
		}
	case sensor.KindRotationVector:
		s := sensor.RotationVector{
			Timestamp: ts,
			X:         rapid.Float32Range(-1, 1).Draw(t, "x"),
			Y:         rapid.Float32Range(-1, 1).Draw(t, "y"),
			Z:         rapid.Float32Range(-1, 1).Draw(t, "z"),
			W:         optFloat32(t, "w", -1, 1),
		}
		if rapid.Bool().Draw(t, "has_heading_accuracy") {
			acc := rapid.IntRange(0, 3).Draw(t, "heading_accuracy")
			s.HeadingAccuracy = &acc
		}
		return s
	case sensor.KindGPSSpeed:
		return sensor.GPSSpeed{
			Timestamp:        ts,
			SpeedMps:         rapid.Float32Range(0, 40).Draw(t, "speed"),
			SpeedAccuracyMps: optFloat32(t, "speed_accuracy", 0, 5),
		}
	default:
		s := sensor.GPSLocation{
			Timestamp:           ts,
			Latitude:            rapid.Float64Range(-90, 90).Draw(t, "lat"),
			Longitude:           rapid.Float64Range(-180, 180).Draw(t, "lng"),
			HorizontalAccuracyM: optFloat32(t, "horizontal_accuracy", 0, 50),
		}
		if rapid.Bool().Draw(t, "has_altitude") {
			alt := rapid.Float64Range(-400, 9000).Draw(t, "altitude")
			s.Altitude = &alt
		}
		return s
	}
}

// Stream draws n samples of mixed kinds with non-decreasing timestamps.
func Stream(t *rapid.T, n int) []sensor.Sample {
	out := make([]sensor.Sample, 0, n)
	var ts int64
	for i := 0; i < n; i++ {
		ts += rapid.Int64Range(0, 50_000_000).Draw(t, "dt")
		out = append(out, Sample(t, ts))
	}
	return out
}
