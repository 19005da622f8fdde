package sensor

import "math"

// Kind is the discriminant carried by every sample. It doubles as the
// "type" tag of the JSON export.
type Kind string

const (
	KindAccelerometer  Kind = "AccelerometerEvent"
	KindGyroscope      Kind = "GyroscopeEvent"
	KindLinearAccel    Kind = "LinearAccelEvent"
	KindBarometer      Kind = "BarometerEvent"
	KindPressure       Kind = "PressureEvent"
	KindGravity        Kind = "GravityEvent"
	KindRotationVector Kind = "RotationVectorEvent"
	KindGPSSpeed       Kind = "GPSSpeedEvent"
	KindGPSLocation    Kind = "GPSLocationEvent"
)

// Kinds lists every known kind in a stable order.
var Kinds = []Kind{
	KindAccelerometer,
	KindGyroscope,
	KindLinearAccel,
	KindBarometer,
	KindPressure,
	KindGravity,
	KindRotationVector,
	KindGPSSpeed,
	KindGPSLocation,
}

// ParseKind validates a discriminant string.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", ErrUnknownKind
}

// Sample is one reading from one physical sensor. The set of implementations
// is closed; switch on the concrete type to route a sample.
type Sample interface {
	Kind() Kind
	// Nanos is the monotonic timestamp in nanoseconds.
	Nanos() int64
	sample()
}

type Accelerometer struct {
	Timestamp int64   `json:"timestamp"`
	X         float32 `json:"x"`
	Y         float32 `json:"y"`
	Z         float32 `json:"z"`
}

type Gyroscope struct {
	Timestamp int64   `json:"timestamp"`
	X         float32 `json:"x"`
	Y         float32 `json:"y"`
	Z         float32 `json:"z"`
}

// LinearAccel is acceleration with gravity removed, in m/s².
type LinearAccel struct {
	Timestamp int64   `json:"timestamp"`
	X         float32 `json:"x"`
	Y         float32 `json:"y"`
	Z         float32 `json:"z"`
}

type Barometer struct {
	Timestamp int64   `json:"timestamp"`
	X         float32 `json:"x"`
	Y         float32 `json:"y"`
	Z         float32 `json:"z"`
}

type Gravity struct {
	Timestamp int64   `json:"timestamp"`
	X         float32 `json:"x"`
	Y         float32 `json:"y"`
	Z         float32 `json:"z"`
}

// Pressure is atmospheric pressure in hPa.
type Pressure struct {
	Timestamp      int64    `json:"timestamp"`
	PressureHPa    float32  `json:"pressure"`
	AltitudeMeters *float32 `json:"altitude,omitempty"`
}

type RotationVector struct {
	Timestamp       int64    `json:"timestamp"`
	X               float32  `json:"x"`
	Y               float32  `json:"y"`
	Z               float32  `json:"z"`
	W               *float32 `json:"w,omitempty"`
	HeadingAccuracy *int     `json:"headingAccuracy,omitempty"`
}

type GPSSpeed struct {
	Timestamp        int64    `json:"timestamp"`
	SpeedMps         float32  `json:"speedMps"`
	SpeedAccuracyMps *float32 `json:"accuracyMps,omitempty"`
}

type GPSLocation struct {
	Timestamp           int64    `json:"timestamp"`
	Latitude            float64  `json:"latitude"`
	Longitude           float64  `json:"longitude"`
	Altitude            *float64 `json:"altitude,omitempty"`
	HorizontalAccuracyM *float32 `json:"accuracyHorizontal,omitempty"`
}

func (s Accelerometer) Kind() Kind  { return KindAccelerometer }
func (s Gyroscope) Kind() Kind      { return KindGyroscope }
func (s LinearAccel) Kind() Kind    { return KindLinearAccel }
func (s Barometer) Kind() Kind      { return KindBarometer }
func (s Gravity) Kind() Kind        { return KindGravity }
func (s Pressure) Kind() Kind       { return KindPressure }
func (s RotationVector) Kind() Kind { return KindRotationVector }
func (s GPSSpeed) Kind() Kind       { return KindGPSSpeed }
func (s GPSLocation) Kind() Kind    { return KindGPSLocation }

func (s Accelerometer) Nanos() int64  { return s.Timestamp }
func (s Gyroscope) Nanos() int64      { return s.Timestamp }
func (s LinearAccel) Nanos() int64    { return s.Timestamp }
func (s Barometer) Nanos() int64      { return s.Timestamp }
func (s Gravity) Nanos() int64        { return s.Timestamp }
func (s Pressure) Nanos() int64       { return s.Timestamp }
func (s RotationVector) Nanos() int64 { return s.Timestamp }
func (s GPSSpeed) Nanos() int64       { return s.Timestamp }
func (s GPSLocation) Nanos() int64    { return s.Timestamp }

func (Accelerometer) sample()  {}
func (Gyroscope) sample()      {}
func (LinearAccel) sample()    {}
func (Barometer) sample()      {}
func (Gravity) sample()        {}
func (Pressure) sample()       {}
func (RotationVector) sample() {}
func (GPSSpeed) sample()       {}
func (GPSLocation) sample()    {}

// Magnitude returns the euclidean norm of a three-axis reading.
func Magnitude(x, y, z float32) float32 {
	return float32(math.Sqrt(float64(x)*float64(x) + float64(y)*float64(y) + float64(z)*float64(z)))
}

// Magnitude of the linear acceleration vector in m/s².
func (s LinearAccel) Magnitude() float32 {
	return Magnitude(s.X, s.Y, s.Z)
}
