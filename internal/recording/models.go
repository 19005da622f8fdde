package recording

import (
	"time"

	"backend-mtbtrainer/internal/sensor"
)

type Recording struct {
	RiderID   string          `json:"rider_id,omitempty"`
	FileName  string          `json:"file_name"`
	StartedAt time.Time       `json:"started_at"`
	StoppedAt time.Time       `json:"stopped_at"`
	Events    []sensor.Sample `json:"-"`
}

type Summary struct {
	ID                string    `json:"id"`
	RiderID           string    `json:"rider_id,omitempty"`
	FileName          string    `json:"file_name"`
	StartedAt         time.Time `json:"started_at"`
	StoppedAt         time.Time `json:"stopped_at"`
	DurationSec       float64   `json:"duration_sec"`
	EventCount        int       `json:"event_count"`
	JumpCount         int       `json:"jump_count"`
	MaxSpeedMps       float64   `json:"max_speed_mps"`
	MaxGForce         float64   `json:"max_g_force"`
	MaxLinearAccel    float64   `json:"max_linear_accel"`
	LongestAirTimeSec float64   `json:"longest_air_time_sec"`
	DistanceM         float64   `json:"distance_m"`
	CreatedAt         time.Time `json:"created_at"`
}
