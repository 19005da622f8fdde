package recording

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"backend-mtbtrainer/internal/ride"
	"backend-mtbtrainer/internal/sensor"

	"github.com/pashagolub/pgxmock/v3"
)

const ms = int64(time.Millisecond)

var summaryCols = []string{"id", "rider_id", "file_name", "started_at", "stopped_at", "event_count", "jump_count",
	"max_speed_mps", "max_g_force", "max_linear_accel", "longest_air_time_sec", "distance_m", "created_at"}

func rideEvents() []sensor.Sample {
	return []sensor.Sample{
		sensor.GPSLocation{Timestamp: 0, Latitude: 46.0, Longitude: 7.0},
		sensor.Accelerometer{Timestamp: 100 * ms, Z: 1},
		sensor.Accelerometer{Timestamp: 400 * ms, Z: 20},
		sensor.GPSSpeed{Timestamp: 500 * ms, SpeedMps: 9.5},
		sensor.Accelerometer{Timestamp: 600 * ms, Z: 1},
		sensor.Accelerometer{Timestamp: 1100 * ms, Z: 20},
		sensor.GPSLocation{Timestamp: 2000 * ms, Latitude: 46.001, Longitude: 7.0},
	}
}

func TestSummarize(t *testing.T) {
	sum := Summarize(ride.DefaultConfig(), rideEvents())
	if sum.EventCount != 7 || sum.JumpCount != 2 {
		t.Fatalf("unexpected counts %+v", sum)
	}
	if math.Abs(sum.LongestAirTimeSec-0.5) > 1e-6 {
		t.Fatalf("expected longest air time 0.5, got %v", sum.LongestAirTimeSec)
	}
	if sum.MaxSpeedMps != 9.5 {
		t.Fatalf("unexpected max speed %v", sum.MaxSpeedMps)
	}
	if sum.DistanceM < 105 || sum.DistanceM > 118 {
		t.Fatalf("expected ~111 m, got %v", sum.DistanceM)
	}
	if empty := Summarize(ride.DefaultConfig(), nil); empty != (Summary{}) {
		t.Fatalf("expected zero summary, got %+v", empty)
	}
}

func TestSaveAndGet(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	createdAt := time.Now()
	stoppedAt := time.Date(2024, 5, 1, 9, 30, 2, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO ride_sessions`).
		WithArgs(pgxmock.AnyArg(), "rider-1", "session_raw_all_20240501_093002.json", pgxmock.AnyArg(), stoppedAt,
			7, 2, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	svc := NewService(mock, ride.DefaultConfig())
	sum, err := svc.Save(context.Background(), Recording{
		RiderID:   "rider-1",
		FileName:  "session_raw_all_20240501_093002.json",
		StoppedAt: stoppedAt,
		Events:    rideEvents(),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if sum.ID == "" || !sum.CreatedAt.Equal(createdAt) {
		t.Fatalf("unexpected summary %+v", sum)
	}
	// start time derived from the sample span
	if sum.DurationSec != 2 || !sum.StartedAt.Equal(stoppedAt.Add(-2*time.Second)) {
		t.Fatalf("unexpected span %v %v", sum.StartedAt, sum.DurationSec)
	}

	mock.ExpectQuery(`SELECT id, COALESCE\(rider_id,''\), file_name`).
		WithArgs(sum.ID).
		WillReturnRows(pgxmock.NewRows(summaryCols).
			AddRow(sum.ID, "rider-1", sum.FileName, sum.StartedAt, sum.StoppedAt, 7, 2, 9.5, 0.0, 0.0, 0.5, 111.2, createdAt))

	loaded, err := svc.Get(context.Background(), sum.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.ID != sum.ID || loaded.JumpCount != 2 || loaded.DurationSec != 2 {
		t.Fatalf("unexpected summary loaded %+v", loaded)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveRejectsEmptyRecording(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	if _, err := NewService(mock, ride.DefaultConfig()).Save(context.Background(), Recording{FileName: "x.json"}); err == nil {
		t.Fatalf("expected error for empty recording")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListEventsDelete(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()
	svc := NewService(mock, ride.DefaultConfig())

	now := time.Now()
	mock.ExpectQuery(`FROM ride_sessions ORDER BY started_at DESC`).
		WillReturnRows(pgxmock.NewRows(summaryCols).
			AddRow("s-2", "", "b.json", now, now.Add(time.Minute), 10, 0, 1.0, 1.0, 1.0, 0.0, 0.0, now).
			AddRow("s-1", "rider-1", "a.json", now.Add(-time.Hour), now.Add(-time.Hour), 3, 1, 1.0, 1.0, 1.0, 0.4, 0.0, now))

	list, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "s-2" || list[0].DurationSec != 60 {
		t.Fatalf("unexpected list %+v", list)
	}

	payload, _ := sensor.EncodeAll(rideEvents())
	mock.ExpectQuery(`SELECT events FROM ride_sessions`).
		WithArgs("s-1").
		WillReturnRows(pgxmock.NewRows([]string{"events"}).AddRow(payload))
	events, err := svc.Events(context.Background(), "s-1")
	if err != nil || len(events) != 7 {
		t.Fatalf("unexpected events %v %v", events, err)
	}

	mock.ExpectExec(`DELETE FROM ride_sessions`).
		WithArgs("s-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	if err := svc.Delete(context.Background(), "s-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	mock.ExpectExec(`DELETE FROM ride_sessions`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	if err := svc.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()
	svc := NewService(mock, ride.DefaultConfig())

	mock.ExpectQuery(`FROM ride_sessions WHERE id=`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(summaryCols))
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mock.ExpectQuery(`SELECT events FROM ride_sessions`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"events"}))
	if _, err := svc.Events(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS ride_sessions`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	if err := NewService(mock, ride.DefaultConfig()).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
}
