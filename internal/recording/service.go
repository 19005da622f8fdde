// Package recording persists finished ride sessions in Postgres and serves
// them over the /sessions API.
package recording

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend-mtbtrainer/internal/db"
	"backend-mtbtrainer/internal/ride"
	"backend-mtbtrainer/internal/sensor"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("recording not found")

const Schema = `
CREATE TABLE IF NOT EXISTS ride_sessions (
	id                   TEXT PRIMARY KEY,
	rider_id             TEXT,
	file_name            TEXT NOT NULL,
	started_at           TIMESTAMPTZ NOT NULL,
	stopped_at           TIMESTAMPTZ NOT NULL,
	event_count          INTEGER NOT NULL DEFAULT 0,
	jump_count           INTEGER NOT NULL DEFAULT 0,
	max_speed_mps        DOUBLE PRECISION NOT NULL DEFAULT 0,
	max_g_force          DOUBLE PRECISION NOT NULL DEFAULT 0,
	max_linear_accel     DOUBLE PRECISION NOT NULL DEFAULT 0,
	longest_air_time_sec DOUBLE PRECISION NOT NULL DEFAULT 0,
	distance_m           DOUBLE PRECISION NOT NULL DEFAULT 0,
	events               JSONB NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const summaryColumns = `id, COALESCE(rider_id,''), file_name, started_at, stopped_at, event_count, jump_count,
	max_speed_mps, max_g_force, max_linear_accel, longest_air_time_sec, distance_m, created_at`

type Service struct {
	db  db.Querier
	cfg ride.Config
	now func() time.Time
}

func NewService(q db.Querier, cfg ride.Config) *Service {
	return &Service{db: q, cfg: cfg, now: time.Now}
}

func (s *Service) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	return err
}

// Save stores a recording with its summary. A missing stop time defaults to
// now and a missing start time to the stop time minus the sample span.
func (s *Service) Save(ctx context.Context, rec Recording) (Summary, error) {
	if len(rec.Events) == 0 {
		return Summary{}, errors.New("recording has no events")
	}
	payload, err := sensor.EncodeAll(rec.Events)
	if err != nil {
		return Summary{}, fmt.Errorf("encode events: %w", err)
	}

	if rec.StoppedAt.IsZero() {
		rec.StoppedAt = s.now()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = rec.StoppedAt.Add(-span(rec.Events))
	}

	sum := Summarize(s.cfg, rec.Events)
	sum.ID = uuid.NewString()
	sum.RiderID = rec.RiderID
	sum.FileName = rec.FileName
	sum.StartedAt = rec.StartedAt
	sum.StoppedAt = rec.StoppedAt
	sum.DurationSec = rec.StoppedAt.Sub(rec.StartedAt).Seconds()

	var riderID any
	if rec.RiderID != "" {
		riderID = rec.RiderID
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO ride_sessions (id, rider_id, file_name, started_at, stopped_at, event_count, jump_count,
			max_speed_mps, max_g_force, max_linear_accel, longest_air_time_sec, distance_m, events)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at
	`, sum.ID, riderID, sum.FileName, sum.StartedAt, sum.StoppedAt, sum.EventCount, sum.JumpCount,
		sum.MaxSpeedMps, sum.MaxGForce, sum.MaxLinearAccel, sum.LongestAirTimeSec, sum.DistanceM, payload)
	if err := row.Scan(&sum.CreatedAt); err != nil {
		return Summary{}, err
	}
	return sum, nil
}

func (s *Service) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.Query(ctx, `SELECT `+summaryColumns+` FROM ride_sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *Service) Get(ctx context.Context, id string) (Summary, error) {
	row := s.db.QueryRow(ctx, `SELECT `+summaryColumns+` FROM ride_sessions WHERE id=$1`, id)
	sum, err := scanSummary(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Summary{}, ErrNotFound
	}
	return sum, err
}

func (s *Service) Events(ctx context.Context, id string) ([]sensor.Sample, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT events FROM ride_sessions WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	samples, err := sensor.DecodeAll(raw)
	if err != nil {
		return nil, fmt.Errorf("recording %s: %w", id, err)
	}
	return samples, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM ride_sessions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSummary(row pgx.Row) (Summary, error) {
	var sum Summary
	err := row.Scan(&sum.ID, &sum.RiderID, &sum.FileName, &sum.StartedAt, &sum.StoppedAt, &sum.EventCount, &sum.JumpCount,
		&sum.MaxSpeedMps, &sum.MaxGForce, &sum.MaxLinearAccel, &sum.LongestAirTimeSec, &sum.DistanceM, &sum.CreatedAt)
	if err != nil {
		return Summary{}, err
	}
	sum.DurationSec = sum.StoppedAt.Sub(sum.StartedAt).Seconds()
	return sum, nil
}
