package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"backend-mtbtrainer/internal/auth"
	"backend-mtbtrainer/internal/collection"
	"backend-mtbtrainer/internal/config"
	"backend-mtbtrainer/internal/db"
	"backend-mtbtrainer/internal/recording"
	"backend-mtbtrainer/internal/ride"
	"backend-mtbtrainer/internal/source"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		JWTSecret:        "secret",
		ServerPort:       ":0",
		MergeQueueSize:   64,
		SaveQueueSize:    4,
		SnapshotInterval: 10 * time.Millisecond,
		ExportDir:        t.TempDir(),
		ExportFormat:     "json",
	}
}

func bearer(t *testing.T) string {
	tokens, err := auth.NewService("secret", nil).GenerateTokens(context.Background(), "rider-1")
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}
	return "Bearer " + tokens.AccessToken
}

func do(t *testing.T, s *Server, method, path, body, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func TestHealthRoute(t *testing.T) {
	s := NewServer(config.Config{JWTSecret: "secret", ServerPort: ":0"}, nil, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 status")
	}
	if s.Recordings != nil || s.Exports != nil {
		t.Fatalf("recordings and exports must be disabled without postgres and export dir")
	}
}

func TestIngestWhileIdleConflicts(t *testing.T) {
	s := NewServer(testConfig(t), nil, nil)
	resp := do(t, s, "POST", "/ingest", `{"type":"GPSSpeedEvent","timestamp":1,"speedMps":3}`, bearer(t))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	resp = do(t, s, "POST", "/ingest", `{"type":"GPSSpeedEvent","timestamp":1}`, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestCollectionRoundTrip(t *testing.T) {
	s := NewServer(testConfig(t), nil, nil)
	token := bearer(t)

	if resp := do(t, s, "POST", "/collection/start", "", token); resp.StatusCode != 200 {
		t.Fatalf("start: %d", resp.StatusCode)
	}
	deadline := time.Now().Add(time.Second)
	for !s.Device.Subscribed() {
		if time.Now().After(deadline) {
			t.Fatalf("device source never subscribed")
		}
		time.Sleep(time.Millisecond)
	}

	batch := `[{"type":"GPSSpeedEvent","timestamp":1,"speedMps":6.5},
		{"type":"AccelerometerEvent","timestamp":2,"x":0,"y":0,"z":9.8}]`
	resp := do(t, s, "POST", "/ingest", batch, token)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("ingest: %d", resp.StatusCode)
	}
	var res source.IngestResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil || res.Accepted != 2 {
		t.Fatalf("unexpected ingest result %+v %v", res, err)
	}

	if resp := do(t, s, "POST", "/collection/stop", "", token); resp.StatusCode != 200 {
		t.Fatalf("stop: %d", resp.StatusCode)
	}

	resp = do(t, s, "GET", "/collection/state", "", "")
	body, _ := io.ReadAll(resp.Body)
	var snap collection.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if snap.IsCollecting || snap.Stats.MaxSpeedMps == nil || *snap.Stats.MaxSpeedMps != 6.5 {
		t.Fatalf("unexpected state %s", body)
	}

	s.Flush(context.Background())
	files, err := s.Exports.List()
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one export, got %v %v", files, err)
	}
	samples, err := s.Exports.Read(files[0].Name)
	if err != nil || len(samples) != 2 {
		t.Fatalf("unexpected export %v %v", samples, err)
	}
}

func TestPersistStopsWithContext(t *testing.T) {
	s := NewServer(testConfig(t), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Persist(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("persist did not return after cancel")
	}
}

func TestCurrentSnapshotTopics(t *testing.T) {
	s := NewServer(testConfig(t), nil, nil)
	if _, ok := s.currentSnapshot("live"); !ok {
		t.Fatalf("live topic always has a snapshot")
	}
	if _, ok := s.currentSnapshot("unknown-session"); ok {
		t.Fatalf("unknown session must not get a snapshot")
	}

	s.Controller.Start(context.Background())
	defer s.Controller.Stop()
	payload, ok := s.currentSnapshot(s.Controller.Snapshot().SessionID)
	if !ok {
		t.Fatalf("expected a snapshot for the active session")
	}
	var snap collection.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil || !snap.IsCollecting {
		t.Fatalf("unexpected snapshot %s %v", payload, err)
	}
}

// rideOnce records a one-sample session and stops it.
func rideOnce(t *testing.T, s *Server, token string) {
	t.Helper()
	if resp := do(t, s, "POST", "/collection/start", "", token); resp.StatusCode != 200 {
		t.Fatalf("start: %d", resp.StatusCode)
	}
	deadline := time.Now().Add(time.Second)
	for !s.Device.Subscribed() {
		if time.Now().After(deadline) {
			t.Fatalf("device source never subscribed")
		}
		time.Sleep(time.Millisecond)
	}
	if resp := do(t, s, "POST", "/ingest", `{"type":"GPSSpeedEvent","timestamp":1,"speedMps":4}`, token); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("ingest: %d", resp.StatusCode)
	}
	if resp := do(t, s, "POST", "/collection/stop", "", token); resp.StatusCode != 200 {
		t.Fatalf("stop: %d", resp.StatusCode)
	}
}

func expectInsert(mock pgxmock.PgxPoolIface) {
	args := make([]any, 13)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	mock.ExpectQuery("INSERT INTO ride_sessions").
		WithArgs(args...).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
}

func TestFlushWaitsForOverflowedSave(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()
	expectInsert(mock)
	expectInsert(mock)

	cfg := testConfig(t)
	cfg.SaveQueueSize = 1
	s := NewServer(cfg, nil, nil)
	s.Recordings = recording.NewService(mock, ride.DefaultConfig())
	token := bearer(t)

	// the second stop finds the queue full and hands off to a goroutine
	rideOnce(t, s, token)
	rideOnce(t, s, token)

	s.Flush(context.Background())
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("both sessions should be recorded: %v", err)
	}
}

// cancelOnQuery cancels the persister's context as the insert is issued and
// remembers what the insert saw.
type cancelOnQuery struct {
	db.Querier
	cancel context.CancelFunc
	err    error
}

func (q *cancelOnQuery) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.cancel()
	q.err = ctx.Err()
	return q.Querier.QueryRow(ctx, sql, args...)
}

func TestPersistCompletesSaveAfterCancel(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()
	expectInsert(mock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := &cancelOnQuery{Querier: mock, cancel: cancel}

	s := NewServer(testConfig(t), nil, nil)
	s.Recordings = recording.NewService(q, ride.DefaultConfig())
	done := make(chan struct{})
	go func() {
		s.Persist(ctx)
		close(done)
	}()

	rideOnce(t, s, bearer(t))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("persist did not return after cancel")
	}
	if q.err != nil {
		t.Fatalf("insert ran with a cancelled context: %v", q.err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expected the session to be recorded: %v", err)
	}
}
