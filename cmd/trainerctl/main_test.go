package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"backend-mtbtrainer/internal/auth"
	"backend-mtbtrainer/internal/config"
	"backend-mtbtrainer/internal/sensor"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	_, err = root.ExecuteC()
	return buf.String(), err
}

func withConfig(t *testing.T, cfg config.Config) {
	oldLoad, oldRedis := loadConfig, connectRedis
	loadConfig = func() config.Config { return cfg }
	connectRedis = func(config.Config) *redis.Client { return nil }
	t.Cleanup(func() { loadConfig, connectRedis = oldLoad, oldRedis })
}

func writeSession(t *testing.T) string {
	ms := int64(time.Millisecond)
	samples := []sensor.Sample{
		sensor.GPSSpeed{Timestamp: 0, SpeedMps: 8},
		sensor.Accelerometer{Timestamp: 100 * ms, Z: 1},
		sensor.Accelerometer{Timestamp: 500 * ms, Z: 20},
		sensor.GPSSpeed{Timestamp: 600 * ms, SpeedMps: 11},
	}
	data, err := sensor.EncodeAll(samples)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "session_raw_all_20240501_093000.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestReplayPrintsStats(t *testing.T) {
	withConfig(t, config.Config{})
	exportDir := t.TempDir()

	out, err := executeCommand(newRootCmd(), "replay", writeSession(t), "--export-dir", exportDir, "--format", "parquet")
	if err != nil {
		t.Fatalf("replay: %v\n%s", err, out)
	}
	var res replayResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if res.Events != 4 || res.Stats.JumpCount != 1 || res.Summary.MaxSpeedMps != 11 {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.HasSuffix(res.Export, ".parquet") {
		t.Fatalf("expected a parquet export, got %q", res.Export)
	}
	if _, err := os.Stat(res.Export); err != nil {
		t.Fatalf("export missing: %v", err)
	}
}

func TestReplayErrors(t *testing.T) {
	withConfig(t, config.Config{})
	if _, err := executeCommand(newRootCmd(), "replay"); err == nil {
		t.Fatalf("expected an argument error")
	}
	if _, err := executeCommand(newRootCmd(), "replay", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}

	empty := filepath.Join(t.TempDir(), "empty.json")
	_ = os.WriteFile(empty, []byte(`[]`), 0o644)
	out, err := executeCommand(newRootCmd(), "replay", empty)
	if err == nil || !strings.Contains(out+err.Error(), "no samples") {
		t.Fatalf("expected no samples error, got %v %q", err, out)
	}
}

func TestTokenCommand(t *testing.T) {
	withConfig(t, config.Config{JWTSecret: "secret"})

	if _, err := executeCommand(newRootCmd(), "token"); err == nil {
		t.Fatalf("expected --rider to be required")
	}

	out, err := executeCommand(newRootCmd(), "token", "--rider", "rider-7")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	token := strings.TrimSpace(out)
	rider, err := auth.NewService("secret", nil).ValidateAccessToken(token)
	if err != nil || rider != "rider-7" {
		t.Fatalf("token does not verify: %v %q", err, rider)
	}
}

func TestTokenCommandWithRedisIssuesRefresh(t *testing.T) {
	withConfig(t, config.Config{JWTSecret: "secret"})
	mr := miniredis.RunT(t)
	connectRedis = func(config.Config) *redis.Client { return redis.NewClient(&redis.Options{Addr: mr.Addr()}) }

	out, err := executeCommand(newRootCmd(), "token", "--rider", "rider-7")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if !strings.Contains(out, "refresh: ") {
		t.Fatalf("expected a refresh token, got %q", out)
	}
}
