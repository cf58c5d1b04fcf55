package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"zenfocus/internal/types"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ZENFOCUS_ENVIRONMENT", "test")
	t.Setenv("ZENFOCUS_DATABASE_PATH", filepath.Join(dir, "cli.db"))
	t.Setenv("ZENFOCUS_LOCATION", "UTC")
	t.Setenv("ZENFOCUS_USER", "cli-user")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeScript(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "session.jsonl")
	script := `{"t": 0, "faceDetected": true, "eyesOpen": true, "gazeDirection": "center"}
{"t": 600, "faceDetected": true, "eyesOpen": true, "gazeDirection": "center"}
{"event": "end", "t": 1200}
`
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCLI_ReplayThenStats(t *testing.T) {
	dir := setupEnv(t)
	script := writeScript(t, dir)
	start := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)

	out, err := run(t, "replay", script, "--start", start)
	if err != nil {
		t.Fatalf("replay error = %v\n%s", err, out)
	}
	var replayed struct {
		Session types.Session `json:"session"`
		Frames  int           `json:"frames"`
	}
	if err := json.Unmarshal([]byte(out), &replayed); err != nil {
		t.Fatalf("replay output is not json: %v\n%s", err, out)
	}
	if replayed.Frames != 2 || replayed.Session.TotalFocusMinutes != 20 || replayed.Session.UserID != "cli-user" {
		t.Errorf("replayed = %+v", replayed)
	}

	out, err = run(t, "stats")
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	var stats types.UserStats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("stats output is not json: %v\n%s", err, out)
	}
	if stats.TotalSessions != 1 || stats.TotalFocusMinutes != 20 || stats.AverageProductivityScore != 100 {
		t.Errorf("stats = %+v", stats)
	}

	out, err = run(t, "stats", "--user", "someone-else")
	if err != nil || !strings.Contains(out, `"totalSessions": 0`) {
		t.Errorf("stats for other user = %s, %v", out, err)
	}

	out, err = run(t, "export", "--format", "yaml", "--days", "3")
	if err != nil || !strings.Contains(out, "userId: cli-user") || !strings.Contains(out, "state: FOCUSED") {
		t.Errorf("export = %s, %v", out, err)
	}

	out, err = run(t, "daily", "--days", "3")
	if err != nil {
		t.Fatalf("daily error = %v", err)
	}
	var buckets []types.DailyAggregate
	if err := json.Unmarshal([]byte(out), &buckets); err != nil || len(buckets) != 3 {
		t.Errorf("daily = %s, %v", out, err)
	}
}

func TestCLI_Migrate(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "migrate")
	if err != nil || !strings.Contains(out, "schema version 1") {
		t.Errorf("migrate = %q, %v", out, err)
	}
}

func TestCLI_Cleanup(t *testing.T) {
	setupEnv(t)
	// the test preset disables retention
	out, err := run(t, "cleanup")
	if err != nil || !strings.Contains(out, "deleted 0 sessions") {
		t.Errorf("cleanup = %q, %v", out, err)
	}
}

func TestCLI_Health(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "health")
	if err != nil {
		t.Fatalf("health error = %v", err)
	}
	var report struct {
		Driver        string `json:"driver"`
		SchemaVersion int64  `json:"schemaVersion"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("health output %q: %v", out, err)
	}
	if report.Driver != "sqlite" || report.SchemaVersion != 1 {
		t.Errorf("health = %+v", report)
	}
}

func TestCLI_Errors(t *testing.T) {
	dir := setupEnv(t)

	if _, err := run(t, "replay", filepath.Join(dir, "missing.jsonl")); err == nil {
		t.Error("replay of a missing file should fail")
	}
	if _, err := run(t, "replay", writeScript(t, dir), "--format", "csv"); err == nil {
		t.Error("replay with unknown format should fail")
	}
	if _, err := run(t, "export", "--format", "xml"); err == nil {
		t.Error("export with unknown format should fail")
	}
	if _, err := run(t, "daily", "--days", "0"); err == nil {
		t.Error("daily with zero days should fail")
	}

	bad := filepath.Join(dir, "bad.jsonl")
	os.WriteFile(bad, []byte(`{"gazeDirection": "backwards"}`), 0o644)
	_, err := run(t, "replay", bad)
	if err == nil || !strings.Contains(err.Error(), "invalid signal") {
		t.Errorf("replay of invalid script error = %v", err)
	}
}
