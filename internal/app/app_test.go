package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"zenfocus/internal/database"
	"zenfocus/internal/detection"
	"zenfocus/internal/export"
	"zenfocus/internal/signal"
	"zenfocus/internal/testutils"
	"zenfocus/internal/types"
)

var appNow = time.Date(2026, 3, 12, 18, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *Config {
	t.Helper()
	db := database.TestConfig()
	db.Path = filepath.Join(t.TempDir(), "app.db")
	db.RetentionDays = 30

	det := detection.DefaultConfig()
	det.SmoothingWindow = 1
	det.SideGlanceGraceFrames = 1

	return &Config{
		Environment:     "test",
		UserID:          "tester",
		Location:        "UTC",
		BucketScoreMode: "running",
		LookbackDays:    365,
		LogLevel:        "error",
		Database:        *db,
		Detection:       *det,
	}
}

func startApp(t *testing.T, cfg *Config) (*App, *testutils.FakeClock) {
	t.Helper()
	a, err := NewApp(cfg, &testutils.RecordingLogger{})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	clock := testutils.NewFakeClock(appNow)
	a.SetClock(clock)
	if err := a.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}
	t.Cleanup(func() { a.Shutdown(context.Background()) })
	return a, clock
}

const morningScript = `
user: alice
start: 2026-03-12T09:00:00Z
events:
  - {faceDetected: true, eyesOpen: true, gazeDirection: center, t: 0}
  - {faceDetected: true, eyesOpen: true, gazeDirection: right, t: 1200}
  - {faceDetected: true, eyesOpen: true, gazeDirection: center, t: 1500}
  - {event: end, t: 2400}
`

func TestNewApp_Validates(t *testing.T) {
	if _, err := NewApp(nil, nil); err == nil {
		t.Error("expected error for nil config")
	}
	cfg := testConfig(t)
	cfg.Location = "Nowhere/Town"
	if _, err := NewApp(cfg, nil); err == nil {
		t.Error("expected error for bad location")
	}
}

func TestApp_ReplayStatsAndExport(t *testing.T) {
	a, _ := startApp(t, testConfig(t))
	ctx := context.Background()

	script, err := signal.DecodeYAML(strings.NewReader(morningScript), time.Time{})
	if err != nil {
		t.Fatalf("DecodeYAML() error = %v", err)
	}
	session, summary, err := a.Replay(ctx, script)
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if !summary.EndReached || summary.Frames != 3 {
		t.Errorf("summary = %+v", summary)
	}
	// 35 focused minutes, 5 distracted, one distraction: 87.5 - 2
	if session.UserID != "alice" || session.TotalFocusMinutes != 35 || *session.ProductivityScore != 86 {
		t.Errorf("session = %+v", session)
	}

	stored, err := a.Repository().Get(ctx, session.ID)
	if err != nil || len(stored.Timeline) != 3 {
		t.Fatalf("stored = %+v, %v", stored, err)
	}

	userStats, err := a.Stats().UserStats(ctx, "alice")
	if err != nil {
		t.Fatalf("UserStats() error = %v", err)
	}
	if userStats.TotalSessions != 1 || userStats.TodayFocusMinutes != 35 || userStats.Streaks.CurrentStreak != 1 {
		t.Errorf("user stats = %+v", userStats)
	}

	var buf bytes.Buffer
	if err := a.Export(ctx, &buf, "alice", 7, export.FormatJSON); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	doc, err := export.Read(&buf, export.FormatJSON)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(doc.Sessions) != 1 || doc.Sessions[0].ID != session.ID {
		t.Errorf("exported = %+v", doc.Sessions)
	}
}

func TestApp_LiveSessionInvalidatesCache(t *testing.T) {
	server := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Cache.Addr = server.Addr()
	a, clock := startApp(t, cfg)
	ctx := context.Background()

	before, err := a.Stats().UserStats(ctx, "tester")
	if err != nil || before.TotalSessions != 0 {
		t.Fatalf("UserStats() = %+v, %v", before, err)
	}
	if !server.Exists("zenfocus:stats:tester") {
		t.Fatal("expected stats to be cached")
	}

	tracker, err := a.Sessions().Start("tester", "", nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	clock.Advance(25 * time.Minute)
	if _, err := a.Sessions().End(ctx, tracker.ID()); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if server.Exists("zenfocus:stats:tester") {
		t.Error("ending a session should invalidate cached stats")
	}

	after, err := a.Stats().UserStats(ctx, "tester")
	if err != nil {
		t.Fatalf("UserStats() error = %v", err)
	}
	if after.TotalSessions != 1 || after.TotalFocusMinutes != 25 {
		t.Errorf("UserStats() after session = %+v", after)
	}
}

func TestApp_UnreachableCacheDegrades(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Addr = "127.0.0.1:1"
	a, _ := startApp(t, cfg)

	if _, err := a.Stats().UserStats(context.Background(), "tester"); err != nil {
		t.Errorf("UserStats() without cache error = %v", err)
	}
}

func TestApp_Cleanup(t *testing.T) {
	a, _ := startApp(t, testConfig(t))
	ctx := context.Background()

	old := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	end := old.Add(time.Hour)
	score := 70
	if _, err := a.Repository().Save(ctx, &types.Session{
		ID: "old", UserID: "tester", StartTime: old, EndTime: &end,
		Status: types.SessionCompleted, ProductivityScore: &score,
		Timeline: []types.EventSegment{{Start: old, End: end, State: types.StateFocused, Confidence: 0.9}},
	}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	recorder := a.Logger().(*testutils.RecordingLogger)
	if _, found := recorder.Find("Database optimization completed"); found {
		t.Fatal("store optimized before any cleanup")
	}

	deleted, err := a.Cleanup(ctx)
	if err != nil || deleted != 1 {
		t.Errorf("Cleanup() = %d, %v, want 1", deleted, err)
	}
	if _, found := recorder.Find("Database optimization completed"); !found {
		t.Error("store was not optimized after deleting sessions")
	}

	a.config.Database.RetentionDays = 0
	if deleted, err := a.Cleanup(ctx); err != nil || deleted != 0 {
		t.Errorf("Cleanup() with retention disabled = %d, %v", deleted, err)
	}
}

func TestApp_Health(t *testing.T) {
	a, _ := startApp(t, testConfig(t))
	ctx := context.Background()

	report, err := a.Health(ctx)
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if report.Driver != database.DriverSQLite || report.SchemaVersion != 1 {
		t.Errorf("report = %+v", report)
	}
	if report.OpenConnections < 1 || report.InUse != 0 {
		t.Errorf("pool = %+v, want an open idle connection", report)
	}

	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if _, err := a.Health(ctx); err == nil {
		t.Error("Health() after shutdown expected error")
	}
}

func TestApp_MigrationVersionAndShutdown(t *testing.T) {
	a, _ := startApp(t, testConfig(t))
	ctx := context.Background()

	version, err := a.MigrationVersion(ctx)
	if err != nil || version != 1 {
		t.Errorf("MigrationVersion() = %d, %v", version, err)
	}

	tracker, err := a.Sessions().Start("tester", "open", nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if tracker.Status() != types.SessionCompleted {
		t.Errorf("open session status after shutdown = %v", tracker.Status())
	}
	if _, err := a.MigrationVersion(ctx); err == nil {
		t.Error("MigrationVersion() after shutdown expected error")
	}
}
