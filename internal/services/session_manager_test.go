package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"zenfocus/internal/testutils"
	"zenfocus/internal/types"
)

func newManager(t *testing.T, repo *MockRepository) (*SessionManager, *testutils.FakeClock) {
	t.Helper()
	clock := testutils.NewFakeClock(t0)
	cfg := ManagerConfig{Detection: responsiveConfig(), Clock: clock, Logger: &testutils.RecordingLogger{}}
	if repo != nil {
		cfg.Repository = repo
	}
	m := NewSessionManager(cfg)
	t.Cleanup(m.Close)
	return m, clock
}

func TestSessionManager_Lifecycle(t *testing.T) {
	repo := NewMockRepository()
	m, clock := newManager(t, repo)
	ctx := context.Background()

	if _, err := m.Start("u1", "s1", nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := m.Start("u1", "s1", nil); !errors.Is(err, ErrSessionExists) {
		t.Errorf("duplicate Start() error = %v, want ErrSessionExists", err)
	}

	clock.Advance(5 * time.Minute)
	if _, err := m.HandleFrame("s1", awayFrame); err != nil {
		t.Fatalf("HandleFrame() error = %v", err)
	}
	clock.Advance(5 * time.Minute)
	if err := m.Pause("s1"); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if err := m.Resume("s1"); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}

	live, err := m.Get("s1")
	if err != nil || live.Status != types.SessionActive || len(live.Timeline) != 2 {
		t.Fatalf("Get() live = %+v, %v", live, err)
	}

	session, err := m.End(ctx, "s1")
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if session.TotalFocusMinutes != 5 {
		t.Errorf("focus minutes = %d, want 5", session.TotalFocusMinutes)
	}
	if repo.Len() != 1 {
		t.Errorf("repository holds %d sessions, want 1", repo.Len())
	}
	if len(m.Active()) != 0 {
		t.Errorf("Active() = %v, want none", m.Active())
	}

	if _, err := m.HandleFrame("s1", centerFrame); !errors.Is(err, ErrSessionFinalized) {
		t.Errorf("frame after End error = %v, want ErrSessionFinalized", err)
	}
	if _, err := m.End(ctx, "s1"); !errors.Is(err, ErrSessionFinalized) {
		t.Errorf("second End() error = %v, want ErrSessionFinalized", err)
	}
	if _, err := m.Start("u1", "s1", nil); !errors.Is(err, ErrSessionExists) {
		t.Errorf("restart of finalized id error = %v, want ErrSessionExists", err)
	}

	final, err := m.Get("s1")
	if err != nil || final.Status != types.SessionCompleted || *final.ProductivityScore != *session.ProductivityScore {
		t.Errorf("Get() final = %+v, %v", final, err)
	}
}

func TestSessionManager_UnknownSession(t *testing.T) {
	m, _ := newManager(t, nil)

	if _, err := m.HandleFrame("missing", centerFrame); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("HandleFrame() error = %v", err)
	}
	if err := m.Pause("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Pause() error = %v", err)
	}
	if _, err := m.Get("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() error = %v", err)
	}
}

func TestSessionManager_Abort(t *testing.T) {
	repo := NewMockRepository()
	m, _ := newManager(t, repo)

	if _, err := m.Start("u1", "s1", nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	session, err := m.Abort("s1")
	if err != nil || session.Status != types.SessionAborted {
		t.Fatalf("Abort() = %+v, %v", session, err)
	}
	if repo.Len() != 0 {
		t.Error("aborted session must not be persisted")
	}
	if _, err := m.HandleFrame("s1", centerFrame); !errors.Is(err, ErrSessionFinalized) {
		t.Errorf("frame after Abort error = %v", err)
	}
}

func TestSessionManager_OnEnd(t *testing.T) {
	repo := NewMockRepository()
	var ended []string
	m := NewSessionManager(ManagerConfig{
		Repository: repo,
		Clock:      testutils.NewFakeClock(t0),
		Logger:     &testutils.RecordingLogger{},
		OnEnd: func(_ context.Context, s *types.Session) {
			ended = append(ended, s.ID)
		},
	})
	defer m.Close()

	m.Start("u1", "ok", nil)
	m.Start("u1", "fails", nil)
	m.End(context.Background(), "ok")

	repo.SetFailureModes(true, false, false)
	if _, err := m.End(context.Background(), "fails"); err == nil {
		t.Fatal("End() expected save error")
	}
	if len(ended) != 1 || ended[0] != "ok" {
		t.Errorf("OnEnd calls = %v, want [ok]", ended)
	}
}

func TestSessionManager_CleanupForgetsOldSessions(t *testing.T) {
	m, clock := newManager(t, nil)

	m.Start("u1", "old", nil)
	m.End(context.Background(), "old")
	clock.Advance(30 * time.Minute)
	m.Start("u1", "recent", nil)
	m.End(context.Background(), "recent")

	clock.Advance(45 * time.Minute)
	if removed := m.cleanup(); removed != 1 {
		t.Errorf("cleanup() removed %d, want 1", removed)
	}
	if _, err := m.HandleFrame("old", centerFrame); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("old session error = %v, want ErrSessionNotFound", err)
	}
	if _, err := m.HandleFrame("recent", centerFrame); !errors.Is(err, ErrSessionFinalized) {
		t.Errorf("recent session error = %v, want ErrSessionFinalized", err)
	}
}

func TestSessionManager_ConcurrentSessions(t *testing.T) {
	repo := NewMockRepository()
	m, _ := newManager(t, repo)

	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		if _, err := m.Start("u1", id, nil); err != nil {
			t.Fatalf("Start(%s) error = %v", id, err)
		}
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m.HandleFrame(id, centerFrame)
			}
			m.End(context.Background(), id)
			m.HandleFrame(id, awayFrame)
		}(id)
	}
	wg.Wait()

	if repo.Len() != len(ids) {
		t.Errorf("saved %d sessions, want %d", repo.Len(), len(ids))
	}
}
