package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"zenfocus/internal/detection"
	"zenfocus/internal/infrastructure/logging"
	"zenfocus/internal/platform"
	"zenfocus/internal/repository"
	"zenfocus/internal/types"
)

var (
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
)

const (
	cleanupInterval = 5 * time.Minute
	finalizedTTL    = time.Hour
)

// ManagerConfig configures a SessionManager
type ManagerConfig struct {
	Detection  *detection.Config
	Repository repository.SessionRepository
	Clock      platform.Clock
	Logger     logging.Logger
	// OnEnd runs after a session is finalized and saved without error
	OnEnd func(ctx context.Context, session *types.Session)
}

type finalizedEntry struct {
	session *types.Session
	at      time.Time
}

// SessionManager maps session ids to live trackers. Finalized sessions stay
// addressable for an hour so late frames are rejected with ErrSessionFinalized
// instead of ErrSessionNotFound.
type SessionManager struct {
	mu        sync.Mutex
	active    map[string]*FocusTracker
	finalized map[string]finalizedEntry
	config    ManagerConfig
	done      chan struct{}
	closeOnce sync.Once
}

// NewSessionManager creates a manager and starts its cleanup loop
func NewSessionManager(cfg ManagerConfig) *SessionManager {
	if cfg.Clock == nil {
		cfg.Clock = platform.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDefaultLogger()
	}
	if cfg.Detection == nil {
		cfg.Detection = detection.DefaultConfig()
	}
	m := &SessionManager{
		active:    make(map[string]*FocusTracker),
		finalized: make(map[string]finalizedEntry),
		config:    cfg,
		done:      make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Start opens a session for userID. An empty id gets a generated one.
// overrides, when non-nil, replaces the manager's detection config for this session.
func (m *SessionManager) Start(userID, id string, overrides *detection.Config) (*FocusTracker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if _, ok := m.active[id]; ok {
			return nil, ErrSessionExists
		}
		if _, ok := m.finalized[id]; ok {
			return nil, ErrSessionExists
		}
	}

	cfg := m.config.Detection
	if overrides != nil {
		cfg = overrides
	}
	tracker, err := NewFocusTracker(userID, TrackerOptions{
		ID:         id,
		Detection:  cfg,
		Repository: m.config.Repository,
		Clock:      m.config.Clock,
		Logger:     m.config.Logger,
	})
	if err != nil {
		return nil, err
	}
	m.active[tracker.ID()] = tracker
	return tracker, nil
}

// lookup returns the live tracker, or ErrSessionFinalized / ErrSessionNotFound
func (m *SessionManager) lookup(id string) (*FocusTracker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tracker, ok := m.active[id]; ok {
		return tracker, nil
	}
	if _, ok := m.finalized[id]; ok {
		return nil, ErrSessionFinalized
	}
	return nil, ErrSessionNotFound
}

// HandleFrame routes a frame to its session
func (m *SessionManager) HandleFrame(id string, frame types.FrameSignal) (detection.Result, error) {
	tracker, err := m.lookup(id)
	if err != nil {
		return detection.Result{}, err
	}
	return tracker.HandleFrame(frame)
}

func (m *SessionManager) Pause(id string) error {
	tracker, err := m.lookup(id)
	if err != nil {
		return err
	}
	return tracker.Pause()
}

func (m *SessionManager) Resume(id string) error {
	tracker, err := m.lookup(id)
	if err != nil {
		return err
	}
	return tracker.Resume()
}

// End finalizes and persists the session. The finalized session is returned
// even when persisting fails.
func (m *SessionManager) End(ctx context.Context, id string) (*types.Session, error) {
	tracker, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	session, err := tracker.End(ctx)
	if session != nil {
		m.retire(id, session)
	}
	if err == nil && m.config.OnEnd != nil {
		m.config.OnEnd(ctx, session.Clone())
	}
	return session, err
}

// Abort discards the session without scoring or persisting it
func (m *SessionManager) Abort(id string) (*types.Session, error) {
	tracker, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	session, err := tracker.Abort()
	if session != nil {
		m.retire(id, session)
	}
	return session, err
}

// Get returns a snapshot of a live or recently finalized session
func (m *SessionManager) Get(id string) (*types.Session, error) {
	m.mu.Lock()
	tracker, live := m.active[id]
	entry, final := m.finalized[id]
	m.mu.Unlock()

	switch {
	case live:
		return tracker.Snapshot(), nil
	case final:
		return entry.session.Clone(), nil
	}
	return nil, ErrSessionNotFound
}

// Active lists the ids of sessions that have not been finalized
func (m *SessionManager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	return ids
}

// Close stops the cleanup loop. Live sessions are left untouched.
func (m *SessionManager) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

func (m *SessionManager) retire(id string, session *types.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, id)
	m.finalized[id] = finalizedEntry{session: session, at: m.config.Clock.Now()}
}

func (m *SessionManager) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.done:
			return
		}
	}
}

// cleanup forgets finalized sessions older than finalizedTTL
func (m *SessionManager) cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.config.Clock.Now().Add(-finalizedTTL)
	removed := 0
	for id, entry := range m.finalized {
		if entry.at.Before(cutoff) {
			delete(m.finalized, id)
			removed++
		}
	}
	if removed > 0 {
		m.config.Logger.Debug("Finalized sessions cleaned up", "removed", removed)
	}
	return removed
}
