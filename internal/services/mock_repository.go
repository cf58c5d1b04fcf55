package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"zenfocus/internal/infrastructure/errors"
	"zenfocus/internal/repository"
	"zenfocus/internal/types"
)

// MockRepository implements the SessionRepository interface for testing
type MockRepository struct {
	mu               sync.RWMutex
	sessions         map[string]*types.Session
	saveCallCount    int
	queryCallCount   int
	getCallCount     int
	deleteCallCount  int
	shouldFailSave   bool
	shouldFailQuery  bool
	shouldFailDelete bool
}

var _ repository.SessionRepository = (*MockRepository)(nil)

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{sessions: make(map[string]*types.Session)}
}

// SetFailureModes configures the mock to simulate failures
func (m *MockRepository) SetFailureModes(save, query, delete bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailSave = save
	m.shouldFailQuery = query
	m.shouldFailDelete = delete
}

// GetCallCounts returns the number of times each method was called
func (m *MockRepository) GetCallCounts() (save, query, get, delete int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveCallCount, m.queryCallCount, m.getCallCount, m.deleteCallCount
}

// Save implements SessionRepository interface
func (m *MockRepository) Save(ctx context.Context, session *types.Session) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saveCallCount++

	if m.shouldFailSave {
		return "", errors.NewRepositoryError("SaveSession", fmt.Errorf("mock save failure"), errors.ErrCodeConnection)
	}
	if session == nil || session.ID == "" {
		return "", errors.HandleValidationError("SaveSession", "id", "", "session id is required")
	}

	m.sessions[session.ID] = session.Clone()
	return session.ID, nil
}

// Query implements SessionRepository interface
func (m *MockRepository) Query(ctx context.Context, userID string, r types.DateRange) ([]types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queryCallCount++

	if m.shouldFailQuery {
		return nil, errors.NewRepositoryError("QuerySessions", fmt.Errorf("mock query failure"), errors.ErrCodeConnection)
	}

	out := []types.Session{}
	for _, s := range m.sessions {
		if s.UserID == userID && r.Contains(s.StartTime) {
			out = append(out, *s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// Get implements SessionRepository interface
func (m *MockRepository) Get(ctx context.Context, id string) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getCallCount++

	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.HandleNotFound("GetSession", "session", id)
	}
	return s.Clone(), nil
}

// DeleteOlderThan implements SessionRepository interface
func (m *MockRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteCallCount++

	if m.shouldFailDelete {
		return 0, errors.NewRepositoryError("DeleteSessions", fmt.Errorf("mock delete failure"), errors.ErrCodeConnection)
	}

	var deleted int64
	for id, s := range m.sessions {
		if s.StartTime.Before(cutoff) {
			delete(m.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// Len returns the number of stored sessions
func (m *MockRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
