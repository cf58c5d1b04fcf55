package repository

import (
	"context"
	"time"

	"zenfocus/internal/types"
)

// SessionRepository persists finalized sessions.
// Stats are computed from Query alone.
type SessionRepository interface {
	// Save inserts or replaces a session and its timeline and returns its id
	Save(ctx context.Context, session *types.Session) (string, error)
	// Query returns the user's sessions whose start falls within r, oldest first
	Query(ctx context.Context, userID string, r types.DateRange) ([]types.Session, error)
	Get(ctx context.Context, id string) (*types.Session, error)
	// DeleteOlderThan removes sessions that started before cutoff and reports how many
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
