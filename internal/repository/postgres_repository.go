package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	repoerrors "zenfocus/internal/infrastructure/errors"
	"zenfocus/internal/infrastructure/logging"
	"zenfocus/internal/types"
)

// Querier is the subset of pgx used by PostgresRepository.
// Both *pgxpool.Pool and pgxmock pools satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository implements SessionRepository with one row per session
// and the timeline stored as JSONB
type PostgresRepository struct {
	db          Querier
	retryConfig *repoerrors.RetryConfig
	logger      logging.Logger
}

var _ SessionRepository = (*PostgresRepository)(nil)

func NewPostgresRepository(db Querier, logger logging.Logger) *PostgresRepository {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &PostgresRepository{db: db, retryConfig: repoerrors.DefaultRetryConfig(), logger: logger}
}

// SetRetryConfig replaces the retry policy
func (r *PostgresRepository) SetRetryConfig(config *repoerrors.RetryConfig) {
	if config != nil {
		r.retryConfig = config
	}
}

const sessionColumns = `id, user_id, start_time, end_time, status, timeline,
       total_focus_minutes, total_distracted_minutes, distraction_count, productivity_score`

func (r *PostgresRepository) fail(op string, err error, errCtx map[string]string) error {
	repoErr := repoerrors.NewRepositoryErrorWithContext(op, err, repoerrors.ClassifyError(err), errCtx)
	if repoErr.IsRetryable() {
		r.logger.Debug("Retryable error in "+op, "error", err)
	} else {
		logging.LogError(r.logger, repoErr, op, nil)
	}
	return repoErr
}

func (r *PostgresRepository) Save(ctx context.Context, session *types.Session) (string, error) {
	start := time.Now()
	if err := validateSession("SaveSession", session); err != nil {
		logging.LogError(r.logger, err, "SaveSession", nil)
		return "", err
	}

	timeline := session.Timeline
	if timeline == nil {
		timeline = []types.EventSegment{}
	}
	payload, err := json.Marshal(timeline)
	if err != nil {
		return "", repoerrors.NewRepositoryError("SaveSession", err, repoerrors.ErrCodeValidation)
	}

	err = repoerrors.WithRetryContext(ctx, r.retryConfig, func() error {
		_, err := r.db.Exec(ctx, `
			INSERT INTO focus_sessions (`+sessionColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (id) DO UPDATE SET
				end_time = EXCLUDED.end_time,
				status = EXCLUDED.status,
				timeline = EXCLUDED.timeline,
				total_focus_minutes = EXCLUDED.total_focus_minutes,
				total_distracted_minutes = EXCLUDED.total_distracted_minutes,
				distraction_count = EXCLUDED.distraction_count,
				productivity_score = EXCLUDED.productivity_score
		`, session.ID, session.UserID, session.StartTime, session.EndTime, string(session.Status), payload,
			session.TotalFocusMinutes, session.TotalDistractedMinutes, session.DistractionCount, session.ProductivityScore)
		if err != nil {
			return r.fail("SaveSession", err, map[string]string{"session_id": session.ID})
		}
		return nil
	}, "SaveSession")
	if err != nil {
		return "", err
	}

	logging.LogOperation(r.logger, "SaveSession", time.Since(start), map[string]interface{}{
		"session_id": session.ID,
		"segments":   len(timeline),
	})
	return session.ID, nil
}

func (r *PostgresRepository) Query(ctx context.Context, userID string, dateRange types.DateRange) ([]types.Session, error) {
	if userID == "" {
		return nil, repoerrors.HandleValidationError("QuerySessions", "user_id", "", "user id is required")
	}
	from, to := dateRange.Bounds()

	var result []types.Session
	err := repoerrors.WithRetryContext(ctx, r.retryConfig, func() error {
		rows, err := r.db.Query(ctx, `
			SELECT `+sessionColumns+`
			FROM focus_sessions
			WHERE user_id=$1 AND start_time >= $2 AND start_time < $3
			ORDER BY start_time
		`, userID, from, to)
		if err != nil {
			return r.fail("QuerySessions", err, map[string]string{"user_id": userID})
		}
		defer rows.Close()

		result = result[:0]
		for rows.Next() {
			session, err := scanSession(rows)
			if err != nil {
				return r.fail("QuerySessions", err, map[string]string{"user_id": userID})
			}
			result = append(result, session)
		}
		if err := rows.Err(); err != nil {
			return r.fail("QuerySessions", err, map[string]string{"user_id": userID})
		}
		return nil
	}, "QuerySessions")
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*types.Session, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM focus_sessions WHERE id=$1`, id)
	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repoerrors.HandleNotFound("GetSession", "session", id)
	}
	if err != nil {
		return nil, r.fail("GetSession", err, map[string]string{"session_id": id})
	}
	return &session, nil
}

func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM focus_sessions WHERE start_time < $1`, cutoff)
	if err != nil {
		return 0, r.fail("DeleteOlderThan", err, map[string]string{"cutoff": cutoff.Format(time.RFC3339)})
	}
	r.logger.Info("Deleted expired sessions", "cutoff", cutoff.Format(time.RFC3339), "deleted", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (types.Session, error) {
	var (
		s        types.Session
		status   string
		timeline []byte
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.StartTime, &s.EndTime, &status, &timeline,
		&s.TotalFocusMinutes, &s.TotalDistractedMinutes, &s.DistractionCount, &s.ProductivityScore); err != nil {
		return types.Session{}, err
	}
	s.Status = types.SessionStatus(status)
	s.Timeline = []types.EventSegment{}
	if len(timeline) > 0 {
		if err := json.Unmarshal(timeline, &s.Timeline); err != nil {
			return types.Session{}, err
		}
	}
	return s, nil
}
