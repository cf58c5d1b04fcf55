package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"zenfocus/internal/database"
	"zenfocus/internal/database/queries"
	repoerrors "zenfocus/internal/infrastructure/errors"
	"zenfocus/internal/infrastructure/logging"
	"zenfocus/internal/types"
)

// SQLiteRepository implements SessionRepository on the embedded store
type SQLiteRepository struct {
	db          *sql.DB
	queries     *queries.Queries
	retryConfig *repoerrors.RetryConfig
	logger      logging.Logger
	now         func() time.Time
}

var _ SessionRepository = (*SQLiteRepository)(nil)

// NewSQLiteRepository creates a repository over a connected service
func NewSQLiteRepository(dbService database.Service, logger logging.Logger) *SQLiteRepository {
	return NewSQLiteRepositoryWithConfig(dbService, nil, logger)
}

// NewSQLiteRepositoryWithConfig is NewSQLiteRepository with a custom retry policy
func NewSQLiteRepositoryWithConfig(dbService database.Service, retryConfig *repoerrors.RetryConfig, logger logging.Logger) *SQLiteRepository {
	if retryConfig == nil {
		retryConfig = repoerrors.DefaultRetryConfig()
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &SQLiteRepository{
		db:          dbService.DB(),
		queries:     dbService.GetQueries(),
		retryConfig: retryConfig,
		logger:      logger,
		now:         time.Now,
	}
}

// SetRetryConfig replaces the retry policy
func (r *SQLiteRepository) SetRetryConfig(config *repoerrors.RetryConfig) {
	if config != nil {
		r.retryConfig = config
	}
}

func (r *SQLiteRepository) SetLogger(logger logging.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// fail classifies err and logs it: debug when it will be retried, error otherwise
func (r *SQLiteRepository) fail(op string, err error, errCtx map[string]string) *repoerrors.RepositoryError {
	repoErr := repoerrors.NewRepositoryErrorWithContext(op, err, repoerrors.ClassifyError(err), errCtx)
	if repoErr.IsRetryable() {
		r.logger.Debug("Retryable error in "+op, "error", err)
	} else {
		fields := make(map[string]interface{}, len(errCtx))
		for k, v := range errCtx {
			fields[k] = v
		}
		logging.LogError(r.logger, repoErr, op, fields)
	}
	return repoErr
}

// Save writes the session row and replaces its segments in one transaction
func (r *SQLiteRepository) Save(ctx context.Context, session *types.Session) (string, error) {
	start := time.Now()
	if err := validateSession("SaveSession", session); err != nil {
		logging.LogError(r.logger, err, "SaveSession", nil)
		return "", err
	}

	row := sessionToRow(session, r.now())
	segments := segmentsToRows(session.ID, session.Timeline)
	errCtx := map[string]string{"session_id": session.ID, "user_id": session.UserID}

	err := r.WithTransaction(ctx, func(tx *SQLiteRepository) error {
		if err := tx.queries.UpsertSession(ctx, row); err != nil {
			return tx.fail("SaveSession", err, errCtx)
		}
		if err := tx.queries.DeleteSegmentsForSession(ctx, session.ID); err != nil {
			return tx.fail("SaveSession", err, errCtx)
		}
		for _, seg := range segments {
			if err := tx.queries.InsertSegment(ctx, seg); err != nil {
				return tx.fail("SaveSession", err, errCtx)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	logging.LogOperation(r.logger, "SaveSession", time.Since(start), map[string]interface{}{
		"session_id": session.ID,
		"segments":   len(segments),
	})
	return session.ID, nil
}

// Query loads sessions and their timelines with two range queries
func (r *SQLiteRepository) Query(ctx context.Context, userID string, dateRange types.DateRange) ([]types.Session, error) {
	start := time.Now()
	if userID == "" {
		return nil, repoerrors.HandleValidationError("QuerySessions", "user_id", "", "user id is required")
	}

	from, to := dateRange.Bounds()
	params := queries.ListSessionsByUserRangeParams{UserID: userID, From: from.UnixMilli(), To: to.UnixMilli()}
	errCtx := map[string]string{
		"user_id": userID,
		"from":    from.Format("2006-01-02"),
		"to":      to.Format("2006-01-02"),
	}

	var result []types.Session
	err := repoerrors.WithRetryContext(ctx, r.retryConfig, func() error {
		rows, err := r.queries.ListSessionsByUserRange(ctx, params)
		if err != nil {
			return r.fail("QuerySessions", err, errCtx)
		}
		segRows, err := r.queries.ListSegmentsByUserRange(ctx, params)
		if err != nil {
			return r.fail("QuerySessions", err, errCtx)
		}

		bySession := make(map[string][]queries.SessionSegment, len(rows))
		for _, seg := range segRows {
			bySession[seg.SessionID] = append(bySession[seg.SessionID], seg)
		}
		result = make([]types.Session, 0, len(rows))
		for _, row := range rows {
			result = append(result, sessionFromRow(row, bySession[row.ID]))
		}
		return nil
	}, "QuerySessions")
	if err != nil {
		return nil, err
	}

	logging.LogOperation(r.logger, "QuerySessions", time.Since(start), map[string]interface{}{
		"user_id":  userID,
		"sessions": len(result),
	})
	return result, nil
}

// Get loads one session by id
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*types.Session, error) {
	var result *types.Session
	err := repoerrors.WithRetryContext(ctx, r.retryConfig, func() error {
		row, err := r.queries.GetSession(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return repoerrors.HandleNotFound("GetSession", "session", id)
		}
		if err != nil {
			return r.fail("GetSession", err, map[string]string{"session_id": id})
		}
		segments, err := r.queries.ListSegments(ctx, id)
		if err != nil {
			return r.fail("GetSession", err, map[string]string{"session_id": id})
		}
		session := sessionFromRow(row, segments)
		result = &session
		return nil
	}, "GetSession")
	return result, err
}

// DeleteOlderThan removes sessions that started before cutoff with their segments
func (r *SQLiteRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	errCtx := map[string]string{"cutoff": cutoff.Format(time.RFC3339)}

	var deleted int64
	err := r.WithTransaction(ctx, func(tx *SQLiteRepository) error {
		if err := tx.queries.DeleteSegmentsBefore(ctx, cutoff.UnixMilli()); err != nil {
			return tx.fail("DeleteOlderThan", err, errCtx)
		}
		n, err := tx.queries.DeleteSessionsBefore(ctx, cutoff.UnixMilli())
		if err != nil {
			return tx.fail("DeleteOlderThan", err, errCtx)
		}
		deleted = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	logging.LogOperation(r.logger, "DeleteOlderThan", time.Since(start), map[string]interface{}{
		"cutoff":  cutoff.Format(time.RFC3339),
		"deleted": deleted,
	})
	return deleted, nil
}

// WithTransaction runs fn against a repository bound to a transaction, retrying
// the whole transaction on transient failures.
func (r *SQLiteRepository) WithTransaction(ctx context.Context, fn func(tx *SQLiteRepository) error) error {
	start := time.Now()

	err := repoerrors.WithRetryContext(ctx, r.retryConfig, func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return r.fail("WithTransaction.Begin", err, nil)
		}

		committed := false
		defer func() {
			if committed {
				return
			}
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.Debug("Failed to rollback transaction", "rollback_error", rbErr)
			}
		}()

		txRepo := &SQLiteRepository{
			db:          r.db,
			queries:     r.queries.WithTx(tx),
			retryConfig: r.retryConfig,
			logger:      r.logger,
			now:         r.now,
		}
		if err := fn(txRepo); err != nil {
			r.logger.Debug("Transaction function failed", "error", err)
			return err
		}

		if err := tx.Commit(); err != nil {
			return r.fail("WithTransaction.Commit", err, nil)
		}
		committed = true
		return nil
	}, "WithTransaction")

	if err == nil {
		logging.LogOperation(r.logger, "WithTransaction", time.Since(start), nil)
	}
	return err
}
