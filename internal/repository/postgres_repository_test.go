package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"

	repoerrors "zenfocus/internal/infrastructure/errors"
	"zenfocus/internal/testutils"
	"zenfocus/internal/types"
)

var sessionCols = []string{"id", "user_id", "start_time", "end_time", "status", "timeline",
	"total_focus_minutes", "total_distracted_minutes", "distraction_count", "productivity_score"}

func newMockRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)

	repo := NewPostgresRepository(mock, &testutils.RecordingLogger{})
	retry := repoerrors.DefaultRetryConfig()
	retry.InitialDelay = time.Millisecond
	retry.Jitter = false
	repo.SetRetryConfig(retry)
	return repo, mock
}

func sessionRow(t *testing.T, s *types.Session) []any {
	t.Helper()
	payload, err := json.Marshal(s.Timeline)
	if err != nil {
		t.Fatalf("marshal timeline: %v", err)
	}
	return []any{s.ID, s.UserID, s.StartTime, s.EndTime, string(s.Status), payload,
		s.TotalFocusMinutes, s.TotalDistractedMinutes, s.DistractionCount, s.ProductivityScore}
}

func TestPostgresRepository_Save(t *testing.T) {
	repo, mock := newMockRepo(t)
	session := completedSession("s1", "u1", base, 65)

	mock.ExpectExec(`INSERT INTO focus_sessions`).
		WithArgs("s1", "u1", pgxmock.AnyArg(), pgxmock.AnyArg(), "completed", pgxmock.AnyArg(), 0, 0, 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := repo.Save(context.Background(), session)
	if err != nil || id != "s1" {
		t.Fatalf("Save() = %q, %v", id, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_SaveRejectsOverlappingTimeline(t *testing.T) {
	repo, mock := newMockRepo(t)
	session := completedSession("s1", "u1", base, 65)
	session.Timeline[1].Start = session.Timeline[0].Start

	if _, err := repo.Save(context.Background(), session); !repoerrors.IsValidation(err) {
		t.Fatalf("Save() error = %v, want validation", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected database calls: %v", err)
	}
}

func TestPostgresRepository_SaveRetriesSerializationFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	session := completedSession("s1", "u1", base, 65)

	mock.ExpectExec(`INSERT INTO focus_sessions`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	mock.ExpectExec(`INSERT INTO focus_sessions`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if _, err := repo.Save(context.Background(), session); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_SaveDuplicateIsPermanent(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`INSERT INTO focus_sessions`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23514", Message: "check violation"})

	_, err := repo.Save(context.Background(), completedSession("s1", "u1", base, 65))
	if !repoerrors.HasCode(err, repoerrors.ErrCodeConstraint) {
		t.Fatalf("Save() error = %v, want constraint", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_Query(t *testing.T) {
	repo, mock := newMockRepo(t)
	first := completedSession("s1", "u1", base, 65)
	second := completedSession("s2", "u1", base.Add(time.Hour), 80)

	mock.ExpectQuery(`SELECT id, user_id, start_time`).
		WithArgs("u1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(sessionCols).
			AddRow(sessionRow(t, first)...).
			AddRow(sessionRow(t, second)...))

	got, err := repo.Query(context.Background(), "u1", types.DateRange{From: base, To: base})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "s1" || got[1].ID != "s2" {
		t.Fatalf("Query() = %+v", got)
	}
	if len(got[0].Timeline) != 2 || got[0].Timeline[1].State != types.StateDistracted {
		t.Errorf("timeline = %+v", got[0].Timeline)
	}
	if got[1].ProductivityScore == nil || *got[1].ProductivityScore != 80 {
		t.Errorf("score = %v", got[1].ProductivityScore)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_GetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT id, user_id, start_time`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(sessionCols))

	if _, err := repo.Get(context.Background(), "missing"); !repoerrors.IsNotFound(err) {
		t.Errorf("Get() error = %v, want not found", err)
	}
}

func TestPostgresRepository_DeleteOlderThan(t *testing.T) {
	repo, mock := newMockRepo(t)
	cutoff := base.AddDate(-1, 0, 0)

	mock.ExpectExec(`DELETE FROM focus_sessions`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := repo.DeleteOlderThan(context.Background(), cutoff)
	if err != nil || n != 3 {
		t.Fatalf("DeleteOlderThan() = %d, %v", n, err)
	}

	mock.ExpectExec(`DELETE FROM focus_sessions`).
		WithArgs(cutoff).
		WillReturnError(errors.New("permission denied for table focus_sessions"))
	if _, err := repo.DeleteOlderThan(context.Background(), cutoff); !repoerrors.HasCode(err, repoerrors.ErrCodePermission) {
		t.Errorf("DeleteOlderThan() error = %v, want permission", err)
	}
}
