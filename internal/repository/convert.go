package repository

import (
	"database/sql"
	"time"

	"zenfocus/internal/database/queries"
	repoerrors "zenfocus/internal/infrastructure/errors"
	"zenfocus/internal/timeline"
	"zenfocus/internal/types"
)

func validateSession(op string, session *types.Session) error {
	switch {
	case session == nil:
		return repoerrors.HandleValidationError(op, "session", "nil", "session is nil")
	case session.ID == "":
		return repoerrors.HandleValidationError(op, "id", "", "session id is required")
	case session.UserID == "":
		return repoerrors.HandleValidationError(op, "user_id", "", "user id is required")
	}
	if err := timeline.Validate(session.Timeline); err != nil {
		return repoerrors.HandleValidationError(op, "timeline", session.ID, err.Error())
	}
	return nil
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func sessionToRow(s *types.Session, createdAt time.Time) queries.Session {
	return queries.Session{
		ID:                     s.ID,
		UserID:                 s.UserID,
		StartTime:              s.StartTime.UnixMilli(),
		EndTime:                nullMillis(s.EndTime),
		Status:                 string(s.Status),
		TotalFocusMinutes:      int64(s.TotalFocusMinutes),
		TotalDistractedMinutes: int64(s.TotalDistractedMinutes),
		DistractionCount:       int64(s.DistractionCount),
		ProductivityScore:      nullInt(s.ProductivityScore),
		CreatedAt:              createdAt.UnixMilli(),
	}
}

func segmentsToRows(sessionID string, timeline []types.EventSegment) []queries.SessionSegment {
	rows := make([]queries.SessionSegment, len(timeline))
	for i, seg := range timeline {
		rows[i] = queries.SessionSegment{
			SessionID:  sessionID,
			Seq:        int64(i),
			StartTime:  seg.Start.UnixMilli(),
			EndTime:    seg.End.UnixMilli(),
			State:      string(seg.State),
			Confidence: seg.Confidence,
		}
	}
	return rows
}

func sessionFromRow(row queries.Session, segments []queries.SessionSegment) types.Session {
	s := types.Session{
		ID:                     row.ID,
		UserID:                 row.UserID,
		StartTime:              time.UnixMilli(row.StartTime),
		Status:                 types.SessionStatus(row.Status),
		TotalFocusMinutes:      int(row.TotalFocusMinutes),
		TotalDistractedMinutes: int(row.TotalDistractedMinutes),
		DistractionCount:       int(row.DistractionCount),
		Timeline:               make([]types.EventSegment, 0, len(segments)),
	}
	if row.EndTime.Valid {
		end := time.UnixMilli(row.EndTime.Int64)
		s.EndTime = &end
	}
	if row.ProductivityScore.Valid {
		score := int(row.ProductivityScore.Int64)
		s.ProductivityScore = &score
	}
	for _, seg := range segments {
		s.Timeline = append(s.Timeline, types.EventSegment{
			Start:      time.UnixMilli(seg.StartTime),
			End:        time.UnixMilli(seg.EndTime),
			State:      types.StateKind(seg.State),
			Confidence: seg.Confidence,
		})
	}
	return s
}
