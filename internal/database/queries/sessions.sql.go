package queries

import (
	"context"
)

const upsertSession = `
INSERT INTO sessions (
    id, user_id, start_time, end_time, status,
    total_focus_minutes, total_distracted_minutes, distraction_count, productivity_score, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    end_time = excluded.end_time,
    status = excluded.status,
    total_focus_minutes = excluded.total_focus_minutes,
    total_distracted_minutes = excluded.total_distracted_minutes,
    distraction_count = excluded.distraction_count,
    productivity_score = excluded.productivity_score
`

type UpsertSessionParams = Session

func (q *Queries) UpsertSession(ctx context.Context, arg UpsertSessionParams) error {
	_, err := q.db.ExecContext(ctx, upsertSession,
		arg.ID,
		arg.UserID,
		arg.StartTime,
		arg.EndTime,
		arg.Status,
		arg.TotalFocusMinutes,
		arg.TotalDistractedMinutes,
		arg.DistractionCount,
		arg.ProductivityScore,
		arg.CreatedAt,
	)
	return err
}

const deleteSegmentsForSession = `DELETE FROM session_segments WHERE session_id = ?`

func (q *Queries) DeleteSegmentsForSession(ctx context.Context, sessionID string) error {
	_, err := q.db.ExecContext(ctx, deleteSegmentsForSession, sessionID)
	return err
}

const insertSegment = `
INSERT INTO session_segments (session_id, seq, start_time, end_time, state, confidence)
VALUES (?, ?, ?, ?, ?, ?)
`

type InsertSegmentParams = SessionSegment

func (q *Queries) InsertSegment(ctx context.Context, arg InsertSegmentParams) error {
	_, err := q.db.ExecContext(ctx, insertSegment,
		arg.SessionID,
		arg.Seq,
		arg.StartTime,
		arg.EndTime,
		arg.State,
		arg.Confidence,
	)
	return err
}

const getSession = `
SELECT id, user_id, start_time, end_time, status,
       total_focus_minutes, total_distracted_minutes, distraction_count, productivity_score, created_at
FROM sessions
WHERE id = ?
`

func (q *Queries) GetSession(ctx context.Context, id string) (Session, error) {
	row := q.db.QueryRowContext(ctx, getSession, id)
	var i Session
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.StartTime,
		&i.EndTime,
		&i.Status,
		&i.TotalFocusMinutes,
		&i.TotalDistractedMinutes,
		&i.DistractionCount,
		&i.ProductivityScore,
		&i.CreatedAt,
	)
	return i, err
}

const listSegments = `
SELECT session_id, seq, start_time, end_time, state, confidence
FROM session_segments
WHERE session_id = ?
ORDER BY seq
`

func (q *Queries) ListSegments(ctx context.Context, sessionID string) ([]SessionSegment, error) {
	rows, err := q.db.QueryContext(ctx, listSegments, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SessionSegment
	for rows.Next() {
		var i SessionSegment
		if err := rows.Scan(&i.SessionID, &i.Seq, &i.StartTime, &i.EndTime, &i.State, &i.Confidence); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listSessionsByUserRange = `
SELECT id, user_id, start_time, end_time, status,
       total_focus_minutes, total_distracted_minutes, distraction_count, productivity_score, created_at
FROM sessions
WHERE user_id = ? AND start_time >= ? AND start_time < ?
ORDER BY start_time
`

type ListSessionsByUserRangeParams struct {
	UserID string
	From   int64
	To     int64
}

func (q *Queries) ListSessionsByUserRange(ctx context.Context, arg ListSessionsByUserRangeParams) ([]Session, error) {
	rows, err := q.db.QueryContext(ctx, listSessionsByUserRange, arg.UserID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Session
	for rows.Next() {
		var i Session
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.StartTime,
			&i.EndTime,
			&i.Status,
			&i.TotalFocusMinutes,
			&i.TotalDistractedMinutes,
			&i.DistractionCount,
			&i.ProductivityScore,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listSegmentsByUserRange = `
SELECT g.session_id, g.seq, g.start_time, g.end_time, g.state, g.confidence
FROM session_segments g
JOIN sessions s ON s.id = g.session_id
WHERE s.user_id = ? AND s.start_time >= ? AND s.start_time < ?
ORDER BY g.session_id, g.seq
`

type ListSegmentsByUserRangeParams = ListSessionsByUserRangeParams

func (q *Queries) ListSegmentsByUserRange(ctx context.Context, arg ListSegmentsByUserRangeParams) ([]SessionSegment, error) {
	rows, err := q.db.QueryContext(ctx, listSegmentsByUserRange, arg.UserID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SessionSegment
	for rows.Next() {
		var i SessionSegment
		if err := rows.Scan(&i.SessionID, &i.Seq, &i.StartTime, &i.EndTime, &i.State, &i.Confidence); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteSegmentsBefore = `
DELETE FROM session_segments
WHERE session_id IN (SELECT id FROM sessions WHERE start_time < ?)
`

func (q *Queries) DeleteSegmentsBefore(ctx context.Context, cutoff int64) error {
	_, err := q.db.ExecContext(ctx, deleteSegmentsBefore, cutoff)
	return err
}

const deleteSessionsBefore = `DELETE FROM sessions WHERE start_time < ?`

func (q *Queries) DeleteSessionsBefore(ctx context.Context, cutoff int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteSessionsBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
