package queries

import "database/sql"

// Session is a row of the sessions table. Times are unix milliseconds.
type Session struct {
	ID                     string
	UserID                 string
	StartTime              int64
	EndTime                sql.NullInt64
	Status                 string
	TotalFocusMinutes      int64
	TotalDistractedMinutes int64
	DistractionCount       int64
	ProductivityScore      sql.NullInt64
	CreatedAt              int64
}

// SessionSegment is a row of the session_segments table
type SessionSegment struct {
	SessionID  string
	Seq        int64
	StartTime  int64
	EndTime    int64
	State      string
	Confidence float64
}
