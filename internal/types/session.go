package types

import "time"

// EventSegment is a maximal interval during which the smoothed state did not change
type EventSegment struct {
	Start      time.Time `json:"start" yaml:"start"`
	End        time.Time `json:"end" yaml:"end"`
	State      StateKind `json:"state" yaml:"state"`
	Confidence float64   `json:"confidence" yaml:"confidence"`
}

// Duration returns End - Start
func (s EventSegment) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// SessionStatus is the lifecycle status of a session
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionAborted   SessionStatus = "aborted"
)

// Session is one focus session and, once completed, its computed results
type Session struct {
	ID                     string         `json:"id" yaml:"id"`
	UserID                 string         `json:"userId" yaml:"userId"`
	StartTime              time.Time      `json:"startTime" yaml:"startTime"`
	EndTime                *time.Time     `json:"endTime,omitempty" yaml:"endTime,omitempty"`
	Status                 SessionStatus  `json:"status" yaml:"status"`
	Timeline               []EventSegment `json:"timeline" yaml:"timeline"`
	TotalFocusMinutes      int            `json:"totalFocusMinutes" yaml:"totalFocusMinutes"`
	TotalDistractedMinutes int            `json:"totalDistractedMinutes" yaml:"totalDistractedMinutes"`
	DistractionCount       int            `json:"distractionCount" yaml:"distractionCount"`
	ProductivityScore      *int           `json:"productivityScore,omitempty" yaml:"productivityScore,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate a finalized record
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	if s.ProductivityScore != nil {
		score := *s.ProductivityScore
		out.ProductivityScore = &score
	}
	if s.Timeline != nil {
		out.Timeline = make([]EventSegment, len(s.Timeline))
		copy(out.Timeline, s.Timeline)
	}
	return &out
}

// IsFinal reports whether the session can no longer change
func (s *Session) IsFinal() bool {
	return s.Status == SessionCompleted || s.Status == SessionAborted
}
