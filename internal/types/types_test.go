package types

import (
	"errors"
	"testing"
	"time"
)

func TestDateRange_Bounds(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	r := DateRange{
		From: time.Date(2026, 3, 10, 17, 45, 0, 0, loc),
		To:   time.Date(2026, 3, 12, 8, 0, 0, 0, loc),
	}
	from, to := r.Bounds()
	if !from.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, loc)) || !to.Equal(time.Date(2026, 3, 13, 0, 0, 0, 0, loc)) {
		t.Errorf("Bounds() = %v, %v", from, to)
	}

	tests := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2026, 3, 10, 0, 0, 0, 0, loc), true},
		{time.Date(2026, 3, 12, 23, 59, 59, 0, loc), true},
		{time.Date(2026, 3, 13, 0, 0, 0, 0, loc), false},
		{time.Date(2026, 3, 9, 23, 59, 59, 0, loc), false},
		// 2026-03-12 22:30 UTC is 01:30 on the 13th in UTC+3
		{time.Date(2026, 3, 12, 22, 30, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.at); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestParseEnums(t *testing.T) {
	if kind, err := ParseStateKind(" distracted "); err != nil || kind != StateDistracted {
		t.Errorf("ParseStateKind() = %v, %v", kind, err)
	}
	if _, err := ParseStateKind("BORED"); !errors.Is(err, ErrInvalidSignal) {
		t.Errorf("ParseStateKind(BORED) error = %v", err)
	}
	if gaze, err := ParseGazeDirection("Up"); err != nil || gaze != GazeUp {
		t.Errorf("ParseGazeDirection() = %v, %v", gaze, err)
	}
	if _, err := ParseGazeDirection(""); !errors.Is(err, ErrInvalidSignal) {
		t.Errorf("ParseGazeDirection(empty) error = %v", err)
	}
	if StateAway.Index() != 4 || StateKind("x").Index() != -1 {
		t.Error("Index() does not follow enumeration order")
	}
}

func TestSession_CloneIsDeep(t *testing.T) {
	end := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	score := 75
	s := &Session{
		ID:                "s1",
		EndTime:           &end,
		Status:            SessionCompleted,
		ProductivityScore: &score,
		Timeline:          []EventSegment{{State: StateFocused}},
	}
	c := s.Clone()
	*c.EndTime = end.Add(time.Hour)
	*c.ProductivityScore = 10
	c.Timeline[0].State = StateAway

	if !s.EndTime.Equal(end) || *s.ProductivityScore != 75 || s.Timeline[0].State != StateFocused {
		t.Errorf("original mutated through clone: %+v", s)
	}
	if !s.IsFinal() || (&Session{Status: SessionPaused}).IsFinal() {
		t.Error("IsFinal() mismatch")
	}
	var nilSession *Session
	if nilSession.Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
}
