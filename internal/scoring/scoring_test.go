package scoring

import (
	"errors"
	"math"
	"testing"
	"time"

	"zenfocus/internal/types"
)

var base = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type part struct {
	state types.StateKind
	d     time.Duration
}

// build lays segments end to end starting at base
func build(parts ...part) []types.EventSegment {
	var out []types.EventSegment
	cursor := base
	for _, p := range parts {
		out = append(out, types.EventSegment{Start: cursor, End: cursor.Add(p.d), State: p.state, Confidence: 0.8})
		cursor = cursor.Add(p.d)
	}
	return out
}

func seg(state types.StateKind, d time.Duration) part {
	return part{state, d}
}

func TestScore_ReferenceSession(t *testing.T) {
	t.Parallel()

	timeline := build(
		seg(types.StateFocused, 20*time.Minute),
		seg(types.StateDistracted, 4*time.Minute),
		seg(types.StateFocused, 15*time.Minute),
		seg(types.StateDistracted, 3*time.Minute),
		seg(types.StateFocused, 15*time.Minute),
		seg(types.StateDistracted, 3*time.Minute),
	)

	r := Score(timeline)
	if r.TotalFocusMinutes != 50 || r.TotalDistractedMinutes != 10 {
		t.Errorf("minutes = %d/%d, want 50/10", r.TotalFocusMinutes, r.TotalDistractedMinutes)
	}
	if r.DistractionCount != 3 {
		t.Errorf("DistractionCount = %d, want 3", r.DistractionCount)
	}
	if math.Abs(r.FocusRatio-0.8333) > 0.0001 {
		t.Errorf("FocusRatio = %v, want 0.8333", r.FocusRatio)
	}
	if r.Penalty != 6 {
		t.Errorf("Penalty = %d, want 6", r.Penalty)
	}
	if r.ProductivityScore != 77 {
		t.Errorf("ProductivityScore = %d, want 77", r.ProductivityScore)
	}
}

func TestScore_DistractionCountsTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		timeline []types.EventSegment
		want     int
	}{
		{"empty", nil, 0},
		{"leading distraction counts", build(seg(types.StateDistracted, time.Minute), seg(types.StateFocused, time.Minute)), 1},
		{"adjacent distracted segments count once", build(seg(types.StateFocused, time.Minute), seg(types.StateDistracted, time.Minute), seg(types.StateDistracted, time.Minute)), 1},
		{"away between distractions", build(seg(types.StateDistracted, time.Minute), seg(types.StateAway, time.Minute), seg(types.StateDistracted, time.Minute)), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.timeline).DistractionCount; got != tt.want {
				t.Errorf("DistractionCount = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScore_PenaltyCappedAndScoreClamped(t *testing.T) {
	t.Parallel()

	var parts []part
	for i := 0; i < 15; i++ {
		parts = append(parts, seg(types.StateFocused, time.Second), seg(types.StateDistracted, 10*time.Minute))
	}
	r := Score(build(parts...))
	if r.Penalty != maxPenalty {
		t.Errorf("Penalty = %d, want %d", r.Penalty, maxPenalty)
	}
	if r.ProductivityScore != 0 {
		t.Errorf("ProductivityScore = %d, want 0", r.ProductivityScore)
	}
}

func TestScore_InactiveTimeIgnored(t *testing.T) {
	t.Parallel()

	r := Score(build(
		seg(types.StateFocused, 10*time.Minute),
		seg(types.StateSleeping, 30*time.Minute),
		seg(types.StateAway, 30*time.Minute),
		seg(types.StateIdle, 30*time.Minute),
	))
	if r.ProductivityScore != 100 {
		t.Errorf("ProductivityScore = %d, want 100", r.ProductivityScore)
	}

	onlyAway := Score(build(seg(types.StateAway, time.Hour)))
	if onlyAway.FocusRatio != 0 || onlyAway.ProductivityScore != 0 {
		t.Errorf("only away = %+v, want zero ratio and score", onlyAway)
	}
}

func TestScore_ZeroLengthSegment(t *testing.T) {
	t.Parallel()

	r := Score(build(seg(types.StateFocused, 0)))
	if r.ProductivityScore != 0 || r.TotalFocusMinutes != 0 {
		t.Errorf("Score() = %+v, want zeros", r)
	}
}

func TestFinalize(t *testing.T) {
	t.Parallel()

	session := &types.Session{ID: "s1", UserID: "u1", StartTime: base, Status: types.SessionActive}
	timeline := build(seg(types.StateFocused, 30*time.Minute))
	end := base.Add(30 * time.Minute)

	got, err := Finalize(session, timeline, end)
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if got.Status != types.SessionCompleted || got.EndTime == nil || !got.EndTime.Equal(end) {
		t.Errorf("Finalize() status/end = %v/%v", got.Status, got.EndTime)
	}
	if got.ProductivityScore == nil || *got.ProductivityScore != 100 {
		t.Errorf("ProductivityScore = %v, want 100", got.ProductivityScore)
	}
	if session.Status != types.SessionActive {
		t.Error("Finalize() mutated the input session")
	}

	if _, err := Finalize(got, timeline, end); !errors.Is(err, ErrSessionFinal) {
		t.Errorf("second Finalize() error = %v, want ErrSessionFinal", err)
	}
}
