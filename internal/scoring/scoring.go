// Package scoring reduces a finalized timeline to totals and a productivity score.
package scoring

import (
	"errors"
	"math"
	"time"

	"zenfocus/internal/types"
)

const (
	penaltyPerDistraction = 2
	maxPenalty            = 20
)

// ErrSessionFinal is returned when finalizing a session that is already completed or aborted
var ErrSessionFinal = errors.New("session already finalized")

// Result holds everything derived from one timeline
type Result struct {
	TotalFocus             time.Duration
	TotalDistracted        time.Duration
	DistractionCount       int
	FocusRatio             float64
	Penalty                int
	ProductivityScore      int
	TotalFocusMinutes      int
	TotalDistractedMinutes int
}

// Score computes totals and the productivity score. IDLE, AWAY and SLEEPING
// time is ignored entirely.
func Score(timeline []types.EventSegment) Result {
	var r Result
	for i, seg := range timeline {
		switch seg.State {
		case types.StateFocused:
			r.TotalFocus += seg.Duration()
		case types.StateDistracted:
			r.TotalDistracted += seg.Duration()
			if i == 0 || timeline[i-1].State != types.StateDistracted {
				r.DistractionCount++
			}
		}
	}

	if denom := r.TotalFocus + r.TotalDistracted; denom > 0 {
		r.FocusRatio = float64(r.TotalFocus) / float64(denom)
	}
	r.Penalty = min(r.DistractionCount*penaltyPerDistraction, maxPenalty)
	r.ProductivityScore = clamp(int(math.Round(r.FocusRatio*100-float64(r.Penalty))), 0, 100)
	r.TotalFocusMinutes = toMinutes(r.TotalFocus)
	r.TotalDistractedMinutes = toMinutes(r.TotalDistracted)
	return r
}

// Finalize scores the timeline and writes the results into a copy of session,
// marking it completed at endTime. The input session is not modified.
func Finalize(session *types.Session, timeline []types.EventSegment, endTime time.Time) (*types.Session, error) {
	if session == nil {
		return nil, errors.New("finalize: nil session")
	}
	if session.IsFinal() {
		return nil, ErrSessionFinal
	}

	r := Score(timeline)
	out := session.Clone()
	out.Timeline = make([]types.EventSegment, len(timeline))
	copy(out.Timeline, timeline)
	end := endTime
	out.EndTime = &end
	out.Status = types.SessionCompleted
	out.TotalFocusMinutes = r.TotalFocusMinutes
	out.TotalDistractedMinutes = r.TotalDistractedMinutes
	out.DistractionCount = r.DistractionCount
	score := r.ProductivityScore
	out.ProductivityScore = &score
	return out, nil
}

func toMinutes(d time.Duration) int {
	return int(math.Round(float64(d.Milliseconds()) / 60000))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
