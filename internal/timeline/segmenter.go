package timeline

import (
	"errors"
	"fmt"
	"time"

	"zenfocus/internal/types"
)

// Phase is the lifecycle position of a Segmenter
type Phase int

const (
	PhaseInactive Phase = iota
	PhaseActive
	PhasePaused
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseInactive:
		return "inactive"
	case PhaseActive:
		return "active"
	case PhasePaused:
		return "paused"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

var (
	ErrNotStarted     = errors.New("segmenter not started")
	ErrAlreadyStarted = errors.New("segmenter already started")
	ErrNotActive      = errors.New("segmenter not active")
	ErrNotPaused      = errors.New("segmenter not paused")
	ErrEnded          = errors.New("segmenter already ended")
)

// closingConfidence is attached to segments closed by pause or end rather than by a state change
const closingConfidence = 0.8

// Segmenter turns smoothed-state changes into contiguous EventSegments.
// Paused intervals are not represented: the timeline has a gap between
// the segment closed by Pause and the one opened by Resume.
type Segmenter struct {
	phase          Phase
	current        types.StateKind
	lastTransition time.Time
	segments       []types.EventSegment
}

// NewSegmenter returns an inactive segmenter
func NewSegmenter() *Segmenter {
	return &Segmenter{phase: PhaseInactive}
}

// Start begins a stretch in the optimistic FOCUSED state
func (s *Segmenter) Start(now time.Time) error {
	switch s.phase {
	case PhaseEnded:
		return ErrEnded
	case PhaseActive, PhasePaused:
		return ErrAlreadyStarted
	}
	s.phase = PhaseActive
	s.current = types.StateFocused
	s.lastTransition = now
	s.segments = nil
	return nil
}

// Observe records a smoothed state. A change closes the running segment with
// the confidence of the frame that caused it. Observations while paused are ignored.
func (s *Segmenter) Observe(state types.StateKind, confidence float64, now time.Time) error {
	switch s.phase {
	case PhaseInactive:
		return ErrNotStarted
	case PhaseEnded:
		return ErrEnded
	case PhasePaused:
		return nil
	}
	if !state.Valid() {
		return fmt.Errorf("observe: %w", types.ErrInvalidSignal)
	}
	if state == s.current {
		return nil
	}
	now = s.clamp(now)
	s.close(now, confidence)
	s.current = state
	return nil
}

// Pause closes the running segment and stops recording
func (s *Segmenter) Pause(now time.Time) error {
	switch s.phase {
	case PhaseInactive:
		return ErrNotStarted
	case PhaseEnded:
		return ErrEnded
	case PhasePaused:
		return ErrNotActive
	}
	s.close(s.clamp(now), closingConfidence)
	s.phase = PhasePaused
	return nil
}

// Resume restarts recording from now in the state held before the pause
func (s *Segmenter) Resume(now time.Time) error {
	switch s.phase {
	case PhaseInactive:
		return ErrNotStarted
	case PhaseEnded:
		return ErrEnded
	case PhaseActive:
		return ErrNotPaused
	}
	s.lastTransition = s.clamp(now)
	s.phase = PhaseActive
	return nil
}

// End closes the final segment and returns an independent copy of the timeline.
// Ending while paused adds no segment, since the pause already closed one.
func (s *Segmenter) End(now time.Time) ([]types.EventSegment, error) {
	switch s.phase {
	case PhaseInactive:
		return nil, ErrNotStarted
	case PhaseEnded:
		return nil, ErrEnded
	case PhaseActive:
		s.close(s.clamp(now), closingConfidence)
	}
	s.phase = PhaseEnded
	return s.Segments(), nil
}

// Segments returns a copy of the segments recorded so far
func (s *Segmenter) Segments() []types.EventSegment {
	out := make([]types.EventSegment, len(s.segments))
	copy(out, s.segments)
	return out
}

// Phase returns the current lifecycle phase
func (s *Segmenter) Phase() Phase {
	return s.phase
}

// Current returns the state of the running segment
func (s *Segmenter) Current() types.StateKind {
	return s.current
}

func (s *Segmenter) close(now time.Time, confidence float64) {
	s.segments = append(s.segments, types.EventSegment{
		Start:      s.lastTransition,
		End:        now,
		State:      s.current,
		Confidence: confidence,
	})
	s.lastTransition = now
}

// clamp keeps time monotonic when the caller's clock steps backwards
func (s *Segmenter) clamp(now time.Time) time.Time {
	if now.Before(s.lastTransition) {
		return s.lastTransition
	}
	return now
}
