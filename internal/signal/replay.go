package signal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"zenfocus/internal/detection"
	"zenfocus/internal/types"
)

// Target receives replayed events. services.FocusTracker satisfies it.
type Target interface {
	HandleFrame(frame types.FrameSignal) (detection.Result, error)
	Pause() error
	Resume() error
}

// ScriptClock reports the time of the event being replayed
type ScriptClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewScriptClock(start time.Time) *ScriptClock {
	return &ScriptClock{now: start}
}

func (c *ScriptClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ScriptClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Summary counts what a replay applied
type Summary struct {
	Frames     int
	Pauses     int
	Resumes    int
	Smoothed   map[types.StateKind]int
	Activity   map[types.Activity]int
	EndedAt    time.Time
	EndReached bool
}

// Replay feeds the script to target, moving clock to each event's time first.
// It stops at the first end event, leaving the clock there so the caller can
// end the session at script time.
func Replay(ctx context.Context, script *Script, target Target, clock *ScriptClock) (*Summary, error) {
	if script == nil || target == nil || clock == nil {
		return nil, errors.New("replay: script, target and clock are required")
	}

	summary := &Summary{
		Smoothed: make(map[types.StateKind]int),
		Activity: make(map[types.Activity]int),
		EndedAt:  script.Start,
	}
	for i, ev := range script.Events {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		clock.set(ev.At)
		summary.EndedAt = ev.At

		switch ev.Kind {
		case EventFrame:
			result, err := target.HandleFrame(ev.Frame)
			if err != nil {
				return summary, fmt.Errorf("event %d: %w", i+1, err)
			}
			summary.Frames++
			summary.Smoothed[result.Smoothed]++
			summary.Activity[result.Instant.Activity]++
		case EventPause:
			if err := target.Pause(); err != nil {
				return summary, fmt.Errorf("event %d: pause: %w", i+1, err)
			}
			summary.Pauses++
		case EventResume:
			if err := target.Resume(); err != nil {
				return summary, fmt.Errorf("event %d: resume: %w", i+1, err)
			}
			summary.Resumes++
		case EventEnd:
			summary.EndReached = true
			return summary, nil
		}
	}
	return summary, nil
}
