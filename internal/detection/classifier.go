package detection

import (
	"math"

	"zenfocus/internal/types"
)

// Classifier maps one frame to an instant state. It carries the hysteresis
// counters of a single session and must not be shared between sessions.
type Classifier struct {
	config            *Config
	eyesClosedFrames  int
	lookingAwayFrames int
}

// NewClassifier creates a classifier with a private copy of config
func NewClassifier(config *Config) *Classifier {
	if config == nil {
		config = DefaultConfig()
	}
	return &Classifier{config: config.Clone()}
}

// Classify evaluates the priority chain for one frame. First match wins.
func (c *Classifier) Classify(frame types.FrameSignal) types.InstantState {
	if !frame.FaceDetected {
		c.eyesClosedFrames = 0
		c.lookingAwayFrames++
		return instant(types.StateAway, 0.9, types.ActivityAway)
	}

	if !frame.EyesOpen {
		c.eyesClosedFrames++
		c.lookingAwayFrames = 0
		if c.eyesClosedFrames > c.config.SleepConfirmFrames {
			return instant(types.StateSleeping, 0.85, types.ActivitySleeping)
		}
		// blink
		return instant(types.StateFocused, 0.6, types.ActivityThinking)
	}
	c.eyesClosedFrames = 0

	switch frame.GazeDirection {
	case types.GazeCenter:
		c.lookingAwayFrames = 0
		return instant(types.StateFocused, 0.9, types.ActivityScreenWork)

	case types.GazeDown:
		if c.config.StudyMode {
			c.lookingAwayFrames = 0
			if math.Abs(frame.HeadPose.Yaw) < c.config.ReadingYawThreshold {
				return instant(types.StateFocused, 0.8, types.ActivityReading)
			}
			return instant(types.StateFocused, 0.8, types.ActivityWriting)
		}

	case types.GazeUp:
		c.lookingAwayFrames++
		if c.lookingAwayFrames < c.config.scaledGrace(c.config.UpGlanceGraceFrames) {
			return instant(types.StateFocused, 0.7, types.ActivityThinking)
		}

	case types.GazeLeft, types.GazeRight:
		c.lookingAwayFrames++
		if c.lookingAwayFrames < c.config.scaledGrace(c.config.SideGlanceGraceFrames) {
			return instant(types.StateFocused, 0.6, types.ActivityThinking)
		}
		return instant(types.StateDistracted, 0.75, types.ActivityDistracted)
	}

	if c.lookingAwayFrames > c.config.LookAwayDistractFrames {
		return instant(types.StateDistracted, 0.7, types.ActivityDistracted)
	}
	return instant(types.StateFocused, 0.7, types.ActivityScreenWork)
}

// SetStudyMode toggles whether looking down counts as reading or writing
func (c *Classifier) SetStudyMode(enabled bool) {
	c.config.StudyMode = enabled
}

// Reset clears both hysteresis counters
func (c *Classifier) Reset() {
	c.eyesClosedFrames = 0
	c.lookingAwayFrames = 0
}

// EyesClosedFrames returns the current eyes-closed run length
func (c *Classifier) EyesClosedFrames() int {
	return c.eyesClosedFrames
}

// LookingAwayFrames returns the current looking-away run length
func (c *Classifier) LookingAwayFrames() int {
	return c.lookingAwayFrames
}

func instant(kind types.StateKind, confidence float64, activity types.Activity) types.InstantState {
	return types.InstantState{Kind: kind, Confidence: confidence, Activity: activity}
}
