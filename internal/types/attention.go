package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSignal is returned by producers when a frame carries a value outside the known enumerations.
var ErrInvalidSignal = errors.New("invalid signal")

// StateKind is the attention state of a user at one point in time
type StateKind string

const (
	StateFocused    StateKind = "FOCUSED"
	StateDistracted StateKind = "DISTRACTED"
	StateIdle       StateKind = "IDLE"
	StateSleeping   StateKind = "SLEEPING"
	StateAway       StateKind = "AWAY"
)

// StateKinds lists every state in enumeration order. Order matters for tie breaks.
var StateKinds = []StateKind{StateFocused, StateDistracted, StateIdle, StateSleeping, StateAway}

// Index returns the enumeration position of the state, or -1 if unknown
func (s StateKind) Index() int {
	for i, k := range StateKinds {
		if k == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is one of the known states
func (s StateKind) Valid() bool {
	return s.Index() >= 0
}

// ParseStateKind parses a state name case-insensitively
func ParseStateKind(value string) (StateKind, error) {
	kind := StateKind(strings.ToUpper(strings.TrimSpace(value)))
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown state %q", ErrInvalidSignal, value)
	}
	return kind, nil
}

// Activity is the finer-grained label attached to an instant classification
type Activity string

const (
	ActivityScreenWork Activity = "screen_work"
	ActivityReading    Activity = "reading"
	ActivityWriting    Activity = "writing"
	ActivityThinking   Activity = "thinking"
	ActivityDistracted Activity = "distracted"
	ActivitySleeping   Activity = "sleeping"
	ActivityAway       Activity = "away"
)

// GazeDirection is the coarse direction the user is looking
type GazeDirection string

const (
	GazeCenter GazeDirection = "center"
	GazeLeft   GazeDirection = "left"
	GazeRight  GazeDirection = "right"
	GazeUp     GazeDirection = "up"
	GazeDown   GazeDirection = "down"
)

// Valid reports whether g is one of the known gaze directions
func (g GazeDirection) Valid() bool {
	switch g {
	case GazeCenter, GazeLeft, GazeRight, GazeUp, GazeDown:
		return true
	}
	return false
}

// ParseGazeDirection parses a gaze label, rejecting anything outside the enumeration
func ParseGazeDirection(value string) (GazeDirection, error) {
	gaze := GazeDirection(strings.ToLower(strings.TrimSpace(value)))
	if !gaze.Valid() {
		return "", fmt.Errorf("%w: unknown gaze direction %q", ErrInvalidSignal, value)
	}
	return gaze, nil
}

// HeadPose holds head rotation in normalized pose units (relative landmark offset * 100)
type HeadPose struct {
	Pitch float64 `json:"pitch" yaml:"pitch"`
	Yaw   float64 `json:"yaw" yaml:"yaw"`
	Roll  float64 `json:"roll" yaml:"roll"`
}

// FrameSignal is one frame of behavioral signal produced by the capture pipeline.
// A missing FaceDetected decodes to false and is classified as AWAY.
type FrameSignal struct {
	FaceDetected  bool          `json:"faceDetected" yaml:"faceDetected"`
	EyesOpen      bool          `json:"eyesOpen" yaml:"eyesOpen"`
	GazeDirection GazeDirection `json:"gazeDirection" yaml:"gazeDirection"`
	HeadPose      HeadPose      `json:"headPose" yaml:"headPose"`
}

// InstantState is the per-frame classification before smoothing
type InstantState struct {
	Kind       StateKind `json:"state"`
	Confidence float64   `json:"confidence"`
	Activity   Activity  `json:"activity"`
}
