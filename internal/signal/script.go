// Package signal decodes recorded frame scripts and replays them into a session.
//
// A script is a sequence of timed events. Frame events carry one FrameSignal;
// pause, resume and end events drive the session lifecycle. Two encodings are
// accepted: JSON Lines (one event per line) and a YAML document with a header.
package signal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"zenfocus/internal/types"
)

// EventKind is the type of a script event
type EventKind string

const (
	EventFrame  EventKind = "frame"
	EventPause  EventKind = "pause"
	EventResume EventKind = "resume"
	EventEnd    EventKind = "end"
)

// DefaultFPS spaces frames that carry no time of their own
const DefaultFPS = 10

// Format selects a script encoding
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// ParseFormat accepts format names and common file extensions
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(value, ".")) {
	case "jsonl", "ndjson", "json":
		return FormatJSONL, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown script format %q", value)
}

// Event is one decoded, validated script step
type Event struct {
	At    time.Time
	Kind  EventKind
	Frame types.FrameSignal
}

// Script is a validated, time-ordered event list
type Script struct {
	UserID string
	Start  time.Time
	Events []Event
}

// End returns the time of the last event, or Start for an empty script
func (s *Script) End() time.Time {
	if len(s.Events) == 0 {
		return s.Start
	}
	return s.Events[len(s.Events)-1].At
}

// rawEvent is the wire form. Timestamp is epoch milliseconds; T is seconds
// from the script start. Repeat expands a frame into that many copies spaced
// by the frame interval.
type rawEvent struct {
	Event         string         `json:"event" yaml:"event"`
	Timestamp     int64          `json:"timestamp" yaml:"timestamp"`
	T             *float64       `json:"t" yaml:"t"`
	Repeat        int            `json:"repeat" yaml:"repeat"`
	FaceDetected  presence       `json:"faceDetected" yaml:"faceDetected"`
	EyesOpen      bool           `json:"eyesOpen" yaml:"eyesOpen"`
	GazeDirection string         `json:"gazeDirection" yaml:"gazeDirection"`
	HeadPose      types.HeadPose `json:"headPose" yaml:"headPose"`
}

// presence decodes a face-presence flag. Only a literal boolean true counts as
// present; a missing, null or malformed value reads as absent.
type presence bool

func (p *presence) UnmarshalJSON(data []byte) error {
	*p = presence(bytes.Equal(bytes.TrimSpace(data), []byte("true")))
	return nil
}

func (p *presence) UnmarshalYAML(node *yaml.Node) error {
	*p = false
	if node.Kind != yaml.ScalarNode || node.ShortTag() != "!!bool" {
		return nil
	}
	var present bool
	if node.Decode(&present) == nil {
		*p = presence(present)
	}
	return nil
}

type rawScript struct {
	User   string     `yaml:"user"`
	Start  time.Time  `yaml:"start"`
	FPS    int        `yaml:"fps"`
	Events []rawEvent `yaml:"events"`
}

// Decode reads a script in the given format. start anchors relative event
// times when the script does not set its own start.
func Decode(r io.Reader, format Format, start time.Time) (*Script, error) {
	switch format {
	case FormatJSONL:
		return DecodeJSONL(r, start)
	case FormatYAML:
		return DecodeYAML(r, start)
	}
	return nil, fmt.Errorf("unknown script format %q", format)
}

// DecodeJSONL reads one event per line. Blank lines and lines starting with # are skipped.
func DecodeJSONL(r io.Reader, start time.Time) (*Script, error) {
	var raws []rawEvent
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}
		var raw rawEvent
		if err := json.Unmarshal(text, &raw); err != nil {
			return nil, fmt.Errorf("line %d: %w: %v", line, types.ErrInvalidSignal, err)
		}
		raws = append(raws, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return build("", start, DefaultFPS, raws)
}

// DecodeYAML reads a document with optional user, start and fps header fields
func DecodeYAML(r io.Reader, start time.Time) (*Script, error) {
	var raw rawScript
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidSignal, err)
	}
	if !raw.Start.IsZero() {
		start = raw.Start
	}
	fps := raw.FPS
	if fps == 0 {
		fps = DefaultFPS
	}
	if fps < 0 {
		return nil, fmt.Errorf("%w: fps must be positive, got %d", types.ErrInvalidSignal, fps)
	}
	return build(raw.User, start, fps, raw.Events)
}

// build validates raw events and resolves their times. Events without a time
// follow the previous one by one frame interval.
func build(userID string, start time.Time, fps int, raws []rawEvent) (*Script, error) {
	interval := time.Second / time.Duration(fps)
	script := &Script{UserID: userID, Start: start, Events: make([]Event, 0, len(raws))}

	var prev time.Time
	for i, raw := range raws {
		kind, err := parseKind(raw.Event)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i+1, err)
		}

		at, explicit, err := resolveTime(raw, start)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i+1, err)
		}
		if !explicit {
			at = start
			if len(script.Events) > 0 {
				at = prev.Add(interval)
			}
		}
		if len(script.Events) > 0 && at.Before(prev) {
			return nil, fmt.Errorf("event %d: %w: time goes backwards (%s before %s)",
				i+1, types.ErrInvalidSignal, at.Format(time.RFC3339Nano), prev.Format(time.RFC3339Nano))
		}

		if kind != EventFrame {
			if raw.Repeat != 0 {
				return nil, fmt.Errorf("event %d: %w: repeat only applies to frames", i+1, types.ErrInvalidSignal)
			}
			script.Events = append(script.Events, Event{At: at, Kind: kind})
			prev = at
			continue
		}

		frame, err := toFrame(raw)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i+1, err)
		}
		repeat := raw.Repeat
		if repeat < 0 {
			return nil, fmt.Errorf("event %d: %w: negative repeat", i+1, types.ErrInvalidSignal)
		}
		if repeat == 0 {
			repeat = 1
		}
		for n := 0; n < repeat; n++ {
			script.Events = append(script.Events, Event{At: at, Kind: EventFrame, Frame: frame})
			prev = at
			at = at.Add(interval)
		}
	}

	if script.Start.IsZero() && len(script.Events) > 0 {
		script.Start = script.Events[0].At
	}
	return script, nil
}

func parseKind(value string) (EventKind, error) {
	switch kind := EventKind(strings.ToLower(strings.TrimSpace(value))); kind {
	case "", EventFrame:
		return EventFrame, nil
	case EventPause, EventResume, EventEnd:
		return kind, nil
	}
	return "", fmt.Errorf("%w: unknown event %q", types.ErrInvalidSignal, value)
}

func resolveTime(raw rawEvent, start time.Time) (time.Time, bool, error) {
	switch {
	case raw.Timestamp > 0 && raw.T != nil:
		return time.Time{}, false, fmt.Errorf("%w: timestamp and t are mutually exclusive", types.ErrInvalidSignal)
	case raw.Timestamp < 0:
		return time.Time{}, false, fmt.Errorf("%w: negative timestamp", types.ErrInvalidSignal)
	case raw.Timestamp > 0:
		return time.UnixMilli(raw.Timestamp).UTC(), true, nil
	case raw.T != nil:
		if *raw.T < 0 {
			return time.Time{}, false, fmt.Errorf("%w: negative offset %v", types.ErrInvalidSignal, *raw.T)
		}
		return start.Add(time.Duration(*raw.T * float64(time.Second))), true, nil
	}
	return time.Time{}, false, nil
}

func toFrame(raw rawEvent) (types.FrameSignal, error) {
	frame := types.FrameSignal{
		FaceDetected: bool(raw.FaceDetected),
		EyesOpen:     raw.EyesOpen,
		HeadPose:     raw.HeadPose,
	}
	if raw.GazeDirection != "" {
		gaze, err := types.ParseGazeDirection(raw.GazeDirection)
		if err != nil {
			return types.FrameSignal{}, err
		}
		frame.GazeDirection = gaze
	}
	return frame, nil
}
