package detection

import (
	"testing"

	"zenfocus/internal/types"
)

func frame(gaze types.GazeDirection) types.FrameSignal {
	return types.FrameSignal{FaceDetected: true, EyesOpen: true, GazeDirection: gaze}
}

func TestClassifier_NoFaceAlwaysAway(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil)
	frames := []types.FrameSignal{
		{},
		{EyesOpen: true, GazeDirection: types.GazeCenter},
		{EyesOpen: false, GazeDirection: types.GazeLeft},
		{EyesOpen: true, GazeDirection: types.GazeDown, HeadPose: types.HeadPose{Yaw: 40}},
	}

	for i := 0; i < 50; i++ {
		got := c.Classify(frames[i%len(frames)])
		if got.Kind != types.StateAway || got.Confidence != 0.9 || got.Activity != types.ActivityAway {
			t.Fatalf("Classify() frame %d = %+v, want AWAY 0.9 away", i, got)
		}
	}
	if c.EyesClosedFrames() != 0 {
		t.Errorf("EyesClosedFrames() = %d, want 0", c.EyesClosedFrames())
	}
	if c.LookingAwayFrames() != 50 {
		t.Errorf("LookingAwayFrames() = %d, want 50", c.LookingAwayFrames())
	}
}

func TestClassifier_SleepBoundary(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil)
	closed := types.FrameSignal{FaceDetected: true, EyesOpen: false, GazeDirection: types.GazeCenter}

	for i := 1; i <= 21; i++ {
		got := c.Classify(closed)
		if i <= 20 {
			if got.Kind != types.StateFocused || got.Confidence != 0.6 || got.Activity != types.ActivityThinking {
				t.Fatalf("frame %d = %+v, want FOCUSED 0.6 thinking", i, got)
			}
			continue
		}
		if got.Kind != types.StateSleeping || got.Confidence != 0.85 {
			t.Fatalf("frame %d = %+v, want SLEEPING 0.85", i, got)
		}
	}

	// opening the eyes resets the run
	c.Classify(frame(types.GazeCenter))
	if got := c.Classify(closed); got.Kind != types.StateFocused {
		t.Errorf("after reopening, Classify() = %v, want FOCUSED", got.Kind)
	}
}

func TestClassifier_EyesClosedResetsLookingAway(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil)
	for i := 0; i < 5; i++ {
		c.Classify(frame(types.GazeLeft))
	}
	c.Classify(types.FrameSignal{FaceDetected: true, EyesOpen: false})
	if c.LookingAwayFrames() != 0 {
		t.Errorf("LookingAwayFrames() = %d, want 0", c.LookingAwayFrames())
	}
}

func TestClassifier_CenterAndDown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		frame    types.FrameSignal
		study    bool
		wantKind types.StateKind
		wantConf float64
		wantAct  types.Activity
	}{
		{"center", frame(types.GazeCenter), true, types.StateFocused, 0.9, types.ActivityScreenWork},
		{"down reading", types.FrameSignal{FaceDetected: true, EyesOpen: true, GazeDirection: types.GazeDown, HeadPose: types.HeadPose{Yaw: -4.9}}, true, types.StateFocused, 0.8, types.ActivityReading},
		{"down writing at boundary", types.FrameSignal{FaceDetected: true, EyesOpen: true, GazeDirection: types.GazeDown, HeadPose: types.HeadPose{Yaw: 5}}, true, types.StateFocused, 0.8, types.ActivityWriting},
		{"down without study mode", frame(types.GazeDown), false, types.StateFocused, 0.7, types.ActivityScreenWork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.StudyMode = tt.study
			c := NewClassifier(cfg)
			got := c.Classify(tt.frame)
			if got.Kind != tt.wantKind || got.Confidence != tt.wantConf || got.Activity != tt.wantAct {
				t.Errorf("Classify() = %+v, want %v %v %v", got, tt.wantKind, tt.wantConf, tt.wantAct)
			}
		})
	}
}

func TestClassifier_SideGlanceGrace(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil)
	for i := 1; i <= 12; i++ {
		got := c.Classify(frame(types.GazeRight))
		if i < 10 {
			if got.Kind != types.StateFocused || got.Confidence != 0.6 {
				t.Fatalf("frame %d = %+v, want FOCUSED 0.6", i, got)
			}
			continue
		}
		if got.Kind != types.StateDistracted || got.Confidence != 0.75 || got.Activity != types.ActivityDistracted {
			t.Fatalf("frame %d = %+v, want DISTRACTED 0.75", i, got)
		}
	}

	c.Classify(frame(types.GazeCenter))
	if c.LookingAwayFrames() != 0 {
		t.Errorf("center gaze did not reset LookingAwayFrames, got %d", c.LookingAwayFrames())
	}
}

func TestClassifier_UpGlanceFallsThrough(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil)
	for i := 1; i <= 22; i++ {
		got := c.Classify(frame(types.GazeUp))
		switch {
		case i < 15:
			if got.Kind != types.StateFocused || got.Confidence != 0.7 || got.Activity != types.ActivityThinking {
				t.Fatalf("frame %d = %+v, want FOCUSED 0.7 thinking", i, got)
			}
		case i <= 20:
			if got.Kind != types.StateFocused || got.Activity != types.ActivityScreenWork {
				t.Fatalf("frame %d = %+v, want fallback FOCUSED screen_work", i, got)
			}
		default:
			if got.Kind != types.StateDistracted || got.Confidence != 0.7 {
				t.Fatalf("frame %d = %+v, want DISTRACTED 0.7", i, got)
			}
		}
	}
}

func TestClassifier_SensitivityScalesGrace(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Sensitivity = 1.0 // side grace 10 -> 5
	c := NewClassifier(cfg)
	for i := 1; i < 5; i++ {
		if got := c.Classify(frame(types.GazeLeft)); got.Kind != types.StateFocused {
			t.Fatalf("frame %d = %v, want FOCUSED", i, got.Kind)
		}
	}
	if got := c.Classify(frame(types.GazeLeft)); got.Kind != types.StateDistracted {
		t.Errorf("frame 5 = %v, want DISTRACTED", got.Kind)
	}
}

func TestClassifier_InstancesDoNotShareCounters(t *testing.T) {
	t.Parallel()

	a := NewClassifier(nil)
	b := NewClassifier(nil)
	for i := 0; i < 30; i++ {
		a.Classify(frame(types.GazeLeft))
	}
	if b.LookingAwayFrames() != 0 {
		t.Errorf("second classifier LookingAwayFrames() = %d, want 0", b.LookingAwayFrames())
	}
	if got := b.Classify(frame(types.GazeLeft)); got.Kind != types.StateFocused {
		t.Errorf("second classifier Classify() = %v, want FOCUSED", got.Kind)
	}
}
