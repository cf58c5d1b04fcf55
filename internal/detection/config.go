package detection

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// Config holds the tunable thresholds of the classifier and smoother.
// A copy is taken per session so changes never leak across sessions.
type Config struct {
	SleepConfirmFrames     int     `json:"sleepConfirmFrames" yaml:"sleepConfirmFrames" mapstructure:"sleep_confirm_frames"`             // eyes-closed frames before SLEEPING (strictly greater)
	UpGlanceGraceFrames    int     `json:"upGlanceGraceFrames" yaml:"upGlanceGraceFrames" mapstructure:"up_glance_grace_frames"`         // looking-up frames tolerated as thinking
	SideGlanceGraceFrames  int     `json:"sideGlanceGraceFrames" yaml:"sideGlanceGraceFrames" mapstructure:"side_glance_grace_frames"`   // looking-sideways frames tolerated as thinking
	LookAwayDistractFrames int     `json:"lookAwayDistractFrames" yaml:"lookAwayDistractFrames" mapstructure:"look_away_distract_frames"` // fallback distraction threshold (strictly greater)
	SmoothingWindow        int     `json:"smoothingWindow" yaml:"smoothingWindow" mapstructure:"smoothing_window"`
	ReadingYawThreshold    float64 `json:"readingYawThreshold" yaml:"readingYawThreshold" mapstructure:"reading_yaw_threshold"` // degrees; below is reading, otherwise writing
	GazeYawThreshold       float64 `json:"gazeYawThreshold" yaml:"gazeYawThreshold" mapstructure:"gaze_yaw_threshold"`         // pose units, used by GazeFromPose
	GazePitchThreshold     float64 `json:"gazePitchThreshold" yaml:"gazePitchThreshold" mapstructure:"gaze_pitch_threshold"`   // pose units, used by GazeFromPose
	StudyMode              bool    `json:"studyMode" yaml:"studyMode" mapstructure:"study_mode"`
	Sensitivity            float64 `json:"sensitivity" yaml:"sensitivity" mapstructure:"sensitivity"` // 0..1, scales glance grace periods
}

// DefaultConfig returns the calibrated defaults
func DefaultConfig() *Config {
	return &Config{
		SleepConfirmFrames:     20,
		UpGlanceGraceFrames:    15,
		SideGlanceGraceFrames:  10,
		LookAwayDistractFrames: 20,
		SmoothingWindow:        15,
		ReadingYawThreshold:    5,
		GazeYawThreshold:       32,
		GazePitchThreshold:     20,
		StudyMode:              true,
		Sensitivity:            0.5,
	}
}

// LoadFromEnvironment overrides fields from ZENFOCUS_DETECTION_* variables.
// Unparseable values are ignored.
func (c *Config) LoadFromEnvironment() error {
	intVars := map[string]*int{
		"ZENFOCUS_DETECTION_SLEEP_CONFIRM_FRAMES":      &c.SleepConfirmFrames,
		"ZENFOCUS_DETECTION_UP_GLANCE_GRACE_FRAMES":    &c.UpGlanceGraceFrames,
		"ZENFOCUS_DETECTION_SIDE_GLANCE_GRACE_FRAMES":  &c.SideGlanceGraceFrames,
		"ZENFOCUS_DETECTION_LOOK_AWAY_DISTRACT_FRAMES": &c.LookAwayDistractFrames,
		"ZENFOCUS_DETECTION_SMOOTHING_WINDOW":          &c.SmoothingWindow,
	}
	for key, target := range intVars {
		if raw := os.Getenv(key); raw != "" {
			if val, err := strconv.Atoi(raw); err == nil && val > 0 {
				*target = val
			}
		}
	}

	floatVars := map[string]*float64{
		"ZENFOCUS_DETECTION_READING_YAW_THRESHOLD": &c.ReadingYawThreshold,
		"ZENFOCUS_DETECTION_GAZE_YAW_THRESHOLD":    &c.GazeYawThreshold,
		"ZENFOCUS_DETECTION_GAZE_PITCH_THRESHOLD":  &c.GazePitchThreshold,
		"ZENFOCUS_DETECTION_SENSITIVITY":           &c.Sensitivity,
	}
	for key, target := range floatVars {
		if raw := os.Getenv(key); raw != "" {
			if val, err := strconv.ParseFloat(raw, 64); err == nil {
				*target = val
			}
		}
	}

	if raw := os.Getenv("ZENFOCUS_DETECTION_STUDY_MODE"); raw != "" {
		switch strings.ToLower(raw) {
		case "1", "t", "true", "yes", "y", "on":
			c.StudyMode = true
		case "0", "f", "false", "no", "n", "off":
			c.StudyMode = false
		}
	}

	return nil
}

// Validate checks that every threshold is usable
func (c *Config) Validate() error {
	if c.SleepConfirmFrames <= 0 {
		return fmt.Errorf("sleepConfirmFrames must be positive, got %d", c.SleepConfirmFrames)
	}
	if c.UpGlanceGraceFrames <= 0 {
		return fmt.Errorf("upGlanceGraceFrames must be positive, got %d", c.UpGlanceGraceFrames)
	}
	if c.SideGlanceGraceFrames <= 0 {
		return fmt.Errorf("sideGlanceGraceFrames must be positive, got %d", c.SideGlanceGraceFrames)
	}
	if c.LookAwayDistractFrames <= 0 {
		return fmt.Errorf("lookAwayDistractFrames must be positive, got %d", c.LookAwayDistractFrames)
	}
	if c.SmoothingWindow <= 0 {
		return fmt.Errorf("smoothingWindow must be positive, got %d", c.SmoothingWindow)
	}
	if c.ReadingYawThreshold < 0 {
		return fmt.Errorf("readingYawThreshold cannot be negative, got %v", c.ReadingYawThreshold)
	}
	if c.GazeYawThreshold <= 0 {
		return fmt.Errorf("gazeYawThreshold must be positive, got %v", c.GazeYawThreshold)
	}
	if c.GazePitchThreshold <= 0 {
		return fmt.Errorf("gazePitchThreshold must be positive, got %v", c.GazePitchThreshold)
	}
	if c.Sensitivity < 0 || c.Sensitivity > 1 {
		return fmt.Errorf("sensitivity must be within [0,1], got %v", c.Sensitivity)
	}
	return nil
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// scaledGrace adjusts a glance grace period by sensitivity.
// 0.5 leaves it unchanged, 1.0 halves it, 0.0 makes it 1.5x longer.
func (c *Config) scaledGrace(frames int) int {
	scaled := int(math.Round(float64(frames) * (1.5 - c.Sensitivity)))
	if scaled < 1 {
		return 1
	}
	return scaled
}
