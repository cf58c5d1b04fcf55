package detection

import (
	"errors"

	"zenfocus/internal/infrastructure/logging"
	"zenfocus/internal/types"
)

// ErrProcessorClosed is returned when a frame arrives after Close
var ErrProcessorClosed = errors.New("processor closed")

// Result is the outcome of processing one frame
type Result struct {
	Instant  types.InstantState
	Smoothed types.StateKind
}

// Processor combines a classifier and a smoother for one session.
// It is created when a session starts and closed when it ends.
type Processor struct {
	config     *Config
	classifier *Classifier
	smoother   *Smoother
	last       types.StateKind
	frames     int
	closed     bool
	logger     logging.Logger
}

// NewProcessor validates config and builds a processor owning its own counters
func NewProcessor(config *Config, logger logging.Logger) (*Processor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	cfg := config.Clone()
	return &Processor{
		config:     cfg,
		classifier: NewClassifier(cfg),
		smoother:   NewSmoother(cfg.SmoothingWindow),
		logger:     logger,
	}, nil
}

// Process classifies one frame and returns the instant and smoothed states.
// Frames without a gaze label get one derived from head pose.
func (p *Processor) Process(frame types.FrameSignal) (Result, error) {
	if p.closed {
		return Result{}, ErrProcessorClosed
	}

	if frame.FaceDetected && frame.GazeDirection == "" {
		frame.GazeDirection = GazeFromPose(frame.HeadPose, p.config)
	}

	inst := p.classifier.Classify(frame)
	p.smoother.Push(inst.Kind)
	smoothed, rule := smoothWithRule(p.smoother.Window())
	p.frames++

	if smoothed != p.last {
		p.logger.Debug("Smoothed state changed",
			"from", string(p.last),
			"to", string(smoothed),
			"rule", rule,
			"frame", p.frames)
		p.last = smoothed
	}

	return Result{Instant: inst, Smoothed: smoothed}, nil
}

// SetStudyMode toggles study mode for subsequent frames
func (p *Processor) SetStudyMode(enabled bool) {
	p.config.StudyMode = enabled
	p.classifier.SetStudyMode(enabled)
}

// UpdateConfig swaps the thresholds mid-session. Classifier counters restart;
// the most recent smoothing history is kept up to the new window size.
func (p *Processor) UpdateConfig(config *Config) error {
	if p.closed {
		return ErrProcessorClosed
	}
	if config == nil {
		return errors.New("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return err
	}

	cfg := config.Clone()
	p.classifier = NewClassifier(cfg)
	if cfg.SmoothingWindow != p.config.SmoothingWindow {
		history := p.smoother.Window()
		if len(history) > cfg.SmoothingWindow {
			history = history[len(history)-cfg.SmoothingWindow:]
		}
		p.smoother = NewSmoother(cfg.SmoothingWindow)
		for _, kind := range history {
			p.smoother.Push(kind)
		}
	}
	p.config = cfg
	p.logger.Debug("Processor config updated",
		"smoothing_window", cfg.SmoothingWindow,
		"study_mode", cfg.StudyMode,
		"sensitivity", cfg.Sensitivity)
	return nil
}

// Config returns a copy of the active configuration
func (p *Processor) Config() *Config {
	return p.config.Clone()
}

// Frames returns how many frames have been processed
func (p *Processor) Frames() int {
	return p.frames
}

// Close releases the processor. Further frames are rejected.
func (p *Processor) Close() {
	if p.closed {
		return
	}
	p.closed = true
	p.classifier.Reset()
	p.smoother.Reset()
	p.logger.Debug("Processor closed", "frames", p.frames)
}
