package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"zenfocus/internal/detection"
	"zenfocus/internal/infrastructure/logging"
	"zenfocus/internal/platform"
	"zenfocus/internal/repository"
	"zenfocus/internal/scoring"
	"zenfocus/internal/timeline"
	"zenfocus/internal/types"
)

var (
	// ErrSessionFinalized is returned for any operation on a completed or aborted session
	ErrSessionFinalized = errors.New("session already finalized")
	ErrSessionPaused    = errors.New("session is paused")
	ErrSessionNotPaused = errors.New("session is not paused")
)

// saveTimeout bounds the repository write made when a session ends
const saveTimeout = 10 * time.Second

// TrackerOptions configures a FocusTracker. Zero values select defaults.
type TrackerOptions struct {
	ID         string
	Detection  *detection.Config
	Repository repository.SessionRepository
	Clock      platform.Clock
	Logger     logging.Logger
}

// FocusTracker owns one session from start to finalization. Every method is
// safe for concurrent use; frames, pauses and the end are applied in lock order.
type FocusTracker struct {
	id        string
	userID    string
	mu        sync.Mutex
	session   *types.Session
	processor *detection.Processor
	segmenter *timeline.Segmenter
	repo      repository.SessionRepository
	clock     platform.Clock
	logger    logging.Logger
	last      detection.Result
	dropped   int
}

// NewFocusTracker starts a session for userID at the clock's current time
func NewFocusTracker(userID string, opts TrackerOptions) (*FocusTracker, error) {
	if userID == "" {
		return nil, errors.New("user id cannot be empty")
	}
	if opts.Clock == nil {
		opts.Clock = platform.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDefaultLogger()
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}

	processor, err := detection.NewProcessor(opts.Detection, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("create processor: %w", err)
	}

	now := opts.Clock.Now()
	segmenter := timeline.NewSegmenter()
	if err := segmenter.Start(now); err != nil {
		return nil, err
	}

	t := &FocusTracker{
		id:     opts.ID,
		userID: userID,
		session: &types.Session{
			ID:        opts.ID,
			UserID:    userID,
			StartTime: now,
			Status:    types.SessionActive,
		},
		processor: processor,
		segmenter: segmenter,
		repo:      opts.Repository,
		clock:     opts.Clock,
		logger:    opts.Logger,
		last:      detection.Result{Smoothed: types.StateFocused},
	}
	t.logger.Info("Focus session started", "session_id", opts.ID, "user_id", userID)
	return t, nil
}

// ID returns the session id
func (t *FocusTracker) ID() string {
	return t.id
}

// UserID returns the owning user
func (t *FocusTracker) UserID() string {
	return t.userID
}

// HandleFrame classifies one frame and feeds the smoothed state to the timeline.
// Frames that arrive while paused are dropped and the last result is returned.
func (t *FocusTracker) HandleFrame(frame types.FrameSignal) (detection.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session.IsFinal() {
		return detection.Result{}, ErrSessionFinalized
	}
	if t.session.Status == types.SessionPaused {
		t.dropped++
		return t.last, nil
	}

	result, err := t.processor.Process(frame)
	if err != nil {
		return detection.Result{}, err
	}
	if err := t.segmenter.Observe(result.Smoothed, result.Instant.Confidence, t.clock.Now()); err != nil {
		return detection.Result{}, fmt.Errorf("observe frame: %w", err)
	}
	t.last = result
	return result, nil
}

// Pause stops recording. The paused interval is left out of the timeline.
func (t *FocusTracker) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.session.Status {
	case types.SessionCompleted, types.SessionAborted:
		return ErrSessionFinalized
	case types.SessionPaused:
		return ErrSessionPaused
	}
	if err := t.segmenter.Pause(t.clock.Now()); err != nil {
		return err
	}
	t.session.Status = types.SessionPaused
	t.logger.Debug("Focus session paused", "session_id", t.session.ID)
	return nil
}

// Resume continues recording in the state held before the pause
func (t *FocusTracker) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.session.Status {
	case types.SessionCompleted, types.SessionAborted:
		return ErrSessionFinalized
	case types.SessionActive:
		return ErrSessionNotPaused
	}
	if err := t.segmenter.Resume(t.clock.Now()); err != nil {
		return err
	}
	t.session.Status = types.SessionActive
	t.logger.Debug("Focus session resumed", "session_id", t.session.ID, "dropped_frames", t.dropped)
	return nil
}

// SetStudyMode toggles study mode for subsequent frames
func (t *FocusTracker) SetStudyMode(enabled bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session.IsFinal() {
		return ErrSessionFinalized
	}
	t.processor.SetStudyMode(enabled)
	return nil
}

// UpdateConfig replaces the detection thresholds for the rest of the session
func (t *FocusTracker) UpdateConfig(config *detection.Config) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session.IsFinal() {
		return ErrSessionFinalized
	}
	return t.processor.UpdateConfig(config)
}

// End closes the timeline, scores the session and persists it. On a save
// failure the finalized session is still returned alongside the error.
func (t *FocusTracker) End(ctx context.Context) (*types.Session, error) {
	t.mu.Lock()
	if t.session.IsFinal() {
		t.mu.Unlock()
		return nil, ErrSessionFinalized
	}

	now := t.clock.Now()
	segments, err := t.segmenter.End(now)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	final, err := scoring.Finalize(t.session, segments, now)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	t.session = final
	t.processor.Close()
	out := final.Clone()
	t.mu.Unlock()

	t.logger.Info("Focus session completed",
		"session_id", out.ID,
		"user_id", out.UserID,
		"focus_minutes", out.TotalFocusMinutes,
		"distracted_minutes", out.TotalDistractedMinutes,
		"distractions", out.DistractionCount,
		"score", *out.ProductivityScore,
		"segments", len(out.Timeline),
		"tracked", timeline.Span(out.Timeline).Round(time.Second).String(),
		"paused", timeline.Gaps(out.Timeline).Round(time.Second).String())

	if t.repo == nil {
		return out, nil
	}

	saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	if _, err := t.repo.Save(saveCtx, out); err != nil {
		logging.LogRepositoryError(t.logger, err, "SaveSession", map[string]interface{}{"session_id": out.ID})
		return out, fmt.Errorf("save session %s: %w", out.ID, err)
	}
	return out, nil
}

// Abort discards the session. Nothing is scored or persisted.
func (t *FocusTracker) Abort() (*types.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session.IsFinal() {
		return nil, ErrSessionFinalized
	}
	now := t.clock.Now()
	segments, _ := t.segmenter.End(now)
	t.session.Timeline = segments
	t.session.EndTime = &now
	t.session.Status = types.SessionAborted
	t.processor.Close()
	t.logger.Info("Focus session aborted", "session_id", t.session.ID)
	return t.session.Clone(), nil
}

// Snapshot returns a copy of the session with the timeline recorded so far
func (t *FocusTracker) Snapshot() *types.Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.session.Clone()
	if !out.IsFinal() {
		out.Timeline = t.segmenter.Segments()
	}
	return out
}

// Status returns the lifecycle status
func (t *FocusTracker) Status() types.SessionStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.Status
}

// DroppedFrames counts frames discarded while paused
func (t *FocusTracker) DroppedFrames() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}
