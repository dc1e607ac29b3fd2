package playback

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"framestage/internal/timeline"
)

type State int

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

// Frames of divergence between the store and the scheduler's last
// commit before the origin is re-anchored instead of compounding drift.
const driftTolerance = 1

// Scheduler advances the frame store at wall-clock rate during
// interactive playback. It anchors playback to an (origin frame,
// origin timestamp) pair and on every tick commits
// floor(origin + elapsed*fps), so pacing is drift-corrected rather
// than accumulated tick by tick.
//
// Backpressure is a single slot: while the downstream renderer has not
// caught up with the last committed frame, new targets overwrite the
// queued slot instead of the store, and the queue flushes on the first
// tick after the renderer reports in. Until a renderer reports at all,
// commits are unrestricted.
type Scheduler struct {
	store  *timeline.Store
	clock  Clock
	logger zerolog.Logger

	mu          sync.Mutex
	state       State
	fps         float64
	lastFrame   timeline.Frame
	loop        bool
	originFrame timeline.Frame
	originTime  time.Time
	committed   timeline.Frame
	rendered    timeline.Frame // last externally rendered frame, -1 until reported
	queued      *timeline.Frame
}

type Options struct {
	FPS       float64
	LastFrame timeline.Frame
	Loop      bool
}

func NewScheduler(store *timeline.Store, clock Clock, opts Options, logger zerolog.Logger) *Scheduler {
	fps := opts.FPS
	if fps <= 0 {
		fps = 60
	}
	return &Scheduler{
		store:     store,
		clock:     clock,
		logger:    logger,
		fps:       fps,
		lastFrame: opts.LastFrame,
		loop:      opts.Loop,
		rendered:  -1,
	}
}

// Run drives ticks from a wall-clock ticker until the context is done.
// Ticks are strictly sequential: a new tick is never started while the
// previous one runs.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Play transitions stopped -> playing, capturing the current frame and
// timestamp as the playback origin. Playing is a no-op while playing.
func (s *Scheduler) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Playing {
		return
	}

	s.state = Playing
	s.originFrame = s.store.Get()
	s.originTime = s.clock.Now()
	s.committed = s.originFrame
	s.queued = nil

	s.logger.Debug().
		Int64("origin", int64(s.originFrame)).
		Float64("fps", s.fps).
		Msg("playback started")
}

// Pause halts frame advancement. Outstanding readiness work is never
// cancelled by stopping; only the clock stops.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.state == Stopped {
		return
	}
	s.state = Stopped
	s.queued = nil
	s.logger.Debug().Msg("playback stopped")
}

// State returns the current scheduler state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetLastFrame updates the final valid frame of the composition.
func (s *Scheduler) SetLastFrame(f timeline.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f < 0 {
		f = 0
	}
	s.lastFrame = f
}

// SetLoop toggles wrap-around at the end of the composition.
func (s *Scheduler) SetLoop(loop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop = loop
}

// ReportRendered records the last frame the downstream renderer has
// fully consumed. The first report arms backpressure; the queued
// target, if any, flushes on the next tick.
func (s *Scheduler) ReportRendered(f timeline.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f < 0 {
		f = 0
	}
	s.rendered = f
}

// Tick performs one scheduling step. Exported so tests and embedding
// hosts can drive it directly; Run calls it from the ticker loop.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Playing {
		return
	}

	now := s.clock.Now()

	// Re-anchor on external jumps (scrubbing while nominally playing):
	// trusting the observed frame beats compounding drift against a
	// stale origin. A pending queued target is superseded by the jump.
	observed := s.store.Get()
	if absFrame(observed-s.committed) > driftTolerance {
		s.logger.Debug().
			Int64("observed", int64(observed)).
			Int64("committed", int64(s.committed)).
			Msg("re-anchoring playback origin")
		s.originFrame = observed
		s.originTime = now
		s.committed = observed
		s.queued = nil
		return
	}

	elapsed := now.Sub(s.originTime).Seconds()
	target := s.originFrame + timeline.Frame(math.Floor(elapsed*s.fps))

	if target > s.lastFrame {
		if s.loop {
			s.originFrame = 0
			s.originTime = now
			s.commitLocked(0)
			return
		}
		s.store.SetFrame(s.lastFrame)
		s.committed = s.lastFrame
		s.stopLocked()
		return
	}

	if target != s.committed {
		s.commitLocked(target)
		return
	}

	// Caught-up consumer flushes a queued target even when the ideal
	// frame has not moved since it was queued.
	if s.queued != nil && s.caughtUpLocked() {
		q := *s.queued
		s.queued = nil
		s.commitLocked(q)
	}
}

func (s *Scheduler) caughtUpLocked() bool {
	return s.rendered < 0 || s.rendered >= s.committed
}

// commitLocked writes target to the store unless the renderer still
// lags the previous commit, in which case target takes the single
// queued slot (overwriting any older queued value, never the store).
func (s *Scheduler) commitLocked(target timeline.Frame) {
	if !s.caughtUpLocked() {
		t := target
		s.queued = &t
		return
	}
	s.queued = nil
	s.committed = target
	s.store.SetFrame(target)
}

// Committed returns the last frame this scheduler wrote.
func (s *Scheduler) Committed() timeline.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// Manual stepping. Each op stops playback first, then sets the store
// directly; the store clamps at zero.

func (s *Scheduler) StepForward() {
	s.stepTo(s.store.Get() + 1)
}

func (s *Scheduler) StepBack() {
	s.stepTo(s.store.Get() - 1)
}

func (s *Scheduler) JumpToStart() {
	s.stepTo(0)
}

func (s *Scheduler) JumpToEnd() {
	s.mu.Lock()
	end := s.lastFrame
	s.mu.Unlock()
	s.stepTo(end)
}

func (s *Scheduler) stepTo(f timeline.Frame) {
	s.mu.Lock()
	s.stopLocked()
	s.committed = timeline.Sanitize(float64(f))
	s.mu.Unlock()
	s.store.SetFrame(f)
}

func absFrame(f timeline.Frame) timeline.Frame {
	if f < 0 {
		return -f
	}
	return f
}
