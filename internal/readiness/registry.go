package readiness

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"framestage/internal/timeline"
)

// FrameWaiter is a per-frame readiness precondition registered by a
// media source: it is invoked with the target frame and must return
// before capture proceeds. This is how a video element asserts "frame
// N is decoded and presented", distinct from generic pending-work
// quiescence.
type FrameWaiter func(ctx context.Context, frame timeline.Frame) error

// Registry holds one Barrier per resource category plus the named
// per-frame waiters, and composes them into the aggregate ready-check
// an external capture driver runs before sampling a frame.
type Registry struct {
	mu       sync.Mutex
	barriers map[string]*Barrier
	waiters  map[string]FrameWaiter
	settle   func()
	logger   zerolog.Logger
}

// NewRegistry creates a registry whose settle hook yields for one
// rendering-host tick between quiescence and the re-check. Tests pass
// a zero-length hook.
func NewRegistry(settleTick time.Duration, logger zerolog.Logger) *Registry {
	return &Registry{
		barriers: make(map[string]*Barrier),
		waiters:  make(map[string]FrameWaiter),
		settle:   func() { time.Sleep(settleTick) },
		logger:   logger,
	}
}

// Barrier returns the category's barrier, creating it on first use.
func (r *Registry) Barrier(category string) *Barrier {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.barriers[category]
	if !ok {
		b = NewBarrier()
		r.barriers[category] = b
	}
	return b
}

// Pending returns the pending count per category, for diagnostics.
func (r *Registry) Pending() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.barriers))
	for name, b := range r.barriers {
		out[name] = b.Pending()
	}
	return out
}

// ReadyAll runs every category's settle-checked Ready. Categories are
// visited in name order so repeated stuck-barrier logs point at the
// same category first.
func (r *Registry) ReadyAll(ctx context.Context) error {
	r.mu.Lock()
	names := make([]string, 0, len(r.barriers))
	for name := range r.barriers {
		names = append(names, name)
	}
	settle := r.settle
	r.mu.Unlock()
	sort.Strings(names)

	for _, name := range names {
		if err := r.Barrier(name).Ready(ctx, settle); err != nil {
			r.logger.Warn().Str("category", name).Err(err).Msg("readiness wait aborted")
			return err
		}
	}
	return nil
}

// RegisterFrameWaiter adds or replaces a named per-frame waiter and
// returns its deregistration function.
func (r *Registry) RegisterFrameWaiter(name string, fn FrameWaiter) func() {
	r.mu.Lock()
	r.waiters[name] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.waiters, name)
	}
}

// AwaitFrame invokes every registered per-frame waiter with the target
// frame, in name order, stopping at the first failure.
func (r *Registry) AwaitFrame(ctx context.Context, frame timeline.Frame) error {
	r.mu.Lock()
	names := make([]string, 0, len(r.waiters))
	for name := range r.waiters {
		names = append(names, name)
	}
	fns := make(map[string]FrameWaiter, len(names))
	for _, name := range names {
		fns[name] = r.waiters[name]
	}
	r.mu.Unlock()
	sort.Strings(names)

	for _, name := range names {
		if err := fns[name](ctx, frame); err != nil {
			r.logger.Warn().
				Str("waiter", name).
				Int64("frame", int64(frame)).
				Err(err).
				Msg("frame waiter failed")
			return err
		}
	}
	return nil
}
