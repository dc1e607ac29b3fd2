package readiness

import (
	"context"
	"sync"
)

// Barrier is a counting quiescence gate for one category of
// asynchronous work (GPU uploads, image decode, glyph shaping, ...).
// Producers bracket each unit of work with Start/finish; consumers
// Wait for the pending count to return to zero. Wait is unbounded by
// design: bounding a stuck barrier is the caller's job, via its
// context.
type Barrier struct {
	mu      sync.Mutex
	pending int
	waiters []chan struct{}
}

func NewBarrier() *Barrier {
	return &Barrier{}
}

// Start marks one unit of pending work and returns its completion
// function. The completion function must be called when the work
// finishes or fails; calls beyond the first are no-ops, so retried
// async completions cannot drive the count negative.
func (b *Barrier) Start() func() {
	b.mu.Lock()
	b.pending++
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(b.finishOne)
	}
}

func (b *Barrier) finishOne() {
	b.mu.Lock()
	b.pending--
	var wake []chan struct{}
	if b.pending == 0 {
		wake = b.waiters
		b.waiters = nil
	}
	b.mu.Unlock()

	for _, ch := range wake {
		close(ch)
	}
}

// Pending returns the current count of outstanding work units.
func (b *Barrier) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Wait returns nil immediately if nothing is pending, otherwise blocks
// until the count next reaches zero or the context is done.
func (b *Barrier) Wait(ctx context.Context) error {
	b.mu.Lock()
	if b.pending == 0 {
		b.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	b.waiters = append(b.waiters, ch)
	b.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready waits for quiescence that survives one settle tick: reach
// zero, run the settle hook, and re-check, looping until a zero holds
// across the tick. The extra tick absorbs work enqueued by whatever
// state change just settled, like a GPU upload triggered by the value
// that completed.
func (b *Barrier) Ready(ctx context.Context, settle func()) error {
	for {
		if err := b.Wait(ctx); err != nil {
			return err
		}
		if settle != nil {
			settle()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		b.mu.Lock()
		quiet := b.pending == 0
		b.mu.Unlock()
		if quiet {
			return nil
		}
	}
}
