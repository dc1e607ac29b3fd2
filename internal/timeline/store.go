package timeline

import (
	"math"
	"sync"
)

// Frame is the sole project timebase unit. Frames are non-negative
// integers; no wall-clock or sub-frame values enter the model.
type Frame int64

// Store holds the current global frame number and notifies subscribers
// when it changes. It is the single source of truth for project time:
// the playback scheduler advances it during interactive playback and an
// external capture driver sets it directly in export mode, including
// backward for retries.
type Store struct {
	mu      sync.Mutex
	value   Frame
	nextSub int
	subs    []subscription
}

type subscription struct {
	id int
	fn func(Frame)
}

func NewStore() *Store {
	return &Store{}
}

// Get returns the current global frame.
func (s *Store) Get() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set commits a new global frame. The input is floored and clamped to
// zero; NaN and infinities collapse to zero. If the sanitized value
// equals the current one the call is a no-op and nothing is notified.
// Listeners run synchronously, in registration order, after the value
// is committed; each listener fires at most once per Set.
func (s *Store) Set(v float64) Frame {
	frame := Sanitize(v)

	s.mu.Lock()
	if frame == s.value {
		s.mu.Unlock()
		return frame
	}
	s.value = frame
	// Snapshot so listeners may subscribe/unsubscribe without
	// deadlocking, and so this Set notifies a fixed set exactly once.
	notify := make([]subscription, len(s.subs))
	copy(notify, s.subs)
	s.mu.Unlock()

	for _, sub := range notify {
		sub.fn(frame)
	}

	return frame
}

// SetFrame is Set for callers that already hold an integral frame.
func (s *Store) SetFrame(f Frame) Frame {
	return s.Set(float64(f))
}

// Subscribe registers a listener and returns its unsubscribe function.
// The unsubscribe function may be called more than once.
func (s *Store) Subscribe(fn func(Frame)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Sanitize maps an arbitrary float input to a valid frame: floored,
// clamped to zero, non-finite values collapse to zero.
func Sanitize(v float64) Frame {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f := math.Floor(v)
	if f < 0 {
		return 0
	}
	return Frame(f)
}
