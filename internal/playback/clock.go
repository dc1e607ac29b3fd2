package playback

import "time"

// Clock abstracts wall time so scheduler ticks can be driven
// deterministically in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// SystemClock returns the clock backed by time.Now.
func SystemClock() Clock {
	return realClock{}
}

// MockClock is a test clock returning a settable instant.
type MockClock struct {
	Time time.Time
}

func (c *MockClock) Now() time.Time {
	return c.Time
}

// Advance moves the mock clock forward.
func (c *MockClock) Advance(d time.Duration) {
	c.Time = c.Time.Add(d)
}
