package cache

import (
	"bytes"
	"testing"
)

func key(frame int64) FrameKey {
	return FrameKey{Path: "/media/a.mp4", Frame: frame, Width: 4, Height: 4}
}

func TestGetSet(t *testing.T) {
	c := NewFrameCache(8, 1024)

	data := []byte{1, 2, 3, 4}
	c.Set(key(0), data)

	got, ok := c.Get(key(0))
	if !ok || !bytes.Equal(got, data) {
		t.Fatalf("Get = %v,%v, want %v,true", got, ok, data)
	}

	if _, ok := c.Get(key(1)); ok {
		t.Error("hit for frame never stored")
	}

	// Same frame at another size is a distinct entry.
	other := FrameKey{Path: "/media/a.mp4", Frame: 0, Width: 8, Height: 8}
	if _, ok := c.Get(other); ok {
		t.Error("hit across differing dimensions")
	}
}

func TestEvictsByCapacity(t *testing.T) {
	c := NewFrameCache(2, 1024)

	c.Set(key(0), []byte{0})
	c.Set(key(1), []byte{1})
	c.Set(key(2), []byte{2})

	if _, ok := c.Get(key(0)); ok {
		t.Error("oldest frame survived past capacity")
	}
	if _, ok := c.Get(key(2)); !ok {
		t.Error("newest frame evicted")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestEvictsByByteBudget(t *testing.T) {
	c := NewFrameCache(100, 10)

	c.Set(key(0), make([]byte, 6))
	c.Set(key(1), make([]byte, 6)) // pushes total to 12, evicts frame 0

	if _, ok := c.Get(key(0)); ok {
		t.Error("frame 0 survived past the byte budget")
	}
	if c.Size() != 6 {
		t.Errorf("Size = %d, want 6", c.Size())
	}

	// A payload larger than the whole budget is not cached.
	c.Set(key(2), make([]byte, 11))
	if _, ok := c.Get(key(2)); ok {
		t.Error("oversized payload cached")
	}
}

func TestRecencyOrder(t *testing.T) {
	c := NewFrameCache(2, 1024)

	c.Set(key(0), []byte{0})
	c.Set(key(1), []byte{1})
	c.Get(key(0)) // refresh frame 0
	c.Set(key(2), []byte{2})

	if _, ok := c.Get(key(0)); !ok {
		t.Error("recently used frame evicted")
	}
	if _, ok := c.Get(key(1)); ok {
		t.Error("least recently used frame survived")
	}
}

func TestInvalidateSource(t *testing.T) {
	c := NewFrameCache(8, 1024)

	c.Set(key(0), []byte{0})
	c.Set(key(1), []byte{1})
	c.Set(FrameKey{Path: "/media/b.mp4", Frame: 0, Width: 4, Height: 4}, []byte{9})

	c.InvalidateSource("/media/a.mp4")

	if c.Len() != 1 {
		t.Errorf("Len = %d after invalidate, want 1", c.Len())
	}
	if _, ok := c.Get(FrameKey{Path: "/media/b.mp4", Frame: 0, Width: 4, Height: 4}); !ok {
		t.Error("unrelated source invalidated")
	}
}

func TestSetUpdatesExisting(t *testing.T) {
	c := NewFrameCache(8, 1024)

	c.Set(key(0), []byte{1, 2})
	c.Set(key(0), []byte{3, 4, 5})

	got, _ := c.Get(key(0))
	if !bytes.Equal(got, []byte{3, 4, 5}) {
		t.Errorf("Get = %v, want updated payload", got)
	}
	if c.Size() != 3 {
		t.Errorf("Size = %d, want 3", c.Size())
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestClampsNonPositiveCapacity(t *testing.T) {
	c := NewFrameCache(0, 1024)

	// Must terminate and keep at least the newest entry.
	c.Set(key(0), []byte{0})
	c.Set(key(1), []byte{1})

	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
	if _, ok := c.Get(key(1)); !ok {
		t.Error("newest entry missing")
	}
}
