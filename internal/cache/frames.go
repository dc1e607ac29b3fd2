package cache

import (
	"container/list"
	"sync"
)

// FrameKey identifies one decoded frame payload: source path, frame
// index and output dimensions. The same source frame at two sizes is
// two entries.
type FrameKey struct {
	Path   string
	Frame  int64
	Width  int
	Height int
}

// FrameCache is a thread-safe LRU for decoded RGBA frame payloads,
// bounded both by entry count and by total bytes. Capture mode walks
// frames mostly forward, so recency eviction keeps the working set of
// nearby frames resident while old ones fall out.
type FrameCache struct {
	capacity int
	size     int64
	maxSize  int64 // total byte budget
	items    map[FrameKey]*list.Element
	order    *list.List
	mu       sync.RWMutex
}

type frameEntry struct {
	key  FrameKey
	data []byte
}

// NewFrameCache creates a cache holding at most capacity frames and
// maxSizeBytes of payload. A non-positive capacity would make the
// eviction loop in Set spin forever on an empty list, so it is clamped.
func NewFrameCache(capacity int, maxSizeBytes int64) *FrameCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &FrameCache{
		capacity: capacity,
		maxSize:  maxSizeBytes,
		items:    make(map[FrameKey]*list.Element),
		order:    list.New(),
	}
}

// Get retrieves a frame payload and marks it most recently used.
func (c *FrameCache) Get(key FrameKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*frameEntry).data, true
	}
	return nil, false
}

// Set stores or refreshes a frame payload. Payloads larger than the
// whole byte budget are not cached at all.
func (c *FrameCache) Set(key FrameKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dataSize := int64(len(data))
	if dataSize > c.maxSize {
		return
	}

	if elem, ok := c.items[key]; ok {
		old := elem.Value.(*frameEntry)
		c.size -= int64(len(old.data))
		old.data = data
		c.size += dataSize
		c.order.MoveToFront(elem)
		return
	}

	for c.order.Len() >= c.capacity || (c.size+dataSize > c.maxSize && c.order.Len() > 0) {
		c.evictOldest()
	}

	entry := &frameEntry{key: key, data: data}
	elem := c.order.PushFront(entry)
	c.items[key] = elem
	c.size += dataSize
}

// InvalidateSource drops every cached frame belonging to a path, used
// when the underlying media file changes on disk.
func (c *FrameCache) InvalidateSource(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, elem := range c.items {
		if key.Path == path {
			c.removeElement(elem)
		}
	}
}

// Len returns the number of cached frames.
func (c *FrameCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}

// Size returns the cached payload bytes.
func (c *FrameCache) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

func (c *FrameCache) evictOldest() {
	elem := c.order.Back()
	if elem != nil {
		c.removeElement(elem)
	}
}

func (c *FrameCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*frameEntry)
	c.order.Remove(elem)
	delete(c.items, entry.key)
	c.size -= int64(len(entry.data))
}
