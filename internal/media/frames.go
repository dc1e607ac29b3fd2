package media

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"framestage/internal/cache"
	"framestage/internal/readiness"
	"framestage/internal/timeline"
)

const frameHeaderLen = 12 // width, height, frame index, u32 little-endian each

// FrameClient fetches decoded RGBA frames from the external decode
// service over one persistent websocket. Requests are keyed by
// (path, frame, size); the service answers each JSON request with a
// binary packet [width][height][frame][rgba...]. The connection is
// dialed on demand and torn down on any protocol error, so the next
// request re-dials.
type FrameClient struct {
	url         string
	dialTimeout time.Duration
	cache       *cache.FrameCache
	ready       *readiness.Registry
	logger      zerolog.Logger

	mu   sync.Mutex // serializes the request/response exchange
	conn *websocket.Conn
}

type frameRequest struct {
	Video  string `json:"video"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
	Frame  uint32 `json:"frame"`
}

func NewFrameClient(url string, dialTimeout time.Duration, frames *cache.FrameCache, ready *readiness.Registry, logger zerolog.Logger) *FrameClient {
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	return &FrameClient{
		url:         url,
		dialTimeout: dialTimeout,
		cache:       frames,
		ready:       ready,
		logger:      logger,
	}
}

// Frame returns the RGBA bytes for one source frame at the requested
// output size, from cache when possible.
func (c *FrameClient) Frame(ctx context.Context, path string, frame timeline.Frame, width, height int) ([]byte, error) {
	if frame < 0 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame request: frame=%d size=%dx%d", frame, width, height)
	}

	key := cache.FrameKey{Path: path, Frame: int64(frame), Width: width, Height: height}
	if data, ok := c.cache.Get(key); ok {
		return data, nil
	}

	// A cache miss means real decode work is in flight; the readiness
	// barrier holds capture back until it lands or fails.
	finish := c.ready.Barrier("video-decode").Start()
	defer finish()

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.exchange(ctx, path, frame, width, height)
	if err != nil {
		c.closeLocked()
		return nil, err
	}

	c.cache.Set(key, data)
	return data, nil
}

// exchange performs one request/response round trip on the shared
// connection. Caller holds c.mu.
func (c *FrameClient) exchange(ctx context.Context, path string, frame timeline.Frame, width, height int) ([]byte, error) {
	conn, err := c.connLocked(ctx)
	if err != nil {
		return nil, err
	}

	req := frameRequest{
		Video:  path,
		Width:  uint32(width),
		Height: uint32(height),
		Frame:  uint32(frame),
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
		conn.SetReadDeadline(deadline)
	} else {
		conn.SetWriteDeadline(time.Time{})
		conn.SetReadDeadline(time.Time{})
	}

	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("send frame request: %w", err)
	}

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read frame response: %w", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		return parseFramePacket(payload, req)
	}
}

func parseFramePacket(payload []byte, req frameRequest) ([]byte, error) {
	if len(payload) < frameHeaderLen {
		return nil, fmt.Errorf("short frame packet: %d bytes", len(payload))
	}

	w := binary.LittleEndian.Uint32(payload[0:4])
	h := binary.LittleEndian.Uint32(payload[4:8])
	idx := binary.LittleEndian.Uint32(payload[8:12])

	if w != req.Width || h != req.Height || idx != req.Frame {
		return nil, fmt.Errorf("frame packet mismatch: got %dx%d@%d want %dx%d@%d",
			w, h, idx, req.Width, req.Height, req.Frame)
	}

	expected := int(w) * int(h) * 4
	body := payload[frameHeaderLen:]
	if len(body) != expected {
		return nil, fmt.Errorf("frame payload size %d, want %d", len(body), expected)
	}

	return body, nil
}

func (c *FrameClient) connLocked(ctx context.Context) (*websocket.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial decode service %s: %w", c.url, err)
	}

	c.logger.Info().Str("url", c.url).Msg("connected to decode service")
	c.conn = conn
	return conn, nil
}

func (c *FrameClient) closeLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// InvalidateSource drops every cached frame for a path, used when the
// file changes on disk.
func (c *FrameClient) InvalidateSource(path string) {
	c.cache.InvalidateSource(path)
}

// Close tears down the connection; a later Frame call re-dials.
func (c *FrameClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}
