package capture

import (
	"sync"
	"sync/atomic"
)

// DefaultQueueDepth is the number of textures a session's frame channel keeps
// before it starts dropping the oldest.
const DefaultQueueDepth = 4

// FrameChannel carries textures from the frame-arrived handler to consumers.
//
// Send never blocks. With a positive depth, sending into a full channel
// evicts the oldest pending texture (released and counted in Dropped) so
// the newest frames win; a depth <= 0 never drops. Receive blocks until a
// texture is queued or the channel is closed.
type FrameChannel struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Texture
	depth   int
	closed  bool
	dropped atomic.Uint64
}

// NewFrameChannel creates a channel holding at most depth pending textures.
func NewFrameChannel(depth int) *FrameChannel {
	c := &FrameChannel{depth: depth}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Send queues tex. It fails only after Close.
func (c *FrameChannel) Send(tex Texture) error {
	var evicted Texture

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	if c.depth > 0 && len(c.queue) >= c.depth {
		evicted = c.queue[0]
		c.queue[0] = nil
		c.queue = c.queue[1:]
		c.dropped.Add(1)
	}
	c.queue = append(c.queue, tex)
	c.cond.Signal()
	c.mu.Unlock()

	if evicted != nil {
		evicted.Release()
	}
	return nil
}

// Receive blocks until a texture is available. ok is false once the
// channel has been closed.
func (c *FrameChannel) Receive() (tex Texture, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.queue) == 0 && !c.closed {
		c.cond.Wait()
	}
	if c.closed {
		return nil, false
	}
	return c.popLocked(), true
}

// TryReceive returns the oldest pending texture without blocking.
// ok is false when nothing is queued or the channel is closed.
func (c *FrameChannel) TryReceive() (tex Texture, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || len(c.queue) == 0 {
		return nil, false
	}
	return c.popLocked(), true
}

func (c *FrameChannel) popLocked() Texture {
	tex := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	if len(c.queue) == 0 {
		c.queue = nil
	}
	return tex
}

// Len returns the number of pending textures.
func (c *FrameChannel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Dropped returns how many textures were evicted by a full channel.
func (c *FrameChannel) Dropped() uint64 {
	return c.dropped.Load()
}

// Closed reports whether Close has run.
func (c *FrameChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close ends the stream. Pending textures are released and every blocked or
// future Receive observes end-of-stream. Safe to call more than once.
func (c *FrameChannel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.queue
	c.queue = nil
	c.cond.Broadcast()
	c.mu.Unlock()

	for _, tex := range pending {
		if tex != nil {
			tex.Release()
		}
	}
}
