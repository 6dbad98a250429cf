package capture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/breeze-rmm/wgcapture/internal/logging"
)

var log = logging.L("capture")

// Option configures a Session.
type Option func(*options)

type options struct {
	queueDepth int
	logger     *slog.Logger
}

// WithQueueDepth sets how many textures the frame channel holds before the
// oldest is dropped. depth <= 0 makes the channel unbounded.
func WithQueueDepth(depth int) Option {
	return func(o *options) { o.queueDepth = depth }
}

// WithLogger overrides the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Stats is a snapshot of a session's frame counters.
type Stats struct {
	Received       uint64 // textures pushed by the frame handler
	Dropped        uint64 // textures evicted by a full frame channel
	Pending        int    // textures waiting in the frame channel
	CallbackErrors uint64 // handler invocations that reported an error
	ReadBack       uint64 // frames copied to CPU memory
}

// Session streams frames of one capture item. It is Active from a
// successful NewSession until Close; every operation other than Close and
// Receive fails with ErrNotActive afterwards.
//
// A Session should be closed explicitly. An active session that becomes
// unreachable is released by a runtime cleanup, which logs instead of
// returning release errors.
type Session struct {
	core *sessionCore
}

// sessionCore holds everything release touches. It is kept apart from
// Session so the runtime cleanup can reach it without keeping the Session
// alive.
type sessionCore struct {
	device  Device
	ctx     DeviceContext
	item    CaptureItem
	size    Size
	pool    FramePool
	session GraphicsSession
	token   EventToken
	handler bool
	stager  *Stager
	stream  *stream
	log     *slog.Logger

	active    atomic.Bool
	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error
	readBack  atomic.Uint64
}

// stream is the state shared with the frame-arrived handler. The handler
// holds mu for reading while it runs; detach takes it for writing before
// closing the channel, so the handler never sends into a closed channel.
type stream struct {
	mu       sync.RWMutex
	detached bool
	device   Device
	frames   *FrameChannel
	log      *slog.Logger

	received       atomic.Uint64
	callbackErrors atomic.Uint64
}

// NewSession creates a free-threaded, single-buffer B8G8R8A8 frame pool for
// dev's capture item, registers the frame handler and starts capturing.
// Construction is all-or-nothing: on failure everything created so far is
// released before the error is returned.
func NewSession(dev Device, opts ...Option) (*Session, error) {
	o := options{queueDepth: DefaultQueueDepth, logger: log}
	for _, opt := range opts {
		opt(&o)
	}

	if dev == nil {
		return nil, &PlatformError{Op: "get capture item", Err: errors.New("nil device")}
	}
	c := &sessionCore{device: dev, item: dev.Item(), log: o.logger}
	if c.item == nil {
		return nil, &PlatformError{Op: "get capture item", Err: errors.New("device has no capture item")}
	}

	ctx, err := dev.ImmediateContext()
	if err != nil {
		return nil, platformError("get immediate context", err)
	}
	c.ctx = ctx
	c.stager = NewStager(dev, ctx)

	size, err := c.item.Size()
	if err != nil {
		return nil, c.abort(platformError("get capture item size", err))
	}
	c.size = size

	pool, err := dev.CreateFreeThreadedFramePool(PixelFormatB8G8R8A8UNorm, FramePoolBuffers, size)
	if err != nil {
		return nil, c.abort(platformError("create frame pool", err))
	}
	c.pool = pool

	gs, err := pool.CreateCaptureSession(c.item)
	if err != nil {
		return nil, c.abort(platformError("create capture session", err))
	}
	c.session = gs

	c.stream = &stream{
		device: dev,
		frames: NewFrameChannel(o.queueDepth),
		log:    o.logger,
	}

	token, err := pool.AddFrameArrived(c.stream.onFrameArrived)
	if err != nil {
		return nil, c.abort(platformError("register frame arrived handler", err))
	}
	c.token = token
	c.handler = true

	if err := gs.StartCapture(); err != nil {
		return nil, c.abort(platformError("start capture", err))
	}

	c.active.Store(true)
	s := &Session{core: c}
	runtime.AddCleanup(s, releaseAbandoned, c)

	c.log.Info("capture session started",
		"width", size.Width, "height", size.Height, "queueDepth", o.queueDepth)
	return s, nil
}

// abort releases a partially constructed session and returns cause.
func (c *sessionCore) abort(cause error) error {
	if err := c.release(); err != nil {
		c.log.Warn("release after failed construction", logging.KeyError, err)
	}
	return cause
}

func releaseAbandoned(c *sessionCore) {
	if !c.active.Load() {
		return
	}
	c.log.Warn("capture session was not closed, releasing")
	if err := c.release(); err != nil {
		c.log.Warn("release of abandoned capture session failed", logging.KeyError, err)
	}
}

// release runs teardown exactly once and returns its first error.
func (c *sessionCore) release() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.teardown()
	})
	return c.closeErr
}

func (c *sessionCore) teardown() error {
	c.active.Store(false)

	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	if c.handler {
		keep(platformError("remove frame arrived handler", c.pool.RemoveFrameArrived(c.token)))
		c.handler = false
	}
	// The platform may still deliver an invocation that started before the
	// handler was removed. detach waits it out, so nothing touches the pool
	// once it is closed.
	if c.stream != nil {
		c.stream.detach()
	}
	if c.session != nil {
		keep(platformError("close capture session", c.session.Close()))
	}
	if c.pool != nil {
		keep(platformError("close frame pool", c.pool.Close()))
	}
	if c.stager != nil {
		c.stager.Close()
	}
	if c.ctx != nil {
		c.ctx.Release()
	}
	return first
}

// Close stops the stream and releases the frame pool, the capture session
// and the frame handler. Pending textures are released and Receive reports
// end-of-stream afterwards. Only the first call does any work; later calls
// return nil.
func (s *Session) Close() error {
	c := s.core
	if !c.active.Load() || !c.closing.CompareAndSwap(false, true) {
		return nil
	}
	var stats Stats
	if c.stream != nil {
		stats = s.Stats()
	}
	err := c.release()
	c.log.Info("capture session closed",
		"received", stats.Received, "dropped", stats.Dropped, "readBack", stats.ReadBack)
	return err
}

// Active reports whether the session is streaming.
func (s *Session) Active() bool {
	return s.core.active.Load()
}

// Size returns the capture item size the frame pool was created with.
func (s *Session) Size() Size {
	return s.core.size
}

// Frames returns the receiving end of the session's frame channel.
func (s *Session) Frames() *FrameChannel {
	return s.core.stream.frames
}

// Receive blocks until the frame handler delivers a texture. ok is false at
// end-of-stream, once the session is closed. The caller owns tex and must
// Release it.
func (s *Session) Receive() (tex Texture, ok bool) {
	return s.core.stream.frames.Receive()
}

// TryReceive returns the oldest pending texture, or ErrNoTexture when no
// frame has arrived.
func (s *Session) TryReceive() (Texture, error) {
	c := s.core
	if !c.active.Load() {
		return nil, ErrNotActive
	}
	tex, ok := c.stream.frames.TryReceive()
	if !ok {
		if c.stream.frames.Closed() {
			return nil, ErrNotActive
		}
		return nil, ErrNoTexture
	}
	return tex, nil
}

// ReadBack copies a staged texture to CPU memory using the session's
// immediate context.
func (s *Session) ReadBack(tex Texture) (RawFrameData, error) {
	c := s.core
	if !c.active.Load() {
		return RawFrameData{}, ErrNotActive
	}
	frame, err := c.stager.ReadBack(tex)
	if err != nil {
		return RawFrameData{}, err
	}
	c.readBack.Add(1)
	return frame, nil
}

// Capture reads back the oldest pending frame without blocking, staging it
// first when needed. It returns ErrNoTexture before any frame has arrived.
func (s *Session) Capture() (RawFrameData, error) {
	tex, err := s.TryReceive()
	if err != nil {
		return RawFrameData{}, err
	}
	defer tex.Release()
	return s.readFrame(tex)
}

// Next blocks for the next frame and reads it back. It returns io.EOF once
// the session has been closed.
func (s *Session) Next() (RawFrameData, error) {
	tex, ok := s.Receive()
	if !ok {
		return RawFrameData{}, io.EOF
	}
	defer tex.Release()
	return s.readFrame(tex)
}

func (s *Session) readFrame(tex Texture) (RawFrameData, error) {
	c := s.core
	if !c.active.Load() {
		return RawFrameData{}, ErrNotActive
	}
	frame, err := c.stager.ReadFrame(tex)
	if err != nil {
		return RawFrameData{}, err
	}
	c.readBack.Add(1)
	return frame, nil
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	c := s.core
	return Stats{
		Received:       c.stream.received.Load(),
		Dropped:        c.stream.frames.Dropped(),
		Pending:        c.stream.frames.Len(),
		CallbackErrors: c.stream.callbackErrors.Load(),
		ReadBack:       c.readBack.Load(),
	}
}

// onFrameArrived runs on the platform's capture thread. It never waits on
// consumers: fetch the frame, extract its texture, enqueue.
func (st *stream) onFrameArrived(pool FramePool) error {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if st.detached {
		return ErrNotActive
	}

	frame, err := pool.TryGetNextFrame()
	if err != nil {
		return st.fail(platformError("try get next frame", err))
	}
	if frame == nil {
		return ErrNoTexture
	}
	defer func() {
		if err := frame.Close(); err != nil {
			st.log.Debug("close capture frame", logging.KeyError, err)
		}
	}()

	surface, err := frame.Surface()
	if err != nil {
		return st.fail(platformError("get frame surface", err))
	}
	defer surface.Close()

	tex, err := st.device.FromSurface(surface)
	if err != nil {
		return st.fail(platformError("texture from surface", err))
	}

	if err := st.frames.Send(tex); err != nil {
		tex.Release()
		panic(fmt.Sprintf("capture: frame channel unusable while frame handler is attached: %v", err))
	}
	st.received.Add(1)
	return nil
}

func (st *stream) fail(err error) error {
	n := st.callbackErrors.Add(1)
	if n == 1 || n%100 == 0 {
		st.log.Warn("frame handler failed", "count", n, logging.KeyError, err)
	}
	return err
}

// detach stops the handler from delivering and closes the channel.
func (st *stream) detach() {
	st.mu.Lock()
	st.detached = true
	st.frames.Close()
	st.mu.Unlock()
}
