package capture

import (
	"sync"
	"sync/atomic"
)

// In-memory implementations of the platform interfaces.

type fakeTexture struct {
	desc     TextureDesc
	pixels   []byte
	pitch    uint32
	released atomic.Int32
}

func (t *fakeTexture) Desc() TextureDesc { return t.desc }
func (t *fakeTexture) Release() { t.released.Add(1) }

func (t *fakeTexture) isReleased() bool { return t.released.Load() > 0 }

// gpuTexture is a default-usage BGRA texture whose content is filled with a
// per-row pattern: every byte of row y is byte(y+1).
func gpuTexture(w, h uint32) *fakeTexture {
	pitch := w * BytesPerPixel
	pixels := make([]byte, int(pitch)*int(h))
	for y := 0; y < int(h); y++ {
		for x := 0; x < int(pitch); x++ {
			pixels[y*int(pitch)+x] = byte(y + 1)
		}
	}
	return &fakeTexture{
		desc: TextureDesc{
			Width: w, Height: h, MipLevels: 1, ArraySize: 1,
			Format: PixelFormatB8G8R8A8UNorm, SampleCount: 1,
			Usage: UsageDefault, BindFlags: 0x20,
		},
		pixels: pixels,
		pitch:  pitch,
	}
}

// stagedTexture is a CPU-readable BGRA texture with the given row pitch.
// Row y holds byte(y) in its pixel bytes and 0xEE in the padding.
func stagedTexture(w, h, pitch uint32) *fakeTexture {
	pixels := make([]byte, int(pitch)*int(h))
	for y := 0; y < int(h); y++ {
		for x := 0; x < int(pitch); x++ {
			v := byte(y)
			if x >= int(w)*BytesPerPixel {
				v = 0xEE
			}
			pixels[y*int(pitch)+x] = v
		}
	}
	return &fakeTexture{
		desc:   StagingDesc(TextureDesc{Width: w, Height: h, Format: PixelFormatB8G8R8A8UNorm}),
		pixels: pixels,
		pitch:  pitch,
	}
}

type fakeContext struct {
	mu       sync.Mutex
	mapErr   error
	maps     int
	unmaps   int
	copies   int
	released atomic.Bool
}

func (c *fakeContext) Map(tex Texture) (Mapped, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mapErr != nil {
		return Mapped{}, c.mapErr
	}
	c.maps++
	t := tex.(*fakeTexture)
	return Mapped{Data: t.pixels, RowPitch: t.pitch}, nil
}

func (c *fakeContext) Unmap(Texture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unmaps++
}

func (c *fakeContext) CopyResource(dst, src Texture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.copies++
	d, s := dst.(*fakeTexture), src.(*fakeTexture)
	d.pixels = append([]byte(nil), s.pixels...)
	d.pitch = s.pitch
}

func (c *fakeContext) Release() { c.released.Store(true) }

func (c *fakeContext) counts() (maps, unmaps, copies int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maps, c.unmaps, c.copies
}

type fakeItem struct {
	size Size
	err  error
}

func (i *fakeItem) Size() (Size, error) { return i.size, i.err }

type fakeSurface struct {
	tex    *fakeTexture
	closed atomic.Bool
}

func (s *fakeSurface) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeFrame struct {
	tex        *fakeTexture
	surfaceErr error
	closed     atomic.Bool
}

func (f *fakeFrame) Surface() (Surface, error) {
	if f.surfaceErr != nil {
		return nil, f.surfaceErr
	}
	return &fakeSurface{tex: f.tex}, nil
}

func (f *fakeFrame) Close() error {
	f.closed.Store(true)
	return nil
}

type fakeGraphicsSession struct {
	startErr error
	closeErr error
	started  atomic.Bool
	closed   atomic.Int32
}

func (s *fakeGraphicsSession) StartCapture() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started.Store(true)
	return nil
}

func (s *fakeGraphicsSession) Close() error {
	s.closed.Add(1)
	return s.closeErr
}

type fakePool struct {
	mu        sync.Mutex
	frames    []*fakeFrame
	handler   FrameArrivedHandler
	nextErr   error
	sessErr   error
	addErr    error
	removeErr error
	closeErr  error
	gs        *fakeGraphicsSession

	format  PixelFormat
	buffers int
	size    Size
	removed atomic.Int32
	closed  atomic.Int32
}

func (p *fakePool) CreateCaptureSession(CaptureItem) (GraphicsSession, error) {
	if p.sessErr != nil {
		return nil, p.sessErr
	}
	return p.gs, nil
}

func (p *fakePool) AddFrameArrived(fn FrameArrivedHandler) (EventToken, error) {
	if p.addErr != nil {
		return 0, p.addErr
	}
	p.mu.Lock()
	p.handler = fn
	p.mu.Unlock()
	return 42, nil
}

func (p *fakePool) RemoveFrameArrived(token EventToken) error {
	if token != 42 {
		panic("unexpected event token")
	}
	p.removed.Add(1)
	p.mu.Lock()
	p.handler = nil
	p.mu.Unlock()
	return p.removeErr
}

func (p *fakePool) TryGetNextFrame() (Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nextErr != nil {
		return nil, p.nextErr
	}
	if len(p.frames) == 0 {
		return nil, nil
	}
	f := p.frames[0]
	p.frames = p.frames[1:]
	return f, nil
}

func (p *fakePool) Close() error {
	p.closed.Add(1)
	return p.closeErr
}

func (p *fakePool) currentHandler() FrameArrivedHandler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handler
}

// deliver queues a frame for tex and invokes the registered handler the way
// the platform does on its capture thread.
func (p *fakePool) deliver(tex *fakeTexture) (*fakeFrame, error) {
	f := &fakeFrame{tex: tex}
	p.mu.Lock()
	p.frames = append(p.frames, f)
	p.mu.Unlock()
	h := p.currentHandler()
	if h == nil {
		return f, nil
	}
	return f, h(p)
}

type fakeDevice struct {
	ctx            *fakeContext
	item           *fakeItem
	pool           *fakePool
	ctxErr         error
	poolErr        error
	fromSurfaceErr error
	createErr      error
	onFromSurface  func() // runs inside the frame handler before the texture is returned

	mu      sync.Mutex
	created []*fakeTexture
}

func newFakeDevice(w, h int32) *fakeDevice {
	return &fakeDevice{
		ctx:  &fakeContext{},
		item: &fakeItem{size: Size{Width: w, Height: h}},
		pool: &fakePool{gs: &fakeGraphicsSession{}},
	}
}

func (d *fakeDevice) ImmediateContext() (DeviceContext, error) {
	if d.ctxErr != nil {
		return nil, d.ctxErr
	}
	return d.ctx, nil
}

func (d *fakeDevice) Item() CaptureItem { return d.item }

func (d *fakeDevice) CreateFreeThreadedFramePool(format PixelFormat, buffers int, size Size) (FramePool, error) {
	if d.poolErr != nil {
		return nil, d.poolErr
	}
	d.pool.format = format
	d.pool.buffers = buffers
	d.pool.size = size
	return d.pool, nil
}

func (d *fakeDevice) FromSurface(s Surface) (Texture, error) {
	if d.onFromSurface != nil {
		d.onFromSurface()
	}
	if d.fromSurfaceErr != nil {
		return nil, d.fromSurfaceErr
	}
	return s.(*fakeSurface).tex, nil
}

func (d *fakeDevice) CreateTexture2D(desc TextureDesc) (Texture, error) {
	if d.createErr != nil {
		return nil, d.createErr
	}
	t := &fakeTexture{desc: desc}
	d.mu.Lock()
	d.created = append(d.created, t)
	d.mu.Unlock()
	return t, nil
}

func (d *fakeDevice) createdTextures() []*fakeTexture {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeTexture(nil), d.created...)
}
