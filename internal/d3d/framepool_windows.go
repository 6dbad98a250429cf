//go:build windows

package d3d

import (
	"sync"
	"unsafe"

	"github.com/breeze-rmm/wgcapture/pkg/capture"
)

// framePool wraps an IDirect3D11CaptureFramePool. Every call holds life for
// reading; Close takes it for writing, so the pointer is never released under
// an in-flight call and calls after Close fail with RO_E_CLOSED.
type framePool struct {
	life   sync.RWMutex
	ptr    uintptr
	closed bool

	mu       sync.Mutex
	handlers map[capture.EventToken]*frameArrivedHandler
}

// acquire returns the live pool pointer with life read-locked, or an error
// once the pool is closed. Callers must call p.life.RUnlock.
func (p *framePool) acquire(op string) (uintptr, error) {
	p.life.RLock()
	if p.closed {
		return 0, capture.NewPlatformError(op, roEClosed)
	}
	return p.ptr, nil
}

func (p *framePool) CreateCaptureSession(item capture.CaptureItem) (capture.GraphicsSession, error) {
	const op = "Direct3D11CaptureFramePool::CreateCaptureSession"
	ptr, err := p.acquire(op)
	defer p.life.RUnlock()
	if err != nil {
		return nil, err
	}

	it, ok := item.(*captureItem)
	if !ok || it.ptr == 0 {
		return nil, capture.NewPlatformError(op, hrEPointer)
	}
	var session uintptr
	if err := comCall(op, ptr, framePoolCreateCaptureSession,
		it.ptr,
		uintptr(unsafe.Pointer(&session)),
	); err != nil {
		return nil, err
	}
	return &graphicsSession{ptr: session}, nil
}

// AddFrameArrived registers fn. The pool adds its own reference to the
// handler object; ours is dropped when the handler is removed.
func (p *framePool) AddFrameArrived(fn capture.FrameArrivedHandler) (capture.EventToken, error) {
	const op = "Direct3D11CaptureFramePool::add_FrameArrived"
	ptr, err := p.acquire(op)
	defer p.life.RUnlock()
	if err != nil {
		return 0, err
	}

	h := newFrameArrivedHandler(p, fn)
	var token int64
	err = comCall(op, ptr, framePoolAddFrameArrived,
		h.comPtr(),
		uintptr(unsafe.Pointer(&token)),
	)
	if err != nil {
		h.release()
		return 0, err
	}

	p.mu.Lock()
	if p.handlers == nil {
		p.handlers = make(map[capture.EventToken]*frameArrivedHandler)
	}
	p.handlers[capture.EventToken(token)] = h
	p.mu.Unlock()
	return capture.EventToken(token), nil
}

// RemoveFrameArrived unregisters the handler for token. Our reference is
// dropped even when the pool is already closed.
func (p *framePool) RemoveFrameArrived(token capture.EventToken) error {
	const op = "Direct3D11CaptureFramePool::remove_FrameArrived"
	ptr, err := p.acquire(op)
	if err == nil {
		err = comCall(op, ptr, framePoolRemoveFrameArrived, int64Args(int64(token))...)
	}
	p.life.RUnlock()

	p.mu.Lock()
	h := p.handlers[token]
	delete(p.handlers, token)
	p.mu.Unlock()
	if h != nil {
		h.release()
	}
	return err
}

// TryGetNextFrame returns nil, nil when the pool holds no frame.
func (p *framePool) TryGetNextFrame() (capture.Frame, error) {
	const op = "Direct3D11CaptureFramePool::TryGetNextFrame"
	ptr, err := p.acquire(op)
	defer p.life.RUnlock()
	if err != nil {
		return nil, err
	}

	var f uintptr
	if err := comCall(op, ptr, framePoolTryGetNextFrame,
		uintptr(unsafe.Pointer(&f)),
	); err != nil {
		return nil, err
	}
	if f == 0 {
		return nil, nil
	}
	return &frame{ptr: f}, nil
}

func (p *framePool) Close() error {
	p.life.Lock()
	if p.closed {
		p.life.Unlock()
		return nil
	}
	p.closed = true
	ptr := p.ptr
	p.ptr = 0
	p.life.Unlock()

	err := winrtClose("Direct3D11CaptureFramePool::Close", ptr)
	comRelease(ptr)
	return err
}

// graphicsSession wraps an IGraphicsCaptureSession.
type graphicsSession struct {
	ptr  uintptr
	once sync.Once
}

func (s *graphicsSession) StartCapture() error {
	return comCall("GraphicsCaptureSession::StartCapture", s.ptr, sessionStartCapture)
}

func (s *graphicsSession) Close() error {
	var err error
	s.once.Do(func() {
		err = winrtClose("GraphicsCaptureSession::Close", s.ptr)
		comRelease(s.ptr)
	})
	return err
}

// frame wraps an IDirect3D11CaptureFrame.
type frame struct {
	ptr  uintptr
	once sync.Once
}

func (f *frame) Surface() (capture.Surface, error) {
	var sf uintptr
	if err := comCall("Direct3D11CaptureFrame::get_Surface", f.ptr, frameGetSurface,
		uintptr(unsafe.Pointer(&sf)),
	); err != nil {
		return nil, err
	}
	return &surface{ptr: sf}, nil
}

func (f *frame) Close() error {
	var err error
	f.once.Do(func() {
		err = winrtClose("Direct3D11CaptureFrame::Close", f.ptr)
		comRelease(f.ptr)
	})
	return err
}

// surface wraps an IDirect3DSurface.
type surface struct {
	ptr  uintptr
	once sync.Once
}

func (s *surface) Close() error {
	var err error
	s.once.Do(func() {
		err = winrtClose("IDirect3DSurface::Close", s.ptr)
		comRelease(s.ptr)
	})
	return err
}
