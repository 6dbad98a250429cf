//go:build windows

package d3d

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"

	"github.com/breeze-rmm/wgcapture/pkg/capture"
)

// frameArrivedHandler is a Go-implemented COM object for
// TypedEventHandler<Direct3D11CaptureFramePool, IInspectable>. The vtable
// pointer must stay the first field.
type frameArrivedHandler struct {
	vtbl *handlerVtbl
	refs atomic.Int32
	pool *framePool
	fn   capture.FrameArrivedHandler
}

type handlerVtbl struct {
	QueryInterface uintptr
	AddRef         uintptr
	Release        uintptr
	Invoke         uintptr
}

var (
	vtblOnce     sync.Once
	sharedVtbl   *handlerVtbl
	liveHandlers sync.Map // uintptr -> *frameArrivedHandler while COM holds a reference
)

func handlerVtable() *handlerVtbl {
	vtblOnce.Do(func() {
		sharedVtbl = &handlerVtbl{
			QueryInterface: windows.NewCallback(handlerQueryInterface),
			AddRef:         windows.NewCallback(handlerAddRef),
			Release:        windows.NewCallback(handlerRelease),
			Invoke:         windows.NewCallback(handlerInvoke),
		}
	})
	return sharedVtbl
}

func newFrameArrivedHandler(pool *framePool, fn capture.FrameArrivedHandler) *frameArrivedHandler {
	h := &frameArrivedHandler{vtbl: handlerVtable(), pool: pool, fn: fn}
	h.refs.Store(1)
	liveHandlers.Store(h.comPtr(), h)
	return h
}

func (h *frameArrivedHandler) comPtr() uintptr {
	return uintptr(unsafe.Pointer(h))
}

// release drops the reference held by the Go side.
func (h *frameArrivedHandler) release() {
	handlerRelease(h.comPtr())
}

func lookupHandler(this uintptr) *frameArrivedHandler {
	v, ok := liveHandlers.Load(this)
	if !ok {
		return nil
	}
	return v.(*frameArrivedHandler)
}

func handlerQueryInterface(this, riid, ppv uintptr) uintptr {
	if ppv == 0 {
		return hrEPointer
	}
	out := (*uintptr)(unsafe.Pointer(ppv))
	iid := (*ole.GUID)(unsafe.Pointer(riid))
	if ole.IsEqualGUID(iid, iidIUnknown) ||
		ole.IsEqualGUID(iid, iidIAgileObject) ||
		ole.IsEqualGUID(iid, iidFrameArrivedHandler) {
		*out = this
		handlerAddRef(this)
		return hrOK
	}
	*out = 0
	return hrENoIface
}

func handlerAddRef(this uintptr) uintptr {
	h := lookupHandler(this)
	if h == nil {
		return 0
	}
	return uintptr(h.refs.Add(1))
}

func handlerRelease(this uintptr) uintptr {
	h := lookupHandler(this)
	if h == nil {
		return 0
	}
	n := h.refs.Add(-1)
	if n == 0 {
		liveHandlers.Delete(this)
	}
	return uintptr(n)
}

// handlerInvoke runs on a WinRT worker thread for each arrived frame. The
// sender is always the pool the handler was registered on.
func handlerInvoke(this, sender, args uintptr) uintptr {
	h := lookupHandler(this)
	if h == nil || h.fn == nil {
		return hrEPointer
	}
	return hresultOf(h.fn(h.pool))
}
