//go:build windows

package d3d

import (
	"errors"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"

	"github.com/breeze-rmm/wgcapture/pkg/capture"
)

// COM vtable calling infrastructure. Interface pointers are raw uintptrs;
// methods are called by vtable index with syscall.SyscallN.
//
// IUnknown:    0=QueryInterface, 1=AddRef, 2=Release
// IInspectable: 3=GetIids, 4=GetRuntimeClassName, 5=GetTrustLevel
// WinRT interface methods therefore start at index 6.

const (
	vtblQueryInterface = 0
	vtblAddRef         = 1
	vtblRelease        = 2

	vtblClosableClose = 6 // IClosable::Close

	hrOK       = 0
	hrFalse    = 1
	hrENoIface = 0x80004002 // E_NOINTERFACE
	hrEPointer = 0x80004003 // E_POINTER
	hrEFail    = 0x80004005 // E_FAIL
	roEClosed  = 0x80000013 // RO_E_CLOSED

	rpcEChangedMode = 0x80010106
)

// comVtblFn resolves a COM vtable function pointer by index.
func comVtblFn(obj uintptr, idx int) uintptr {
	vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
	return *(*uintptr)(unsafe.Pointer(vtablePtr + uintptr(idx)*unsafe.Sizeof(uintptr(0))))
}

// comCall invokes the COM method at vtableIdx on obj and converts a failed
// HRESULT into a *capture.PlatformError attributed to op.
func comCall(op string, obj uintptr, vtableIdx int, args ...uintptr) error {
	if obj == 0 {
		return capture.NewPlatformError(op, hrEPointer)
	}
	all := make([]uintptr, 0, 1+len(args))
	all = append(all, obj)
	all = append(all, args...)
	hr, _, _ := syscall.SyscallN(comVtblFn(obj, vtableIdx), all...)
	if int32(hr) < 0 {
		return capture.NewPlatformError(op, uint32(hr))
	}
	return nil
}

// comVoid invokes a COM method that returns nothing.
func comVoid(obj uintptr, vtableIdx int, args ...uintptr) {
	all := make([]uintptr, 0, 1+len(args))
	all = append(all, obj)
	all = append(all, args...)
	syscall.SyscallN(comVtblFn(obj, vtableIdx), all...)
}

// comQuery calls IUnknown::QueryInterface.
func comQuery(op string, obj uintptr, iid *ole.GUID) (uintptr, error) {
	var out uintptr
	if err := comCall(op, obj, vtblQueryInterface,
		uintptr(unsafe.Pointer(iid)),
		uintptr(unsafe.Pointer(&out)),
	); err != nil {
		return 0, err
	}
	return out, nil
}

// comRelease calls IUnknown::Release.
func comRelease(obj uintptr) {
	if obj != 0 {
		syscall.SyscallN(comVtblFn(obj, vtblRelease), obj)
	}
}

// winrtClose calls IClosable::Close on a WinRT object.
func winrtClose(op string, obj uintptr) error {
	if obj == 0 {
		return nil
	}
	closable, err := comQuery(op, obj, iidIClosable)
	if err != nil {
		return err
	}
	defer comRelease(closable)
	return comCall(op, closable, vtblClosableClose)
}

// roInitialize joins the multithreaded apartment. An apartment that is
// already initialized, in either model, is accepted.
func roInitialize() error {
	err := ole.RoInitialize(1) // RO_INIT_MULTITHREADED
	if err == nil {
		return nil
	}
	if oleErr, ok := err.(*ole.OleError); ok {
		switch uint32(oleErr.Code()) {
		case hrFalse, rpcEChangedMode:
			return nil
		}
		return capture.NewPlatformError("RoInitialize", uint32(oleErr.Code()))
	}
	return &capture.PlatformError{Op: "RoInitialize", Err: err}
}

// hresultOf maps a handler error onto the HRESULT returned to WinRT.
func hresultOf(err error) uintptr {
	if err == nil {
		return hrOK
	}
	var pe *capture.PlatformError
	if errors.As(err, &pe) && pe.Code != 0 {
		return uintptr(pe.Code)
	}
	return hrEFail
}

// sizeArgs passes a SizeInt32 by value: one register on 64-bit targets,
// two stack slots on 386.
func sizeArgs(size capture.Size) []uintptr {
	if unsafe.Sizeof(uintptr(0)) == 8 {
		return []uintptr{uintptr(uint64(uint32(size.Width)) | uint64(uint32(size.Height))<<32)}
	}
	return []uintptr{uintptr(uint32(size.Width)), uintptr(uint32(size.Height))}
}

// int64Args passes an int64 by value.
func int64Args(v int64) []uintptr {
	if unsafe.Sizeof(uintptr(0)) == 8 {
		return []uintptr{uintptr(v)}
	}
	return []uintptr{uintptr(uint32(v)), uintptr(uint32(uint64(v) >> 32))}
}
