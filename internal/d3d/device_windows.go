//go:build windows

package d3d

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"

	"github.com/breeze-rmm/wgcapture/internal/target"
	"github.com/breeze-rmm/wgcapture/pkg/capture"
)

// Device owns a hardware D3D11 device, its WinRT IDirect3DDevice wrapper and
// the capture item for one target. It implements capture.Device.
type Device struct {
	mu          sync.Mutex
	d3dDevice   uintptr // ID3D11Device
	winrtDevice uintptr // IDirect3DDevice
	item        *captureItem
	target      target.Target
}

// Open creates a BGRA-capable hardware device and a capture item for tgt.
func Open(tgt target.Target) (*Device, error) {
	if err := procCreateDirect3D11DeviceFromDXGIDevice.Find(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSupported, err)
	}
	if err := roInitialize(); err != nil {
		return nil, err
	}

	d := &Device{target: tgt}

	featureLevel := uint32(d3dFeatureLevel11_0)
	var actualLevel uint32
	hr, _, _ := procD3D11CreateDevice.Call(
		0,                                      // pAdapter (NULL = default)
		uintptr(d3dDriverTypeHardware),         // DriverType
		0,                                      // Software
		uintptr(d3d11CreateDeviceBGRASupport),  // Flags
		uintptr(unsafe.Pointer(&featureLevel)), // pFeatureLevels
		1,                                      // FeatureLevels count
		uintptr(d3d11SDKVersion),               // SDKVersion
		uintptr(unsafe.Pointer(&d.d3dDevice)),  // ppDevice
		uintptr(unsafe.Pointer(&actualLevel)),  // pFeatureLevel
		0,                                      // ppImmediateContext, fetched per session
	)
	if int32(hr) < 0 {
		return nil, capture.NewPlatformError("D3D11CreateDevice", uint32(hr))
	}

	winrtDevice, err := createWinRTDevice(d.d3dDevice)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.winrtDevice = winrtDevice

	item, err := createCaptureItem(tgt)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.item = item

	size, _ := item.Size()
	log.Info("capture device opened",
		"target", tgt.String(), "featureLevel", fmt.Sprintf("0x%X", actualLevel),
		"width", size.Width, "height", size.Height)
	return d, nil
}

// createWinRTDevice wraps an ID3D11Device as a WinRT IDirect3DDevice.
func createWinRTDevice(d3dDevice uintptr) (uintptr, error) {
	dxgiDevice, err := comQuery("QueryInterface IDXGIDevice", d3dDevice, iidIDXGIDevice)
	if err != nil {
		return 0, err
	}
	defer comRelease(dxgiDevice)

	var inspectable uintptr
	hr, _, _ := procCreateDirect3D11DeviceFromDXGIDevice.Call(
		dxgiDevice,
		uintptr(unsafe.Pointer(&inspectable)),
	)
	if int32(hr) < 0 {
		return 0, capture.NewPlatformError("CreateDirect3D11DeviceFromDXGIDevice", uint32(hr))
	}
	defer comRelease(inspectable)

	return comQuery("QueryInterface IDirect3DDevice", inspectable, iidIDirect3DDevice)
}

func createCaptureItem(tgt target.Target) (*captureItem, error) {
	factory, err := ole.RoGetActivationFactory(classGraphicsCaptureItem, iidIGraphicsCaptureItemInterop)
	if err != nil {
		return nil, &capture.PlatformError{Op: "activate GraphicsCaptureItem interop", Err: err}
	}
	interop := uintptr(unsafe.Pointer(factory))
	defer comRelease(interop)

	var item uintptr
	switch tgt.Kind {
	case target.Window:
		if ok, _, _ := procIsWindow.Call(tgt.Window); ok == 0 {
			return nil, fmt.Errorf("%w: window 0x%X", ErrTargetNotFound, tgt.Window)
		}
		err = comCall("IGraphicsCaptureItemInterop::CreateForWindow", interop, itemInteropCreateForWindow,
			tgt.Window,
			uintptr(unsafe.Pointer(iidIGraphicsCaptureItem)),
			uintptr(unsafe.Pointer(&item)),
		)
	default:
		monitor, merr := findMonitor(tgt)
		if merr != nil {
			return nil, merr
		}
		err = comCall("IGraphicsCaptureItemInterop::CreateForMonitor", interop, itemInteropCreateForMonitor,
			monitor,
			uintptr(unsafe.Pointer(iidIGraphicsCaptureItem)),
			uintptr(unsafe.Pointer(&item)),
		)
	}
	if err != nil {
		return nil, err
	}
	return &captureItem{ptr: item}, nil
}

type monitorEntry struct {
	handle  uintptr
	primary bool
}

// findMonitor resolves the primary monitor or a monitor by enumeration order.
func findMonitor(tgt target.Target) (uintptr, error) {
	var monitors []monitorEntry
	cb := windows.NewCallback(func(hmon, hdc, lprc, lparam uintptr) uintptr {
		info := monitorInfo{CbSize: uint32(unsafe.Sizeof(monitorInfo{}))}
		procGetMonitorInfoW.Call(hmon, uintptr(unsafe.Pointer(&info)))
		monitors = append(monitors, monitorEntry{handle: hmon, primary: info.DwFlags&monitorInfoPrimary != 0})
		return 1 // continue enumeration
	})
	if ok, _, err := procEnumDisplayMonitors.Call(0, 0, cb, 0); ok == 0 {
		return 0, &capture.PlatformError{Op: "EnumDisplayMonitors", Err: err}
	}

	if tgt.Kind == target.Monitor {
		if tgt.Monitor >= len(monitors) {
			return 0, fmt.Errorf("%w: monitor %d of %d", ErrTargetNotFound, tgt.Monitor, len(monitors))
		}
		return monitors[tgt.Monitor].handle, nil
	}
	for _, m := range monitors {
		if m.primary {
			return m.handle, nil
		}
	}
	if len(monitors) > 0 {
		return monitors[0].handle, nil
	}
	return 0, fmt.Errorf("%w: no monitors", ErrTargetNotFound)
}

// Close releases the capture item and both device references. Sessions
// created on the device must be closed first.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.item != nil {
		comRelease(d.item.ptr)
		d.item = nil
	}
	if d.winrtDevice != 0 {
		comRelease(d.winrtDevice)
		d.winrtDevice = 0
	}
	if d.d3dDevice != 0 {
		comRelease(d.d3dDevice)
		d.d3dDevice = 0
	}
	return nil
}

// ImmediateContext returns a new reference to the device's immediate context.
func (d *Device) ImmediateContext() (capture.DeviceContext, error) {
	if d.d3dDevice == 0 {
		return nil, capture.NewPlatformError("ID3D11Device::GetImmediateContext", hrEPointer)
	}
	var ctx uintptr
	comVoid(d.d3dDevice, d3d11DeviceGetImmediateContext, uintptr(unsafe.Pointer(&ctx)))
	if ctx == 0 {
		return nil, capture.NewPlatformError("ID3D11Device::GetImmediateContext", hrEPointer)
	}
	return &deviceContext{ptr: ctx}, nil
}

// Item returns the capture item the device was opened for.
func (d *Device) Item() capture.CaptureItem {
	return d.item
}

// CreateFreeThreadedFramePool creates a Direct3D11CaptureFramePool whose
// FrameArrived events fire on a WinRT worker thread.
func (d *Device) CreateFreeThreadedFramePool(format capture.PixelFormat, buffers int, size capture.Size) (capture.FramePool, error) {
	factory, err := ole.RoGetActivationFactory(classFramePool, iidIFramePoolStatics2)
	if err != nil {
		return nil, &capture.PlatformError{Op: "activate Direct3D11CaptureFramePool statics", Err: err}
	}
	statics := uintptr(unsafe.Pointer(factory))
	defer comRelease(statics)

	var pool uintptr
	args := []uintptr{d.winrtDevice, uintptr(format), uintptr(int32(buffers))}
	args = append(args, sizeArgs(size)...)
	args = append(args, uintptr(unsafe.Pointer(&pool)))
	if err := comCall("Direct3D11CaptureFramePool::CreateFreeThreaded", statics, framePoolStaticsCreateFreeThreaded, args...); err != nil {
		return nil, err
	}
	return &framePool{ptr: pool}, nil
}

// FromSurface extracts the ID3D11Texture2D behind a frame surface.
func (d *Device) FromSurface(s capture.Surface) (capture.Texture, error) {
	sf, ok := s.(*surface)
	if !ok || sf.ptr == 0 {
		return nil, capture.NewPlatformError("texture from surface", hrEPointer)
	}
	access, err := comQuery("QueryInterface IDirect3DDxgiInterfaceAccess", sf.ptr, iidIDirect3DDxgiInterfaceAccess)
	if err != nil {
		return nil, err
	}
	defer comRelease(access)

	var tex uintptr
	if err := comCall("IDirect3DDxgiInterfaceAccess::GetInterface", access, dxgiInterfaceAccessGetInterface,
		uintptr(unsafe.Pointer(iidID3D11Texture2D)),
		uintptr(unsafe.Pointer(&tex)),
	); err != nil {
		return nil, err
	}
	return &texture{ptr: tex}, nil
}

// CreateTexture2D creates a texture without initial data.
func (d *Device) CreateTexture2D(desc capture.TextureDesc) (capture.Texture, error) {
	raw := toRawDesc(desc)
	var tex uintptr
	if err := comCall("ID3D11Device::CreateTexture2D", d.d3dDevice, d3d11DeviceCreateTexture2D,
		uintptr(unsafe.Pointer(&raw)),
		0, // pInitialData
		uintptr(unsafe.Pointer(&tex)),
	); err != nil {
		return nil, err
	}
	return &texture{ptr: tex}, nil
}

// captureItem is an IGraphicsCaptureItem owned by the Device.
type captureItem struct {
	ptr uintptr
}

func (it *captureItem) Size() (capture.Size, error) {
	var size sizeInt32
	if err := comCall("IGraphicsCaptureItem::get_Size", it.ptr, itemGetSize,
		uintptr(unsafe.Pointer(&size)),
	); err != nil {
		return capture.Size{}, err
	}
	return capture.Size{Width: size.Width, Height: size.Height}, nil
}
