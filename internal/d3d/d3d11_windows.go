//go:build windows

package d3d

import (
	"github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"
)

// DLL procs
var (
	d3d11DLL  = windows.NewLazySystemDLL("d3d11.dll")
	user32DLL = windows.NewLazySystemDLL("user32.dll")

	procD3D11CreateDevice                    = d3d11DLL.NewProc("D3D11CreateDevice")
	procCreateDirect3D11DeviceFromDXGIDevice = d3d11DLL.NewProc("CreateDirect3D11DeviceFromDXGIDevice")
	procEnumDisplayMonitors                  = user32DLL.NewProc("EnumDisplayMonitors")
	procGetMonitorInfoW                      = user32DLL.NewProc("GetMonitorInfoW")
	procIsWindow                             = user32DLL.NewProc("IsWindow")
)

// D3D11 constants
const (
	d3dDriverTypeHardware = 1
	d3dFeatureLevel11_0   = 0xb000
	d3d11SDKVersion       = 7

	d3d11CreateDeviceBGRASupport = 0x20

	d3d11MapRead = 1

	monitorInfoPrimary = 0x1 // MONITORINFOF_PRIMARY
)

// COM vtable indices
const (
	d3d11DeviceCreateTexture2D      = 5  // ID3D11Device
	d3d11DeviceGetImmediateContext  = 40 // ID3D11Device
	d3d11CtxMap                     = 14 // ID3D11DeviceContext
	d3d11CtxUnmap                   = 15 // ID3D11DeviceContext
	d3d11CtxCopyResource            = 47 // ID3D11DeviceContext
	d3d11Texture2DGetDesc           = 10 // ID3D11Texture2D
	dxgiInterfaceAccessGetInterface = 3  // IDirect3DDxgiInterfaceAccess (IUnknown-based)

	itemInteropCreateForWindow  = 3 // IGraphicsCaptureItemInterop (IUnknown-based)
	itemInteropCreateForMonitor = 4
	itemGetSize                 = 7 // IGraphicsCaptureItem

	framePoolStaticsCreateFreeThreaded = 6 // IDirect3D11CaptureFramePoolStatics2
	framePoolTryGetNextFrame           = 7 // IDirect3D11CaptureFramePool
	framePoolAddFrameArrived           = 8
	framePoolRemoveFrameArrived        = 9
	framePoolCreateCaptureSession      = 10

	sessionStartCapture = 6 // IGraphicsCaptureSession
	frameGetSurface     = 6 // IDirect3D11CaptureFrame
)

// WinRT runtime classes
const (
	classGraphicsCaptureItem = "Windows.Graphics.Capture.GraphicsCaptureItem"
	classFramePool           = "Windows.Graphics.Capture.Direct3D11CaptureFramePool"
)

// Interface IDs
var (
	iidIUnknown                     = ole.NewGUID("{00000000-0000-0000-C000-000000000046}")
	iidIAgileObject                 = ole.NewGUID("{94EA2B94-E9CC-49E0-C0FF-EE64CA8F5B90}")
	iidIDXGIDevice                  = ole.NewGUID("{54EC77FA-1377-44E6-8C32-88FD5F44C84C}")
	iidID3D11Texture2D              = ole.NewGUID("{6F15AAF2-D208-4E89-9AB4-489535D34F9C}")
	iidIDirect3DDevice              = ole.NewGUID("{A37624AB-8D5F-4650-9D3E-9EAE3D9BC670}")
	iidIDirect3DDxgiInterfaceAccess = ole.NewGUID("{A9B3D012-3DF2-4EE3-B8D1-8695F457D3C1}")
	iidIGraphicsCaptureItemInterop  = ole.NewGUID("{3628E81B-3CAC-4C60-B7F4-23CE0E0C3356}")
	iidIGraphicsCaptureItem         = ole.NewGUID("{79C3F95B-31F7-4EC2-A464-632EF5D30760}")
	iidIFramePoolStatics2           = ole.NewGUID("{589B103F-6BBC-5DF5-A991-02E28B3B66D5}")
	iidIClosable                    = ole.NewGUID("{30D5A829-7FA4-4026-83BB-D75BAE4EA99E}")

	// TypedEventHandler<Direct3D11CaptureFramePool, IInspectable>
	iidFrameArrivedHandler = ole.NewGUID("{51A947F7-79CF-5A3E-A3A5-1289CFA6DFE8}")
)

// d3d11Texture2DDesc matches D3D11_TEXTURE2D_DESC (44 bytes).
type d3d11Texture2DDesc struct {
	Width          uint32
	Height         uint32
	MipLevels      uint32
	ArraySize      uint32
	Format         uint32
	SampleCount    uint32 // DXGI_SAMPLE_DESC.Count
	SampleQuality  uint32 // DXGI_SAMPLE_DESC.Quality
	Usage          uint32
	BindFlags      uint32
	CPUAccessFlags uint32
	MiscFlags      uint32
}

// d3d11MappedSubresource matches D3D11_MAPPED_SUBRESOURCE.
type d3d11MappedSubresource struct {
	PData      uintptr
	RowPitch   uint32
	DepthPitch uint32
}

// sizeInt32 matches Windows.Graphics.SizeInt32.
type sizeInt32 struct {
	Width  int32
	Height int32
}

type rect struct {
	Left, Top, Right, Bottom int32
}

// monitorInfo matches MONITORINFO.
type monitorInfo struct {
	CbSize    uint32
	RcMonitor rect
	RcWork    rect
	DwFlags   uint32
}
