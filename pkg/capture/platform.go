// Package capture streams Windows.Graphics.Capture frames as Direct3D 11
// textures and reads them back to CPU memory.
package capture

import "strconv"

// PixelFormat is a DXGI_FORMAT value.
type PixelFormat uint32

// Usage is a D3D11_USAGE value.
type Usage uint32

// D3D11/DXGI values the core depends on.
const (
	// PixelFormatB8G8R8A8UNorm is DXGI_FORMAT_B8G8R8A8_UNORM, the only
	// format the frame pool is created with and the readback path accepts.
	PixelFormatB8G8R8A8UNorm PixelFormat = 87

	UsageDefault   Usage = 0
	UsageImmutable Usage = 1
	UsageDynamic   Usage = 2
	UsageStaging   Usage = 3

	CPUAccessWrite uint32 = 0x10000
	CPUAccessRead  uint32 = 0x20000

	// BytesPerPixel is the size of one B8G8R8A8 pixel.
	BytesPerPixel = 4

	// FramePoolBuffers is the number of buffers the frame pool holds.
	FramePoolBuffers = 1
)

func (f PixelFormat) String() string {
	if f == PixelFormatB8G8R8A8UNorm {
		return "B8G8R8A8_UNORM"
	}
	return "DXGI_FORMAT(" + strconv.FormatUint(uint64(f), 10) + ")"
}

func (u Usage) String() string {
	switch u {
	case UsageDefault:
		return "DEFAULT"
	case UsageImmutable:
		return "IMMUTABLE"
	case UsageDynamic:
		return "DYNAMIC"
	case UsageStaging:
		return "STAGING"
	}
	return "USAGE(" + strconv.FormatUint(uint64(u), 10) + ")"
}

// Size is the pixel size of a capture item (Windows.Graphics.SizeInt32).
type Size struct {
	Width  int32
	Height int32
}

// TextureDesc mirrors D3D11_TEXTURE2D_DESC.
type TextureDesc struct {
	Width         uint32
	Height        uint32
	MipLevels     uint32
	ArraySize     uint32
	Format        PixelFormat
	SampleCount   uint32
	SampleQuality uint32
	Usage         Usage
	BindFlags     uint32
	CPUAccess     uint32
	MiscFlags     uint32
}

// Staged reports whether the texture can be mapped for CPU reads.
func (d TextureDesc) Staged() bool {
	return d.Usage == UsageStaging && d.CPUAccess&CPUAccessRead != 0
}

// Mapped is a texture subresource mapped for reading. Data starts at the
// first byte of row 0 and spans at least RowPitch*(Height-1)+Width*4 bytes.
type Mapped struct {
	Data     []byte
	RowPitch uint32
}

// Texture is a GPU texture handle (ID3D11Texture2D).
// Release drops the holder's reference; the handle must not be used after.
type Texture interface {
	Desc() TextureDesc
	Release()
}

// Surface is the compositor surface backing a captured frame
// (IDirect3DSurface).
type Surface interface {
	Close() error
}

// Frame is one captured frame (Direct3D11CaptureFrame). Closing it returns
// its buffer to the frame pool.
type Frame interface {
	Surface() (Surface, error)
	Close() error
}

// EventToken identifies a registered frame-arrived handler.
type EventToken int64

// FrameArrivedHandler runs on a platform-owned thread each time the pool has
// a new frame. A returned error is reported back to the platform.
type FrameArrivedHandler func(pool FramePool) error

// FramePool is a free-threaded Direct3D11CaptureFramePool.
type FramePool interface {
	CreateCaptureSession(item CaptureItem) (GraphicsSession, error)
	AddFrameArrived(handler FrameArrivedHandler) (EventToken, error)
	RemoveFrameArrived(token EventToken) error
	// TryGetNextFrame returns nil, nil when no frame is pending.
	TryGetNextFrame() (Frame, error)
	Close() error
}

// GraphicsSession is a GraphicsCaptureSession bound to a pool and an item.
type GraphicsSession interface {
	StartCapture() error
	Close() error
}

// CaptureItem is the display or window the platform streams frames from.
type CaptureItem interface {
	Size() (Size, error)
}

// DeviceContext is the device's immediate context (ID3D11DeviceContext).
type DeviceContext interface {
	// Map maps subresource 0 of tex for reading.
	Map(tex Texture) (Mapped, error)
	Unmap(tex Texture)
	CopyResource(dst, src Texture)
	Release()
}

// Device supplies the GPU device, its capturable item and the frame pool
// factory. Sessions share it by reference and never mutate it.
type Device interface {
	ImmediateContext() (DeviceContext, error)
	Item() CaptureItem
	CreateFreeThreadedFramePool(format PixelFormat, buffers int, size Size) (FramePool, error)
	// FromSurface extracts the texture behind a frame surface. The returned
	// texture holds its own reference.
	FromSurface(surface Surface) (Texture, error)
	CreateTexture2D(desc TextureDesc) (Texture, error)
}
