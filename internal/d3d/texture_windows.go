//go:build windows

package d3d

import (
	"sync/atomic"
	"unsafe"

	"github.com/breeze-rmm/wgcapture/pkg/capture"
)

// texture is an ID3D11Texture2D reference. Release is idempotent.
type texture struct {
	ptr      uintptr
	released atomic.Bool
}

func (t *texture) Desc() capture.TextureDesc {
	var raw d3d11Texture2DDesc
	if t.ptr != 0 && !t.released.Load() {
		comVoid(t.ptr, d3d11Texture2DGetDesc, uintptr(unsafe.Pointer(&raw)))
	}
	return fromRawDesc(raw)
}

func (t *texture) Release() {
	if t.released.CompareAndSwap(false, true) {
		comRelease(t.ptr)
	}
}

func toRawDesc(d capture.TextureDesc) d3d11Texture2DDesc {
	return d3d11Texture2DDesc{
		Width:          d.Width,
		Height:         d.Height,
		MipLevels:      d.MipLevels,
		ArraySize:      d.ArraySize,
		Format:         uint32(d.Format),
		SampleCount:    d.SampleCount,
		SampleQuality:  d.SampleQuality,
		Usage:          uint32(d.Usage),
		BindFlags:      d.BindFlags,
		CPUAccessFlags: d.CPUAccess,
		MiscFlags:      d.MiscFlags,
	}
}

func fromRawDesc(r d3d11Texture2DDesc) capture.TextureDesc {
	return capture.TextureDesc{
		Width:         r.Width,
		Height:        r.Height,
		MipLevels:     r.MipLevels,
		ArraySize:     r.ArraySize,
		Format:        capture.PixelFormat(r.Format),
		SampleCount:   r.SampleCount,
		SampleQuality: r.SampleQuality,
		Usage:         capture.Usage(r.Usage),
		BindFlags:     r.BindFlags,
		CPUAccess:     r.CPUAccessFlags,
		MiscFlags:     r.MiscFlags,
	}
}

// deviceContext wraps an ID3D11DeviceContext. It is not safe for concurrent
// use; capture.Stager serializes access.
type deviceContext struct {
	ptr      uintptr
	released atomic.Bool
}

// Map maps subresource 0 of tex for reading. The returned slice covers
// rowPitch*(height-1) + width*4 bytes and is valid until Unmap.
func (c *deviceContext) Map(tex capture.Texture) (capture.Mapped, error) {
	t, ok := tex.(*texture)
	if !ok || t.ptr == 0 {
		return capture.Mapped{}, capture.NewPlatformError("ID3D11DeviceContext::Map", hrEPointer)
	}
	var mapped d3d11MappedSubresource
	if err := comCall("ID3D11DeviceContext::Map", c.ptr, d3d11CtxMap,
		t.ptr,
		0, // Subresource
		uintptr(d3d11MapRead),
		0, // MapFlags
		uintptr(unsafe.Pointer(&mapped)),
	); err != nil {
		return capture.Mapped{}, err
	}
	if mapped.PData == 0 {
		comVoid(c.ptr, d3d11CtxUnmap, t.ptr, 0)
		return capture.Mapped{}, capture.NewPlatformError("ID3D11DeviceContext::Map", hrEPointer)
	}

	desc := t.Desc()
	length := 0
	if desc.Height > 0 {
		length = int(mapped.RowPitch)*int(desc.Height-1) + int(desc.Width)*capture.BytesPerPixel
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(mapped.PData)), length)
	return capture.Mapped{Data: data, RowPitch: mapped.RowPitch}, nil
}

func (c *deviceContext) Unmap(tex capture.Texture) {
	if t, ok := tex.(*texture); ok && t.ptr != 0 {
		comVoid(c.ptr, d3d11CtxUnmap, t.ptr, 0)
	}
}

func (c *deviceContext) CopyResource(dst, src capture.Texture) {
	d, ok1 := dst.(*texture)
	s, ok2 := src.(*texture)
	if !ok1 || !ok2 || d.ptr == 0 || s.ptr == 0 {
		return
	}
	comVoid(c.ptr, d3d11CtxCopyResource, d.ptr, s.ptr)
}

func (c *deviceContext) Release() {
	if c.released.CompareAndSwap(false, true) {
		comRelease(c.ptr)
	}
}
