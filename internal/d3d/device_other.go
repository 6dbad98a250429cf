//go:build !windows

package d3d

import (
	"github.com/breeze-rmm/wgcapture/internal/target"
	"github.com/breeze-rmm/wgcapture/pkg/capture"
)

// Device is unavailable off Windows; Open always fails.
type Device struct{}

// Open returns ErrNotSupported on platforms without Windows.Graphics.Capture.
func Open(target.Target) (*Device, error) {
	return nil, ErrNotSupported
}

// Close is a no-op.
func (d *Device) Close() error { return nil }

func (d *Device) ImmediateContext() (capture.DeviceContext, error) { return nil, ErrNotSupported }

func (d *Device) Item() capture.CaptureItem { return nil }

func (d *Device) CreateFreeThreadedFramePool(capture.PixelFormat, int, capture.Size) (capture.FramePool, error) {
	return nil, ErrNotSupported
}

func (d *Device) FromSurface(capture.Surface) (capture.Texture, error) { return nil, ErrNotSupported }

func (d *Device) CreateTexture2D(capture.TextureDesc) (capture.Texture, error) {
	return nil, ErrNotSupported
}
