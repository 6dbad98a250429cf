package capture

import (
	"errors"
	"fmt"
)

// ErrNotActive is returned by operations on a session that was never
// started or has already been closed.
var ErrNotActive = errors.New("capture is not active")

// ErrNoTexture is returned when no frame texture is available yet.
var ErrNoTexture = errors.New("no texture")

// ErrDeniedAccessCPURead is returned when a staging texture lacks CPU read access.
var ErrDeniedAccessCPURead = errors.New("CPU read access required")

// ErrUnsupportedBufferType is returned when the texture is not a staging resource.
var ErrUnsupportedBufferType = errors.New("unsupported buffer type: must be a staging texture")

// ErrUnsupportedPixelFormat is matched by every *PixelFormatError.
var ErrUnsupportedPixelFormat = errors.New("unsupported pixel format")

// ErrPlatform is matched by every *PlatformError.
var ErrPlatform = errors.New("platform error")

// ErrAdapter is matched by every *AdapterError.
var ErrAdapter = errors.New("adapter error")

// ErrChannelClosed is returned by FrameChannel.Send after Close.
var ErrChannelClosed = errors.New("frame channel closed")

// ErrMappedRange is wrapped in a *PlatformError when a mapped subresource is
// too small for the texture it claims to describe.
var ErrMappedRange = errors.New("mapped range too small")

// PlatformError wraps a failed Direct3D / WinRT call.
type PlatformError struct {
	Op   string
	Code uint32 // HRESULT, 0 when the failure carried none
	Err  error
}

// NewPlatformError builds a PlatformError from a failed HRESULT.
func NewPlatformError(op string, hr uint32) *PlatformError {
	return &PlatformError{Op: op, Code: hr}
}

func (e *PlatformError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: HRESULT 0x%08X", e.Op, e.Code)
}

func (e *PlatformError) Unwrap() error { return e.Err }

func (e *PlatformError) Is(target error) bool { return target == ErrPlatform }

// PixelFormatError reports a texture whose format the readback path cannot copy.
type PixelFormatError struct {
	Format PixelFormat
}

func (e *PixelFormatError) Error() string {
	return fmt.Sprintf("unsupported pixel format %s (%d)", e.Format, uint32(e.Format))
}

func (e *PixelFormatError) Is(target error) bool { return target == ErrUnsupportedPixelFormat }

// AdapterError is returned by output adapters built on RawFrameData.
type AdapterError struct {
	Adapter string
	Msg     string
}

func (e *AdapterError) Error() string {
	return e.Adapter + ": " + e.Msg
}

func (e *AdapterError) Is(target error) bool { return target == ErrAdapter }

// platformError attributes err to op. Errors that already carry a
// PlatformError keep their code.
func platformError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PlatformError
	if errors.As(err, &pe) {
		if pe.Op == op {
			return err
		}
		return &PlatformError{Op: op, Code: pe.Code, Err: err}
	}
	return &PlatformError{Op: op, Err: err}
}
