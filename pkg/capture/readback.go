package capture

import (
	"fmt"
	"math"
	"sync"
)

// ReadBack copies a staged B8G8R8A8 texture into a tightly packed CPU
// buffer. The texture is borrowed: it is mapped through ctx, copied row
// by row honoring the row pitch, and unmapped before ReadBack returns.
func ReadBack(ctx DeviceContext, tex Texture) (RawFrameData, error) {
	if tex == nil {
		return RawFrameData{}, ErrNoTexture
	}

	desc := tex.Desc()
	if desc.Usage != UsageStaging {
		return RawFrameData{}, ErrUnsupportedBufferType
	}
	if desc.CPUAccess&CPUAccessRead == 0 {
		return RawFrameData{}, ErrDeniedAccessCPURead
	}
	if desc.Format != PixelFormatB8G8R8A8UNorm {
		return RawFrameData{}, &PixelFormatError{Format: desc.Format}
	}

	mapped, err := ctx.Map(tex)
	if err != nil {
		return RawFrameData{}, platformError("map staging texture", err)
	}
	defer ctx.Unmap(tex)

	if desc.Width > math.MaxInt32 || desc.Height > math.MaxInt32 {
		return RawFrameData{}, &PlatformError{
			Op:  "map staging texture",
			Err: fmt.Errorf("%w: %dx%d exceeds frame size limits", ErrMappedRange, desc.Width, desc.Height),
		}
	}

	width := int(desc.Width)
	height := int(desc.Height)
	rowBytes := width * BytesPerPixel
	rowPitch := int(mapped.RowPitch)

	if height > 0 {
		if rowPitch < rowBytes {
			return RawFrameData{}, &PlatformError{
				Op:  "map staging texture",
				Err: fmt.Errorf("%w: row pitch %d below row size %d", ErrMappedRange, rowPitch, rowBytes),
			}
		}
		if need := rowPitch*(height-1) + rowBytes; len(mapped.Data) < need {
			return RawFrameData{}, &PlatformError{
				Op:  "map staging texture",
				Err: fmt.Errorf("%w: have %d bytes, need %d", ErrMappedRange, len(mapped.Data), need),
			}
		}
	}

	data := make([]byte, rowBytes*height)
	if rowPitch == rowBytes {
		copy(data, mapped.Data[:len(data)])
	} else {
		for y := 0; y < height; y++ {
			src := mapped.Data[y*rowPitch : y*rowPitch+rowBytes]
			copy(data[y*rowBytes:], src)
		}
	}

	return RawFrameData{
		Width:  int32(desc.Width),
		Height: int32(desc.Height),
		Data:   data,
	}, nil
}

// StagingDesc returns the descriptor of a CPU-readable copy of src.
func StagingDesc(src TextureDesc) TextureDesc {
	return TextureDesc{
		Width:       src.Width,
		Height:      src.Height,
		MipLevels:   1,
		ArraySize:   1,
		Format:      src.Format,
		SampleCount: 1,
		Usage:       UsageStaging,
		CPUAccess:   CPUAccessRead,
	}
}

// Stager copies GPU-only textures into a persistent staging texture and
// reads them back. The staging texture is recreated when the source size or
// format changes. All immediate-context calls are serialized through the
// Stager, since ID3D11DeviceContext is not safe for concurrent use.
type Stager struct {
	mu      sync.Mutex
	device  Device
	ctx     DeviceContext
	staging Texture
	desc    TextureDesc
	closed  bool
}

// NewStager returns a Stager that creates textures on device and copies
// through ctx.
func NewStager(device Device, ctx DeviceContext) *Stager {
	return &Stager{device: device, ctx: ctx}
}

// ReadBack reads tex directly, without staging it first.
func (s *Stager) ReadBack(tex Texture) (RawFrameData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return RawFrameData{}, ErrNotActive
	}
	return ReadBack(s.ctx, tex)
}

// ReadFrame reads tex back, copying it into the staging texture first when
// it is not CPU-readable. tex stays owned by the caller.
func (s *Stager) ReadFrame(tex Texture) (RawFrameData, error) {
	if tex == nil {
		return RawFrameData{}, ErrNoTexture
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return RawFrameData{}, ErrNotActive
	}

	src := tex.Desc()
	if src.Staged() {
		return ReadBack(s.ctx, tex)
	}
	if src.Format != PixelFormatB8G8R8A8UNorm {
		return RawFrameData{}, &PixelFormatError{Format: src.Format}
	}

	staging, err := s.stagingFor(src)
	if err != nil {
		return RawFrameData{}, err
	}
	s.ctx.CopyResource(staging, tex)
	return ReadBack(s.ctx, staging)
}

// stagingFor returns a staging texture matching src. Caller must hold s.mu.
func (s *Stager) stagingFor(src TextureDesc) (Texture, error) {
	want := StagingDesc(src)
	if s.staging != nil && s.desc == want {
		return s.staging, nil
	}
	if s.staging != nil {
		s.staging.Release()
		s.staging = nil
	}

	tex, err := s.device.CreateTexture2D(want)
	if err != nil {
		return nil, platformError("create staging texture", err)
	}
	log.Debug("staging texture created",
		"width", want.Width, "height", want.Height, "format", want.Format.String())
	s.staging = tex
	s.desc = want
	return tex, nil
}

// Close drops the cached staging texture. Reads fail with ErrNotActive
// afterwards, so the caller may release the context once Close returns.
func (s *Stager) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.staging != nil {
		s.staging.Release()
		s.staging = nil
	}
}
