package capture

import (
	"errors"
	"testing"
)

func TestReadBackStripsRowPadding(t *testing.T) {
	ctx := &fakeContext{}
	tex := stagedTexture(100, 50, 512)

	frame, err := ReadBack(ctx, tex)
	if err != nil {
		t.Fatalf("ReadBack: %v", err)
	}
	if frame.Width != 100 || frame.Height != 50 {
		t.Fatalf("size = %dx%d, want 100x50", frame.Width, frame.Height)
	}
	if len(frame.Data) != 20000 {
		t.Fatalf("len(Data) = %d, want 20000", len(frame.Data))
	}
	for y := 0; y < 50; y++ {
		row := frame.Data[y*400 : (y+1)*400]
		for x, b := range row {
			if b != byte(y) {
				t.Fatalf("row %d byte %d = 0x%02X, want 0x%02X", y, x, b, byte(y))
			}
		}
	}
	if maps, unmaps, _ := ctx.counts(); maps != 1 || unmaps != 1 {
		t.Fatalf("maps=%d unmaps=%d, want 1 and 1", maps, unmaps)
	}
}

func TestReadBackTightPitch(t *testing.T) {
	ctx := &fakeContext{}
	frame, err := ReadBack(ctx, stagedTexture(8, 2, 32))
	if err != nil {
		t.Fatalf("ReadBack: %v", err)
	}
	if !frame.Valid() || len(frame.Data) != 64 {
		t.Fatalf("unexpected frame %dx%d len %d", frame.Width, frame.Height, len(frame.Data))
	}
	if frame.Data[32] != 1 {
		t.Fatalf("second row starts with %d, want 1", frame.Data[32])
	}
}

func TestReadBackReturnsOwnedBuffer(t *testing.T) {
	tex := stagedTexture(2, 2, 8)
	frame, err := ReadBack(&fakeContext{}, tex)
	if err != nil {
		t.Fatalf("ReadBack: %v", err)
	}
	tex.pixels[0] = 0x55
	if frame.Data[0] == 0x55 {
		t.Fatal("frame data aliases the mapped texture")
	}
}

func TestReadBackValidation(t *testing.T) {
	notStaged := gpuTexture(4, 4)

	noCPURead := stagedTexture(4, 4, 16)
	noCPURead.desc.CPUAccess = CPUAccessWrite

	wrongFormat := stagedTexture(4, 4, 16)
	wrongFormat.desc.Format = 28 // R8G8B8A8_UNORM

	// Usage is checked before anything else.
	wrongEverything := gpuTexture(4, 4)
	wrongEverything.desc.Format = 10
	wrongEverything.desc.CPUAccess = 0

	tests := []struct {
		name string
		tex  Texture
		want error
	}{
		{"nil texture", nil, ErrNoTexture},
		{"default usage", notStaged, ErrUnsupportedBufferType},
		{"usage before format", wrongEverything, ErrUnsupportedBufferType},
		{"no cpu read", noCPURead, ErrDeniedAccessCPURead},
		{"wrong format", wrongFormat, ErrUnsupportedPixelFormat},
	}
	for _, tt := range tests {
		ctx := &fakeContext{}
		_, err := ReadBack(ctx, tt.tex)
		if !errors.Is(err, tt.want) {
			t.Fatalf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
		if maps, _, _ := ctx.counts(); maps != 0 {
			t.Fatalf("%s: texture was mapped before validation failed", tt.name)
		}
	}

	var pfe *PixelFormatError
	if _, err := ReadBack(&fakeContext{}, wrongFormat); !errors.As(err, &pfe) || pfe.Format != 28 {
		t.Fatalf("expected *PixelFormatError{28}, got %v", err)
	}
}

func TestReadBackMapFailure(t *testing.T) {
	ctx := &fakeContext{mapErr: NewPlatformError("Map", 0x887A0005)}
	_, err := ReadBack(ctx, stagedTexture(4, 4, 16))

	var pe *PlatformError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PlatformError, got %v", err)
	}
	if pe.Code != 0x887A0005 {
		t.Fatalf("Code = 0x%08X, want 0x887A0005", pe.Code)
	}
	if !errors.Is(err, ErrPlatform) {
		t.Fatal("map failure should match ErrPlatform")
	}
	if _, unmaps, _ := ctx.counts(); unmaps != 0 {
		t.Fatal("Unmap called after a failed Map")
	}
}

func TestReadBackShortMappingUnmaps(t *testing.T) {
	tests := []struct {
		name  string
		pitch uint32
		trim  int
	}{
		{"pitch below row", 12, 0},
		{"truncated data", 16, 3},
	}
	for _, tt := range tests {
		tex := stagedTexture(4, 4, tt.pitch)
		tex.pixels = tex.pixels[:len(tex.pixels)-tt.trim]
		ctx := &fakeContext{}

		_, err := ReadBack(ctx, tex)
		if !errors.Is(err, ErrMappedRange) || !errors.Is(err, ErrPlatform) {
			t.Fatalf("%s: err = %v, want ErrMappedRange platform error", tt.name, err)
		}
		if maps, unmaps, _ := ctx.counts(); maps != 1 || unmaps != 1 {
			t.Fatalf("%s: maps=%d unmaps=%d, want 1 and 1", tt.name, maps, unmaps)
		}
	}
}

func TestReadBackEmptyTexture(t *testing.T) {
	frame, err := ReadBack(&fakeContext{}, stagedTexture(0, 0, 0))
	if err != nil {
		t.Fatalf("ReadBack: %v", err)
	}
	if len(frame.Data) != 0 || !frame.Valid() {
		t.Fatalf("unexpected frame %+v", frame)
	}
}

func TestStagerCopiesAndCaches(t *testing.T) {
	dev := newFakeDevice(8, 4)
	s := NewStager(dev, dev.ctx)

	for i := 0; i < 3; i++ {
		frame, err := s.ReadFrame(gpuTexture(8, 4))
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if len(frame.Data) != 8*4*4 || frame.Data[0] != 1 || frame.Data[len(frame.Data)-1] != 4 {
			t.Fatalf("ReadFrame %d: unexpected data", i)
		}
	}
	created := dev.createdTextures()
	if len(created) != 1 {
		t.Fatalf("created %d staging textures, want 1", len(created))
	}
	if !created[0].desc.Staged() || created[0].desc.BindFlags != 0 {
		t.Fatalf("staging desc = %+v", created[0].desc)
	}
	if _, _, copies := dev.ctx.counts(); copies != 3 {
		t.Fatalf("copies = %d, want 3", copies)
	}

	// A new size replaces the cached texture.
	if _, err := s.ReadFrame(gpuTexture(16, 4)); err != nil {
		t.Fatalf("ReadFrame after resize: %v", err)
	}
	created = dev.createdTextures()
	if len(created) != 2 || !created[0].isReleased() {
		t.Fatalf("resize: created=%d oldReleased=%v", len(created), created[0].isReleased())
	}

	s.Close()
	if !created[1].isReleased() {
		t.Fatal("Close should release the staging texture")
	}
	if _, err := s.ReadFrame(gpuTexture(8, 4)); !errors.Is(err, ErrNotActive) {
		t.Fatalf("ReadFrame after Close = %v, want ErrNotActive", err)
	}
	if _, err := s.ReadBack(stagedTexture(8, 4, 32)); !errors.Is(err, ErrNotActive) {
		t.Fatalf("ReadBack after Close = %v, want ErrNotActive", err)
	}
}

func TestStagerSkipsCopyForStagedTexture(t *testing.T) {
	dev := newFakeDevice(4, 4)
	s := NewStager(dev, dev.ctx)
	defer s.Close()

	if _, err := s.ReadFrame(stagedTexture(4, 4, 16)); err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(dev.createdTextures()) != 0 {
		t.Fatal("staged texture should be read directly")
	}
	if _, _, copies := dev.ctx.counts(); copies != 0 {
		t.Fatalf("copies = %d, want 0", copies)
	}
}

func TestStagerErrors(t *testing.T) {
	dev := newFakeDevice(4, 4)
	s := NewStager(dev, dev.ctx)
	defer s.Close()

	if _, err := s.ReadFrame(nil); !errors.Is(err, ErrNoTexture) {
		t.Fatalf("nil texture = %v, want ErrNoTexture", err)
	}

	odd := gpuTexture(4, 4)
	odd.desc.Format = 2 // R32G32B32A32_FLOAT
	if _, err := s.ReadFrame(odd); !errors.Is(err, ErrUnsupportedPixelFormat) {
		t.Fatalf("bad format = %v, want ErrUnsupportedPixelFormat", err)
	}
	if len(dev.createdTextures()) != 0 {
		t.Fatal("no staging texture should be created for an unsupported format")
	}

	dev.createErr = NewPlatformError("CreateTexture2D", 0x80070057)
	_, err := s.ReadFrame(gpuTexture(4, 4))
	var pe *PlatformError
	if !errors.As(err, &pe) || pe.Code != 0x80070057 || pe.Op != "create staging texture" {
		t.Fatalf("create failure = %v, want platform error with code", err)
	}
}

func TestReadBackRejectsOversizedDesc(t *testing.T) {
	tests := []TextureDesc{
		{Width: 1 << 31, Height: 1},
		{Width: 1, Height: 1 << 31},
	}
	for _, d := range tests {
		d.Format = PixelFormatB8G8R8A8UNorm
		tex := &fakeTexture{desc: StagingDesc(d), pitch: 4}
		ctx := &fakeContext{}

		frame, err := ReadBack(ctx, tex)
		if !errors.Is(err, ErrMappedRange) || !errors.Is(err, ErrPlatform) {
			t.Fatalf("%dx%d: err = %v, want ErrMappedRange platform error", d.Width, d.Height, err)
		}
		if frame.Width != 0 || frame.Height != 0 || frame.Data != nil {
			t.Fatalf("%dx%d: frame = %+v, want zero", d.Width, d.Height, frame)
		}
		if maps, unmaps, _ := ctx.counts(); maps != 1 || unmaps != 1 {
			t.Fatalf("%dx%d: maps=%d unmaps=%d, want 1 and 1", d.Width, d.Height, maps, unmaps)
		}
	}
}
