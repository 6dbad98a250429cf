// Package img converts RawFrameData into image.Image values.
package img

import (
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"github.com/breeze-rmm/wgcapture/pkg/capture"
)

const adapterName = "img"

// BGRA is an in-memory image whose pixels are B, G, R, A bytes. It shares
// the frame buffer; copy the frame first if it will be modified.
type BGRA struct {
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

var _ image.Image = (*BGRA)(nil)

func validate(f capture.RawFrameData) error {
	if f.Width < 0 || f.Height < 0 {
		return &capture.AdapterError{Adapter: adapterName, Msg: fmt.Sprintf("negative size %dx%d", f.Width, f.Height)}
	}
	if !f.Valid() {
		return &capture.AdapterError{
			Adapter: adapterName,
			Msg:     fmt.Sprintf("buffer holds %d bytes, %dx%d needs %d", len(f.Data), f.Width, f.Height, f.Stride()*int(f.Height)),
		}
	}
	return nil
}

// FromFrame wraps f without copying.
func FromFrame(f capture.RawFrameData) (*BGRA, error) {
	if err := validate(f); err != nil {
		return nil, err
	}
	return &BGRA{
		Pix:    f.Data,
		Stride: f.Stride(),
		Rect:   image.Rect(0, 0, int(f.Width), int(f.Height)),
	}, nil
}

func (b *BGRA) ColorModel() color.Model { return color.RGBAModel }

func (b *BGRA) Bounds() image.Rectangle { return b.Rect }

func (b *BGRA) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(b.Rect) {
		return color.RGBA{}
	}
	i := b.PixOffset(x, y)
	return color.RGBA{R: b.Pix[i+2], G: b.Pix[i+1], B: b.Pix[i], A: b.Pix[i+3]}
}

// PixOffset returns the index of the first byte of pixel (x, y).
func (b *BGRA) PixOffset(x, y int) int {
	return (y-b.Rect.Min.Y)*b.Stride + (x-b.Rect.Min.X)*capture.BytesPerPixel
}

// ToRGBA copies f into a new *image.RGBA, swapping the blue and red channels.
// Capture output is premultiplied by the compositor, so alpha is kept as-is.
func ToRGBA(f capture.RawFrameData) (*image.RGBA, error) {
	if err := validate(f); err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(f.Width), int(f.Height)))
	src := f.Data
	for i := 0; i+3 < len(src); i += capture.BytesPerPixel {
		dst.Pix[i+0] = src[i+2]
		dst.Pix[i+1] = src[i+1]
		dst.Pix[i+2] = src[i+0]
		dst.Pix[i+3] = src[i+3]
	}
	return dst, nil
}

// Scale resizes f to width x height with Catmull-Rom interpolation.
func Scale(f capture.RawFrameData, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, &capture.AdapterError{Adapter: adapterName, Msg: fmt.Sprintf("invalid target size %dx%d", width, height)}
	}
	src, err := ToRGBA(f)
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst, nil
}
