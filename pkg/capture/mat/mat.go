// Package mat exposes RawFrameData as a dense row-major matrix of
// 8-bit channels.
package mat

import (
	"fmt"

	"github.com/breeze-rmm/wgcapture/pkg/capture"
)

const adapterName = "mat"

// Channel indexes within one BGRA element.
const (
	Blue  = 0
	Green = 1
	Red   = 2
	Alpha = 3
)

// Mat is a Rows x Cols matrix with Channels interleaved uint8 values per
// element. Data is shared with the frame it was built from.
type Mat struct {
	Rows     int
	Cols     int
	Channels int
	Data     []uint8
}

// FromFrame wraps f as a Height x Width x 4 matrix without copying.
func FromFrame(f capture.RawFrameData) (*Mat, error) {
	if !f.Valid() {
		return nil, &capture.AdapterError{
			Adapter: adapterName,
			Msg:     fmt.Sprintf("buffer holds %d bytes, %dx%d needs %d", len(f.Data), f.Width, f.Height, f.Stride()*int(f.Height)),
		}
	}
	return &Mat{
		Rows:     int(f.Height),
		Cols:     int(f.Width),
		Channels: capture.BytesPerPixel,
		Data:     f.Data,
	}, nil
}

// Stride is the number of bytes per row.
func (m *Mat) Stride() int { return m.Cols * m.Channels }

// At returns channel ch of element (row, col).
func (m *Mat) At(row, col, ch int) uint8 {
	return m.Data[row*m.Stride()+col*m.Channels+ch]
}

// Set assigns channel ch of element (row, col).
func (m *Mat) Set(row, col, ch int, v uint8) {
	m.Data[row*m.Stride()+col*m.Channels+ch] = v
}

// Row returns row r as a slice into Data.
func (m *Mat) Row(r int) []uint8 {
	start := r * m.Stride()
	return m.Data[start : start+m.Stride() : start+m.Stride()]
}

// Clone returns a deep copy.
func (m *Mat) Clone() *Mat {
	out := *m
	out.Data = append([]uint8(nil), m.Data...)
	return &out
}

// Gray converts to a single-channel luma matrix using BT.601 weights.
func (m *Mat) Gray() (*Mat, error) {
	if m.Channels != capture.BytesPerPixel {
		return nil, &capture.AdapterError{Adapter: adapterName, Msg: fmt.Sprintf("gray needs 4 channels, have %d", m.Channels)}
	}
	out := &Mat{Rows: m.Rows, Cols: m.Cols, Channels: 1, Data: make([]uint8, m.Rows*m.Cols)}
	for i, j := 0, 0; j < len(out.Data); i, j = i+m.Channels, j+1 {
		b, g, r := uint32(m.Data[i+Blue]), uint32(m.Data[i+Green]), uint32(m.Data[i+Red])
		out.Data[j] = uint8((299*r + 587*g + 114*b + 500) / 1000)
	}
	return out, nil
}
