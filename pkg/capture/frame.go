package capture

// RawFrameData is one frame read back to CPU memory: tightly packed
// B8G8R8A8 rows, len(Data) == Width*Height*4.
type RawFrameData struct {
	Width  int32
	Height int32
	Data   []byte
}

// Stride returns the byte length of one row.
func (f RawFrameData) Stride() int {
	return int(f.Width) * BytesPerPixel
}

// Valid reports whether Data matches the frame dimensions.
func (f RawFrameData) Valid() bool {
	return f.Width >= 0 && f.Height >= 0 && len(f.Data) == int(f.Width)*int(f.Height)*BytesPerPixel
}
