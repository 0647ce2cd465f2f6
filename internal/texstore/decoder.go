package texstore

import (
	"fmt"
	"image/png"
	"io"
)

// Decoder loads an image into RGBA8 behind a narrow interface so a cgo
// build can swap in an OpenImageIO-backed loader without any call site
// changing.
type Decoder interface {
	Decode(r io.Reader) (rgba []byte, width, height int, err error)
}

// PNGDecoder is the default (non-cgo) decoder for LDR sources.
type PNGDecoder struct{}

func (PNGDecoder) Decode(r io.Reader) ([]byte, int, int, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("texstore: decoding PNG: %w", err)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r32, g32, b32, a32 := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := (y*w + x) * 4
			out[i] = byte(r32 >> 8)
			out[i+1] = byte(g32 >> 8)
			out[i+2] = byte(b32 >> 8)
			out[i+3] = byte(a32 >> 8)
		}
	}
	return out, w, h, nil
}

// ExpandRGBToRGBA repacks a tightly-packed RGB8 buffer into RGBA8 with
// full alpha, since most backends require a 4-component format.
func ExpandRGBToRGBA(rgb []byte, width, height int) []byte {
	out := make([]byte, width*height*4)
	for i := 0; i < width*height; i++ {
		out[i*4] = rgb[i*3]
		out[i*4+1] = rgb[i*3+1]
		out[i*4+2] = rgb[i*3+2]
		out[i*4+3] = 255
	}
	return out
}
