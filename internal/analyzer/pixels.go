package analyzer

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// DefaultSampleStride is the distance between color samples in channel
// entries: one pixel out of every four.
const DefaultSampleStride = 16

// PixelBuffer is a read-only, row-major RGBA buffer with non-premultiplied
// 8-bit channels. It is safe for concurrent readers.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewPixelBuffer copies img into a tightly packed buffer
func NewPixelBuffer(img image.Image) (*PixelBuffer, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	b := img.Bounds()
	if b.Empty() {
		return &PixelBuffer{}, nil
	}
	nrgba := imaging.Clone(img)
	return &PixelBuffer{
		Width:  nrgba.Rect.Dx(),
		Height: nrgba.Rect.Dy(),
		Pix:    nrgba.Pix,
	}, nil
}

// NewPixelBufferFromRGBA wraps raw RGBA bytes
func NewPixelBufferFromRGBA(width, height int, pix []uint8) (*PixelBuffer, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("pixel data length %d does not match %dx%d", len(pix), width, height)
	}
	return &PixelBuffer{Width: width, Height: height, Pix: pix}, nil
}

// PixelCount returns width*height
func (p *PixelBuffer) PixelCount() int {
	return p.Width * p.Height
}

// RGB returns the color channels of the pixel at (x, y)
func (p *PixelBuffer) RGB(x, y int) (r, g, b uint8) {
	i := (y*p.Width + x) * 4
	return p.Pix[i], p.Pix[i+1], p.Pix[i+2]
}

// Gray returns (r+g+b)/3 of the pixel at (x, y)
func (p *PixelBuffer) Gray(x, y int) float64 {
	r, g, b := p.RGB(x, y)
	return (float64(r) + float64(g) + float64(b)) / 3
}

// RGB is one sampled color triple
type RGB struct {
	R, G, B uint8
}

// PixelSampler walks a PixelBuffer at a fixed channel-entry stride
type PixelSampler struct {
	stride int
}

// NewPixelSampler creates a sampler. Strides that are not positive multiples
// of 4 fall back to DefaultSampleStride so samples always start on a pixel.
func NewPixelSampler(stride int) PixelSampler {
	if stride <= 0 || stride%4 != 0 {
		stride = DefaultSampleStride
	}
	return PixelSampler{stride: stride}
}

// Stride returns the sampling stride in channel entries
func (s PixelSampler) Stride() int {
	return s.stride
}

// PixelsPerSample is how many pixels each sample stands for
func (s PixelSampler) PixelsPerSample() int {
	return s.stride / 4
}

// Each calls fn for every sampled pixel, alpha ignored
func (s PixelSampler) Each(buf *PixelBuffer, fn func(c RGB)) {
	for i := 0; i+2 < len(buf.Pix); i += s.stride {
		fn(RGB{buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2]})
	}
}

// Sample collects all sampled triples
func (s PixelSampler) Sample(buf *PixelBuffer) []RGB {
	out := make([]RGB, 0, len(buf.Pix)/s.stride+1)
	s.Each(buf, func(c RGB) {
		out = append(out, c)
	})
	return out
}
