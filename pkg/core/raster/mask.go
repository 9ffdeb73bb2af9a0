// Package raster holds the per-color masks that feed vector extraction.
//
// A [Mask] is an immutable 8-bit grid, one per color channel. Masks are
// produced by an external segmentation step and loaded here from image files
// (PNG, JPEG, GIF or BMP). Loading optionally rescales the image, and
// [Edges] derives an edge-only mask with a Sobel operator.
package raster

import (
	"image"
	"image/color"

	"github.com/matzehuels/penplot/pkg/errors"
)

// DefaultThreshold separates foreground from background. Values at or above
// it are foreground.
const DefaultThreshold uint8 = 128

// Mask is an immutable grayscale raster for a single color channel.
type Mask struct {
	name string
	gray *image.Gray
}

// New creates a mask from row-major pixel values. pix is copied.
func New(name string, width, height int, pix []uint8) (*Mask, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New(errors.ErrCodeInput, "mask %q has zero dimensions (%dx%d)", name, width, height)
	}
	if len(pix) != width*height {
		return nil, errors.New(errors.ErrCodeInput, "mask %q: %d pixels for %dx%d", name, len(pix), width, height)
	}
	g := image.NewGray(image.Rect(0, 0, width, height))
	copy(g.Pix, pix)
	return &Mask{name: name, gray: g}, nil
}

// FromImage converts img to a grayscale mask anchored at the origin.
func FromImage(name string, img image.Image) (*Mask, error) {
	if img == nil {
		return nil, errors.New(errors.ErrCodeInput, "mask %q is empty", name)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New(errors.ErrCodeInput, "mask %q has zero dimensions (%dx%d)", name, b.Dx(), b.Dy())
	}
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.SetGray(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray))
		}
	}
	return &Mask{name: name, gray: g}, nil
}

// Name returns the channel name.
func (m *Mask) Name() string { return m.name }

// Width returns the mask width in pixels.
func (m *Mask) Width() int { return m.gray.Rect.Dx() }

// Height returns the mask height in pixels.
func (m *Mask) Height() int { return m.gray.Rect.Dy() }

// At returns the value at (x, y). Out-of-range coordinates read as zero.
func (m *Mask) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= m.Width() || y >= m.Height() {
		return 0
	}
	return m.gray.Pix[y*m.gray.Stride+x]
}

// Foreground reports whether (x, y) is at or above threshold.
func (m *Mask) Foreground(x, y int, threshold uint8) bool {
	return m.At(x, y) >= threshold
}

// Count returns the number of foreground pixels.
func (m *Mask) Count(threshold uint8) int {
	n := 0
	for _, v := range m.gray.Pix {
		if v >= threshold {
			n++
		}
	}
	return n
}

// Validate returns an input error for nil or zero-sized masks.
func (m *Mask) Validate() error {
	if m == nil || m.gray == nil {
		return errors.New(errors.ErrCodeInput, "mask is empty")
	}
	if m.Width() == 0 || m.Height() == 0 {
		return errors.New(errors.ErrCodeInput, "mask %q has zero dimensions", m.name)
	}
	return nil
}

// Image returns a copy of the mask as a grayscale image.
func (m *Mask) Image() *image.Gray {
	g := image.NewGray(m.gray.Rect)
	copy(g.Pix, m.gray.Pix)
	return g
}

// Bytes returns a copy of the row-major pixel values.
func (m *Mask) Bytes() []byte {
	out := make([]byte, 0, m.Width()*m.Height())
	for y := 0; y < m.Height(); y++ {
		row := m.gray.Pix[y*m.gray.Stride : y*m.gray.Stride+m.Width()]
		out = append(out, row...)
	}
	return out
}

// WithName returns a mask sharing m's pixels under another name.
func (m *Mask) WithName(name string) *Mask {
	return &Mask{name: name, gray: m.gray}
}
