package raster

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

var (
	sobelX = [9]float64{
		-1, 0, 1,
		-2, 0, 2,
		-1, 0, 1,
	}
	sobelY = [9]float64{
		-1, -2, -1,
		0, 0, 0,
		1, 2, 1,
	}
)

// Edges returns a mask holding the Sobel gradient magnitude of m's
// foreground. Pixels at or above threshold in the result lie on a boundary
// between foreground and background.
func Edges(m *Mask, threshold uint8) *Mask {
	src := binarize(m, threshold)
	opts := &imaging.ConvolveOptions{Abs: true}
	gx := imaging.Convolve3x3(src, sobelX, opts)
	gy := imaging.Convolve3x3(src, sobelY, opts)

	w, h := m.Width(), m.Height()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := gx.PixOffset(x, y)
			a, b := float64(gx.Pix[i]), float64(gy.Pix[i])
			out.Pix[y*out.Stride+x] = uint8(math.Min(255, math.Hypot(a, b)))
		}
	}
	return &Mask{name: m.name, gray: out}
}

// binarize maps foreground to white and background to black so the gradient
// does not depend on the input's gray levels.
func binarize(m *Mask, threshold uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, m.Width(), m.Height()))
	for y := 0; y < m.Height(); y++ {
		for x := 0; x < m.Width(); x++ {
			if m.Foreground(x, y, threshold) {
				g.Pix[y*g.Stride+x] = 255
			}
		}
	}
	return g
}
