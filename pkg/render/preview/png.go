package preview

import (
	"fmt"
	"io"
	"math"

	"github.com/fogleman/gg"
)

// maxPixels caps the PNG canvas side so a stray far-away move cannot
// allocate a huge image.
const maxPixels = 8192

// WritePNG rasterizes strokes. The canvas covers the stroke bounds scaled
// by opts.Scale; line widths are in pixels.
func WritePNG(w io.Writer, strokes []Stroke, opts Options) error {
	b, ok := Bounds(strokes, opts.ShowTravel)
	view := pad(b, ok, 2)
	scale := scaleOf(opts)

	width := int(math.Ceil(view.Width() * scale))
	height := int(math.Ceil(view.Height() * scale))
	if width > maxPixels || height > maxPixels {
		return fmt.Errorf("preview of %dx%d pixels exceeds %d; lower the scale", width, height, maxPixels)
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.Scale(scale, scale)
	dc.Translate(-view.Min.X, -view.Min.Y)
	dc.SetLineCapRound()

	if opts.ShowTravel {
		dc.SetHexColor("#b0b0b0")
		dc.SetLineWidth(1)
		dc.SetDash(3, 3)
		for _, s := range strokes {
			if s.Kind == Travel {
				dc.DrawLine(s.From.X, s.From.Y, s.To.X, s.To.Y)
			}
		}
		dc.Stroke()
		dc.SetDash()
	}

	dc.SetLineWidth(2)
	for _, s := range strokes {
		if s.Kind != Ink {
			continue
		}
		dc.SetHexColor(s.Color)
		dc.DrawLine(s.From.X, s.From.Y, s.To.X, s.To.Y)
		dc.Stroke()
	}

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
