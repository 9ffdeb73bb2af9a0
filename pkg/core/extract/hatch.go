package extract

import (
	"context"
	"math"

	"github.com/jbeda/geom"

	"github.com/matzehuels/penplot/pkg/core/raster"
	"github.com/matzehuels/penplot/pkg/core/vector"
)

// HatchFill covers every region with horizontal scanline segments.
type HatchFill struct {
	params Params
}

// Strategy implements [Extractor].
func (h *HatchFill) Strategy() Strategy { return StrategyHatchFill }

// Extract implements [Extractor].
//
// For every region the rows of its bounding box are scanned at Step pixel
// intervals. A pixel belongs to the run when its centre is inside the
// region's outline and outside all of the region's holes. Contours follow
// pixel edges exactly, so with Step 1 the runs cover the foreground pixels
// of the mask once each. Each maximal run becomes one segment between the
// first and last pixel of the run.
func (h *HatchFill) Extract(ctx context.Context, m *raster.Mask) ([]vector.Primitive, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	contours, err := Trace(ctx, m, h.params.Threshold)
	if err != nil {
		return nil, err
	}

	var out []vector.Primitive
	for _, r := range Regions(contours) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = h.fill(r, out)
	}
	return out, nil
}

func (h *HatchFill) fill(r Region, out []vector.Primitive) []vector.Primitive {
	b := r.Outline.Bounds()
	x0, x1 := int(math.Floor(b.Min.X)), int(math.Ceil(b.Max.X))
	y0, y1 := int(math.Floor(b.Min.Y)), int(math.Ceil(b.Max.Y))

	for y := y0; y < y1; y += h.params.Step {
		start := -1
		for x := x0; x <= x1; x++ {
			in := x < x1 && r.Contains(vector.Point{X: float64(x) + 0.5, Y: float64(y) + 0.5})
			switch {
			case in && start < 0:
				start = x
			case !in && start >= 0:
				out = append(out, vector.Segment{
					P1: vector.Point{X: float64(start), Y: float64(y)},
					P2: vector.Point{X: float64(x - 1), Y: float64(y)},
				})
				start = -1
			}
		}
	}
	return out
}

// Region is one outer contour together with the holes directly inside it.
type Region struct {
	Outline vector.Polygon
	Holes   []vector.Polygon
}

// Contains reports whether pt is inside the outline and outside every hole.
func (r Region) Contains(pt vector.Point) bool {
	if !r.Outline.Contains(pt) {
		return false
	}
	for _, h := range r.Holes {
		if h.Contains(pt) {
			return false
		}
	}
	return true
}

// Regions groups traced contours by nesting depth. Contours at even depth are
// outlines; a contour one level deeper inside an outline is one of its holes.
// Islands inside holes are outlines of their own regions.
func Regions(contours []vector.Polygon) []Region {
	n := len(contours)
	bounds := make([]geom.Rect, n)
	for i, c := range contours {
		bounds[i] = c.Bounds()
	}

	// inside[j] lists the contours that enclose contour j.
	inside := make([][]int, n)
	for j := range contours {
		for i := range contours {
			if i != j && encloses(contours[i], bounds[i], contours[j], bounds[j]) {
				inside[j] = append(inside[j], i)
			}
		}
	}

	var regions []Region
	index := make(map[int]int)
	for i := range contours {
		if len(inside[i])%2 == 0 {
			index[i] = len(regions)
			regions = append(regions, Region{Outline: contours[i]})
		}
	}
	for j := range contours {
		depth := len(inside[j])
		if depth%2 == 0 {
			continue
		}
		// The parent is the enclosing contour one level up.
		for _, i := range inside[j] {
			if len(inside[i]) == depth-1 {
				r := index[i]
				regions[r].Holes = append(regions[r].Holes, contours[j])
				break
			}
		}
	}
	return regions
}

// encloses reports whether inner lies inside outer. Traced contours never
// cross and never share a pixel edge, so a point half a unit along inner's
// first side is off outer's boundary and decides for the whole contour.
func encloses(outer vector.Polygon, ob geom.Rect, inner vector.Polygon, ib geom.Rect) bool {
	if ib.Min.X < ob.Min.X || ib.Min.Y < ob.Min.Y || ib.Max.X > ob.Max.X || ib.Max.Y > ob.Max.Y {
		return false
	}
	if len(inner.Points) < 2 {
		return false
	}
	a, b := inner.Points[0], inner.Points[1]
	l := math.Hypot(b.X-a.X, b.Y-a.Y)
	if l == 0 {
		return false
	}
	return outer.Contains(vector.Point{X: a.X + 0.5*(b.X-a.X)/l, Y: a.Y + 0.5*(b.Y-a.Y)/l})
}
