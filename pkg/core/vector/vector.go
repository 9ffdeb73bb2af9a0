// Package vector defines the geometric primitives extracted from raster masks.
//
// A [Primitive] is one of three shapes:
//
//   - [Circle]: a point sample with a radius, produced by the edge-points
//     extractor and consumed by the connectivity reducer
//   - [Segment]: a straight pen stroke between two points
//   - [Polygon]: a closed outline, produced by the outline extractor
//
// Coordinates are in mask pixel units with the origin at the top-left corner
// and y growing downwards. Points and rectangles are [geom.Coord] and
// [geom.Rect] from github.com/jbeda/geom.
package vector

import (
	"fmt"
	"math"

	"github.com/jbeda/geom"
)

// Point is a position in mask coordinates.
type Point = geom.Coord

// Primitive is one piece of extracted vector geometry.
// The set of implementations is closed: [Circle], [Segment] and [Polygon].
type Primitive interface {
	Bounds() geom.Rect
	primitive()
}

// Circle is a point sample of a mask with a radius.
type Circle struct {
	Center Point
	Radius float64
}

// Bounds returns the axis-aligned box containing the circle.
func (c Circle) Bounds() geom.Rect {
	r := geom.Coord{X: c.Radius, Y: c.Radius}
	return geom.Rect{Min: c.Center.Minus(r), Max: c.Center.Plus(r)}
}

func (Circle) primitive() {}

func (c Circle) String() string {
	return fmt.Sprintf("circle(%g,%g r=%g)", c.Center.X, c.Center.Y, c.Radius)
}

// Segment is a straight stroke from P1 to P2.
type Segment struct {
	P1, P2 Point
}

// Bounds returns the axis-aligned box containing both endpoints.
func (s Segment) Bounds() geom.Rect {
	return geom.Rect{
		Min: geom.Coord{X: math.Min(s.P1.X, s.P2.X), Y: math.Min(s.P1.Y, s.P2.Y)},
		Max: geom.Coord{X: math.Max(s.P1.X, s.P2.X), Y: math.Max(s.P1.Y, s.P2.Y)},
	}
}

func (Segment) primitive() {}

// Length returns the Euclidean length of the segment.
func (s Segment) Length() float64 {
	return s.P1.DistanceFrom(s.P2)
}

// Normalize returns the segment with its endpoints ordered so that P1 sorts
// before P2 by x, then by y.
func (s Segment) Normalize() Segment {
	if Less(s.P2, s.P1) {
		return Segment{P1: s.P2, P2: s.P1}
	}
	return s
}

func (s Segment) String() string {
	return fmt.Sprintf("(%g,%g)-(%g,%g)", s.P1.X, s.P1.Y, s.P2.X, s.P2.Y)
}

// Polygon is a closed outline. The last point connects back to the first.
type Polygon struct {
	Points []Point
}

// Bounds returns the axis-aligned box containing every vertex.
// An empty polygon has the zero rectangle as bounds.
func (p Polygon) Bounds() geom.Rect {
	if len(p.Points) == 0 {
		return geom.Rect{}
	}
	r := geom.Rect{Min: p.Points[0], Max: p.Points[0]}
	for _, pt := range p.Points[1:] {
		r.ExpandToContainCoord(pt)
	}
	return r
}

func (Polygon) primitive() {}

// Contains reports whether pt lies inside the polygon using the even-odd
// rule. Points exactly on an edge may report either way.
func (p Polygon) Contains(pt Point) bool {
	in := false
	n := len(p.Points)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := p.Points[i], p.Points[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) {
			x := a.X + (pt.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if pt.X < x {
				in = !in
			}
		}
	}
	return in
}

// Edges returns the polygon outline as closed segments.
func (p Polygon) Edges() []Segment {
	n := len(p.Points)
	if n < 2 {
		return nil
	}
	out := make([]Segment, 0, n)
	for i := range n {
		out = append(out, Segment{P1: p.Points[i], P2: p.Points[(i+1)%n]})
	}
	return out
}

// Less orders points by x, then by y.
func Less(a, b Point) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}

// Finite reports whether both coordinates of p are finite numbers.
func Finite(p Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Near reports whether a and b are within tol of each other on both axes.
func Near(a, b Point, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol
}

// Bounds returns the union of the bounds of prims, or false when prims is
// empty.
func Bounds(prims []Primitive) (geom.Rect, bool) {
	if len(prims) == 0 {
		return geom.Rect{}, false
	}
	r := prims[0].Bounds()
	for _, p := range prims[1:] {
		r.ExpandToContainRect(p.Bounds())
	}
	return r, true
}

// Segments returns the segments in prims, dropping other shapes.
func Segments(prims []Primitive) []Segment {
	var out []Segment
	for _, p := range prims {
		if s, ok := p.(Segment); ok {
			out = append(out, s)
		}
	}
	return out
}

// Circles returns the circles in prims together with their indices.
func Circles(prims []Primitive) ([]Circle, []int) {
	var (
		out []Circle
		idx []int
	)
	for i, p := range prims {
		if c, ok := p.(Circle); ok {
			out = append(out, c)
			idx = append(idx, i)
		}
	}
	return out, idx
}

// Count tallies primitives by shape.
type Count struct {
	Circles  int `json:"circles"`
	Segments int `json:"segments"`
	Polygons int `json:"polygons"`
}

// Tally counts the primitives in prims by shape.
func Tally(prims []Primitive) Count {
	var c Count
	for _, p := range prims {
		switch p.(type) {
		case Circle:
			c.Circles++
		case Segment:
			c.Segments++
		case Polygon:
			c.Polygons++
		}
	}
	return c
}

// Total returns the number of primitives counted.
func (c Count) Total() int {
	return c.Circles + c.Segments + c.Polygons
}
