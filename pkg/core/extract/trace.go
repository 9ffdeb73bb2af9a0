package extract

import (
	"context"
	"fmt"
	"image/color"

	"github.com/dennwc/gotrace"

	"github.com/matzehuels/penplot/pkg/core/raster"
	"github.com/matzehuels/penplot/pkg/core/vector"
)

// dir is the heading of a pixel edge, with y pointing down.
type dir uint8

const (
	east dir = iota
	south
	west
	north
)

var steps = [4][2]int{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}

// left and right turn by a quarter, as seen on screen.
func (d dir) left() dir  { return (d + 3) % 4 }
func (d dir) right() dir { return (d + 1) % 4 }

// edgeGrid holds the directed boundary edges of a mask, keyed by the pixel
// corner they start at. Every edge keeps foreground on its right.
type edgeGrid struct {
	w      int     // corners per row
	all    []uint8 // outgoing edge bits per corner
	unused []uint8
}

func newEdgeGrid(ctx context.Context, m *raster.Mask, threshold uint8) (*edgeGrid, error) {
	w, h := m.Width(), m.Height()
	g := &edgeGrid{w: w + 1, all: make([]uint8, (w+1)*(h+1))}
	fg := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && m.Foreground(x, y, threshold)
	}
	for y := range h {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := range w {
			if !fg(x, y) {
				continue
			}
			if !fg(x, y-1) {
				g.add(x, y, east)
			}
			if !fg(x+1, y) {
				g.add(x+1, y, south)
			}
			if !fg(x, y+1) {
				g.add(x+1, y+1, west)
			}
			if !fg(x-1, y) {
				g.add(x, y+1, north)
			}
		}
	}
	g.unused = append([]uint8(nil), g.all...)
	return g, nil
}

func (g *edgeGrid) add(x, y int, d dir) { g.all[y*g.w+x] |= 1 << d }

// next picks the edge leaving corner v after arriving heading d. Where two
// foreground pixels meet only at v the left turn wins, which keeps
// diagonal neighbours in one contour.
func (g *edgeGrid) next(v int, d dir) dir {
	for _, c := range [3]dir{d.left(), d, d.right()} {
		if g.all[v]&(1<<c) != 0 {
			return c
		}
	}
	// Unreachable: every corner on a contour has as many edges out as in.
	panic(fmt.Sprintf("extract: dangling boundary edge at corner %d", v))
}

// follow walks the contour through the edge leaving v heading d and clears
// its edges. Only corners where the heading changes become vertices.
func (g *edgeGrid) follow(v int, d dir) vector.Polygon {
	var (
		at   []int
		dirs []dir
	)
	start, startDir := v, d
	for {
		g.unused[v] &^= 1 << d
		at = append(at, v)
		dirs = append(dirs, d)
		x, y := v%g.w+steps[d][0], v/g.w+steps[d][1]
		v = y*g.w + x
		d = g.next(v, d)
		if v == start && d == startDir {
			break
		}
	}

	var pts []vector.Point
	for i, c := range at {
		if dirs[i] != dirs[(i+len(dirs)-1)%len(dirs)] {
			pts = append(pts, vector.Point{X: float64(c % g.w), Y: float64(c / g.w)})
		}
	}
	return vector.Polygon{Points: pts}
}

// Trace returns the boundary of every foreground region of m as a polygon.
// Vertices sit on pixel corners: a single foreground pixel at (x, y) traces
// to the square (x, y)-(x+1, y+1), and straight runs of pixel edges become
// one side. Foreground pixels touching at a corner share a contour; background
// pixels must share an edge to be connected. Outer contours run clockwise on
// screen and holes counterclockwise. Contours come in row-major order of their
// first corner.
func Trace(ctx context.Context, m *raster.Mask, threshold uint8) ([]vector.Polygon, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	g, err := newEdgeGrid(ctx, m, threshold)
	if err != nil {
		return nil, err
	}

	var polys []vector.Polygon
	for v := range g.unused {
		if v%g.w == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for g.unused[v] != 0 {
			d := east
			for g.unused[v]&(1<<d) == 0 {
				d++
			}
			polys = append(polys, g.follow(v, d))
		}
	}
	return polys, nil
}

// smoothParams keeps every speck but lets potrace fit curves.
func smoothParams() *gotrace.Params {
	p := gotrace.Defaults
	p.TurdSize = 0
	return &p
}

// curveSteps is the number of chords per flattened Bezier segment.
const curveSteps = 8

// TraceSmooth returns potrace's curve fit of every region boundary of m,
// flattened to polygons. The bitmap is addressed by image row, so
// coordinates share the y-down orientation of [Trace]. Outlines follow the
// pixel staircase only approximately and must not be used for filling.
func TraceSmooth(ctx context.Context, m *raster.Mask, threshold uint8) ([]vector.Polygon, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	bm := gotrace.NewBitmapFromImage(m.Image(), func(x, y int, _ color.Color) bool {
		return m.Foreground(x, y, threshold)
	})
	paths, err := gotrace.Trace(bm, smoothParams())
	if err != nil {
		return nil, fmt.Errorf("trace %s: %w", m.Name(), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	polys := make([]vector.Polygon, 0, len(paths))
	var walk func([]gotrace.Path)
	walk = func(ps []gotrace.Path) {
		for _, p := range ps {
			if poly := flatten(p.Curve); len(poly.Points) >= 3 {
				polys = append(polys, poly)
			}
			walk(p.Childs)
		}
	}
	walk(paths)
	return polys, nil
}

// flatten turns a closed potrace curve into a polygon. Each segment starts
// where the previous one ends.
func flatten(curve []gotrace.Segment) vector.Polygon {
	if len(curve) == 0 {
		return vector.Polygon{}
	}
	pt := func(p gotrace.Point) vector.Point { return vector.Point{X: p.X, Y: p.Y} }
	from := pt(curve[len(curve)-1].Pnt[2])

	var pts []vector.Point
	for _, s := range curve {
		if s.Type == gotrace.TypeCorner {
			pts = append(pts, pt(s.Pnt[1]), pt(s.Pnt[2]))
		} else {
			c1, c2, to := pt(s.Pnt[0]), pt(s.Pnt[1]), pt(s.Pnt[2])
			for i := 1; i <= curveSteps; i++ {
				pts = append(pts, bezier(from, c1, c2, to, float64(i)/curveSteps))
			}
		}
		from = pt(s.Pnt[2])
	}
	return vector.Polygon{Points: pts}
}

func bezier(p0, p1, p2, p3 vector.Point, t float64) vector.Point {
	u := 1 - t
	a, b, c, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
	return vector.Point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}
