package preview

import (
	"bufio"
	"fmt"
	"io"

	"github.com/jbeda/geom"

	"github.com/matzehuels/penplot/pkg/core/vector"
)

// svgWriter emits SVG elements. The first write error sticks and later
// writes are dropped.
type svgWriter struct {
	w   *bufio.Writer
	err error
}

func newSVGWriter(w io.Writer) *svgWriter {
	return &svgWriter{w: bufio.NewWriter(w)}
}

func (s *svgWriter) printf(format string, args ...any) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.w, format, args...)
}

func (s *svgWriter) start(view geom.Rect, scale float64) {
	s.printf(`<?xml version="1.0"?>
<svg version="1.1" xmlns="http://www.w3.org/2000/svg"
     viewBox="%g %g %g %g" width="%.0f" height="%.0f">
<rect x="%g" y="%g" width="%g" height="%g" fill="white"/>
`, view.Min.X, view.Min.Y, view.Width(), view.Height(),
		view.Width()*scale, view.Height()*scale,
		view.Min.X, view.Min.Y, view.Width(), view.Height())
}

func (s *svgWriter) line(a, b vector.Point, attrs string) {
	s.printf("<line x1='%g' y1='%g' x2='%g' y2='%g' %s/>\n", a.X, a.Y, b.X, b.Y, attrs)
}

func (s *svgWriter) circle(c vector.Point, r float64, attrs string) {
	s.printf("<circle cx='%g' cy='%g' r='%g' %s/>\n", c.X, c.Y, r, attrs)
}

func (s *svgWriter) polygon(pts []vector.Point, attrs string) {
	s.printf("<polygon points='")
	for i, p := range pts {
		if i > 0 {
			s.printf(" ")
		}
		s.printf("%g,%g", p.X, p.Y)
	}
	s.printf("' %s/>\n", attrs)
}

func (s *svgWriter) end() error {
	s.printf("</svg>\n")
	if s.err != nil {
		return s.err
	}
	return s.w.Flush()
}

// pad grows r by m on every side. An empty box becomes a unit box at the
// origin so the output is always a valid viewBox.
func pad(r geom.Rect, ok bool, m float64) geom.Rect {
	if !ok {
		return geom.Rect{Min: geom.Coord{X: -m, Y: -m}, Max: geom.Coord{X: 1 + m, Y: 1 + m}}
	}
	return geom.Rect{
		Min: geom.Coord{X: r.Min.X - m, Y: r.Min.Y - m},
		Max: geom.Coord{X: r.Max.X + m, Y: r.Max.Y + m},
	}
}

func scaleOf(opts Options) float64 {
	if opts.Scale > 0 {
		return opts.Scale
	}
	return defaultScale
}

// WriteSVG draws strokes as SVG lines in program coordinates.
func WriteSVG(w io.Writer, strokes []Stroke, opts Options) error {
	b, ok := Bounds(strokes, opts.ShowTravel)
	view := pad(b, ok, 2)

	s := newSVGWriter(w)
	s.start(view, scaleOf(opts))
	for _, st := range strokes {
		switch {
		case st.Kind == Ink:
			s.line(st.From, st.To, fmt.Sprintf("stroke='%s' stroke-width='0.5' stroke-linecap='round'", st.Color))
		case opts.ShowTravel:
			s.line(st.From, st.To, "stroke='#b0b0b0' stroke-width='0.15' stroke-dasharray='0.6,0.6'")
		}
	}
	return s.end()
}

// WritePrimitives draws extracted geometry: circles as outlines, segments
// as lines and polygons as closed outlines.
func WritePrimitives(w io.Writer, prims []vector.Primitive, color string, opts Options) error {
	if color == "" {
		color = "#000000"
	}
	b, ok := vector.Bounds(prims)
	view := pad(b, ok, 2)

	s := newSVGWriter(w)
	s.start(view, scaleOf(opts))
	stroke := fmt.Sprintf("fill='none' stroke='%s' stroke-width='0.3'", color)
	for _, p := range prims {
		switch p := p.(type) {
		case vector.Circle:
			s.circle(p.Center, p.Radius, stroke)
		case vector.Segment:
			s.line(p.P1, p.P2, stroke)
		case vector.Polygon:
			s.polygon(p.Points, stroke)
		}
	}
	return s.end()
}
