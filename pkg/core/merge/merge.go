// Package merge coalesces collinear, adjacent segments so a channel needs
// fewer pen lifts.
//
// Two segments merge when they lie on the same line and the gap between the
// nearer endpoints is at most the tolerance. On a hatch row this is "same y,
// small gap"; for any other direction it is "endpoints coincide within
// tolerance". [Merge] is idempotent: merging its own output changes nothing.
package merge

import (
	"cmp"
	"math"
	"slices"

	"github.com/matzehuels/penplot/pkg/core/vector"
)

// DefaultTolerance is the default merge gap in mask pixels.
const DefaultTolerance = 1.0

// keyScale quantizes line directions and offsets when grouping segments.
const keyScale = 1e6

type lineKey struct {
	dx, dy, off int64
}

type span struct {
	t1, t2 float64
	seg    vector.Segment
}

// Merge returns the merged form of segs, sorted by (P1.Y, P1.X, P2.Y, P2.X)
// with every segment normalized so that P1 sorts before P2.
func Merge(segs []vector.Segment, tolerance float64) []vector.Segment {
	tolerance = max(tolerance, 0)
	segs = Dedupe(segs)

	lines := make(map[lineKey][]span)
	var points []vector.Point
	for _, s := range segs {
		if s.P1 == s.P2 {
			points = append(points, s.P1)
			continue
		}
		k := keyOf(s)
		dir := k.direction()
		lines[k] = append(lines[k], span{t1: dot(dir, s.P1), t2: dot(dir, s.P2), seg: s})
	}

	var out []vector.Segment
	for _, spans := range lines {
		out = append(out, sweep(spans, tolerance)...)
	}
	for _, p := range points {
		if !covered(p, out, tolerance) {
			out = append(out, vector.Segment{P1: p, P2: p})
		}
	}

	Sort(out)
	return out
}

// sweep merges spans that lie on one line.
func sweep(spans []span, tol float64) []vector.Segment {
	slices.SortFunc(spans, func(a, b span) int {
		if c := cmp.Compare(a.t1, b.t1); c != 0 {
			return c
		}
		return cmp.Compare(a.t2, b.t2)
	})

	var out []vector.Segment
	open := spans[0]
	for _, next := range spans[1:] {
		if next.t1-open.t2 <= tol {
			if next.t2 > open.t2 {
				open.t2 = next.t2
				open.seg.P2 = next.seg.P2
			}
			continue
		}
		out = append(out, open.seg)
		open = next
	}
	return append(out, open.seg)
}

// keyOf returns the quantized supporting line of a normalized, non-degenerate
// segment.
func keyOf(s vector.Segment) lineKey {
	dir := s.P2.Minus(s.P1).Unit()
	off := dir.X*s.P1.Y - dir.Y*s.P1.X
	return lineKey{
		dx:  int64(math.Round(dir.X * keyScale)),
		dy:  int64(math.Round(dir.Y * keyScale)),
		off: int64(math.Round(off * keyScale)),
	}
}

// direction is shared by every segment on the line so that coincident
// endpoints project to the same position.
func (k lineKey) direction() vector.Point {
	return vector.Point{X: float64(k.dx) / keyScale, Y: float64(k.dy) / keyScale}
}

func dot(a, b vector.Point) float64 {
	return a.X*b.X + a.Y*b.Y
}

// covered reports whether p lies within tol of any segment in segs.
func covered(p vector.Point, segs []vector.Segment, tol float64) bool {
	for _, s := range segs {
		if distToSegment(p, s) <= tol {
			return true
		}
	}
	return false
}

func distToSegment(p vector.Point, s vector.Segment) float64 {
	d := s.P2.Minus(s.P1)
	l2 := dot(d, d)
	if l2 == 0 {
		return p.DistanceFrom(s.P1)
	}
	t := math.Max(0, math.Min(1, dot(p.Minus(s.P1), d)/l2))
	return p.DistanceFrom(s.P1.Plus(d.Times(t)))
}

// Sort orders segments by (P1.Y, P1.X, P2.Y, P2.X).
func Sort(segs []vector.Segment) {
	slices.SortFunc(segs, func(a, b vector.Segment) int {
		return cmp.Or(
			cmp.Compare(a.P1.Y, b.P1.Y),
			cmp.Compare(a.P1.X, b.P1.X),
			cmp.Compare(a.P2.Y, b.P2.Y),
			cmp.Compare(a.P2.X, b.P2.X),
		)
	})
}
