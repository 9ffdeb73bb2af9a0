package merge

import (
	"math"

	"github.com/jbeda/geom"
	"github.com/jbeda/geom/qtree"

	"github.com/matzehuels/penplot/pkg/core/vector"
)

const almostEqual = 1e-9

// item adapts a segment to the quadtree. Segments are equal regardless of
// direction.
type item struct {
	vector.Segment
}

func (it item) Equals(oi interface{}) bool {
	o, ok := oi.(item)
	if !ok {
		return false
	}
	a, b := it.Segment, o.Segment
	return (near(a.P1, b.P1) && near(a.P2, b.P2)) || (near(a.P1, b.P2) && near(a.P2, b.P1))
}

func near(a, b geom.Coord) bool {
	return math.Abs(a.X-b.X) < almostEqual && math.Abs(a.Y-b.Y) < almostEqual
}

// Dedupe drops segments that repeat an earlier one in either direction.
// The result is normalized and sorted like [Merge] output.
func Dedupe(segs []vector.Segment) []vector.Segment {
	if len(segs) == 0 {
		return nil
	}

	all := geom.NilRect()
	for _, s := range segs {
		all.ExpandToContainRect(s.Bounds())
	}
	// Keep the tree non-degenerate when every segment lies on one line.
	all.Min = all.Min.Minus(geom.Coord{X: 1, Y: 1})
	all.Max = all.Max.Plus(geom.Coord{X: 1, Y: 1})

	qt := qtree.New(qtree.ConfigDefault(), all)
	for _, s := range segs {
		qt.FindOrInsert(item{s.Normalize()})
	}

	col := make(map[qtree.Item]bool)
	qt.Enumerate(col)
	out := make([]vector.Segment, 0, len(col))
	for it := range col {
		out = append(out, it.(item).Segment)
	}
	Sort(out)
	return out
}
