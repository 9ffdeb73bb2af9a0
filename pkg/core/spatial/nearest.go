package spatial

import (
	"math"
	"slices"

	"github.com/jbeda/geom"
)

// Index holds a shrinking set of points and repeatedly hands out the one
// nearest to a query position.
type Index interface {
	// Pop removes and returns the index of the remaining point nearest to p.
	// Among equally near points the lowest index wins. ok is false once the
	// index is empty.
	Pop(p geom.Coord) (idx int, ok bool)

	// Len returns the number of points not yet popped.
	Len() int
}

// NewIndex builds an index over points for backend b.
func NewIndex(b Backend, points []geom.Coord) Index {
	if b == BackendNaive {
		return NewLinearIndex(points)
	}
	return NewGridIndex(points, 0)
}

// LinearIndex scans every remaining point on each query.
type LinearIndex struct {
	points    []geom.Coord
	remaining []int
}

// NewLinearIndex creates a linear index. points is not copied and must not
// change while the index is in use.
func NewLinearIndex(points []geom.Coord) *LinearIndex {
	rem := make([]int, len(points))
	for i := range rem {
		rem[i] = i
	}
	return &LinearIndex{points: points, remaining: rem}
}

// Len implements [Index].
func (l *LinearIndex) Len() int { return len(l.remaining) }

// Pop implements [Index].
func (l *LinearIndex) Pop(p geom.Coord) (int, bool) {
	if len(l.remaining) == 0 {
		return 0, false
	}
	best, bestD := 0, math.Inf(1)
	for k, idx := range l.remaining {
		if d := dist2(l.points[idx], p); d < bestD {
			best, bestD = k, d
		}
	}
	idx := l.remaining[best]
	l.remaining = slices.Delete(l.remaining, best, best+1)
	return idx, true
}

// GridIndex buckets points into square cells and searches outwards from the
// query cell ring by ring. When a ring would cost more lookups than there
// are occupied cells it scans the occupied cells instead, so far outliers
// never make a query walk empty space.
type GridIndex struct {
	points   []geom.Coord
	size     float64
	cells    map[cell][]int
	min, max cell
	n        int

	// linear serves every query when some point lies outside the grid's
	// coordinate range.
	linear *LinearIndex
}

// NewGridIndex creates a grid index with the given cell size. A size of zero
// or less picks one from the point density.
func NewGridIndex(points []geom.Coord, size float64) *GridIndex {
	if size <= 0 {
		size = autoCellSize(points)
	}
	g := &GridIndex{
		points: points,
		size:   size,
		cells:  make(map[cell][]int),
		n:      len(points),
	}
	for i, p := range points {
		c, ok := cellOf(p, size)
		if !ok {
			return &GridIndex{points: points, size: size, n: len(points), linear: NewLinearIndex(points)}
		}
		if i == 0 {
			g.min, g.max = c, c
		}
		g.min = cell{min(g.min.x, c.x), min(g.min.y, c.y)}
		g.max = cell{max(g.max.x, c.x), max(g.max.y, c.y)}
		g.cells[c] = append(g.cells[c], i)
	}
	return g
}

func autoCellSize(points []geom.Coord) float64 {
	if len(points) < 2 {
		return 1
	}
	r := geom.Rect{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		r.ExpandToContainCoord(p)
	}
	area := max(r.Width(), 1) * max(r.Height(), 1)
	size := max(1, math.Sqrt(area/float64(len(points)))*2)
	if math.IsInf(size, 0) || math.IsNaN(size) {
		return 1
	}
	return size
}

// Len implements [Index].
func (g *GridIndex) Len() int { return g.n }

// Pop implements [Index].
func (g *GridIndex) Pop(p geom.Coord) (int, bool) {
	if g.n == 0 {
		return 0, false
	}
	if g.linear != nil {
		g.n--
		return g.linear.Pop(p)
	}

	best, bestD := -1, math.Inf(1)
	visit := func(k cell) {
		for _, idx := range g.cells[k] {
			// dist2 overflows to +Inf for huge coordinates; the first point
			// seen still counts.
			d := dist2(g.points[idx], p)
			if best < 0 || d < bestD || (d == bestD && idx < best) {
				best, bestD = idx, d
			}
		}
	}
	scanAll := func() {
		best, bestD = -1, math.Inf(1)
		for k := range g.cells {
			visit(k)
		}
	}

	c, ok := cellOf(p, g.size)
	if !ok {
		scanAll()
	} else {
		start := max(0, c.x-g.max.x, g.min.x-c.x, c.y-g.max.y, g.min.y-c.y)
		end := max(c.x-g.min.x, g.max.x-c.x, c.y-g.min.y, g.max.y-c.y)
		for r := start; r <= end; r++ {
			// Ring r has 8r cells.
			if r > 0 && 8*r > len(g.cells) {
				scanAll()
				break
			}
			if r == 0 {
				visit(c)
			} else {
				for dx := -r; dx <= r; dx++ {
					visit(cell{c.x + dx, c.y - r})
					visit(cell{c.x + dx, c.y + r})
				}
				for dy := -r + 1; dy <= r-1; dy++ {
					visit(cell{c.x - r, c.y + dy})
					visit(cell{c.x + r, c.y + dy})
				}
			}
			// Anything in ring r+1 or beyond is at least r cells away.
			reach := float64(r) * g.size
			if best >= 0 && bestD < reach*reach {
				break
			}
		}
	}
	if best < 0 {
		scanAll()
	}

	g.remove(best)
	return best, true
}

func (g *GridIndex) remove(idx int) {
	k, _ := cellOf(g.points[idx], g.size)
	ids := g.cells[k]
	if i := slices.Index(ids, idx); i >= 0 {
		ids = slices.Delete(ids, i, i+1)
	}
	if len(ids) == 0 {
		delete(g.cells, k)
	} else {
		g.cells[k] = ids
	}
	g.n--
}
