// Package reduce joins nearby circle primitives into line segments.
//
// Every pair of circles whose centres are within r1+r2+ε of each other is
// connected. Each connection becomes a segment between the two centres, and
// every circle that took part in a connection is dropped. The connectivity
// graph is kept in the result for debugging (see the graph command).
package reduce

import (
	"github.com/matzehuels/penplot/pkg/core/spatial"
	"github.com/matzehuels/penplot/pkg/core/vector"
)

// DefaultEpsilon is the default adjacency tolerance in mask pixels.
const DefaultEpsilon = 1.0

// Options configures a reduction.
type Options struct {
	// Epsilon is added to the sum of radii when testing adjacency.
	Epsilon float64

	// Connector finds adjacent pairs. Nil uses the grid backend.
	Connector spatial.Connector
}

// Graph is the undirected connectivity graph over the input circles. Node i
// is Circles[i]; edges are index pairs with I < J in ascending order.
type Graph struct {
	Circles []vector.Circle
	Edges   []spatial.Pair
}

// Degree returns the number of edges touching each node.
func (g Graph) Degree() []int {
	deg := make([]int, len(g.Circles))
	for _, e := range g.Edges {
		deg[e.I]++
		deg[e.J]++
	}
	return deg
}

// Result is the output of [Reduce].
type Result struct {
	// Primitives holds the untouched primitives in input order, followed by
	// one segment per graph edge.
	Primitives []vector.Primitive
	Graph      Graph
	Joined     int // circles consumed by at least one connection
}

// Reduce connects adjacent circles in prims.
func Reduce(prims []vector.Primitive, opts Options) Result {
	conn := opts.Connector
	if conn == nil {
		conn = spatial.GridConnector{}
	}

	circles, positions := vector.Circles(prims)
	discs := make([]spatial.Disc, len(circles))
	for i, c := range circles {
		discs[i] = spatial.Disc{Center: c.Center, Radius: c.Radius}
	}
	g := Graph{Circles: circles, Edges: conn.Pairs(discs, opts.Epsilon)}

	joined := make(map[int]bool)
	for _, e := range g.Edges {
		joined[positions[e.I]] = true
		joined[positions[e.J]] = true
	}

	out := make([]vector.Primitive, 0, len(prims)-len(joined)+len(g.Edges))
	for i, p := range prims {
		if !joined[i] {
			out = append(out, p)
		}
	}
	for _, e := range g.Edges {
		out = append(out, vector.Segment{P1: circles[e.I].Center, P2: circles[e.J].Center})
	}

	return Result{Primitives: out, Graph: g, Joined: len(joined)}
}
