package spatial

import (
	"cmp"
	"slices"
)

// Pair is an unordered pair of disc indices with I < J.
type Pair struct{ I, J int }

// Connector finds every pair of discs for which [Touching] holds.
// Pairs are returned sorted by (I, J).
type Connector interface {
	Pairs(discs []Disc, eps float64) []Pair
}

// NewConnector returns the connector for backend b.
func NewConnector(b Backend) Connector {
	if b == BackendNaive {
		return NaiveConnector{}
	}
	return GridConnector{}
}

// NaiveConnector compares every pair of discs.
type NaiveConnector struct{}

// Pairs implements [Connector].
func (NaiveConnector) Pairs(discs []Disc, eps float64) []Pair {
	var out []Pair
	for i := range discs {
		for j := i + 1; j < len(discs); j++ {
			if Touching(discs[i], discs[j], eps) {
				out = append(out, Pair{i, j})
			}
		}
	}
	return out
}

// GridConnector buckets discs into square cells as wide as the largest
// possible connection, so only neighbouring cells need to be compared.
// Discs too far out for the grid send the whole query to [NaiveConnector].
type GridConnector struct{}

// Pairs implements [Connector].
func (GridConnector) Pairs(discs []Disc, eps float64) []Pair {
	if len(discs) < 2 {
		return nil
	}

	maxR := 0.0
	for _, d := range discs {
		maxR = max(maxR, d.Radius)
	}
	size := 2*maxR + eps
	if size <= 0 {
		size = 1
	}

	cells := make(map[cell][]int)
	at := make([]cell, len(discs))
	for i, d := range discs {
		c, ok := cellOf(d.Center, size)
		if !ok {
			return NaiveConnector{}.Pairs(discs, eps)
		}
		at[i] = c
		cells[c] = append(cells[c], i)
	}

	var out []Pair
	for i, d := range discs {
		c := at[i]
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				for _, j := range cells[cell{c.x + dx, c.y + dy}] {
					if j > i && Touching(d, discs[j], eps) {
						out = append(out, Pair{i, j})
					}
				}
			}
		}
	}

	slices.SortFunc(out, func(a, b Pair) int {
		if c := cmp.Compare(a.I, b.I); c != 0 {
			return c
		}
		return cmp.Compare(a.J, b.J)
	})
	return out
}
