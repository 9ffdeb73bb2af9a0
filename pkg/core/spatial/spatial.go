// Package spatial answers the two proximity questions of the toolpath
// pipeline behind small capability interfaces:
//
//   - [Connector]: which pairs of discs are within a tolerance of touching
//     (used by the connectivity reducer)
//   - [Index]: which remaining point is nearest to a cursor (used by the tour
//     optimizer)
//
// Each capability has a quadratic reference backend and a uniform-grid
// backend. Both backends return identical results, including tie order, so
// callers can switch between them freely.
package spatial

import (
	"fmt"
	"math"

	"github.com/jbeda/geom"
)

// Backend selects an implementation of [Connector] and [Index].
type Backend string

const (
	BackendNaive Backend = "naive"
	BackendGrid  Backend = "grid"
)

// DefaultBackend is used when no backend is configured.
const DefaultBackend = BackendGrid

// ValidBackends lists the supported backends.
var ValidBackends = map[Backend]bool{
	BackendNaive: true,
	BackendGrid:  true,
}

// ParseBackend validates s as a backend name. An empty string selects
// [DefaultBackend].
func ParseBackend(s string) (Backend, error) {
	if s == "" {
		return DefaultBackend, nil
	}
	b := Backend(s)
	if !ValidBackends[b] {
		return "", fmt.Errorf("unknown spatial backend %q (want naive or grid)", s)
	}
	return b, nil
}

// Disc is a circle used for connectivity queries.
type Disc struct {
	Center geom.Coord
	Radius float64
}

// Touching reports whether a and b are within eps of touching:
// dist(a, b) <= ra + rb + eps. The boundary is inclusive.
func Touching(a, b Disc, eps float64) bool {
	return a.Center.DistanceFrom(b.Center) <= a.Radius+b.Radius+eps
}

// cell is an integer grid coordinate.
type cell struct{ x, y int }

// maxCell bounds cell coordinates so ring arithmetic on them cannot
// overflow an int.
const maxCell = 1 << 40

// cellOf returns the cell holding p. ok is false when p lies too far out
// for the grid; callers then fall back to a full scan.
func cellOf(p geom.Coord, size float64) (c cell, ok bool) {
	x, y := math.Floor(p.X/size), math.Floor(p.Y/size)
	if !(math.Abs(x) <= maxCell && math.Abs(y) <= maxCell) {
		return cell{}, false
	}
	return cell{int(x), int(y)}, true
}

func dist2(a, b geom.Coord) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx + dy*dy
}
