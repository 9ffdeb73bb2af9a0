// Package extract converts raster masks into vector primitives.
//
// One [Extractor] capability has three strategies:
//
//   - [StrategyEdgePoints]: a small circle on every foreground pixel, to be
//     joined into strokes by the connectivity reducer
//   - [StrategyHatchFill]: horizontal scanline segments covering every traced
//     region, skipping holes
//   - [StrategyOutlinePolygon]: the traced boundary of every region
//
// Region boundaries follow pixel edges exactly, so hatch-fill covers the
// foreground pixels of a mask and nothing else. Outline-polygon can instead
// emit potrace curves (github.com/dennwc/gotrace) when [Params.Smooth] is
// set.
package extract

import (
	"context"
	"fmt"

	"github.com/matzehuels/penplot/pkg/core/raster"
	"github.com/matzehuels/penplot/pkg/core/vector"
	"github.com/matzehuels/penplot/pkg/errors"
)

// Strategy names an extraction method.
type Strategy string

const (
	StrategyEdgePoints     Strategy = "edge-points"
	StrategyHatchFill      Strategy = "hatch-fill"
	StrategyOutlinePolygon Strategy = "outline-polygon"
)

// Default parameter values.
const (
	DefaultStrategy        = StrategyHatchFill
	DefaultRadius          = 1.0
	DefaultStep            = 1
	DefaultThreshold uint8 = raster.DefaultThreshold
)

// ValidStrategies lists the supported strategies.
var ValidStrategies = map[Strategy]bool{
	StrategyEdgePoints:     true,
	StrategyHatchFill:      true,
	StrategyOutlinePolygon: true,
}

// Params tunes the extraction strategies. Zero values select defaults.
type Params struct {
	// Threshold separates foreground (>=) from background.
	Threshold uint8 `json:"threshold,omitempty"`

	// Radius of the circles emitted by edge-points.
	Radius float64 `json:"radius,omitempty"`

	// Step is the row spacing of hatch-fill, in pixels.
	Step int `json:"step,omitempty"`

	// EdgeDetect runs a Sobel filter before edge-points so only region
	// boundaries are sampled.
	EdgeDetect bool `json:"edge_detect,omitempty"`

	// Smooth makes outline-polygon emit flattened potrace curves instead of
	// the pixel-exact boundary.
	Smooth bool `json:"smooth,omitempty"`
}

// WithDefaults returns p with zero fields replaced by defaults.
func (p Params) WithDefaults() Params {
	if p.Threshold == 0 {
		p.Threshold = DefaultThreshold
	}
	if p.Radius <= 0 {
		p.Radius = DefaultRadius
	}
	if p.Step <= 0 {
		p.Step = DefaultStep
	}
	return p
}

// Extractor turns a mask into primitives. The returned slice is owned by the
// caller; extracting the same mask twice yields equal results.
type Extractor interface {
	Strategy() Strategy
	Extract(ctx context.Context, m *raster.Mask) ([]vector.Primitive, error)
}

// New returns the extractor for strategy s.
func New(s Strategy, p Params) (Extractor, error) {
	p = p.WithDefaults()
	switch s {
	case StrategyEdgePoints:
		return &EdgePoints{params: p}, nil
	case StrategyHatchFill:
		return &HatchFill{params: p}, nil
	case StrategyOutlinePolygon:
		return &OutlinePolygon{params: p}, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown extraction strategy %q", s)
}

// ParseStrategy validates s. An empty string selects [DefaultStrategy].
func ParseStrategy(s string) (Strategy, error) {
	if s == "" {
		return DefaultStrategy, nil
	}
	st := Strategy(s)
	if !ValidStrategies[st] {
		return "", fmt.Errorf("unknown strategy %q (want edge-points, hatch-fill or outline-polygon)", s)
	}
	return st, nil
}

// EdgePoints emits one circle per foreground pixel in row-major order.
type EdgePoints struct {
	params Params
}

// Strategy implements [Extractor].
func (e *EdgePoints) Strategy() Strategy { return StrategyEdgePoints }

// Extract implements [Extractor].
func (e *EdgePoints) Extract(ctx context.Context, m *raster.Mask) ([]vector.Primitive, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	src := m
	if e.params.EdgeDetect {
		src = raster.Edges(m, e.params.Threshold)
	}

	var out []vector.Primitive
	for y := 0; y < src.Height(); y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < src.Width(); x++ {
			if src.Foreground(x, y, e.params.Threshold) {
				out = append(out, vector.Circle{
					Center: vector.Point{X: float64(x), Y: float64(y)},
					Radius: e.params.Radius,
				})
			}
		}
	}
	return out, nil
}

// OutlinePolygon emits every traced contour, outer boundaries and holes
// alike, in trace order. Params.Smooth selects [TraceSmooth] over [Trace].
type OutlinePolygon struct {
	params Params
}

// Strategy implements [Extractor].
func (o *OutlinePolygon) Strategy() Strategy { return StrategyOutlinePolygon }

// Extract implements [Extractor].
func (o *OutlinePolygon) Extract(ctx context.Context, m *raster.Mask) ([]vector.Primitive, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	trace := Trace
	if o.params.Smooth {
		trace = TraceSmooth
	}
	contours, err := trace(ctx, m, o.params.Threshold)
	if err != nil {
		return nil, err
	}
	out := make([]vector.Primitive, 0, len(contours))
	for _, c := range contours {
		out = append(out, c)
	}
	return out, nil
}
