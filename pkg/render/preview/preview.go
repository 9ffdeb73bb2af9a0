// Package preview draws what a plotter would draw.
//
// [Trace] replays a G-code program and records every move as a [Stroke]:
// feeds with the pen down are ink, everything else is travel. Strokes can
// then be written as SVG ([WriteSVG]) or rasterized to PNG ([WritePNG]).
// [WritePrimitives] renders extracted geometry before it becomes G-code.
package preview

import (
	"strings"

	"github.com/jbeda/geom"

	"github.com/matzehuels/penplot/pkg/core/toolpath"
	"github.com/matzehuels/penplot/pkg/core/vector"
	"github.com/matzehuels/penplot/pkg/gcode"
)

// Kind classifies a stroke.
type Kind int

const (
	Ink    Kind = iota // pen down, drawing
	Travel             // pen up, or a pen-down rapid between rows
)

// Stroke is one straight move.
type Stroke struct {
	From, To vector.Point
	Kind     Kind
	Color    string // hex colour of the mounted pen
}

// Options configures tracing and drawing.
type Options struct {
	Machine toolpath.Machine

	// Color is the pen colour until a channel comment selects another.
	// Empty means black.
	Color string

	// ShowTravel draws travel moves as thin dashed lines.
	ShowTravel bool

	// Scale multiplies program units into output pixels. Zero means 4.
	Scale float64
}

const defaultScale = 4.0

// Palette maps pen names to display colours.
var Palette = map[string]string{
	"Black":     "#000000",
	"Grey":      "#808080",
	"Red":       "#e02020",
	"Green":     "#20a040",
	"Blue":      "#2040e0",
	"Cyan":      "#00b8d0",
	"Purple":    "#8030a0",
	"Yellow":    "#e0c000",
	"Orange":    "#f08020",
	"Lightgrey": "#c8c8c8",
	"Teal":      "#008080",
	"Azure":     "#3090ff",
	"Pink":      "#f080b0",
}

// ColorOf returns the palette colour for a channel, or black.
func ColorOf(channel string) string {
	if c, ok := Palette[channel]; ok {
		return c
	}
	return "#000000"
}

// Trace replays p. The pen counts as down while Z is closer to PenDown than
// to PenUp. A comment of the form "channel <Name>", as written by the
// sequencer, switches the stroke colour.
func Trace(p gcode.Program, opts Options) []Stroke {
	m := opts.Machine
	mid := (m.PenUp + m.PenDown) / 2
	color := opts.Color
	if color == "" {
		color = "#000000"
	}

	var (
		out  []Stroke
		cur  = m.Origin
		down bool
	)
	for _, in := range p {
		if in.Op == gcode.OpComment {
			if name, ok := strings.CutPrefix(in.Comment, "channel "); ok {
				color = ColorOf(name)
			}
			continue
		}
		if !in.IsMove() {
			continue
		}
		if in.Has(gcode.AxisZ) {
			down = in.Z < mid
		}
		next := cur
		if in.Has(gcode.AxisX) {
			next.X = in.X
		}
		if in.Has(gcode.AxisY) {
			next.Y = in.Y
		}
		if next == cur {
			continue
		}
		kind := Travel
		if in.Op == gcode.OpFeed && down {
			kind = Ink
		}
		out = append(out, Stroke{From: cur, To: next, Kind: kind, Color: color})
		cur = next
	}
	return out
}

// Bounds returns the box around all strokes of the selected kinds.
func Bounds(strokes []Stroke, withTravel bool) (geom.Rect, bool) {
	r := geom.NilRect()
	ok := false
	for _, s := range strokes {
		if s.Kind == Travel && !withTravel {
			continue
		}
		r.ExpandToContainCoord(s.From)
		r.ExpandToContainCoord(s.To)
		ok = true
	}
	return r, ok
}

// InkLength sums the length of ink strokes.
func InkLength(strokes []Stroke) float64 {
	var total float64
	for _, s := range strokes {
		if s.Kind == Ink {
			total += s.From.DistanceFrom(s.To)
		}
	}
	return total
}
