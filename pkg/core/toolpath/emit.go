package toolpath

import (
	"math"

	"github.com/matzehuels/penplot/pkg/core/vector"
	"github.com/matzehuels/penplot/pkg/gcode"
)

// DefaultLiftThreshold is the cross-axis jump above which the pen is lifted
// between strokes of an optimized program.
const DefaultLiftThreshold = 2.0

// coincident is the distance under which a stroke continues the previous one.
const coincident = 1e-6

// EmitOptions controls G-code generation.
type EmitOptions struct {
	// Optimized keeps the pen down between consecutive strokes that touch or
	// that start within LiftThreshold rows of the previous end. Otherwise
	// every stroke is lifted, moved to and dropped individually.
	Optimized bool

	// LiftThreshold is the largest y jump travelled with the pen down.
	LiftThreshold float64
}

// Preamble returns the machine setup that opens every channel program.
func Preamble() gcode.Program {
	return gcode.Program{
		gcode.Absolute().WithComment("Absolute positioning"),
		gcode.Millimeters().WithComment("Units in mm"),
	}
}

// Emit converts p into G-code. The program opens with [Preamble] and ends
// with the pen lifted.
func Emit(p *ChannelProgram, m Machine, opts EmitOptions) gcode.Program {
	return append(Preamble(), Body(p, m, opts)...)
}

// Body returns the strokes of p without the preamble, ending with a lift.
// It is what the sequencer splices into a combined program.
func Body(p *ChannelProgram, m Machine, opts EmitOptions) gcode.Program {
	if opts.LiftThreshold <= 0 {
		opts.LiftThreshold = DefaultLiftThreshold
	}

	var out gcode.Program
	lift := func() { out = append(out, gcode.RapidZ(m.PenUp).WithComment("Lift pen")) }
	lower := func() { out = append(out, gcode.RapidZ(m.PenDown).WithComment("Lower pen")) }
	travel := func(pt vector.Point, why string) { out = append(out, gcode.Rapid(pt.X, pt.Y).WithComment(why)) }
	draw := func(pt vector.Point) { out = append(out, gcode.Feed(pt.X, pt.Y).WithComment("Draw line")) }

	if !opts.Optimized {
		for _, c := range p.Commands {
			lift()
			travel(c.Start, "Move to start")
			lower()
			draw(c.End)
		}
		lift()
		return out
	}

	penDown := false
	var cur vector.Point
	for _, c := range p.Commands {
		switch {
		case !penDown:
			lift()
			travel(c.Start, "Move to start")
			lower()
			penDown = true
		case vector.Near(cur, c.Start, coincident):
			// continues the previous stroke
		case math.Abs(c.Start.Y-cur.Y) <= opts.LiftThreshold:
			travel(c.Start, "Travel")
		default:
			lift()
			travel(c.Start, "Move to start")
			lower()
		}
		draw(c.End)
		cur = c.End
	}
	lift()
	return out
}

// Stats summarizes an emitted program.
type Stats struct {
	Strokes    int     `json:"strokes"`     // pen drops
	Lifts      int     `json:"lifts"`       // pen lifts between strokes
	DrawLength float64 `json:"draw_length"` // distance fed with G1
	Travel     float64 `json:"travel"`      // distance moved with G0
}

// Measure walks p from m.Origin with the pen up and counts pen drops, lifts
// and distances. The closing lift is not counted.
func Measure(p gcode.Program, m Machine) Stats {
	var (
		st   Stats
		cur  = m.Origin
		down bool
	)
	for _, in := range p {
		if !in.IsMove() {
			continue
		}
		if in.Has(gcode.AxisZ) {
			isDown := in.Z <= m.PenDown
			switch {
			case isDown && !down:
				st.Strokes++
			case !isDown && down:
				st.Lifts++
			}
			down = isDown
		}
		next := cur
		if in.Has(gcode.AxisX) {
			next.X = in.X
		}
		if in.Has(gcode.AxisY) {
			next.Y = in.Y
		}
		if in.Op == gcode.OpFeed {
			st.DrawLength += cur.DistanceFrom(next)
		} else {
			st.Travel += cur.DistanceFrom(next)
		}
		cur = next
	}
	if st.Lifts > 0 && !down {
		st.Lifts--
	}
	return st
}
