package toolpath

import (
	"github.com/matzehuels/penplot/pkg/core/vector"
	"github.com/matzehuels/penplot/pkg/gcode"
)

// FromProgram recovers the draw commands of a G-code program. Every G1 is a
// stroke from the current position to its target; G0 only moves the
// position. Parsing starts at origin.
func FromProgram(name string, p gcode.Program, origin vector.Point) *ChannelProgram {
	out := &ChannelProgram{Name: name}
	cur := origin
	for _, in := range p {
		if !in.IsMove() {
			continue
		}
		next := cur
		if in.Has(gcode.AxisX) {
			next.X = in.X
		}
		if in.Has(gcode.AxisY) {
			next.Y = in.Y
		}
		if in.Op == gcode.OpFeed && (in.Has(gcode.AxisX) || in.Has(gcode.AxisY)) {
			out.Commands = append(out.Commands, DrawCommand{Start: cur, End: next})
		}
		cur = next
	}
	return out
}
