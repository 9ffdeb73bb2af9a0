// Package toolpath compiles merged segments into per-channel draw programs,
// orders them into short tours, and emits them as G-code.
//
// The flow for one channel is:
//
//	segs := merge.Merge(...)
//	prog := toolpath.Compile("Red", segs)            // input order
//	prog, rep, err := toolpath.Optimize(ctx, prog, opts) // nearest-neighbour tour
//	code, stats := toolpath.Emit(prog, machine, toolpath.EmitOptions{Optimized: true})
//
// [FromProgram] recovers the draw commands from emitted (or hand-written)
// G-code, so programs on disk can be re-optimized.
package toolpath

import (
	"github.com/matzehuels/penplot/pkg/core/vector"
)

// Machine holds the plotter parameters used when emitting G-code.
type Machine struct {
	PenUp    float64      `json:"pen_up" toml:"pen_up"`
	PenDown  float64      `json:"pen_down" toml:"pen_down"`
	FeedRate float64      `json:"feed_rate" toml:"feed_rate"`
	Origin   vector.Point `json:"origin" toml:"-"`
}

// Default machine parameters.
const (
	DefaultPenUp    = 20.0
	DefaultPenDown  = 0.0
	DefaultFeedRate = 1000.0
)

// DefaultMachine returns the default machine parameters.
func DefaultMachine() Machine {
	return Machine{PenUp: DefaultPenUp, PenDown: DefaultPenDown, FeedRate: DefaultFeedRate}
}

// DrawCommand is one pen-down stroke.
type DrawCommand struct {
	Start vector.Point `json:"start"`
	End   vector.Point `json:"end"`
}

// Finite reports whether both endpoints are finite.
func (c DrawCommand) Finite() bool {
	return vector.Finite(c.Start) && vector.Finite(c.End)
}

// Length returns the stroke length.
func (c DrawCommand) Length() float64 {
	return c.Start.DistanceFrom(c.End)
}

// ChannelProgram is the ordered list of strokes for one color channel.
type ChannelProgram struct {
	Name     string        `json:"name"`
	Commands []DrawCommand `json:"commands"`
}

// Clone returns a deep copy of p.
func (p *ChannelProgram) Clone() *ChannelProgram {
	return &ChannelProgram{Name: p.Name, Commands: append([]DrawCommand(nil), p.Commands...)}
}

// Len returns the number of commands.
func (p *ChannelProgram) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Commands)
}

// Compile turns segments into draw commands without reordering them.
func Compile(name string, segs []vector.Segment) *ChannelProgram {
	cmds := make([]DrawCommand, len(segs))
	for i, s := range segs {
		cmds[i] = DrawCommand{Start: s.P1, End: s.P2}
	}
	return &ChannelProgram{Name: name, Commands: cmds}
}

// Travel returns the total pen-up distance of drawing cmds in order,
// starting at start.
func Travel(cmds []DrawCommand, start vector.Point) float64 {
	total := 0.0
	cur := start
	for _, c := range cmds {
		total += cur.DistanceFrom(c.Start)
		cur = c.End
	}
	return total
}
