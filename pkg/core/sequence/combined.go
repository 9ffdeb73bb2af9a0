package sequence

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/matzehuels/penplot/pkg/core/toolpath"
	"github.com/matzehuels/penplot/pkg/gcode"
)

// Combined is the multi-pen program produced by [Sequence]. It can be
// written once.
type Combined struct {
	program   gcode.Program
	Maneuvers []Maneuver `json:"maneuvers"`
	Channels  []string   `json:"channels"`
	Skipped   []Skip     `json:"skipped,omitempty"`

	once    sync.Once
	written atomic.Bool
}

// Program returns a copy of the combined instructions.
func (c *Combined) Program() gcode.Program {
	return append(gcode.Program(nil), c.program...)
}

// Count returns the number of maneuvers of kind k.
func (c *Combined) Count(k Kind) int {
	n := 0
	for _, m := range c.Maneuvers {
		if m.Kind == k {
			n++
		}
	}
	return n
}

// WriteTo writes the program to w. Only the first call writes; later calls
// return an error.
func (c *Combined) WriteTo(w io.Writer) (int64, error) {
	var (
		n     int64
		err   error
		first bool
	)
	c.once.Do(func() {
		first = true
		c.written.Store(true)
		n, err = c.program.WriteTo(w)
	})
	if !first {
		return 0, fmt.Errorf("combined program already written")
	}
	return n, err
}

// Written reports whether WriteTo has been called. It is safe to call
// concurrently with WriteTo.
func (c *Combined) Written() bool { return c.written.Load() }

func (c *Combined) emit(in ...gcode.Instruction) {
	c.program = append(c.program, in...)
}

// maneuver emits a pickup or return at holder x. Both move above the
// holder, lower, switch the gripper and lift again.
func (c *Combined) maneuver(k Kind, channel string, x float64, m toolpath.Machine, holderY float64) {
	grip := gcode.ServoOn().WithComment("Close gripper")
	verb := "Pick up"
	if k == KindReturn {
		grip = gcode.ServoOff().WithComment("Open gripper")
		verb = "Return"
	}
	c.emit(
		gcode.Comment(fmt.Sprintf("%s %s pen at X%g", verb, channel, x)),
		gcode.RapidZ(m.PenUp).WithComment("Lift"),
		gcode.Rapid(x, holderY).WithComment("Move to holder"),
		gcode.RapidZ(m.PenDown).WithComment("Lower to holder"),
		grip,
		gcode.RapidZ(m.PenUp).WithComment("Lift"),
	)
	c.Maneuvers = append(c.Maneuvers, Maneuver{Kind: k, Channel: channel, Position: x})
}
