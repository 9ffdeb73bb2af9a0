// Package sequence combines per-channel programs into one multi-pen program.
//
// Channels are drawn in lexicographic order of their names. Before a
// channel is drawn its pen is picked up from a holder; before the next pen
// is picked up the previous one is returned to its holder. Holder positions
// come from a [ToolTable]. Channels without a holder, channels on the
// disabled list and empty channels are dropped before sequencing starts, so
// they never break a pickup/return pair.
package sequence

import (
	"maps"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/penplot/pkg/core/toolpath"
	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/gcode"
)

// ToolTable maps a channel name to the X coordinate of its pen holder.
type ToolTable map[string]float64

// DefaultToolTable returns the holder layout of the reference plotter: 13
// pens spaced 10 mm apart along X.
func DefaultToolTable() ToolTable {
	return ToolTable{
		"Black":     0,
		"Grey":      10,
		"Red":       20,
		"Green":     30,
		"Blue":      40,
		"Cyan":      50,
		"Purple":    60,
		"Yellow":    70,
		"Orange":    80,
		"Lightgrey": 90,
		"Teal":      100,
		"Azure":     110,
		"Pink":      120,
	}
}

// Names returns the channel names in the table, sorted.
func (t ToolTable) Names() []string {
	return slices.Sorted(maps.Keys(t))
}

// Channel is one channel handed to the sequencer.
type Channel struct {
	Program *toolpath.ChannelProgram

	// Body is the channel's emitted strokes. When nil it is generated from
	// Program with optimized emission.
	Body gcode.Program
}

// Options configures [Sequence].
type Options struct {
	Machine toolpath.Machine

	// HolderY is the Y coordinate shared by all holders.
	HolderY float64

	// Disabled names channels that must not be drawn even if they have a
	// holder.
	Disabled []string

	// LiftThreshold is passed to emission when a channel has no Body.
	LiftThreshold float64

	Logger *log.Logger
}

// Kind is the type of a pen-change maneuver.
type Kind string

const (
	KindPickup Kind = "pickup"
	KindReturn Kind = "return"
)

// Maneuver records a pen change in emission order.
type Maneuver struct {
	Kind     Kind    `json:"kind"`
	Channel  string  `json:"channel"`
	Position float64 `json:"position"`
}

// Skip records a channel that was left out and why.
type Skip struct {
	Channel string `json:"channel"`
	Reason  string `json:"reason"`
	Err     error  `json:"-"`
}

// Skip reasons.
const (
	ReasonUnknown  = "no holder position"
	ReasonDisabled = "disabled"
	ReasonEmpty    = "empty"
)

// state is the fold accumulator: the holder of the pen currently mounted,
// or nil before the first pickup.
type state struct {
	holder  *float64
	channel string
}

// Sequence builds the combined program.
//
// It returns an error with code [errors.ErrCodeNoChannels] when no channel
// survives filtering.
func Sequence(channels []Channel, table ToolTable, opts Options) (*Combined, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	accepted, skipped := filter(channels, table, opts.Disabled)
	for _, s := range skipped {
		logger.Warn("skipping channel", "channel", s.Channel, "reason", s.Reason)
	}
	if len(accepted) == 0 {
		return nil, errors.New(errors.ErrCodeNoChannels, "no channel can be sequenced (%d skipped)", len(skipped))
	}

	c := &Combined{Skipped: skipped}
	m := opts.Machine
	c.emit(setup(m)...)

	final := fold(accepted, state{}, func(acc state, ch Channel) state {
		name := ch.Program.Name
		pos := table[name]
		if acc.holder != nil {
			c.maneuver(KindReturn, acc.channel, *acc.holder, m, opts.HolderY)
		}
		c.maneuver(KindPickup, name, pos, m, opts.HolderY)

		body := ch.Body
		if body == nil {
			body = toolpath.Body(ch.Program, m, toolpath.EmitOptions{Optimized: true, LiftThreshold: opts.LiftThreshold})
		}
		c.emit(gcode.Comment("channel " + name))
		c.emit(body...)
		c.Channels = append(c.Channels, name)
		return state{holder: &pos, channel: name}
	})

	c.maneuver(KindReturn, final.channel, *final.holder, m, opts.HolderY)
	c.emit(teardown(m)...)

	logger.Info("sequenced channels", "channels", len(c.Channels), "skipped", len(skipped), "instructions", len(c.program))
	return c, nil
}

// fold applies step to each channel in order, threading the accumulator.
func fold(chs []Channel, init state, step func(state, Channel) state) state {
	acc := init
	for _, ch := range chs {
		acc = step(acc, ch)
	}
	return acc
}

// filter sorts channels by name and drops the ones that cannot be drawn.
func filter(channels []Channel, table ToolTable, disabled []string) (accepted []Channel, skipped []Skip) {
	sorted := slices.Clone(channels)
	sorted = slices.DeleteFunc(sorted, func(ch Channel) bool { return ch.Program == nil })
	slices.SortStableFunc(sorted, func(a, b Channel) int {
		switch {
		case a.Program.Name < b.Program.Name:
			return -1
		case a.Program.Name > b.Program.Name:
			return 1
		}
		return 0
	})

	for _, ch := range sorted {
		name := ch.Program.Name
		switch {
		case slices.Contains(disabled, name):
			skipped = append(skipped, Skip{Channel: name, Reason: ReasonDisabled})
		case !hasHolder(table, name):
			skipped = append(skipped, Skip{
				Channel: name,
				Reason:  ReasonUnknown,
				Err:     errors.New(errors.ErrCodeUnknownChannel, "channel %s has no holder position", name),
			})
		case ch.Program.Len() == 0:
			skipped = append(skipped, Skip{Channel: name, Reason: ReasonEmpty})
		default:
			accepted = append(accepted, ch)
		}
	}
	return accepted, skipped
}

func hasHolder(t ToolTable, name string) bool {
	_, ok := t[name]
	return ok
}

func setup(m toolpath.Machine) gcode.Program {
	return gcode.Program{
		gcode.Absolute().WithComment("Absolute positioning"),
		gcode.Millimeters().WithComment("Units in mm"),
		gcode.PlaneXY().WithComment("XY plane"),
		gcode.FeedPerMinute().WithComment("Feed per minute"),
		gcode.Rapid(m.Origin.X, m.Origin.Y).WithComment("Initial position"),
		gcode.FeedRate(m.FeedRate),
	}
}

func teardown(m toolpath.Machine) gcode.Program {
	return gcode.Program{
		gcode.RapidZ(m.PenUp).WithComment("Lift"),
		gcode.Rapid(m.Origin.X, m.Origin.Y).WithComment("Return to origin"),
		gcode.ServoOff().WithComment("Stop servo"),
	}
}
