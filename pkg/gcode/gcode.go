// Package gcode models the small G-code dialect spoken by the plotter.
//
// A [Program] is an ordered list of [Instruction] values. Only the commands
// the pipeline emits are supported:
//
//	G90          absolute positioning
//	G21          millimetre units
//	G17          XY plane
//	G94          feed per minute
//	G0 X Y Z     rapid move (pen lift/drop and travel)
//	G1 X Y       feed move (drawing)
//	M3 / M5      servo on/off (pen gripper)
//	F<rate>      feed rate
//
// Anything after ';' is a comment. [Parse] reads programs back, skipping and
// reporting malformed lines instead of failing the whole file.
package gcode

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Op is an instruction opcode.
type Op string

const (
	OpComment       Op = ";"
	OpAbsolute      Op = "G90"
	OpMillimeters   Op = "G21"
	OpPlaneXY       Op = "G17"
	OpFeedPerMinute Op = "G94"
	OpRapid         Op = "G0"
	OpFeed          Op = "G1"
	OpServoOn       Op = "M3"
	OpServoOff      Op = "M5"
	OpFeedRate      Op = "F"
)

// Axis is a bit set of the coordinates carried by a move.
type Axis uint8

const (
	AxisX Axis = 1 << iota
	AxisY
	AxisZ
	AxisF
)

// Instruction is one line of a program.
type Instruction struct {
	Op      Op
	Axes    Axis
	X, Y, Z float64
	F       float64
	Comment string
}

// Has reports whether all axes in a are set.
func (in Instruction) Has(a Axis) bool { return in.Axes&a == a }

// WithComment returns in with a trailing comment.
func (in Instruction) WithComment(c string) Instruction {
	in.Comment = c
	return in
}

// IsMove reports whether in is a G0 or G1.
func (in Instruction) IsMove() bool { return in.Op == OpRapid || in.Op == OpFeed }

// String formats in as one line of G-code without a newline.
func (in Instruction) String() string {
	var b strings.Builder
	if in.Op != OpComment {
		if in.Op == OpFeedRate {
			b.WriteString("F")
			b.WriteString(formatFloat(in.F))
		} else {
			b.WriteString(string(in.Op))
		}
		if in.Has(AxisX) {
			b.WriteString(" X" + formatFloat(in.X))
		}
		if in.Has(AxisY) {
			b.WriteString(" Y" + formatFloat(in.Y))
		}
		if in.Has(AxisZ) {
			b.WriteString(" Z" + formatFloat(in.Z))
		}
		if in.Op != OpFeedRate && in.Has(AxisF) {
			b.WriteString(" F" + formatFloat(in.F))
		}
	}
	if in.Comment != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("; ")
		b.WriteString(in.Comment)
	}
	return b.String()
}

// formatFloat prints v with at most three decimals and no trailing zeros.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}

// Comment returns a comment-only line.
func Comment(text string) Instruction { return Instruction{Op: OpComment, Comment: text} }

// Absolute returns G90.
func Absolute() Instruction { return Instruction{Op: OpAbsolute} }

// Millimeters returns G21.
func Millimeters() Instruction { return Instruction{Op: OpMillimeters} }

// PlaneXY returns G17.
func PlaneXY() Instruction { return Instruction{Op: OpPlaneXY} }

// FeedPerMinute returns G94.
func FeedPerMinute() Instruction { return Instruction{Op: OpFeedPerMinute} }

// Rapid returns a G0 travel to (x, y).
func Rapid(x, y float64) Instruction {
	return Instruction{Op: OpRapid, Axes: AxisX | AxisY, X: x, Y: y}
}

// RapidZ returns a G0 to height z.
func RapidZ(z float64) Instruction {
	return Instruction{Op: OpRapid, Axes: AxisZ, Z: z}
}

// Feed returns a G1 drawing move to (x, y).
func Feed(x, y float64) Instruction {
	return Instruction{Op: OpFeed, Axes: AxisX | AxisY, X: x, Y: y}
}

// ServoOn returns M3.
func ServoOn() Instruction { return Instruction{Op: OpServoOn} }

// ServoOff returns M5.
func ServoOff() Instruction { return Instruction{Op: OpServoOff} }

// FeedRate returns F<rate>.
func FeedRate(rate float64) Instruction { return Instruction{Op: OpFeedRate, Axes: AxisF, F: rate} }

// Program is an ordered instruction list.
type Program []Instruction

// WriteTo writes p as newline-terminated text.
func (p Program) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, in := range p {
		k, err := bw.WriteString(in.String() + "\n")
		n += int64(k)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// String returns p as text.
func (p Program) String() string {
	var b strings.Builder
	p.WriteTo(&b)
	return b.String()
}

// Count returns the number of instructions with opcode op.
func (p Program) Count(op Op) int {
	n := 0
	for _, in := range p {
		if in.Op == op {
			n++
		}
	}
	return n
}
