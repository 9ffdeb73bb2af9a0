package gcode

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/matzehuels/penplot/pkg/errors"
)

// LineError describes a line that could not be parsed.
type LineError struct {
	Line int    // 1-based line number
	Text string // the raw line
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *LineError) Unwrap() error { return e.Err }

var opcodes = map[string]Op{
	"G0": OpRapid, "G00": OpRapid,
	"G1": OpFeed, "G01": OpFeed,
	"G17": OpPlaneXY,
	"G21": OpMillimeters,
	"G90": OpAbsolute,
	"G94": OpFeedPerMinute,
	"M3":  OpServoOn, "M03": OpServoOn,
	"M5": OpServoOff, "M05": OpServoOff,
}

// Parse reads a program from r.
//
// Malformed lines are skipped and returned as line errors. The returned
// error is non-nil only when r cannot be read or when no instruction other
// than comments could be parsed; the latter is an [errors.ErrCodeParse].
func Parse(r io.Reader) (Program, []*LineError, error) {
	var (
		prog   Program
		bad    []*LineError
		usable int
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		raw := sc.Text()
		in, ok, err := ParseLine(raw)
		if err != nil {
			bad = append(bad, &LineError{Line: n, Text: raw, Err: err})
			continue
		}
		if !ok {
			continue
		}
		if in.Op != OpComment {
			usable++
		}
		prog = append(prog, in)
	}
	if err := sc.Err(); err != nil {
		return nil, bad, fmt.Errorf("read program: %w", err)
	}

	if usable == 0 {
		if len(bad) > 0 {
			return nil, bad, errors.Wrap(errors.ErrCodeParse, bad[0], "no parseable instructions (%d malformed lines)", len(bad))
		}
		return nil, nil, errors.New(errors.ErrCodeParse, "program is empty")
	}
	return prog, bad, nil
}

// ParseLine parses a single line. ok is false for blank lines.
func ParseLine(line string) (in Instruction, ok bool, err error) {
	code, comment, _ := strings.Cut(line, ";")
	code = stripParens(code)
	comment = strings.TrimSpace(comment)

	fields := strings.Fields(strings.ToUpper(code))
	if len(fields) == 0 {
		if comment == "" {
			return Instruction{}, false, nil
		}
		return Comment(comment), true, nil
	}

	head := fields[0]
	if strings.HasPrefix(head, "F") {
		f, err := parseNumber(head[1:])
		if err != nil {
			return Instruction{}, false, err
		}
		if len(fields) > 1 {
			return Instruction{}, false, fmt.Errorf("unexpected word %q after feed rate", fields[1])
		}
		return FeedRate(f).WithComment(comment), true, nil
	}

	op, known := opcodes[head]
	if !known {
		return Instruction{}, false, fmt.Errorf("unsupported command %q", head)
	}
	in = Instruction{Op: op, Comment: comment}

	for _, w := range fields[1:] {
		if len(w) < 2 {
			return Instruction{}, false, fmt.Errorf("malformed word %q", w)
		}
		v, err := parseNumber(w[1:])
		if err != nil {
			return Instruction{}, false, err
		}
		switch w[0] {
		case 'X':
			in.X, in.Axes = v, in.Axes|AxisX
		case 'Y':
			in.Y, in.Axes = v, in.Axes|AxisY
		case 'Z':
			in.Z, in.Axes = v, in.Axes|AxisZ
		case 'F':
			in.F, in.Axes = v, in.Axes|AxisF
		default:
			return Instruction{}, false, fmt.Errorf("unsupported word %q", w)
		}
	}

	if in.Axes != 0 && !in.IsMove() {
		return Instruction{}, false, fmt.Errorf("%s takes no coordinates", head)
	}
	return in, true, nil
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return v, nil
}

// stripParens removes "( ... )" comments.
func stripParens(s string) string {
	for {
		i := strings.IndexByte(s, '(')
		if i < 0 {
			return s
		}
		j := strings.IndexByte(s[i:], ')')
		if j < 0 {
			return s[:i]
		}
		s = s[:i] + " " + s[i+j+1:]
	}
}
