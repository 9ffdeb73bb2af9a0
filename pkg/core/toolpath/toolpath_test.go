package toolpath

import (
	"bytes"
	"cmp"
	"context"
	"io"
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/penplot/pkg/core/spatial"
	"github.com/matzehuels/penplot/pkg/core/vector"
	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/gcode"
)

func pt(x, y float64) vector.Point { return vector.Point{X: x, Y: y} }

func cmd(x1, y1, x2, y2 float64) DrawCommand {
	return DrawCommand{Start: pt(x1, y1), End: pt(x2, y2)}
}

func quietLogger() *log.Logger { return log.New(io.Discard) }

func TestCompilePreservesOrder(t *testing.T) {
	segs := []vector.Segment{
		{P1: pt(5, 5), P2: pt(6, 5)},
		{P1: pt(0, 0), P2: pt(1, 0)},
	}
	p := Compile("Red", segs)

	want := []DrawCommand{cmd(5, 5, 6, 5), cmd(0, 0, 1, 0)}
	if p.Name != "Red" || !slices.Equal(p.Commands, want) {
		t.Errorf("Compile() = %+v, want %v", p, want)
	}
}

func TestEmitParseRoundTrip(t *testing.T) {
	p := &ChannelProgram{Name: "Red", Commands: []DrawCommand{
		cmd(1, 1, 5, 1),
		cmd(5, 1, 5, 9.25),
		cmd(-3.5, 2, 0, 0),
	}}

	for _, optimized := range []bool{false, true} {
		code := Emit(p, DefaultMachine(), EmitOptions{Optimized: optimized})
		parsed, bad, err := gcode.Parse(bytes.NewReader([]byte(code.String())))
		if err != nil || len(bad) != 0 {
			t.Fatalf("Parse() = %v, %v", bad, err)
		}
		got := FromProgram("Red", parsed, vector.Point{})
		if !slices.Equal(got.Commands, p.Commands) {
			t.Errorf("optimized=%v: round trip = %v, want %v", optimized, got.Commands, p.Commands)
		}
	}
}

func TestEmitPreambleAndPostamble(t *testing.T) {
	p := Compile("Red", []vector.Segment{{P1: pt(0, 0), P2: pt(1, 0)}})
	code := Emit(p, DefaultMachine(), EmitOptions{})

	if code[0].Op != gcode.OpAbsolute || code[1].Op != gcode.OpMillimeters {
		t.Errorf("preamble = %v %v, want G90 G21", code[0], code[1])
	}
	last := code[len(code)-1]
	if last.Op != gcode.OpRapid || !last.Has(gcode.AxisZ) || last.Z != DefaultPenUp {
		t.Errorf("postamble = %v, want pen lift", last)
	}
}

func TestEmitUnoptimizedLiftsEveryStroke(t *testing.T) {
	p := &ChannelProgram{Commands: []DrawCommand{cmd(0, 0, 1, 0), cmd(1, 0, 2, 0), cmd(2, 0, 3, 0)}}
	st := Measure(Emit(p, DefaultMachine(), EmitOptions{}), DefaultMachine())

	if st.Strokes != 3 || st.Lifts != 2 {
		t.Errorf("Measure() = %+v, want 3 strokes and 2 lifts", st)
	}
}

func TestEmitOptimizedLifts(t *testing.T) {
	tests := []struct {
		name        string
		cmds        []DrawCommand
		wantStrokes int
		wantLifts   int
	}{
		{
			name:        "touching strokes stay down",
			cmds:        []DrawCommand{cmd(0, 0, 5, 0), cmd(5, 0, 5, 5)},
			wantStrokes: 1,
		},
		{
			name:        "next row travels down",
			cmds:        []DrawCommand{cmd(0, 0, 5, 0), cmd(5, 2, 0, 2)},
			wantStrokes: 1,
		},
		{
			name:        "jump beyond threshold lifts",
			cmds:        []DrawCommand{cmd(0, 0, 5, 0), cmd(5, 2.5, 0, 2.5)},
			wantStrokes: 2,
			wantLifts:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &ChannelProgram{Commands: tt.cmds}
			st := Measure(Emit(p, DefaultMachine(), EmitOptions{Optimized: true}), DefaultMachine())
			if st.Strokes != tt.wantStrokes || st.Lifts != tt.wantLifts {
				t.Errorf("Measure() = %+v, want %d strokes, %d lifts", st, tt.wantStrokes, tt.wantLifts)
			}
		})
	}
}

func TestMeasureDistances(t *testing.T) {
	p := &ChannelProgram{Commands: []DrawCommand{cmd(3, 4, 6, 4)}}
	st := Measure(Emit(p, DefaultMachine(), EmitOptions{}), DefaultMachine())
	if st.DrawLength != 3 || st.Travel != 5 {
		t.Errorf("Measure() = %+v, want draw 3 travel 5", st)
	}
}

func TestOptimizeNearestNeighbour(t *testing.T) {
	p := &ChannelProgram{Name: "Red", Commands: []DrawCommand{
		cmd(10, 0, 11, 0),
		cmd(1, 0, 2, 0),
		cmd(3, 0, 9, 0),
	}}

	got, rep, err := Optimize(context.Background(), p, OptimizeOptions{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	want := []DrawCommand{cmd(1, 0, 2, 0), cmd(3, 0, 9, 0), cmd(10, 0, 11, 0)}
	if !slices.Equal(got.Commands, want) {
		t.Errorf("Optimize() = %v, want %v", got.Commands, want)
	}
	if rep.TravelAfter >= rep.TravelBefore {
		t.Errorf("travel %v -> %v, want a reduction", rep.TravelBefore, rep.TravelAfter)
	}
	if p.Commands[0] != cmd(10, 0, 11, 0) {
		t.Error("Optimize() modified its input")
	}
}

func TestOptimizeTieTakesEarliest(t *testing.T) {
	p := &ChannelProgram{Commands: []DrawCommand{
		cmd(0, 4, 0, 5),
		cmd(4, 0, 5, 0),
		cmd(0, -4, 0, -5),
	}}
	for _, b := range []spatial.Backend{spatial.BackendNaive, spatial.BackendGrid} {
		got, _, err := Optimize(context.Background(), p, OptimizeOptions{Backend: b, Logger: quietLogger()})
		if err != nil {
			t.Fatal(err)
		}
		if got.Commands[0] != p.Commands[0] {
			t.Errorf("%s: first = %v, want %v", b, got.Commands[0], p.Commands[0])
		}
	}
}

func randomProgram(r *rand.Rand, n int) *ChannelProgram {
	p := &ChannelProgram{Name: "Red"}
	for range n {
		x, y := float64(r.Intn(50)), float64(r.Intn(50))
		p.Commands = append(p.Commands, cmd(x, y, x+float64(r.Intn(4)), y))
	}
	return p
}

func compareCmd(a, b DrawCommand) int {
	return cmp.Or(
		cmp.Compare(a.Start.X, b.Start.X), cmp.Compare(a.Start.Y, b.Start.Y),
		cmp.Compare(a.End.X, b.End.X), cmp.Compare(a.End.Y, b.End.Y),
	)
}

func TestOptimizeIsPermutation(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	for _, n := range []int{0, 1, 2, 17, 250} {
		p := randomProgram(r, n)
		naive, _, err := Optimize(context.Background(), p, OptimizeOptions{Backend: spatial.BackendNaive, Logger: quietLogger()})
		if err != nil {
			t.Fatal(err)
		}
		grid, _, err := Optimize(context.Background(), p, OptimizeOptions{Backend: spatial.BackendGrid, Logger: quietLogger()})
		if err != nil {
			t.Fatal(err)
		}

		if len(naive.Commands) != n {
			t.Errorf("n=%d: len = %d", n, len(naive.Commands))
		}
		in := slices.Clone(p.Commands)
		out := slices.Clone(naive.Commands)
		slices.SortFunc(in, compareCmd)
		slices.SortFunc(out, compareCmd)
		if !slices.Equal(in, out) {
			t.Errorf("n=%d: output is not a permutation of the input", n)
		}
		if !slices.Equal(naive.Commands, grid.Commands) {
			t.Errorf("n=%d: grid tour differs from naive tour", n)
		}
	}
}

func TestOptimizeSkipsMalformed(t *testing.T) {
	p := &ChannelProgram{Name: "Red", Commands: []DrawCommand{
		cmd(0, 0, 1, 0),
		cmd(math.NaN(), 0, 1, 0),
		cmd(2, 0, math.Inf(1), 0),
	}}

	got, rep, err := Optimize(context.Background(), p, OptimizeOptions{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Commands) != 1 || rep.Skipped != 2 {
		t.Errorf("Optimize() kept %d, skipped %d, want 1 and 2", len(got.Commands), rep.Skipped)
	}
}

func TestOptimizeAllMalformed(t *testing.T) {
	p := &ChannelProgram{Name: "Red", Commands: []DrawCommand{cmd(math.NaN(), 0, 1, 0)}}
	_, _, err := Optimize(context.Background(), p, OptimizeOptions{Logger: quietLogger()})
	if !errors.Is(err, errors.ErrCodeParse) {
		t.Errorf("Optimize() error = %v, want parse error", err)
	}
}

func TestOptimizeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := randomProgram(rand.New(rand.NewSource(1)), 10)
	if _, _, err := Optimize(ctx, p, OptimizeOptions{Logger: quietLogger()}); err == nil {
		t.Error("Optimize() on canceled context should fail")
	}
}

func TestOptimizeHugeFiniteCoordinates(t *testing.T) {
	p := &ChannelProgram{Name: "Red", Commands: []DrawCommand{
		cmd(0, 0, 1, 0),
		cmd(2, 0, 3, 0),
		cmd(1e300, 0, 1e300, 1),
	}}
	for _, b := range []spatial.Backend{spatial.BackendGrid, spatial.BackendNaive} {
		got, rep, err := Optimize(context.Background(), p, OptimizeOptions{Backend: b, Logger: quietLogger()})
		if err != nil {
			t.Fatalf("%s: Optimize() error = %v", b, err)
		}
		if rep.Skipped != 0 || len(got.Commands) != 3 {
			t.Fatalf("%s: kept %d commands, skipped %d; want 3 and 0", b, len(got.Commands), rep.Skipped)
		}
		if got.Commands[2] != p.Commands[2] {
			t.Errorf("%s: far command drawn at position %v, want last", b, got.Commands)
		}
	}
}

func TestFromProgramPartialAxes(t *testing.T) {
	prog := gcode.Program{
		gcode.Rapid(1, 1),
		{Op: gcode.OpFeed, Axes: gcode.AxisX, X: 4},
		gcode.RapidZ(20),
		{Op: gcode.OpFeed, Axes: gcode.AxisY, Y: 3},
	}
	got := FromProgram("Red", prog, vector.Point{})
	want := []DrawCommand{cmd(1, 1, 4, 1), cmd(4, 1, 4, 3)}
	if !slices.Equal(got.Commands, want) {
		t.Errorf("FromProgram() = %v, want %v", got.Commands, want)
	}
}

func TestTravel(t *testing.T) {
	cmds := []DrawCommand{cmd(3, 4, 3, 8), cmd(3, 8, 0, 8)}
	if got := Travel(cmds, vector.Point{}); got != 5 {
		t.Errorf("Travel() = %v, want 5", got)
	}
}
