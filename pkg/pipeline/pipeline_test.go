package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/matzehuels/penplot/pkg/cache"
	"github.com/matzehuels/penplot/pkg/core/toolpath"
	"github.com/matzehuels/penplot/pkg/core/vector"
	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/history"
	pkgio "github.com/matzehuels/penplot/pkg/io"
)

// writeMask writes a 10x10 PNG with a horizontal run of foreground pixels
// from x0 to x1 on row y.
func writeMask(t *testing.T, dir, name string, x0, x1, y int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	for x := x0; x <= x1; x++ {
		img.SetGray(x, y, color.Gray{Y: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testOptions(in, out string) Options {
	return Options{
		InputDir:  in,
		OutputDir: out,
		Strategy:  "edge-points",
		Workers:   2,
	}
}

func TestValidateStrategy(t *testing.T) {
	tests := []struct {
		strategy string
		wantErr  bool
	}{
		{"edge-points", false},
		{"hatch-fill", false},
		{"outline-polygon", false},
		{"Hatch-Fill", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateStrategy(tt.strategy)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateStrategy(%q) error = %v, wantErr %v", tt.strategy, err, tt.wantErr)
		}
	}
}

func TestValidateBackend(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"naive", false},
		{"grid", false},
		{"kdtree", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateBackend(tt.backend)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateBackend(%q) error = %v, wantErr %v", tt.backend, err, tt.wantErr)
		}
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("empty options should validate: %v", err)
	}

	if opts.Strategy != DefaultStrategy {
		t.Errorf("Strategy = %q, want %q", opts.Strategy, DefaultStrategy)
	}
	if opts.Epsilon != 1 {
		t.Errorf("Epsilon = %v, want 1", opts.Epsilon)
	}
	if opts.LiftThreshold != 2 {
		t.Errorf("LiftThreshold = %v, want 2", opts.LiftThreshold)
	}
	if opts.Machine != toolpath.DefaultMachine() {
		t.Errorf("Machine = %+v, want defaults", opts.Machine)
	}
	if len(opts.Holders) != 13 {
		t.Errorf("Holders has %d entries, want 13", len(opts.Holders))
	}
	if opts.Workers <= 0 {
		t.Errorf("Workers = %d, want > 0", opts.Workers)
	}
	if opts.Logger == nil {
		t.Error("Logger should be set")
	}
}

func TestChannelKeyOptsSmooth(t *testing.T) {
	plain := Options{Strategy: "outline-polygon"}
	smooth := Options{Strategy: "outline-polygon", Smooth: true}
	if !smooth.ExtractParams().Smooth {
		t.Error("ExtractParams() dropped Smooth")
	}
	if plain.ChannelKeyOpts("Red") == smooth.ChannelKeyOpts("Red") {
		t.Error("smoothed and exact outlines share cache key options")
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"strategy", Options{Strategy: "spiral"}},
		{"backend", Options{Backend: "kdtree"}},
		{"pen heights", Options{Machine: toolpath.Machine{PenUp: 0, PenDown: 5, FeedRate: 100}}},
		{"feed", Options{Machine: toolpath.Machine{PenUp: 5, FeedRate: -1}}},
		{"tolerance", Options{Epsilon: -1}},
		{"holder name", Options{Holders: map[string]float64{"../x": 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("ValidateAndSetDefaults() = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestFlatten(t *testing.T) {
	pt := func(x, y float64) vector.Point { return vector.Point{X: x, Y: y} }
	prims := []vector.Primitive{
		vector.Segment{P1: pt(0, 0), P2: pt(1, 0)},
		vector.Polygon{Points: []vector.Point{pt(0, 0), pt(2, 0), pt(2, 2)}},
		vector.Circle{Center: pt(5, 5), Radius: 1},
	}
	segs := Flatten(prims)
	if len(segs) != 5 {
		t.Fatalf("Flatten() = %d segments, want 5: %v", len(segs), segs)
	}
	if dot := segs[4]; dot.P1 != pt(5, 5) || dot.P2 != pt(5, 5) {
		t.Errorf("circle flattened to %v, want a dot at (5,5)", dot)
	}
}

func TestRunnerExecute(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeMask(t, in, "red_mask.png", 2, 6, 3)
	writeMask(t, in, "blue_mask.png", 1, 4, 7)
	writeMask(t, in, "mauve_mask.png", 0, 3, 0)
	if err := os.WriteFile(filepath.Join(in, "green_mask.png"), []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRunner(nil, nil, nil)
	res, err := r.Execute(context.Background(), testOptions(in, out))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if len(res.Channels) != 4 {
		t.Fatalf("got %d channel results, want 4", len(res.Channels))
	}
	names := []string{"Blue", "Green", "Mauve", "Red"}
	for i, c := range res.Channels {
		if c.Channel != names[i] {
			t.Errorf("Channels[%d] = %s, want %s", i, c.Channel, names[i])
		}
	}

	green := res.Channel("Green")
	if !errors.Is(green.Err, errors.ErrCodeInput) {
		t.Errorf("Green error = %v, want INPUT_ERROR", green.Err)
	}

	red := res.Channel("Red")
	if !red.OK() {
		t.Fatalf("Red failed: %v", red.Err)
	}
	if red.Counts.Circles != 5 {
		t.Errorf("Red circles = %d, want 5", red.Counts.Circles)
	}
	want := toolpath.DrawCommand{Start: vector.Point{X: 2, Y: 3}, End: vector.Point{X: 6, Y: 3}}
	if len(red.Program.Commands) != 1 || red.Program.Commands[0] != want {
		t.Errorf("Red commands = %v, want [%v]", red.Program.Commands, want)
	}

	if got := strings.Join(res.Sequenced, ","); got != "Blue,Red" {
		t.Errorf("Sequenced = %s, want Blue,Red", got)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Channel != "Mauve" {
		t.Errorf("Skipped = %+v, want Mauve", res.Skipped)
	}
	if !errors.Is(res.Skipped[0].Err, errors.ErrCodeUnknownChannel) {
		t.Errorf("Mauve skip error = %v, want UNKNOWN_CHANNEL", res.Skipped[0].Err)
	}

	for _, name := range []string{"Red_gcode.txt", "Blue_gcode.txt", "Mauve_gcode.txt", pkgio.CombinedFileName, pkgio.SummaryFileName} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "Green_gcode.txt")); err == nil {
		t.Error("failed channel should not write a program")
	}

	data, err := os.ReadFile(filepath.Join(out, pkgio.CombinedFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, res.CombinedCode) {
		t.Error("combined file differs from CombinedCode")
	}
	if strings.Count(string(data), "M3") != 2 {
		t.Errorf("combined program has %d pickups, want 2", strings.Count(string(data), "M3"))
	}

	var sum Summary
	if err := pkgio.ImportJSON(filepath.Join(out, pkgio.SummaryFileName), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.ID != res.ID || len(sum.Channels) != 4 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRunnerNoChannels(t *testing.T) {
	in := t.TempDir()
	if err := os.WriteFile(filepath.Join(in, "red.png"), []byte("broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := NewRunner(nil, nil, nil).Execute(context.Background(), testOptions(in, ""))
	if !errors.Is(err, errors.ErrCodeNoChannels) {
		t.Fatalf("Execute() error = %v, want NO_CHANNELS", err)
	}
	if res == nil || len(res.Failed()) != 1 {
		t.Errorf("result should report the failed channel, got %v", res)
	}
}

func TestRunnerEmptyDir(t *testing.T) {
	_, err := NewRunner(nil, nil, nil).Execute(context.Background(), testOptions(t.TempDir(), ""))
	if !errors.Is(err, errors.ErrCodeNoChannels) {
		t.Errorf("Execute() error = %v, want NO_CHANNELS", err)
	}
}

func TestRunnerBlankMask(t *testing.T) {
	in := t.TempDir()
	writeMask(t, in, "red.png", 2, 6, 3)
	writeMask(t, in, "blue.png", 1, 0, 0) // no foreground

	res, err := NewRunner(nil, nil, nil).Execute(context.Background(), testOptions(in, ""))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	blue := res.Channel("Blue")
	if !blue.OK() || blue.Program.Len() != 0 {
		t.Errorf("Blue = %+v, want an empty program", blue)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != "empty" {
		t.Errorf("Skipped = %+v, want Blue as empty", res.Skipped)
	}
}

func TestRunnerCanceled(t *testing.T) {
	in := t.TempDir()
	writeMask(t, in, "red.png", 2, 6, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := NewRunner(nil, nil, nil).Execute(ctx, testOptions(in, ""))
	if !errors.Is(err, errors.ErrCodeCanceled) {
		t.Fatalf("Execute() error = %v, want CANCELED", err)
	}
	if res.Channel("Red").OK() {
		t.Error("channel should not run after cancellation")
	}
}

func TestRunnerCache(t *testing.T) {
	in := t.TempDir()
	writeMask(t, in, "red.png", 2, 6, 3)
	writeMask(t, in, "blue.png", 1, 4, 7)

	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(c, nil, nil)
	defer r.Close()

	first, err := r.Execute(context.Background(), testOptions(in, ""))
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Execute(context.Background(), testOptions(in, ""))
	if err != nil {
		t.Fatal(err)
	}

	for _, ch := range first.Channels {
		if ch.Cached {
			t.Errorf("first run: %s should not be cached", ch.Channel)
		}
	}
	for _, ch := range second.Channels {
		if !ch.Cached {
			t.Errorf("second run: %s should be cached", ch.Channel)
		}
	}
	if !second.CombinedCached {
		t.Error("second run should reuse the combined program")
	}
	if !bytes.Equal(first.CombinedCode, second.CombinedCode) {
		t.Error("cached combined program differs")
	}

	opts := testOptions(in, "")
	opts.Refresh = true
	third, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if third.CombinedCached || third.Channel("Red").Cached {
		t.Error("Refresh should bypass the cache")
	}
}

// corruptCache hits on every key with a value that does not decode.
type corruptCache struct {
	cache.NullCache
	mu      sync.Mutex
	deleted []string
}

func (c *corruptCache) Get(context.Context, string) ([]byte, bool, error) {
	return []byte("{truncated"), true, nil
}

func (c *corruptCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, key)
	return nil
}

func TestRunnerDropsCorruptEntries(t *testing.T) {
	in := t.TempDir()
	writeMask(t, in, "red.png", 2, 6, 3)
	writeMask(t, in, "blue.png", 1, 4, 7)

	c := &corruptCache{}
	r := NewRunner(c, nil, nil)
	res, err := r.Execute(context.Background(), testOptions(in, ""))
	if err != nil {
		t.Fatal(err)
	}

	for _, ch := range res.Channels {
		if ch.Cached {
			t.Errorf("%s served from a corrupt entry", ch.Channel)
		}
		if !slices.Contains(c.deleted, ch.Key) {
			t.Errorf("corrupt entry for %s not deleted", ch.Channel)
		}
	}
	if res.CombinedCached {
		t.Error("combined program served from a corrupt entry")
	}
}

func TestRunnerHistory(t *testing.T) {
	in := t.TempDir()
	writeMask(t, in, "red.png", 2, 6, 3)

	store, err := history.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(nil, nil, nil)
	r.History = store

	res, err := r.Execute(context.Background(), testOptions(in, ""))
	if err != nil {
		t.Fatal(err)
	}

	rec, err := store.Get(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("history Get() error: %v", err)
	}
	if rec.Source != in || rec.Strategy != "edge-points" {
		t.Errorf("record = %+v", rec)
	}
	if len(rec.Channels) != 1 || rec.Channels[0].Status != history.StatusOK || rec.Channels[0].Commands != 1 {
		t.Errorf("record channels = %+v", rec.Channels)
	}
}

func TestOptimizeFiles(t *testing.T) {
	dir, out := t.TempDir(), t.TempDir()
	src := strings.Join([]string{
		"G90",
		"G21",
		"G0 Z20",
		"G0 X10 Y0",
		"G1 Z0",
		"G1 X12 Y0",
		"G0 Z20",
		"G0 X1 Y0",
		"G1 Z0",
		"G1 X2 Y0",
		"G1 X?? Y0",
		"G0 Z20",
	}, "\n") + "\n"
	path := filepath.Join(dir, "Red_gcode.txt")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	broken := filepath.Join(dir, "Blue_gcode.txt")
	if err := os.WriteFile(broken, []byte("garbage\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	results, err := OptimizeFiles(context.Background(), []string{path, broken}, out, Options{Workers: 2})
	if err != nil {
		t.Fatal(err)
	}

	red := results[0]
	if red.Err != nil {
		t.Fatalf("Red error: %v", red.Err)
	}
	if red.Channel != "Red" || len(red.BadLines) != 1 || red.BadLines[0].Line != 11 {
		t.Errorf("Red = %+v, want one bad line at 11", red)
	}
	if red.Report.Commands != 2 || red.Report.TravelAfter >= red.Report.TravelBefore {
		t.Errorf("Red report = %+v, want shorter travel", red.Report)
	}
	if red.Output != filepath.Join(out, "Red_gcode.txt") {
		t.Errorf("Red output = %s", red.Output)
	}

	if !errors.Is(results[1].Err, errors.ErrCodeParse) {
		t.Errorf("Blue error = %v, want PARSE_ERROR", results[1].Err)
	}
}

func TestOptimizeFilesFarCoordinates(t *testing.T) {
	dir := t.TempDir()
	far := filepath.Join(dir, "Red_gcode.txt")
	src := "G0 X0 Y0\nG1 X1 Y0\nG0 X2 Y0\nG1 X3 Y0\nG0 X1e300 Y0\nG1 X1e300 Y1\n"
	if err := os.WriteFile(far, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	near := filepath.Join(dir, "Blue_gcode.txt")
	if err := os.WriteFile(near, []byte("G0 X5 Y5\nG1 X6 Y5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	results, err := OptimizeFiles(context.Background(), []string{far, near}, t.TempDir(), Options{Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	for _, res := range results {
		if res.Err != nil {
			t.Errorf("%s: %v", res.Channel, res.Err)
		}
	}
	if got := results[0].Report.Commands; got != 3 {
		t.Errorf("Red kept %d commands, want 3", got)
	}
}

func TestCombineDir(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeMask(t, in, "red.png", 2, 6, 3)
	writeMask(t, in, "green.png", 1, 4, 7)

	opts := testOptions(in, out)
	opts.SkipCombine = true
	res, err := NewRunner(nil, nil, nil).Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.CombinedPath != "" {
		t.Fatal("SkipCombine should not write a combined program")
	}

	combined, err := CombineDir(context.Background(), out, Options{})
	if err != nil {
		t.Fatalf("CombineDir() error: %v", err)
	}
	if got := strings.Join(combined.Combined.Channels, ","); got != "Green,Red" {
		t.Errorf("combined channels = %s, want Green,Red", got)
	}
	if _, err := os.Stat(filepath.Join(out, pkgio.CombinedFileName)); err != nil {
		t.Errorf("combined file missing: %v", err)
	}
}
