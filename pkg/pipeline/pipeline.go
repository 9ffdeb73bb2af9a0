// Package pipeline runs the mask → G-code pipeline for penplot.
//
// This package wires the core stages together so the CLI and the HTTP
// server behave the same way. Every channel runs through the same stages on
// a bounded pool of workers; the results are then sequenced into one
// combined multi-pen program.
//
// # Architecture
//
// Each channel goes through:
//
//  1. Load: decode the mask and optionally rescale it
//  2. Extract: turn foreground pixels into primitives
//  3. Reduce: join touching circles into segments
//  4. Merge: fuse collinear segments and drop duplicates
//  5. Compile and Optimize: build draw commands and order them greedily
//  6. Emit: write the channel's G-code
//
// Channels fail independently. After every channel has finished, the
// successful ones are handed to the sequencer. A run only fails when no
// channel can be sequenced, when the options are invalid, or when the
// context is canceled.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    InputDir:  "masks",
//	    OutputDir: "out",
//	    Strategy:  "hatch-fill",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.CombinedPath)
package pipeline

import (
	"fmt"
	"io"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/penplot/pkg/cache"
	"github.com/matzehuels/penplot/pkg/core/extract"
	"github.com/matzehuels/penplot/pkg/core/merge"
	"github.com/matzehuels/penplot/pkg/core/raster"
	"github.com/matzehuels/penplot/pkg/core/reduce"
	"github.com/matzehuels/penplot/pkg/core/sequence"
	"github.com/matzehuels/penplot/pkg/core/spatial"
	"github.com/matzehuels/penplot/pkg/core/toolpath"
	"github.com/matzehuels/penplot/pkg/core/vector"
	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/gcode"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultScale keeps masks at their native resolution.
	DefaultScale = 1.0

	// DefaultStrategy is the default extraction strategy.
	DefaultStrategy = string(extract.DefaultStrategy)

	// DefaultBackend is the default spatial index.
	DefaultBackend = string(spatial.DefaultBackend)

	// DefaultEpsilon is the default adjacency tolerance of the reducer.
	DefaultEpsilon = reduce.DefaultEpsilon

	// DefaultMergeTolerance is the default gap bridged by the merger.
	DefaultMergeTolerance = merge.DefaultTolerance

	// DefaultLiftThreshold is the default largest jump drawn without a lift.
	DefaultLiftThreshold = toolpath.DefaultLiftThreshold
)

// DefaultWorkers is the size of the channel worker pool when Options.Workers
// is zero.
func DefaultWorkers() int {
	return runtime.NumCPU()
}

// ValidStrategies is the set of supported extraction strategies.
var ValidStrategies = map[string]bool{
	string(extract.StrategyEdgePoints):     true,
	string(extract.StrategyHatchFill):      true,
	string(extract.StrategyOutlinePolygon): true,
}

// ValidBackends is the set of supported spatial index backends.
var ValidBackends = map[string]bool{
	string(spatial.BackendNaive): true,
	string(spatial.BackendGrid):  true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for a pipeline run.
// This struct supports JSON serialization for server requests.
type Options struct {
	// Input options
	InputDir string  `json:"input_dir,omitempty"`
	Scale    float64 `json:"scale,omitempty"`
	Refresh  bool    `json:"refresh,omitempty"` // ignore cached channel programs

	// Extraction options
	Strategy   string  `json:"strategy,omitempty"`
	Threshold  uint8   `json:"threshold,omitempty"`
	Radius     float64 `json:"radius,omitempty"`
	Step       int     `json:"step,omitempty"`
	EdgeDetect bool    `json:"edge_detect,omitempty"`
	Smooth     bool    `json:"smooth,omitempty"` // potrace curves for outline-polygon

	// Geometry options
	Epsilon        float64 `json:"epsilon,omitempty"`
	MergeTolerance float64 `json:"merge_tolerance,omitempty"`
	Backend        string  `json:"backend,omitempty"`

	// Toolpath options
	SkipOptimize  bool    `json:"skip_optimize,omitempty"` // keep compile order
	Unoptimized   bool    `json:"unoptimized,omitempty"`   // lift between every stroke
	LiftThreshold float64 `json:"lift_threshold,omitempty"`

	// Sequencing options
	Machine     toolpath.Machine   `json:"machine"`
	HolderY     float64            `json:"holder_y,omitempty"`
	Holders     map[string]float64 `json:"holders,omitempty"`
	Disabled    []string           `json:"disabled,omitempty"`
	SkipCombine bool               `json:"skip_combine,omitempty"`

	// Output options. An empty OutputDir keeps everything in memory.
	OutputDir string `json:"output_dir,omitempty"`

	// Runtime options (not serialized)
	Workers int         `json:"workers,omitempty"`
	Logger  *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateStrategy checks that an extraction strategy is valid.
func ValidateStrategy(s string) error {
	if !ValidStrategies[s] {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid strategy: %q (must be one of: %s)", s, joinKeys(ValidStrategies))
	}
	return nil
}

// ValidateBackend checks that a spatial backend is valid.
func ValidateBackend(b string) error {
	if !ValidBackends[b] {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid backend: %q (must be one of: %s)", b, joinKeys(ValidBackends))
	}
	return nil
}

// ValidateMachine checks plotter parameters.
func ValidateMachine(m toolpath.Machine) error {
	if m.FeedRate <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "feed rate must be positive, got %g", m.FeedRate)
	}
	if m.PenUp <= m.PenDown {
		return errors.New(errors.ErrCodeInvalidConfig, "pen_up (%g) must be above pen_down (%g)", m.PenUp, m.PenDown)
	}
	return nil
}

func joinKeys(m map[string]bool) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return strings.Join(keys, ", ")
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults applies defaults and checks every field.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	o.SetDefaults()
	if err := o.Validate(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// SetDefaults replaces zero values with defaults.
func (o *Options) SetDefaults() {
	if o.Scale == 0 {
		o.Scale = DefaultScale
	}
	if o.Strategy == "" {
		o.Strategy = DefaultStrategy
	}
	if o.Backend == "" {
		o.Backend = DefaultBackend
	}
	if o.Epsilon == 0 {
		o.Epsilon = DefaultEpsilon
	}
	if o.MergeTolerance == 0 {
		o.MergeTolerance = DefaultMergeTolerance
	}
	if o.LiftThreshold == 0 {
		o.LiftThreshold = DefaultLiftThreshold
	}
	if o.Machine == (toolpath.Machine{}) {
		o.Machine = toolpath.DefaultMachine()
	}
	if o.Holders == nil {
		o.Holders = sequence.DefaultToolTable()
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers()
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Validate checks option values without changing them.
func (o *Options) Validate() error {
	if err := ValidateStrategy(o.Strategy); err != nil {
		return err
	}
	if err := ValidateBackend(o.Backend); err != nil {
		return err
	}
	if err := ValidateMachine(o.Machine); err != nil {
		return err
	}
	if o.Scale < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "scale must be positive, got %g", o.Scale)
	}
	if o.Epsilon < 0 || o.MergeTolerance < 0 || o.LiftThreshold < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "tolerances cannot be negative")
	}
	if o.Radius < 0 || o.Step < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "radius and step cannot be negative")
	}
	for name := range o.Holders {
		if err := errors.ValidateChannelName(name); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "holder table")
		}
	}
	return nil
}

// ExtractParams returns the extractor parameters.
func (o *Options) ExtractParams() extract.Params {
	return extract.Params{
		Threshold:  o.Threshold,
		Radius:     o.Radius,
		Step:       o.Step,
		EdgeDetect: o.EdgeDetect,
		Smooth:     o.Smooth,
	}
}

// LoadOptions returns the mask loading options.
func (o *Options) LoadOptions() raster.LoadOptions {
	return raster.LoadOptions{Scale: o.Scale}
}

// EmitOptions returns the G-code emission options.
func (o *Options) EmitOptions() toolpath.EmitOptions {
	return toolpath.EmitOptions{Optimized: !o.Unoptimized, LiftThreshold: o.LiftThreshold}
}

// SequenceOptions returns the sequencer options.
func (o *Options) SequenceOptions() sequence.Options {
	return sequence.Options{
		Machine:       o.Machine,
		HolderY:       o.HolderY,
		Disabled:      o.Disabled,
		LiftThreshold: o.LiftThreshold,
		Logger:        o.Logger,
	}
}

// ToolTable returns the holder table.
func (o *Options) ToolTable() sequence.ToolTable {
	return sequence.ToolTable(o.Holders)
}

// ChannelKeyOpts returns cache key options for a channel program.
func (o *Options) ChannelKeyOpts(channel string) cache.ChannelKeyOpts {
	p := o.ExtractParams().WithDefaults()
	return cache.ChannelKeyOpts{
		Channel:       channel,
		Strategy:      o.Strategy,
		Threshold:     p.Threshold,
		Radius:        p.Radius,
		Step:          p.Step,
		EdgeDetect:    p.EdgeDetect,
		Smooth:        p.Smooth,
		Scale:         o.Scale,
		Epsilon:       o.Epsilon,
		Merge:         o.MergeTolerance,
		Backend:       o.Backend,
		SkipOptimize:  o.SkipOptimize,
		Unoptimized:   o.Unoptimized,
		LiftThreshold: o.LiftThreshold,
	}
}

// RunKeyOpts returns cache key options for a combined program.
func (o *Options) RunKeyOpts() cache.RunKeyOpts {
	return cache.RunKeyOpts{
		Holders:  o.Holders,
		HolderY:  o.HolderY,
		Disabled: o.Disabled,
		PenUp:    o.Machine.PenUp,
		PenDown:  o.Machine.PenDown,
		Feed:     o.Machine.FeedRate,
	}
}

// =============================================================================
// Results
// =============================================================================

// Input is one channel to process. When Mask is nil the mask is decoded
// from Data, or loaded from Path, inside the worker, so decode failures
// stay local to the channel.
type Input struct {
	Channel string
	Path    string
	Data    []byte // encoded image, e.g. an upload
	Mask    *raster.Mask
}

// ChannelResult is the outcome of one channel.
type ChannelResult struct {
	Channel string
	Source  string // mask path, empty for in-memory masks

	Counts   vector.Count // extracted primitives
	Joined   int          // circles consumed by the reducer
	Segments int          // segments after merging

	Program *toolpath.ChannelProgram // optimized draw commands
	Code    gcode.Program            // emitted channel program
	Report  toolpath.Report
	Stats   toolpath.Stats

	Key      string // channel cache key
	Path     string // written program file
	Cached   bool
	Duration time.Duration

	// Err is the failure of this channel. Other channels are unaffected.
	Err error
}

// OK reports whether the channel produced a program.
func (c *ChannelResult) OK() bool { return c.Err == nil }

// Result contains the outputs of a pipeline run.
type Result struct {
	// ID identifies the run in history.
	ID string

	// Channels holds one result per input, sorted by channel name.
	Channels []*ChannelResult

	// Combined is set when sequencing ran in this process. It has already
	// been written to CombinedCode.
	Combined *sequence.Combined

	// Sequencing outcome, also available when the combined program came
	// from the cache.
	Sequenced []string
	Maneuvers []sequence.Maneuver
	Skipped   []sequence.Skip

	CombinedCode   []byte
	CombinedPath   string
	CombinedCached bool

	Duration time.Duration
}

// Failed returns the channels that failed.
func (r *Result) Failed() []*ChannelResult {
	var out []*ChannelResult
	for _, c := range r.Channels {
		if !c.OK() {
			out = append(out, c)
		}
	}
	return out
}

// Channel returns the result for name, or nil.
func (r *Result) Channel(name string) *ChannelResult {
	for _, c := range r.Channels {
		if c.Channel == name {
			return c
		}
	}
	return nil
}

func (r *Result) String() string {
	return fmt.Sprintf("run %s: %d channels, %d sequenced, %d failed", r.ID, len(r.Channels), len(r.Sequenced), len(r.Failed()))
}
