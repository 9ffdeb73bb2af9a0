package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/penplot/pkg/cache"
	"github.com/matzehuels/penplot/pkg/core/raster"
	"github.com/matzehuels/penplot/pkg/core/sequence"
	"github.com/matzehuels/penplot/pkg/core/toolpath"
	"github.com/matzehuels/penplot/pkg/core/vector"
	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/history"
	pkgio "github.com/matzehuels/penplot/pkg/io"
	"github.com/matzehuels/penplot/pkg/observability"
)

// Runner encapsulates pipeline execution with caching.
// Both the CLI and the server use it so caching and history behave the
// same everywhere.
//
// The Runner is stateless apart from its backends. Multiple goroutines can
// safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// History receives a record of every run. Nil disables history.
	History history.Store
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute discovers the masks in opts.InputDir and runs them.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if opts.InputDir == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "input directory is required")
	}
	sources, err := raster.Discover(opts.InputDir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "scan %s", opts.InputDir)
	}
	if len(sources) == 0 {
		return nil, errors.New(errors.ErrCodeNoChannels, "no masks found in %s", opts.InputDir)
	}
	inputs := make([]Input, len(sources))
	for i, s := range sources {
		inputs[i] = Input{Channel: s.Channel, Path: s.Path}
	}
	return r.Run(ctx, inputs, opts)
}

// Run processes inputs on a bounded worker pool, then sequences the
// channels that succeeded.
//
// The returned Result is non-nil whenever channels were processed, even if
// the error is non-nil, so callers can report per-channel failures. The
// error is set when no channel could be sequenced (code NO_CHANNELS) or
// when ctx was canceled (code CANCELED).
func (r *Runner) Run(ctx context.Context, inputs []Input, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	start := time.Now()

	res := &Result{ID: uuid.NewString(), Channels: make([]*ChannelResult, len(inputs))}

	g := new(errgroup.Group)
	g.SetLimit(opts.Workers)
	for i, in := range inputs {
		g.Go(func() error {
			res.Channels[i] = r.ProcessChannel(ctx, in, opts)
			return nil
		})
	}
	_ = g.Wait()

	slices.SortStableFunc(res.Channels, func(a, b *ChannelResult) int {
		return strings.Compare(a.Channel, b.Channel)
	})
	if err := ctx.Err(); err != nil {
		res.Duration = time.Since(start)
		return res, errors.Wrap(errors.ErrCodeCanceled, err, "run canceled")
	}

	var err error
	if !opts.SkipCombine {
		err = r.sequence(ctx, res, opts)
	}
	res.Duration = time.Since(start)

	if opts.OutputDir != "" {
		if werr := pkgio.ExportJSON(res.Summary(), filepath.Join(opts.OutputDir, pkgio.SummaryFileName)); werr != nil {
			opts.Logger.Warn("failed to write run summary", "error", werr)
		}
	}
	r.record(ctx, res, opts, err)
	return res, err
}

// ProcessChannel runs one input through every stage. Failures are returned
// in ChannelResult.Err, never as a panic or a shared error.
func (r *Runner) ProcessChannel(ctx context.Context, in Input, opts Options) *ChannelResult {
	hooks := observability.Pipeline()
	start := time.Now()
	res := &ChannelResult{Channel: in.Channel, Source: in.Path}
	hooks.OnChannelStart(ctx, in.Channel)

	res.Err = r.processChannel(ctx, in, opts, res)
	res.Duration = time.Since(start)
	hooks.OnChannelComplete(ctx, in.Channel, res.Program.Len(), res.Duration, res.Err)

	if res.Err != nil {
		opts.Logger.Error("channel failed", "channel", in.Channel, "error", res.Err)
	} else {
		opts.Logger.Info("channel ready", "channel", in.Channel,
			"commands", res.Program.Len(), "lifts", res.Stats.Lifts, "cached", res.Cached,
			"duration", res.Duration.Round(time.Millisecond))
	}
	return res
}

func (r *Runner) processChannel(ctx context.Context, in Input, opts Options, res *ChannelResult) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.New(errors.ErrCodeInternal, "channel %s: internal error: %v", in.Channel, p)
		}
	}()
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeCanceled, err, "channel %s not started", in.Channel)
	}
	if err := errors.ValidateChannelName(in.Channel); err != nil {
		return err
	}

	mask, err := loadInput(in, opts)
	if err != nil {
		return err
	}

	res.Key = r.Keyer.ChannelKey(cache.HashImage(mask.Width(), mask.Height(), mask.Bytes()), opts.ChannelKeyOpts(in.Channel))
	if !opts.Refresh && r.loadChannel(ctx, res) {
		res.Cached = true
	} else {
		if err := r.buildChannel(ctx, mask, opts, res); err != nil {
			return err
		}
		r.storeChannel(ctx, res)
	}

	res.Code = toolpath.Emit(res.Program, opts.Machine, opts.EmitOptions())
	res.Stats = toolpath.Measure(res.Code, opts.Machine)

	if opts.OutputDir != "" {
		path, err := pkgio.WriteChannel(opts.OutputDir, in.Channel, res.Code)
		if err != nil {
			return err
		}
		res.Path = path
	}
	return nil
}

func loadInput(in Input, opts Options) (*raster.Mask, error) {
	var (
		m   *raster.Mask
		err error
	)
	switch {
	case in.Mask != nil:
		return in.Mask, nil
	case in.Data != nil:
		m, err = raster.Decode(in.Channel, bytes.NewReader(in.Data), opts.LoadOptions())
	default:
		m, err = raster.Load(in.Channel, in.Path, opts.LoadOptions())
	}
	if err != nil && errors.GetCode(err) == "" {
		return nil, errors.Wrap(errors.ErrCodeInput, err, "load mask %s", in.Channel)
	}
	return m, err
}

func (r *Runner) buildChannel(ctx context.Context, mask *raster.Mask, opts Options, res *ChannelResult) error {
	prims, err := Extract(ctx, mask, opts)
	if err != nil {
		return err
	}
	res.Counts = vector.Tally(prims)

	reduced := Reduce(prims, opts)
	res.Joined = reduced.Joined

	segs := Merge(reduced.Primitives, opts)
	res.Segments = len(segs)

	prog, rep, err := Plan(ctx, res.Channel, segs, opts)
	if err != nil {
		return err
	}
	res.Program = prog
	res.Report = rep
	opts.Logger.Debug("channel geometry", "channel", res.Channel,
		"primitives", res.Counts.Total(), "joined", res.Joined, "segments", res.Segments)
	return nil
}

// cachedChannel is the cache payload for a channel. The program is stored
// as draw commands and re-emitted, so machine settings stay out of the key.
type cachedChannel struct {
	Commands []toolpath.DrawCommand `json:"commands"`
	Counts   vector.Count           `json:"counts"`
	Joined   int                    `json:"joined"`
	Segments int                    `json:"segments"`
	Report   toolpath.Report        `json:"report"`
}

func (r *Runner) loadChannel(ctx context.Context, res *ChannelResult) bool {
	data, hit, err := r.Cache.Get(ctx, res.Key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "channel")
		return false
	}
	var c cachedChannel
	if err := json.Unmarshal(data, &c); err != nil {
		r.dropCorrupt(ctx, res.Key, err)
		observability.Cache().OnCacheMiss(ctx, "channel")
		return false
	}
	observability.Cache().OnCacheHit(ctx, "channel")
	res.Program = &toolpath.ChannelProgram{Name: res.Channel, Commands: c.Commands}
	res.Counts = c.Counts
	res.Joined = c.Joined
	res.Segments = c.Segments
	res.Report = c.Report
	return true
}

// dropCorrupt deletes an entry that no longer decodes so the next lookup
// recomputes it.
func (r *Runner) dropCorrupt(ctx context.Context, key string, err error) {
	r.Logger.Debug("dropping cache entry", "key", key, "error", fmt.Errorf("%w: %v", cache.ErrCorrupt, err))
	if derr := r.Cache.Delete(ctx, key); derr != nil {
		r.Logger.Debug("cache delete failed", "key", key, "error", derr)
	}
}

func (r *Runner) storeChannel(ctx context.Context, res *ChannelResult) {
	data, err := json.Marshal(cachedChannel{
		Commands: res.Program.Commands,
		Counts:   res.Counts,
		Joined:   res.Joined,
		Segments: res.Segments,
		Report:   res.Report,
	})
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, res.Key, data, cache.TTLChannel); err != nil {
		r.Logger.Debug("cache write failed", "channel", res.Channel, "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "channel", len(data))
}

// cachedRun is the cache payload for a combined program.
type cachedRun struct {
	Code      string              `json:"code"`
	Sequenced []string            `json:"sequenced"`
	Maneuvers []sequence.Maneuver `json:"maneuvers"`
	Skipped   []sequence.Skip     `json:"skipped,omitempty"`
}

// sequence combines the successful channels and writes the combined
// program.
func (r *Runner) sequence(ctx context.Context, res *Result, opts Options) error {
	hooks := observability.Pipeline()
	start := time.Now()

	var (
		channels []sequence.Channel
		keys     []string
	)
	for _, c := range res.Channels {
		if !c.OK() {
			continue
		}
		channels = append(channels, sequence.Channel{
			Program: c.Program,
			Body:    toolpath.Body(c.Program, opts.Machine, opts.EmitOptions()),
		})
		keys = append(keys, c.Key)
	}
	if len(channels) == 0 {
		err := errors.New(errors.ErrCodeNoChannels, "all %d channels failed", len(res.Channels))
		hooks.OnSequence(ctx, 0, 0, time.Since(start), err)
		return err
	}

	runKey := r.Keyer.RunKey(keys, opts.RunKeyOpts())
	if !opts.Refresh && r.loadRun(ctx, runKey, res) {
		res.CombinedCached = true
	} else {
		combined, err := sequence.Sequence(channels, opts.ToolTable(), opts.SequenceOptions())
		if err != nil {
			hooks.OnSequence(ctx, 0, len(channels), time.Since(start), err)
			return err
		}
		var buf bytes.Buffer
		if _, err := combined.WriteTo(&buf); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "render combined program")
		}
		res.Combined = combined
		res.CombinedCode = buf.Bytes()
		res.Sequenced = combined.Channels
		res.Maneuvers = combined.Maneuvers
		res.Skipped = combined.Skipped
		r.storeRun(ctx, runKey, res)
	}
	hooks.OnSequence(ctx, len(res.Sequenced), len(res.Skipped), time.Since(start), nil)

	if opts.OutputDir != "" {
		path := filepath.Join(opts.OutputDir, pkgio.CombinedFileName)
		if err := writeBytes(path, res.CombinedCode); err != nil {
			return err
		}
		res.CombinedPath = path
	}
	opts.Logger.Info("combined program ready", "channels", len(res.Sequenced),
		"skipped", len(res.Skipped), "maneuvers", len(res.Maneuvers), "cached", res.CombinedCached)
	return nil
}

func (r *Runner) loadRun(ctx context.Context, key string, res *Result) bool {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "run")
		return false
	}
	var c cachedRun
	if err := json.Unmarshal(data, &c); err != nil {
		r.dropCorrupt(ctx, key, err)
		observability.Cache().OnCacheMiss(ctx, "run")
		return false
	}
	observability.Cache().OnCacheHit(ctx, "run")
	res.CombinedCode = []byte(c.Code)
	res.Sequenced = c.Sequenced
	res.Maneuvers = c.Maneuvers
	res.Skipped = c.Skipped
	return true
}

func (r *Runner) storeRun(ctx context.Context, key string, res *Result) {
	data, err := json.Marshal(cachedRun{
		Code:      string(res.CombinedCode),
		Sequenced: res.Sequenced,
		Maneuvers: res.Maneuvers,
		Skipped:   res.Skipped,
	})
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLRun); err == nil {
		observability.Cache().OnCacheSet(ctx, "run", len(data))
	}
}

// record saves the run to history. History failures are logged and never
// fail the run.
func (r *Runner) record(ctx context.Context, res *Result, opts Options, runErr error) {
	if r.History == nil {
		return
	}
	rec := res.Record(opts, runErr)
	if err := r.History.Save(context.WithoutCancel(ctx), rec); err != nil {
		opts.Logger.Warn("failed to save run history", "id", rec.ID, "error", err)
	}
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	var errs []error
	if r.Cache != nil {
		errs = append(errs, r.Cache.Close())
	}
	if r.History != nil {
		errs = append(errs, r.History.Close())
	}
	return stderrors.Join(errs...)
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
