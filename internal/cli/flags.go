package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/penplot/pkg/core/extract"
	"github.com/matzehuels/penplot/pkg/core/spatial"
	"github.com/matzehuels/penplot/pkg/pipeline"
)

// pipelineFlags holds the flags that override config file settings. Only
// flags the user actually set are applied, so an unset flag never masks a
// value from the config file.
type pipelineFlags struct {
	strategy       string
	threshold      uint8
	radius         float64
	step           int
	scale          float64
	edgeDetect     bool
	smooth         bool
	epsilon        float64
	mergeTolerance float64
	liftThreshold  float64
	backend        string
	workers        int
	disable        string
	skipOptimize   bool
	unoptimized    bool
	refresh        bool
}

// registerExtract adds the flags that shape extraction.
func (f *pipelineFlags) registerExtract(fs *pflag.FlagSet) {
	fs.StringVarP(&f.strategy, "strategy", "s", pipeline.DefaultStrategy, "extraction strategy: edge-points, hatch-fill, outline-polygon")
	fs.Uint8Var(&f.threshold, "threshold", 128, "foreground threshold (1-255)")
	fs.Float64Var(&f.radius, "radius", 1, "circle radius for edge-points")
	fs.IntVar(&f.step, "step", 1, "row spacing for hatch-fill, in pixels")
	fs.Float64Var(&f.scale, "scale", pipeline.DefaultScale, "resize masks by this factor before extraction")
	fs.BoolVar(&f.edgeDetect, "edge-detect", false, "sample only region boundaries (edge-points)")
	fs.BoolVar(&f.smooth, "smooth", false, "fit curves to region boundaries (outline-polygon)")
	fs.Float64Var(&f.epsilon, "epsilon", pipeline.DefaultEpsilon, "adjacency tolerance when joining circles")
	fs.StringVar(&f.backend, "backend", pipeline.DefaultBackend, "spatial index: grid, naive")
}

// registerRun adds the flags for full pipeline runs.
func (f *pipelineFlags) registerRun(fs *pflag.FlagSet) {
	f.registerExtract(fs)
	fs.Float64Var(&f.mergeTolerance, "merge-tolerance", pipeline.DefaultMergeTolerance, "largest gap bridged when merging collinear segments")
	fs.Float64Var(&f.liftThreshold, "lift-threshold", pipeline.DefaultLiftThreshold, "largest jump drawn without lifting the pen")
	fs.IntVarP(&f.workers, "workers", "w", 0, "channels processed in parallel (default: number of CPUs)")
	fs.StringVar(&f.disable, "disable", "", "channels to leave out (comma-separated)")
	fs.BoolVar(&f.skipOptimize, "skip-optimize", false, "keep strokes in extraction order")
	fs.BoolVar(&f.unoptimized, "unoptimized", false, "lift the pen between every stroke")
	fs.BoolVar(&f.refresh, "refresh", false, "ignore cached channel programs")
}

// completeFlagValues offers the fixed choices of whichever enum flags cmd
// defines.
func completeFlagValues(cmd *cobra.Command) {
	choices := map[string][]string{
		"strategy": {string(extract.StrategyEdgePoints), string(extract.StrategyHatchFill), string(extract.StrategyOutlinePolygon)},
		"backend":  {string(spatial.BackendGrid), string(spatial.BackendNaive)},
	}
	for name, values := range choices {
		if cmd.Flags().Lookup(name) != nil {
			_ = cmd.RegisterFlagCompletionFunc(name, cobra.FixedCompletions(values, cobra.ShellCompDirectiveNoFileComp))
		}
	}
}

// apply copies the flags the user set onto opts.
func (f *pipelineFlags) apply(fs *pflag.FlagSet, opts *pipeline.Options) {
	set := func(name string) bool {
		fl := fs.Lookup(name)
		return fl != nil && fl.Changed
	}
	if set("strategy") {
		opts.Strategy = f.strategy
	}
	if set("threshold") {
		opts.Threshold = f.threshold
	}
	if set("radius") {
		opts.Radius = f.radius
	}
	if set("step") {
		opts.Step = f.step
	}
	if set("scale") {
		opts.Scale = f.scale
	}
	if set("edge-detect") {
		opts.EdgeDetect = f.edgeDetect
	}
	if set("smooth") {
		opts.Smooth = f.smooth
	}
	if set("epsilon") {
		opts.Epsilon = f.epsilon
	}
	if set("backend") {
		opts.Backend = f.backend
	}
	if set("merge-tolerance") {
		opts.MergeTolerance = f.mergeTolerance
	}
	if set("lift-threshold") {
		opts.LiftThreshold = f.liftThreshold
	}
	if set("workers") {
		opts.Workers = f.workers
	}
	if set("disable") {
		opts.Disabled = append(opts.Disabled, splitList(f.disable)...)
	}
	opts.SkipOptimize = opts.SkipOptimize || f.skipOptimize
	opts.Unoptimized = opts.Unoptimized || f.unoptimized
	opts.Refresh = opts.Refresh || f.refresh
}

// options loads the config file and applies the flags on top.
func (c *CLI) options(fs *pflag.FlagSet, f *pipelineFlags) (pipeline.Options, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return pipeline.Options{}, err
	}
	opts := optionsFromConfig(cfg)
	f.apply(fs, &opts)
	opts.Logger = c.Logger
	return opts, nil
}
