package pipeline

import (
	"context"

	"github.com/matzehuels/penplot/pkg/core/extract"
	"github.com/matzehuels/penplot/pkg/core/merge"
	"github.com/matzehuels/penplot/pkg/core/raster"
	"github.com/matzehuels/penplot/pkg/core/reduce"
	"github.com/matzehuels/penplot/pkg/core/spatial"
	"github.com/matzehuels/penplot/pkg/core/toolpath"
	"github.com/matzehuels/penplot/pkg/core/vector"
	"github.com/matzehuels/penplot/pkg/errors"
)

// The stage functions below run one step of the channel pipeline. They are
// exported so the debugging commands (extract, graph) can stop halfway.
// Each expects opts to have been through ValidateAndSetDefaults.

// Extract runs the configured extractor on m.
func Extract(ctx context.Context, m *raster.Mask, opts Options) ([]vector.Primitive, error) {
	s, err := extract.ParseStrategy(opts.Strategy)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "strategy")
	}
	ex, err := extract.New(s, opts.ExtractParams())
	if err != nil {
		return nil, err
	}
	prims, err := ex.Extract(ctx, m)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.ErrCodeCanceled, ctx.Err(), "extract %s", m.Name())
		}
		if errors.GetCode(err) == "" {
			return nil, errors.Wrap(errors.ErrCodeInput, err, "extract %s", m.Name())
		}
		return nil, err
	}
	return prims, nil
}

// Reduce joins touching circles in prims.
func Reduce(prims []vector.Primitive, opts Options) reduce.Result {
	return reduce.Reduce(prims, reduce.Options{
		Epsilon:   opts.Epsilon,
		Connector: spatial.NewConnector(spatial.Backend(opts.Backend)),
	})
}

// Flatten converts primitives into segments: polygons contribute their
// edges and an unjoined circle becomes a zero-length dot at its centre.
func Flatten(prims []vector.Primitive) []vector.Segment {
	var out []vector.Segment
	for _, p := range prims {
		switch p := p.(type) {
		case vector.Segment:
			out = append(out, p)
		case vector.Polygon:
			out = append(out, p.Edges()...)
		case vector.Circle:
			out = append(out, vector.Segment{P1: p.Center, P2: p.Center})
		}
	}
	return out
}

// Merge flattens prims and merges the segments.
func Merge(prims []vector.Primitive, opts Options) []vector.Segment {
	return merge.Merge(Flatten(prims), opts.MergeTolerance)
}

// Plan compiles segments into a channel program and, unless SkipOptimize
// is set, orders it into a nearest-neighbour tour starting at the machine
// origin.
func Plan(ctx context.Context, name string, segs []vector.Segment, opts Options) (*toolpath.ChannelProgram, toolpath.Report, error) {
	prog := toolpath.Compile(name, segs)
	if opts.SkipOptimize {
		travel := toolpath.Travel(prog.Commands, opts.Machine.Origin)
		return prog, toolpath.Report{Commands: prog.Len(), TravelBefore: travel, TravelAfter: travel}, nil
	}
	out, rep, err := toolpath.Optimize(ctx, prog, toolpath.OptimizeOptions{
		Start:   opts.Machine.Origin,
		Backend: spatial.Backend(opts.Backend),
		Logger:  opts.Logger,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, rep, errors.Wrap(errors.ErrCodeCanceled, ctx.Err(), "optimize %s", name)
		}
		return nil, rep, err
	}
	return out, rep, nil
}
