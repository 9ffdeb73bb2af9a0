package toolpath

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/jbeda/geom"

	"github.com/matzehuels/penplot/pkg/core/spatial"
	"github.com/matzehuels/penplot/pkg/core/vector"
	"github.com/matzehuels/penplot/pkg/errors"
)

// OptimizeOptions configures [Optimize].
type OptimizeOptions struct {
	// Start is the pen position before the first stroke.
	Start vector.Point

	// Backend selects the nearest-neighbour index.
	Backend spatial.Backend

	Logger *log.Logger
}

// Report describes what [Optimize] did to a channel.
type Report struct {
	Commands     int     `json:"commands"`
	Skipped      int     `json:"skipped"`
	TravelBefore float64 `json:"travel_before"`
	TravelAfter  float64 `json:"travel_after"`
}

// Optimize reorders the commands of p into a greedy nearest-neighbour tour.
//
// Starting at opts.Start, the remaining command whose start is nearest to
// the pen is drawn next and the pen moves to its end. Equally near commands
// are taken in their original order. The result is a permutation of the
// finite commands of p; commands with NaN or infinite coordinates are
// skipped and logged. If p has commands but none is finite the channel is
// unusable and a parse error is returned.
//
// ctx is checked before every insertion. p is not modified.
func Optimize(ctx context.Context, p *ChannelProgram, opts OptimizeOptions) (*ChannelProgram, Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	cmds := make([]DrawCommand, 0, len(p.Commands))
	for i, c := range p.Commands {
		if !c.Finite() {
			logger.Warn("skipping malformed command", "channel", p.Name, "index", i, "start", c.Start, "end", c.End)
			continue
		}
		cmds = append(cmds, c)
	}
	rep := Report{
		Commands:     len(cmds),
		Skipped:      len(p.Commands) - len(cmds),
		TravelBefore: Travel(cmds, opts.Start),
	}
	if len(cmds) == 0 && rep.Skipped > 0 {
		return nil, rep, errors.New(errors.ErrCodeParse, "channel %s has no usable commands (%d malformed)", p.Name, rep.Skipped)
	}

	starts := make([]geom.Coord, len(cmds))
	for i, c := range cmds {
		starts[i] = c.Start
	}
	idx := spatial.NewIndex(opts.Backend, starts)

	out := &ChannelProgram{Name: p.Name, Commands: make([]DrawCommand, 0, len(cmds))}
	cur := opts.Start
	for idx.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, rep, err
		}
		i, _ := idx.Pop(cur)
		out.Commands = append(out.Commands, cmds[i])
		cur = cmds[i].End
	}

	rep.TravelAfter = Travel(out.Commands, opts.Start)
	logger.Debug("optimized tour", "channel", p.Name, "commands", rep.Commands,
		"travel_before", rep.TravelBefore, "travel_after", rep.TravelAfter)
	return out, rep, nil
}
