package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/penplot/pkg/core/raster"
	"github.com/matzehuels/penplot/pkg/core/vector"
	pkgio "github.com/matzehuels/penplot/pkg/io"
	"github.com/matzehuels/penplot/pkg/pipeline"
	"github.com/matzehuels/penplot/pkg/render/preview"
)

// extractOpts holds the flags of the extract command.
type extractOpts struct {
	output string
	stage  string
	scale  float64
}

// Stages at which extract can stop.
const (
	stageExtract = "extract"
	stageReduce  = "reduce"
	stageMerge   = "merge"
)

// extractCommand creates the extract command, which writes a mask's
// geometry as SVG for inspection.
func (c *CLI) extractCommand() *cobra.Command {
	var (
		flags pipelineFlags
		eo    = extractOpts{stage: stageExtract}
	)

	cmd := &cobra.Command{
		Use:   "extract <mask>",
		Short: "Write the vector geometry of one mask as SVG",
		Long: `Run one mask through extraction and write the resulting primitives as
SVG. With --stage reduce or --stage merge the connectivity reducer and the
segment merger run as well, showing the strokes the plotter will draw.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch eo.stage {
			case stageExtract, stageReduce, stageMerge:
			default:
				return fmt.Errorf("invalid stage: %q (must be one of: extract, reduce, merge)", eo.stage)
			}
			opts, err := c.options(cmd.Flags(), &flags)
			if err != nil {
				return err
			}
			if eo.output == "" {
				eo.output = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + "_" + eo.stage + ".svg"
			}
			return c.extractMask(cmd.Context(), args[0], opts, eo)
		},
	}

	flags.registerExtract(cmd.Flags())
	cmd.Flags().Float64Var(&flags.mergeTolerance, "merge-tolerance", pipeline.DefaultMergeTolerance, "largest gap bridged when merging")
	cmd.Flags().StringVarP(&eo.output, "output", "o", "", "output SVG (default <mask>_<stage>.svg)")
	cmd.Flags().StringVar(&eo.stage, "stage", eo.stage, "stop after: extract, reduce, merge")
	cmd.Flags().Float64Var(&eo.scale, "px", 4, "SVG pixels per mask pixel")

	completeFlagValues(cmd)
	return cmd
}

// loadMask decodes a mask file with opts applied. opts must have been
// through ValidateAndSetDefaults.
func loadMask(path string, opts pipeline.Options) (*raster.Mask, error) {
	channel := raster.ChannelName(filepath.Base(path))
	return raster.Load(channel, path, opts.LoadOptions())
}

func (c *CLI) extractMask(ctx context.Context, path string, opts pipeline.Options, eo extractOpts) error {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}
	mask, err := loadMask(path, opts)
	if err != nil {
		return err
	}

	prims, err := pipeline.Extract(ctx, mask, opts)
	if err != nil {
		return err
	}
	count := vector.Tally(prims)
	printInfo("%s: %d circles, %d segments, %d polygons", mask.Name(), count.Circles, count.Segments, count.Polygons)

	if eo.stage != stageExtract {
		red := pipeline.Reduce(prims, opts)
		prims = red.Primitives
		printDetail("reduce: %d connections, %d circles joined", len(red.Graph.Edges), red.Joined)
	}
	if eo.stage == stageMerge {
		segs := pipeline.Merge(prims, opts)
		prims = make([]vector.Primitive, len(segs))
		for i, s := range segs {
			prims[i] = s
		}
		printDetail("merge: %d segments", len(segs))
	}

	err = pkgio.WriteFileAtomic(eo.output, func(w io.Writer) error {
		return preview.WritePrimitives(w, prims, preview.ColorOf(mask.Name()), preview.Options{Scale: eo.scale})
	})
	if err != nil {
		return err
	}
	printSuccess("Wrote %d primitives", len(prims))
	printFile(eo.output)
	return nil
}
