package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/penplot/pkg/core/extract"
	pkgio "github.com/matzehuels/penplot/pkg/io"
	"github.com/matzehuels/penplot/pkg/pipeline"
	"github.com/matzehuels/penplot/pkg/render/nodelink"
)

// graphOpts holds the flags of the graph command.
type graphOpts struct {
	output   string
	detailed bool
}

// graphCommand creates the graph command, which draws the circle
// connectivity graph the reducer builds for a mask.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		flags pipelineFlags
		gopts graphOpts
	)

	cmd := &cobra.Command{
		Use:   "graph <mask>",
		Short: "Draw the connectivity graph of a mask",
		Long: `Sample a mask with the edge-points strategy and write the graph of
touching circles that the reducer turns into strokes. The output format
follows the file extension: .dot writes Graphviz source, .svg renders it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options(cmd.Flags(), &flags)
			if err != nil {
				return err
			}
			opts.Strategy = string(extract.StrategyEdgePoints)
			if gopts.output == "" {
				gopts.output = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + "_graph.svg"
			}
			return c.graphMask(cmd.Context(), args[0], opts, gopts)
		},
	}

	flags.registerExtract(cmd.Flags())
	_ = cmd.Flags().MarkHidden("strategy")
	cmd.Flags().StringVarP(&gopts.output, "output", "o", "", "output file, .svg or .dot (default <mask>_graph.svg)")
	cmd.Flags().BoolVar(&gopts.detailed, "detailed", false, "label nodes with centre, radius and degree")

	completeFlagValues(cmd)
	return cmd
}

func (c *CLI) graphMask(ctx context.Context, path string, opts pipeline.Options, gopts graphOpts) error {
	ext := strings.ToLower(filepath.Ext(gopts.output))
	if ext != ".svg" && ext != ".dot" {
		return fmt.Errorf("unsupported graph format %q (use .svg or .dot)", ext)
	}
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
	red := pipeline.Reduce(prims, opts)
	printInfo("%s: %d circles, %d connections", mask.Name(), len(red.Graph.Circles), len(red.Graph.Edges))

	dot := nodelink.ToDOT(red.Graph, nodelink.Options{Detailed: gopts.detailed, Name: mask.Name()})
	data := []byte(dot)
	if ext == ".svg" {
		spinner := newSpinnerWithContext(ctx, "Rendering graph...")
		spinner.Start()
		data, err = nodelink.RenderSVG(ctx, dot)
		if err != nil {
			spinner.StopWithError("Rendering failed")
			return err
		}
		spinner.Stop()
	}

	err = pkgio.WriteFileAtomic(gopts.output, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return err
	}
	printSuccess("Wrote connectivity graph")
	printFile(gopts.output)
	return nil
}
