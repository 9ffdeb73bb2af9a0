package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/pipeline"
)

// optimizeCommand creates the optimize command, which reorders the strokes
// of existing channel programs.
func (c *CLI) optimizeCommand() *cobra.Command {
	var (
		flags  pipelineFlags
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "optimize <program>...",
		Short: "Reduce pen travel in existing channel programs",
		Long: `Re-optimize G-code programs written by penplot or another tool. Each
file is parsed with malformed lines skipped, its strokes are reordered into
a nearest-neighbour tour, and it is written back with pen lifts only
between strokes that do not touch.

Files are processed in parallel and fail independently. Without --output
the files are rewritten in place.`,
		Example: `  penplot optimize gcode/*_gcode.txt
  penplot optimize Red_gcode.txt -o optimized/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options(cmd.Flags(), &flags)
			if err != nil {
				return err
			}
			return c.optimizeFiles(cmd.Context(), args, outDir, opts)
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", "", "output folder (default: rewrite in place)")
	cmd.Flags().StringVar(&flags.backend, "backend", pipeline.DefaultBackend, "spatial index: grid, naive")
	cmd.Flags().Float64Var(&flags.liftThreshold, "lift-threshold", pipeline.DefaultLiftThreshold, "largest jump drawn without lifting the pen")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "files processed in parallel (default: number of CPUs)")
	cmd.Flags().BoolVar(&flags.unoptimized, "unoptimized", false, "lift the pen between every stroke")

	completeFlagValues(cmd)
	return cmd
}

func (c *CLI) optimizeFiles(ctx context.Context, paths []string, outDir string, opts pipeline.Options) error {
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return errors.Wrap(errors.ErrCodeIO, err, "create %s", outDir)
		}
	}

	prog := newProgress(c.Logger)
	results, err := pipeline.OptimizeFiles(ctx, paths, outDir, opts)
	if err != nil && results == nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Err != nil {
			failed++
			printError("%s: %s", r.Input, errors.UserMessage(r.Err))
			continue
		}
		printSuccess("%s", r.Channel)
		printStats(r.Report.Commands, r.Stats.Lifts, r.Report.TravelBefore, r.Report.TravelAfter, false)
		if len(r.BadLines) > 0 {
			printWarning("skipped %d malformed lines", len(r.BadLines))
		}
		printFile(r.Output)
	}
	prog.done(fmt.Sprintf("Optimized %d of %d files", len(paths)-failed, len(paths)))

	if err != nil {
		return err
	}
	if failed == len(paths) {
		return errors.New(errors.ErrCodeInput, "no program could be optimized")
	}
	return nil
}
