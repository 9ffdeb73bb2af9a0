package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/penplot/pkg/core/raster"
	"github.com/matzehuels/penplot/pkg/core/sequence"
	"github.com/matzehuels/penplot/pkg/errors"
	pkgio "github.com/matzehuels/penplot/pkg/io"
	"github.com/matzehuels/penplot/pkg/pipeline"
)

// runOpts holds the flags of the run command that are not pipeline options.
type runOpts struct {
	output    string
	pick      bool
	noCombine bool
	json      bool
}

// runCommand creates the run command, the main entry point of penplot.
func (c *CLI) runCommand() *cobra.Command {
	var (
		flags pipelineFlags
		ro    runOpts
	)

	cmd := &cobra.Command{
		Use:   "run <mask-dir>",
		Short: "Convert a folder of colour masks into G-code",
		Long: `Convert every mask image in a folder into a G-code program per colour,
then sequence the programs into one combined program with pen changes.

The channel of each mask comes from its file name: red_mask.png is the
Red channel. Programs are written to the output folder as
<Channel>_gcode.txt, the combined program as combined_gcode.txt, and a
run summary as run.json.`,
		Example: `  penplot run masks/ -o gcode/
  penplot run masks/ --strategy edge-points --disable Lightgrey
  penplot run masks/ --pick`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options(cmd.Flags(), &flags)
			if err != nil {
				return err
			}
			opts.InputDir = args[0]
			opts.OutputDir = ro.output
			if opts.OutputDir == "" {
				opts.OutputDir = filepath.Join(args[0], "gcode")
			}
			opts.SkipCombine = ro.noCombine
			return c.runMasks(withLogger(cmd.Context(), c.Logger), opts, ro)
		},
	}

	flags.registerRun(cmd.Flags())
	cmd.Flags().StringVarP(&ro.output, "output", "o", "", "output folder (default <mask-dir>/gcode)")
	cmd.Flags().BoolVar(&ro.pick, "pick", false, "choose channels interactively before running")
	cmd.Flags().BoolVar(&ro.noCombine, "no-combine", false, "write channel programs only")
	cmd.Flags().BoolVar(&ro.json, "json", false, "print the run summary as JSON")

	completeFlagValues(cmd)
	return cmd
}

func (c *CLI) runMasks(ctx context.Context, opts pipeline.Options, ro runOpts) error {
	logger := loggerFromContext(ctx)

	if ro.pick {
		sources, err := raster.Discover(opts.InputDir)
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			return errors.New(errors.ErrCodeNoChannels, "no mask images in %s", opts.InputDir)
		}
		off, ok, err := pickChannels(sources, opts.ToolTable(), opts.Disabled)
		if err != nil {
			return fmt.Errorf("channel picker: %w", err)
		}
		if !ok {
			printInfo("Canceled")
			return nil
		}
		opts.Disabled = off
	}

	runner, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(logger)
	res, err := runner.Execute(ctx, opts)
	if res == nil {
		return err
	}

	if ro.json {
		if werr := pkgio.WriteJSON(res.Summary(), os.Stdout); werr != nil {
			return werr
		}
		return err
	}

	prog.done(fmt.Sprintf("Processed %d channels", len(res.Channels)))
	fmt.Fprintln(out, runTable(res))
	printRunOutcome(res)
	if err != nil {
		return err
	}

	if res.CombinedPath != "" {
		printNextStep("Preview the combined program", "penplot preview "+res.CombinedPath)
	}
	return nil
}

// printRunOutcome lists failures, skipped channels and written files.
func printRunOutcome(res *pipeline.Result) {
	for _, ch := range res.Failed() {
		printError("%s: %s", ch.Channel, errors.UserMessage(ch.Err))
	}
	for _, s := range res.Skipped {
		printWarning("%s skipped: %s", s.Channel, s.Reason)
	}
	if len(res.Sequenced) > 0 {
		printSuccess("Sequenced %d channels with %d pen changes", len(res.Sequenced), pickups(res.Maneuvers))
		printDetail("Order: %v", res.Sequenced)
	}
	for _, ch := range res.Channels {
		if ch.Path != "" {
			printFile(ch.Path)
		}
	}
	if res.CombinedPath != "" {
		printFile(res.CombinedPath)
	}
}

func pickups(ms []sequence.Maneuver) int {
	n := 0
	for _, m := range ms {
		if m.Kind == sequence.KindPickup {
			n++
		}
	}
	return n
}
