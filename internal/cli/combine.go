package cli

import (
	"context"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/pipeline"
)

// combineCommand creates the combine command, which sequences existing
// channel programs into one multi-pen program.
func (c *CLI) combineCommand() *cobra.Command {
	var flags pipelineFlags

	cmd := &cobra.Command{
		Use:   "combine <dir>",
		Short: "Sequence channel programs into one multi-pen program",
		Long: `Read every <Channel>_gcode.txt in a folder and write combined_gcode.txt,
which draws the channels one after another and swaps pens at the holders
listed in the config file between them. Channels without a holder, empty
channels and channels passed to --disable are left out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options(cmd.Flags(), &flags)
			if err != nil {
				return err
			}
			return c.combineDir(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&flags.disable, "disable", "", "channels to leave out (comma-separated)")
	cmd.Flags().Float64Var(&flags.liftThreshold, "lift-threshold", pipeline.DefaultLiftThreshold, "largest jump drawn without lifting the pen")

	return cmd
}

func (c *CLI) combineDir(ctx context.Context, dir string, opts pipeline.Options) error {
	res, err := pipeline.CombineDir(ctx, dir, opts)
	if res != nil {
		for _, name := range slices.Sorted(maps.Keys(res.Failed)) {
			printError("%s: %s", name, errors.UserMessage(res.Failed[name]))
		}
		if res.Combined != nil {
			for _, s := range res.Combined.Skipped {
				printWarning("%s skipped: %s", s.Channel, s.Reason)
			}
		}
	}
	if err != nil {
		return err
	}

	printSuccess("Sequenced %d channels with %d pen changes", len(res.Combined.Channels), pickups(res.Combined.Maneuvers))
	printDetail("Order: %v", res.Combined.Channels)
	printFile(res.Path)
	printNextStep("Preview it", "penplot preview "+res.Path)
	return nil
}
