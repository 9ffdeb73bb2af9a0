package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	pkgio "github.com/matzehuels/penplot/pkg/io"
	"github.com/matzehuels/penplot/pkg/pipeline"
	"github.com/matzehuels/penplot/pkg/render/preview"
)

// previewOpts holds the flags of the preview command.
type previewOpts struct {
	output string
	travel bool
	scale  float64
}

// previewCommand creates the preview command, which draws a G-code program.
func (c *CLI) previewCommand() *cobra.Command {
	var po previewOpts

	cmd := &cobra.Command{
		Use:   "preview <program>",
		Short: "Render a G-code program as SVG or PNG",
		Long: `Draw the pen-down strokes of a program in the colour of its channel.
Combined programs switch colour at every pen change. With --travel the
pen-up moves are drawn as well. The format follows the output extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if po.output == "" {
				po.output = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".svg"
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			opts := optionsFromConfig(cfg)
			return c.previewProgram(cmd.Context(), args[0], opts, po)
		},
	}

	cmd.Flags().StringVarP(&po.output, "output", "o", "", "output file, .svg or .png (default <program>.svg)")
	cmd.Flags().BoolVar(&po.travel, "travel", false, "draw pen-up travel")
	cmd.Flags().Float64Var(&po.scale, "px", 4, "output pixels per program unit")

	return cmd
}

func (c *CLI) previewProgram(ctx context.Context, path string, opts pipeline.Options, po previewOpts) error {
	ext := strings.ToLower(filepath.Ext(po.output))
	var write func(io.Writer, []preview.Stroke, preview.Options) error
	switch ext {
	case ".svg":
		write = preview.WriteSVG
	case ".png":
		write = preview.WritePNG
	default:
		return fmt.Errorf("unsupported preview format %q (use .svg or .png)", ext)
	}

	code, bad, err := pkgio.ReadProgram(path)
	if err != nil {
		return err
	}
	if len(bad) > 0 {
		printWarning("skipped %d malformed lines", len(bad))
		for _, le := range bad {
			c.Logger.Debug("malformed line", "line", le.Line, "text", le.Text, "error", le.Err)
		}
	}

	popts := preview.Options{
		Machine:    opts.Machine,
		Color:      preview.ColorOf(channelOfProgram(path)),
		ShowTravel: po.travel,
		Scale:      po.scale,
	}
	strokes := preview.Trace(code, popts)
	if err := ctx.Err(); err != nil {
		return err
	}

	err = pkgio.WriteFileAtomic(po.output, func(w io.Writer) error {
		return write(w, strokes, popts)
	})
	if err != nil {
		return err
	}
	printSuccess("Rendered %d moves, %s units of ink", len(strokes), fmtDist(preview.InkLength(strokes)))
	printFile(po.output)
	return nil
}

// channelOfProgram names the channel of "<Name>_gcode.txt"; other files,
// including the combined program, have none.
func channelOfProgram(path string) string {
	name, _ := pkgio.ChannelFromFileName(path)
	return name
}
