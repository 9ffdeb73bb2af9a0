package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/penplot/internal/server"
	"github.com/matzehuels/penplot/pkg/observability"
)

// serveCommand creates the serve command, which exposes the pipeline over
// HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		flags     pipelineFlags
		addr      string
		timeout   time.Duration
		maxUpload int64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over HTTP",
		Long: `Start an HTTP API that converts uploaded masks into G-code.

  POST /v1/runs       multipart form with "masks" files and optional JSON "options"
  GET  /v1/runs       recent runs
  GET  /v1/runs/{id}  one run
  GET  /healthz       health check

Flags and the config file set the defaults every request starts from.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := c.options(cmd.Flags(), &flags)
			if err != nil {
				return err
			}
			if err := opts.ValidateAndSetDefaults(); err != nil {
				return err
			}

			observability.SetServerHooks(observability.NewLogHooks(c.Logger))

			runner, err := c.newRunner(ctx)
			if err != nil {
				return err
			}
			defer runner.Close()

			srv := server.New(runner, server.Config{
				Base:           opts,
				MaxUploadBytes: maxUpload,
				RunTimeout:     timeout,
			}, c.Logger)

			printInfo("Listening on %s", addr)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	flags.registerRun(cmd.Flags())
	cmd.Flags().StringVar(&addr, "addr", server.DefaultAddr, "listen address")
	cmd.Flags().DurationVar(&timeout, "timeout", server.DefaultRunTimeout, "maximum duration of one run")
	cmd.Flags().Int64Var(&maxUpload, "max-upload", server.DefaultMaxUploadBytes, "maximum upload size in bytes")

	completeFlagValues(cmd)
	return cmd
}
