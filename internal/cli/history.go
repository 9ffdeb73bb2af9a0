package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/history"
	pkgio "github.com/matzehuels/penplot/pkg/io"
)

// historyCommand creates the history command, which lists past runs.
func (c *CLI) historyCommand() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List past runs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.newHistory(ctx)
			if err != nil {
				return errors.Wrap(errors.ErrCodeIO, err, "open run history")
			}
			defer store.Close()

			if len(args) == 1 {
				return showRun(ctx, store, args[0])
			}
			return listRuns(ctx, store, limit, asJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultListLimit, "number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")

	return cmd
}

func listRuns(ctx context.Context, store history.Store, limit int, asJSON bool) error {
	recs, err := store.List(ctx, limit)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "list runs")
	}
	if asJSON {
		if recs == nil {
			recs = []*history.Record{}
		}
		return pkgio.WriteJSON(recs, os.Stdout)
	}
	if len(recs) == 0 {
		printInfo("No runs recorded yet")
		printNextStep("Start one", "penplot run <mask-dir>")
		return nil
	}
	fmt.Fprintln(out, historyTable(recs))
	return nil
}

func showRun(ctx context.Context, store history.Store, id string) error {
	rec, err := store.Get(ctx, id)
	if stderrors.Is(err, history.ErrNotFound) {
		return errors.New(errors.ErrCodeNotFound, "run %s not found", id)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "get run %s", id)
	}
	return pkgio.WriteJSON(rec, os.Stdout)
}
