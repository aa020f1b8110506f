package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"podsearch/internal/runlog"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	var pruneOlder time.Duration
	cmd := &cobra.Command{
		Use:   "history [collection]",
		Short: "List recent pipeline runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := runlog.Open(cfg.RunLogPath())
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if pruneOlder > 0 {
				removed, err := store.Prune(cmd.Context(), time.Now().Add(-pruneOlder))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d run(s) older than %s\n", removed, pruneOlder)
			}

			var collection string
			if len(args) == 1 {
				collection = args[0]
			}
			runs, err := store.Recent(cmd.Context(), collection, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					r.Stage,
					r.Collection,
					colorStatus(r.Status, colorize),
					strconv.Itoa(r.Processed),
					strconv.Itoa(r.Cached),
					strconv.Itoa(r.Skipped),
					strconv.Itoa(r.Failed),
					r.Duration().Round(time.Second).String(),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Started", "Stage", "Collection", "Status", "Processed", "Cached", "Skipped", "Failed", "Duration"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")
	cmd.Flags().DurationVar(&pruneOlder, "prune", 0, "Delete runs older than this before listing")
	return cmd
}
