package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"podsearch/internal/lockfile"
)

func newLocksCommand(ctx *commandContext) *cobra.Command {
	locksCmd := &cobra.Command{
		Use:   "locks",
		Short: "Inspect the shared transcription lockfile",
	}
	locksCmd.AddCommand(newLocksListCommand(ctx))
	locksCmd.AddCommand(newLocksPruneCommand(ctx))
	return locksCmd
}

func (c *commandContext) coordinator() (*lockfile.Coordinator, error) {
	logger, err := c.logger()
	if err != nil {
		return nil, err
	}
	store, err := c.store()
	if err != nil {
		return nil, err
	}
	return lockfile.New(store, lockfile.WithLogger(logger)), nil
}

func newLocksListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show files currently claimed by workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			locks, err := ctx.coordinator()
			if err != nil {
				return err
			}
			snapshot, err := locks.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, snapshot)
			}
			out := cmd.OutOrStdout()
			if len(snapshot.Entries) == 0 {
				fmt.Fprintf(out, "No claimed files (lockfile version %d)\n", snapshot.Version)
				return nil
			}
			now := time.Now()
			staleAfter := cfg.StaleLockAge()
			rows := make([][]string, 0, len(snapshot.Entries))
			for _, e := range snapshot.Entries {
				age := e.Age(now)
				rows = append(rows, []string{e.FileKey, e.ProcessID, age.Round(time.Second).String(), yesNo(age > staleAfter)})
			}
			fmt.Fprintln(out, renderTable([]string{"File", "Owner", "Age", "Stale"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the lockfile as JSON")
	return cmd
}

func newLocksPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove claims older than the stale threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			locks, err := ctx.coordinator()
			if err != nil {
				return err
			}
			maxAge := cfg.StaleLockAge()
			if olderThan > 0 {
				maxAge = olderThan
			}
			pruned, err := locks.PruneStale(cmd.Context(), maxAge)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d stale claim(s) older than %s\n", pruned, maxAge)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Override lock.stale_after_minutes")
	return cmd
}
