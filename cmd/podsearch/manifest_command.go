package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"podsearch/internal/manifest"
)

func newManifestCommand(ctx *commandContext) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect and update collection manifests",
	}
	manifestCmd.AddCommand(newManifestSyncCommand(ctx))
	manifestCmd.AddCommand(newManifestShowCommand(ctx))
	return manifestCmd
}

func newManifestSyncCommand(ctx *commandContext) *cobra.Command {
	var feedURL string
	cmd := &cobra.Command{
		Use:   "sync <collection>",
		Short: "Register new episodes from the audio listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			store, err := ctx.store()
			if err != nil {
				return err
			}
			var feed manifest.FeedSource
			if url := strings.TrimSpace(feedURL); url != "" {
				feed = manifest.NewRSSFeed(url)
			}
			m, report, err := manifest.NewSyncer(store, feed, logger).Sync(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Manifest %s: %d episodes (%d existing, %d added, %d dated from feed, %d unrecognized files)\n",
				m.Collection, len(m.Episodes), report.Existing, report.Added, report.FromFeed, report.SkippedKey)
			return nil
		},
	}
	cmd.Flags().StringVar(&feedURL, "feed", "", "RSS/Atom feed URL used for exact publish times")
	return cmd
}

func newManifestShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <collection>",
		Short: "List the episodes registered in a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.store()
			if err != nil {
				return err
			}
			m, found, err := manifest.Load(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no manifest for %s; run 'podsearch manifest sync %s'", args[0], args[0])
			}
			if asJSON {
				return writeJSON(cmd, m)
			}
			rows := make([][]string, 0, len(m.Episodes))
			for _, e := range m.Episodes {
				rows = append(rows, []string{strconv.Itoa(e.SequentialID), e.FileKey, e.PublishedAt.UTC().Format("2006-01-02 15:04"), e.Title})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Episode", "Published (UTC)", "Title"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the manifest as JSON")
	return cmd
}
