package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"podsearch/internal/blobstore"
	"podsearch/internal/episode"
	"podsearch/internal/indexcodec"
)

type searchHit struct {
	ID          string  `json:"id"`
	EpisodeID   int     `json:"sequentialEpisodeId"`
	StartTimeMs int64   `json:"startTimeMs"`
	Text        string  `json:"text"`
	Score       float64 `json:"score"`
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <collection> <query...>",
		Short: "Query the persisted index of a collection",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection := args[0]
			if err := episode.ValidateCollection(collection); err != nil {
				return err
			}
			query := strings.Join(args[1:], " ")
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			store, err := ctx.store()
			if err != nil {
				return err
			}
			ix, stats, err := indexcodec.Load(cmd.Context(), store, episode.IndexKey(collection), logger)
			if err != nil {
				if errors.Is(err, blobstore.ErrNotExist) {
					return fmt.Errorf("no index for %s; run 'podsearch index %s'", collection, collection)
				}
				return err
			}

			raw := ix.Search(query, limit)
			hits := make([]searchHit, 0, len(raw))
			for _, h := range raw {
				hits = append(hits, searchHit{
					ID:          h.Entry.ID,
					EpisodeID:   h.Entry.SequentialEpisodeID,
					StartTimeMs: h.Entry.StartTimeMs,
					Text:        h.Entry.Text,
					Score:       h.Score,
				})
			}
			if asJSON {
				return writeJSON(cmd, hits)
			}

			out := cmd.OutOrStdout()
			if len(hits) == 0 {
				fmt.Fprintf(out, "No matches for %q in %d documents\n", query, stats.Documents)
				return nil
			}
			rows := make([][]string, 0, len(hits))
			for _, h := range hits {
				rows = append(rows, []string{
					strconv.Itoa(h.EpisodeID),
					formatOffset(h.StartTimeMs),
					truncate(h.Text, 90),
					strconv.FormatFloat(h.Score, 'f', 2, 64),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Episode", "At", "Text", "Score"}, rows,
				[]columnAlignment{alignRight, alignRight, alignLeft, alignRight}))
			fmt.Fprintf(out, "%d of %d documents matched\n", len(hits), stats.Documents)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum results (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print hits as JSON")
	return cmd
}

func formatOffset(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	s := int(d/time.Second) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
