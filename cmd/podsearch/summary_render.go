package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"podsearch/internal/pipeline"
)

const (
	ansiReset  = "\033[0m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
)

func statusColor(status string) string {
	switch pipeline.Status(status) {
	case pipeline.StatusCompleted:
		return ansiGreen
	case pipeline.StatusPartial, pipeline.StatusInterrupted:
		return ansiYellow
	default:
		return ansiRed
	}
}

func colorStatus(status string, colorize bool) string {
	if !colorize {
		return status
	}
	return statusColor(status) + status + ansiReset
}

func renderSummary(w io.Writer, s *pipeline.Summary, colorize bool) {
	fmt.Fprintf(w, "%s %s: %s\n", s.Stage, s.Collection, colorStatus(string(s.Status), colorize))

	rows := [][]string{
		{"Files", strconv.Itoa(s.Total)},
		{"Processed", strconv.Itoa(s.Processed)},
		{"Cached", strconv.Itoa(s.Cached)},
		{"Skipped", strconv.Itoa(s.Skipped)},
		{"Failed", strconv.Itoa(s.Failed)},
	}
	switch s.Stage {
	case pipeline.StageTranscribe:
		rows = append(rows,
			[]string{"Chunks", strconv.Itoa(s.Chunks)},
			[]string{"Corrections", strconv.Itoa(s.Corrections)},
		)
	case pipeline.StageCorrect:
		rows = append(rows, []string{"Corrections", strconv.Itoa(s.Corrections)})
	case pipeline.StageIndex:
		rows = append(rows,
			[]string{"Documents", strconv.Itoa(s.Documents)},
			[]string{"New entries", strconv.Itoa(s.NewEntries)},
			[]string{"Duplicate ids", strconv.Itoa(s.Duplicates)},
		)
		if s.Index != nil {
			rows = append(rows,
				[]string{"Codec", s.Index.Codec},
				[]string{"Index size", fmt.Sprintf("%s (%.0f%% of %s)", formatBytes(s.Index.CompressedBytes), s.Index.Ratio()*100, formatBytes(s.Index.EncodedBytes))},
			)
		}
	}
	rows = append(rows, []string{"Duration", s.Duration().Round(time.Millisecond).String()})
	fmt.Fprintln(w, renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))

	if len(s.Failures) > 0 {
		failures := make([][]string, 0, len(s.Failures))
		for _, f := range s.Failures {
			failures = append(failures, []string{f.FileKey, f.Step, f.Category, truncate(f.Message, 80)})
		}
		fmt.Fprintln(w, "Failures:")
		fmt.Fprintln(w, renderTable([]string{"File", "Step", "Category", "Error"}, failures, nil))
	}
	if s.Err != "" {
		fmt.Fprintf(w, "Error: %s\n", s.Err)
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
