package pipeline

import (
	"fmt"
	"time"

	"podsearch/internal/indexcodec"
	"podsearch/internal/runlog"
	"podsearch/internal/services"
)

// Status is the outcome of a stage run.
type Status string

const (
	StatusCompleted Status = "completed"
	// StatusPartial means at least one file failed but the run finished.
	StatusPartial     Status = "partial"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

// FileFailure records why one file was not processed.
type FileFailure struct {
	FileKey  string
	Step     string
	Category string
	Message  string
}

// Summary is returned by every stage, including failed and interrupted ones,
// so callers can always inspect partial progress.
type Summary struct {
	RunID      string
	Stage      string
	Collection string
	Owner      string
	Status     Status
	StartedAt  time.Time
	FinishedAt time.Time

	// Total counts the files the stage evaluated.
	Total     int
	Processed int
	// Cached counts files whose outputs already existed.
	Cached int
	// Skipped counts locked, stale, or malformed files.
	Skipped  int
	Failed   int
	Failures []FileFailure

	Chunks      int
	Corrections int
	NewEntries  int
	Documents   int
	Duplicates  int
	Index       *indexcodec.Stats
	Err         string

	// Refresh yields the outcome of the downstream refresh signal when one
	// was sent. It is nil when no new entries were indexed.
	Refresh <-chan error `json:"-"`
}

// Duration is the wall time of the run.
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *Summary) fail(fileKey, step string, err error) {
	s.Failed++
	s.Failures = append(s.Failures, FileFailure{
		FileKey:  fileKey,
		Step:     step,
		Category: services.Classify(err),
		Message:  err.Error(),
	})
}

// settle downgrades a completed run with failures to partial.
func (s *Summary) settle() {
	if s.Status == StatusCompleted && s.Failed > 0 {
		s.Status = StatusPartial
	}
}

// Headline is a one-line human summary.
func (s *Summary) Headline() string {
	line := fmt.Sprintf("%s %s: %s, %d/%d files processed, %d cached, %d skipped, %d failed",
		s.Stage, s.Collection, s.Status, s.Processed, s.Total, s.Cached, s.Skipped, s.Failed)
	if s.Stage == StageIndex {
		line += fmt.Sprintf(", %d documents (%d new entries)", s.Documents, s.NewEntries)
	}
	return line
}

// Run converts the summary into a ledger row.
func (s *Summary) Run() runlog.Run {
	return runlog.Run{
		RunID:      s.RunID,
		Stage:      s.Stage,
		Collection: s.Collection,
		Owner:      s.Owner,
		Status:     string(s.Status),
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Processed:  s.Processed,
		Cached:     s.Cached,
		Skipped:    s.Skipped,
		Failed:     s.Failed,
		Documents:  s.Documents,
		Message:    s.Err,
	}
}
