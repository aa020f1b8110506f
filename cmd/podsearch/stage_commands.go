package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"podsearch/internal/logging"
	"podsearch/internal/pipeline"
)

type stageFlags struct {
	force    bool
	progress bool
	json     bool
}

func (f *stageFlags) register(cmd *cobra.Command, withForce bool, forceHelp string) {
	if withForce {
		cmd.Flags().BoolVar(&f.force, "force", false, forceHelp)
	}
	cmd.Flags().BoolVar(&f.progress, "progress", false, "Emit JSON progress events on stdout")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print the run summary as JSON")
}

// summaryWriter keeps stdout free for progress events when they are enabled.
func (f *stageFlags) summaryWriter(cmd *cobra.Command) io.Writer {
	if f.progress {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

func (f *stageFlags) progressWriter(cmd *cobra.Command) io.Writer {
	if f.progress {
		return cmd.OutOrStdout()
	}
	return nil
}

type stageFunc func(ctx context.Context, p *pipeline.Pipeline, collection string) (*pipeline.Summary, error)

func runStage(ctx *commandContext, cmd *cobra.Command, flags *stageFlags, collection string, run stageFunc) error {
	rt, err := ctx.openRuntime(flags.progressWriter(cmd))
	if err != nil {
		return err
	}
	defer rt.Close()

	summary, runErr := run(cmd.Context(), rt.pipeline, collection)
	if summary != nil {
		waitForRefresh(rt, summary)
		out := flags.summaryWriter(cmd)
		if flags.json {
			enc := newJSONEncoder(out)
			if err := enc.Encode(summary); err != nil {
				return err
			}
		} else {
			renderSummary(out, summary, shouldColorize(out))
		}
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("%s interrupted: %w", collection, runErr)
		}
		return runErr
	}
	return nil
}

// waitForRefresh gives the asynchronous refresh signal a bounded chance to
// land before the process exits.
func waitForRefresh(rt *runtime, s *pipeline.Summary) {
	if s.Refresh == nil {
		return
	}
	timeout := rt.cfg.RefreshTimeout() + time.Second
	select {
	case err := <-s.Refresh:
		if err == nil {
			rt.logger.Info("index refresh signalled", logging.String(logging.FieldCollection, s.Collection))
		}
	case <-time.After(timeout):
		logging.WarnWithContext(rt.logger, "index refresh still pending at exit", "index_refresh_abandoned",
			logging.String(logging.FieldCollection, s.Collection),
			logging.Duration("waited", timeout),
			logging.String(logging.FieldImpact, "consumers keep serving the previous index until they reload"),
			logging.String(logging.FieldErrorHint, "check refresh.url reachability"),
		)
	}
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var flags stageFlags
	cmd := &cobra.Command{
		Use:   "transcribe <collection>",
		Short: "Transcribe audio files that have no transcript yet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(ctx, cmd, &flags, args[0], func(c context.Context, p *pipeline.Pipeline, collection string) (*pipeline.Summary, error) {
				return p.Transcribe(c, collection, pipeline.TranscribeOptions{Force: flags.force})
			})
		},
	}
	flags.register(cmd, true, "Re-transcribe files that already have a transcript")
	return cmd
}

func newIndexCommand(ctx *commandContext) *cobra.Command {
	var flags stageFlags
	cmd := &cobra.Command{
		Use:   "index <collection>",
		Short: "Rebuild the collection search index from transcripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(ctx, cmd, &flags, args[0], func(c context.Context, p *pipeline.Pipeline, collection string) (*pipeline.Summary, error) {
				return p.Index(c, collection, pipeline.IndexOptions{Force: flags.force})
			})
		},
	}
	flags.register(cmd, true, "Re-extract search entries even when cached")
	return cmd
}

func newCorrectCommand(ctx *commandContext) *cobra.Command {
	var flags stageFlags
	cmd := &cobra.Command{
		Use:   "correct <collection>",
		Short: "Re-apply spelling rules to existing transcripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(ctx, cmd, &flags, args[0], func(c context.Context, p *pipeline.Pipeline, collection string) (*pipeline.Summary, error) {
				return p.Correct(c, collection)
			})
		},
	}
	flags.register(cmd, false, "")
	return cmd
}
