package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"podsearch/internal/blobstore"
	"podsearch/internal/config"
	"podsearch/internal/lockfile"
	"podsearch/internal/logging"
	"podsearch/internal/metrics"
	"podsearch/internal/pipeline"
	"podsearch/internal/progress"
	"podsearch/internal/runlog"
)

type commandContext struct {
	configPath string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	// overrides used by tests
	storeOverride blobstore.Store
	extraOptions  []pipeline.Option
}


func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

func (c *commandContext) store() (blobstore.Store, error) {
	if c.storeOverride != nil {
		return c.storeOverride, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return blobstore.NewFromConfig(cfg)
}

// runtime holds the collaborators of one stage invocation.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    blobstore.Store
	pipeline *pipeline.Pipeline
	progress *progress.Reporter
	history  *runlog.Store
	owner    string
}

func (r *runtime) Close() {
	if r.history != nil {
		_ = r.history.Close()
	}
	if r.progress != nil {
		_ = r.progress.Close()
	}
}

// openRuntime assembles a pipeline. Progress events go to stdout only when
// progressOut is non-nil; the configured progress file receives them either way.
func (c *commandContext) openRuntime(progressOut io.Writer) (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.logger()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	store, err := c.store()
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	owner := lockfile.NewOwnerID()
	if progressOut == nil {
		progressOut = io.Discard
	}
	reporter, err := progress.NewFromConfig(cfg, owner, progressOut)
	if err != nil {
		return nil, fmt.Errorf("open progress file: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, store: store, progress: reporter, owner: owner}
	history, err := runlog.Open(cfg.RunLogPath())
	if err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "runlog_open_failed",
			logging.String("path", cfg.RunLogPath()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run is not recorded in 'podsearch history'"),
			logging.String(logging.FieldErrorHint, "delete the ledger file if its schema is outdated"),
		)
	} else {
		rt.history = history
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithOwner(owner),
		pipeline.WithProgress(reporter),
		pipeline.WithMetrics(metrics.New()),
	}
	if rt.history != nil {
		opts = append(opts, pipeline.WithHistory(rt.history))
	}
	opts = append(opts, c.extraOptions...)
	rt.pipeline = pipeline.New(cfg, store, opts...)
	return rt, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
