package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeChunking()
	if err := c.normalizeAuxiliaryFiles(); err != nil {
		return err
	}
	c.normalizeIndex()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageLocal
	}
	var err error
	if c.Storage.Root, err = expandPath(c.Storage.Root); err != nil {
		return fmt.Errorf("storage.root: %w", err)
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.URL = strings.TrimRight(strings.TrimSpace(c.Storage.URL), "/")
	if c.Storage.URL == "" {
		c.Storage.URL = strings.TrimRight(strings.TrimSpace(os.Getenv("SUPABASE_URL")), "/")
	}
	c.Storage.APIKey = strings.TrimSpace(c.Storage.APIKey)
	if c.Storage.APIKey == "" {
		c.Storage.APIKey = strings.TrimSpace(os.Getenv("SUPABASE_KEY"))
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	t := &c.Transcription
	t.Provider = strings.ToLower(strings.TrimSpace(t.Provider))
	if t.Provider == "" {
		t.Provider = ProviderOpenAI
	}
	t.Model = strings.TrimSpace(t.Model)
	if t.Model == "" {
		if t.Provider == ProviderWhisperX {
			t.Model = defaultWhisperXModel
		} else {
			t.Model = defaultTranscriptionModel
		}
	}
	t.Prompt = strings.TrimSpace(t.Prompt)
	t.ResponseFormat = strings.ToLower(strings.TrimSpace(t.ResponseFormat))
	if t.ResponseFormat == "" {
		t.ResponseFormat = defaultResponseFormat
	}
	t.Language = strings.ToLower(strings.TrimSpace(t.Language))
	if t.Language == "" {
		t.Language = defaultLanguage
	}
	t.APIKey = strings.TrimSpace(t.APIKey)
	if t.APIKey == "" {
		t.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	t.BaseURL = strings.TrimRight(strings.TrimSpace(t.BaseURL), "/")
	if t.BaseURL == "" {
		t.BaseURL = defaultOpenAIBaseURL
	}
	if t.BaseTimeoutSeconds <= 0 {
		t.BaseTimeoutSeconds = defaultBaseTimeoutSeconds
	}
	if t.MaxAttempts <= 0 {
		t.MaxAttempts = defaultMaxAttempts
	}
	if t.BackoffSeconds < 0 {
		t.BackoffSeconds = defaultBackoffSeconds
	}
	if t.MaxConcurrentFiles <= 0 {
		t.MaxConcurrentFiles = defaultMaxConcurrentFiles
	}
}

func (c *Config) normalizeChunking() {
	if c.Chunking.MaxSizeMB <= 0 {
		c.Chunking.MaxSizeMB = defaultMaxSizeMB
	}
	if c.Chunking.MaxDurationMinutes <= 0 {
		c.Chunking.MaxDurationMinutes = defaultMaxDurationMinutes
	}
	if c.Chunking.TargetChunkMinutes <= 0 {
		c.Chunking.TargetChunkMinutes = defaultTargetChunkMinutes
	}
	c.Chunking.FFmpegBinary = strings.TrimSpace(c.Chunking.FFmpegBinary)
	c.Chunking.FFprobeBinary = strings.TrimSpace(c.Chunking.FFprobeBinary)
	if c.Lock.StaleAfterMinutes <= 0 {
		c.Lock.StaleAfterMinutes = defaultStaleAfterMinutes
	}
}

func (c *Config) normalizeAuxiliaryFiles() error {
	var err error
	if c.Spelling.RulesFile, err = expandPath(strings.TrimSpace(c.Spelling.RulesFile)); err != nil {
		return fmt.Errorf("spelling.rules_file: %w", err)
	}
	if c.Progress.File, err = expandPath(strings.TrimSpace(c.Progress.File)); err != nil {
		return fmt.Errorf("progress.file: %w", err)
	}
	if c.Progress.MaxSizeMB <= 0 {
		c.Progress.MaxSizeMB = defaultProgressMaxSizeMB
	}
	if c.Metrics.Textfile, err = expandPath(strings.TrimSpace(c.Metrics.Textfile)); err != nil {
		return fmt.Errorf("metrics.textfile: %w", err)
	}
	c.Refresh.URL = strings.TrimSpace(c.Refresh.URL)
	c.Refresh.Token = strings.TrimSpace(c.Refresh.Token)
	if c.Refresh.TimeoutSeconds <= 0 {
		c.Refresh.TimeoutSeconds = defaultRefreshTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeIndex() {
	c.Index.Compression = strings.ToLower(strings.TrimSpace(c.Index.Compression))
	if c.Index.Compression == "" {
		c.Index.Compression = CompressionZstd
	}
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = defaultIndexBatchSize
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = defaultLogMaxBackups
	}
}
