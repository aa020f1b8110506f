package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateChunking(); err != nil {
		return err
	}
	if err := c.validateIndex(); err != nil {
		return err
	}
	if err := c.validateRefresh(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageLocal:
		if strings.TrimSpace(c.Storage.Root) == "" {
			return errors.New("storage.root must be set for the local backend")
		}
	case StorageSupabase:
		if c.Storage.URL == "" {
			return errors.New("storage.url is required for the supabase backend; set SUPABASE_URL or edit the config file")
		}
		if c.Storage.APIKey == "" {
			return errors.New("storage.api_key is required for the supabase backend; set SUPABASE_KEY or edit the config file")
		}
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set for the supabase backend")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (want local or supabase)", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Provider {
	case ProviderOpenAI, ProviderWhisperX:
	default:
		return fmt.Errorf("transcription.provider: unsupported value %q (want openai or whisperx)", c.Transcription.Provider)
	}
	if c.Transcription.ResponseFormat != "srt" {
		return fmt.Errorf("transcription.response_format: unsupported value %q (only srt is supported)", c.Transcription.ResponseFormat)
	}
	if c.Transcription.MaxAttempts > 10 {
		return errors.New("transcription.max_attempts must be 10 or fewer")
	}
	return nil
}

func (c *Config) validateChunking() error {
	if c.Chunking.TargetChunkMinutes > c.Chunking.MaxDurationMinutes {
		return errors.New("chunking.target_chunk_minutes must not exceed chunking.max_duration_minutes")
	}
	return nil
}

func (c *Config) validateIndex() error {
	switch c.Index.Compression {
	case CompressionNone, CompressionGzip, CompressionZstd, CompressionBrotli, CompressionS2:
		return nil
	default:
		return fmt.Errorf("index.compression: unsupported value %q", c.Index.Compression)
	}
}

func (c *Config) validateRefresh() error {
	if c.Refresh.URL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Refresh.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("refresh.url: invalid URL %q", c.Refresh.URL)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
