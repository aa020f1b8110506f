package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local working directories.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	LogDir   string `toml:"log_dir"`
	StateDir string `toml:"state_dir"`
}

// Storage selects and configures the blob store backend.
type Storage struct {
	// Backend is "local" or "supabase".
	Backend string `toml:"backend"`
	// Root is the local filesystem root when Backend is "local".
	Root   string `toml:"root"`
	Bucket string `toml:"bucket"`
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// Transcription configures the speech-to-text provider and retry policy.
type Transcription struct {
	Provider           string `toml:"provider"`
	Model              string `toml:"model"`
	Prompt             string `toml:"prompt"`
	ResponseFormat     string `toml:"response_format"`
	Language           string `toml:"language"`
	APIKey             string `toml:"api_key"`
	BaseURL            string `toml:"base_url"`
	BaseTimeoutSeconds int    `toml:"base_timeout_seconds"`
	MaxAttempts        int    `toml:"max_attempts"`
	BackoffSeconds     int    `toml:"backoff_seconds"`
	MaxConcurrentFiles int    `toml:"max_concurrent_files"`
	WhisperXCUDA       bool   `toml:"whisperx_cuda_enabled"`
}

// Chunking bounds the audio sent to the provider in one request.
type Chunking struct {
	MaxSizeMB          float64 `toml:"max_size_mb"`
	MaxDurationMinutes int     `toml:"max_duration_minutes"`
	TargetChunkMinutes int     `toml:"target_chunk_minutes"`
	FFmpegBinary       string  `toml:"ffmpeg_binary"`
	FFprobeBinary      string  `toml:"ffprobe_binary"`
}

// Lock configures the advisory transcription lockfile.
type Lock struct {
	StaleAfterMinutes int  `toml:"stale_after_minutes"`
	LocalGuard        bool `toml:"local_guard"`
}

// Index configures index building and persistence.
type Index struct {
	Compression string `toml:"compression"`
	BatchSize   int    `toml:"batch_size"`
}

// Spelling points at the correction rule file.
type Spelling struct {
	RulesFile string `toml:"rules_file"`
}

// Refresh configures the downstream index-refresh signal.
type Refresh struct {
	URL            string `toml:"url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Progress configures the machine-readable progress stream.
type Progress struct {
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
}

// Metrics configures the Prometheus textfile export.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// Config encapsulates all configuration values for podsearch.
//
// Configuration sections by subsystem:
//   - Paths: local work, log, and state directories
//   - Storage: blob store backend (local filesystem or Supabase storage)
//   - Transcription: provider, prompt, retry and concurrency policy
//   - Chunking: provider upload limits and ffmpeg/ffprobe binaries
//   - Lock: advisory lockfile staleness
//   - Index: serializer compression and batch size
//   - Spelling: correction rules file
//   - Refresh: downstream index consumer notification
//   - Progress: JSON progress event stream
//   - Metrics: Prometheus textfile export
//   - Logging: log format, level, and rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	Storage       Storage       `toml:"storage"`
	Transcription Transcription `toml:"transcription"`
	Chunking      Chunking      `toml:"chunking"`
	Lock          Lock          `toml:"lock"`
	Index         Index         `toml:"index"`
	Spelling      Spelling      `toml:"spelling"`
	Refresh       Refresh       `toml:"refresh"`
	Progress      Progress      `toml:"progress"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("podsearch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the local directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.LogDir, c.Paths.StateDir}
	if c.Storage.Backend == StorageLocal {
		dirs = append(dirs, c.Storage.Root)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RequireTranscription reports configuration problems that only matter when
// the transcription stage runs. Indexing does not need a prompt or API key.
func (c *Config) RequireTranscription() error {
	if strings.TrimSpace(c.Transcription.Prompt) == "" {
		return errors.New("transcription.prompt is required; set it in the config file")
	}
	if c.Transcription.Provider == ProviderOpenAI && strings.TrimSpace(c.Transcription.APIKey) == "" {
		return errors.New("transcription.api_key is required for the openai provider; set OPENAI_API_KEY or edit the config file")
	}
	return nil
}

// BaseTimeout returns the first-attempt provider timeout.
func (c *Config) BaseTimeout() time.Duration {
	return time.Duration(c.Transcription.BaseTimeoutSeconds) * time.Second
}

// RetryBackoff returns the initial delay between provider attempts.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Transcription.BackoffSeconds) * time.Second
}

// StaleLockAge returns the age after which lock entries are purged.
func (c *Config) StaleLockAge() time.Duration {
	return time.Duration(c.Lock.StaleAfterMinutes) * time.Minute
}

// RefreshTimeout returns the HTTP timeout for refresh notifications.
func (c *Config) RefreshTimeout() time.Duration {
	return time.Duration(c.Refresh.TimeoutSeconds) * time.Second
}

// RunLogPath returns the SQLite run-history database location.
func (c *Config) RunLogPath() string {
	return filepath.Join(c.Paths.StateDir, "runs.db")
}

// LogFilePath returns the rotating log file location.
func (c *Config) LogFilePath() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "podsearch.log")
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	if c == nil || strings.TrimSpace(c.Chunking.FFmpegBinary) == "" {
		return "ffmpeg"
	}
	return c.Chunking.FFmpegBinary
}

// FFprobeBinary returns the ffprobe executable name.
func (c *Config) FFprobeBinary() string {
	if c == nil || strings.TrimSpace(c.Chunking.FFprobeBinary) == "" {
		return "ffprobe"
	}
	return c.Chunking.FFprobeBinary
}

// CreateSample writes the embedded sample configuration to path. Existing
// files are never overwritten.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists: %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
