package config

// Storage backends.
const (
	StorageLocal    = "local"
	StorageSupabase = "supabase"
)

// Transcription providers.
const (
	ProviderOpenAI   = "openai"
	ProviderWhisperX = "whisperx"
)

// Index compression codecs.
const (
	CompressionNone   = "none"
	CompressionGzip   = "gzip"
	CompressionZstd   = "zstd"
	CompressionBrotli = "brotli"
	CompressionS2     = "s2"
)

const (
	defaultConfigPath             = "~/.config/podsearch/config.toml"
	defaultWorkDir                = "~/.local/share/podsearch/work"
	defaultLogDir                 = "~/.local/share/podsearch/logs"
	defaultStateDir               = "~/.local/share/podsearch/state"
	defaultStorageRoot            = "~/.local/share/podsearch/store"
	defaultStorageBucket          = "podsearch"
	defaultTranscriptionModel     = "whisper-1"
	defaultWhisperXModel          = "large-v3"
	defaultOpenAIBaseURL          = "https://api.openai.com/v1"
	defaultResponseFormat         = "srt"
	defaultLanguage               = "en"
	defaultBaseTimeoutSeconds     = 120
	defaultMaxAttempts            = 3
	defaultBackoffSeconds         = 1
	defaultMaxConcurrentFiles     = 1
	defaultMaxSizeMB              = 25
	defaultMaxDurationMinutes     = 20
	defaultTargetChunkMinutes     = 20
	defaultStaleAfterMinutes      = 120
	defaultIndexBatchSize         = 500
	defaultRefreshTimeoutSeconds  = 10
	defaultProgressMaxSizeMB      = 20
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogMaxSizeMB           = 50
	defaultLogMaxBackups          = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Storage: Storage{
			Backend: StorageLocal,
			Root:    defaultStorageRoot,
			Bucket:  defaultStorageBucket,
		},
		Transcription: Transcription{
			Provider:           ProviderOpenAI,
			Model:              defaultTranscriptionModel,
			ResponseFormat:     defaultResponseFormat,
			Language:           defaultLanguage,
			BaseURL:            defaultOpenAIBaseURL,
			BaseTimeoutSeconds: defaultBaseTimeoutSeconds,
			MaxAttempts:        defaultMaxAttempts,
			BackoffSeconds:     defaultBackoffSeconds,
			MaxConcurrentFiles: defaultMaxConcurrentFiles,
		},
		Chunking: Chunking{
			MaxSizeMB:          defaultMaxSizeMB,
			MaxDurationMinutes: defaultMaxDurationMinutes,
			TargetChunkMinutes: defaultTargetChunkMinutes,
			FFmpegBinary:       "ffmpeg",
			FFprobeBinary:      "ffprobe",
		},
		Lock: Lock{
			StaleAfterMinutes: defaultStaleAfterMinutes,
			LocalGuard:        true,
		},
		Index: Index{
			Compression: CompressionZstd,
			BatchSize:   defaultIndexBatchSize,
		},
		Refresh: Refresh{
			TimeoutSeconds: defaultRefreshTimeoutSeconds,
		},
		Progress: Progress{
			MaxSizeMB: defaultProgressMaxSizeMB,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
		},
	}
}
