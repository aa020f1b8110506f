package transcribe

import (
	"fmt"
	"log/slog"

	"podsearch/internal/config"
	"podsearch/internal/services"
	"podsearch/internal/services/openai"
	"podsearch/internal/services/whisperx"
)

// NewProviderFromConfig builds the provider selected by transcription.provider.
func NewProviderFromConfig(cfg *config.Config) (Provider, error) {
	t := cfg.Transcription
	switch t.Provider {
	case config.ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:   t.APIKey,
			BaseURL:  t.BaseURL,
			Model:    t.Model,
			Language: t.Language,
		}), nil
	case config.ProviderWhisperX:
		return whisperx.NewService(whisperx.Config{
			Model:       t.Model,
			CUDAEnabled: t.WhisperXCUDA,
			Language:    t.Language,
			WorkDir:     cfg.Paths.WorkDir,
		}), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "transcribe", "provider", fmt.Sprintf("unknown provider %q", t.Provider), nil)
	}
}

// NewClientFromConfig wires a provider with the configured retry policy.
func NewClientFromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	provider, err := NewProviderFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	base := []Option{
		WithMaxAttempts(cfg.Transcription.MaxAttempts),
		WithBaseTimeout(cfg.BaseTimeout()),
		WithBackoff(cfg.RetryBackoff()),
		WithLogger(logger),
	}
	return NewClient(provider, append(base, opts...)...), nil
}
