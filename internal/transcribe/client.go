package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"podsearch/internal/logging"
	"podsearch/internal/services"
)

const (
	defaultAttempts    = 3
	defaultBaseTimeout = 2 * time.Minute
	defaultBackoff     = time.Second
	maxBackoff         = 30 * time.Second
)

// Provider converts one audio file into transcript text.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, audioPath, prompt, responseFormat string) (string, error)
}

// Attempt describes one finished provider call.
type Attempt struct {
	Provider string
	File     string
	Number   int
	Elapsed  time.Duration
	Err      error
}

// Client wraps a Provider with escalating per-attempt timeouts and
// exponential backoff.
type Client struct {
	provider    Provider
	attempts    int
	baseTimeout time.Duration
	backoff     time.Duration
	sleeper     func(time.Duration)
	observer    func(Attempt)
	logger      *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithMaxAttempts overrides the attempt count (defaults to 3).
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithBaseTimeout sets the first attempt's timeout; attempt n gets n times it.
func WithBaseTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.baseTimeout = d
		}
	}
}

// WithBackoff sets the delay before the second attempt. Later delays double.
// Zero disables waiting.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.backoff = d
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithAttemptObserver registers a callback invoked after every provider call.
func WithAttemptObserver(fn func(Attempt)) Option {
	return func(c *Client) {
		c.observer = fn
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs a transcription client around provider.
func NewClient(provider Provider, opts ...Option) *Client {
	client := &Client{
		provider:    provider,
		attempts:    defaultAttempts,
		baseTimeout: defaultBaseTimeout,
		backoff:     defaultBackoff,
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "transcribe")
	return client
}

// ProviderName returns the wrapped provider's name.
func (c *Client) ProviderName() string {
	if c == nil || c.provider == nil {
		return ""
	}
	return c.provider.Name()
}

// Transcribe sends chunkPath to the provider. Attempt n runs under a timeout
// of n times the base timeout; cancelling it aborts the in-flight request or
// terminates the provider subprocess.
func (c *Client) Transcribe(ctx context.Context, chunkPath, prompt, responseFormat string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrPromptRequired
	}
	if c.provider == nil {
		return "", services.Wrap(services.ErrConfiguration, "transcribe", "provider", "no provider configured", nil)
	}

	var lastErr error
	attempt := 0
	for attempt < c.attempts {
		attempt++
		text, err := c.attemptOnce(ctx, attempt, chunkPath, prompt, responseFormat)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !retryable(err) || attempt >= c.attempts {
			break
		}
		delay := c.backoffDelay(attempt)
		c.logger.Warn("transcription attempt failed; retrying",
			logging.String("provider", c.provider.Name()),
			logging.String("chunk", chunkPath),
			logging.Int("attempt", attempt),
			logging.Duration("retry_in", delay),
			logging.Error(err),
			logging.String(logging.FieldEventType, "transcription_retry"),
			logging.String(logging.FieldErrorHint, "provider call failed or timed out"),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", &TranscriptionFailedError{
		File:     chunkPath,
		Provider: c.provider.Name(),
		Attempts: attempt,
		Err:      lastErr,
	}
}

func (c *Client) attemptOnce(ctx context.Context, attempt int, chunkPath, prompt, responseFormat string) (string, error) {
	timeout := time.Duration(attempt) * c.baseTimeout
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	text, err := c.provider.Transcribe(attemptCtx, chunkPath, prompt, responseFormat)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errEmptyTranscript
	}
	if err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		err = fmt.Errorf("%w: attempt %d exceeded %s: %w", services.ErrTimeout, attempt, timeout, err)
	}
	if c.observer != nil {
		c.observer(Attempt{
			Provider: c.provider.Name(),
			File:     chunkPath,
			Number:   attempt,
			Elapsed:  time.Since(start),
			Err:      err,
		})
	}
	return text, err
}

// retryable reports whether another attempt could help. Providers mark
// permanent failures with a Retryable() bool method.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, services.ErrConfiguration) {
		return false
	}
	var marked interface{ Retryable() bool }
	if errors.As(err, &marked) {
		return marked.Retryable()
	}
	return true
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	if c.backoff <= 0 {
		return 0
	}
	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := c.backoff
	for i := 1; i < attempt; i++ {
		if delay > maxBackoff/2 {
			return maxBackoff
		}
		delay *= 2
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
