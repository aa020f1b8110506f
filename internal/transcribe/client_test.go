package transcribe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"podsearch/internal/config"
	"podsearch/internal/services"
	"podsearch/internal/services/openai"
	"podsearch/internal/testsupport"
)

type scriptedProvider struct {
	mu        sync.Mutex
	responses []func(ctx context.Context) (string, error)
	deadlines []time.Duration
	calls     int
}

func (p *scriptedProvider) Name() string { return "fake" }

func (p *scriptedProvider) Transcribe(ctx context.Context, _, _, _ string) (string, error) {
	p.mu.Lock()
	idx := p.calls
	p.calls++
	if dl, ok := ctx.Deadline(); ok {
		p.deadlines = append(p.deadlines, time.Until(dl))
	}
	p.mu.Unlock()
	if idx >= len(p.responses) {
		return "", errors.New("unexpected call")
	}
	return p.responses[idx](ctx)
}

func ok(text string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return text, nil }
}

func fail(err error) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return "", err }
}

func hang(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func recordSleeps(sleeps *[]time.Duration) Option {
	return WithSleeper(func(d time.Duration) { *sleeps = append(*sleeps, d) })
}

func TestTranscribeSucceedsFirstAttempt(t *testing.T) {
	provider := &scriptedProvider{responses: []func(context.Context) (string, error){ok("srt")}}
	client := NewClient(provider)
	text, err := client.Transcribe(context.Background(), "chunk.mp3", "vocab", "srt")
	if err != nil || text != "srt" {
		t.Fatalf("Transcribe = %q, %v", text, err)
	}
	if provider.calls != 1 {
		t.Fatalf("expected one call, got %d", provider.calls)
	}
}

func TestTranscribeRetriesWithEscalatingTimeoutsAndBackoff(t *testing.T) {
	provider := &scriptedProvider{responses: []func(context.Context) (string, error){
		hang,
		fail(errors.New("connection reset")),
		ok("third time lucky"),
	}}
	var sleeps []time.Duration
	var attempts []Attempt
	client := NewClient(provider,
		WithBaseTimeout(20*time.Millisecond),
		WithBackoff(time.Second),
		recordSleeps(&sleeps),
		WithAttemptObserver(func(a Attempt) { attempts = append(attempts, a) }),
	)

	text, err := client.Transcribe(context.Background(), "chunk.mp3", "vocab", "srt")
	if err != nil || text != "third time lucky" {
		t.Fatalf("Transcribe = %q, %v", text, err)
	}
	if len(sleeps) != 2 || sleeps[0] != time.Second || sleeps[1] != 2*time.Second {
		t.Fatalf("expected backoff 1s then 2s, got %v", sleeps)
	}
	if len(provider.deadlines) != 3 {
		t.Fatalf("expected 3 deadlines, got %v", provider.deadlines)
	}
	if provider.deadlines[0] > 20*time.Millisecond || provider.deadlines[2] <= 40*time.Millisecond {
		t.Fatalf("attempt timeouts should escalate as n x base: %v", provider.deadlines)
	}
	if len(attempts) != 3 || !errors.Is(attempts[0].Err, services.ErrTimeout) || attempts[2].Err != nil {
		t.Fatalf("unexpected attempt records: %+v", attempts)
	}
}

func TestTranscribeExhaustionReturnsTypedError(t *testing.T) {
	boom := errors.New("upstream 503")
	provider := &scriptedProvider{responses: []func(context.Context) (string, error){fail(boom), fail(boom), fail(boom)}}
	client := NewClient(provider, WithBackoff(0))

	_, err := client.Transcribe(context.Background(), "chunk.mp3", "vocab", "srt")
	var failed *TranscriptionFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected TranscriptionFailedError, got %v", err)
	}
	if failed.Attempts != 3 || failed.Provider != "fake" || failed.File != "chunk.mp3" {
		t.Fatalf("unexpected failure details: %+v", failed)
	}
	if !errors.Is(err, services.ErrTransient) || !errors.Is(err, boom) {
		t.Fatal("failure should match ErrTransient and wrap the cause")
	}
	if services.Classify(err) != services.CategoryTransient {
		t.Fatalf("unexpected category %s", services.Classify(err))
	}
}

func TestTranscribeStopsOnNonRetryableError(t *testing.T) {
	provider := &scriptedProvider{responses: []func(context.Context) (string, error){
		fail(&openai.HTTPStatusError{StatusCode: 400, Body: "bad file"}),
		ok("never"),
	}}
	client := NewClient(provider, WithBackoff(0))
	_, err := client.Transcribe(context.Background(), "chunk.mp3", "vocab", "srt")
	var failed *TranscriptionFailedError
	if !errors.As(err, &failed) || failed.Attempts != 1 {
		t.Fatalf("expected a single-attempt failure, got %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("expected no retry, got %d calls", provider.calls)
	}
}

func TestTranscribeRequiresPrompt(t *testing.T) {
	provider := &scriptedProvider{}
	client := NewClient(provider)
	_, err := client.Transcribe(context.Background(), "chunk.mp3", "  ", "srt")
	if !errors.Is(err, ErrPromptRequired) || !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected prompt error, got %v", err)
	}
	if provider.calls != 0 {
		t.Fatal("provider must not be called without a prompt")
	}
}

func TestTranscribeEmptyResultIsRetried(t *testing.T) {
	provider := &scriptedProvider{responses: []func(context.Context) (string, error){ok("  "), ok("text")}}
	client := NewClient(provider, WithBackoff(0))
	text, err := client.Transcribe(context.Background(), "chunk.mp3", "vocab", "srt")
	if err != nil || text != "text" {
		t.Fatalf("Transcribe = %q, %v", text, err)
	}
}

func TestTranscribeCancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := &scriptedProvider{responses: []func(context.Context) (string, error){
		func(context.Context) (string, error) {
			cancel()
			return "", errors.New("interrupted")
		},
	}}
	client := NewClient(provider)
	_, err := client.Transcribe(ctx, "chunk.mp3", "vocab", "srt")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewClientFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client, err := NewClientFromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("NewClientFromConfig: %v", err)
	}
	if client.ProviderName() != openai.ProviderName {
		t.Fatalf("unexpected provider %s", client.ProviderName())
	}

	cfg.Transcription.Provider = config.ProviderWhisperX
	client, err = NewClientFromConfig(cfg, nil)
	if err != nil || client.ProviderName() != "whisperx" {
		t.Fatalf("expected whisperx client, got %v %v", client, err)
	}

	cfg.Transcription.Provider = "carrier-pigeon"
	if _, err := NewClientFromConfig(cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestTranscribeMissingAPIKeyIsNotRetried(t *testing.T) {
	var sleeps []time.Duration
	client := NewClient(openai.NewClient(openai.Config{}), recordSleeps(&sleeps))
	_, err := client.Transcribe(context.Background(), "chunk.mp3", "vocab", "srt")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	var failed *TranscriptionFailedError
	if !errors.As(err, &failed) || failed.Attempts != 1 {
		t.Fatalf("expected a single-attempt failure, got %v", err)
	}
	if len(sleeps) != 0 {
		t.Fatalf("no backoff expected, slept %v", sleeps)
	}
}
