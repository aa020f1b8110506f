package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"podsearch/internal/services"
)

const (
	// ProviderName identifies the hosted API in logs and failure reports.
	ProviderName = "openai"

	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "whisper-1"
	transcribePath = "/audio/transcriptions"
)

// ErrAPIKeyRequired is returned before any request when no key is configured.
var ErrAPIKeyRequired = services.Wrap(services.ErrConfiguration, "transcribe", ProviderName, "api key required", nil)

// Config captures the runtime settings required to talk to the API.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
}

// Client wraps the hosted audio transcription endpoint. It performs a single
// request per call; retries and per-attempt timeouts belong to the caller,
// which controls them through ctx.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg: Config{
			APIKey:   strings.TrimSpace(cfg.APIKey),
			BaseURL:  strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:    strings.TrimSpace(cfg.Model),
			Language: strings.TrimSpace(cfg.Language),
		},
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.Model == "" {
		client.cfg.Model = defaultModel
	}
	return client
}

// Name implements the provider contract.
func (c *Client) Name() string { return ProviderName }

// HTTPStatusError reports a non-2xx response.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai transcription: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Retryable reports whether a later attempt could succeed. Client errors other
// than request timeout and rate limiting will not.
func (e *HTTPStatusError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// Transcribe uploads audioPath and returns the response body, which for the
// "srt" and "text" formats is the transcript itself.
func (c *Client) Transcribe(ctx context.Context, audioPath, prompt, responseFormat string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrAPIKeyRequired
	}
	body, contentType, err := c.buildForm(audioPath, prompt, responseFormat)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+transcribePath, body)
	if err != nil {
		return "", fmt.Errorf("openai transcription: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai transcription: http error after %s: %w", time.Since(start).Round(time.Millisecond), err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai transcription: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &HTTPStatusError{StatusCode: resp.StatusCode, Body: apiErrorMessage(payload)}
	}
	return string(payload), nil
}

func (c *Client) buildForm(audioPath, prompt, responseFormat string) (*bytes.Buffer, string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("openai transcription: open audio: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf("openai transcription: form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("openai transcription: copy audio: %w", err)
	}
	fields := [][2]string{
		{"model", c.cfg.Model},
		{"prompt", strings.TrimSpace(prompt)},
		{"response_format", strings.TrimSpace(responseFormat)},
		{"language", c.cfg.Language},
	}
	for _, field := range fields {
		if field[1] == "" {
			continue
		}
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("openai transcription: form field %s: %w", field[0], err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("openai transcription: close form: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

// apiErrorMessage extracts error.message from a JSON error body, falling back
// to the raw body.
func apiErrorMessage(body []byte) string {
	var parsed struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(body))
}
