package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"podsearch/internal/config"
	"podsearch/internal/logging"
	"podsearch/internal/services"
)

const userAgent = "podsearch/1.0"

// HTTPDoer describes the HTTP client used to deliver refresh signals.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Notifier tells a downstream index consumer that a collection's index was
// replaced.
type Notifier interface {
	// Signal sends the notification in the background. The returned channel
	// yields exactly one value (nil on success) and is then closed.
	Signal(ctx context.Context, collection string) <-chan error
}

type payload struct {
	Collection  string `json:"collection"`
	ForceReload bool   `json:"forceReload"`
}

type httpNotifier struct {
	url     string
	token   string
	timeout time.Duration
	client  HTTPDoer
	logger  *slog.Logger
}

// NewFromConfig returns an HTTP notifier when refresh.url is set and a no-op
// otherwise.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) Notifier {
	if cfg == nil || strings.TrimSpace(cfg.Refresh.URL) == "" {
		return noop{}
	}
	return NewHTTPNotifier(cfg.Refresh.URL, cfg.Refresh.Token, cfg.RefreshTimeout(), http.DefaultClient, logger)
}

// NewHTTPNotifier constructs an HTTP-backed notifier.
func NewHTTPNotifier(url, token string, timeout time.Duration, client HTTPDoer, logger *slog.Logger) Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &httpNotifier{
		url:     strings.TrimSpace(url),
		token:   strings.TrimSpace(token),
		timeout: timeout,
		client:  client,
		logger:  logging.NewComponentLogger(logger, "refresh"),
	}
}

func (n *httpNotifier) Signal(ctx context.Context, collection string) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		err := n.send(ctx, collection)
		if err != nil {
			logging.WarnWithContext(n.logger, "index refresh signal failed", "index_refresh_failed",
				logging.String(logging.FieldCollection, collection),
				logging.Error(err),
				logging.String(logging.FieldImpact, "search consumers keep serving the previous index until restarted"),
				logging.String(logging.FieldErrorHint, "check refresh.url and that the consumer is running"),
			)
		} else {
			n.logger.Info("index refresh signalled", logging.String(logging.FieldCollection, collection))
		}
		done <- err
	}()
	return done
}

func (n *httpNotifier) send(ctx context.Context, collection string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	body, err := json.Marshal(payload{Collection: collection, ForceReload: true})
	if err != nil {
		return fmt.Errorf("encode refresh payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "refresh", "build request", "invalid refresh url", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "refresh", "post", "refresh request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return services.Wrap(services.ErrTransient, "refresh", "post",
			fmt.Sprintf("refresh endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}
	return nil
}

type noop struct{}

func (noop) Signal(context.Context, string) <-chan error {
	done := make(chan error, 1)
	done <- nil
	close(done)
	return done
}
