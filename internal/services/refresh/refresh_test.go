package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"podsearch/internal/config"
	"podsearch/internal/services"
)

func TestSignalPostsCollection(t *testing.T) {
	var got payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer token-123" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Refresh.URL = server.URL + "/api/index/refresh"
	cfg.Refresh.Token = "token-123"
	n := NewFromConfig(&cfg, nil)
	if err := <-n.Signal(context.Background(), "talkshow"); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	if got.Collection != "talkshow" || !got.ForceReload {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestSignalReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "reload in progress", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	n := NewHTTPNotifier(server.URL, "", time.Second, server.Client(), nil)
	err := <-n.Signal(context.Background(), "talkshow")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestSignalTimesOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	n := NewHTTPNotifier(server.URL, "", 50*time.Millisecond, server.Client(), nil)
	if err := <-n.Signal(context.Background(), "talkshow"); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestUnconfiguredIsNoop(t *testing.T) {
	cfg := config.Default()
	n := NewFromConfig(&cfg, nil)
	if _, ok := n.(noop); !ok {
		t.Fatalf("expected noop notifier, got %T", n)
	}
	if err := <-n.Signal(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
}
