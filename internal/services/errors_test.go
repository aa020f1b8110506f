package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"podsearch/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrStorage, "transcribe", "persist", "save transcript", base)
	if !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transcribe", "persist", "save transcript"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrConfiguration, "transcribe", "", "prompt missing", nil), services.CategoryConfiguration},
		{services.Wrap(services.ErrTimeout, "transcribe", "", "", nil), services.CategoryTransient},
		{fmt.Errorf("outer: %w", services.ErrDataIntegrity), services.CategoryDataIntegrity},
		{services.Wrap(services.ErrNotFound, "extract", "", "manifest", nil), services.CategoryDataIntegrity},
		{services.Wrap(services.ErrStorage, "index", "", "", nil), services.CategoryStorage},
		{errors.New("plain"), services.CategoryUnknown},
	}
	for _, tc := range tests {
		if got := services.Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
