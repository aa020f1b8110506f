package transcribe

import (
	"errors"
	"fmt"

	"podsearch/internal/services"
)

// ErrPromptRequired is returned before any provider call when the vocabulary
// prompt is empty.
var ErrPromptRequired = services.Wrap(services.ErrConfiguration, "transcribe", "prompt", "a non-empty transcription prompt is required", nil)

var errEmptyTranscript = errors.New("provider returned an empty transcript")

// TranscriptionFailedError reports a chunk that failed every attempt. It
// matches services.ErrTransient so callers fail the file and continue.
type TranscriptionFailedError struct {
	File     string
	Provider string
	Attempts int
	Err      error
}

func (e *TranscriptionFailedError) Error() string {
	return fmt.Sprintf("transcription of %s via %s failed after %d attempt(s): %v", e.File, e.Provider, e.Attempts, e.Err)
}

func (e *TranscriptionFailedError) Unwrap() error { return e.Err }

// Is reports ErrTransient as a match regardless of the underlying cause.
func (e *TranscriptionFailedError) Is(target error) bool {
	return target == services.ErrTransient
}
