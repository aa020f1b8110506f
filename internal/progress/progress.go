package progress

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"podsearch/internal/config"
	"podsearch/internal/logging"
)

// Type classifies a progress event.
type Type string

const (
	TypeStart    Type = "START"
	TypeProgress Type = "PROGRESS"
	TypeComplete Type = "COMPLETE"
	TypeError    Type = "ERROR"
)

// Event is one line of the progress stream.
type Event struct {
	ProcessID string         `json:"processId"`
	Timestamp time.Time      `json:"timestamp"`
	Type      Type           `json:"type"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// Reporter writes JSON-line progress events. Each worker owns its reporter;
// there are no shared counters between workers. A nil Reporter discards
// events.
type Reporter struct {
	mu        sync.Mutex
	enc       *json.Encoder
	closer    io.Closer
	processID string
	now       func() time.Time
}

// New returns a reporter writing to w.
func New(processID string, w io.Writer) *Reporter {
	return &Reporter{
		enc:       json.NewEncoder(w),
		processID: processID,
		now:       time.Now,
	}
}

// NewFromConfig writes to stdout and, when progress.file is set, also to a
// rotating file.
func NewFromConfig(cfg *config.Config, processID string, stdout io.Writer) (*Reporter, error) {
	path := strings.TrimSpace(cfg.Progress.File)
	if path == "" {
		return New(processID, stdout), nil
	}
	file, err := logging.NewRotatingFile(path, cfg.Progress.MaxSizeMB, 3)
	if err != nil {
		return nil, err
	}
	r := New(processID, io.MultiWriter(stdout, file))
	r.closer = file
	return r, nil
}

// WithClock overrides the time source.
func (r *Reporter) WithClock(now func() time.Time) *Reporter {
	if r != nil && now != nil {
		r.now = now
	}
	return r
}

// Start announces the beginning of a stage.
func (r *Reporter) Start(message string, data map[string]any) {
	r.emit(TypeStart, message, data)
}

// Progress reports an intermediate step.
func (r *Reporter) Progress(message string, data map[string]any) {
	r.emit(TypeProgress, message, data)
}

// Complete reports the end of a stage.
func (r *Reporter) Complete(message string, data map[string]any) {
	r.emit(TypeComplete, message, data)
}

// Error reports a failure. err is added to data under "error".
func (r *Reporter) Error(message string, err error, data map[string]any) {
	if err != nil {
		merged := make(map[string]any, len(data)+1)
		for k, v := range data {
			merged[k] = v
		}
		merged["error"] = err.Error()
		data = merged
	}
	r.emit(TypeError, message, data)
}

// Close releases the progress file, if any.
func (r *Reporter) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func (r *Reporter) emit(t Type, message string, data map[string]any) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.enc.Encode(Event{
		ProcessID: r.processID,
		Timestamp: r.now().UTC(),
		Type:      t,
		Message:   message,
		Data:      data,
	})
}
