package llmcall

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/hemapex/hemapex/internal/extract"
)

// Recorder appends calls to a JSON Lines log.
// A nil Recorder discards everything.
type Recorder struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	logger *slog.Logger
}

// NewRecorder creates a recorder writing to w.
func NewRecorder(w io.Writer, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{w: w, logger: logger}
}

// OpenRecorder opens (or creates) a log file in append mode.
func OpenRecorder(path string, logger *slog.Logger) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create call log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open call log: %w", err)
	}
	r := NewRecorder(f, logger)
	r.closer = f
	return r, nil
}

// Record captures an extraction result.
func Record[T any](r *Recorder, result extract.Result[T], opts RecordOptions) {
	if r == nil {
		return
	}
	r.RecordCall(FromResult(result, opts))
}

// RecordCall writes an already-constructed Call. Write failures are logged,
// never returned, so tracing cannot fail a run.
func (r *Recorder) RecordCall(call *Call) {
	if r == nil || call == nil {
		return
	}

	data, err := json.Marshal(call)
	if err != nil {
		r.logger.Warn("failed to serialize call record", "error", err, "id", call.ID)
		return
	}
	data = append(data, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.w.Write(data); err != nil {
		r.logger.Warn("failed to write call record", "error", err, "id", call.ID)
	}
}

// Close closes the underlying file, if the recorder owns one.
func (r *Recorder) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closer.Close()
}
