// Package logging writes structured JSON-lines events for background work
// (sync passes, token refreshes, the scheduler) to {stateDir}/thrive.log.
// Command output goes to stdout and never through here.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// appendWriter opens the log file for each write so that no handle outlives
// a command and concurrent processes interleave whole lines.
type appendWriter struct {
	mu   sync.Mutex
	path string
}

func (w *appendWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(w.path), 0o700); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return f.Write(p)
}

// New returns a logger appending JSON lines to path. Debug events are kept
// only when debug is set.
func New(path string, debug bool) *slog.Logger {
	return NewWriter(&appendWriter{path: path}, debug)
}

func NewWriter(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Discard drops everything. Used when no logger is configured.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// OrDiscard lets components accept a nil logger.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
