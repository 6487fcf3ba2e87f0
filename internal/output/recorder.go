package output

import (
	"fmt"
	"strings"
	"sync"
)

// Level identifies the severity of a recorded message
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warning"
	LevelError Level = "error"
)

// Entry is one message captured by a Recorder
type Entry struct {
	Level   Level
	Message string
}

// Recorder is a Logger that keeps every message in memory. Tests use it to
// assert on warnings and errors.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

var _ Logger = (*Recorder)(nil)

// NewRecorder creates an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(level Level, format string, args []any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: msg})
}

// Info records an info message
func (r *Recorder) Info(format string, args ...any) { r.add(LevelInfo, format, args) }

// Warn records a warning
func (r *Recorder) Warn(format string, args ...any) { r.add(LevelWarn, format, args) }

// Error records an error
func (r *Recorder) Error(format string, args ...any) { r.add(LevelError, format, args) }

// Debug records a debug message
func (r *Recorder) Debug(format string, args ...any) { r.add(LevelDebug, format, args) }

// Entries returns a copy of everything recorded so far
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Messages returns the messages recorded at level
func (r *Recorder) Messages(level Level) []string {
	var out []string
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// Contains reports whether a message at level contains substr
func (r *Recorder) Contains(level Level, substr string) bool {
	for _, msg := range r.Messages(level) {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}
