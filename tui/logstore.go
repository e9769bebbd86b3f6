package tui

import (
	"sync"

	"go.uber.org/zap/zapcore"

	"plclogger/logging"
)

// LogStore keeps the most recent log lines for the status log panel.
// Hook is registered on the zap logger with zap.Hooks so every component's
// log output reaches the panel.
type LogStore struct {
	mu       sync.RWMutex
	lines    []string
	maxLines int
	onChange func()
}

// NewLogStore creates a store holding at most maxLines lines.
func NewLogStore(maxLines int) *LogStore {
	if maxLines <= 0 {
		maxLines = 500
	}
	return &LogStore{maxLines: maxLines}
}

// Hook records a zap entry. It never fails and never blocks on the UI.
func (s *LogStore) Hook(e zapcore.Entry) error {
	line := logging.FormatLine(e)
	if e.Level >= zapcore.ErrorLevel {
		line = "[red]" + escape(line) + "[-]"
	} else {
		line = escape(line)
	}

	s.mu.Lock()
	s.lines = append(s.lines, line)
	if len(s.lines) > s.maxLines {
		s.lines = s.lines[len(s.lines)-s.maxLines:]
	}
	cb := s.onChange
	s.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

// SetOnChange registers a callback invoked after each new line.
func (s *LogStore) SetOnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Lines returns a copy of the stored lines, oldest first.
func (s *LogStore) Lines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}
