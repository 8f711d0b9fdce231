package testutil

import (
	"context"
	"log/slog"
	"sync"
)

// LogEntry is one captured log record.
type LogEntry struct {
	Level slog.Level
	Msg   string
	Attrs map[string]string
}

// LogRecorder is a slog.Handler that keeps every record in memory.
type LogRecorder struct {
	mu      sync.Mutex
	entries []LogEntry
	attrs   []slog.Attr
	parent  *LogRecorder
}

// NewLogger returns a logger writing to a fresh LogRecorder.
func NewLogger() (*slog.Logger, *LogRecorder) {
	rec := &LogRecorder{}
	return slog.New(rec), rec
}

// Enabled accepts every level.
func (h *LogRecorder) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle stores the record.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *LogRecorder) Handle(_ context.Context, r slog.Record) error {
	entry := LogEntry{Level: r.Level, Msg: r.Message, Attrs: make(map[string]string)}
	for _, a := range h.attrs {
		entry.Attrs[a.Key] = a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		entry.Attrs[a.Key] = a.Value.String()
		return true
	})

	root := h.root()
	root.mu.Lock()
	root.entries = append(root.entries, entry)
	root.mu.Unlock()
	return nil
}

// WithAttrs returns a handler sharing the same store.
func (h *LogRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogRecorder{
		attrs:  append(append([]slog.Attr(nil), h.attrs...), attrs...),
		parent: h.root(),
	}
}

// WithGroup ignores groups.
func (h *LogRecorder) WithGroup(string) slog.Handler {
	return h
}

func (h *LogRecorder) root() *LogRecorder {
	if h.parent != nil {
		return h.parent
	}
	return h
}

// Entries returns the captured records, optionally only those with msg.
func (h *LogRecorder) Entries(msgs ...string) []LogEntry {
	root := h.root()
	root.mu.Lock()
	defer root.mu.Unlock()

	var out []LogEntry
	for _, e := range root.entries {
		if len(msgs) == 0 {
			out = append(out, e)
			continue
		}
		for _, m := range msgs {
			if e.Msg == m {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
