// Package logging builds the slog.Logger used by the command line tool.
//
// Records below slog.LevelWarn go to the informational writer and records
// at slog.LevelWarn or above go to the error writer. Quiet mode silences the
// informational writer only, so failures are always printed.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Format selects the record encoding.
type Format string

const (
	// FormatText writes logfmt-style key=value records
	FormatText Format = "text"

	// FormatJSON writes one JSON object per record
	FormatJSON Format = "json"
)

// Options configures New.
type Options struct {
	Format Format
	Level  slog.Level
	Quiet  bool
	Out    io.Writer
	Err    io.Writer
}

// New creates a logger that splits records between opts.Out and opts.Err.
func New(opts Options) *slog.Logger {
	infoLevel := opts.Level
	if opts.Quiet && infoLevel < slog.LevelWarn {
		infoLevel = slog.LevelWarn
	}
	errLevel := max(opts.Level, slog.LevelWarn)

	return slog.New(NewSplitHandler(
		newHandler(opts.Format, opts.Out, infoLevel),
		newHandler(opts.Format, opts.Err, errLevel),
	))
}

func newHandler(format Format, w io.Writer, level slog.Level) slog.Handler {
	if w == nil {
		w = io.Discard
	}
	ho := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.NewJSONHandler(w, ho)
	}
	return slog.NewTextHandler(w, ho)
}

// SplitHandler routes records to one of two handlers by level.
type SplitHandler struct {
	info slog.Handler
	err  slog.Handler
}

// NewSplitHandler routes records below slog.LevelWarn to info and the rest to err.
func NewSplitHandler(info, err slog.Handler) *SplitHandler {
	return &SplitHandler{info: info, err: err}
}

// Enabled reports whether the handler for level accepts records.
func (h *SplitHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= slog.LevelWarn {
		return h.err.Enabled(ctx, level)
	}
	return h.info.Enabled(ctx, level)
}

// Handle writes r to the handler for its level.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *SplitHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		return h.err.Handle(ctx, r)
	}
	return h.info.Handle(ctx, r)
}

// WithAttrs applies attrs to both handlers.
func (h *SplitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SplitHandler{
		info: h.info.WithAttrs(attrs),
		err:  h.err.WithAttrs(attrs),
	}
}

// WithGroup applies the group to both handlers.
func (h *SplitHandler) WithGroup(name string) slog.Handler {
	return &SplitHandler{
		info: h.info.WithGroup(name),
		err:  h.err.WithGroup(name),
	}
}

// ParseLevel maps debug, info, warn or error onto a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("invalid log format %q", s)
	}
}
