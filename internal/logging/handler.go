package logging

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
)

// Structured log handler whose level, format and stream can change after
// the logger is installed.
//
// Records are buffered until a stream is set and [Handler.Flush] is called,
// so output produced before command-line flags are parsed is rendered with
// the final settings.
type Handler interface {
	slog.Handler
	SetLevel(level slog.Level)
	SetFormatter(f Formatter)
	SetStream(w io.Writer)
	Flush() error
}

// State shared between a handler and every handler derived from it with
// WithAttrs or WithGroup.
type shared struct {
	mu        sync.Mutex
	level     slog.LevelVar
	formatter Formatter
	stream    io.Writer
	flushed   bool
	pending   []pendingRecord
}

type pendingRecord struct {
	record slog.Record
	attrs  []slog.Attr
	groups []string
}

type handler struct {
	state  *shared
	attrs  []slog.Attr // Attributes added with WithAttrs.
	groups []string    // Groups added with WithGroup.
}

// Creates a new buffering [Handler] at info level with a plain formatter.
func NewHandler() Handler {
	s := &shared{formatter: NewPrettyFormatter(false)}
	s.level.Set(slog.LevelInfo)
	return &handler{state: s}
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.state.level.Level()
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	s := h.state
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.flushed || s.stream == nil {
		s.pending = append(s.pending, pendingRecord{record: r.Clone(), attrs: h.attrs, groups: h.groups})
		return nil
	}
	_, err := s.stream.Write(s.formatter.Format(r, h.attrs, h.groups))
	return err
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return &handler{
		state:  h.state,
		attrs:  slices.Concat(h.attrs, attrs),
		groups: h.groups,
	}
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &handler{
		state:  h.state,
		attrs:  h.attrs,
		groups: append(slices.Clone(h.groups), name),
	}
}

func (h *handler) SetLevel(level slog.Level) {
	h.state.level.Set(level)
}

func (h *handler) SetFormatter(f Formatter) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.formatter = f
}

func (h *handler) SetStream(w io.Writer) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.stream = w
}

// Writes buffered records that pass the current level and switches the
// handler to direct output. Without a stream, records stay buffered.
func (h *handler) Flush() error {
	s := h.state
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return nil
	}

	pending := s.pending
	s.pending = nil
	s.flushed = true

	for _, p := range pending {
		if p.record.Level < s.level.Level() {
			continue
		}
		if _, err := s.stream.Write(s.formatter.Format(p.record, p.attrs, p.groups)); err != nil {
			return err
		}
	}
	return nil
}
