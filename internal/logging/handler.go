// Package logging builds the slog loggers used across gridwatch.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// HumanReadableHandler is a slog handler that writes one line per record:
//
//	message (key=value, key="value with spaces")
//
// Attributes added through WithAttrs are written before the record's own
// attributes; group names prefix keys as "group.key".
type HumanReadableHandler struct {
	mu     *sync.Mutex
	writer io.Writer
	opts   slog.HandlerOptions
	attrs  []slog.Attr
	groups []string
}

// NewHumanReadableHandler creates a new human-readable log handler.
func NewHumanReadableHandler(w io.Writer, opts *slog.HandlerOptions) *HumanReadableHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &HumanReadableHandler{
		mu:     &sync.Mutex{},
		writer: w,
		opts:   *opts,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *HumanReadableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle formats and writes the log record.
func (h *HumanReadableHandler) Handle(ctx context.Context, r slog.Record) error {
	// Built-in fields go through ReplaceAttr too, so callers can drop the
	// timestamp or level the same way they would with slog.TextHandler.
	builtins := []slog.Attr{
		slog.Time(slog.TimeKey, r.Time),
		slog.Any(slog.LevelKey, r.Level),
		slog.String(slog.MessageKey, r.Message),
	}

	var msg string
	var fields []slog.Attr
	for _, a := range builtins {
		a = h.replace(nil, a)
		if a.Key == "" {
			continue
		}
		if a.Key == slog.MessageKey {
			msg = a.Value.String()
			continue
		}
		fields = append(fields, a)
	}

	fields = append(fields, h.attrs...)
	prefix := h.groupPrefix()
	r.Attrs(func(a slog.Attr) bool {
		a = h.replace(h.groups, a)
		if a.Key != "" {
			a.Key = prefix + a.Key
			fields = append(fields, a)
		}
		return true
	})

	var buf strings.Builder
	buf.WriteString(msg)
	if len(fields) > 0 {
		if msg != "" {
			buf.WriteString(" (")
		}
		for i, a := range fields {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(a.Key)
			buf.WriteString("=")
			buf.WriteString(formatValue(a.Value))
		}
		if msg != "" {
			buf.WriteString(")")
		}
	}
	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, buf.String())
	return err
}

// WithAttrs returns a new handler that writes attrs on every record.
func (h *HumanReadableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := h.clone()
	prefix := h.groupPrefix()
	for _, a := range attrs {
		a = h.replace(h.groups, a)
		if a.Key == "" {
			continue
		}
		a.Key = prefix + a.Key
		clone.attrs = append(clone.attrs, a)
	}
	return clone
}

// WithGroup returns a new handler that qualifies later keys with name.
func (h *HumanReadableHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *HumanReadableHandler) clone() *HumanReadableHandler {
	return &HumanReadableHandler{
		mu:     h.mu,
		writer: h.writer,
		opts:   h.opts,
		attrs:  append([]slog.Attr(nil), h.attrs...),
		groups: append([]string(nil), h.groups...),
	}
}

func (h *HumanReadableHandler) replace(groups []string, a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	if h.opts.ReplaceAttr != nil {
		return h.opts.ReplaceAttr(groups, a)
	}
	return a
}

func (h *HumanReadableHandler) groupPrefix() string {
	if len(h.groups) == 0 {
		return ""
	}
	return strings.Join(h.groups, ".") + "."
}

// formatValue quotes strings containing spaces or '='.
func formatValue(v slog.Value) string {
	if v.Kind() == slog.KindString {
		s := v.String()
		if strings.ContainsAny(s, " =") {
			return `"` + s + `"`
		}
		return s
	}
	return fmt.Sprintf("%v", v.Any())
}
