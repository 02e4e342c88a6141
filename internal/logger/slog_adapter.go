package logger

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strings"
)

// StdLogger returns a *log.Logger that writes through l at the given level.
// It is meant for library hooks such as http.Server.ErrorLog.
func StdLogger(l *Logger, level Level) *log.Logger {
	return slog.NewLogLogger(NewSlogHandler(l), toSlogLevel(level))
}

// NewSlogHandler returns a slog.Handler that forwards records to l
func NewSlogHandler(l *Logger) slog.Handler {
	return &slogHandler{log: l}
}

type slogHandler struct {
	log   *Logger
	group string
	attrs []string
}

func (h *slogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.log != nil && fromSlogLevel(level) >= h.log.GetLevel()
}

func (h *slogHandler) Handle(_ context.Context, record slog.Record) error {
	if h.log == nil {
		return nil
	}

	parts := make([]string, 0, 1+len(h.attrs)+record.NumAttrs())
	if msg := strings.TrimRight(record.Message, "\n"); msg != "" {
		parts = append(parts, msg)
	}
	parts = append(parts, h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		parts = append(parts, h.format(attr))
		return true
	})
	h.log.log(fromSlogLevel(record.Level), "%s", strings.Join(parts, " "))
	return nil
}

func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &slogHandler{log: h.log, group: h.group, attrs: append([]string(nil), h.attrs...)}
	for _, attr := range attrs {
		next.attrs = append(next.attrs, h.format(attr))
	}
	return next
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	next := &slogHandler{log: h.log, group: h.group, attrs: h.attrs}
	if name != "" {
		if next.group != "" {
			next.group += "."
		}
		next.group += name
	}
	return next
}

func (h *slogHandler) format(attr slog.Attr) string {
	key := attr.Key
	if h.group != "" {
		key = h.group + "." + key
	}
	return fmt.Sprintf("%s=%v", key, attr.Value.Resolve())
}

func fromSlogLevel(level slog.Level) Level {
	switch {
	case level >= slog.LevelError:
		return LevelError
	case level >= slog.LevelWarn:
		return LevelWarn
	case level >= slog.LevelInfo:
		return LevelInfo
	default:
		return LevelDebug
	}
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError, LevelNone:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
