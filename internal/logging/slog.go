// SPDX-License-Identifier: AGPL-3.0-only
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Slog returns a *slog.Logger that writes through l. It is handed to
// libraries that only accept slog, such as the MCP SDK.
func (l *Logger) Slog() *slog.Logger {
	return slog.New(&slogHandler{logger: l})
}

// slogHandler adapts slog records to Logger lines.
type slogHandler struct {
	logger *Logger
	attrs  []slog.Attr
	groups []string
}

func fromSlogLevel(level slog.Level) LogLevel {
	switch {
	case level < slog.LevelInfo:
		return Debug
	case level < slog.LevelWarn:
		return Info
	case level < slog.LevelError:
		return Warn
	default:
		return Error
	}
}

func (h *slogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return fromSlogLevel(level) >= h.logger.level
}

func (h *slogHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	write := func(a slog.Attr) {
		key := a.Key
		if len(h.groups) > 0 {
			key = strings.Join(h.groups, ".") + "." + key
		}
		fmt.Fprintf(&b, " %s=%v", key, a.Value.Resolve().Any())
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(a)
		return true
	})
	h.logger.logf(fromSlogLevel(r.Level), "%s", b.String())
	return nil
}

func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &slogHandler{
		logger: h.logger,
		attrs:  append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...),
		groups: h.groups,
	}
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &slogHandler{
		logger: h.logger,
		attrs:  h.attrs,
		groups: append(h.groups[:len(h.groups):len(h.groups)], name),
	}
}
