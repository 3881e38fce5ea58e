package logging

import (
	"context"
	"log/slog"
)

// Tee returns a logger that writes every record to base and to extra. Each
// side applies its own level, so a run log file at debug keeps records the
// daemon log filters out. A nil extra returns base unchanged.
func Tee(base *slog.Logger, extra slog.Handler) *slog.Logger {
	if extra == nil {
		if base == nil {
			return NewNop()
		}
		return base
	}
	if base == nil {
		return slog.New(extra)
	}
	return slog.New(&teeHandler{primary: base.Handler(), secondary: extra})
}

type teeHandler struct {
	primary   slog.Handler
	secondary slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level) || h.secondary.Enabled(ctx, level)
}

// Handle gives the secondary handler its own copy of the record since either
// side may add attributes. The primary handler's error wins.
func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var primaryErr error
	if h.primary.Enabled(ctx, record.Level) {
		primaryErr = h.primary.Handle(ctx, record.Clone())
	}
	if h.secondary.Enabled(ctx, record.Level) {
		if err := h.secondary.Handle(ctx, record); err != nil && primaryErr == nil {
			return err
		}
	}
	return primaryErr
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{primary: h.primary.WithAttrs(attrs), secondary: h.secondary.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{primary: h.primary.WithGroup(name), secondary: h.secondary.WithGroup(name)}
}
