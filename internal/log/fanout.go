package log

import (
	"context"
	"log/slog"

	"github.com/hashicorp/go-multierror"
)

// FanoutHandler sends every record to several handlers, each applying its
// own level. It is used to log to the console and to the run log file at once.
type FanoutHandler struct {
	handlers []slog.Handler
}

// NewFanoutHandler creates a FanoutHandler over the given handlers.
func NewFanoutHandler(handlers ...slog.Handler) *FanoutHandler {
	return &FanoutHandler{handlers: handlers}
}

// Enabled reports whether any of the handlers handles the level.
func (f *FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes a clone of the record to every handler enabled for its level.
// All handlers are attempted; their errors are combined.
func (f *FanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var result *multierror.Error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// WithAttrs returns a FanoutHandler whose handlers all carry attrs.
func (f *FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &FanoutHandler{handlers: handlers}
}

// WithGroup returns a FanoutHandler whose handlers all open the group.
func (f *FanoutHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &FanoutHandler{handlers: handlers}
}
