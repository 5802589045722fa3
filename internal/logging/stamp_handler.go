package logging

import (
	"context"
	"log/slog"
)

// FieldSessionID identifies one watch process in every record it writes.
const FieldSessionID = "session_id"

// stampHandler adds fixed attributes to every record at Handle time, so they
// appear exactly once however the logger was derived.
type stampHandler struct {
	base  slog.Handler
	attrs []slog.Attr
}

func newStampHandler(base slog.Handler, attrs ...slog.Attr) slog.Handler {
	if base == nil {
		return discardHandler{}
	}
	if len(attrs) == 0 {
		return base
	}
	return &stampHandler{base: base, attrs: attrs}
}

func (h *stampHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *stampHandler) Handle(ctx context.Context, record slog.Record) error {
	stamped := record.Clone()
	stamped.AddAttrs(h.attrs...)
	return h.base.Handle(ctx, stamped)
}

func (h *stampHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stampHandler{base: h.base.WithAttrs(attrs), attrs: h.attrs}
}

func (h *stampHandler) WithGroup(name string) slog.Handler {
	return &stampHandler{base: h.base.WithGroup(name), attrs: h.attrs}
}
