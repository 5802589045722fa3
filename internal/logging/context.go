package logging

import (
	"context"
	"log/slog"

	"podwatch/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldMarker is the standardized key for the absolute marker file path.
	FieldMarker = "marker"
	// FieldOrigin is the standardized key for how a marker was discovered.
	FieldOrigin = "origin"
	// FieldEventID is the standardized key for the per-marker event identifier.
	FieldEventID = "event_id"
	// FieldRoot is the standardized key for the monitored root directory.
	FieldRoot = "root"
	// FieldEventType classifies a log record for filtering (marker_claimed, dispatch_failed, ...).
	FieldEventType = "event_type"
	// FieldErrorHint is the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

// contextFields lists the marker, origin and event id carried by ctx.
func contextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if marker, ok := services.MarkerFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldMarker, marker))
	}
	if origin, ok := services.OriginFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldOrigin, origin))
	}
	if id, ok := services.EventIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldEventID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(toArgs(fields)...)
}
