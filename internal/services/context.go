package services

import "context"

type contextKey string

const (
	markerKey  contextKey = "marker"
	originKey  contextKey = "origin"
	eventIDKey contextKey = "event_id"
)

// WithMarker annotates ctx with the marker path being handled.
func WithMarker(ctx context.Context, path string) context.Context {
	return withString(ctx, markerKey, path)
}

// MarkerFromContext returns the marker path if present.
func MarkerFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, markerKey)
}

// WithOrigin annotates ctx with how the marker was discovered.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return withString(ctx, originKey, origin)
}

// OriginFromContext returns the discovery origin if present.
func OriginFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, originKey)
}

// WithEventID annotates ctx with the per-marker event identifier.
func WithEventID(ctx context.Context, id string) context.Context {
	return withString(ctx, eventIDKey, id)
}

// EventIDFromContext returns the event identifier if present.
func EventIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, eventIDKey)
}

// withString leaves ctx untouched for blank values.
func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}
