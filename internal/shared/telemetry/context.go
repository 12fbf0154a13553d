package telemetry

import "context"

type requestIDKey struct{}

// WithRequestID attaches a request ID to the context for logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID set by WithRequestID, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithContext adds the context's request ID to fields.
func WithContext(ctx context.Context, fields map[string]any) map[string]any {
	if id := RequestIDFromContext(ctx); id != "" {
		if fields == nil {
			fields = map[string]any{}
		}
		fields["request_id"] = id
	}
	return fields
}
