package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request/worker-scoped logging context: the fields a
// restage, reload, or API operation wants stamped on every record it
// emits without threading them through each call.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	Operation string    // Operation name (restage, reload, rescan, ...)
	Link      string    // Restage link name
	Key       string    // Canonical quota/usage key
	RequestID string    // API request correlation ID
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext with the given request ID
func NewLogContext(requestID string) *LogContext {
	return &LogContext{
		RequestID: requestID,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		Operation: lc.Operation,
		Link:      lc.Link,
		Key:       lc.Key,
		RequestID: lc.RequestID,
		StartTime: lc.StartTime,
	}
}

// WithOperation returns a copy with the operation name set
func (lc *LogContext) WithOperation(operation string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Operation = operation
	}
	return clone
}

// WithLink returns a copy with the restage link name set
func (lc *LogContext) WithLink(link string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Link = link
	}
	return clone
}

// WithKey returns a copy with the canonical key set
func (lc *LogContext) WithKey(key string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Key = key
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
