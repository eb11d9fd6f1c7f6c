package logger

import "log/slog"

// Standard field keys for structured logging. Use these keys
// consistently across all log statements so log aggregation and
// querying see one vocabulary for the daemon's operations.
const (
	// Distributed tracing
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// Operation identity
	KeyOperation = "operation"  // Operation name: restage, reload, rescan, delete, etc.
	KeyLink      = "link"       // Restage link name
	KeyKey       = "key"        // Canonical quota/usage key
	KeyQuotaType = "quota_type" // SRC or DST
	KeyScheme    = "scheme"     // ipn, imc, dtn
	KeyNode      = "node"       // Node identifier within a scheme
	KeyRequestID = "request_id" // API request correlation ID

	// Storage
	KeyPath       = "path"        // Full file/directory path
	KeyFilename   = "filename"    // File name (basename)
	KeySize       = "size"        // File size in bytes
	KeyPayloadLen = "payload_len" // Bundle payload length charged
	KeyDiskUsage  = "disk_usage"  // Block-rounded on-disk size
	KeyBundles    = "bundles"     // Bundle count
	KeyBytes      = "bytes"       // Byte count
	KeyState      = "state"       // RestageCL state name

	// Operation metadata
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts
)

// Field constructors for type safety.

// TraceID returns a slog.Attr for an OpenTelemetry trace ID.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for an OpenTelemetry span ID.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Operation returns a slog.Attr for an operation name.
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Link returns a slog.Attr for a restage link name.
func Link(name string) slog.Attr {
	return slog.String(KeyLink, name)
}

// Key returns a slog.Attr for a canonical quota/usage key.
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

// QuotaType returns a slog.Attr for a quota type (SRC or DST).
func QuotaType(qt string) slog.Attr {
	return slog.String(KeyQuotaType, qt)
}

// Scheme returns a slog.Attr for a naming scheme.
func Scheme(s string) slog.Attr {
	return slog.String(KeyScheme, s)
}

// Node returns a slog.Attr for a node identifier.
func Node(n string) slog.Attr {
	return slog.String(KeyNode, n)
}

// RequestID returns a slog.Attr for an API request correlation ID.
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// Path returns a slog.Attr for a file or directory path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Filename returns a slog.Attr for a file name.
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// Size returns a slog.Attr for a file size in bytes.
func Size(s uint64) slog.Attr {
	return slog.Uint64(KeySize, s)
}

// PayloadLen returns a slog.Attr for a bundle's charged payload length.
func PayloadLen(n uint64) slog.Attr {
	return slog.Uint64(KeyPayloadLen, n)
}

// DiskUsage returns a slog.Attr for a block-rounded on-disk size.
func DiskUsage(n uint64) slog.Attr {
	return slog.Uint64(KeyDiskUsage, n)
}

// Bundles returns a slog.Attr for a bundle count.
func Bundles(n uint64) slog.Attr {
	return slog.Uint64(KeyBundles, n)
}

// Bytes returns a slog.Attr for a byte count.
func Bytes(n uint64) slog.Attr {
	return slog.Uint64(KeyBytes, n)
}

// State returns a slog.Attr for a RestageCL state name.
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error. A nil error yields an empty
// attr that slog drops.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for the maximum retry attempts.
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}
