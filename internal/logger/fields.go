package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the upload pipeline.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Transfer identity
	// ========================================================================
	KeyTransferID = "transfer_id" // Opaque Transfer.Id
	KeyUsername   = "username"    // Soulseek peer username
	KeyFilename   = "filename"    // Remote-facing filename as shown to the peer
	KeyLocalPath  = "local_path"  // Resolved local filesystem path

	// ========================================================================
	// Queue & Governor
	// ========================================================================
	KeyGroup     = "group"     // Resolved upload group name
	KeyStrategy  = "strategy"  // Group dispatch strategy: FirstInFirstOut, RoundRobin
	KeySlots     = "slots"     // Configured slot count for a group
	KeyUsedSlots = "used_slots"
	KeyPriority  = "priority"
	KeyRequested = "requested" // Bytes requested from a token bucket
	KeyGranted   = "granted"   // Bytes granted by a token bucket
	KeyAvailable = "available" // Bytes currently available in a token bucket
	KeyCapacity  = "capacity"  // Token bucket capacity

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyOperation  = "operation"   // Sub-operation name for multi-step flows
	KeyState      = "state"       // Transfer state flag-set, rendered as string
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyBytes      = "bytes"       // Generic byte count (progress, size)
	KeySize       = "size"        // Transfer total size in bytes
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// TransferID returns a slog.Attr for a transfer's opaque identifier
func TransferID(id string) slog.Attr {
	return slog.String(KeyTransferID, id)
}

// Username returns a slog.Attr for a Soulseek peer username
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// Filename returns a slog.Attr for the remote-facing filename
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// LocalPath returns a slog.Attr for the resolved local filesystem path
func LocalPath(path string) slog.Attr {
	return slog.String(KeyLocalPath, path)
}

// Group returns a slog.Attr for a resolved upload group name
func Group(name string) slog.Attr {
	return slog.String(KeyGroup, name)
}

// Strategy returns a slog.Attr for a group's dispatch strategy
func Strategy(s string) slog.Attr {
	return slog.String(KeyStrategy, s)
}

// Slots returns a slog.Attr for a group's configured slot count
func Slots(n int) slog.Attr {
	return slog.Int(KeySlots, n)
}

// UsedSlots returns a slog.Attr for a group's currently used slot count
func UsedSlots(n int) slog.Attr {
	return slog.Int(KeyUsedSlots, n)
}

// Priority returns a slog.Attr for a group's dispatch priority
func Priority(n int) slog.Attr {
	return slog.Int(KeyPriority, n)
}

// Requested returns a slog.Attr for bytes requested from a token bucket
func Requested(n int64) slog.Attr {
	return slog.Int64(KeyRequested, n)
}

// Granted returns a slog.Attr for bytes granted by a token bucket
func Granted(n int64) slog.Attr {
	return slog.Int64(KeyGranted, n)
}

// Available returns a slog.Attr for bytes currently available in a token bucket
func Available(n int64) slog.Attr {
	return slog.Int64(KeyAvailable, n)
}

// Capacity returns a slog.Attr for a token bucket's capacity
func Capacity(n int64) slog.Attr {
	return slog.Int64(KeyCapacity, n)
}

// Operation returns a slog.Attr for a sub-operation name
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// State returns a slog.Attr for a rendered transfer state
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Bytes returns a slog.Attr for a generic byte count
func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}

// Size returns a slog.Attr for a transfer's total size in bytes
func Size(n int64) slog.Attr {
	return slog.Int64(KeySize, n)
}
