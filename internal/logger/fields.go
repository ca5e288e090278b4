package logger

import "log/slog"

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so transfers can
// be followed across the scheduler, workers, pacer and chat handlers.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Chat & Command
	// ========================================================================
	KeyCommand    = "command"     // Chat command name: /url, /links, etc.
	KeyChatID     = "chat_id"     // Chat identifier
	KeyMessageID  = "message_id"  // Message identifier within a chat
	KeyUsername   = "username"    // Storage account username
	KeyChatAction = "chat_action" // Outbound action: respond, reply, edit, delete

	// ========================================================================
	// Tasks & Transfers
	// ========================================================================
	KeyTaskID   = "task_id"   // Queued task identifier
	KeyTaskType = "task_type" // Task kind: file, link, url
	KeyStatus   = "status"    // Task status: waiting, fetched, started, ...
	KeyFilename = "filename"  // Destination file name
	KeyURL      = "url"       // Source URL for url tasks
	KeyPath     = "path"      // Remote drive path

	// ========================================================================
	// I/O
	// ========================================================================
	KeyOffset     = "offset"      // Upload offset in bytes
	KeyPartSize   = "part_size"   // Upload part size in bytes
	KeyBytes      = "bytes"       // Bytes moved in an operation
	KeyTotal      = "total"       // Total transfer length in bytes
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyKind       = "kind"        // Error kind (transport, protocol, ...)
	KeyPending    = "pending"     // Pending task count
	KeyWorkers    = "workers"     // Active worker count
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

// Command returns a slog.Attr for a chat command name
func Command(name string) slog.Attr {
	return slog.String(KeyCommand, name)
}

// ChatID returns a slog.Attr for a chat identifier
func ChatID(id int64) slog.Attr {
	return slog.Int64(KeyChatID, id)
}

// MessageID returns a slog.Attr for a message identifier
func MessageID(id int) slog.Attr {
	return slog.Int(KeyMessageID, id)
}

// Username returns a slog.Attr for a storage account username
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// TaskID returns a slog.Attr for a task identifier
func TaskID(id uint) slog.Attr {
	return slog.Uint64(KeyTaskID, uint64(id))
}

// TaskType returns a slog.Attr for a task kind
func TaskType(t string) slog.Attr {
	return slog.String(KeyTaskType, t)
}

// Status returns a slog.Attr for a task status
func Status(s string) slog.Attr {
	return slog.String(KeyStatus, s)
}

// Filename returns a slog.Attr for a destination file name
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// URL returns a slog.Attr for a source URL
func URL(u string) slog.Attr {
	return slog.String(KeyURL, u)
}

// Path returns a slog.Attr for a remote drive path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Offset returns a slog.Attr for an upload offset
func Offset(off uint64) slog.Attr {
	return slog.Uint64(KeyOffset, off)
}

// Bytes returns a slog.Attr for bytes moved
func Bytes(n int) slog.Attr {
	return slog.Int(KeyBytes, n)
}

// Total returns a slog.Attr for a total transfer length
func Total(n uint64) slog.Attr {
	return slog.Uint64(KeyTotal, n)
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for maximum retry attempts
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
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
