package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for transfer operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Chat attributes
	// ========================================================================
	AttrChatID    = "chat.id"
	AttrMessageID = "chat.message_id"
	AttrCommand   = "chat.command"
	AttrAction    = "chat.action" // respond, reply, edit, delete

	// ========================================================================
	// Task attributes
	// ========================================================================
	AttrTaskID   = "task.id"
	AttrTaskType = "task.type" // file, link, url
	AttrStatus   = "task.status"
	AttrFilename = "task.filename"
	AttrURL      = "task.url"

	// ========================================================================
	// Transfer attributes
	// ========================================================================
	AttrOffset     = "transfer.offset"
	AttrPartSize   = "transfer.part_size"
	AttrTotal      = "transfer.total"
	AttrBytes      = "transfer.bytes"
	AttrAttempt    = "transfer.attempt"
	AttrMaxRetries = "transfer.max_retries"

	// ========================================================================
	// Drive attributes
	// ========================================================================
	AttrDrivePath = "drive.path"
	AttrDriveUser = "drive.user"
)

// Span names for operations.
// Format: <component>.<operation>
const (
	// Scheduler spans
	SpanTaskDispatch = "scheduler.dispatch"
	SpanTaskClaim    = "scheduler.claim"

	// Transfer spans
	SpanTransferRun  = "transfer.run"
	SpanTransferPart = "transfer.part"
	SpanSourceRead   = "transfer.source_read"

	// Drive spans
	SpanDriveSessionCreate = "drive.session_create"
	SpanDriveSessionQuery  = "drive.session_query"
	SpanDriveTokenRefresh  = "drive.token_refresh"

	// Chat spans
	SpanChatCommand = "chat.command"
	SpanChatSend    = "chat.send"
	SpanChatFetch   = "chat.fetch"
)

// ChatID returns an attribute for a chat identifier
func ChatID(id int64) attribute.KeyValue {
	return attribute.Int64(AttrChatID, id)
}

// MessageID returns an attribute for a message identifier
func MessageID(id int) attribute.KeyValue {
	return attribute.Int(AttrMessageID, id)
}

// Command returns an attribute for a chat command name
func Command(name string) attribute.KeyValue {
	return attribute.String(AttrCommand, name)
}

// Action returns an attribute for an outbound chat action
func Action(name string) attribute.KeyValue {
	return attribute.String(AttrAction, name)
}

// TaskID returns an attribute for a task identifier
func TaskID(id uint) attribute.KeyValue {
	return attribute.Int64(AttrTaskID, int64(id))
}

// TaskType returns an attribute for a task kind
func TaskType(t string) attribute.KeyValue {
	return attribute.String(AttrTaskType, t)
}

// Status returns an attribute for a task status
func Status(s string) attribute.KeyValue {
	return attribute.String(AttrStatus, s)
}

// Filename returns an attribute for a destination file name
func Filename(name string) attribute.KeyValue {
	return attribute.String(AttrFilename, name)
}

// URL returns an attribute for a source URL
func URL(u string) attribute.KeyValue {
	return attribute.String(AttrURL, u)
}

// Offset returns an attribute for an upload offset
func Offset(offset uint64) attribute.KeyValue {
	return attribute.Int64(AttrOffset, int64(offset))
}

// PartSize returns an attribute for an upload part size
func PartSize(size int) attribute.KeyValue {
	return attribute.Int(AttrPartSize, size)
}

// Total returns an attribute for a total transfer length
func Total(total uint64) attribute.KeyValue {
	return attribute.Int64(AttrTotal, int64(total))
}

// Bytes returns an attribute for bytes moved
func Bytes(n int) attribute.KeyValue {
	return attribute.Int(AttrBytes, n)
}

// Attempt returns an attribute for a retry attempt number
func Attempt(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempt, n)
}

// DrivePath returns an attribute for a remote drive path
func DrivePath(path string) attribute.KeyValue {
	return attribute.String(AttrDrivePath, path)
}

// DriveUser returns an attribute for a storage account username
func DriveUser(name string) attribute.KeyValue {
	return attribute.String(AttrDriveUser, name)
}

// StartTaskSpan starts a span for task processing.
// This is a convenience function that sets common attributes.
func StartTaskSpan(ctx context.Context, operation string, taskID uint, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		TaskID(taskID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, operation, trace.WithAttributes(allAttrs...))
}

// StartTransferSpan starts a span for an upload part or source read.
func StartTransferSpan(ctx context.Context, operation string, offset uint64, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Offset(offset),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, operation, trace.WithAttributes(allAttrs...))
}

// StartCommandSpan starts a span for a chat command handler.
func StartCommandSpan(ctx context.Context, command string, chatID int64, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Command(command),
		ChatID(chatID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanChatCommand, trace.WithAttributes(allAttrs...))
}
