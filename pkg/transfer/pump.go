package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/marmos91/telebridge/internal/apperr"
	"github.com/marmos91/telebridge/internal/logger"
	"github.com/marmos91/telebridge/internal/telemetry"
	"github.com/marmos91/telebridge/pkg/onedrive"
	"github.com/marmos91/telebridge/pkg/store"
)

// Run drives one task to a terminal state. The cancel context is the
// task's cancellation token: it is polled between parts, never mid-call,
// so an in-flight PUT finishes before the worker notices. On failure the
// row is marked failed for the progress aggregator to surface; on
// cancellation the row is already gone and the drive session is aborted
// best effort.
func (t *Transfer) Run(ctx context.Context, cancel context.Context, task *store.Task, source Source) error {
	ctx, span := telemetry.StartTaskSpan(ctx, "transfer.run", task.ID,
		telemetry.TaskType(string(task.Type)),
		telemetry.Filename(task.Filename),
		telemetry.Total(task.TotalLength),
	)
	defer span.End()

	if t.metrics != nil {
		t.metrics.TaskStarted()
	}

	err := t.pump(ctx, cancel, task, source)

	switch {
	case err == nil:
		t.finish("completed")
		return nil

	case errors.Is(err, ErrCancelled):
		t.abortSession(task)
		t.finish("cancelled")
		return err

	default:
		if serr := t.store.SetStatus(ctx, task.ID, store.StatusFailed); serr != nil {
			logger.Warn("Failed to mark task failed",
				"task_id", task.ID,
				"error", serr,
			)
		}
		t.finish("failed")
		return err
	}
}

func (t *Transfer) finish(status string) {
	if t.metrics != nil {
		t.metrics.TaskFinished(status)
	}
}

func (t *Transfer) pump(ctx context.Context, cancel context.Context, task *store.Task, source Source) error {
	total := int64(task.TotalLength)
	if total <= 0 {
		return apperr.Newf(apperr.Validation, "refusing to transfer %s: total length is zero", task.Filename)
	}

	// Re-attach to the session opened at insertion time. The drive
	// reports the ranges it still expects; the first one is where this
	// transfer resumes, whether that is byte zero or a restart remnant.
	session, err := t.drive.SessionStatus(ctx, task.UploadURL)
	if err != nil {
		return fmt.Errorf("failed to re-attach to upload session: %w", err)
	}
	current, err := session.NextOffset()
	if err != nil {
		return fmt.Errorf("failed to resolve resume offset: %w", err)
	}

	if current != int64(task.CurrentLength) {
		logger.Info("Resuming upload from session offset",
			"task_id", task.ID,
			"stored", task.CurrentLength,
			"session", current,
		)
		if err := t.store.SetCurrentLength(ctx, task.ID, uint64(current)); err != nil {
			logger.Warn("Failed to store resume offset", "task_id", task.ID, "error", err)
		}
	}

	reader, err := source.Open(ctx, current)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer reader.Close()

	buf := t.parts.Get()
	defer t.parts.Put(buf)

	var finalItem *onedrive.DriveItem

	for current < total {
		if tokenFired(cancel) {
			return ErrCancelled
		}

		want := int64(len(buf))
		if remaining := total - current; remaining < want {
			want = remaining
		}

		n, err := io.ReadFull(reader, buf[:want])
		if err != nil {
			return apperr.Wrapf(apperr.Transport, err, "source ended at byte %d of %d", current+int64(n), total)
		}

		finalItem, err = t.uploadPart(ctx, cancel, task, buf[:want], current, total)
		if err != nil {
			return err
		}

		current += want
		if err := t.store.SetCurrentLength(ctx, task.ID, uint64(current)); err != nil {
			// Progress rendering lags one part; the next write catches up.
			logger.Warn("Failed to store current length", "task_id", task.ID, "error", err)
		}
	}

	if finalItem == nil {
		return apperr.New(apperr.Protocol, "drive did not acknowledge the final part")
	}

	// The drive renames on conflict; the stored filename must match what
	// actually landed before anyone renders a completion message.
	if name := finalItem.Name; name != "" && name != task.Filename {
		logger.Info("Drive renamed file on conflict",
			"task_id", task.ID,
			"requested", task.Filename,
			"effective", name,
		)
		if err := t.store.UpdateFilename(ctx, task.ID, name); err != nil {
			return fmt.Errorf("failed to store effective filename: %w", err)
		}
	}

	if err := t.store.SetStatus(ctx, task.ID, store.StatusCompleted); err != nil {
		return fmt.Errorf("failed to mark task completed: %w", err)
	}

	logger.Info("Transfer completed",
		"task_id", task.ID,
		"filename", task.Filename,
		"bytes", total,
	)

	return nil
}

// uploadPart PUTs one part with the configured retry budget. The retry
// sleep honors the cancellation token; the HTTP call itself does not.
// Intermediate parts return a nil item; the final part returns the
// created drive item.
func (t *Transfer) uploadPart(ctx context.Context, cancel context.Context, task *store.Task, part []byte, offset, total int64) (*onedrive.DriveItem, error) {
	var lastErr error

	for attempt := 1; attempt <= t.config.RetryMax; attempt++ {
		start := time.Now()
		item, err := t.drive.UploadPart(ctx, task.UploadURL, part, offset, total)
		if t.metrics != nil {
			t.metrics.PartUploaded(len(part), time.Since(start), err)
		}
		if err == nil {
			return item, nil
		}

		lastErr = err
		logger.Warn("Part upload failed",
			"task_id", task.ID,
			"offset", offset,
			"attempt", attempt,
			"error", err,
		)

		if attempt == t.config.RetryMax {
			break
		}

		select {
		case <-time.After(t.config.RetrySleep):
		case <-cancel.Done():
			return nil, ErrCancelled
		}
	}

	return nil, fmt.Errorf("failed to upload part at offset %d after %d attempts: %w", offset, t.config.RetryMax, lastErr)
}

// abortSession closes the upload session so the drive reclaims the
// partial upload. Runs on its own timeout; the task row is already gone.
func (t *Transfer) abortSession(task *store.Task) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := t.drive.AbortUploadSession(ctx, task.UploadURL); err != nil {
		logger.Warn("Failed to abort upload session", "task_id", task.ID, "error", err)
	}
}

// tokenFired polls the cancellation token without blocking.
func tokenFired(cancel context.Context) bool {
	select {
	case <-cancel.Done():
		return true
	default:
		return false
	}
}
