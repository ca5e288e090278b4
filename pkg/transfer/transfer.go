// Package transfer runs the upload pipeline: one multipart pump that
// buffers part-sized chunks from a source and PUTs them into a drive
// upload session, fed by two source shapes (streaming HTTP bodies and
// chat media downloads). Workers are spawned by the scheduler, one per
// claimed task, under its concurrency semaphore.
package transfer

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/marmos91/telebridge/internal/bytesize"
	"github.com/marmos91/telebridge/pkg/bufpool"
	"github.com/marmos91/telebridge/pkg/onedrive"
	"github.com/marmos91/telebridge/pkg/store"
)

// ErrCancelled reports that a task's cancellation token fired between
// parts. The row is already deleted by whoever cancelled; the worker
// just stops and aborts the drive session.
var ErrCancelled = errors.New("task cancelled")

const (
	defaultPartSize   = 3200 * bytesize.KiB
	defaultRetryMax   = 5
	defaultRetrySleep = time.Second
)

// Metrics is the instrumentation hook for transfer activity. A nil
// Metrics disables instrumentation with zero overhead.
type Metrics interface {
	// TaskStarted records a worker beginning a transfer.
	TaskStarted()

	// TaskFinished records a worker ending a transfer with the terminal
	// status: completed, failed or cancelled.
	TaskFinished(status string)

	// PartUploaded records one part attempt with its size and duration.
	PartUploaded(bytes int, duration time.Duration, err error)
}

// Config tunes the pipeline.
type Config struct {
	// PartSize is the upload buffer size. Must be a positive multiple of
	// the drive's 320Ki fragment; config validation enforces that before
	// it gets here.
	PartSize bytesize.ByteSize

	// RetryMax is how many attempts each part gets before the task fails.
	RetryMax int

	// RetrySleep is the fixed pause between part attempts.
	RetrySleep time.Duration
}

func (c *Config) applyDefaults() {
	if c.PartSize <= 0 {
		c.PartSize = defaultPartSize
	}
	if c.RetryMax <= 0 {
		c.RetryMax = defaultRetryMax
	}
	if c.RetrySleep <= 0 {
		c.RetrySleep = defaultRetrySleep
	}
}

// Source yields the content of one task. Implementations position the
// stream at the requested byte offset so interrupted uploads resume
// without re-reading from zero.
type Source interface {
	Open(ctx context.Context, offset int64) (io.ReadCloser, error)
}

// Transfer owns the shared pieces every worker uses: the drive client,
// the task store for length and status writes, the part buffer pool
// and tuning.
type Transfer struct {
	drive   *onedrive.Client
	store   *store.Store
	config  Config
	parts   *bufpool.Pool
	metrics Metrics
}

// New creates the transfer runner. Pass a nil Metrics to run without
// instrumentation.
func New(drive *onedrive.Client, st *store.Store, config Config, m Metrics) *Transfer {
	config.applyDefaults()

	return &Transfer{
		drive:   drive,
		store:   st,
		config:  config,
		parts:   bufpool.New(int(config.PartSize)),
		metrics: m,
	}
}
