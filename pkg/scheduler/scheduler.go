// Package scheduler drains the task queue into bounded transfer workers.
//
// One cooperative loop claims waiting rows in id order, builds the byte
// source for each task, and hands it to the transfer runner under a
// fixed-width semaphore. Cancellation tokens live in the Aborters
// registry, keyed by the trigger message, so chat-side events (history
// clears, deleted triggers, re-sent commands) can stop a transfer that
// is already running.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/telebridge/internal/apperr"
	"github.com/marmos91/telebridge/internal/logger"
	"github.com/marmos91/telebridge/pkg/store"
	"github.com/marmos91/telebridge/pkg/telegram"
	"github.com/marmos91/telebridge/pkg/transfer"
)

const (
	defaultWorkers = 5
	defaultPoll    = time.Second
)

// Config tunes the dispatch loop.
type Config struct {
	// Workers bounds the number of concurrent transfers.
	Workers int

	// Poll is the sleep between queue checks while no task is waiting.
	Poll time.Duration
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.Poll <= 0 {
		c.Poll = defaultPoll
	}
}

// Runner drives one claimed task to a terminal status.
type Runner interface {
	Run(ctx context.Context, cancel context.Context, task *store.Task, source transfer.Source) error
}

// ChatSource is the user-client surface dispatch needs: verifying that
// the message backing a task still exists, and reading its media.
type ChatSource interface {
	GetMessage(ctx context.Context, peer telegram.Peer, id int) (*telegram.Message, error)
	OpenMedia(ctx context.Context, peer telegram.Peer, messageID int, offset int64) (io.ReadCloser, error)
}

// Scheduler is the dispatch loop.
type Scheduler struct {
	store    *store.Store
	runner   Runner
	chat     ChatSource
	aborters *Aborters
	urls     *http.Client
	config   Config

	sem chan struct{}

	mu        sync.Mutex
	started   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// New creates a scheduler. urls is the HTTP client URL-sourced tasks
// download through; it is shared with the command layer that probes
// URLs at insertion time.
func New(st *store.Store, runner Runner, chat ChatSource, aborters *Aborters, urls *http.Client, config Config) *Scheduler {
	config.applyDefaults()

	return &Scheduler{
		store:     st,
		runner:    runner,
		chat:      chat,
		aborters:  aborters,
		urls:      urls,
		config:    config,
		sem:       make(chan struct{}, config.Workers),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start begins the dispatch loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	logger.Info("Starting scheduler",
		"workers", s.config.Workers,
		"poll", s.config.Poll,
	)

	s.wg.Add(1)
	go s.loop(ctx)

	go func() {
		s.wg.Wait()
		close(s.stoppedCh)
	}()
}

// Stop halts dispatching and waits for running workers, up to timeout.
func (s *Scheduler) Stop(timeout time.Duration) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.stopCh) })

	select {
	case <-s.stoppedCh:
	case <-time.After(timeout):
		logger.Warn("Scheduler did not stop in time", "timeout", timeout)
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		task, err := s.store.FetchNext(ctx)
		if err != nil {
			if !errors.Is(err, store.ErrNoWaitingTasks) {
				logger.Error("Failed to fetch next task", "error", err)
			}
			s.idle(ctx)
			continue
		}

		s.dispatch(ctx, task)
	}
}

func (s *Scheduler) idle(ctx context.Context) {
	select {
	case <-time.After(s.config.Poll):
	case <-s.stopCh:
	case <-ctx.Done():
	}
}

// dispatch builds the task's byte source, claims a worker slot, and
// spawns the transfer. A task that cannot produce a source is failed on
// the spot; the aggregator surfaces it.
func (s *Scheduler) dispatch(ctx context.Context, task *store.Task) {
	source, err := s.buildSource(ctx, task)
	if err != nil {
		logger.Error("Task failed before dispatch",
			"task_id", task.ID,
			"type", task.Type,
			"filename", task.Filename,
			"error", err,
		)
		s.fail(ctx, task)
		return
	}

	select {
	case s.sem <- struct{}{}:
	default:
		logger.Info("Worker pool saturated, task waits for a slot",
			"task_id", task.ID,
			"workers", s.config.Workers,
		)
		select {
		case s.sem <- struct{}{}:
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}

	cancel, ok := s.aborters.Context(task.ChatID, task.MessageID)
	if !ok {
		err := apperr.Newf(apperr.Internal, "task %d has no cancellation token", task.ID)
		logger.Error("Registering replacement token", "task_id", task.ID, "error", err)
		cancel = s.aborters.Register(task.ChatID, task.MessageID)
	}

	if err := s.store.SetStatus(ctx, task.ID, store.StatusStarted); err != nil {
		logger.Error("Failed to mark task started", "task_id", task.ID, "error", err)
		<-s.sem
		return
	}

	s.wg.Add(1)
	go s.work(ctx, cancel, task, source)
}

// work runs one transfer, then releases the slot and the token.
func (s *Scheduler) work(ctx context.Context, cancel context.Context, task *store.Task, source transfer.Source) {
	defer s.wg.Done()
	defer func() { <-s.sem }()

	if err := s.runner.Run(ctx, cancel, task, source); err != nil {
		logger.Error("Transfer ended with error",
			"task_id", task.ID,
			"filename", task.Filename,
			"error", err,
		)
	}

	s.aborters.Drop(task.ChatID, task.MessageID)
}

// buildSource picks the byte source for the task. Media-backed tasks
// verify the backing message still exists before a worker slot is
// claimed.
func (s *Scheduler) buildSource(ctx context.Context, task *store.Task) (transfer.Source, error) {
	switch task.Type {
	case store.TaskTypeURL:
		return transfer.NewURLSource(s.urls, task.URL), nil

	case store.TaskTypeFile:
		peer, err := telegram.DecodePeer(task.ChatUserHex)
		if err != nil {
			return nil, fmt.Errorf("failed to decode chat peer: %w", err)
		}
		if _, err := s.chat.GetMessage(ctx, peer, task.MessageID); err != nil {
			return nil, fmt.Errorf("failed to fetch trigger message: %w", err)
		}
		return transfer.NewMediaSource(s.chat, peer, task.MessageID), nil

	case store.TaskTypeLink:
		peer, err := telegram.DecodePeer(task.ChatOriginHex)
		if err != nil {
			return nil, fmt.Errorf("failed to decode origin peer: %w", err)
		}
		if _, err := s.chat.GetMessage(ctx, peer, task.MessageOriginID); err != nil {
			return nil, fmt.Errorf("failed to fetch linked message: %w", err)
		}
		return transfer.NewMediaSource(s.chat, peer, task.MessageOriginID), nil

	default:
		return nil, apperr.Newf(apperr.Internal, "unknown task type %q", task.Type)
	}
}

// fail forces a pre-dispatch error into StatusFailed.
func (s *Scheduler) fail(ctx context.Context, task *store.Task) {
	if err := s.store.SetStatus(ctx, task.ID, store.StatusFailed); err != nil {
		logger.Warn("Failed to mark task failed", "task_id", task.ID, "error", err)
	}
	s.aborters.Drop(task.ChatID, task.MessageID)
}
