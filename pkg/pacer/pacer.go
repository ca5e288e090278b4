// Package pacer serializes outbound chat calls so no chat receives more
// than one message per pacing window. The chat platform throttles
// senders that burst; the bridge pushes progress edits every few seconds
// across many tasks, so every outbound call goes through a pacer rather
// than straight to the transport.
//
// One pacer wraps one client identity. Submissions join a per-chat FIFO
// queue; a single background sweeper services one request per chat, then
// sleeps a uniformly random duration inside the configured window.
// Consecutive edits of the same message still waiting in a queue are
// coalesced so only the newest text is sent.
package pacer

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/marmos91/telebridge/internal/apperr"
	"github.com/marmos91/telebridge/internal/logger"
	"github.com/marmos91/telebridge/pkg/telegram"
)

// Metrics is the instrumentation hook for pacer activity. A nil Metrics
// disables instrumentation with zero overhead.
type Metrics interface {
	// Enqueued records a request joining a chat queue.
	Enqueued()

	// Serviced records a request leaving its queue, with the outcome of
	// the underlying transport call.
	Serviced(err error)

	// QueueDepth records the total queued requests after a sweep.
	QueueDepth(depth int)
}

const (
	defaultMinDelay = 2700 * time.Millisecond
	defaultMaxDelay = 3500 * time.Millisecond
)

// Config tunes the pacing window. After each sweep the pacer sleeps a
// uniformly random duration in [MinDelay, MaxDelay).
type Config struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.MinDelay <= 0 {
		c.MinDelay = defaultMinDelay
	}
	if c.MaxDelay <= c.MinDelay {
		c.MaxDelay = c.MinDelay + (defaultMaxDelay - defaultMinDelay)
	}
}

type kind int

const (
	kindSend kind = iota
	kindReply
	kindEdit
	kindDelete
)

// result is what a waiter receives, exactly once.
type result struct {
	msg *telegram.Message
	err error
}

// request is one queued outbound operation. Coalesced edits accumulate
// waiters; every waiter channel is buffered so delivery never blocks the
// sweeper on an abandoned caller.
type request struct {
	kind       kind
	peer       telegram.Peer
	replyTo    int
	messageID  int
	messageIDs []int
	text       string
	waiters    []chan result
}

// Pacer is a pacing decorator around a telegram.Sender. It implements
// telegram.Sender itself, so callers that do not care about pacing take
// the interface and receive either.
type Pacer struct {
	sender  telegram.Sender
	config  Config
	name    string
	metrics Metrics

	mu     sync.Mutex
	queues map[string][]*request

	stopCh    chan struct{}
	stoppedCh chan struct{}
	stopOnce  sync.Once
	started   bool
	wg        sync.WaitGroup
}

var _ telegram.Sender = (*Pacer)(nil)

// New creates a pacer around the given sender. The name labels log lines
// and metrics; conventionally "bot" or "user". Pass a nil Metrics to run
// without instrumentation.
func New(name string, sender telegram.Sender, config Config, m Metrics) *Pacer {
	config.applyDefaults()

	return &Pacer{
		sender:    sender,
		config:    config,
		name:      name,
		metrics:   m,
		queues:    make(map[string][]*request),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start begins the sweep loop. Requests may be enqueued before Start;
// they sit in their queues until the first sweep.
func (p *Pacer) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	logger.Info("Starting pacer",
		"name", p.name,
		"min_delay", p.config.MinDelay,
		"max_delay", p.config.MaxDelay,
	)

	p.wg.Add(1)
	go p.sweeper(ctx)

	go func() {
		p.wg.Wait()
		close(p.stoppedCh)
	}()
}

// Stop shuts the sweeper down and fails every queued request so no
// waiter is left hanging. Waits up to timeout for the sweeper to exit.
func (p *Pacer) Stop(timeout time.Duration) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.stopOnce.Do(func() { close(p.stopCh) })

	select {
	case <-p.stoppedCh:
	case <-time.After(timeout):
		logger.Warn("Pacer did not stop in time", "name", p.name, "timeout", timeout)
	}

	p.failPending()
}

// Send enqueues a new message for the chat and waits for delivery.
func (p *Pacer) Send(ctx context.Context, peer telegram.Peer, text string) (*telegram.Message, error) {
	return p.await(ctx, p.enqueue(&request{kind: kindSend, peer: peer, text: text}))
}

// Reply enqueues a reply to the given message and waits for delivery.
func (p *Pacer) Reply(ctx context.Context, peer telegram.Peer, replyTo int, text string) (*telegram.Message, error) {
	return p.await(ctx, p.enqueue(&request{kind: kindReply, peer: peer, replyTo: replyTo, text: text}))
}

// Edit enqueues a text replacement for an existing message. If an edit of
// the same message is still queued for the chat, the new text replaces
// the queued payload in place and both callers share the one delivery.
func (p *Pacer) Edit(ctx context.Context, peer telegram.Peer, id int, text string) error {
	_, err := p.await(ctx, p.enqueue(&request{kind: kindEdit, peer: peer, messageID: id, text: text}))
	return err
}

// Delete enqueues a deletion of the given messages.
func (p *Pacer) Delete(ctx context.Context, peer telegram.Peer, ids ...int) error {
	_, err := p.await(ctx, p.enqueue(&request{kind: kindDelete, peer: peer, messageIDs: ids}))
	return err
}

// QueueDepth reports the total number of queued requests across chats.
func (p *Pacer) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	depth := 0
	for _, queue := range p.queues {
		depth += len(queue)
	}

	return depth
}

// enqueue appends the request to its chat queue, coalescing edits, and
// returns the channel the result arrives on.
func (p *Pacer) enqueue(req *request) chan result {
	ch := make(chan result, 1)
	req.waiters = append(req.waiters, ch)

	p.mu.Lock()
	defer p.mu.Unlock()

	key := req.peer.Hex()

	if req.kind == kindEdit {
		for _, queued := range p.queues[key] {
			if queued.kind == kindEdit && queued.messageID == req.messageID {
				queued.text = req.text
				queued.waiters = append(queued.waiters, ch)
				return ch
			}
		}
	}

	p.queues[key] = append(p.queues[key], req)

	if p.metrics != nil {
		p.metrics.Enqueued()
	}

	return ch
}

func (p *Pacer) await(ctx context.Context, ch chan result) (*telegram.Message, error) {
	select {
	case res := <-ch:
		return res.msg, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// sweeper pops one request per chat, services the batch, then sleeps a
// jittered delay before the next pass.
func (p *Pacer) sweeper(ctx context.Context) {
	defer p.wg.Done()

	timer := time.NewTimer(p.jitter())
	defer timer.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		for _, req := range p.nextBatch() {
			p.service(ctx, req)
		}

		if p.metrics != nil {
			p.metrics.QueueDepth(p.QueueDepth())
		}

		timer.Reset(p.jitter())
	}
}

// nextBatch removes the head of every chat queue. Chats are independent,
// so the platform's per-chat limits are respected even when the batch
// spans many chats.
func (p *Pacer) nextBatch() []*request {
	p.mu.Lock()
	defer p.mu.Unlock()

	var batch []*request
	for key, queue := range p.queues {
		batch = append(batch, queue[0])
		if len(queue) == 1 {
			delete(p.queues, key)
		} else {
			p.queues[key] = queue[1:]
		}
	}

	return batch
}

func (p *Pacer) service(ctx context.Context, req *request) {
	var res result

	switch req.kind {
	case kindSend:
		res.msg, res.err = p.sender.Send(ctx, req.peer, req.text)
	case kindReply:
		res.msg, res.err = p.sender.Reply(ctx, req.peer, req.replyTo, req.text)
	case kindEdit:
		res.err = p.sender.Edit(ctx, req.peer, req.messageID, req.text)
	case kindDelete:
		res.err = p.sender.Delete(ctx, req.peer, req.messageIDs...)
	}

	if res.err != nil {
		logger.Warn("Outbound chat call failed",
			"pacer", p.name,
			"chat_id", req.peer.ID,
			"error", res.err,
		)
	}

	if p.metrics != nil {
		p.metrics.Serviced(res.err)
	}

	for _, ch := range req.waiters {
		ch <- res
	}
}

// failPending drains every queue after shutdown, delivering an error so
// blocked callers return instead of waiting on their contexts.
func (p *Pacer) failPending() {
	p.mu.Lock()
	queues := p.queues
	p.queues = make(map[string][]*request)
	p.mu.Unlock()

	stopped := result{err: apperr.Newf(apperr.Internal, "pacer %s stopped", p.name)}
	for _, queue := range queues {
		for _, req := range queue {
			for _, ch := range req.waiters {
				ch <- stopped
			}
		}
	}
}

func (p *Pacer) jitter() time.Duration {
	window := p.config.MaxDelay - p.config.MinDelay

	return p.config.MinDelay + time.Duration(rand.Int63n(int64(window)))
}
