// Package progress maintains one live status message per chat: an
// aggregator loop snapshots the task store on a fixed tick, renders a
// body per chat, and posts, edits or reposts the chat's progress message
// so it stays at the tail of the conversation. Settled tasks get their
// trigger messages annotated (or deleted, under auto-delete) and their
// rows removed.
//
// Every outbound call goes through the pacers, which is what makes the
// aggregator tolerant of chat platform rate limits.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/telebridge/internal/logger"
	"github.com/marmos91/telebridge/pkg/store"
	"github.com/marmos91/telebridge/pkg/telegram"
)

const defaultTick = 3 * time.Second

// Config tunes the aggregator.
type Config struct {
	// Tick is the interval between snapshots. Values between 2s and 5s
	// keep the message fresh without flooding the pacer queues.
	Tick time.Duration
}

func (c *Config) applyDefaults() {
	if c.Tick <= 0 {
		c.Tick = defaultTick
	}
}

// ChatReader is the read surface the aggregator needs from the user
// client: trigger text for epilogue appends and the newest message id
// for the still-last check. Reads are not paced; only writes count
// against the platform's sending limits.
type ChatReader interface {
	GetMessage(ctx context.Context, peer telegram.Peer, id int) (*telegram.Message, error)
	LastMessageID(ctx context.Context, peer telegram.Peer) (int, error)
}

// chatRecord is the aggregator's memory of one chat between ticks.
type chatRecord struct {
	progressMessageID int
	lastRendered      string
}

// Aggregator is the progress loop. Outbound calls go through the two
// pacers: the bot one for the progress message itself, the user one for
// trigger message edits and deletions, which only the user identity may
// perform.
type Aggregator struct {
	store  *store.Store
	bot    telegram.Sender
	user   telegram.Sender
	reader ChatReader
	config Config

	mu    sync.Mutex
	chats map[store.ChatKey]*chatRecord

	stopCh    chan struct{}
	stoppedCh chan struct{}
	stopOnce  sync.Once
	started   bool
	wg        sync.WaitGroup
}

// New creates the aggregator. bot and user are the paced senders for
// the two identities.
func New(st *store.Store, bot, user telegram.Sender, reader ChatReader, config Config) *Aggregator {
	config.applyDefaults()

	return &Aggregator{
		store:     st,
		bot:       bot,
		user:      user,
		reader:    reader,
		config:    config,
		chats:     make(map[store.ChatKey]*chatRecord),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start begins the tick loop.
func (a *Aggregator) Start(ctx context.Context) {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return
	}
	a.started = true
	a.mu.Unlock()

	logger.Info("Starting progress aggregator", "tick", a.config.Tick)

	a.wg.Add(1)
	go a.loop(ctx)

	go func() {
		a.wg.Wait()
		close(a.stoppedCh)
	}()
}

// Stop shuts the loop down, waiting up to timeout.
func (a *Aggregator) Stop(timeout time.Duration) {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	a.stopOnce.Do(func() { close(a.stopCh) })

	select {
	case <-a.stoppedCh:
	case <-time.After(timeout):
		logger.Warn("Progress aggregator did not stop in time", "timeout", timeout)
	}
}

func (a *Aggregator) loop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep(ctx)
		}
	}
}

// sweep runs one tick: render chats with running tasks, settle finished
// tasks, then clean up chats that no longer have anything running.
func (a *Aggregator) sweep(ctx context.Context) {
	groups, err := a.store.GroupedByChat(ctx)
	if err != nil {
		logger.Error("Failed to snapshot tasks", "error", err)
		return
	}

	for key, group := range groups {
		if len(group.Current) > 0 {
			a.renderChat(ctx, key, group.Current)
		}
		for i := range group.Completed {
			a.settleCompleted(ctx, &group.Completed[i])
		}
		for i := range group.Failed {
			a.settleFailed(ctx, &group.Failed[i])
		}
	}

	a.cleanup(ctx, groups)
}

// renderChat posts or refreshes the chat's progress message. The message
// is kept at the tail of the chat: an edit suffices while it is still
// the newest message, otherwise the stale one is deleted and a fresh one
// posted.
func (a *Aggregator) renderChat(ctx context.Context, key store.ChatKey, current []store.Task) {
	pending, err := a.store.PendingCount(ctx, key.BotHex)
	if err != nil {
		logger.Warn("Failed to count pending tasks", "error", err)
	}

	body := Render(current, pending)

	a.mu.Lock()
	record := a.chats[key]
	if record == nil {
		record = &chatRecord{}
		a.chats[key] = record
	}
	previousBody := record.lastRendered
	messageID := record.progressMessageID
	a.mu.Unlock()

	if body == previousBody {
		return
	}

	botPeer, err := telegram.DecodePeer(key.BotHex)
	if err != nil {
		logger.Error("Bad bot peer token on task rows", "token", key.BotHex, "error", err)
		return
	}

	newID := messageID
	switch {
	case messageID == 0:
		msg, err := a.bot.Send(ctx, botPeer, body)
		if err != nil {
			logger.Warn("Failed to post progress message", "chat_id", botPeer.ID, "error", err)
			return
		}
		newID = msg.ID

	case a.stillLast(ctx, key, messageID):
		if err := a.bot.Edit(ctx, botPeer, messageID, body); err != nil {
			logger.Warn("Failed to edit progress message", "chat_id", botPeer.ID, "error", err)
			return
		}

	default:
		if err := a.bot.Delete(ctx, botPeer, messageID); err != nil {
			logger.Warn("Failed to delete stale progress message", "chat_id", botPeer.ID, "error", err)
		}
		msg, err := a.bot.Send(ctx, botPeer, body)
		if err != nil {
			logger.Warn("Failed to repost progress message", "chat_id", botPeer.ID, "error", err)
			return
		}
		newID = msg.ID
	}

	a.mu.Lock()
	record.progressMessageID = newID
	record.lastRendered = body
	a.mu.Unlock()
}

// stillLast reports whether the progress message is still the newest
// message in the chat. Read failures count as still-last so a transient
// error degrades to an edit instead of a delete-and-repost churn.
func (a *Aggregator) stillLast(ctx context.Context, key store.ChatKey, messageID int) bool {
	userPeer, err := telegram.DecodePeer(key.UserHex)
	if err != nil {
		return true
	}

	lastID, err := a.reader.LastMessageID(ctx, userPeer)
	if err != nil {
		logger.Warn("Failed to read newest message id", "chat_id", userPeer.ID, "error", err)
		return true
	}

	return lastID == messageID
}

// settleCompleted finishes a completed task: delete the trigger under
// auto-delete, otherwise append the Done epilogue to it, then drop the
// row.
func (a *Aggregator) settleCompleted(ctx context.Context, task *store.Task) {
	userPeer, err := telegram.DecodePeer(task.ChatUserHex)
	if err != nil {
		logger.Error("Bad user peer token on task row", "task_id", task.ID, "error", err)
	} else if task.AutoDelete {
		if err := a.user.Delete(ctx, userPeer, task.MessageID); err != nil {
			logger.Warn("Failed to delete trigger message", "task_id", task.ID, "error", err)
		}
		a.deleteIndicator(ctx, task)
	} else {
		a.appendToTrigger(ctx, userPeer, task, DoneEpilogue(task))
	}

	if err := a.store.DeleteTask(ctx, task.ID); err != nil {
		logger.Warn("Failed to delete settled task row", "task_id", task.ID, "error", err)
	}
}

// deleteIndicator removes the bot's indicator reply, if the task has
// one. Indicators are bot messages, so the deletion is paced on the bot
// identity.
func (a *Aggregator) deleteIndicator(ctx context.Context, task *store.Task) {
	if task.MessageIndicatorID <= 0 {
		return
	}

	botPeer, err := telegram.DecodePeer(task.ChatBotHex)
	if err != nil {
		logger.Error("Bad bot peer token on task row", "task_id", task.ID, "error", err)
		return
	}

	if err := a.bot.Delete(ctx, botPeer, task.MessageIndicatorID); err != nil {
		logger.Warn("Failed to delete indicator message", "task_id", task.ID, "error", err)
	}
}

// settleFailed appends the Failed epilogue to the trigger and drops the
// row. Failures are annotated even under auto-delete; silently deleting
// a task the user is waiting on would look like data loss.
func (a *Aggregator) settleFailed(ctx context.Context, task *store.Task) {
	userPeer, err := telegram.DecodePeer(task.ChatUserHex)
	if err != nil {
		logger.Error("Bad user peer token on task row", "task_id", task.ID, "error", err)
	} else {
		a.appendToTrigger(ctx, userPeer, task, failedEpilogue)
	}

	if err := a.store.DeleteTask(ctx, task.ID); err != nil {
		logger.Warn("Failed to delete settled task row", "task_id", task.ID, "error", err)
	}
}

// appendToTrigger edits the trigger message to carry its current text
// plus the epilogue. The edit goes through the user pacer because the
// trigger belongs to the operator's account, not the bot.
func (a *Aggregator) appendToTrigger(ctx context.Context, userPeer telegram.Peer, task *store.Task, epilogue string) {
	text := ""
	if msg, err := a.reader.GetMessage(ctx, userPeer, task.MessageID); err != nil {
		logger.Warn("Failed to read trigger message", "task_id", task.ID, "error", err)
	} else {
		text = msg.Text
	}

	if err := a.user.Edit(ctx, userPeer, task.MessageID, text+epilogue); err != nil {
		logger.Warn("Failed to annotate trigger message", "task_id", task.ID, "error", err)
	}
}

// cleanup deletes the progress message of every tracked chat that has
// nothing running anymore and forgets the chat.
func (a *Aggregator) cleanup(ctx context.Context, groups map[store.ChatKey]*store.ChatTasks) {
	type stale struct {
		key       store.ChatKey
		messageID int
	}

	a.mu.Lock()
	var finished []stale
	for key, record := range a.chats {
		group := groups[key]
		if group == nil || len(group.Current) == 0 {
			finished = append(finished, stale{key: key, messageID: record.progressMessageID})
			delete(a.chats, key)
		}
	}
	a.mu.Unlock()

	for _, entry := range finished {
		if entry.messageID == 0 {
			continue
		}
		botPeer, err := telegram.DecodePeer(entry.key.BotHex)
		if err != nil {
			continue
		}
		if err := a.bot.Delete(ctx, botPeer, entry.messageID); err != nil {
			logger.Warn("Failed to delete finished progress message", "chat_id", botPeer.ID, "error", err)
		}
	}
}
