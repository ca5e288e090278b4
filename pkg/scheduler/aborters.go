package scheduler

import (
	"context"
	"sync"
)

// abortKey identifies a live task by its trigger message.
type abortKey struct {
	chatID    int64
	messageID int
}

type aborter struct {
	ctx         context.Context
	cancel      context.CancelFunc
	indicatorID int
}

// Aborters is the in-memory cancellation registry. Every live task owns
// one token, registered at insertion and released when the task settles
// or its row is deleted. Tokens are parented on the background context:
// process shutdown must not fire them, or resumable upload sessions
// would be aborted on every restart.
type Aborters struct {
	mu      sync.Mutex
	entries map[abortKey]*aborter
}

// NewAborters creates an empty registry.
func NewAborters() *Aborters {
	return &Aborters{entries: make(map[abortKey]*aborter)}
}

// Register creates the token for a task and returns it. Registering a
// key again fires the previous token first; a re-sent trigger replaces
// its task.
func (a *Aborters) Register(chatID int64, messageID int) context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := abortKey{chatID: chatID, messageID: messageID}
	if prev, ok := a.entries[key]; ok {
		prev.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.entries[key] = &aborter{ctx: ctx, cancel: cancel}

	return ctx
}

// Context returns the token registered for a task.
func (a *Aborters) Context(chatID int64, messageID int) (context.Context, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.entries[abortKey{chatID: chatID, messageID: messageID}]
	if !ok {
		return nil, false
	}

	return entry.ctx, true
}

// SetIndicator records the bot's indicator reply, so that deleting the
// indicator cancels the task just like deleting the trigger.
func (a *Aborters) SetIndicator(chatID int64, messageID, indicatorID int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if entry, ok := a.entries[abortKey{chatID: chatID, messageID: messageID}]; ok {
		entry.indicatorID = indicatorID
	}
}

// Cancel fires and removes the token of the task whose trigger or
// indicator message is messageID. It reports whether a token fired.
// A zero chatID matches any chat; deletions in private chats arrive
// without a chat id.
func (a *Aborters) Cancel(chatID int64, messageID int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if chatID != 0 {
		key := abortKey{chatID: chatID, messageID: messageID}
		if entry, ok := a.entries[key]; ok {
			entry.cancel()
			delete(a.entries, key)
			return true
		}
	}

	for key, entry := range a.entries {
		if chatID != 0 && key.chatID != chatID {
			continue
		}
		if key.messageID == messageID || (entry.indicatorID != 0 && entry.indicatorID == messageID) {
			entry.cancel()
			delete(a.entries, key)
			return true
		}
	}

	return false
}

// CancelAll fires every token and empties the registry.
func (a *Aborters) CancelAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for key, entry := range a.entries {
		entry.cancel()
		delete(a.entries, key)
	}
}

// Drop releases the token of a settled task. The context is cancelled
// to free it; nothing polls a settled task's token.
func (a *Aborters) Drop(chatID int64, messageID int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := abortKey{chatID: chatID, messageID: messageID}
	if entry, ok := a.entries[key]; ok {
		entry.cancel()
		delete(a.entries, key)
	}
}

// Len reports the number of registered tokens.
func (a *Aborters) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.entries)
}
