package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/telebridge/pkg/store"
	"github.com/marmos91/telebridge/pkg/telegram"
)

var (
	testBotPeer  = telegram.Peer{Kind: telegram.PeerChannel, ID: 100, AccessHash: 11}
	testUserPeer = telegram.Peer{Kind: telegram.PeerChannel, ID: 100, AccessHash: 22}
)

type senderCall struct {
	op   string
	peer telegram.Peer
	id   int
	ids  []int
	text string
}

// fakeSender records outbound calls and hands out sequential message ids.
type fakeSender struct {
	mu     sync.Mutex
	calls  []senderCall
	nextID int
}

func (f *fakeSender) Send(_ context.Context, peer telegram.Peer, text string) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.calls = append(f.calls, senderCall{op: "send", peer: peer, id: f.nextID, text: text})
	return &telegram.Message{ID: f.nextID, Peer: peer, Text: text}, nil
}

func (f *fakeSender) Reply(_ context.Context, peer telegram.Peer, _ int, text string) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.calls = append(f.calls, senderCall{op: "reply", peer: peer, id: f.nextID, text: text})
	return &telegram.Message{ID: f.nextID, Peer: peer, Text: text}, nil
}

func (f *fakeSender) Edit(_ context.Context, peer telegram.Peer, id int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, senderCall{op: "edit", peer: peer, id: id, text: text})
	return nil
}

func (f *fakeSender) Delete(_ context.Context, peer telegram.Peer, ids ...int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, senderCall{op: "delete", peer: peer, ids: ids})
	return nil
}

func (f *fakeSender) history() []senderCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]senderCall(nil), f.calls...)
}

// fakeReader serves trigger text and the chat's newest message id.
type fakeReader struct {
	lastID int
	texts  map[int]string
}

func (f *fakeReader) GetMessage(_ context.Context, peer telegram.Peer, id int) (*telegram.Message, error) {
	return &telegram.Message{ID: id, Peer: peer, Text: f.texts[id]}, nil
}

func (f *fakeReader) LastMessageID(_ context.Context, _ telegram.Peer) (int, error) {
	return f.lastID, nil
}

func newTestAggregator(t *testing.T) (*Aggregator, *store.Store, *fakeSender, *fakeSender, *fakeReader) {
	t.Helper()

	st, err := store.New(&store.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	bot := &fakeSender{nextID: 1000}
	user := &fakeSender{nextID: 2000}
	reader := &fakeReader{texts: map[int]string{}}

	return New(st, bot, user, reader, Config{}), st, bot, user, reader
}

func insertTask(t *testing.T, st *store.Store, task *store.Task, status store.Status) uint {
	t.Helper()
	ctx := context.Background()

	if task.Type == "" {
		task.Type = store.TaskTypeURL
		task.URL = "https://example.com/src.bin"
	}
	if task.Filename == "" {
		task.Filename = "f1"
	}
	if task.RootPath == "" {
		task.RootPath = "/Videos"
	}
	if task.UploadURL == "" {
		task.UploadURL = "https://upload.example/session/1"
	}
	task.ChatBotHex = testBotPeer.Hex()
	task.ChatUserHex = testUserPeer.Hex()

	id, err := st.InsertTask(ctx, task)
	if err != nil {
		t.Fatalf("InsertTask() error = %v", err)
	}
	if status != store.StatusWaiting {
		if err := st.SetStatus(ctx, id, status); err != nil {
			t.Fatalf("SetStatus(%s) error = %v", status, err)
		}
	}
	return id
}

func TestSweepPostsProgressMessage(t *testing.T) {
	agg, st, bot, user, _ := newTestAggregator(t)
	ctx := context.Background()

	insertTask(t, st, &store.Task{
		ChatID: 100, MessageID: 5,
		CurrentLength: 1 * mib, TotalLength: 2 * mib,
	}, store.StatusStarted)

	agg.sweep(ctx)

	calls := bot.history()
	if len(calls) != 1 || calls[0].op != "send" {
		t.Fatalf("bot calls = %+v, want one send", calls)
	}
	want := "Progress:\n\n<a href=\"https://t.me/c/100/5\">f1</a>: 1.00/2.00MB"
	if calls[0].text != want {
		t.Fatalf("progress body = %q, want %q", calls[0].text, want)
	}
	if calls[0].peer != testBotPeer {
		t.Errorf("progress peer = %+v, want %+v", calls[0].peer, testBotPeer)
	}
	if got := user.history(); len(got) != 0 {
		t.Errorf("user calls = %+v, want none", got)
	}

	// An unchanged body leaves the message alone.
	agg.sweep(ctx)
	if calls := bot.history(); len(calls) != 1 {
		t.Fatalf("bot calls after no-op sweep = %+v, want one", calls)
	}
}

func TestSweepCountsPendingTasks(t *testing.T) {
	agg, st, bot, _, _ := newTestAggregator(t)
	ctx := context.Background()

	insertTask(t, st, &store.Task{
		ChatID: 100, MessageID: 5, TotalLength: 2 * mib,
	}, store.StatusStarted)
	insertTask(t, st, &store.Task{
		ChatID: 100, MessageID: 6, Filename: "f2", TotalLength: 1 * mib,
	}, store.StatusWaiting)

	agg.sweep(ctx)

	calls := bot.history()
	if len(calls) != 1 {
		t.Fatalf("bot calls = %+v, want one send", calls)
	}
	want := "Progress:\n\n<a href=\"https://t.me/c/100/5\">f1</a>: 0.00/2.00MB\n\n1 more tasks pending..."
	if calls[0].text != want {
		t.Fatalf("progress body = %q, want %q", calls[0].text, want)
	}
}

func TestSweepEditsWhileStillLast(t *testing.T) {
	agg, st, bot, _, reader := newTestAggregator(t)
	ctx := context.Background()

	id := insertTask(t, st, &store.Task{
		ChatID: 100, MessageID: 5, TotalLength: 2 * mib,
	}, store.StatusStarted)

	agg.sweep(ctx)

	posted := bot.history()[0].id
	reader.lastID = posted

	if err := st.SetCurrentLength(ctx, id, 1*mib); err != nil {
		t.Fatalf("SetCurrentLength() error = %v", err)
	}

	agg.sweep(ctx)

	calls := bot.history()
	if len(calls) != 2 {
		t.Fatalf("bot calls = %+v, want send then edit", calls)
	}
	if calls[1].op != "edit" || calls[1].id != posted {
		t.Fatalf("second call = %+v, want edit of message %d", calls[1], posted)
	}
	want := "Progress:\n\n<a href=\"https://t.me/c/100/5\">f1</a>: 1.00/2.00MB"
	if calls[1].text != want {
		t.Fatalf("edited body = %q, want %q", calls[1].text, want)
	}
}

func TestSweepRepostsWhenNoLongerLast(t *testing.T) {
	agg, st, bot, _, reader := newTestAggregator(t)
	ctx := context.Background()

	id := insertTask(t, st, &store.Task{
		ChatID: 100, MessageID: 5, TotalLength: 2 * mib,
	}, store.StatusStarted)

	agg.sweep(ctx)

	posted := bot.history()[0].id
	// Someone wrote in the chat since the progress message went out.
	reader.lastID = posted + 40

	if err := st.SetCurrentLength(ctx, id, 1*mib); err != nil {
		t.Fatalf("SetCurrentLength() error = %v", err)
	}

	agg.sweep(ctx)

	calls := bot.history()
	if len(calls) != 3 {
		t.Fatalf("bot calls = %+v, want send, delete, send", calls)
	}
	if calls[1].op != "delete" || len(calls[1].ids) != 1 || calls[1].ids[0] != posted {
		t.Fatalf("second call = %+v, want delete of message %d", calls[1], posted)
	}
	if calls[2].op != "send" {
		t.Fatalf("third call = %+v, want send", calls[2])
	}

	// The fresh message is now the tracked one.
	reader.lastID = calls[2].id
	if err := st.SetCurrentLength(ctx, id, 2*mib); err != nil {
		t.Fatalf("SetCurrentLength() error = %v", err)
	}
	agg.sweep(ctx)

	calls = bot.history()
	if last := calls[len(calls)-1]; last.op != "edit" || last.id != calls[2].id {
		t.Fatalf("call after repost = %+v, want edit of message %d", last, calls[2].id)
	}
}

func TestSweepSettlesCompletedTask(t *testing.T) {
	agg, st, bot, user, reader := newTestAggregator(t)
	ctx := context.Background()

	id := insertTask(t, st, &store.Task{
		ChatID: 100, MessageID: 5,
		Filename: "movie.mp4", CurrentLength: 3 * mib, TotalLength: 3 * mib,
	}, store.StatusCompleted)
	reader.texts[5] = "https://example.com/src.bin"

	agg.sweep(ctx)

	calls := user.history()
	if len(calls) != 1 || calls[0].op != "edit" || calls[0].id != 5 {
		t.Fatalf("user calls = %+v, want one edit of the trigger", calls)
	}
	want := "https://example.com/src.bin\n\nDone.\nFile uploaded to /Videos/movie.mp4\nSize 3.00MB."
	if calls[0].text != want {
		t.Fatalf("trigger text = %q, want %q", calls[0].text, want)
	}
	if calls[0].peer != testUserPeer {
		t.Errorf("trigger edit peer = %+v, want %+v", calls[0].peer, testUserPeer)
	}
	if got := bot.history(); len(got) != 0 {
		t.Errorf("bot calls = %+v, want none", got)
	}

	if _, err := st.GetTask(ctx, id); !errors.Is(err, store.ErrTaskNotFound) {
		t.Fatalf("GetTask() error = %v, want ErrTaskNotFound", err)
	}
}

func TestSweepSettlesCompletedAutoDelete(t *testing.T) {
	agg, st, bot, user, _ := newTestAggregator(t)
	ctx := context.Background()

	id := insertTask(t, st, &store.Task{
		ChatID: 100, MessageID: 5, MessageIndicatorID: 9,
		TotalLength: 3 * mib, AutoDelete: true,
	}, store.StatusCompleted)

	agg.sweep(ctx)

	userCalls := user.history()
	if len(userCalls) != 1 || userCalls[0].op != "delete" || userCalls[0].ids[0] != 5 {
		t.Fatalf("user calls = %+v, want delete of the trigger", userCalls)
	}
	botCalls := bot.history()
	if len(botCalls) != 1 || botCalls[0].op != "delete" || botCalls[0].ids[0] != 9 {
		t.Fatalf("bot calls = %+v, want delete of the indicator", botCalls)
	}

	if _, err := st.GetTask(ctx, id); !errors.Is(err, store.ErrTaskNotFound) {
		t.Fatalf("GetTask() error = %v, want ErrTaskNotFound", err)
	}
}

func TestSweepSettlesFailedTask(t *testing.T) {
	agg, st, _, user, reader := newTestAggregator(t)
	ctx := context.Background()

	id := insertTask(t, st, &store.Task{
		ChatID: 100, MessageID: 5, TotalLength: 3 * mib,
	}, store.StatusFailed)
	reader.texts[5] = "https://example.com/src.bin"

	agg.sweep(ctx)

	calls := user.history()
	if len(calls) != 1 || calls[0].op != "edit" || calls[0].id != 5 {
		t.Fatalf("user calls = %+v, want one edit of the trigger", calls)
	}
	want := "https://example.com/src.bin\n\nFailed."
	if calls[0].text != want {
		t.Fatalf("trigger text = %q, want %q", calls[0].text, want)
	}

	if _, err := st.GetTask(ctx, id); !errors.Is(err, store.ErrTaskNotFound) {
		t.Fatalf("GetTask() error = %v, want ErrTaskNotFound", err)
	}
}

func TestSweepCleansUpFinishedChat(t *testing.T) {
	agg, st, bot, _, reader := newTestAggregator(t)
	ctx := context.Background()

	id := insertTask(t, st, &store.Task{
		ChatID: 100, MessageID: 5, TotalLength: 2 * mib, AutoDelete: true,
	}, store.StatusStarted)

	agg.sweep(ctx)

	posted := bot.history()[0].id
	reader.lastID = posted

	if err := st.SetStatus(ctx, id, store.StatusCompleted); err != nil {
		t.Fatalf("SetStatus(completed) error = %v", err)
	}

	agg.sweep(ctx)

	var deletedProgress bool
	for _, call := range bot.history() {
		if call.op == "delete" && len(call.ids) == 1 && call.ids[0] == posted {
			deletedProgress = true
		}
	}
	if !deletedProgress {
		t.Fatalf("bot calls = %+v, want delete of progress message %d", bot.history(), posted)
	}

	agg.mu.Lock()
	tracked := len(agg.chats)
	agg.mu.Unlock()
	if tracked != 0 {
		t.Fatalf("tracked chats = %d, want 0", tracked)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	agg, _, _, _, _ := newTestAggregator(t)

	agg.Start(context.Background())
	agg.Stop(time.Second)

	// A repeated Stop is a no-op.
	agg.Stop(time.Second)
}
