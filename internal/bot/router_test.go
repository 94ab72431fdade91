package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"remibot/internal/recurrence"
	"remibot/internal/reminder"
	kit "remibot/internal/transport"
	logx "remibot/pkg/logx"
	"remibot/pkg/tgui"
)

type sentText struct {
	chatID    int64
	text      string
	hasMarkup bool
}

type fakeAdapter struct {
	mu      sync.Mutex
	sent    []sentText
	edits   []string
	answers []string
	alerts  []string
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentText{
		chatID:    to.ChatID,
		text:      text,
		hasMarkup: opt != nil && opt.ReplyMarkup != nil,
	})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeAdapter) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	if alert {
		f.alerts = append(f.alerts, text)
	}
	return nil
}

func (f *fakeAdapter) lastSent(t *testing.T) sentText {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("nothing was sent")
	}
	return f.sent[len(f.sent)-1]
}

type fakeReminders struct {
	mu       sync.Mutex
	created  []reminder.CreateRequest
	deleted  []string
	edited   map[string]string
	listing  []reminder.Summary
	deleteFn func(id string) error
}

func newFakeReminders() *fakeReminders {
	return &fakeReminders{edited: map[string]string{}}
}

func (f *fakeReminders) Create(ctx context.Context, req reminder.CreateRequest) (reminder.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	runAt, err := recurrence.NextFire(req.Spec, now)
	if err != nil {
		return reminder.Summary{}, &reminder.ValidationError{Reason: err.Error()}
	}
	f.created = append(f.created, req)
	return reminder.Summary{ID: "id-1", Text: req.Text, Spec: req.Spec, RunAt: runAt}, nil
}

func (f *fakeReminders) List(ctx context.Context, owner int64) ([]reminder.Summary, error) {
	return f.listing, nil
}

func (f *fakeReminders) Delete(ctx context.Context, owner int64, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	if f.deleteFn != nil {
		return f.deleteFn(id)
	}
	return nil
}

func (f *fakeReminders) EditText(ctx context.Context, owner int64, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited[id] = text
	return nil
}

func newTestRouter(t *testing.T) (*Router, *fakeAdapter, *fakeReminders) {
	t.Helper()
	adapter := &fakeAdapter{}
	rem := newFakeReminders()
	return NewRouter(adapter, rem, time.UTC, logx.Nop()), adapter, rem
}

func msg(chatID int64, text string) *kit.Message {
	return &kit.Message{ChatID: chatID, FromID: chatID, Text: text}
}

func cb(chatID int64, data string) *kit.Callback {
	return &kit.Callback{ID: "cb", ChatID: chatID, FromID: chatID, MessageID: 1, Data: data}
}

func TestAddFlowDaily(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, adapter, rem := newTestRouter(t)

	r.handleMessage(ctx, msg(1, "/add"))
	r.handleMessage(ctx, msg(1, "water the plants"))
	if got := adapter.lastSent(t); !got.hasMarkup || !strings.Contains(got.text, "How often") {
		t.Fatalf("after text, got %+v", got)
	}

	r.handleCallback(ctx, cb(1, tgui.Data("repeat", "daily", "")))
	if got := adapter.lastSent(t); !strings.Contains(got.text, "What time") {
		t.Fatalf("after repeat pick, got %+v", got)
	}

	r.handleCallback(ctx, cb(1, tgui.Data("time", "pick", "09:00")))

	if len(rem.created) != 1 {
		t.Fatalf("created = %+v, want one request", rem.created)
	}
	req := rem.created[0]
	if req.Text != "water the plants" || req.Spec.Kind != recurrence.Daily ||
		req.Spec.Hour != 9 || req.Spec.Minute != 0 {
		t.Fatalf("created request = %+v", req)
	}
	if got := adapter.lastSent(t); !strings.Contains(got.text, "Saved") {
		t.Fatalf("confirmation = %+v", got)
	}
	if r.session(1).step != stepIdle {
		t.Fatalf("session not reset after create")
	}
}

func TestAddFlowOnceManualDate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, adapter, rem := newTestRouter(t)

	r.handleMessage(ctx, msg(2, "/add"))
	r.handleMessage(ctx, msg(2, "dentist"))
	r.handleCallback(ctx, cb(2, tgui.Data("repeat", "once", "")))
	if got := adapter.lastSent(t); !strings.Contains(got.text, "DD.MM.YYYY") {
		t.Fatalf("date prompt = %+v", got)
	}

	r.handleMessage(ctx, msg(2, "not a date"))
	if got := adapter.lastSent(t); !strings.Contains(got.text, "Try again") {
		t.Fatalf("reject reply = %+v", got)
	}
	if len(rem.created) != 0 {
		t.Fatalf("created from garbage input: %+v", rem.created)
	}

	future := time.Now().UTC().Add(48 * time.Hour).Format(recurrence.DateTimeLayout)
	r.handleMessage(ctx, msg(2, future))
	if len(rem.created) != 1 || rem.created[0].Spec.Kind != recurrence.Once {
		t.Fatalf("created = %+v", rem.created)
	}
}

func TestAddFlowWeeklyManualTime(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _, rem := newTestRouter(t)

	r.handleMessage(ctx, msg(3, "/add"))
	r.handleMessage(ctx, msg(3, "standup"))
	r.handleCallback(ctx, cb(3, tgui.Data("repeat", "weekly", "")))
	r.handleCallback(ctx, cb(3, tgui.Data("wd", "3", ""))) // Wednesday
	r.handleCallback(ctx, cb(3, tgui.Data("time", "manual", "")))
	r.handleMessage(ctx, msg(3, "08:45"))

	if len(rem.created) != 1 {
		t.Fatalf("created = %+v", rem.created)
	}
	spec := rem.created[0].Spec
	if spec.Kind != recurrence.Weekly || spec.Weekday != time.Wednesday ||
		spec.Hour != 8 || spec.Minute != 45 {
		t.Fatalf("spec = %+v", spec)
	}
}

func TestAddFlowMonthlyLastDay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _, rem := newTestRouter(t)

	r.handleMessage(ctx, msg(4, "/add"))
	r.handleMessage(ctx, msg(4, "pay rent"))
	r.handleCallback(ctx, cb(4, tgui.Data("repeat", "monthly", "")))
	r.handleCallback(ctx, cb(4, tgui.Data("md", "last", "")))
	r.handleCallback(ctx, cb(4, tgui.Data("time", "pick", "19:00")))

	if len(rem.created) != 1 {
		t.Fatalf("created = %+v", rem.created)
	}
	spec := rem.created[0].Spec
	if spec.Kind != recurrence.Monthly || !spec.LastDay || spec.Hour != 19 {
		t.Fatalf("spec = %+v", spec)
	}
}

func TestCancelResetsFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, adapter, rem := newTestRouter(t)

	r.handleMessage(ctx, msg(5, "/add"))
	r.handleMessage(ctx, msg(5, "/cancel"))
	if got := adapter.lastSent(t); !strings.Contains(got.text, "cancelled") {
		t.Fatalf("cancel reply = %+v", got)
	}
	r.handleMessage(ctx, msg(5, "stray text"))
	if len(rem.created) != 0 {
		t.Fatalf("stray text created a reminder: %+v", rem.created)
	}
}

func TestListWithButtons(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, adapter, rem := newTestRouter(t)

	rem.listing = []reminder.Summary{
		{ID: "a", Text: "one", Spec: recurrence.Spec{Kind: recurrence.Daily, Hour: 9}},
		{ID: "b", Text: "two", Spec: recurrence.Spec{Kind: recurrence.Monthly, LastDay: true, Hour: 19}},
	}
	r.handleMessage(ctx, msg(6, "/list"))

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if len(adapter.sent) != 2 {
		t.Fatalf("sent %d messages, want one per reminder", len(adapter.sent))
	}
	for _, s := range adapter.sent {
		if !s.hasMarkup {
			t.Errorf("listing message without buttons: %+v", s)
		}
	}
	if !strings.Contains(adapter.sent[1].text, "last day") {
		t.Errorf("listing text = %q", adapter.sent[1].text)
	}
}

func TestDeleteAlreadyRemoved(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, adapter, rem := newTestRouter(t)
	rem.deleteFn = func(id string) error { return reminder.ErrNotFound }

	r.handleCallback(ctx, cb(7, tgui.Data("rem", "del", "gone-id")))

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if len(adapter.alerts) != 1 || !strings.Contains(adapter.alerts[0], "Already removed") {
		t.Fatalf("alerts = %v", adapter.alerts)
	}
	if len(adapter.edits) != 0 {
		t.Fatalf("listing message edited despite missing reminder: %v", adapter.edits)
	}
}

func TestDeleteUpdatesListing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, adapter, rem := newTestRouter(t)

	r.handleCallback(ctx, cb(8, tgui.Data("rem", "del", "live-id")))

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if len(rem.deleted) != 1 || rem.deleted[0] != "live-id" {
		t.Fatalf("deleted = %v", rem.deleted)
	}
	if len(adapter.edits) != 1 || !strings.Contains(adapter.edits[0], "Deleted") {
		t.Fatalf("edits = %v", adapter.edits)
	}
}

func TestEditFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, adapter, rem := newTestRouter(t)

	r.handleCallback(ctx, cb(9, tgui.Data("rem", "edit", "id-9")))
	if got := adapter.lastSent(t); !strings.Contains(got.text, "new text") {
		t.Fatalf("edit prompt = %+v", got)
	}

	r.handleMessage(ctx, msg(9, "updated wording"))
	if rem.edited["id-9"] != "updated wording" {
		t.Fatalf("edited = %v", rem.edited)
	}
	if got := adapter.lastSent(t); !strings.Contains(got.text, "Updated") {
		t.Fatalf("edit confirmation = %+v", got)
	}
}

func TestPastDateKeepsFlowOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, adapter, rem := newTestRouter(t)

	r.handleMessage(ctx, msg(10, "/add"))
	r.handleMessage(ctx, msg(10, "time travel"))
	r.handleCallback(ctx, cb(10, tgui.Data("repeat", "once", "")))

	past := time.Now().UTC().Add(-48 * time.Hour).Format(recurrence.DateTimeLayout)
	r.handleMessage(ctx, msg(10, past))
	if len(rem.created) != 0 {
		t.Fatalf("past reminder created: %+v", rem.created)
	}
	if got := adapter.lastSent(t); !strings.Contains(got.text, "Try again") {
		t.Fatalf("past date reply = %+v", got)
	}

	future := time.Now().UTC().Add(48 * time.Hour).Format(recurrence.DateTimeLayout)
	r.handleMessage(ctx, msg(10, future))
	if len(rem.created) != 1 {
		t.Fatalf("flow did not stay open after a past date: %+v", rem.created)
	}
}
