package schedule

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/grvsrs/hostbot/pkg/command"
	"github.com/grvsrs/hostbot/pkg/config"
	"github.com/grvsrs/hostbot/pkg/events"
	"github.com/grvsrs/hostbot/pkg/plugin"
	"github.com/grvsrs/hostbot/pkg/scheduler"
)

type fakeMessenger struct {
	mu       sync.Mutex
	channels map[string]bool
	dms      []string
	sent     []string
}

func (f *fakeMessenger) UserMention(userID string) (string, bool) {
	return "@" + userID, true
}

func (f *fakeMessenger) SendDirectMessage(userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dms = append(f.dms, userID+":"+text)
	return nil
}

func (f *fakeMessenger) HasChannel(name string) bool {
	return f.channels[name]
}

func (f *fakeMessenger) SendChannelMessage(name, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, name+":"+text)
	return nil
}

type fakeHost struct {
	proc *command.Processor
	bus  *events.Bus
	cfg  *config.Manager
	msgr *fakeMessenger
}

func (h *fakeHost) Commands() *command.Processor   { return h.proc }
func (h *fakeHost) Bus() *events.Bus               { return h.bus }
func (h *fakeHost) Config() *config.Manager        { return h.cfg }
func (h *fakeHost) Messenger() scheduler.Messenger { return h.msgr }

var _ plugin.Host = (*fakeHost)(nil)

func newTestPlugin(t *testing.T) (*Plugin, *fakeHost) {
	t.Helper()

	cfg := config.NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	t.Cleanup(cfg.Stop)

	bus := events.NewBus()
	proc, err := command.NewProcessor(cfg, bus, nil)
	if err != nil {
		t.Fatal(err)
	}

	h := &fakeHost{
		proc: proc,
		bus:  bus,
		cfg:  cfg,
		msgr: &fakeMessenger{channels: map[string]bool{"general": true}},
	}

	p := New()
	if err := p.Open(h); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.sched.Stop() })
	return p, h
}

func userInvocation(h *fakeHost, word, argText string) *command.Invocation {
	return &command.Invocation{
		Word:    word,
		Args:    strings.Fields(argText),
		ArgText: argText,
		Message: command.MessageData{
			AuthorID:      "u1",
			AuthorName:    "dave",
			AuthorMention: "@dave",
			ChannelName:   "general",
		},
		Proc: h.proc,
	}
}

var scheduleCommandWords = []string{"remindme", "reminders", "schedule", "unschedule", "recurring"}

// TestOpenCloseReopen verifies the commands register on enable, vanish
// on disable, and come back cleanly on a second enable.
func TestOpenCloseReopen(t *testing.T) {
	p, h := newTestPlugin(t)

	for _, word := range scheduleCommandWords {
		if _, ok := h.proc.Lookup(word); !ok {
			t.Fatalf("command %q not registered after open", word)
		}
	}

	p.Close()
	for _, word := range scheduleCommandWords {
		if _, ok := h.proc.Lookup(word); ok {
			t.Fatalf("command %q still registered after close", word)
		}
	}

	if err := p.Open(h); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	for _, word := range scheduleCommandWords {
		if _, ok := h.proc.Lookup(word); !ok {
			t.Fatalf("command %q not registered after reopen", word)
		}
	}
}

// TestRemindmeRefusals exercises every anticipated bad input.
func TestRemindmeRefusals(t *testing.T) {
	p, h := newTestPlugin(t)

	tests := []struct {
		name        string
		argText     string
		wantContain string
	}{
		{"no separator", "water the plants please", "couldn't find a time description"},
		{"unparseable time", "do the thing in bananas", "don't understand the time description"},
		{"under a minute", "take a break in 30 seconds", "too soon"},
		{"past absolute time", "dentist on 01/01/2020 14:30", "already passed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := p.remindme(userInvocation(h, "remindme", tt.argText))
			if !strings.Contains(resp, tt.wantContain) {
				t.Errorf("response %q does not contain %q", resp, tt.wantContain)
			}
		})
	}

	if got := len(p.sched.Events()); got != 0 {
		t.Fatalf("%d events scheduled by refused inputs, want 0", got)
	}
}

// TestRemindmeAndUndo walks the happy path: set a reminder, see it
// listed, undo it, and find nothing left to undo.
func TestRemindmeAndUndo(t *testing.T) {
	p, h := newTestPlugin(t)

	resp := p.remindme(userInvocation(h, "remindme", "take out the bins in 2 hours"))
	if !strings.Contains(resp, "take out the bins") || !strings.Contains(resp, "2 hours") {
		t.Fatalf("unexpected confirmation: %q", resp)
	}

	pending := p.sched.EventsOfKind(scheduler.KindDirectMessage)
	if len(pending) != 1 || pending[0].UserID != "u1" {
		t.Fatalf("pending = %+v, want one reminder for u1", pending)
	}

	listing := p.reminders(userInvocation(h, "reminders", ""))
	if !strings.Contains(listing, "take out the bins") {
		t.Fatalf("listing missing the reminder: %q", listing)
	}

	resp = p.remindme(userInvocation(h, "remindme", "undo"))
	if !strings.Contains(resp, "cancelled") {
		t.Fatalf("undo response = %q", resp)
	}
	if got := len(p.sched.Events()); got != 0 {
		t.Fatalf("%d events still pending after undo", got)
	}

	resp = p.remindme(userInvocation(h, "remindme", "undo"))
	if !strings.Contains(resp, "no reminder to undo") {
		t.Fatalf("second undo response = %q", resp)
	}
}

// TestUndoAfterFired verifies a reminder that already fired cannot be
// resurrected: a stale undo entry reports the firing, and the fired
// hook prunes the bookkeeping outright.
func TestUndoAfterFired(t *testing.T) {
	p, h := newTestPlugin(t)

	// A stale ID whose event is no longer pending.
	p.mu.Lock()
	p.undo["u1"] = "long-gone"
	p.mu.Unlock()

	resp := p.remindme(userInvocation(h, "remindme", "undo"))
	if !strings.Contains(resp, "already fired") {
		t.Fatalf("stale undo response = %q", resp)
	}

	// The fired hook removes the entry before a user can try.
	p.mu.Lock()
	p.undo["u1"] = "fired-id"
	p.mu.Unlock()
	p.pruneUndo(scheduler.Event{ID: "fired-id"})

	resp = p.remindme(userInvocation(h, "remindme", "undo"))
	if !strings.Contains(resp, "no reminder to undo") {
		t.Fatalf("pruned undo response = %q", resp)
	}
}

// TestScheduleAndUnschedule exercises channel scheduling, the numbered
// listing, and both unschedule forms.
func TestScheduleAndUnschedule(t *testing.T) {
	p, h := newTestPlugin(t)

	dm := userInvocation(h, "schedule", "stream starting soon! in 2 hours")
	dm.Message.DM = true
	if resp := p.schedule(dm); !strings.Contains(resp, "only be used in a channel") {
		t.Fatalf("DM schedule response = %q", resp)
	}

	resp := p.schedule(userInvocation(h, "schedule", "stream starting soon! in 2 hours"))
	if !strings.Contains(resp, "2 hours") {
		t.Fatalf("schedule confirmation = %q", resp)
	}
	if resp := p.schedule(userInvocation(h, "schedule", "second message in 3 hours")); !strings.Contains(resp, "3 hours") {
		t.Fatalf("second schedule confirmation = %q", resp)
	}

	listing := p.schedule(userInvocation(h, "schedule", ""))
	if !strings.Contains(listing, "#general") || !strings.Contains(listing, "stream starting soon!") {
		t.Fatalf("listing = %q", listing)
	}

	if resp := p.unschedule(userInvocation(h, "unschedule", "9")); !strings.Contains(resp, "not a valid entry number") {
		t.Fatalf("bad index response = %q", resp)
	}

	if resp := p.unschedule(userInvocation(h, "unschedule", "1")); !strings.Contains(resp, "cancelled") {
		t.Fatalf("unschedule response = %q", resp)
	}
	if got := len(p.sched.Events()); got != 1 {
		t.Fatalf("%d events pending after removing one of two", got)
	}

	if resp := p.unschedule(userInvocation(h, "unschedule", "all")); !strings.Contains(resp, "cancelled 1") {
		t.Fatalf("unschedule all response = %q", resp)
	}
	if resp := p.unschedule(userInvocation(h, "unschedule", "all")); !strings.Contains(resp, "No channel messages are scheduled") {
		t.Fatalf("empty unschedule response = %q", resp)
	}
}

// TestRecurringQuoting verifies the cron expression must be quoted and
// valid.
func TestRecurringQuoting(t *testing.T) {
	p, h := newTestPlugin(t)

	tests := []struct {
		name        string
		argText     string
		wantContain string
	}{
		{"missing quotes", "0 9 * * 1 Good morning!", "must be double-quoted"},
		{"unterminated quote", "\"0 9 * * 1 Good morning!", "Missing closing quote"},
		{"no message", "\"0 9 * * 1\"", "message text is missing"},
		{"bad expression", "\"not a cron\" Good morning!", "valid cron expression"},
		{"accepted", "\"0 9 * * 1\" Good morning!", "OK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := p.recurring(userInvocation(h, "recurring", tt.argText))
			if !strings.Contains(resp, tt.wantContain) {
				t.Errorf("response %q does not contain %q", resp, tt.wantContain)
			}
		})
	}

	if got := len(p.sched.EventsOfKind(scheduler.KindRecurringMessage)); got != 1 {
		t.Fatalf("%d recurring events pending, want 1", got)
	}
}

// TestSchedulerPersistsAcrossClose verifies pending events survive a
// disable/enable cycle without duplication.
func TestSchedulerPersistsAcrossClose(t *testing.T) {
	p, h := newTestPlugin(t)

	p.remindme(userInvocation(h, "remindme", "stretch in 2 hours"))
	if got := len(p.sched.Events()); got != 1 {
		t.Fatalf("%d events pending before close, want 1", got)
	}

	p.Close()
	if err := p.Open(h); err != nil {
		t.Fatal(err)
	}
	if got := len(p.sched.Events()); got != 1 {
		t.Fatalf("%d events pending after reopen, want 1", got)
	}
}

// TestFormatDuration verifies the unit breakdown used in reminder
// confirmations.
func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name    string
		seconds int64
		want    string
	}{
		{"zero", 0, "0 seconds"},
		{"negative clamps", -5, "0 seconds"},
		{"seconds only", 45, "45 seconds"},
		{"singular units", 3661, "1 hour 1 minute 1 second"},
		{"hours and minutes", 9000, "2 hours 30 minutes"},
		{"weeks and days", 8*86400 + 3600, "1 week 1 day 1 hour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatDuration(tt.seconds); got != tt.want {
				t.Errorf("formatDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
			}
		})
	}
}
