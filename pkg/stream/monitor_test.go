package stream

import (
	"context"
	"testing"
	"time"

	"github.com/grvsrs/hostbot/pkg/events"
)

type fakeProvider struct {
	live       map[string]bool
	reconnects int
}

func (f *fakeProvider) StreamStatuses(ctx context.Context, usernames []string) (map[string]Status, error) {
	out := make(map[string]Status, len(usernames))
	for _, name := range usernames {
		out[name] = Status{
			Username: name,
			Live:     f.live[name],
			URL:      WatchURL(name),
		}
	}
	return out, nil
}

func (f *fakeProvider) Reconnect() { f.reconnects++ }

type eventRecorder struct {
	started     []string
	ended       []string
	hostStarted []string
	hostEnded   []string
}

func (r *eventRecorder) onStarted(args ...interface{}) events.Result {
	r.started = append(r.started, args[0].(Status).Username)
	return events.Continue
}

func (r *eventRecorder) onEnded(args ...interface{}) events.Result {
	r.ended = append(r.ended, args[0].(Status).Username)
	return events.Continue
}

func (r *eventRecorder) onHostStarted(args ...interface{}) events.Result {
	r.hostStarted = append(r.hostStarted, args[0].(Status).Username)
	return events.Continue
}

func (r *eventRecorder) onHostEnded(args ...interface{}) events.Result {
	r.hostEnded = append(r.hostEnded, args[0].(Status).Username)
	return events.Continue
}

func newRecordedMonitor(t *testing.T, provider Provider, usernames []string, host string) (*Monitor, *eventRecorder) {
	t.Helper()
	bus := events.NewBus()
	rec := &eventRecorder{}
	bus.Subscribe(events.StreamStarted, rec.onStarted, false)
	bus.Subscribe(events.StreamEnded, rec.onEnded, false)
	bus.Subscribe(events.HostStreamStarted, rec.onHostStarted, false)
	bus.Subscribe(events.HostStreamEnded, rec.onHostEnded, false)
	return NewMonitor(provider, bus, usernames, host, time.Minute), rec
}

// TestLiveTransitions verifies events fire only on state changes, not
// on every poll.
func TestLiveTransitions(t *testing.T) {
	provider := &fakeProvider{live: map[string]bool{}}
	m, rec := newRecordedMonitor(t, provider, []string{"alice"}, "")

	ctx := context.Background()

	// First poll, offline: baseline, no events.
	m.poll(ctx)
	if len(rec.started)+len(rec.ended) != 0 {
		t.Fatalf("events on baseline poll: %+v", rec)
	}

	// Goes live.
	provider.live["alice"] = true
	m.poll(ctx)
	if len(rec.started) != 1 || rec.started[0] != "alice" {
		t.Fatalf("started = %v, want [alice]", rec.started)
	}

	// Still live: no repeat event.
	m.poll(ctx)
	if len(rec.started) != 1 {
		t.Fatalf("repeat poll produced another event: %v", rec.started)
	}

	// Goes offline.
	provider.live["alice"] = false
	m.poll(ctx)
	if len(rec.ended) != 1 || rec.ended[0] != "alice" {
		t.Fatalf("ended = %v, want [alice]", rec.ended)
	}
}

// TestHostStreamerEvents verifies the host gets both the generic and
// the host-specific event pair.
func TestHostStreamerEvents(t *testing.T) {
	provider := &fakeProvider{live: map[string]bool{}}
	m, rec := newRecordedMonitor(t, provider, nil, "thehost")

	ctx := context.Background()
	m.poll(ctx)

	provider.live["thehost"] = true
	m.poll(ctx)

	if len(rec.started) != 1 || len(rec.hostStarted) != 1 {
		t.Fatalf("started=%v hostStarted=%v, want one each", rec.started, rec.hostStarted)
	}
	if !m.HostIsLive() {
		t.Fatal("host not reported live")
	}

	provider.live["thehost"] = false
	m.poll(ctx)
	if len(rec.hostEnded) != 1 {
		t.Fatalf("hostEnded = %v, want [thehost]", rec.hostEnded)
	}
	if m.HostIsLive() {
		t.Fatal("host still reported live")
	}
}

// TestUsernameSet verifies the add/remove/clear operations normalize
// names.
func TestUsernameSet(t *testing.T) {
	provider := &fakeProvider{}
	m, _ := newRecordedMonitor(t, provider, []string{"Alice", "bob"}, "")

	if !m.UsernameAdded("ALICE") {
		t.Error("lookup is not case-insensitive")
	}

	m.AddUsernames([]string{"Carol", "", "  "})
	got := m.Usernames()
	want := []string{"alice", "bob", "carol"}
	if len(got) != len(want) {
		t.Fatalf("usernames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("usernames[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	m.RemoveUsernames([]string{"bob"})
	if m.UsernameAdded("bob") {
		t.Error("bob survived removal")
	}

	m.ClearUsernames()
	if len(m.Usernames()) != 0 {
		t.Error("clear left names behind")
	}
}

// TestReconnectForwards verifies Reconnect reaches the provider.
func TestReconnectForwards(t *testing.T) {
	provider := &fakeProvider{}
	m, _ := newRecordedMonitor(t, provider, nil, "")

	m.Reconnect()
	if provider.reconnects != 1 {
		t.Fatalf("reconnects = %d, want 1", provider.reconnects)
	}
}
