package bot

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grvsrs/hostbot/pkg/config"
	"github.com/grvsrs/hostbot/pkg/events"
	"github.com/grvsrs/hostbot/pkg/stream"
	"github.com/grvsrs/hostbot/pkg/transport"
)

type fakeTransport struct {
	name     string
	channels map[string]string // name -> ID
	users    map[string]transport.User
	handler  transport.InboundHandler

	sent []string
	dms  []string
}

func newFakeTransport(name string) *fakeTransport {
	return &fakeTransport{
		name:     name,
		channels: make(map[string]string),
		users:    make(map[string]transport.User),
	}
}

func (f *fakeTransport) Name() string                                 { return f.name }
func (f *fakeTransport) Start(ctx context.Context) error              { return nil }
func (f *fakeTransport) Stop()                                        {}
func (f *fakeTransport) SetInboundHandler(h transport.InboundHandler) { f.handler = h }

func (f *fakeTransport) SendMessage(channelID, text string) error {
	f.sent = append(f.sent, channelID+":"+text)
	return nil
}

func (f *fakeTransport) SendDirectMessage(userID, text string) error {
	f.dms = append(f.dms, userID+":"+text)
	return nil
}

func (f *fakeTransport) ChannelByName(name string) (transport.Channel, bool) {
	id, ok := f.channels[name]
	if !ok {
		return transport.Channel{}, false
	}
	return transport.Channel{ID: id, Name: name}, true
}

func (f *fakeTransport) UserByID(id string) (transport.User, bool) {
	u, ok := f.users[id]
	return u, ok
}

func newTestBot(t *testing.T) (*Bot, *config.Manager) {
	t.Helper()
	cfg := config.NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	t.Cleanup(cfg.Stop)

	b, err := New(cfg, events.NewBus())
	if err != nil {
		t.Fatal(err)
	}
	return b, cfg
}

// TestInboundCommandDispatch verifies a prefixed message runs a builtin
// command and the response comes back to the transport.
func TestInboundCommandDispatch(t *testing.T) {
	b, _ := newTestBot(t)
	ft := newFakeTransport("fake")
	b.AddTransport(ft)

	resp := ft.handler(transport.InboundMessage{
		Transport:   "fake",
		ChannelID:   "c1",
		ChannelName: "general",
		Author:      transport.User{ID: "u1", Name: "dave", Mention: "@dave"},
		Text:        "!help",
	})

	if !strings.Contains(resp, "Available commands:") {
		t.Fatalf("help response missing listing: %q", resp)
	}
	if strings.Contains(resp, "plugson") {
		t.Error("non-admin help lists an admin command")
	}
}

// TestInboundMentionNudge verifies a non-command mention gets the help
// hint while plain chatter gets nothing.
func TestInboundMentionNudge(t *testing.T) {
	b, _ := newTestBot(t)
	ft := newFakeTransport("fake")
	b.AddTransport(ft)

	msg := transport.InboundMessage{
		Author: transport.User{ID: "u1", Name: "dave", Mention: "@dave"},
		Text:   "hello there",
	}

	if resp := ft.handler(msg); resp != "" {
		t.Errorf("plain chatter answered: %q", resp)
	}

	msg.Mention = true
	resp := ft.handler(msg)
	if !strings.Contains(resp, "!help") {
		t.Errorf("mention nudge missing help hint: %q", resp)
	}
}

// TestMessengerRouting verifies channel and DM delivery pick the first
// transport that knows the target.
func TestMessengerRouting(t *testing.T) {
	b, _ := newTestBot(t)

	ft1 := newFakeTransport("one")
	ft2 := newFakeTransport("two")
	ft2.channels["general"] = "c9"
	ft2.users["u7"] = transport.User{ID: "u7", Name: "eve", Mention: "@eve"}
	b.AddTransport(ft1)
	b.AddTransport(ft2)

	if !b.HasChannel("general") {
		t.Fatal("channel not found across transports")
	}
	if b.HasChannel("nowhere") {
		t.Fatal("phantom channel reported")
	}

	if err := b.SendChannelMessage("general", "hi"); err != nil {
		t.Fatal(err)
	}
	if len(ft2.sent) != 1 || ft2.sent[0] != "c9:hi" {
		t.Errorf("channel delivery = %v", ft2.sent)
	}
	if len(ft1.sent) != 0 {
		t.Errorf("wrong transport delivered: %v", ft1.sent)
	}

	mention, ok := b.UserMention("u7")
	if !ok || mention != "@eve" {
		t.Errorf("mention = %q, %v", mention, ok)
	}

	if err := b.SendDirectMessage("u7", "psst"); err != nil {
		t.Fatal(err)
	}
	if len(ft2.dms) != 1 {
		t.Errorf("dm delivery = %v", ft2.dms)
	}

	if err := b.SendDirectMessage("ghost", "psst"); err == nil {
		t.Error("expected an error for an unknown user")
	}
}

// TestAdminGatingThroughInbound verifies admin commands work end to end
// for configured admins only.
func TestAdminGatingThroughInbound(t *testing.T) {
	b, cfg := newTestBot(t)
	cfg.Update(func(c *config.BotConfig) {
		c.AdminUsers = []string{"boss1"}
		c.ConfigWriteDelaySeconds = 0
	})
	ft := newFakeTransport("fake")
	ft.channels["ops"] = "c2"
	b.AddTransport(ft)

	user := transport.InboundMessage{
		Author: transport.User{ID: "u1", Name: "dave", Mention: "@dave"},
		Text:   "!announcechannel ops",
	}
	resp := ft.handler(user)
	if !strings.Contains(resp, "admin") {
		t.Fatalf("expected admin refusal, got %q", resp)
	}

	admin := user
	admin.Author = transport.User{ID: "boss1", Name: "boss", Mention: "@boss"}
	resp = ft.handler(admin)
	if !strings.Contains(resp, "#ops") {
		t.Fatalf("expected confirmation, got %q", resp)
	}
	if cfg.Config().AnnounceChannel != "ops" {
		t.Errorf("announce channel = %q", cfg.Config().AnnounceChannel)
	}
}

// TestFormatAnnouncement verifies template token expansion.
func TestFormatAnnouncement(t *testing.T) {
	status := stream.Status{Username: "streamer1", URL: "https://twitch.tv/streamer1"}
	now := time.Date(2026, 8, 27, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"name and url", "{streamer_name} live at {stream_url}", "streamer1 live at https://twitch.tv/streamer1"},
		{"date tokens", "{day} {date}", "Thursday 27/08/2026"},
		{"time tokens", "{time} / {times}", "15:04 / 15:04:05"},
		{"month year botname", "{month} {year} by {botname}", "August 2026 by " + Name},
		{"no tokens", "plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatAnnouncement(tt.template, status, now); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
