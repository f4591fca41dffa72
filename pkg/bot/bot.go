// Package bot assembles the whole host: transports, the event bus, the
// command processor, the plugin manager and the stream monitor, plus
// the built-in command set.
package bot

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/grvsrs/hostbot/pkg/command"
	"github.com/grvsrs/hostbot/pkg/config"
	"github.com/grvsrs/hostbot/pkg/events"
	"github.com/grvsrs/hostbot/pkg/logger"
	"github.com/grvsrs/hostbot/pkg/plugin"
	"github.com/grvsrs/hostbot/pkg/scheduler"
	"github.com/grvsrs/hostbot/pkg/stream"
	"github.com/grvsrs/hostbot/pkg/transport"
)

// Name is how the bot refers to itself in announcements.
const Name = "hostbot"

// Bot is the running host. It implements plugin.Host for plugins and
// scheduler.Messenger for deferred deliveries.
type Bot struct {
	cfg     *config.Manager
	bus     *events.Bus
	proc    *command.Processor
	plugins *plugin.Manager

	// monitor is nil when no streaming credentials are configured.
	monitor *stream.Monitor

	mu         sync.Mutex
	transports []transport.Transport

	startupOnce sync.Once
	cancel      context.CancelFunc
}

var (
	_ plugin.Host         = (*Bot)(nil)
	_ scheduler.Messenger = (*Bot)(nil)
)

// New creates the bot with its built-in commands registered. Transports
// and the stream monitor are attached afterwards.
func New(cfg *config.Manager, bus *events.Bus) (*Bot, error) {
	b := &Bot{cfg: cfg, bus: bus}

	proc, err := command.NewProcessor(cfg, bus, b.builtinCommands())
	if err != nil {
		return nil, fmt.Errorf("create command processor: %w", err)
	}
	b.proc = proc
	b.plugins = plugin.NewManager(b)

	bus.Subscribe(events.StreamStarted, b.onStreamStarted, false)
	bus.Subscribe(events.TransportConnected, b.onTransportConnected, false)
	return b, nil
}

// Commands implements plugin.Host.
func (b *Bot) Commands() *command.Processor { return b.proc }

// Bus implements plugin.Host.
func (b *Bot) Bus() *events.Bus { return b.bus }

// Config implements plugin.Host.
func (b *Bot) Config() *config.Manager { return b.cfg }

// Messenger implements plugin.Host.
func (b *Bot) Messenger() scheduler.Messenger { return b }

// Plugins exposes the plugin manager for startup wiring.
func (b *Bot) Plugins() *plugin.Manager { return b.plugins }

// AddTransport registers a transport and takes over its inbound
// messages. Call before Start.
func (b *Bot) AddTransport(t transport.Transport) {
	t.SetInboundHandler(b.handleInbound)
	b.mu.Lock()
	b.transports = append(b.transports, t)
	b.mu.Unlock()
}

// SetMonitor attaches the stream monitor. Call before Start; nil is
// allowed and disables stream features.
func (b *Bot) SetMonitor(m *stream.Monitor) {
	b.monitor = m
}

// Start connects every transport and begins stream polling.
func (b *Bot) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	b.mu.Lock()
	transports := append([]transport.Transport(nil), b.transports...)
	b.mu.Unlock()

	for _, t := range transports {
		if err := t.Start(ctx); err != nil {
			cancel()
			return fmt.Errorf("start %s transport: %w", t.Name(), err)
		}
		logger.InfoCF("bot", "transport started", map[string]interface{}{"transport": t.Name()})
	}

	if b.monitor != nil {
		b.monitor.Start()
	}
	return nil
}

// Stop shuts everything down: monitor first so no new announcements
// arrive, then plugins, then transports, then the command log.
func (b *Bot) Stop() {
	if b.monitor != nil {
		b.monitor.Stop()
	}
	b.plugins.Stop()

	if b.cancel != nil {
		b.cancel()
	}
	b.mu.Lock()
	transports := append([]transport.Transport(nil), b.transports...)
	b.mu.Unlock()
	for _, t := range transports {
		t.Stop()
	}

	b.proc.Close()
	logger.InfoC("bot", "stopped")
}

// ---------------------------------------------------------------------------
// Inbound message handling
// ---------------------------------------------------------------------------

// handleInbound is installed on every transport. The returned string,
// when non-empty, is sent back to the originating channel or DM.
func (b *Bot) handleInbound(msg transport.InboundMessage) string {
	b.bus.Emit(events.MessageReceived, msg)
	if msg.Mention {
		b.bus.Emit(events.BotMention, msg)
	}

	md := command.MessageData{
		Transport:     msg.Transport,
		ChannelID:     msg.ChannelID,
		ChannelName:   msg.ChannelName,
		AuthorID:      msg.Author.ID,
		AuthorName:    msg.Author.Name,
		AuthorMention: msg.Author.Mention,
		DM:            msg.DM,
	}

	if resp, handled := b.proc.ProcessCommand(md, msg.Text); handled {
		return resp
	}

	// Mentions and DMs that aren't commands get a gentle nudge.
	if msg.Mention || msg.DM {
		return fmt.Sprintf("Hi %s! Use '%shelp' to see what I can do.",
			msg.Author.Mention, command.Prefix)
	}
	return ""
}

// ---------------------------------------------------------------------------
// Messenger across transports
// ---------------------------------------------------------------------------

func (b *Bot) snapshotTransports() []transport.Transport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]transport.Transport(nil), b.transports...)
}

// UserMention implements scheduler.Messenger.
func (b *Bot) UserMention(userID string) (string, bool) {
	for _, t := range b.snapshotTransports() {
		if u, ok := t.UserByID(userID); ok {
			return u.Mention, true
		}
	}
	return "", false
}

// SendDirectMessage implements scheduler.Messenger. The message goes out
// on the first transport that knows the user.
func (b *Bot) SendDirectMessage(userID, text string) error {
	for _, t := range b.snapshotTransports() {
		if _, ok := t.UserByID(userID); ok {
			return t.SendDirectMessage(userID, text)
		}
	}
	return fmt.Errorf("no transport knows user %q", userID)
}

// HasChannel implements scheduler.Messenger.
func (b *Bot) HasChannel(name string) bool {
	for _, t := range b.snapshotTransports() {
		if _, ok := t.ChannelByName(name); ok {
			return true
		}
	}
	return false
}

// SendChannelMessage implements scheduler.Messenger. The message goes
// out on the first transport that has the channel.
func (b *Bot) SendChannelMessage(name, text string) error {
	for _, t := range b.snapshotTransports() {
		if ch, ok := t.ChannelByName(name); ok {
			return t.SendMessage(ch.ID, text)
		}
	}
	return fmt.Errorf("no transport has channel %q", name)
}

// ---------------------------------------------------------------------------
// Event handlers
// ---------------------------------------------------------------------------

// onTransportConnected delivers the configured startup message once,
// when the first transport reports a working connection.
func (b *Bot) onTransportConnected(args ...interface{}) events.Result {
	b.startupOnce.Do(func() {
		cfg := b.cfg.Config()
		if cfg.StartupMessage == "" || cfg.AnnounceChannel == "" {
			return
		}
		if err := b.SendChannelMessage(cfg.AnnounceChannel, cfg.StartupMessage); err != nil {
			logger.WarnCF("bot", "startup message failed", map[string]interface{}{
				"channel": cfg.AnnounceChannel, "error": err.Error(),
			})
		}
	})
	return events.Continue
}

// onStreamStarted announces a monitored streamer going live, unless the
// host streamer is live and competition silence is on.
func (b *Bot) onStreamStarted(args ...interface{}) events.Result {
	if len(args) < 1 {
		return events.Continue
	}
	status, ok := args[0].(stream.Status)
	if !ok {
		return events.Continue
	}

	cfg := b.cfg.Config()
	if cfg.AnnounceChannel == "" || len(cfg.StreamStartMessages) == 0 {
		return events.Continue
	}
	if cfg.SilentWhenHostStreaming && b.monitor != nil && b.monitor.HostIsLive() {
		logger.InfoCF("bot", "suppressing announcement, host is live", map[string]interface{}{
			"streamer": status.Username,
		})
		return events.Continue
	}

	template := cfg.StreamStartMessages[rand.Intn(len(cfg.StreamStartMessages))]
	msg := FormatAnnouncement(template, status, time.Now())
	if err := b.SendChannelMessage(cfg.AnnounceChannel, msg); err != nil {
		logger.WarnCF("bot", "announcement failed", map[string]interface{}{
			"channel": cfg.AnnounceChannel, "error": err.Error(),
		})
	}
	return events.Continue
}

// FormatAnnouncement expands the announcement template tokens for one
// stream-started event.
func FormatAnnouncement(template string, status stream.Status, now time.Time) string {
	replacer := strings.NewReplacer(
		"{streamer_name}", status.Username,
		"{stream_url}", status.URL,
		"{botname}", Name,
		"{date}", now.Format("02/01/2006"),
		"{time}", now.Format("15:04"),
		"{times}", now.Format("15:04:05"),
		"{day}", now.Format("Monday"),
		"{month}", now.Format("January"),
		"{year}", now.Format("2006"),
	)
	return replacer.Replace(template)
}
