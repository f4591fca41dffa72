// Package mock is the plugin that repeats messages from targeted users
// in aLtErNaTiNg CaSe. It works passively, watching every received
// message rather than waiting to be invoked.
package mock

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/grvsrs/hostbot/pkg/command"
	"github.com/grvsrs/hostbot/pkg/events"
	"github.com/grvsrs/hostbot/pkg/logger"
	"github.com/grvsrs/hostbot/pkg/plugin"
	"github.com/grvsrs/hostbot/pkg/transport"
)

const (
	pluginName    = "mock"
	pluginVersion = "1.0.0"
)

const mockHelp = `{0} <username>

Start repeating everything <username> says in alternating case, until
they are unmocked.

Examples:

@BotName !{0} dave`

const unmockHelp = `{0} <username>

Stop mocking <username>.

Examples:

@BotName !{0} dave`

const listmocksHelp = `{0}

List everyone currently being mocked.

Examples:

@BotName !{0}`

const clearmocksHelp = `{0}

Stop mocking everyone.

Examples:

@BotName !{0}`

const mocksonHelp = `{0}

Turn mocking back on after a mocksoff.

Examples:

@BotName !{0}`

const mocksoffHelp = `{0}

Temporarily turn off all mocking without clearing the mocked list.

Examples:

@BotName !{0}`

// Plugin keeps the mocked-user set and the passive message watcher.
type Plugin struct {
	host plugin.Host

	mu      sync.Mutex
	mocked  map[string]bool
	enabled bool
}

var _ plugin.Plugin = (*Plugin)(nil)

func New() *Plugin {
	return &Plugin{mocked: make(map[string]bool), enabled: true}
}

func (p *Plugin) Name() string    { return pluginName }
func (p *Plugin) Version() string { return pluginVersion }

func (p *Plugin) ShortDescription() string {
	return "Repeat targeted users in alternating case"
}

func (p *Plugin) LongDescription() string {
	return "Watches all channel messages and repeats anything said by a " +
		"mocked user in alternating case. Messages containing links are " +
		"left alone."
}

func (p *Plugin) Open(h plugin.Host) error {
	p.host = h
	h.Bus().Subscribe(events.MessageReceived, p.onMessage, false)

	proc := h.Commands()
	for _, c := range []struct {
		word      string
		handler   command.Handler
		adminOnly bool
		help      string
	}{
		{"mock", p.mock, false, mockHelp},
		{"unmock", p.unmock, false, unmockHelp},
		{"listmocks", p.listmocks, false, listmocksHelp},
		{"clearmocks", p.clearmocks, true, clearmocksHelp},
		{"mockson", p.mockson, true, mocksonHelp},
		{"mocksoff", p.mocksoff, true, mocksoffHelp},
	} {
		if err := proc.AddCommand(c.word, c.handler, c.adminOnly, c.help); err != nil {
			return err
		}
	}
	return nil
}

func (p *Plugin) Close() {
	p.host.Bus().Unsubscribe(events.MessageReceived, p.onMessage)
	proc := p.host.Commands()
	for _, word := range []string{"mock", "unmock", "listmocks", "clearmocks", "mockson", "mocksoff"} {
		proc.RemoveCommand(word)
	}
}

// onMessage is the passive watcher. It never stops propagation; other
// features still see mocked users' messages.
func (p *Plugin) onMessage(args ...interface{}) events.Result {
	if len(args) < 1 {
		return events.Continue
	}
	msg, ok := args[0].(transport.InboundMessage)
	if !ok {
		return events.Continue
	}

	p.mu.Lock()
	active := p.enabled && p.mocked[strings.ToLower(msg.Author.Name)]
	p.mu.Unlock()

	if !active || msg.DM || containsLink(msg.Text) {
		return events.Continue
	}

	reply := Mockify(msg.Text)
	if reply == "" {
		return events.Continue
	}

	if err := p.host.Messenger().SendChannelMessage(msg.ChannelName, reply); err != nil {
		logger.WarnCF("mock", "mock reply failed", map[string]interface{}{
			"channel": msg.ChannelName, "error": err.Error(),
		})
	}
	return events.Continue
}

// ---------------------------------------------------------------------------
// Command handlers
// ---------------------------------------------------------------------------

func (p *Plugin) mock(inv *command.Invocation) string {
	name := normalizeName(inv.ArgText)
	if name == "" {
		if c, ok := inv.Proc.Lookup(inv.Word); ok {
			return c.Help()
		}
		return ""
	}

	p.mu.Lock()
	p.mocked[name] = true
	p.mu.Unlock()
	return fmt.Sprintf("oK, i'Ll sTaRt mOcKiNg %s", name)
}

func (p *Plugin) unmock(inv *command.Invocation) string {
	name := normalizeName(inv.ArgText)
	if name == "" {
		if c, ok := inv.Proc.Lookup(inv.Word); ok {
			return c.Help()
		}
		return ""
	}

	p.mu.Lock()
	known := p.mocked[name]
	delete(p.mocked, name)
	p.mu.Unlock()

	if !known {
		return fmt.Sprintf("I wasn't mocking %s", name)
	}
	return fmt.Sprintf("OK, I'll leave %s alone now", name)
}

func (p *Plugin) listmocks(inv *command.Invocation) string {
	p.mu.Lock()
	names := make([]string, 0, len(p.mocked))
	for name := range p.mocked {
		names = append(names, name)
	}
	enabled := p.enabled
	p.mu.Unlock()

	if len(names) == 0 {
		return "Nobody is being mocked right now"
	}

	sort.Strings(names)
	suffix := ""
	if !enabled {
		suffix = " (mocking is currently turned off)"
	}
	return fmt.Sprintf("Currently mocking: %s%s", strings.Join(names, ", "), suffix)
}

func (p *Plugin) clearmocks(inv *command.Invocation) string {
	p.mu.Lock()
	count := len(p.mocked)
	p.mocked = make(map[string]bool)
	p.mu.Unlock()
	return fmt.Sprintf("OK, stopped mocking %d user(s)", count)
}

func (p *Plugin) mockson(inv *command.Invocation) string {
	p.mu.Lock()
	p.enabled = true
	p.mu.Unlock()
	return "Mocking is ON"
}

func (p *Plugin) mocksoff(inv *command.Invocation) string {
	p.mu.Lock()
	p.enabled = false
	p.mu.Unlock()
	return "Mocking is OFF"
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func normalizeName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "@<>!")
	return strings.ToLower(s)
}

func containsLink(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "http://") || strings.Contains(lower, "https://")
}

// Mockify alternates the case of each letter, leaving everything else
// untouched. The alternation counter only advances on letters so
// punctuation doesn't break the rhythm.
func Mockify(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	upper := false
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z' && upper:
			b.WriteRune(r - ('a' - 'A'))
		case r >= 'A' && r <= 'Z' && !upper:
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			upper = !upper
		}
	}
	return b.String()
}
