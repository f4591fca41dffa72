// Package discord is the Discord transport, built on discordgo's
// gateway session.
package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/grvsrs/hostbot/pkg/events"
	"github.com/grvsrs/hostbot/pkg/logger"
	"github.com/grvsrs/hostbot/pkg/transport"
)

const transportName = "discord"

// chunkLimit stays well below Discord's 2000-character message cap so
// re-opened code fences never push a chunk over.
const chunkLimit = 1600

// Transport connects to the Discord gateway and relays messages for one
// guild.
type Transport struct {
	token   string
	guildID string
	bus     *events.Bus

	handler transport.InboundHandler

	mu      sync.Mutex
	session *discordgo.Session
	selfID  string
}

var _ transport.Transport = (*Transport)(nil)

func New(token, guildID string, bus *events.Bus) *Transport {
	return &Transport{token: token, guildID: guildID, bus: bus}
}

func (t *Transport) Name() string { return transportName }

func (t *Transport) SetInboundHandler(h transport.InboundHandler) {
	t.handler = h
}

func (t *Transport) Start(ctx context.Context) error {
	session, err := discordgo.New("Bot " + t.token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	session.StateEnabled = true

	session.AddHandler(t.onReady)
	session.AddHandler(t.onMessageCreate)
	session.AddHandler(t.onGuildMemberAdd)

	if err := session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}

	t.mu.Lock()
	t.session = session
	t.mu.Unlock()
	return nil
}

func (t *Transport) Stop() {
	t.mu.Lock()
	session := t.session
	t.session = nil
	t.mu.Unlock()

	if session != nil {
		if err := session.Close(); err != nil {
			logger.WarnCF(transportName, "gateway close failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// ---------------------------------------------------------------------------
// Gateway handlers
// ---------------------------------------------------------------------------

func (t *Transport) onReady(s *discordgo.Session, r *discordgo.Ready) {
	t.mu.Lock()
	t.selfID = r.User.ID
	t.mu.Unlock()

	logger.InfoCF(transportName, "gateway ready", map[string]interface{}{
		"user": r.User.Username, "guilds": len(r.Guilds),
	})
	t.bus.Emit(events.TransportConnected, transportName)
}

func (t *Transport) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	t.mu.Lock()
	selfID := t.selfID
	t.mu.Unlock()

	if m.Author == nil || m.Author.ID == selfID || m.Author.Bot {
		return
	}
	if t.guildID != "" && m.GuildID != "" && m.GuildID != t.guildID {
		return
	}

	text := m.Content
	mention := false
	for _, u := range m.Mentions {
		if u.ID == selfID {
			mention = true
			// Strip the leading mention so commands parse cleanly.
			text = strings.TrimSpace(strings.ReplaceAll(text, "<@"+selfID+">", ""))
			text = strings.TrimSpace(strings.ReplaceAll(text, "<@!"+selfID+">", ""))
			break
		}
	}

	channelName := ""
	if ch, err := s.State.Channel(m.ChannelID); err == nil {
		channelName = ch.Name
	}

	if t.handler == nil {
		return
	}
	resp := t.handler(transport.InboundMessage{
		Transport:   transportName,
		ChannelID:   m.ChannelID,
		ChannelName: channelName,
		Author: transport.User{
			ID:      m.Author.ID,
			Name:    m.Author.Username,
			Mention: m.Author.Mention(),
		},
		Text:    text,
		Mention: mention,
		DM:      m.GuildID == "",
	})
	if resp != "" {
		t.sendChunked(m.ChannelID, resp)
	}
}

func (t *Transport) onGuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if t.guildID != "" && m.GuildID != t.guildID {
		return
	}
	t.bus.Emit(events.MemberJoined, transport.User{
		ID:      m.User.ID,
		Name:    m.User.Username,
		Mention: m.User.Mention(),
	})
}

// ---------------------------------------------------------------------------
// Outbound
// ---------------------------------------------------------------------------

func (t *Transport) sendChunked(channelID, text string) {
	t.mu.Lock()
	session := t.session
	t.mu.Unlock()
	if session == nil {
		return
	}

	for _, chunk := range transport.SplitMessage(text, chunkLimit) {
		if _, err := session.ChannelMessageSend(channelID, chunk); err != nil {
			logger.WarnCF(transportName, "send failed", map[string]interface{}{
				"channel": channelID, "error": err.Error(),
			})
			return
		}
	}
}

func (t *Transport) SendMessage(channelID, text string) error {
	t.mu.Lock()
	session := t.session
	t.mu.Unlock()
	if session == nil {
		return fmt.Errorf("discord transport not started")
	}

	for _, chunk := range transport.SplitMessage(text, chunkLimit) {
		if _, err := session.ChannelMessageSend(channelID, chunk); err != nil {
			return fmt.Errorf("send to channel %s: %w", channelID, err)
		}
	}
	return nil
}

func (t *Transport) SendDirectMessage(userID, text string) error {
	t.mu.Lock()
	session := t.session
	t.mu.Unlock()
	if session == nil {
		return fmt.Errorf("discord transport not started")
	}

	ch, err := session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("open DM channel for %s: %w", userID, err)
	}
	return t.SendMessage(ch.ID, text)
}

func (t *Transport) ChannelByName(name string) (transport.Channel, bool) {
	t.mu.Lock()
	session := t.session
	t.mu.Unlock()
	if session == nil {
		return transport.Channel{}, false
	}

	for _, g := range session.State.Guilds {
		if t.guildID != "" && g.ID != t.guildID {
			continue
		}
		for _, ch := range g.Channels {
			if ch.Type == discordgo.ChannelTypeGuildText && strings.EqualFold(ch.Name, name) {
				return transport.Channel{ID: ch.ID, Name: ch.Name}, true
			}
		}
	}
	return transport.Channel{}, false
}

func (t *Transport) UserByID(id string) (transport.User, bool) {
	t.mu.Lock()
	session := t.session
	t.mu.Unlock()
	if session == nil {
		return transport.User{}, false
	}

	u, err := session.User(id)
	if err != nil {
		return transport.User{}, false
	}
	return transport.User{ID: u.ID, Name: u.Username, Mention: u.Mention()}, true
}
