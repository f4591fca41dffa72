// Package telegram is the Telegram transport, using long polling so no
// inbound HTTP endpoint is needed. Telegram has no channel directory to
// query, so group chats are learned as messages arrive from them.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/mymmrac/telego"

	"github.com/grvsrs/hostbot/pkg/events"
	"github.com/grvsrs/hostbot/pkg/logger"
	"github.com/grvsrs/hostbot/pkg/transport"
)

const transportName = "telegram"

// chunkLimit stays below Telegram's 4096-character message cap.
const chunkLimit = 4000

// Transport relays messages over a long-polling bot session.
type Transport struct {
	token string
	bus   *events.Bus

	handler transport.InboundHandler

	bot      *telego.Bot
	selfName string

	mu sync.Mutex
	// chats maps lowercased group titles to chat IDs, learned from
	// received messages.
	chats map[string]int64
	// users maps seen user IDs to names.
	users map[int64]transport.User

	cancel context.CancelFunc
	doneCh chan struct{}
}

var _ transport.Transport = (*Transport)(nil)

func New(token string, bus *events.Bus) *Transport {
	return &Transport{
		token: token,
		bus:   bus,
		chats: make(map[string]int64),
		users: make(map[int64]transport.User),
	}
}

func (t *Transport) Name() string { return transportName }

func (t *Transport) SetInboundHandler(h transport.InboundHandler) {
	t.handler = h
}

func (t *Transport) Start(ctx context.Context) error {
	bot, err := telego.NewBot(t.token)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	t.bot = bot

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.doneCh = make(chan struct{})

	me, err := bot.GetMe(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("telegram getMe: %w", err)
	}
	t.selfName = me.Username

	updates, err := bot.UpdatesViaLongPolling(runCtx, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("start telegram long polling: %w", err)
	}

	go t.updateLoop(runCtx, updates)
	t.bus.Emit(events.TransportConnected, transportName)
	return nil
}

func (t *Transport) Stop() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.doneCh
}

// ---------------------------------------------------------------------------
// Update loop
// ---------------------------------------------------------------------------

func (t *Transport) updateLoop(ctx context.Context, updates <-chan telego.Update) {
	defer close(t.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				t.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (t *Transport) handleMessage(ctx context.Context, msg *telego.Message) {
	if msg.From == nil || msg.From.IsBot || msg.Text == "" {
		return
	}

	author := transport.User{
		ID:      strconv.FormatInt(msg.From.ID, 10),
		Name:    msg.From.Username,
		Mention: "@" + msg.From.Username,
	}
	if author.Name == "" {
		author.Name = msg.From.FirstName
		author.Mention = msg.From.FirstName
	}

	isDM := msg.Chat.Type == telego.ChatTypePrivate
	channelName := strings.ToLower(msg.Chat.Title)

	t.mu.Lock()
	t.users[msg.From.ID] = author
	if !isDM && channelName != "" {
		t.chats[channelName] = msg.Chat.ID
	}
	t.mu.Unlock()

	text := msg.Text
	mention := false
	if tag := "@" + t.selfName; t.selfName != "" && strings.Contains(text, tag) {
		mention = true
		text = strings.TrimSpace(strings.ReplaceAll(text, tag, ""))
	}

	if t.handler == nil {
		return
	}
	resp := t.handler(transport.InboundMessage{
		Transport:   transportName,
		ChannelID:   strconv.FormatInt(msg.Chat.ID, 10),
		ChannelName: channelName,
		Author:      author,
		Text:        text,
		Mention:     mention,
		DM:          isDM,
	})
	if resp != "" {
		if err := t.sendChunked(ctx, msg.Chat.ID, resp); err != nil {
			logger.WarnCF(transportName, "reply failed", map[string]interface{}{
				"chat": msg.Chat.ID, "error": err.Error(),
			})
		}
	}
}

// ---------------------------------------------------------------------------
// Outbound
// ---------------------------------------------------------------------------

func (t *Transport) sendChunked(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range transport.SplitMessage(text, chunkLimit) {
		_, err := t.bot.SendMessage(ctx, &telego.SendMessageParams{
			ChatID: telego.ChatID{ID: chatID},
			Text:   chunk,
		})
		if err != nil {
			return fmt.Errorf("send to chat %d: %w", chatID, err)
		}
	}
	return nil
}

func (t *Transport) SendMessage(channelID, text string) error {
	if t.bot == nil {
		return fmt.Errorf("telegram transport not started")
	}
	id, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad telegram chat id %q: %w", channelID, err)
	}
	return t.sendChunked(context.Background(), id, text)
}

// SendDirectMessage sends to the user's private chat. Telegram reuses
// the user ID as the private chat ID.
func (t *Transport) SendDirectMessage(userID, text string) error {
	return t.SendMessage(userID, text)
}

func (t *Transport) ChannelByName(name string) (transport.Channel, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.chats[strings.ToLower(name)]
	if !ok {
		return transport.Channel{}, false
	}
	return transport.Channel{ID: strconv.FormatInt(id, 10), Name: strings.ToLower(name)}, true
}

func (t *Transport) UserByID(id string) (transport.User, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return transport.User{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.users[n]
	return u, ok
}
