// Package slack is the Slack transport, using Socket Mode so no inbound
// HTTP endpoint is needed.
package slack

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/grvsrs/hostbot/pkg/events"
	"github.com/grvsrs/hostbot/pkg/logger"
	"github.com/grvsrs/hostbot/pkg/transport"
)

const transportName = "slack"

// chunkLimit stays below Slack's 4000-character text cap.
const chunkLimit = 3500

// Transport relays messages over a Socket Mode connection.
type Transport struct {
	appToken string
	botToken string
	bus      *events.Bus

	handler transport.InboundHandler

	api    *slack.Client
	client *socketmode.Client
	selfID string

	mu sync.Mutex
	// channelNames caches conversation ID to name lookups.
	channelNames map[string]string
	// userNames caches user ID to display name lookups.
	userNames map[string]string

	cancel context.CancelFunc
	doneCh chan struct{}
}

var _ transport.Transport = (*Transport)(nil)

func New(appToken, botToken string, bus *events.Bus) *Transport {
	return &Transport{
		appToken:     appToken,
		botToken:     botToken,
		bus:          bus,
		channelNames: make(map[string]string),
		userNames:    make(map[string]string),
	}
}

func (t *Transport) Name() string { return transportName }

func (t *Transport) SetInboundHandler(h transport.InboundHandler) {
	t.handler = h
}

func (t *Transport) Start(ctx context.Context) error {
	t.api = slack.New(t.botToken, slack.OptionAppLevelToken(t.appToken))

	auth, err := t.api.AuthTest()
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	t.selfID = auth.UserID

	t.client = socketmode.New(t.api)

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.doneCh = make(chan struct{})

	go t.eventLoop(runCtx)
	go func() {
		defer close(t.doneCh)
		if err := t.client.RunContext(runCtx); err != nil && runCtx.Err() == nil {
			logger.ErrorCF(transportName, "socket mode ended", map[string]interface{}{"error": err.Error()})
		}
	}()
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
// Socket Mode event loop
// ---------------------------------------------------------------------------

func (t *Transport) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-t.client.Events:
			if !ok {
				return
			}
			switch evt.Type {
			case socketmode.EventTypeConnected:
				logger.InfoC(transportName, "socket mode connected")
				t.bus.Emit(events.TransportConnected, transportName)

			case socketmode.EventTypeEventsAPI:
				apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				if evt.Request != nil {
					t.client.Ack(*evt.Request)
				}
				t.handleEventsAPI(apiEvent)
			}
		}
	}
}

func (t *Transport) handleEventsAPI(apiEvent slackevents.EventsAPIEvent) {
	if apiEvent.Type != slackevents.CallbackEvent {
		return
	}

	switch ev := apiEvent.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		t.handleMessage(ev)

	case *slackevents.MemberJoinedChannelEvent:
		t.bus.Emit(events.MemberJoined, t.userByIDOrStub(ev.User))
	}
}

func (t *Transport) handleMessage(ev *slackevents.MessageEvent) {
	// Skip bot echoes, edits, joins and other subtyped messages.
	if ev.User == "" || ev.User == t.selfID || ev.BotID != "" || ev.SubType != "" {
		return
	}

	text := ev.Text
	mention := false
	if tag := "<@" + t.selfID + ">"; strings.Contains(text, tag) {
		mention = true
		text = strings.TrimSpace(strings.ReplaceAll(text, tag, ""))
	}

	if t.handler == nil {
		return
	}
	resp := t.handler(transport.InboundMessage{
		Transport:   transportName,
		ChannelID:   ev.Channel,
		ChannelName: t.channelName(ev.Channel),
		Author:      t.userByIDOrStub(ev.User),
		Text:        text,
		Mention:     mention,
		DM:          ev.ChannelType == "im",
	})
	if resp != "" {
		if err := t.SendMessage(ev.Channel, resp); err != nil {
			logger.WarnCF(transportName, "reply failed", map[string]interface{}{
				"channel": ev.Channel, "error": err.Error(),
			})
		}
	}
}

// ---------------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------------

func (t *Transport) channelName(id string) string {
	t.mu.Lock()
	name, ok := t.channelNames[id]
	t.mu.Unlock()
	if ok {
		return name
	}

	info, err := t.api.GetConversationInfo(&slack.GetConversationInfoInput{ChannelID: id})
	if err != nil {
		return ""
	}

	t.mu.Lock()
	t.channelNames[id] = info.Name
	t.mu.Unlock()
	return info.Name
}

func (t *Transport) userByIDOrStub(id string) transport.User {
	u, ok := t.UserByID(id)
	if !ok {
		return transport.User{ID: id, Name: id, Mention: "<@" + id + ">"}
	}
	return u
}

func (t *Transport) UserByID(id string) (transport.User, bool) {
	t.mu.Lock()
	name, ok := t.userNames[id]
	t.mu.Unlock()

	if !ok {
		info, err := t.api.GetUserInfo(id)
		if err != nil {
			return transport.User{}, false
		}
		name = info.Name
		t.mu.Lock()
		t.userNames[id] = name
		t.mu.Unlock()
	}
	return transport.User{ID: id, Name: name, Mention: "<@" + id + ">"}, true
}

func (t *Transport) ChannelByName(name string) (transport.Channel, bool) {
	if t.api == nil {
		return transport.Channel{}, false
	}

	params := &slack.GetConversationsParameters{
		Types: []string{"public_channel", "private_channel"},
		Limit: 200,
	}
	for {
		channels, cursor, err := t.api.GetConversations(params)
		if err != nil {
			return transport.Channel{}, false
		}
		for _, ch := range channels {
			if strings.EqualFold(ch.Name, name) {
				t.mu.Lock()
				t.channelNames[ch.ID] = ch.Name
				t.mu.Unlock()
				return transport.Channel{ID: ch.ID, Name: ch.Name}, true
			}
		}
		if cursor == "" {
			return transport.Channel{}, false
		}
		params.Cursor = cursor
	}
}

// ---------------------------------------------------------------------------
// Outbound
// ---------------------------------------------------------------------------

func (t *Transport) SendMessage(channelID, text string) error {
	if t.api == nil {
		return fmt.Errorf("slack transport not started")
	}
	for _, chunk := range transport.SplitMessage(text, chunkLimit) {
		if _, _, err := t.api.PostMessage(channelID, slack.MsgOptionText(chunk, false)); err != nil {
			return fmt.Errorf("post to channel %s: %w", channelID, err)
		}
	}
	return nil
}

func (t *Transport) SendDirectMessage(userID, text string) error {
	if t.api == nil {
		return fmt.Errorf("slack transport not started")
	}
	ch, _, _, err := t.api.OpenConversation(&slack.OpenConversationParameters{Users: []string{userID}})
	if err != nil {
		return fmt.Errorf("open DM with %s: %w", userID, err)
	}
	return t.SendMessage(ch.ID, text)
}
