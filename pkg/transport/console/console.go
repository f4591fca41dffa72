// Package console is a local terminal transport, useful for driving the
// bot without any chat-platform credentials. Every line typed is a
// message from the "console" user in the "console" channel.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/grvsrs/hostbot/pkg/events"
	"github.com/grvsrs/hostbot/pkg/logger"
	"github.com/grvsrs/hostbot/pkg/transport"
)

const (
	transportName = "console"
	channelName   = "console"
	userID        = "console"
)

// Transport reads lines from the terminal and prints outbound messages.
type Transport struct {
	bus     *events.Bus
	handler transport.InboundHandler

	rl     *readline.Instance
	doneCh chan struct{}
}

var _ transport.Transport = (*Transport)(nil)

func New(bus *events.Bus) *Transport {
	return &Transport{bus: bus}
}

func (t *Transport) Name() string { return transportName }

func (t *Transport) SetInboundHandler(h transport.InboundHandler) {
	t.handler = h
}

func (t *Transport) Start(ctx context.Context) error {
	rl, err := readline.New("> ")
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	t.rl = rl
	t.doneCh = make(chan struct{})

	go t.readLoop(ctx)
	t.bus.Emit(events.TransportConnected, transportName)
	return nil
}

func (t *Transport) Stop() {
	if t.rl == nil {
		return
	}
	t.rl.Close()
	<-t.doneCh
}

func (t *Transport) readLoop(ctx context.Context) {
	defer close(t.doneCh)

	for {
		line, err := t.rl.Readline()
		if err != nil {
			// io.EOF on ^D, readline.ErrInterrupt on ^C, or Close.
			if err != io.EOF && err != readline.ErrInterrupt {
				logger.DebugCF(transportName, "readline ended", map[string]interface{}{"error": err.Error()})
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if t.handler == nil {
			continue
		}
		resp := t.handler(transport.InboundMessage{
			Transport:   transportName,
			ChannelID:   channelName,
			ChannelName: channelName,
			Author: transport.User{
				ID:      userID,
				Name:    userID,
				Mention: "@" + userID,
			},
			Text: line,
		})
		if resp != "" {
			fmt.Fprintln(t.rl.Stdout(), resp)
		}
	}
}

func (t *Transport) SendMessage(channelID, text string) error {
	fmt.Fprintf(t.rl.Stdout(), "[#%s] %s\n", channelID, text)
	return nil
}

func (t *Transport) SendDirectMessage(user, text string) error {
	fmt.Fprintf(t.rl.Stdout(), "[dm:%s] %s\n", user, text)
	return nil
}

func (t *Transport) ChannelByName(name string) (transport.Channel, bool) {
	if name != channelName {
		return transport.Channel{}, false
	}
	return transport.Channel{ID: channelName, Name: channelName}, true
}

func (t *Transport) UserByID(id string) (transport.User, bool) {
	if id != userID {
		return transport.User{}, false
	}
	return transport.User{ID: userID, Name: userID, Mention: "@" + userID}, true
}
