// Package transport defines the narrow contract between the bot core and
// a chat platform: send text to a channel or a user, resolve channel and
// user references, and deliver inbound text events. Platform adapters
// live in subpackages; the core never sees a platform SDK type.
package transport

import "context"

// Channel is a live reference to a platform channel.
type Channel struct {
	ID   string
	Name string
}

// User is a live reference to a platform user. Mention is the platform's
// inline-mention syntax for the user, or the display name where the
// platform has none.
type User struct {
	ID      string
	Name    string
	Mention string
}

// InboundMessage is a text event delivered by a transport to the core's
// dispatch entry point.
type InboundMessage struct {
	Transport   string
	ChannelID   string
	ChannelName string
	Author      User
	Text        string

	// Mention is set when the message opened with a direct mention of
	// the bot; Text has the mention already stripped.
	Mention bool

	// DM is set for messages received in a direct-message conversation.
	DM bool
}

// InboundHandler receives every inbound text event from a transport.
// The returned string, if non-empty, is sent back to the originating
// channel (or DM conversation) as the bot's response.
type InboundHandler func(msg InboundMessage) string

// Transport is a chat-platform adapter. Implementations must chunk long
// outbound text to their platform's message-size limit with SplitMessage
// before sending.
type Transport interface {
	// Name identifies the platform ("discord", "slack", ...).
	Name() string

	// Start connects and begins delivering inbound events. Non-blocking.
	Start(ctx context.Context) error

	// Stop disconnects. Safe to call when never started.
	Stop()

	// SendMessage sends text to a channel by ID.
	SendMessage(channelID, text string) error

	// SendDirectMessage sends text to a user as a direct message.
	SendDirectMessage(userID, text string) error

	// ChannelByName resolves a channel reference by display name.
	ChannelByName(name string) (Channel, bool)

	// UserByID resolves a user reference by platform ID.
	UserByID(id string) (User, bool)

	// SetInboundHandler installs the core's dispatch entry point. Must
	// be called before Start.
	SetInboundHandler(h InboundHandler)
}
