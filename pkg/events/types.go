package events

// Type classifies bus events. The set of types is closed: every type the
// process will ever emit is declared here and registered when the bus is
// constructed.
type Type string

const (
	// Transport context events
	MessageReceived    Type = "transport.message.received"
	BotMention         Type = "transport.mention"
	MemberJoined       Type = "transport.member.joined"
	TransportConnected Type = "transport.connected"

	// Command context events
	CommandReceived Type = "command.received"

	// Stream monitor context events
	StreamStarted     Type = "stream.started"
	StreamEnded       Type = "stream.ended"
	HostStreamStarted Type = "stream.host.started"
	HostStreamEnded   Type = "stream.host.ended"
)

// AllTypes returns every declared event type. NewBus registers exactly
// this set; there is no way to add types at runtime.
func AllTypes() []Type {
	return []Type{
		MessageReceived,
		BotMention,
		MemberJoined,
		TransportConnected,
		CommandReceived,
		StreamStarted,
		StreamEnded,
		HostStreamStarted,
		HostStreamEnded,
	}
}

// Result tells the bus whether to keep invoking handlers for the current
// emission. An explicit two-case result avoids accidental short-circuiting
// from handlers that happen to return meaningful values.
type Result int

const (
	// Continue lets the emission proceed to the next handler.
	Continue Result = iota
	// StopPropagation ends the current emission; later handlers are skipped.
	StopPropagation
)

// Handler processes one emission of an event type. Arguments are passed
// through from Emit unchanged.
type Handler func(args ...interface{}) Result
