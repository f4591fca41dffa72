package scheduler

import (
	"fmt"
	"time"
)

// Kind identifies what a scheduled event delivers when it fires.
type Kind int

const (
	// KindDirectMessage delivers a reminder to a single user as a DM.
	KindDirectMessage Kind = iota
	// KindChannelMessage delivers stored text verbatim to a channel.
	KindChannelMessage
	// KindRecurringMessage is a channel message driven by a cron
	// expression; it re-arms itself after each firing.
	KindRecurringMessage
)

func (k Kind) String() string {
	switch k {
	case KindDirectMessage:
		return "direct-message"
	case KindChannelMessage:
		return "channel-message"
	case KindRecurringMessage:
		return "recurring-message"
	default:
		return "unknown"
	}
}

// Event is a single deferred delivery. The pending set is always held
// sorted ascending by ExpiryTime.
type Event struct {
	// ID uniquely identifies the event for removal and undo bookkeeping.
	ID string

	// TimeSeconds is the relative delay, in seconds, at creation time.
	TimeSeconds int64

	// ExpiryTime is the absolute fire time, UTC unix seconds.
	ExpiryTime int64

	Kind Kind

	// Text is the message body for every kind.
	Text string

	// UserID is the DM recipient (KindDirectMessage only).
	UserID string

	// ChannelName is the target channel (channel and recurring kinds).
	ChannelName string

	// Origin is the user's original time description, echoed back in
	// reminder deliveries.
	Origin string

	// CronExpr drives re-arming (KindRecurringMessage only).
	CronExpr string
}

// TimeRemaining returns the duration until the event fires, truncated to
// whole seconds for display.
func (e Event) TimeRemaining() time.Duration {
	d := time.Until(time.Unix(e.ExpiryTime, 0))
	return d.Truncate(time.Second)
}

// Record is the serialization shape for one pending event, stored in the
// config store's plugin-data namespace.
type Record struct {
	ID          string   `yaml:"id" json:"id"`
	TimeSeconds int64    `yaml:"time_seconds" json:"time_seconds"`
	ExpiryTime  int64    `yaml:"expiry_time" json:"expiry_time"`
	EventType   int      `yaml:"event_type" json:"event_type"`
	EventData   []string `yaml:"event_data" json:"event_data"`
}

// toRecord flattens the kind-specific payload into the ordered tuple the
// persistence contract uses.
func (e Event) toRecord() Record {
	r := Record{
		ID:          e.ID,
		TimeSeconds: e.TimeSeconds,
		ExpiryTime:  e.ExpiryTime,
		EventType:   int(e.Kind),
	}
	switch e.Kind {
	case KindDirectMessage:
		r.EventData = []string{e.Text, e.UserID, e.Origin}
	case KindChannelMessage:
		r.EventData = []string{e.Text, e.ChannelName}
	case KindRecurringMessage:
		r.EventData = []string{e.Text, e.ChannelName, e.CronExpr}
	}
	return r
}

// fromRecord rebuilds an event from its persisted tuple.
func fromRecord(r Record) (Event, error) {
	e := Event{
		ID:          r.ID,
		TimeSeconds: r.TimeSeconds,
		ExpiryTime:  r.ExpiryTime,
		Kind:        Kind(r.EventType),
	}
	switch e.Kind {
	case KindDirectMessage:
		if len(r.EventData) != 3 {
			return Event{}, fmt.Errorf("direct-message record needs 3 data fields, got %d", len(r.EventData))
		}
		e.Text, e.UserID, e.Origin = r.EventData[0], r.EventData[1], r.EventData[2]
	case KindChannelMessage:
		if len(r.EventData) != 2 {
			return Event{}, fmt.Errorf("channel-message record needs 2 data fields, got %d", len(r.EventData))
		}
		e.Text, e.ChannelName = r.EventData[0], r.EventData[1]
	case KindRecurringMessage:
		if len(r.EventData) != 3 {
			return Event{}, fmt.Errorf("recurring-message record needs 3 data fields, got %d", len(r.EventData))
		}
		e.Text, e.ChannelName, e.CronExpr = r.EventData[0], r.EventData[1], r.EventData[2]
	default:
		return Event{}, fmt.Errorf("unknown scheduled event type %d", r.EventType)
	}
	return e, nil
}
