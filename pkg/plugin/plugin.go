// Package plugin defines the plugin contract and the manager that
// enables and disables registered plugins at runtime. Plugins are
// registered explicitly at startup; nothing is discovered by scanning.
package plugin

import (
	"github.com/grvsrs/hostbot/pkg/command"
	"github.com/grvsrs/hostbot/pkg/config"
	"github.com/grvsrs/hostbot/pkg/events"
	"github.com/grvsrs/hostbot/pkg/scheduler"
)

// Host is the bot surface a plugin may use while open. Plugins keep the
// Host they receive in Open and must stop using it after Close.
type Host interface {
	// Commands is the command table; plugins add commands in Open and
	// remove them in Close.
	Commands() *command.Processor

	// Bus is the event bus; subscriptions added in Open are removed in
	// Close.
	Bus() *events.Bus

	// Config is the bot's configuration store, including the per-plugin
	// data namespace.
	Config() *config.Manager

	// Messenger delivers messages to users and channels across whatever
	// transports are connected.
	Messenger() scheduler.Messenger
}

// Plugin is one optional feature bundle. Open attaches it to the host
// (registering commands, subscribing to events, starting goroutines)
// and Close detaches it. A plugin must tolerate repeated
// Open/Close/Open cycles within one process.
type Plugin interface {
	Name() string
	Version() string

	// ShortDescription is the one-line summary shown in plugin listings.
	ShortDescription() string

	// LongDescription is the full description shown for a single plugin.
	LongDescription() string

	Open(h Host) error
	Close()
}
