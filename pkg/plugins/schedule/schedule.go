// Package schedule is the plugin that exposes the deferred-message
// scheduler through chat commands: personal reminders delivered as DMs,
// one-shot channel messages, and cron-driven recurring messages.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grvsrs/hostbot/pkg/command"
	"github.com/grvsrs/hostbot/pkg/plugin"
	"github.com/grvsrs/hostbot/pkg/scheduler"
)

const (
	pluginName    = "schedule"
	pluginVersion = "1.0.0"

	// pluginDataKey is the config plugin-data namespace that holds the
	// persisted pending list.
	pluginDataKey = "schedule"
)

const remindmeHelp = `{0} <message> in|on|at <time description>
{0} undo

Set a personal reminder. When the time comes I will send you a direct
message containing your reminder text. '{0} undo' cancels the last
reminder you set, as long as it has not fired yet.

Examples:

@BotName !{0} take out the bins in 2 hours and 30 minutes
@BotName !{0} dentist on 22/06/2026 14:30
@BotName !{0} undo`

const remindersHelp = `{0}

Show all of your pending reminders and how long until each one fires.

Examples:

@BotName !{0}`

const scheduleHelp = `{0} <message> in|on|at <time description>
{0}

Schedule a one-shot message to be sent to this channel at a later time.
With no arguments, lists all currently scheduled channel messages.

Examples:

@BotName !{0} stream starting soon! in 1 hour
@BotName !{0}`

const unscheduleHelp = `{0} <number>|all

Cancel scheduled channel messages. The number refers to the listing
shown by the schedule command with no arguments. 'all' cancels every
scheduled channel message, including recurring ones.

Examples:

@BotName !{0} 2
@BotName !{0} all`

const recurringHelp = `{0} "<cron expression>" <message>

Schedule a message to be sent to this channel repeatedly, on the given
5-field cron expression. The expression must be double-quoted.

Examples:

@BotName !{0} "0 9 * * mon" Good morning, it's Monday!`

// Plugin wires the scheduler to the command table. The scheduler itself
// is created on the first enable and keeps delivering across
// disable/enable cycles; disabling only removes the commands.
type Plugin struct {
	host  plugin.Host
	sched *scheduler.Scheduler

	mu sync.Mutex
	// undo maps a user ID to the ID of the last reminder they set, so
	// '!remindme undo' can cancel it. Entries are pruned when the
	// reminder fires.
	undo map[string]string
}

var _ plugin.Plugin = (*Plugin)(nil)

func New() *Plugin {
	return &Plugin{undo: make(map[string]string)}
}

func (p *Plugin) Name() string    { return pluginName }
func (p *Plugin) Version() string { return pluginVersion }

func (p *Plugin) ShortDescription() string {
	return "Schedule reminders and channel messages for later"
}

func (p *Plugin) LongDescription() string {
	return "Provides personal DM reminders, one-shot scheduled channel " +
		"messages and cron-driven recurring channel messages. Pending " +
		"messages survive a bot restart."
}

// Open registers the scheduling commands. The first call also restores
// persisted events and starts the scheduler worker.
func (p *Plugin) Open(h plugin.Host) error {
	p.host = h

	if p.sched == nil {
		p.sched = scheduler.New(h.Messenger(), &configStore{host: h})
		p.sched.SetFiredHook(p.pruneUndo)
		if err := p.sched.LoadOnce(); err != nil {
			return err
		}
		p.sched.Start()
	}

	proc := h.Commands()
	for _, c := range []struct {
		word      string
		handler   command.Handler
		adminOnly bool
		help      string
	}{
		{"remindme", p.remindme, false, remindmeHelp},
		{"reminders", p.reminders, false, remindersHelp},
		{"schedule", p.schedule, true, scheduleHelp},
		{"unschedule", p.unschedule, true, unscheduleHelp},
		{"recurring", p.recurring, true, recurringHelp},
	} {
		if err := proc.AddCommand(c.word, c.handler, c.adminOnly, c.help); err != nil {
			return err
		}
	}
	return nil
}

// Close removes the commands. Already-pending deliveries keep firing.
func (p *Plugin) Close() {
	proc := p.host.Commands()
	for _, word := range []string{"remindme", "reminders", "schedule", "unschedule", "recurring"} {
		proc.RemoveCommand(word)
	}
}

// pruneUndo drops undo bookkeeping for an event that just fired. Runs on
// the scheduler goroutine.
func (p *Plugin) pruneUndo(ev scheduler.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for userID, id := range p.undo {
		if id == ev.ID {
			delete(p.undo, userID)
		}
	}
}

// ---------------------------------------------------------------------------
// Command handlers
// ---------------------------------------------------------------------------

func (p *Plugin) remindme(inv *command.Invocation) string {
	text := strings.TrimSpace(inv.ArgText)
	if text == "" {
		return p.helpFor(inv)
	}

	if strings.EqualFold(text, "undo") {
		return p.undoReminder(inv.Message.AuthorID, inv.Message.AuthorMention)
	}

	payload, timedesc, ok := scheduler.SplitTimeDescription(text)
	if !ok || payload == "" {
		return fmt.Sprintf("%s I couldn't find a time description in there. Try something "+
			"like: %sremindme <message> in <time>", inv.Message.AuthorMention, command.Prefix)
	}

	loc := inv.Proc.Config().TimezoneByUser(inv.Message.AuthorID)
	seconds, ok := scheduler.ParseTimeDescription(timedesc, loc, time.Now())
	if !ok {
		return fmt.Sprintf("%s sorry, I don't understand the time description '%s'",
			inv.Message.AuthorMention, timedesc)
	}
	if seconds <= 0 {
		return fmt.Sprintf("%s that time has already passed!", inv.Message.AuthorMention)
	}
	if seconds < 60 {
		return fmt.Sprintf("%s that's too soon! Give me at least a minute", inv.Message.AuthorMention)
	}

	origin := formatDuration(seconds)
	ev, err := p.sched.AddDirectMessage(float64(seconds)/60.0, payload, inv.Message.AuthorID, origin)
	if err != nil {
		return fmt.Sprintf("%s sorry, I couldn't schedule that right now", inv.Message.AuthorMention)
	}

	p.mu.Lock()
	p.undo[inv.Message.AuthorID] = ev.ID
	p.mu.Unlock()

	return fmt.Sprintf("OK %s, I'll remind you about \"%s\" in %s!",
		inv.Message.AuthorMention, payload, origin)
}

func (p *Plugin) undoReminder(userID, mention string) string {
	p.mu.Lock()
	id, ok := p.undo[userID]
	if ok {
		delete(p.undo, userID)
	}
	p.mu.Unlock()

	if !ok {
		return fmt.Sprintf("%s you have no reminder to undo", mention)
	}

	if err := p.sched.Remove(scheduler.Event{ID: id}); err != nil {
		return fmt.Sprintf("%s that reminder has already fired", mention)
	}
	return fmt.Sprintf("OK %s, your last reminder is cancelled", mention)
}

func (p *Plugin) reminders(inv *command.Invocation) string {
	var mine []scheduler.Event
	for _, ev := range p.sched.EventsOfKind(scheduler.KindDirectMessage) {
		if ev.UserID == inv.Message.AuthorID {
			mine = append(mine, ev)
		}
	}

	if len(mine) == 0 {
		return fmt.Sprintf("%s you have no reminders scheduled", inv.Message.AuthorMention)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s you have %d reminder(s) scheduled:\n```", inv.Message.AuthorMention, len(mine))
	for i, ev := range mine {
		fmt.Fprintf(&b, "\n%d. \"%s\" (fires in %s)", i+1, ev.Text, formatDuration(int64(ev.TimeRemaining().Seconds())))
	}
	b.WriteString("\n```")
	return b.String()
}

func (p *Plugin) schedule(inv *command.Invocation) string {
	text := strings.TrimSpace(inv.ArgText)
	if text == "" {
		return p.listChannelEvents(inv)
	}

	if inv.Message.DM {
		return "This command can only be used in a channel"
	}

	payload, timedesc, ok := scheduler.SplitTimeDescription(text)
	if !ok || payload == "" {
		return fmt.Sprintf("I couldn't find a time description in there. Try something "+
			"like: %sschedule <message> in <time>", command.Prefix)
	}

	loc := inv.Proc.Config().TimezoneByUser(inv.Message.AuthorID)
	seconds, ok := scheduler.ParseTimeDescription(timedesc, loc, time.Now())
	if !ok {
		return fmt.Sprintf("Sorry, I don't understand the time description '%s'", timedesc)
	}
	if seconds <= 0 {
		return "That time has already passed!"
	}
	if seconds < 60 {
		return "That's too soon! Give me at least a minute"
	}

	if _, err := p.sched.AddChannelMessage(float64(seconds)/60.0, payload, inv.Message.ChannelName); err != nil {
		return "Sorry, I couldn't schedule that right now"
	}
	return fmt.Sprintf("OK, I'll send that message here in %s!", formatDuration(seconds))
}

func (p *Plugin) listChannelEvents(inv *command.Invocation) string {
	events := p.channelEvents()
	if len(events) == 0 {
		return "No channel messages are scheduled"
	}

	var b strings.Builder
	b.WriteString("Scheduled channel messages:\n```")
	for i, ev := range events {
		when := fmt.Sprintf("in %s", formatDuration(int64(ev.TimeRemaining().Seconds())))
		if ev.Kind == scheduler.KindRecurringMessage {
			when = fmt.Sprintf("recurring, next in %s", formatDuration(int64(ev.TimeRemaining().Seconds())))
		}
		fmt.Fprintf(&b, "\n%d. #%s: \"%s\" (%s)", i+1, ev.ChannelName, ev.Text, when)
	}
	b.WriteString("\n```")
	return b.String()
}

func (p *Plugin) unschedule(inv *command.Invocation) string {
	arg := strings.TrimSpace(inv.ArgText)
	if arg == "" {
		return p.helpFor(inv)
	}

	events := p.channelEvents()
	if len(events) == 0 {
		return "No channel messages are scheduled"
	}

	if strings.EqualFold(arg, "all") {
		if err := p.sched.Remove(events...); err != nil {
			return "Sorry, I couldn't cancel those right now"
		}
		return fmt.Sprintf("OK, cancelled %d scheduled message(s)", len(events))
	}

	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(events) {
		return fmt.Sprintf("'%s' is not a valid entry number (see '%sschedule' for the list)",
			arg, command.Prefix)
	}

	if err := p.sched.Remove(events[n-1]); err != nil {
		return "That message has already been sent"
	}
	return fmt.Sprintf("OK, cancelled scheduled message %d", n)
}

func (p *Plugin) recurring(inv *command.Invocation) string {
	text := strings.TrimSpace(inv.ArgText)
	if text == "" {
		return p.helpFor(inv)
	}

	if inv.Message.DM {
		return "This command can only be used in a channel"
	}

	if !strings.HasPrefix(text, "\"") {
		return fmt.Sprintf("The cron expression must be double-quoted, like: "+
			"%srecurring \"0 9 * * mon\" Good morning!", command.Prefix)
	}

	end := strings.Index(text[1:], "\"")
	if end < 0 {
		return "Missing closing quote on the cron expression"
	}

	cronExpr := text[1 : end+1]
	message := strings.TrimSpace(text[end+2:])
	if message == "" {
		return "The recurring message text is missing"
	}

	if _, err := p.sched.AddRecurring(cronExpr, message, inv.Message.ChannelName); err != nil {
		return fmt.Sprintf("'%s' doesn't look like a valid cron expression", cronExpr)
	}
	return fmt.Sprintf("OK, I'll send that message here on \"%s\"!", cronExpr)
}

func (p *Plugin) channelEvents() []scheduler.Event {
	var out []scheduler.Event
	for _, ev := range p.sched.Events() {
		if ev.Kind != scheduler.KindDirectMessage {
			out = append(out, ev)
		}
	}
	return out
}

func (p *Plugin) helpFor(inv *command.Invocation) string {
	if c, ok := inv.Proc.Lookup(inv.Word); ok {
		return c.Help()
	}
	return ""
}

// ---------------------------------------------------------------------------
// Persistence
// ---------------------------------------------------------------------------

// configStore keeps the pending list in the config's plugin-data
// namespace, so it rides along with the normal debounced config save.
type configStore struct {
	host plugin.Host
}

type storedEvents struct {
	Events []scheduler.Record `yaml:"events"`
}

func (s *configStore) Save(records []scheduler.Record) error {
	if err := s.host.Config().SetPluginData(pluginDataKey, storedEvents{Events: records}); err != nil {
		return err
	}
	s.host.Config().Save()
	return nil
}

func (s *configStore) Load() ([]scheduler.Record, bool, error) {
	var stored storedEvents
	ok, err := s.host.Config().GetPluginData(pluginDataKey, &stored)
	if err != nil {
		return nil, false, err
	}
	return stored.Events, ok, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// formatDuration renders a second count as the largest applicable units,
// e.g. "2 hours 30 minutes".
func formatDuration(seconds int64) string {
	if seconds <= 0 {
		return "0 seconds"
	}

	units := []struct {
		name string
		size int64
	}{
		{"week", 604800},
		{"day", 86400},
		{"hour", 3600},
		{"minute", 60},
		{"second", 1},
	}

	var parts []string
	for _, u := range units {
		if n := seconds / u.size; n > 0 {
			label := u.name
			if n != 1 {
				label += "s"
			}
			parts = append(parts, fmt.Sprintf("%d %s", n, label))
			seconds -= n * u.size
		}
	}
	return strings.Join(parts, " ")
}
