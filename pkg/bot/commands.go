package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grvsrs/hostbot/pkg/command"
	"github.com/grvsrs/hostbot/pkg/config"
	"github.com/grvsrs/hostbot/pkg/scheduler"
)

const helpHelp = `{0} [command]

Show the list of available commands, or detailed help for one command.

Examples:

@BotName !{0}
@BotName !{0} remindme`

const cmdhistoryHelp = `{0} [count]

Show the most recent command invocations, newest last. The default
count is 25.

Examples:

@BotName !{0}
@BotName !{0} 50`

const pluginsHelp = `{0} [name]

List all plugins and whether they are enabled, or show the full
description of one plugin.

Examples:

@BotName !{0}
@BotName !{0} schedule`

const plugsonHelp = `{0} <name> [name ...]

Enable one or more plugins. Enabling an already-enabled plugin does
nothing.

Examples:

@BotName !{0} schedule quotes`

const plugsoffHelp = `{0} <name> [name ...]

Disable one or more plugins. Disabling an already-disabled plugin does
nothing.

Examples:

@BotName !{0} mock`

const sayHelp = `{0} <message>

Send a message to the announcements channel as the bot.

Examples:

@BotName !{0} hello everyone!`

const announcechannelHelp = `{0} [channel name]

Show or change the channel used for stream announcements and the
startup message.

Examples:

@BotName !{0}
@BotName !{0} general`

const streamersHelp = `{0}

List the streamers currently being monitored for stream announcements.

Examples:

@BotName !{0}`

const addstreamersHelp = `{0} <name> [name ...]

Add one or more streamers to the monitored list.

Examples:

@BotName !{0} ninja shroud`

const removestreamersHelp = `{0} <name> [name ...]

Remove one or more streamers from the monitored list.

Examples:

@BotName !{0} ninja`

const nocompetitionHelp = `{0} [on|off]

Show or change competition silence. While on, no stream announcements
are made whenever the host streamer is live.

Examples:

@BotName !{0}
@BotName !{0} on`

const timezoneHelp = `{0} <timezone>

Set your timezone, used when you give absolute times to scheduling
commands. Accepts IANA names and loose spellings.

Examples:

@BotName !{0} Europe/London
@BotName !{0} america new york`

func (b *Bot) builtinCommands() []*command.Command {
	return []*command.Command{
		{Word: "help", Handler: b.cmdHelp, HelpText: helpHelp},
		{Word: "cmdhistory", Handler: b.cmdHistory, AdminOnly: true, HelpText: cmdhistoryHelp},
		{Word: "plugins", Handler: b.cmdPlugins, HelpText: pluginsHelp},
		{Word: "plugson", Handler: b.cmdPlugsOn, AdminOnly: true, HelpText: plugsonHelp},
		{Word: "plugsoff", Handler: b.cmdPlugsOff, AdminOnly: true, HelpText: plugsoffHelp},
		{Word: "say", Handler: b.cmdSay, AdminOnly: true, HelpText: sayHelp},
		{Word: "announcechannel", Handler: b.cmdAnnounceChannel, AdminOnly: true, HelpText: announcechannelHelp},
		{Word: "streamers", Handler: b.cmdStreamers, HelpText: streamersHelp},
		{Word: "addstreamers", Handler: b.cmdAddStreamers, AdminOnly: true, HelpText: addstreamersHelp},
		{Word: "removestreamers", Handler: b.cmdRemoveStreamers, AdminOnly: true, HelpText: removestreamersHelp},
		{Word: "nocompetition", Handler: b.cmdNoCompetition, AdminOnly: true, HelpText: nocompetitionHelp},
		{Word: "timezone", Handler: b.cmdTimezone, HelpText: timezoneHelp},
	}
}

// writeRefusal is the response for config-mutating commands invoked
// inside the write cooldown window. Empty means the write may proceed.
func (b *Bot) writeRefusal() string {
	if b.cfg.WriteAllowed() {
		return ""
	}
	return fmt.Sprintf("Slow down! I only save config changes once every %d seconds. Try again in a bit.",
		b.cfg.WriteDelaySeconds())
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (b *Bot) cmdHelp(inv *command.Invocation) string {
	word := strings.TrimSpace(inv.ArgText)
	if word == "" {
		return b.proc.Help(inv.Message.IsAdmin)
	}

	word = strings.TrimPrefix(word, command.Prefix)
	c, ok := b.proc.Lookup(word)
	if !ok || (c.AdminOnly && !inv.Message.IsAdmin) {
		return fmt.Sprintf("Sorry, I don't recognize the command '%s'", word)
	}
	return c.Help()
}

func (b *Bot) cmdHistory(inv *command.Invocation) string {
	count := 25
	if arg := strings.TrimSpace(inv.ArgText); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return fmt.Sprintf("'%s' is not a valid count", arg)
		}
		count = n
	}

	lines := b.proc.History(count)
	if lines == nil {
		return "Command logging is not enabled"
	}
	if len(lines) == 0 {
		return "No commands have been logged yet"
	}
	return "```" + strings.Join(lines, "\n") + "```"
}

func (b *Bot) cmdPlugins(inv *command.Invocation) string {
	if name := strings.TrimSpace(inv.ArgText); name != "" {
		p, ok := b.plugins.PluginByName(name)
		if !ok {
			return fmt.Sprintf("There is no plugin called '%s'", name)
		}
		state := "disabled"
		if b.plugins.IsEnabled(p.Name()) {
			state = "enabled"
		}
		return fmt.Sprintf("```%s %s (%s)\n\n%s```", p.Name(), p.Version(), state, p.LongDescription())
	}

	var lines []string
	for _, p := range b.plugins.EnabledPlugins() {
		lines = append(lines, fmt.Sprintf("[on]  %-12s : %s", p.Name(), p.ShortDescription()))
	}
	for _, p := range b.plugins.DisabledPlugins() {
		lines = append(lines, fmt.Sprintf("[off] %-12s : %s", p.Name(), p.ShortDescription()))
	}
	if len(lines) == 0 {
		return "No plugins are registered"
	}
	return "Plugins:\n```" + strings.Join(lines, "\n") + "```"
}

func (b *Bot) cmdPlugsOn(inv *command.Invocation) string {
	if len(inv.Args) == 0 {
		return b.helpFor(inv)
	}
	for _, name := range inv.Args {
		if !b.plugins.IsValidPluginName(name) {
			return fmt.Sprintf("There is no plugin called '%s'", name)
		}
	}
	if refusal := b.writeRefusal(); refusal != "" {
		return refusal
	}

	if err := b.plugins.Enable(inv.Args...); err != nil {
		return fmt.Sprintf("Sorry, that didn't work: %v", err)
	}
	b.cfg.Update(func(c *config.BotConfig) {
		c.EnabledPlugins = enabledNames(b)
	})
	return fmt.Sprintf("OK, enabled: %s", strings.Join(inv.Args, ", "))
}

func (b *Bot) cmdPlugsOff(inv *command.Invocation) string {
	if len(inv.Args) == 0 {
		return b.helpFor(inv)
	}
	for _, name := range inv.Args {
		if !b.plugins.IsValidPluginName(name) {
			return fmt.Sprintf("There is no plugin called '%s'", name)
		}
	}
	if refusal := b.writeRefusal(); refusal != "" {
		return refusal
	}

	if err := b.plugins.Disable(inv.Args...); err != nil {
		return fmt.Sprintf("Sorry, that didn't work: %v", err)
	}
	b.cfg.Update(func(c *config.BotConfig) {
		c.EnabledPlugins = enabledNames(b)
	})
	return fmt.Sprintf("OK, disabled: %s", strings.Join(inv.Args, ", "))
}

func enabledNames(b *Bot) []string {
	var names []string
	for _, p := range b.plugins.EnabledPlugins() {
		names = append(names, p.Name())
	}
	return names
}

func (b *Bot) cmdSay(inv *command.Invocation) string {
	text := strings.TrimSpace(inv.ArgText)
	if text == "" {
		return b.helpFor(inv)
	}

	channel := b.cfg.Config().AnnounceChannel
	if channel == "" {
		return "No announcements channel is configured (see '!announcechannel')"
	}
	if err := b.SendChannelMessage(channel, text); err != nil {
		return fmt.Sprintf("Sorry, I couldn't send that: %v", err)
	}
	return fmt.Sprintf("OK, sent to #%s", channel)
}

func (b *Bot) cmdAnnounceChannel(inv *command.Invocation) string {
	name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(inv.ArgText), "#"))
	if name == "" {
		current := b.cfg.Config().AnnounceChannel
		if current == "" {
			return "No announcements channel is set"
		}
		return fmt.Sprintf("The announcements channel is #%s", current)
	}

	if !b.HasChannel(name) {
		return fmt.Sprintf("I can't see a channel called '%s'", name)
	}
	if refusal := b.writeRefusal(); refusal != "" {
		return refusal
	}

	b.cfg.Update(func(c *config.BotConfig) {
		c.AnnounceChannel = name
	})
	return fmt.Sprintf("OK, announcements will go to #%s", name)
}

func (b *Bot) cmdStreamers(inv *command.Invocation) string {
	if b.monitor == nil {
		return "Stream monitoring is not configured"
	}

	names := b.monitor.Usernames()
	if len(names) == 0 {
		return "No streamers are being monitored"
	}
	return fmt.Sprintf("Monitored streamers: %s", strings.Join(names, ", "))
}

func (b *Bot) cmdAddStreamers(inv *command.Invocation) string {
	if b.monitor == nil {
		return "Stream monitoring is not configured"
	}
	if len(inv.Args) == 0 {
		return b.helpFor(inv)
	}
	if refusal := b.writeRefusal(); refusal != "" {
		return refusal
	}

	b.monitor.AddUsernames(inv.Args)
	names := b.monitor.Usernames()
	b.cfg.Update(func(c *config.BotConfig) {
		c.StreamersToMonitor = names
	})
	return fmt.Sprintf("OK, now monitoring: %s", strings.Join(names, ", "))
}

func (b *Bot) cmdRemoveStreamers(inv *command.Invocation) string {
	if b.monitor == nil {
		return "Stream monitoring is not configured"
	}
	if len(inv.Args) == 0 {
		return b.helpFor(inv)
	}
	if refusal := b.writeRefusal(); refusal != "" {
		return refusal
	}

	b.monitor.RemoveUsernames(inv.Args)
	names := b.monitor.Usernames()
	b.cfg.Update(func(c *config.BotConfig) {
		c.StreamersToMonitor = names
	})
	if len(names) == 0 {
		return "OK, the monitored list is now empty"
	}
	return fmt.Sprintf("OK, now monitoring: %s", strings.Join(names, ", "))
}

func (b *Bot) cmdNoCompetition(inv *command.Invocation) string {
	arg := strings.ToLower(strings.TrimSpace(inv.ArgText))
	if arg == "" {
		if b.cfg.Config().SilentWhenHostStreaming {
			return "Competition silence is ON: no announcements while the host is live"
		}
		return "Competition silence is OFF"
	}

	var value bool
	switch arg {
	case "on":
		value = true
	case "off":
		value = false
	default:
		return fmt.Sprintf("'%s' should be 'on' or 'off'", arg)
	}

	if refusal := b.writeRefusal(); refusal != "" {
		return refusal
	}
	b.cfg.Update(func(c *config.BotConfig) {
		c.SilentWhenHostStreaming = value
	})
	if value {
		return "OK, I'll keep quiet while the host is streaming"
	}
	return "OK, I'll announce streams even while the host is streaming"
}

func (b *Bot) cmdTimezone(inv *command.Invocation) string {
	name := strings.TrimSpace(inv.ArgText)
	if name == "" {
		return b.helpFor(inv)
	}

	loc, ok := scheduler.FindTimezone(name)
	if !ok {
		return fmt.Sprintf("Sorry, I don't recognize the timezone '%s'", name)
	}
	if refusal := b.writeRefusal(); refusal != "" {
		return refusal
	}

	b.cfg.SetTimezone(inv.Message.AuthorID, loc.String())
	return fmt.Sprintf("OK %s, your timezone is now %s", inv.Message.AuthorMention, loc.String())
}

func (b *Bot) helpFor(inv *command.Invocation) string {
	if c, ok := b.proc.Lookup(inv.Word); ok {
		return c.Help()
	}
	return ""
}
