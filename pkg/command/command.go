// Package command implements the bot's command grammar: recognizing a
// reserved-prefix command word in inbound text, enforcing admin gating,
// dispatching to registered handlers, generating help text, and keeping
// a rolling command-invocation log.
package command

import (
	"strings"
)

// Prefix is the reserved character that marks a message as a command.
const Prefix = "!"

// MessageData carries the author and channel context of a received
// command into its handler.
type MessageData struct {
	Transport   string
	ChannelID   string
	ChannelName string
	AuthorID    string
	AuthorName  string
	// AuthorMention is the platform's inline-mention syntax for the
	// author, used in responses addressed back to them.
	AuthorMention string
	IsAdmin       bool
	DM            bool
}

// Invocation is everything a handler receives for one command: the
// parsed word and arguments, the message context, and the collaborators
// handlers commonly need.
type Invocation struct {
	Word    string
	Args    []string
	Message MessageData

	// ArgText is the raw argument text after the command word.
	ArgText string

	Proc *Processor
}

// Handler executes one command and returns the response text to deliver.
// An empty return means no reply is sent. User-input problems are
// reported as response text, never as errors.
type Handler func(inv *Invocation) string

// Command is a single registered command word.
type Command struct {
	Word      string
	Handler   Handler
	AdminOnly bool
	// HelpText is a template where "{0}" stands for the command word.
	// Its first non-blank paragraph after the first blank line is used
	// as the one-line summary in help listings.
	HelpText string
}

// Help returns the full help text for the command, fenced for chat
// display.
func (c *Command) Help() string {
	return "```" + strings.ReplaceAll(c.HelpText, "{0}", c.Word) + "```"
}

// HelpOneline returns a fixed-width listing line: the command word padded
// to 20 characters, then a truncated one-line summary.
func (c *Command) HelpOneline() string {
	summary := c.summary()

	padding := 1
	if len(c.Word) < 20 {
		padding = 20 - len(c.Word)
	}

	line := c.Word + strings.Repeat(" ", padding) + " : " + summary
	if len(line) > 80 {
		line = line[:76] + " ..."
	}
	return line
}

// summary extracts the first non-blank paragraph after the first blank
// line of the help template.
func (c *Command) summary() string {
	lines := strings.Split(c.HelpText, "\n")

	// Skip leading blanks, then the usage paragraph, then blanks.
	i := 0
	skipBlanks := func() {
		for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			i++
		}
	}
	skipBlanks()
	for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
		i++
	}
	skipBlanks()

	var words []string
	for ; i < len(lines) && strings.TrimSpace(lines[i]) != ""; i++ {
		words = append(words, strings.TrimSpace(lines[i]))
	}
	return strings.Join(words, " ")
}
