package command

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grvsrs/hostbot/pkg/config"
	"github.com/grvsrs/hostbot/pkg/events"
	"github.com/grvsrs/hostbot/pkg/logger"
)

// ErrDuplicateCommand is returned when a command word is registered
// twice. Duplicate registration is a plugin defect, not a runtime
// condition.
var ErrDuplicateCommand = errors.New("command: word already registered")

// historyWord is the log-inspection command; its own invocations are not
// logged so it cannot pollute its own output.
const historyWord = "cmdhistory"

// logFlushThreshold is how many buffered log lines trigger a flush.
const logFlushThreshold = 10

// Processor owns the command table and the invocation log.
type Processor struct {
	cfg *config.Manager
	bus *events.Bus

	mu   sync.Mutex
	cmds map[string]*Command

	// logFilename is empty when the configured path was not writable at
	// startup; logging is then skipped entirely.
	logFilename string
	logBuf      []string
}

// NewProcessor creates a processor with the given initial command set.
// If the configured command-log path cannot be opened for append,
// logging is disabled rather than failing startup.
func NewProcessor(cfg *config.Manager, bus *events.Bus, commands []*Command) (*Processor, error) {
	p := &Processor{
		cfg:  cfg,
		bus:  bus,
		cmds: make(map[string]*Command),
	}

	for _, c := range commands {
		if err := p.AddCommand(c.Word, c.Handler, c.AdminOnly, c.HelpText); err != nil {
			return nil, err
		}
	}

	if path := cfg.Config().CommandLogFile; path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			logger.WarnCF("command", "command log disabled, path not writable", map[string]interface{}{
				"file": path, "error": err.Error(),
			})
		} else {
			f.Close()
			p.logFilename = path
		}
	}

	return p, nil
}

// AddCommand registers a new command word. Adding a word that already
// exists is an error.
func (p *Processor) AddCommand(word string, handler Handler, adminOnly bool, helptext string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := strings.ToLower(word)
	if _, exists := p.cmds[key]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateCommand, key)
	}

	p.cmds[key] = &Command{
		Word:      key,
		Handler:   handler,
		AdminOnly: adminOnly,
		HelpText:  helptext,
	}
	return nil
}

// RemoveCommand unregisters a command word. Removing an absent word is a
// no-op.
func (p *Processor) RemoveCommand(word string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cmds, strings.ToLower(word))
}

// Lookup returns the registered command for a word.
func (p *Processor) Lookup(word string) (*Command, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.cmds[strings.ToLower(word)]
	return c, ok
}

// ProcessCommand parses command text and runs the matching handler.
// handled is false when the text does not start with the command prefix;
// that path belongs to ProcessMessage-style passive handling instead.
// Every anticipated bad input — unknown word, missing permissions —
// produces response text, never an error.
func (p *Processor) ProcessCommand(msg MessageData, text string) (response string, handled bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, Prefix) {
		return "", false
	}

	// Exactly one prefix is stripped; "!!help" is the unknown word
	// "!help", not a sloppy spelling of "!help".
	body := strings.TrimSpace(strings.TrimPrefix(text, Prefix))
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return "", false
	}

	word := strings.ToLower(fields[0])
	msg.IsAdmin = p.cfg.IsAdmin(msg.AuthorID)

	cmd, ok := p.Lookup(word)
	if !ok {
		return fmt.Sprintf("Sorry, I don't recognize the command '%s'", word), true
	}

	if cmd.AdminOnly && !msg.IsAdmin {
		return fmt.Sprintf("Sorry %s, this command can only be used by admin users "+
			"(use '%shelp' to see the commands available to you)",
			msg.AuthorMention, Prefix), true
	}

	if word != historyWord {
		p.logInvocation(msg, text)
	}

	p.bus.Emit(events.CommandReceived, word, msg)

	inv := &Invocation{
		Word:    word,
		Args:    fields[1:],
		ArgText: strings.TrimSpace(strings.TrimPrefix(body, fields[0])),
		Message: msg,
		Proc:    p,
	}
	return cmd.Handler(inv), true
}

// Help returns a listing of all registered commands, one line each.
// Admin-only commands are omitted when includeAdmin is false.
func (p *Processor) Help(includeAdmin bool) string {
	p.mu.Lock()
	words := make([]string, 0, len(p.cmds))
	for w := range p.cmds {
		words = append(words, w)
	}
	p.mu.Unlock()

	sort.Strings(words)

	var lines []string
	for _, w := range words {
		c, ok := p.Lookup(w)
		if !ok || (c.AdminOnly && !includeAdmin) {
			continue
		}
		lines = append(lines, c.HelpOneline())
	}
	return "Available commands:\n```" + strings.Join(lines, "\n") + "```"
}

// Config exposes the config collaborator to handlers.
func (p *Processor) Config() *config.Manager { return p.cfg }

// Bus exposes the event bus to handlers.
func (p *Processor) Bus() *events.Bus { return p.bus }

// Close flushes any buffered log lines.
func (p *Processor) Close() {
	logger.InfoC("command", "stopping")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushLogLocked()
}

// ---------------------------------------------------------------------------
// Invocation log
// ---------------------------------------------------------------------------

func (p *Processor) logInvocation(msg MessageData, text string) {
	if p.logFilename == "" {
		return
	}

	timestamp := time.Now().UTC().Format("01/02/2006 15:04:05")
	line := fmt.Sprintf("[%s] [%s (%s)] %s", timestamp, msg.AuthorName, msg.AuthorID, text)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.logBuf = append(p.logBuf, line)
	if len(p.logBuf) >= logFlushThreshold {
		p.flushLogLocked()
	}
}

// flushLogLocked appends the buffer to the log file. Caller holds p.mu.
func (p *Processor) flushLogLocked() {
	if p.logFilename == "" || len(p.logBuf) == 0 {
		return
	}

	f, err := os.OpenFile(p.logFilename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logger.ErrorCF("command", "open command log failed", map[string]interface{}{
			"file": p.logFilename, "error": err.Error(),
		})
		return
	}
	defer f.Close()

	if _, err := f.WriteString(strings.Join(p.logBuf, "\n") + "\n"); err != nil {
		logger.ErrorCF("command", "append command log failed", map[string]interface{}{
			"file": p.logFilename, "error": err.Error(),
		})
		return
	}
	p.logBuf = nil
}

// History returns the most recent `last` log lines, combining on-disk
// content with the not-yet-flushed buffer. It never forces a flush. A
// nil return means logging is disabled.
func (p *Processor) History(last int) []string {
	if p.logFilename == "" || last <= 0 {
		return nil
	}

	p.mu.Lock()
	buffered := make([]string, len(p.logBuf))
	copy(buffered, p.logBuf)
	p.mu.Unlock()

	if len(buffered) >= last {
		return buffered[len(buffered)-last:]
	}

	fromFile := last - len(buffered)
	data, err := os.ReadFile(p.logFilename)
	if err != nil {
		return buffered
	}

	fileLines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(fileLines) == 1 && fileLines[0] == "" {
		fileLines = nil
	}
	if len(fileLines) > fromFile {
		fileLines = fileLines[len(fileLines)-fromFile:]
	}
	return append(fileLines, buffered...)
}
