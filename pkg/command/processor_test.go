package command

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grvsrs/hostbot/pkg/config"
	"github.com/grvsrs/hostbot/pkg/events"
)

func newTestProcessor(t *testing.T, logFile string) *Processor {
	t.Helper()

	cfg := config.NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	t.Cleanup(cfg.Stop)
	cfg.Update(func(c *config.BotConfig) {
		c.AdminUsers = []string{"admin1"}
		c.CommandLogFile = logFile
	})

	p, err := NewProcessor(cfg, events.NewBus(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func echoHandler(inv *Invocation) string {
	return "echo:" + inv.ArgText
}

const echoHelp = `{0} <text>

Echo the arguments back.

Examples:

@BotName !{0} hello`

// TestDuplicateCommandRejected verifies registering a word twice fails.
func TestDuplicateCommandRejected(t *testing.T) {
	p := newTestProcessor(t, "")

	if err := p.AddCommand("echo", echoHandler, false, echoHelp); err != nil {
		t.Fatal(err)
	}
	if err := p.AddCommand("Echo", echoHandler, false, echoHelp); err == nil {
		t.Fatal("expected an error for a duplicate word")
	}
}

// TestRemoveUnknownCommand verifies removal of an absent word is a
// no-op.
func TestRemoveUnknownCommand(t *testing.T) {
	p := newTestProcessor(t, "")
	p.RemoveCommand("nothing")

	if err := p.AddCommand("echo", echoHandler, false, echoHelp); err != nil {
		t.Fatal(err)
	}
	p.RemoveCommand("echo")
	if _, ok := p.Lookup("echo"); ok {
		t.Fatal("command still registered after removal")
	}
}

// TestProcessCommand exercises the parse/dispatch paths.
func TestProcessCommand(t *testing.T) {
	p := newTestProcessor(t, "")
	if err := p.AddCommand("echo", echoHandler, false, echoHelp); err != nil {
		t.Fatal(err)
	}
	if err := p.AddCommand("secret", func(inv *Invocation) string { return "granted" }, true, echoHelp); err != nil {
		t.Fatal(err)
	}

	user := MessageData{AuthorID: "u1", AuthorName: "dave", AuthorMention: "@dave"}
	admin := MessageData{AuthorID: "admin1", AuthorName: "boss", AuthorMention: "@boss"}

	tests := []struct {
		name        string
		msg         MessageData
		text        string
		wantHandled bool
		wantContain string
	}{
		{"not a command", user, "just chatting", false, ""},
		{"bare prefix", user, "!", false, ""},
		{"dispatch with args", user, "!echo hello world", true, "echo:hello world"},
		{"case insensitive word", user, "!ECHO hi", true, "echo:hi"},
		{"doubled prefix is unknown", user, "!!echo hi", true, "don't recognize the command '!echo'"},
		{"space after prefix", user, "! echo hello", true, "echo:hello"},
		{"unknown word", user, "!nope", true, "don't recognize the command 'nope'"},
		{"admin refusal", user, "!secret", true, "'!help'"},
		{"admin allowed", admin, "!secret", true, "granted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, handled := p.ProcessCommand(tt.msg, tt.text)
			if handled != tt.wantHandled {
				t.Fatalf("handled = %v, want %v", handled, tt.wantHandled)
			}
			if tt.wantContain != "" && !strings.Contains(resp, tt.wantContain) {
				t.Errorf("response %q does not contain %q", resp, tt.wantContain)
			}
		})
	}
}

// TestCommandReceivedEvent verifies dispatch emits the bus event with
// the parsed word.
func TestCommandReceivedEvent(t *testing.T) {
	p := newTestProcessor(t, "")
	if err := p.AddCommand("echo", echoHandler, false, echoHelp); err != nil {
		t.Fatal(err)
	}

	var gotWord string
	p.Bus().Subscribe(events.CommandReceived, func(args ...interface{}) events.Result {
		if len(args) > 0 {
			gotWord, _ = args[0].(string)
		}
		return events.Continue
	}, false)

	p.ProcessCommand(MessageData{AuthorID: "u1"}, "!echo hi")
	if gotWord != "echo" {
		t.Fatalf("event word = %q, want %q", gotWord, "echo")
	}
}

// TestHelpHidesAdminCommands verifies the listing respects admin
// visibility.
func TestHelpHidesAdminCommands(t *testing.T) {
	p := newTestProcessor(t, "")
	p.AddCommand("echo", echoHandler, false, echoHelp)
	p.AddCommand("secret", echoHandler, true, echoHelp)

	userHelp := p.Help(false)
	if strings.Contains(userHelp, "secret") {
		t.Error("non-admin help lists an admin command")
	}
	if !strings.Contains(userHelp, "echo") {
		t.Error("non-admin help is missing a public command")
	}

	adminHelp := p.Help(true)
	if !strings.Contains(adminHelp, "secret") {
		t.Error("admin help is missing an admin command")
	}
}

// TestHistoryBuffering verifies log lines buffer until the flush
// threshold and History merges file and buffer without flushing.
func TestHistoryBuffering(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "commands.log")
	p := newTestProcessor(t, logFile)
	p.AddCommand("echo", echoHandler, false, echoHelp)

	msg := MessageData{AuthorID: "u1", AuthorName: "dave"}
	for i := 0; i < 3; i++ {
		p.ProcessCommand(msg, "!echo buffered")
	}

	// Below the threshold, nothing has hit the disk yet.
	if data, err := os.ReadFile(logFile); err == nil && len(data) > 0 {
		t.Errorf("log flushed early: %q", data)
	}

	lines := p.History(10)
	if len(lines) != 3 {
		t.Fatalf("history = %d lines, want 3", len(lines))
	}
	if !strings.Contains(lines[0], "dave (u1)") || !strings.Contains(lines[0], "!echo buffered") {
		t.Errorf("unexpected history line: %q", lines[0])
	}

	// Reaching the threshold flushes.
	for i := 0; i < 7; i++ {
		p.ProcessCommand(msg, "!echo more")
	}
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(strings.Split(strings.TrimSpace(string(data)), "\n")); got != 10 {
		t.Errorf("flushed %d lines, want 10", got)
	}

	// History still shows the most recent entries.
	lines = p.History(5)
	if len(lines) != 5 {
		t.Fatalf("history after flush = %d lines, want 5", len(lines))
	}
}

// TestHistoryDisabled verifies History is nil when no log file is
// configured.
func TestHistoryDisabled(t *testing.T) {
	p := newTestProcessor(t, "")
	if p.History(10) != nil {
		t.Fatal("expected nil history when logging is disabled")
	}
}

// TestCmdhistoryNotSelfLogged verifies the history command doesn't
// pollute its own output.
func TestCmdhistoryNotSelfLogged(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "commands.log")
	p := newTestProcessor(t, logFile)
	p.AddCommand("echo", echoHandler, false, echoHelp)
	p.AddCommand("cmdhistory", func(inv *Invocation) string { return "history" }, true, echoHelp)

	admin := MessageData{AuthorID: "admin1", AuthorName: "boss"}
	p.ProcessCommand(admin, "!echo hello")
	p.ProcessCommand(admin, "!cmdhistory")

	lines := p.History(10)
	if len(lines) != 1 {
		t.Fatalf("history = %d lines, want 1", len(lines))
	}
	if strings.Contains(lines[0], "cmdhistory") {
		t.Errorf("history recorded its own invocation: %q", lines[0])
	}
}
