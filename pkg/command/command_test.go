package command

import (
	"strings"
	"testing"
)

const sampleHelp = `{0} <message> in <time>

Set a reminder to be delivered later.

Examples:

@BotName !{0} walk the dog in 2 hours`

// TestHelpSubstitutesWord verifies the {0} placeholder expands to the
// command word.
func TestHelpSubstitutesWord(t *testing.T) {
	c := &Command{Word: "remindme", HelpText: sampleHelp}

	help := c.Help()
	if strings.Contains(help, "{0}") {
		t.Error("placeholder left unexpanded")
	}
	if !strings.Contains(help, "remindme <message> in <time>") {
		t.Errorf("usage line missing from:\n%s", help)
	}
	if !strings.HasPrefix(help, "```") || !strings.HasSuffix(help, "```") {
		t.Error("help is not fenced")
	}
}

// TestHelpOneline verifies padding, the summary extraction, and the
// 80-character truncation.
func TestHelpOneline(t *testing.T) {
	tests := []struct {
		name       string
		word       string
		helptext   string
		wantPrefix string
		wantLen    int
	}{
		{
			name:       "short word padded to 20",
			word:       "quote",
			helptext:   "{0}\n\nShow a quote.",
			wantPrefix: "quote" + strings.Repeat(" ", 15) + " : Show a quote.",
		},
		{
			name:       "long word gets one space",
			word:       "averyverylongcommandword",
			helptext:   "{0}\n\nDoes things.",
			wantPrefix: "averyverylongcommandword  : Does things.",
		},
		{
			name:     "overlong line truncated",
			word:     "wordy",
			helptext: "{0}\n\n" + strings.Repeat("long summary ", 20),
			wantLen:  80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Command{Word: tt.word, HelpText: tt.helptext}
			line := c.HelpOneline()

			if tt.wantPrefix != "" && line != tt.wantPrefix {
				t.Errorf("got %q, want %q", line, tt.wantPrefix)
			}
			if tt.wantLen > 0 {
				if len(line) != tt.wantLen {
					t.Errorf("line length = %d, want %d", len(line), tt.wantLen)
				}
				if !strings.HasSuffix(line, " ...") {
					t.Errorf("truncated line missing ellipsis: %q", line)
				}
			}
		})
	}
}

// TestSummaryExtraction verifies the summary is the paragraph after the
// usage block, joined onto one line.
func TestSummaryExtraction(t *testing.T) {
	c := &Command{Word: "x", HelpText: "{0} usage line one\n{0} usage line two\n\nFirst summary line\nsecond summary line\n\nIgnored paragraph."}

	if got, want := c.summary(), "First summary line second summary line"; got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}
}
