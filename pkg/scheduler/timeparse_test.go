package scheduler

import (
	"testing"
	"time"
)

// TestSplitTimeDescription verifies payload/time splitting on the
// recognized separators.
func TestSplitTimeDescription(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantPayload  string
		wantTimedesc string
		wantOK       bool
	}{
		{"in separator", "walk the dog in 2 hours", "walk the dog", "2 hours", true},
		{"on separator", "dentist on 22/06/2026 14:30", "dentist", "22/06/2026 14:30", true},
		{"at separator", "meeting at 15:00 22/06/2026", "meeting", "15:00 22/06/2026", true},
		{"first separator wins", "check in on the project in 5 minutes", "check", "on the project in 5 minutes", true},
		{"no separator", "no time here", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, timedesc, ok := SplitTimeDescription(tt.text)
			if ok != tt.wantOK || payload != tt.wantPayload || timedesc != tt.wantTimedesc {
				t.Errorf("got (%q, %q, %v), want (%q, %q, %v)",
					payload, timedesc, ok, tt.wantPayload, tt.wantTimedesc, tt.wantOK)
			}
		})
	}
}

// TestParseRelative verifies free-form duration parsing.
func TestParseRelative(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantSeconds int64
		wantOK      bool
	}{
		{"spelled out", "2 hours and 3 minutes", 7380, true},
		{"compact", "2hrs3mins", 7380, true},
		{"comma separated", "1 hour, 30 minutes", 5400, true},
		{"ampersand", "1 day & 2 hours", 93600, true},
		{"single unit", "45 seconds", 45, true},
		{"week shorthand", "1w", 604800, true},
		{"bare number", "5", 0, false},
		{"unknown unit", "3 fortnights", 0, false},
		{"trailing junk", "5 minutes please", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seconds, ok := ParseRelative(tt.text)
			if ok != tt.wantOK || seconds != tt.wantSeconds {
				t.Errorf("got (%d, %v), want (%d, %v)", seconds, ok, tt.wantSeconds, tt.wantOK)
			}
		})
	}
}

// TestParseAbsolute verifies the four fixed layouts and timezone
// localization.
func TestParseAbsolute(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		text        string
		wantSeconds int64
		wantOK      bool
	}{
		{"day first", "02/06/2026 12:00", 86400, true},
		{"year first", "2026/06/02 12:00", 86400, true},
		{"time then date", "12:00 02/06/2026", 86400, true},
		{"time then year-first date", "12:00 2026/06/02", 86400, true},
		{"past time is negative", "31/05/2026 12:00", -86400, true},
		{"not a date", "next tuesday", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seconds, ok := ParseAbsolute(tt.text, nil, now)
			if ok != tt.wantOK || seconds != tt.wantSeconds {
				t.Errorf("got (%d, %v), want (%d, %v)", seconds, ok, tt.wantSeconds, tt.wantOK)
			}
		})
	}
}

// TestParseAbsoluteLocalized verifies the location shifts the result.
func TestParseAbsoluteLocalized(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	utcSeconds, ok := ParseAbsolute("02/06/2026 12:00", nil, now)
	if !ok {
		t.Fatal("UTC parse failed")
	}
	nySeconds, ok := ParseAbsolute("02/06/2026 12:00", loc, now)
	if !ok {
		t.Fatal("localized parse failed")
	}

	// New York is 4 hours behind UTC in June.
	if nySeconds-utcSeconds != 4*3600 {
		t.Errorf("offset = %d seconds, want %d", nySeconds-utcSeconds, 4*3600)
	}
}

// TestParseTimeDescriptionPrefersRelative verifies relative form wins
// before the absolute layouts are tried.
func TestParseTimeDescriptionPrefersRelative(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	seconds, ok := ParseTimeDescription("90 minutes", nil, now)
	if !ok || seconds != 5400 {
		t.Fatalf("relative: got (%d, %v), want (5400, true)", seconds, ok)
	}

	seconds, ok = ParseTimeDescription("02/06/2026 12:00", nil, now)
	if !ok || seconds != 86400 {
		t.Fatalf("absolute fallback: got (%d, %v), want (86400, true)", seconds, ok)
	}
}

// TestFindTimezone verifies exact and loose timezone spellings.
func TestFindTimezone(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"exact IANA", "Europe/London", "Europe/London", true},
		{"loose spelling", "america new york", "America/New_York", true},
		{"utc", "UTC", "UTC", true},
		{"nonsense", "middle earth standard", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, ok := FindTimezone(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && loc.String() != tt.want {
				t.Errorf("got %s, want %s", loc.String(), tt.want)
			}
		})
	}
}
