package scheduler

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Time-description parsing feeds add_event from user text: the command
// payload is split from a trailing time description, which is first
// interpreted as a relative duration and then as an absolute date-time
// in one of four fixed formats.

// separators checked in order; the split happens at the first occurrence
// of the first separator present.
var separators = []string{" in ", " on ", " at "}

// SplitTimeDescription splits user text into the message payload and the
// trailing time description. ok is false when no separator is present.
func SplitTimeDescription(text string) (payload, timedesc string, ok bool) {
	for _, sep := range separators {
		if idx := strings.Index(text, sep); idx >= 0 {
			payload = strings.TrimSpace(text[:idx])
			timedesc = strings.TrimSpace(text[idx+len(sep):])
			return payload, timedesc, true
		}
	}
	return "", "", false
}

var durationToken = regexp.MustCompile(`^(\d+)\s*([a-z]+)`)

// unitSeconds maps every accepted unit spelling to its length. Bare
// numbers with no unit are rejected.
var unitSeconds = map[string]int64{
	"weeks": 604800, "week": 604800, "wks": 604800, "wk": 604800, "w": 604800,
	"days": 86400, "day": 86400, "d": 86400,
	"hours": 3600, "hour": 3600, "hrs": 3600, "hr": 3600, "h": 3600,
	"minutes": 60, "minute": 60, "mins": 60, "min": 60, "m": 60,
	"seconds": 1, "second": 1, "secs": 1, "sec": 1, "s": 1,
}

// ParseRelative interprets a free-form English duration with digit
// quantities ("2 hours and 3 minutes", "2hrs3mins") as a number of
// seconds. ok is false when the text is not entirely made of
// quantity-unit pairs.
func ParseRelative(s string) (seconds int64, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ",", " ")
	s = strings.ReplaceAll(s, "&", " ")
	s = strings.ReplaceAll(s, " and ", " ")

	rest := strings.TrimSpace(s)
	if rest == "" {
		return 0, false
	}

	var total int64
	for rest != "" {
		m := durationToken.FindStringSubmatch(rest)
		if m == nil {
			return 0, false
		}

		qty, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, false
		}
		unit, known := unitSeconds[m[2]]
		if !known {
			return 0, false
		}

		total += qty * unit
		rest = strings.TrimSpace(rest[len(m[0]):])
	}
	return total, true
}

// absoluteLayouts are the four accepted date-time formats, tried in
// order.
var absoluteLayouts = []string{
	"02/01/2006 15:04",
	"2006/01/02 15:04",
	"15:04 02/01/2006",
	"15:04 2006/01/02",
}

// ParseAbsolute interprets the text as an absolute date-time in one of
// the four fixed formats, localized to loc (UTC when loc is nil), and
// returns the number of seconds from now until that time. The result is
// negative for past times; callers reject those with a user-facing
// message rather than an error.
func ParseAbsolute(s string, loc *time.Location, now time.Time) (seconds int64, ok bool) {
	if loc == nil {
		loc = time.UTC
	}

	s = strings.TrimSpace(s)
	for _, layout := range absoluteLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		return t.Unix() - now.Unix(), true
	}
	return 0, false
}

// ParseTimeDescription resolves a time description to a relative number
// of seconds from now, trying relative-duration form first and the four
// absolute formats second.
func ParseTimeDescription(s string, loc *time.Location, now time.Time) (seconds int64, ok bool) {
	if secs, ok := ParseRelative(s); ok {
		return secs, true
	}
	return ParseAbsolute(s, loc, now)
}

// FindTimezone resolves a user-supplied timezone description to a
// location. It accepts exact IANA names and loose spellings with spaces
// in place of underscores ("america new york").
func FindTimezone(name string) (*time.Location, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}

	candidates := []string{
		name,
		strings.ReplaceAll(name, " ", "_"),
		strings.ReplaceAll(name, " ", "/"),
	}

	// "america new york" -> "America/New_York"
	if fields := strings.Fields(name); len(fields) > 1 {
		for i := range fields {
			fields[i] = capitalize(fields[i])
		}
		candidates = append(candidates, fields[0]+"/"+strings.Join(fields[1:], "_"))
	}

	for _, c := range candidates {
		if loc, err := time.LoadLocation(c); err == nil {
			return loc, true
		}
	}
	return nil, false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
