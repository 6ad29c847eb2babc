package timestamp

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// wallClockPattern matches "YYYY-MM-DD HH:MM[:SS[.fff]]" without an offset.
var wallClockPattern = regexp.MustCompile(
	`^(\d{4})-(\d{1,2})-(\d{1,2})[ T](\d{1,2}):(\d{2})(?::(\d{2})(?:[.,](\d{1,9}))?)?$`,
)

var epochPattern = regexp.MustCompile(`^\d{10}(\d{3})?$`)

// strictLayouts carry an explicit offset and are tried first.
var strictLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05 -0700",
}

// fallbackLayouts are interpreted in the parser location when they carry no zone.
var fallbackLayouts = []string{
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006, 15:04:05",
	"02-01-2006 15:04:05",
	"2006-01-02",
	"02/01/2006",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.RFC822Z,
	time.RFC822,
	time.ANSIC,
	time.UnixDate,
	"Jan 2 2006 15:04:05",
	"Jan 2, 2006 15:04:05",
	"Mon Jan 02 2006 15:04:05 GMT-0700",
}

// Parser turns snapshot timestamp cells into instants.
// It holds no mutable state, so one Parser can be shared freely.
type Parser struct {
	loc *time.Location
}

// NewParser creates a parser that reads zone-less timestamps as local wall clock.
func NewParser() *Parser {
	return NewParserIn(time.Local)
}

// NewParserIn creates a parser that reads zone-less timestamps in loc.
func NewParserIn(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{loc: loc}
}

// Location returns the zone used for wall-clock timestamps.
func (p *Parser) Location() *time.Location { return p.loc }

// Parse converts s to an instant. It never panics; ok is false when no strategy
// yields a valid instant.
func (p *Parser) Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range strictLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return checked(ts)
		}
	}

	if ts, ok := p.parseWallClock(s); ok {
		return checked(ts)
	}

	return p.parseFallback(s)
}

// parseWallClock builds the instant from explicit components so the space
// separator is never read as UTC.
func (p *Parser) parseWallClock(s string) (time.Time, bool) {
	m := wallClockPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	second := 0
	if m[6] != "" {
		second, _ = strconv.Atoi(m[6])
	}
	nanos := 0
	if frac := m[7]; frac != "" {
		frac += strings.Repeat("0", 9-len(frac))
		nanos, _ = strconv.Atoi(frac)
	}

	if month < 1 || month > 12 || day < 1 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}

	ts := time.Date(year, time.Month(month), day, hour, minute, second, nanos, p.loc)
	// time.Date normalizes overflow (Feb 30 -> Mar 2); reject instead.
	if ts.Day() != day || int(ts.Month()) != month {
		return time.Time{}, false
	}
	return ts, true
}

func (p *Parser) parseFallback(s string) (time.Time, bool) {
	if epochPattern.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			if len(s) == 13 {
				return checked(time.UnixMilli(n).In(p.loc))
			}
			return checked(time.Unix(n, 0).In(p.loc))
		}
	}

	for _, layout := range fallbackLayouts {
		if ts, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return checked(ts)
		}
	}
	return time.Time{}, false
}

// Valid reports whether ts is usable as a sample instant.
func Valid(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	y := ts.Year()
	return y >= 1970 && y <= 9999
}

func checked(ts time.Time) (time.Time, bool) {
	if !Valid(ts) {
		return time.Time{}, false
	}
	return ts, true
}
