// Package delivery resolves customer-supplied delivery expressions
// ("demain 10h", "15 août", "2025-12-31 13:00") into absolute times.
package delivery

import (
	"regexp"
	"strconv"
	"time"

	"github.com/angelmondragon/wacommerce-backend/internal/fields"
)

const defaultHour = 14

var months = map[string]time.Month{
	"janvier": time.January, "janv": time.January,
	"fevrier": time.February, "fevr": time.February, "fev": time.February,
	"mars":  time.March,
	"avril": time.April, "avr": time.April,
	"mai":     time.May,
	"juin":    time.June,
	"juillet": time.July, "juil": time.July,
	"aout":      time.August,
	"septembre": time.September, "sept": time.September,
	"octobre": time.October, "oct": time.October,
	"novembre": time.November, "nov": time.November,
	"decembre": time.December, "dec": time.December,
}

// Parts of the day stand in for a missing hour. The afternoon keeps the
// parser's default hour.
var (
	afternoonRe = regexp.MustCompile(`\bapres[- ]?midi\b|\bafternoon\b`)
	dayParts    = []struct {
		re   *regexp.Regexp
		hour int
	}{
		{regexp.MustCompile(`\bmatin\b|\bmorning\b`), 9},
		{regexp.MustCompile(`\bmidi\b|\bnoon\b`), 12},
		{regexp.MustCompile(`\bsoir(?:ee)?\b|\btonight\b|\bevening\b`), 19},
	}
)

// Parser turns raw delivery text into a timestamp in a fixed location.
type Parser struct {
	loc         *time.Location
	now         func() time.Time
	defaultHour int
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// WithDefaultHour sets the hour used when the text carries none.
func WithDefaultHour(hour int) Option {
	return func(p *Parser) {
		if hour >= 0 && hour <= 23 {
			p.defaultHour = hour
		}
	}
}

// NewParser builds a parser for loc (UTC when nil).
func NewParser(loc *time.Location, opts ...Option) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	p := &Parser{loc: loc, now: time.Now, defaultHour: defaultHour}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Now returns the parser's current time in its location.
func (p *Parser) Now() time.Time {
	return p.now().In(p.loc)
}

// Parse resolves raw into a timestamp. The first matching pattern wins:
// today, tomorrow, in N days, day + month name, ISO, DD/MM/YYYY, DD-MM-YYYY.
func (p *Parser) Parse(raw string) (time.Time, bool) {
	n := fields.Normalize(raw)
	if n == "" {
		return time.Time{}, false
	}
	now := p.Now()
	y, m, d := now.Date()

	switch {
	case fields.TodayRe.MatchString(n):
		return p.relative(n, y, m, d)
	case fields.DayAfterRe.MatchString(n):
		return p.relative(n, y, m, d+2)
	case fields.TomorrowRe.MatchString(n):
		return p.relative(n, y, m, d+1)
	}

	if match := fields.InDaysRe.FindStringSubmatch(n); match != nil {
		days, _ := strconv.Atoi(match[1])
		return p.relative(n, y, m, d+days)
	}

	if match := fields.DayMonthRe.FindStringSubmatch(n); match != nil {
		day, _ := strconv.Atoi(match[1])
		month := months[match[2]]
		hour, minute, ok := p.hourIn(n)
		if !ok {
			return time.Time{}, false
		}
		if match[3] != "" {
			return p.date(atoi(match[3]), month, day, hour, minute)
		}
		t, ok := p.date(y, month, day, hour, minute)
		if !ok {
			return time.Time{}, false
		}
		if t.Before(now) {
			return p.date(y+1, month, day, hour, minute)
		}
		return t, true
	}

	if match := fields.ISODateRe.FindStringSubmatch(n); match != nil {
		return p.explicit(atoi(match[1]), atoi(match[2]), atoi(match[3]), match[4], match[5])
	}
	if match := fields.SlashDateRe.FindStringSubmatch(n); match != nil {
		return p.explicit(atoi(match[3]), atoi(match[2]), atoi(match[1]), match[4], match[5])
	}
	if match := fields.DashDateRe.FindStringSubmatch(n); match != nil {
		return p.explicit(atoi(match[3]), atoi(match[2]), atoi(match[1]), match[4], match[5])
	}
	return time.Time{}, false
}

// IsPast reports whether raw resolves to a time before now. Text that cannot
// be parsed counts as past.
func (p *Parser) IsPast(raw string) bool {
	t, ok := p.Parse(raw)
	if !ok {
		return true
	}
	return p.IsPastTime(t)
}

// IsPastTime reports whether t is before now.
func (p *Parser) IsPastTime(t time.Time) bool {
	return t.Before(p.Now())
}

func (p *Parser) relative(n string, y int, m time.Month, d int) (time.Time, bool) {
	hour, minute, ok := p.hourIn(n)
	if !ok {
		return time.Time{}, false
	}
	// time.Date normalizes day overflow into the next month
	return time.Date(y, m, d, hour, minute, 0, 0, p.loc), true
}

func (p *Parser) explicit(year, month, day int, rawHour, rawMinute string) (time.Time, bool) {
	hour, minute := p.defaultHour, 0
	if rawHour != "" {
		hour = atoi(rawHour)
		if rawMinute != "" {
			minute = atoi(rawMinute)
		}
	}
	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	return p.date(year, time.Month(month), day, hour, minute)
}

// hourIn extracts an "HHh[MM]" / "HH:MM" suffix, falling back to the part
// of the day ("ce soir") or the default hour. ok is false when a suffix is
// present but out of range.
func (p *Parser) hourIn(n string) (int, int, bool) {
	match := fields.HourSuffixRe.FindStringSubmatch(n)
	if match == nil {
		return p.fallbackHour(n), 0, true
	}
	hour := atoi(match[1])
	minute := 0
	if match[2] != "" {
		minute = atoi(match[2])
	}
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func (p *Parser) fallbackHour(n string) int {
	if afternoonRe.MatchString(n) {
		return p.defaultHour
	}
	for _, part := range dayParts {
		if part.re.MatchString(n) {
			return part.hour
		}
	}
	return p.defaultHour
}

// date builds a timestamp, rejecting calendar overflow such as 31 February.
func (p *Parser) date(year int, month time.Month, day, hour, minute int) (time.Time, bool) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, hour, minute, 0, 0, p.loc)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

var digitsRe = regexp.MustCompile(`^\d+$`)

func atoi(s string) int {
	if !digitsRe.MatchString(s) {
		return -1
	}
	v, _ := strconv.Atoi(s)
	return v
}
