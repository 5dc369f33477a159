package footprint

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Calendar maps candle timestamps onto exchange trading sessions. A session
// is one calendar day in the exchange timezone; the in-progress day is never
// a closed session. Windows are half-open [start, end) on minute boundaries.
type Calendar struct {
	loc          *time.Location
	sessionStart int // minutes from midnight, exchange time
	ibEnd        int
	sessionEnd   int
}

// NewCalendar builds a session calendar. Times are "HH:MM" strings in the
// given IANA timezone, e.g. ("America/New_York", "09:30", "10:30", "16:00").
func NewCalendar(timezone, sessionStart, ibEnd, sessionEnd string) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("footprint: load timezone %q: %w", timezone, err)
	}
	start, err := parseClock(sessionStart)
	if err != nil {
		return nil, fmt.Errorf("footprint: session start: %w", err)
	}
	ib, err := parseClock(ibEnd)
	if err != nil {
		return nil, fmt.Errorf("footprint: ib end: %w", err)
	}
	end, err := parseClock(sessionEnd)
	if err != nil {
		return nil, fmt.Errorf("footprint: session end: %w", err)
	}
	if !(start < ib && ib < end) {
		return nil, fmt.Errorf("footprint: window order must be session start < ib end < session end, got %s %s %s",
			sessionStart, ibEnd, sessionEnd)
	}
	return &Calendar{loc: loc, sessionStart: start, ibEnd: ib, sessionEnd: end}, nil
}

func parseClock(value string) (int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour*60 + minute, nil
}

// Location exposes the calendar timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// SessionDate returns the civil date (UTC midnight) the timestamp falls on
// in the exchange timezone.
func (c *Calendar) SessionDate(tsMillis int64) time.Time {
	local := time.UnixMilli(tsMillis).In(c.loc)
	return civil(local.Year(), local.Month(), local.Day())
}

// MinuteOfDay returns minutes since local midnight for the timestamp.
func (c *Calendar) MinuteOfDay(tsMillis int64) int {
	local := time.UnixMilli(tsMillis).In(c.loc)
	return local.Hour()*60 + local.Minute()
}

// ClockLabel formats the timestamp as local "HH:MM".
func (c *Calendar) ClockLabel(tsMillis int64) string {
	return time.UnixMilli(tsMillis).In(c.loc).Format("15:04")
}

// InIB reports whether the timestamp lies in [session start, ib end).
func (c *Calendar) InIB(tsMillis int64) bool {
	m := c.MinuteOfDay(tsMillis)
	return m >= c.sessionStart && m < c.ibEnd
}

// InSession reports whether the timestamp lies in [session start, session end).
func (c *Calendar) InSession(tsMillis int64) bool {
	m := c.MinuteOfDay(tsMillis)
	return m >= c.sessionStart && m < c.sessionEnd
}

// PostIB reports whether the timestamp lies in [ib end, session end).
func (c *Calendar) PostIB(tsMillis int64) bool {
	m := c.MinuteOfDay(tsMillis)
	return m >= c.ibEnd && m < c.sessionEnd
}

// AfterHours reports whether the timestamp lies past session end.
func (c *Calendar) AfterHours(tsMillis int64) bool {
	return c.MinuteOfDay(tsMillis) >= c.sessionEnd
}

// IsTradingDay reports whether the civil date is a weekday.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	wd := date.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// LatestClosedSession returns the most recent weekday date strictly before
// "today" in the exchange timezone. Candles of that date are all final.
func (c *Calendar) LatestClosedSession(now time.Time) time.Time {
	local := now.In(c.loc)
	date := civil(local.Year(), local.Month(), local.Day()).AddDate(0, 0, -1)
	for !c.IsTradingDay(date) {
		date = date.AddDate(0, 0, -1)
	}
	return date
}

// ClosedBoundary returns the unix-millisecond timestamp of local midnight of
// "today" in the exchange timezone. Candles at or past the boundary belong
// to the in-progress session and must not be ingested as final.
func (c *Calendar) ClosedBoundary(now time.Time) int64 {
	local := now.In(c.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	return midnight.UnixMilli()
}

// NextTradingDay returns the first weekday strictly after date.
func (c *Calendar) NextTradingDay(date time.Time) time.Time {
	next := date.AddDate(0, 0, 1)
	for !c.IsTradingDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// TradingDays lists the weekday dates in [from, to], inclusive on both ends.
func (c *Calendar) TradingDays(from, to time.Time) []time.Time {
	if from.After(to) {
		return nil
	}
	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// DayBounds returns the [start, end) unix-millisecond range of the civil
// date in the exchange timezone, covering the whole local day.
func (c *Calendar) DayBounds(date time.Time) (int64, int64) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, c.loc)
	end := start.AddDate(0, 0, 1)
	return start.UnixMilli(), end.UnixMilli()
}

// civil normalizes a date to UTC midnight so dates compare with Equal.
func civil(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf normalizes any time to its UTC-midnight civil date.
func DateOf(t time.Time) time.Time {
	return civil(t.Year(), t.Month(), t.Day())
}
