package footprint

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"equilibrium-api/pkg/market"
)

// ErrUnbuildable marks a session that cannot produce metrics (weekend, too
// few candles, empty opening window). Callers skip such sessions; they are
// not failures.
var ErrUnbuildable = errors.New("footprint: session not buildable")

const defaultMinCandles = 30

// Builder derives one SessionMetric per closed trading session. It is pure:
// the same candles and prior levels always produce identical fields.
type Builder struct {
	cal        *Calendar
	minCandles int
}

// NewBuilder constructs a Builder. minCandles <= 0 selects the default
// threshold below which a day is considered too sparse to trust.
func NewBuilder(cal *Calendar, minCandles int) *Builder {
	if minCandles <= 0 {
		minCandles = defaultMinCandles
	}
	return &Builder{cal: cal, minCandles: minCandles}
}

// Calendar exposes the builder's session calendar.
func (b *Builder) Calendar() *Calendar {
	return b.cal
}

// Session groups the candles of one civil date, oldest first.
type Session struct {
	Date    time.Time
	Candles []market.Candle
}

// SplitSessions groups candles by session date in the exchange timezone and
// returns sessions in date order. Candles are assumed minute bars; order
// within input does not matter.
func (b *Builder) SplitSessions(candles []market.Candle) []Session {
	byDate := make(map[time.Time][]market.Candle)
	for _, c := range candles {
		date := b.cal.SessionDate(c.Ts)
		byDate[date] = append(byDate[date], c)
	}
	sessions := make([]Session, 0, len(byDate))
	for date, day := range byDate {
		market.SortCandles(day)
		sessions = append(sessions, Session{Date: date, Candles: day})
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Date.Before(sessions[j].Date)
	})
	return sessions
}

// BuildSession computes the full metric field set for one closed session.
// prior carries the previous trading day's extremes and may be nil, in which
// case the prior-level metrics are stored as nulls. Returns ErrUnbuildable
// for weekends, sparse days, and days with an empty opening window.
func (b *Builder) BuildSession(symbol string, date time.Time, candles []market.Candle, prior *DayLevels) (*SessionMetric, error) {
	if !b.cal.IsTradingDay(date) {
		return nil, fmt.Errorf("%w: %s is not a trading day", ErrUnbuildable, date.Format(time.DateOnly))
	}
	if len(candles) < b.minCandles {
		return nil, fmt.Errorf("%w: %s has %d candles, need %d",
			ErrUnbuildable, date.Format(time.DateOnly), len(candles), b.minCandles)
	}

	day := make([]market.Candle, len(candles))
	copy(day, candles)
	market.SortCandles(day)

	var ib, session, postIB, fullPost, afterHours []market.Candle
	for _, c := range day {
		switch {
		case b.cal.InIB(c.Ts):
			ib = append(ib, c)
			session = append(session, c)
		case b.cal.PostIB(c.Ts):
			postIB = append(postIB, c)
			session = append(session, c)
			fullPost = append(fullPost, c)
		case b.cal.AfterHours(c.Ts):
			afterHours = append(afterHours, c)
			fullPost = append(fullPost, c)
		}
	}
	if len(ib) == 0 {
		return nil, fmt.Errorf("%w: %s has no opening-window candles", ErrUnbuildable, date.Format(time.DateOnly))
	}

	ibHigh := highOf(ib)
	ibLow := lowOf(ib)
	ibRange := ibHigh - ibLow
	ibMid := (ibHigh + ibLow) / 2
	ibOpen := ib[0].Open

	fields := Fields{}

	fields[KeyIBHigh] = ibHigh
	fields[KeyIBLow] = ibLow
	fields[KeyIBRange] = ibRange
	fields[KeyIBRangeUSD] = round(ibRange, 4)
	if ibOpen > 0 {
		fields[KeyIBRangePct] = round(ibRange/ibOpen*100, 4)
	} else {
		fields[KeyIBRangePct] = 0.0
	}
	fields[KeyIBVol] = volumeOf(ib)

	sessionHighBroken := anyAbove(postIB, ibHigh)
	sessionLowBroken := anyBelow(postIB, ibLow)
	fullHighBroken := anyAbove(fullPost, ibHigh)
	fullLowBroken := anyBelow(fullPost, ibLow)
	fields[KeySessionHighBroken] = sessionHighBroken
	fields[KeySessionLowBroken] = sessionLowBroken
	fields[KeyFullHighBroken] = fullHighBroken
	fields[KeyFullLowBroken] = fullLowBroken

	dayOpen := day[0].Open
	dayHigh := highOf(day)
	dayLow := lowOf(day)
	dayClose := day[len(day)-1].Close
	sessionClose := session[len(session)-1].Close

	// A false break leaves the IB band and closes back inside it.
	fields[KeySessionFalseBreakHigh] = sessionHighBroken && sessionClose < ibHigh
	fields[KeySessionFalseBreakLow] = sessionLowBroken && sessionClose > ibLow
	fields[KeyFullFalseBreakHigh] = fullHighBroken && dayClose < ibHigh
	fields[KeyFullFalseBreakLow] = fullLowBroken && dayClose > ibLow

	for key, window := range map[string][]market.Candle{
		KeySessionExt05x: postIB, KeySessionExt1x: postIB, KeySessionExt2x: postIB,
		KeyFullExt05x: fullPost, KeyFullExt1x: fullPost, KeyFullExt2x: fullPost,
	} {
		mult := extMultiplier(key)
		fields[key] = ibRange > 0 && hitExtension(window, ibHigh, ibLow, ibRange, mult)
	}
	fields[KeyExtCoeff] = extCoefficient(fullPost, ibHigh, ibLow, ibRange)

	if prior != nil {
		fields[KeyPDH] = prior.High
		fields[KeyPDL] = prior.Low
		fields[KeyHitPDH] = dayHigh >= prior.High
		fields[KeyHitPDL] = dayLow <= prior.Low
	} else {
		fields[KeyPDH] = nil
		fields[KeyPDL] = nil
		fields[KeyHitPDH] = nil
		fields[KeyHitPDL] = nil
	}

	fields[KeyHitIBMid] = midRetested(postIB, ibHigh, ibLow, ibMid)
	fields[KeyAfterHoursHitIB] = bandTouched(afterHours, ibHigh, ibLow)

	fields[KeyTimeBreakHigh] = b.firstEventClock(fullPost, func(c market.Candle) bool { return c.High > ibHigh })
	fields[KeyTimeBreakLow] = b.firstEventClock(fullPost, func(c market.Candle) bool { return c.Low < ibLow })
	for key, mult := range map[string]float64{KeyTimeHit05x: 0.5, KeyTimeHit1x: 1, KeyTimeHit2x: 2} {
		m := mult
		if ibRange > 0 {
			fields[key] = b.firstEventClock(fullPost, func(c market.Candle) bool {
				return c.High >= ibHigh+m*ibRange || c.Low <= ibLow-m*ibRange
			})
		} else {
			fields[key] = nil
		}
	}

	fields[KeyDayOpen] = dayOpen
	fields[KeyDayHigh] = dayHigh
	fields[KeyDayLow] = dayLow
	fields[KeyDayClose] = dayClose
	fields[KeyDayRange] = dayHigh - dayLow
	fields[KeyDayVol] = volumeOf(day)
	fields[KeySessionClose] = sessionClose

	return &SessionMetric{Symbol: symbol, Date: date, Fields: fields}, nil
}

func extMultiplier(key string) float64 {
	switch key {
	case KeySessionExt05x, KeyFullExt05x:
		return 0.5
	case KeySessionExt1x, KeyFullExt1x:
		return 1
	default:
		return 2
	}
}

func anyAbove(window []market.Candle, level float64) bool {
	for _, c := range window {
		if c.High > level {
			return true
		}
	}
	return false
}

func anyBelow(window []market.Candle, level float64) bool {
	for _, c := range window {
		if c.Low < level {
			return true
		}
	}
	return false
}

func hitExtension(window []market.Candle, ibHigh, ibLow, ibRange, mult float64) bool {
	up := ibHigh + mult*ibRange
	down := ibLow - mult*ibRange
	for _, c := range window {
		if c.High >= up || c.Low <= down {
			return true
		}
	}
	return false
}

// extCoefficient measures how far price extended beyond the IB in units of
// the IB range, over the rest of the day.
func extCoefficient(window []market.Candle, ibHigh, ibLow, ibRange float64) float64 {
	if ibRange <= 0 || len(window) == 0 {
		return 0
	}
	var maxMove float64
	for _, c := range window {
		if up := c.High - ibHigh; up > maxMove {
			maxMove = up
		}
		if down := ibLow - c.Low; down > maxMove {
			maxMove = down
		}
	}
	if maxMove <= 0 {
		return 0
	}
	return round(maxMove/ibRange, 2)
}

// midRetested reports whether price came back through the IB midpoint after
// the first post-IB breakout.
func midRetested(postIB []market.Candle, ibHigh, ibLow, ibMid float64) bool {
	breakIdx := -1
	for i, c := range postIB {
		if c.High > ibHigh || c.Low < ibLow {
			breakIdx = i
			break
		}
	}
	if breakIdx < 0 {
		return false
	}
	for _, c := range postIB[breakIdx+1:] {
		if c.Low <= ibMid && ibMid <= c.High {
			return true
		}
	}
	return false
}

// bandTouched reports whether any candle overlaps the [ibLow, ibHigh] band.
func bandTouched(window []market.Candle, ibHigh, ibLow float64) bool {
	for _, c := range window {
		if c.Low <= ibHigh && c.High >= ibLow {
			return true
		}
	}
	return false
}

// firstEventClock returns the local "HH:MM" of the first candle matching the
// predicate, or nil when the event never occurred.
func (b *Builder) firstEventClock(window []market.Candle, match func(market.Candle) bool) any {
	for _, c := range window {
		if match(c) {
			return b.cal.ClockLabel(c.Ts)
		}
	}
	return nil
}

func highOf(candles []market.Candle) float64 {
	high := math.Inf(-1)
	for _, c := range candles {
		if c.High > high {
			high = c.High
		}
	}
	return high
}

func lowOf(candles []market.Candle) float64 {
	low := math.Inf(1)
	for _, c := range candles {
		if c.Low < low {
			low = c.Low
		}
	}
	return low
}

func volumeOf(candles []market.Candle) float64 {
	var total float64
	for _, c := range candles {
		total += c.Volume
	}
	return total
}

func round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
