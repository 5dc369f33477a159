package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PeriodYTD covers everything from the configured history start. All other
// period ids follow the "last_N_days" pattern.
const PeriodYTD = "ytd"

var defaultLookbackDays = []int{730, 365, 180, 90, 60, 30, 14, 7}

// Period is one report lookback window. Days == 0 means full history.
type Period struct {
	ID   string
	Days int
}

// DefaultPeriods returns the standard report windows, longest first.
func DefaultPeriods() []Period {
	periods := []Period{{ID: PeriodYTD}}
	for _, days := range defaultLookbackDays {
		periods = append(periods, Period{ID: fmt.Sprintf("last_%d_days", days), Days: days})
	}
	return periods
}

// ParsePeriod parses a period id, either "ytd" or "last_N_days".
func ParsePeriod(id string) (Period, error) {
	normalized := strings.ToLower(strings.TrimSpace(id))
	if normalized == PeriodYTD {
		return Period{ID: PeriodYTD}, nil
	}
	parts := strings.Split(normalized, "_")
	if len(parts) == 3 && parts[0] == "last" && parts[2] == "days" {
		days, err := strconv.Atoi(parts[1])
		if err == nil && days > 0 {
			return Period{ID: normalized, Days: days}, nil
		}
	}
	return Period{}, fmt.Errorf("analytics: invalid period %q", id)
}

func (p Period) String() string { return p.ID }

// Window resolves the period to a [start, end] civil date range. today is
// the current date in the exchange timezone; end is always the day before
// it, the latest date whose session can be fully closed.
func (p Period) Window(today, historyStart time.Time) (time.Time, time.Time) {
	end := today.AddDate(0, 0, -1)
	if p.Days <= 0 {
		return historyStart, end
	}
	return today.AddDate(0, 0, -p.Days), end
}

// TooLongFor reports whether the asset's stored history begins after the
// period window would. Such periods overstate the available data and are
// skipped rather than published.
func (p Period) TooLongFor(today, firstMetricDate time.Time) bool {
	if p.Days <= 0 {
		return false
	}
	start, _ := p.Window(today, time.Time{})
	return start.Before(firstMetricDate)
}
