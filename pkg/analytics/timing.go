package analytics

import (
	"fmt"
	"strconv"
	"strings"

	"equilibrium-api/pkg/footprint"
)

// Windows bound the timing heatmap grids. Events are bucketed into 30-minute
// slots from Start up to the scope end, inclusive. Labels are zero-padded
// "HH:MM" strings, so plain string comparison orders them.
type Windows struct {
	Start      string
	SessionEnd string
	FullDayEnd string
}

func (w Windows) normalized() Windows {
	if w.Start == "" {
		w.Start = "10:30"
	}
	if w.SessionEnd == "" {
		w.SessionEnd = "16:00"
	}
	if w.FullDayEnd == "" {
		w.FullDayEnd = "23:59"
	}
	return w
}

// Grid maps a 30-minute bucket label to the share of events that fell into
// it, in percent.
type Grid map[string]float64

// EventGrids holds one grid per tracked event type. Breakout combines high
// and low break times, since the interesting moment is when balance breaks,
// not the direction.
type EventGrids struct {
	Breakout Grid `json:"breakout"`
	Hit05x   Grid `json:"hit_05x"`
	Hit1x    Grid `json:"hit_1x"`
	Hit2x    Grid `json:"hit_2x"`
}

// TimingScopeStats carry the event distributions of one time scope, plus a
// clean variant that excludes two-sided days.
type TimingScopeStats struct {
	Heatmap      EventGrids `json:"heatmap"`
	HeatmapClean EventGrids `json:"heatmap_clean"`
}

// TimingReport distributes intrasession events over time-of-day buckets.
type TimingReport struct {
	Meta
	Session TimingScopeStats `json:"session"`
	FullDay TimingScopeStats `json:"full_day"`
}

var timingEvents = []struct {
	name string
	keys []string
}{
	{"breakout", []string{footprint.KeyTimeBreakHigh, footprint.KeyTimeBreakLow}},
	{"hit_05x", []string{footprint.KeyTimeHit05x}},
	{"hit_1x", []string{footprint.KeyTimeHit1x}},
	{"hit_2x", []string{footprint.KeyTimeHit2x}},
}

// BuildTimingReport computes when breakouts and extension hits tend to
// happen, as a frequency distribution over 30-minute buckets.
func BuildTimingReport(symbol string, period Period, metrics []*footprint.SessionMetric, cfg Config) *TimingReport {
	cfg = cfg.normalized()
	win := cfg.Windows

	report := &TimingReport{Meta: newMeta(symbol, period, metrics, cfg.MinSamples)}

	cleanSession := withoutTwoSided(metrics, sessionScope)
	cleanFull := withoutTwoSided(metrics, fullDayScope)

	report.Session = TimingScopeStats{
		Heatmap:      buildEventGrids(metrics, win.Start, win.SessionEnd),
		HeatmapClean: buildEventGrids(cleanSession, win.Start, win.SessionEnd),
	}
	report.FullDay = TimingScopeStats{
		Heatmap:      buildEventGrids(metrics, win.Start, win.FullDayEnd),
		HeatmapClean: buildEventGrids(cleanFull, win.Start, win.FullDayEnd),
	}
	return report
}

func withoutTwoSided(metrics []*footprint.SessionMetric, scope scopeKeys) []*footprint.SessionMetric {
	var clean []*footprint.SessionMetric
	for _, m := range metrics {
		if metricBool(m, scope.highBroken) && metricBool(m, scope.lowBroken) {
			continue
		}
		clean = append(clean, m)
	}
	return clean
}

func buildEventGrids(metrics []*footprint.SessionMetric, start, end string) EventGrids {
	grids := EventGrids{}
	for _, event := range timingEvents {
		var labels []string
		for _, m := range metrics {
			for _, key := range event.keys {
				if label, ok := m.Fields.Clock(key); ok {
					labels = append(labels, label)
				}
			}
		}
		grid := buildGrid(labels, start, end)
		switch event.name {
		case "breakout":
			grids.Breakout = grid
		case "hit_05x":
			grids.Hit05x = grid
		case "hit_1x":
			grids.Hit1x = grid
		case "hit_2x":
			grids.Hit2x = grid
		}
	}
	return grids
}

// buildGrid distributes event labels over the full bucket grid. The grid is
// always emitted complete, zero-filled where nothing happened, so consumers
// can render a stable axis.
func buildGrid(labels []string, start, end string) Grid {
	counts := make(map[string]int)
	total := 0
	for _, label := range labels {
		if label < start || label > end {
			continue
		}
		bucket, ok := bucket30(label)
		if !ok {
			continue
		}
		counts[bucket]++
		total++
	}

	grid := make(Grid)
	for _, bucket := range bucketRange(start, end) {
		grid[bucket] = pct(counts[bucket], total)
	}
	return grid
}

// bucket30 floors an "HH:MM" label to its 30-minute bucket.
func bucket30(label string) (string, bool) {
	hour, minute, err := splitClock(label)
	if err != nil {
		return "", false
	}
	if minute >= 30 {
		minute = 30
	} else {
		minute = 0
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// bucketRange enumerates the 30-minute bucket labels in [start, end].
func bucketRange(start, end string) []string {
	startHour, startMinute, err := splitClock(start)
	if err != nil {
		return nil
	}
	endHour, _, err := splitClock(end)
	if err != nil {
		return nil
	}

	var buckets []string
	for h := startHour; h <= endHour; h++ {
		for _, m := range []int{0, 30} {
			if h == startHour && m < startMinute {
				continue
			}
			label := fmt.Sprintf("%02d:%02d", h, m)
			if label > end {
				break
			}
			buckets = append(buckets, label)
		}
	}
	return buckets
}

func splitClock(label string) (int, int, error) {
	parts := strings.Split(label, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("analytics: invalid clock label %q", label)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("analytics: invalid clock label %q", label)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("analytics: invalid clock label %q", label)
	}
	return hour, minute, nil
}
