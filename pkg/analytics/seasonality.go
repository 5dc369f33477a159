package analytics

import (
	"time"

	"equilibrium-api/pkg/footprint"
)

var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
}

// TargetProbs are extension-target hit probabilities.
type TargetProbs struct {
	Hit05xPct float64 `json:"hit_05x_prob"`
	Hit1xPct  float64 `json:"hit_1x_prob"`
	Hit2xPct  float64 `json:"hit_2x_prob"`
}

// WeekdayScopeStats describe one weekday under one time scope. Clean values
// exclude two-sided (choppy) days, which would otherwise inflate target hit
// rates from both directions.
type WeekdayScopeStats struct {
	TwoSidedPct   float64     `json:"two_sided_prob"`
	Targets       TargetProbs `json:"targets"`
	CleanTargets  TargetProbs `json:"clean_targets"`
	CleanSessions int         `json:"clean_sessions_count"`
}

// WeekdayStats aggregates one weekday bucket.
type WeekdayStats struct {
	Sessions    int     `json:"sessions_count"`
	MeanRange   float64 `json:"mean_day_range"`
	MedianRange float64 `json:"median_day_range"`
	UpClosePct  float64 `json:"up_close_prob"`

	Session WeekdayScopeStats `json:"session"`
	FullDay WeekdayScopeStats `json:"full_day"`
}

// SeasonalityReport groups session history by weekday. Every weekday bucket
// Monday through Friday is always present, zero-valued when no sessions
// landed on it.
type SeasonalityReport struct {
	Meta
	Weekdays map[string]*WeekdayStats `json:"weekdays"`
}

// BuildSeasonalityReport computes per-weekday distributional statistics:
// range mean/median, directional bias and extension-target seasonality.
func BuildSeasonalityReport(symbol string, period Period, metrics []*footprint.SessionMetric, cfg Config) *SeasonalityReport {
	cfg = cfg.normalized()
	report := &SeasonalityReport{
		Meta:     newMeta(symbol, period, metrics, cfg.MinSamples),
		Weekdays: make(map[string]*WeekdayStats, len(weekdayOrder)),
	}

	byDay := make(map[time.Weekday][]*footprint.SessionMetric)
	for _, m := range metrics {
		wd := m.Date.Weekday()
		byDay[wd] = append(byDay[wd], m)
	}

	for _, wd := range weekdayOrder {
		report.Weekdays[wd.String()] = buildWeekdayStats(byDay[wd])
	}
	return report
}

func buildWeekdayStats(metrics []*footprint.SessionMetric) *WeekdayStats {
	stats := &WeekdayStats{Sessions: len(metrics)}
	if len(metrics) == 0 {
		return stats
	}

	var ranges []float64
	upDays := 0
	for _, m := range metrics {
		if r, ok := metricFloat(m, footprint.KeyDayRange); ok {
			ranges = append(ranges, r)
		}
		open, okO := metricFloat(m, footprint.KeyDayOpen)
		closePx, okC := metricFloat(m, footprint.KeyDayClose)
		if okO && okC && closePx > open {
			upDays++
		}
	}
	stats.MeanRange = round(mean(ranges), 2)
	stats.MedianRange = round(median(ranges), 2)
	stats.UpClosePct = pct(upDays, len(metrics))

	stats.Session = buildWeekdayScope(metrics, sessionScope)
	stats.FullDay = buildWeekdayScope(metrics, fullDayScope)
	return stats
}

func buildWeekdayScope(metrics []*footprint.SessionMetric, scope scopeKeys) WeekdayScopeStats {
	total := len(metrics)

	var clean []*footprint.SessionMetric
	twoSided := 0
	for _, m := range metrics {
		if metricBool(m, scope.highBroken) && metricBool(m, scope.lowBroken) {
			twoSided++
			continue
		}
		clean = append(clean, m)
	}

	return WeekdayScopeStats{
		TwoSidedPct:   pct(twoSided, total),
		Targets:       buildTargetProbs(metrics, scope),
		CleanTargets:  buildTargetProbs(clean, scope),
		CleanSessions: len(clean),
	}
}

func buildTargetProbs(metrics []*footprint.SessionMetric, scope scopeKeys) TargetProbs {
	total := len(metrics)
	return TargetProbs{
		Hit05xPct: pct(countTrue(metrics, scope.ext05x), total),
		Hit1xPct:  pct(countTrue(metrics, scope.ext1x), total),
		Hit2xPct:  pct(countTrue(metrics, scope.ext2x), total),
	}
}
