package analytics

import "equilibrium-api/pkg/footprint"

// ScopeStats are the breakout, extension, prior-level and retest
// probabilities of one time scope (regular session or full day). Conditional
// rates ship with their denominators so thin conditions are visible.
type ScopeStats struct {
	BreakHighPct  float64 `json:"break_high_chance"`
	BreakLowPct   float64 `json:"break_low_chance"`
	OneSidedPct   float64 `json:"one_sided_chance"`
	TwoSidedPct   float64 `json:"two_sided_chance"`
	NoBreakoutPct float64 `json:"no_breakout_chance"`

	FalseBreakHighPct float64 `json:"false_break_high_rate"`
	FalseBreakLowPct  float64 `json:"false_break_low_rate"`
	HighBreaks        int     `json:"high_breaks"`
	LowBreaks         int     `json:"low_breaks"`

	Hit05xPct float64 `json:"prob_hit_05x"`
	Hit1xPct  float64 `json:"prob_hit_1x"`
	Hit2xPct  float64 `json:"prob_hit_2x"`

	HitPDHPct         float64 `json:"prob_hit_pdh"`
	HitPDLPct         float64 `json:"prob_hit_pdl"`
	PDHIfIBHBrokenPct float64 `json:"prob_pdh_if_ibh_broken"`
	PDLIfIBLBrokenPct float64 `json:"prob_pdl_if_ibl_broken"`
	PriorDays         int     `json:"prior_days"`

	IBMidRetestPct float64 `json:"prob_ib_mid_retest"`
}

// IBReport is the Initial Balance probability report for one asset and
// period.
type IBReport struct {
	Meta

	AvgIBRangeUSD     float64 `json:"avg_ib_range_usd"`
	AvgIBRangePct     float64 `json:"avg_ib_range_pct"`
	AvgIBVolume       float64 `json:"avg_ib_volume"`
	AvgExtensionCoeff float64 `json:"avg_extension_coeff"`
	ReturnToIBPct     float64 `json:"prob_return_to_ib_after_session"`

	Session ScopeStats `json:"session"`
	FullDay ScopeStats `json:"full_day"`
}

// BuildIBReport computes breakout, false-break, extension, prior-level and
// retest probabilities over the given session history.
func BuildIBReport(symbol string, period Period, metrics []*footprint.SessionMetric, cfg Config) *IBReport {
	cfg = cfg.normalized()
	report := &IBReport{Meta: newMeta(symbol, period, metrics, cfg.MinSamples)}
	if len(metrics) == 0 {
		return report
	}

	report.AvgIBRangeUSD = round(meanField(metrics, footprint.KeyIBRangeUSD), 2)
	report.AvgIBRangePct = round(meanField(metrics, footprint.KeyIBRangePct), 3)
	report.AvgIBVolume = round(meanField(metrics, footprint.KeyIBVol), 0)
	report.AvgExtensionCoeff = round(meanField(metrics, footprint.KeyExtCoeff), 2)
	report.ReturnToIBPct = pct(countTrue(metrics, footprint.KeyAfterHoursHitIB), len(metrics))

	report.Session = buildScopeStats(metrics, sessionScope)
	report.FullDay = buildScopeStats(metrics, fullDayScope)
	return report
}

func buildScopeStats(metrics []*footprint.SessionMetric, scope scopeKeys) ScopeStats {
	total := len(metrics)
	var stats ScopeStats

	var high, low, both, one, none int
	var falseHigh, falseLow int
	var retestBase, retestHits int
	for _, m := range metrics {
		h := metricBool(m, scope.highBroken)
		l := metricBool(m, scope.lowBroken)
		switch {
		case h && l:
			both++
		case h || l:
			one++
		default:
			none++
		}
		if h {
			high++
			if metricBool(m, scope.falseBreakHigh) {
				falseHigh++
			}
		}
		if l {
			low++
			if metricBool(m, scope.falseBreakLow) {
				falseLow++
			}
		}
		if h || l {
			retestBase++
			if metricBool(m, footprint.KeyHitIBMid) {
				retestHits++
			}
		}
	}

	stats.BreakHighPct = pct(high, total)
	stats.BreakLowPct = pct(low, total)
	stats.OneSidedPct = pct(one, total)
	stats.TwoSidedPct = pct(both, total)
	stats.NoBreakoutPct = pct(none, total)

	stats.FalseBreakHighPct = pct(falseHigh, high)
	stats.FalseBreakLowPct = pct(falseLow, low)
	stats.HighBreaks = high
	stats.LowBreaks = low

	stats.Hit05xPct = pct(countTrue(metrics, scope.ext05x), total)
	stats.Hit1xPct = pct(countTrue(metrics, scope.ext1x), total)
	stats.Hit2xPct = pct(countTrue(metrics, scope.ext2x), total)

	stats.IBMidRetestPct = pct(retestHits, retestBase)

	// Prior-level probabilities only consider days that carry a prior level;
	// the first stored day never does.
	var priorDays, hitPDH, hitPDL int
	var ibhDays, ibhHits, iblDays, iblHits int
	for _, m := range metrics {
		if _, ok := metricFloat(m, footprint.KeyPDH); !ok {
			continue
		}
		priorDays++
		pdh := metricBool(m, footprint.KeyHitPDH)
		pdl := metricBool(m, footprint.KeyHitPDL)
		if pdh {
			hitPDH++
		}
		if pdl {
			hitPDL++
		}
		if metricBool(m, scope.highBroken) {
			ibhDays++
			if pdh {
				ibhHits++
			}
		}
		if metricBool(m, scope.lowBroken) {
			iblDays++
			if pdl {
				iblHits++
			}
		}
	}
	stats.HitPDHPct = pct(hitPDH, priorDays)
	stats.HitPDLPct = pct(hitPDL, priorDays)
	stats.PDHIfIBHBrokenPct = pct(ibhHits, ibhDays)
	stats.PDLIfIBLBrokenPct = pct(iblHits, iblDays)
	stats.PriorDays = priorDays

	return stats
}

func meanField(metrics []*footprint.SessionMetric, key string) float64 {
	var values []float64
	for _, m := range metrics {
		if v, ok := metricFloat(m, key); ok {
			values = append(values, v)
		}
	}
	return mean(values)
}
