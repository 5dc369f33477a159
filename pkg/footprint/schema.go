package footprint

import "sort"

// SchemaVersion increments whenever the expected metric key set changes.
// It is informational (logged and stamped on reports); drift detection
// itself is key-based.
const SchemaVersion = 3

// Metric keys stored per session. Values are float64, bool, "HH:MM" strings
// or nil when a metric does not apply to that session (e.g. prior-day levels
// on the first stored day).
const (
	KeyIBHigh     = "ib_high"
	KeyIBLow      = "ib_low"
	KeyIBRange    = "ib_range"
	KeyIBRangeUSD = "ib_range_usd"
	KeyIBRangePct = "ib_range_pct"
	KeyIBVol      = "ib_vol"

	KeySessionHighBroken = "session_high_broken"
	KeySessionLowBroken  = "session_low_broken"
	KeyFullHighBroken    = "full_high_broken"
	KeyFullLowBroken     = "full_low_broken"

	KeySessionFalseBreakHigh = "session_false_break_high"
	KeySessionFalseBreakLow  = "session_false_break_low"
	KeyFullFalseBreakHigh    = "full_false_break_high"
	KeyFullFalseBreakLow     = "full_false_break_low"

	KeySessionExt05x = "session_ext_05x"
	KeySessionExt1x  = "session_ext_1x"
	KeySessionExt2x  = "session_ext_2x"
	KeyFullExt05x    = "full_ext_05x"
	KeyFullExt1x     = "full_ext_1x"
	KeyFullExt2x     = "full_ext_2x"
	KeyExtCoeff      = "ext_coeff"

	KeyPDH    = "pdh"
	KeyPDL    = "pdl"
	KeyHitPDH = "hit_pdh"
	KeyHitPDL = "hit_pdl"

	KeyHitIBMid        = "hit_ib_mid"
	KeyAfterHoursHitIB = "after_hours_hit_ib"

	KeyTimeBreakHigh = "time_break_high"
	KeyTimeBreakLow  = "time_break_low"
	KeyTimeHit05x    = "time_hit_05x"
	KeyTimeHit1x     = "time_hit_1x"
	KeyTimeHit2x     = "time_hit_2x"

	KeyDayOpen      = "day_open"
	KeyDayHigh      = "day_high"
	KeyDayLow       = "day_low"
	KeyDayClose     = "day_close"
	KeyDayRange     = "day_range"
	KeyDayVol       = "day_vol"
	KeySessionClose = "session_close"
)

var expectedKeys = []string{
	KeyIBHigh, KeyIBLow, KeyIBRange, KeyIBRangeUSD, KeyIBRangePct, KeyIBVol,
	KeySessionHighBroken, KeySessionLowBroken, KeyFullHighBroken, KeyFullLowBroken,
	KeySessionFalseBreakHigh, KeySessionFalseBreakLow, KeyFullFalseBreakHigh, KeyFullFalseBreakLow,
	KeySessionExt05x, KeySessionExt1x, KeySessionExt2x,
	KeyFullExt05x, KeyFullExt1x, KeyFullExt2x, KeyExtCoeff,
	KeyPDH, KeyPDL, KeyHitPDH, KeyHitPDL,
	KeyHitIBMid, KeyAfterHoursHitIB,
	KeyTimeBreakHigh, KeyTimeBreakLow, KeyTimeHit05x, KeyTimeHit1x, KeyTimeHit2x,
	KeyDayOpen, KeyDayHigh, KeyDayLow, KeyDayClose, KeyDayRange, KeyDayVol, KeySessionClose,
}

// ExpectedKeys returns the sorted set of metric keys every complete session
// record must carry.
func ExpectedKeys() []string {
	keys := make([]string, len(expectedKeys))
	copy(keys, expectedKeys)
	sort.Strings(keys)
	return keys
}

// Diff returns the expected keys absent from the mapping, sorted. A key
// present with a nil value counts as present: nil is a computed
// "not applicable", not a hole.
func Diff(existing Fields, expected []string) []string {
	var missing []string
	for _, key := range expected {
		if _, ok := existing[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}
