package analytics

import (
	"math"
	"sort"
	"time"

	"equilibrium-api/pkg/footprint"
)

// Report types published per asset and period.
const (
	ReportIB          = "ib"
	ReportSeasonality = "seasonality"
	ReportTiming      = "timing"
)

// ReportTypes returns all report types in publish order.
func ReportTypes() []string {
	return []string{ReportIB, ReportSeasonality, ReportTiming}
}

// DefaultMinSamples is the session count below which reports carry the
// low-confidence flag.
const DefaultMinSamples = 20

// Config tunes the model layer.
type Config struct {
	MinSamples int
	Windows    Windows
}

func (c Config) normalized() Config {
	if c.MinSamples <= 0 {
		c.MinSamples = DefaultMinSamples
	}
	c.Windows = c.Windows.normalized()
	return c
}

// Meta is the header every report carries. PeriodStart and PeriodEnd are the
// actual first and last session dates that contributed, not the requested
// window bounds.
type Meta struct {
	Symbol        string `json:"symbol"`
	Period        string `json:"period"`
	PeriodStart   string `json:"period_start"`
	PeriodEnd     string `json:"period_end"`
	SampleSize    int    `json:"sample_size"`
	LowConfidence bool   `json:"low_confidence"`
	SchemaVersion int    `json:"schema_version"`
}

func newMeta(symbol string, period Period, metrics []*footprint.SessionMetric, minSamples int) Meta {
	meta := Meta{
		Symbol:        symbol,
		Period:        period.ID,
		SampleSize:    len(metrics),
		LowConfidence: len(metrics) < minSamples,
		SchemaVersion: footprint.SchemaVersion,
	}
	if len(metrics) > 0 {
		meta.PeriodStart = metrics[0].Date.Format(time.DateOnly)
		meta.PeriodEnd = metrics[len(metrics)-1].Date.Format(time.DateOnly)
	}
	return meta
}

// BuildAll computes every report type for one asset and period. Metrics must
// be date-ordered, oldest first.
func BuildAll(symbol string, period Period, metrics []*footprint.SessionMetric, cfg Config) map[string]any {
	cfg = cfg.normalized()
	return map[string]any{
		ReportIB:          BuildIBReport(symbol, period, metrics, cfg),
		ReportSeasonality: BuildSeasonalityReport(symbol, period, metrics, cfg),
		ReportTiming:      BuildTimingReport(symbol, period, metrics, cfg),
	}
}

// scopeKeys selects the session or full-day variants of the per-day flags.
type scopeKeys struct {
	highBroken     string
	lowBroken      string
	falseBreakHigh string
	falseBreakLow  string
	ext05x         string
	ext1x          string
	ext2x          string
}

var sessionScope = scopeKeys{
	highBroken:     footprint.KeySessionHighBroken,
	lowBroken:      footprint.KeySessionLowBroken,
	falseBreakHigh: footprint.KeySessionFalseBreakHigh,
	falseBreakLow:  footprint.KeySessionFalseBreakLow,
	ext05x:         footprint.KeySessionExt05x,
	ext1x:          footprint.KeySessionExt1x,
	ext2x:          footprint.KeySessionExt2x,
}

var fullDayScope = scopeKeys{
	highBroken:     footprint.KeyFullHighBroken,
	lowBroken:      footprint.KeyFullLowBroken,
	falseBreakHigh: footprint.KeyFullFalseBreakHigh,
	falseBreakLow:  footprint.KeyFullFalseBreakLow,
	ext05x:         footprint.KeyFullExt05x,
	ext1x:          footprint.KeyFullExt1x,
	ext2x:          footprint.KeyFullExt2x,
}

func metricBool(m *footprint.SessionMetric, key string) bool {
	v, ok := m.Fields.Bool(key)
	return ok && v
}

func metricFloat(m *footprint.SessionMetric, key string) (float64, bool) {
	return m.Fields.Float(key)
}

func countTrue(metrics []*footprint.SessionMetric, key string) int {
	n := 0
	for _, m := range metrics {
		if metricBool(m, key) {
			n++
		}
	}
	return n
}

// pct converts a count over a total into a percentage rounded to one
// decimal. A zero total yields 0 rather than NaN.
func pct(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	return round(float64(count)/float64(total)*100, 1)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
