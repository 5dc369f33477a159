package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"equilibrium-api/pkg/footprint"
	"equilibrium-api/pkg/market"
)

const testAsset = "BTCUSDT"

func testEngineConfig(assets ...string) Config {
	return Config{
		Assets:       assets,
		HistoryStart: "2024-01-01",
		Timezone:     "America/New_York",
		SessionStart: "09:30",
		IBEnd:        "10:30",
		SessionEnd:   "16:00",
		Interval:     "1m",
		PageLimit:    500,
		MinCandles:   3,
		MinSamples:   2,
		Periods:      []string{"ytd"},
		Workers:      2,
	}
}

type harness struct {
	cfg     Config
	cal     *footprint.Calendar
	src     *fakeSource
	raw     *fakeRawStore
	metrics *fakeMetricStore
	cache   *fakeCache
	locker  *fakeLocker
	runner  *Runner
	now     time.Time
}

func newHarness(t *testing.T, assets ...string) *harness {
	t.Helper()
	cfg := testEngineConfig(assets...)
	cal, err := cfg.Calendar()
	require.NoError(t, err)

	h := &harness{
		cfg:    cfg,
		cal:    cal,
		src:    newFakeSource(),
		raw:    newFakeRawStore(),
		cache:  newFakeCache(),
		locker: newFakeLocker(),
		// Thursday noon in New York; the latest closed session is
		// Wednesday 2024-01-10.
		now: time.Date(2024, 1, 11, 12, 0, 0, 0, cal.Location()),
	}
	h.metrics = newFakeMetricStore(h.raw)

	runner, err := NewRunner(cfg, Dependencies{
		Source:  h.src,
		Raw:     h.raw,
		Metrics: h.metrics,
		Reports: h.cache,
		Locks:   h.locker,
	}, WithClock(func() time.Time { return h.now }))
	require.NoError(t, err)
	h.runner = runner
	return h
}

func (h *harness) barAt(t *testing.T, day, clock string, o, hi, lo, c, v float64) market.Candle {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04", day+" "+clock, h.cal.Location())
	require.NoError(t, err)
	return market.Candle{Ts: ts.UnixMilli(), Open: o, High: hi, Low: lo, Close: c, Volume: v}
}

// dayCandles yields four bars that clear the sparse-session floor, break the
// opening range high and then close back inside it.
func (h *harness) dayCandles(t *testing.T, day string, base float64) []market.Candle {
	t.Helper()
	return []market.Candle{
		h.barAt(t, day, "09:30", base, base+5, base-5, base+2, 10),
		h.barAt(t, day, "09:45", base+2, base+10, base-2, base+8, 12),
		h.barAt(t, day, "11:00", base+8, base+12, base+6, base+11, 6),
		h.barAt(t, day, "15:30", base+11, base+11, base+3, base+6, 3),
	}
}

func (h *harness) feedDays(t *testing.T, asset string, days ...string) {
	t.Helper()
	for i, day := range days {
		h.src.add(asset, h.dayCandles(t, day, 100+float64(i)*10)...)
	}
}

func (h *harness) date(t *testing.T, day string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", day)
	require.NoError(t, err)
	return d
}

func (h *harness) run(t *testing.T) *RunSummary {
	t.Helper()
	summary, err := h.runner.RunAll(context.Background())
	require.NoError(t, err)
	return summary
}

func TestRunnerFullRebuildFromEmpty(t *testing.T) {
	h := newHarness(t, testAsset)
	h.feedDays(t, testAsset, "2024-01-08", "2024-01-09", "2024-01-10")

	summary := h.run(t)
	require.Len(t, summary.Assets, 1)
	require.Equal(t, 1, summary.Succeeded)
	require.Zero(t, summary.Failed)

	out := summary.Assets[0]
	require.Empty(t, out.Error)
	require.False(t, out.Skipped)
	require.Equal(t, string(ModeFullRecalc), out.Mode)
	require.Equal(t, 12, out.CandlesAdded)
	require.Equal(t, 3, out.SessionsBuilt)
	require.Zero(t, out.SessionsSkipped)
	require.Equal(t, 3, out.ReportsPublished)

	_, cursor := h.raw.snapshot(testAsset)
	require.Equal(t, h.barAt(t, "2024-01-10", "15:30", 0, 0, 0, 0, 0).Ts, cursor.LastIngested)
	require.Equal(t, h.date(t, "2024-01-10"), cursor.LastProcessedDate)

	for _, day := range []string{"2024-01-08", "2024-01-09", "2024-01-10"} {
		fields := h.metrics.fieldsAt(testAsset, h.date(t, day))
		require.NotNil(t, fields, "row for %s", day)
		require.Empty(t, footprint.Diff(fields, footprint.ExpectedKeys()))
	}

	for _, key := range []string{
		ReportKey(testAsset, "ib", "ytd"),
		ReportKey(testAsset, "seasonality", "ytd"),
		ReportKey(testAsset, "timing", "ytd"),
		FreshnessKey(testAsset),
		StatusKey(),
	} {
		_, ok := h.cache.get(key)
		require.True(t, ok, "cache key %s", key)
	}
}

func TestRunnerSecondRunIsUpToDate(t *testing.T) {
	h := newHarness(t, testAsset)
	h.feedDays(t, testAsset, "2024-01-08", "2024-01-09", "2024-01-10")
	h.run(t)

	candlesBefore, cursorBefore := h.raw.snapshot(testAsset)
	h.metrics.resetUpserts()

	summary := h.run(t)
	out := summary.Assets[0]
	require.Empty(t, out.Error)
	require.Equal(t, string(ModeUpToDate), out.Mode)
	require.Zero(t, out.CandlesAdded)
	require.Zero(t, out.SessionsBuilt)
	require.Equal(t, 3, out.ReportsPublished)
	require.Empty(t, h.metrics.upsertLog())

	candlesAfter, cursorAfter := h.raw.snapshot(testAsset)
	require.Equal(t, candlesBefore, candlesAfter)
	require.Equal(t, cursorBefore, cursorAfter)
}

func TestRunnerPublishesIdenticalBytesForIdenticalInput(t *testing.T) {
	h1 := newHarness(t, testAsset)
	h1.feedDays(t, testAsset, "2024-01-08", "2024-01-09", "2024-01-10")
	h1.run(t)

	h2 := newHarness(t, testAsset)
	h2.feedDays(t, testAsset, "2024-01-08", "2024-01-09", "2024-01-10")
	h2.run(t)

	for _, reportType := range []string{"ib", "seasonality", "timing"} {
		key := ReportKey(testAsset, reportType, "ytd")
		first, ok := h1.cache.get(key)
		require.True(t, ok)
		second, ok := h2.cache.get(key)
		require.True(t, ok)
		require.Equal(t, first, second, "payload bytes for %s", key)
	}
}

func TestRunnerAppendBuildsOnlyNewSessions(t *testing.T) {
	h := newHarness(t, testAsset)
	h.feedDays(t, testAsset, "2024-01-08", "2024-01-09")
	h.run(t)

	jan8Before := h.metrics.fieldsAt(testAsset, h.date(t, "2024-01-08"))
	jan9Before := h.metrics.fieldsAt(testAsset, h.date(t, "2024-01-09"))

	h.src.add(testAsset, h.dayCandles(t, "2024-01-10", 120)...)
	h.metrics.resetUpserts()

	summary := h.run(t)
	out := summary.Assets[0]
	require.Empty(t, out.Error)
	require.Equal(t, string(ModeAppend), out.Mode)
	require.Equal(t, 4, out.CandlesAdded)
	require.Equal(t, 1, out.SessionsBuilt)

	log := h.metrics.upsertLog()
	require.Len(t, log, 1)
	require.Equal(t, h.date(t, "2024-01-10"), log[0].date)
	require.False(t, log[0].patch)

	require.Equal(t, jan8Before, h.metrics.fieldsAt(testAsset, h.date(t, "2024-01-08")))
	require.Equal(t, jan9Before, h.metrics.fieldsAt(testAsset, h.date(t, "2024-01-09")))

	_, cursor := h.raw.snapshot(testAsset)
	require.Equal(t, h.date(t, "2024-01-10"), cursor.LastProcessedDate)
}

func TestRunnerHealsInteriorGapExactly(t *testing.T) {
	h := newHarness(t, testAsset)
	h.feedDays(t, testAsset, "2024-01-08", "2024-01-09", "2024-01-10")
	h.run(t)

	jan9 := h.date(t, "2024-01-09")
	wantFields := h.metrics.fieldsAt(testAsset, jan9)
	jan8Before := h.metrics.fieldsAt(testAsset, h.date(t, "2024-01-08"))
	jan10Before := h.metrics.fieldsAt(testAsset, h.date(t, "2024-01-10"))

	h.metrics.deleteRow(testAsset, jan9)
	h.metrics.resetUpserts()

	summary := h.run(t)
	out := summary.Assets[0]
	require.Empty(t, out.Error)
	require.Equal(t, string(ModeSelfHeal), out.Mode)
	require.Equal(t, 1, out.SessionsBuilt)

	log := h.metrics.upsertLog()
	require.Len(t, log, 1)
	require.Equal(t, jan9, log[0].date)
	require.False(t, log[0].patch)

	// The healed row is byte-for-byte what the original build produced.
	require.Equal(t, wantFields, h.metrics.fieldsAt(testAsset, jan9))
	require.Equal(t, jan8Before, h.metrics.fieldsAt(testAsset, h.date(t, "2024-01-08")))
	require.Equal(t, jan10Before, h.metrics.fieldsAt(testAsset, h.date(t, "2024-01-10")))

	// The processed cursor never moves backwards during a heal.
	_, cursor := h.raw.snapshot(testAsset)
	require.Equal(t, h.date(t, "2024-01-10"), cursor.LastProcessedDate)
}

func TestRunnerSchemaDriftTriggersPatchingRebuild(t *testing.T) {
	h := newHarness(t, testAsset)
	h.feedDays(t, testAsset, "2024-01-08", "2024-01-09", "2024-01-10")
	h.run(t)

	jan8 := h.date(t, "2024-01-08")
	jan9 := h.date(t, "2024-01-09")

	// Simulate rows written before ext_coeff and session_close existed,
	// plus a manually corrected value that a rebuild must not clobber.
	h.metrics.dropField(testAsset, jan8, footprint.KeyExtCoeff)
	h.metrics.dropField(testAsset, jan8, footprint.KeySessionClose)
	h.metrics.setField(testAsset, jan9, footprint.KeyIBHigh, 999.0)
	h.metrics.resetUpserts()

	summary := h.run(t)
	out := summary.Assets[0]
	require.Empty(t, out.Error)
	require.Equal(t, string(ModeFullRecalc), out.Mode)
	require.Equal(t, 3, out.SessionsBuilt)

	log := h.metrics.upsertLog()
	require.Len(t, log, 3)
	for _, call := range log {
		require.True(t, call.patch, "rebuild of %s must patch", call.date.Format("2006-01-02"))
	}

	healed := h.metrics.fieldsAt(testAsset, jan8)
	require.Empty(t, footprint.Diff(healed, footprint.ExpectedKeys()))

	// Existing values win in patch mode; only missing keys were filled.
	got, ok := h.metrics.fieldsAt(testAsset, jan9).Float(footprint.KeyIBHigh)
	require.True(t, ok)
	require.Equal(t, 999.0, got)
}

func TestRunnerIsolatesPerAssetFailures(t *testing.T) {
	h := newHarness(t, "AAAUSDT", testAsset)
	h.feedDays(t, testAsset, "2024-01-08", "2024-01-09", "2024-01-10")
	h.src.failFor["AAAUSDT"] = errors.New("exchange down")

	summary := h.run(t)
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, 1, summary.Succeeded)
	require.Zero(t, summary.Skipped)

	failed := summary.Assets[0]
	require.Equal(t, "AAAUSDT", failed.Asset)
	require.Contains(t, failed.Error, "exchange down")
	var fetchErr *FetchError
	require.ErrorAs(t, failed.Err, &fetchErr)
	require.Equal(t, "AAAUSDT", fetchErr.Asset)

	ok := summary.Assets[1]
	require.Equal(t, testAsset, ok.Asset)
	require.Empty(t, ok.Error)
	require.Equal(t, 3, ok.SessionsBuilt)
	require.Equal(t, 3, ok.ReportsPublished)

	_, exists := h.cache.get(ReportKey(testAsset, "ib", "ytd"))
	require.True(t, exists)
	_, exists = h.cache.get(ReportKey("AAAUSDT", "ib", "ytd"))
	require.False(t, exists)
}

func TestRunnerSkipsLockedAssets(t *testing.T) {
	h := newHarness(t, testAsset)
	h.feedDays(t, testAsset, "2024-01-08")
	h.locker.denied[testAsset] = true

	summary := h.run(t)
	require.Equal(t, 1, summary.Skipped)
	require.Zero(t, summary.Failed)
	require.Zero(t, summary.Succeeded)

	out := summary.Assets[0]
	require.True(t, out.Skipped)
	require.Empty(t, out.Error)
	require.Zero(t, h.src.calls[testAsset])
}

func TestRunnerSnapshotRoundTrips(t *testing.T) {
	h := newHarness(t, testAsset)
	h.feedDays(t, testAsset, "2024-01-08", "2024-01-09", "2024-01-10")
	summary := h.run(t)
	require.Len(t, summary.RunID, 36)

	body, ok := h.cache.get(StatusKey())
	require.True(t, ok)
	decoded, err := DecodeRunSummary(body)
	require.NoError(t, err)
	require.Equal(t, summary.RunID, decoded.RunID)
	require.Equal(t, summary.Succeeded, decoded.Succeeded)
	require.Len(t, decoded.Assets, 1)
	require.Equal(t, testAsset, decoded.Assets[0].Asset)
	require.Equal(t, 3, decoded.Assets[0].SessionsBuilt)
}

func TestRunnerReportsMetricStoreFailures(t *testing.T) {
	h := newHarness(t, testAsset)
	h.feedDays(t, testAsset, "2024-01-08")
	h.metrics.failUpsert = errors.New("disk full")

	summary := h.run(t)
	require.Equal(t, 1, summary.Failed)

	out := summary.Assets[0]
	var persistErr *PersistenceError
	require.ErrorAs(t, out.Err, &persistErr)
	require.Equal(t, testAsset, persistErr.Asset)
	require.Contains(t, out.Error, "disk full")

	// Candles land before the metric write fails; the sync itself stands.
	candles, _ := h.raw.snapshot(testAsset)
	require.Len(t, candles, 4)
}

func TestRunnerSkipsSparseDaysAndRemembersThem(t *testing.T) {
	h := newHarness(t, testAsset)
	h.feedDays(t, testAsset, "2024-01-08")
	// Tuesday only prints two bars, below the min_candles floor of three.
	h.src.add(testAsset,
		h.barAt(t, "2024-01-09", "09:30", 110, 112, 108, 111, 2),
		h.barAt(t, "2024-01-09", "11:00", 111, 113, 110, 112, 1),
	)
	h.src.add(testAsset, h.dayCandles(t, "2024-01-10", 120)...)

	summary := h.run(t)
	out := summary.Assets[0]
	require.Empty(t, out.Error)
	require.Equal(t, 2, out.SessionsBuilt)
	require.Equal(t, 1, out.SessionsSkipped)
	require.Nil(t, h.metrics.fieldsAt(testAsset, h.date(t, "2024-01-09")))

	// The skipped date would read as a gap forever; the runner remembers it
	// and does not loop on healing.
	summary = h.run(t)
	out = summary.Assets[0]
	require.Empty(t, out.Error)
	require.Equal(t, string(ModeUpToDate), out.Mode)
	require.Zero(t, out.SessionsBuilt)
	require.Zero(t, out.SessionsSkipped)
}

func TestRunnerPublishedEnvelopeShape(t *testing.T) {
	h := newHarness(t, testAsset)
	h.feedDays(t, testAsset, "2024-01-08", "2024-01-09", "2024-01-10")
	h.run(t)

	body, ok := h.cache.get(ReportKey(testAsset, "ib", "ytd"))
	require.True(t, ok)

	var envelope struct {
		Symbol     string `json:"symbol"`
		ReportType string `json:"report_type"`
		Period     string `json:"period"`
		ComputedAt string `json:"computed_at"`
		Payload    struct {
			SampleSize    int  `json:"sample_size"`
			LowConfidence bool `json:"low_confidence"`
			SchemaVersion int  `json:"schema_version"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.Equal(t, testAsset, envelope.Symbol)
	require.Equal(t, "ib", envelope.ReportType)
	require.Equal(t, "ytd", envelope.Period)
	require.Equal(t, h.now.UTC().Format(time.RFC3339), envelope.ComputedAt)
	require.Equal(t, 3, envelope.Payload.SampleSize)
	require.False(t, envelope.Payload.LowConfidence)
	require.Equal(t, footprint.SchemaVersion, envelope.Payload.SchemaVersion)

	fresh, ok := h.cache.get(FreshnessKey(testAsset))
	require.True(t, ok)
	require.Equal(t, h.now.UTC().Format(time.RFC3339), string(fresh))
}
