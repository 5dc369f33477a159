package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"equilibrium-api/pkg/footprint"
)

func completeFields() footprint.Fields {
	fields := footprint.Fields{}
	for _, key := range footprint.ExpectedKeys() {
		fields[key] = nil
	}
	return fields
}

func seedRow(t *testing.T, store *fakeMetricStore, asset, day string, fields footprint.Fields) time.Time {
	t.Helper()
	date, err := time.Parse("2006-01-02", day)
	require.NoError(t, err)
	require.NoError(t, store.UpsertSessionMetric(context.Background(), asset, date, fields, false))
	return date
}

func integrityCalendar(t *testing.T) *footprint.Calendar {
	t.Helper()
	cal, err := footprint.NewCalendar("America/New_York", "09:30", "10:30", "16:00")
	require.NoError(t, err)
	return cal
}

func TestCheckIntegrityEmptyStore(t *testing.T) {
	store := newFakeMetricStore(nil)
	cal := integrityCalendar(t)

	report, err := CheckIntegrity(context.Background(), store, cal, testAsset, 0, time.Now())
	require.NoError(t, err)
	require.True(t, report.Empty)
	require.Nil(t, report.Drift)
	require.Nil(t, report.Gap)
}

func TestCheckIntegrityContiguousCompleteRows(t *testing.T) {
	store := newFakeMetricStore(nil)
	cal := integrityCalendar(t)
	first := seedRow(t, store, testAsset, "2024-01-08", completeFields())
	seedRow(t, store, testAsset, "2024-01-09", completeFields())
	last := seedRow(t, store, testAsset, "2024-01-10", completeFields())

	report, err := CheckIntegrity(context.Background(), store, cal, testAsset, 0, time.Now())
	require.NoError(t, err)
	require.False(t, report.Empty)
	require.Nil(t, report.Drift)
	require.Nil(t, report.Gap)
	require.Equal(t, first, report.FirstDate)
	require.Equal(t, last, report.LastDate)
}

func TestCheckIntegrityFindsInteriorGapExactly(t *testing.T) {
	store := newFakeMetricStore(nil)
	cal := integrityCalendar(t)
	seedRow(t, store, testAsset, "2024-01-08", completeFields())
	seedRow(t, store, testAsset, "2024-01-10", completeFields())

	report, err := CheckIntegrity(context.Background(), store, cal, testAsset, 0, time.Now())
	require.NoError(t, err)
	require.Nil(t, report.Drift)
	require.NotNil(t, report.Gap)
	require.Len(t, report.Gap.Dates, 1)
	require.Equal(t, "2024-01-09", report.Gap.Dates[0].Format("2006-01-02"))
}

func TestCheckIntegrityIgnoresWeekends(t *testing.T) {
	store := newFakeMetricStore(nil)
	cal := integrityCalendar(t)
	// Friday and Monday are adjacent trading days.
	seedRow(t, store, testAsset, "2024-01-05", completeFields())
	seedRow(t, store, testAsset, "2024-01-08", completeFields())

	report, err := CheckIntegrity(context.Background(), store, cal, testAsset, 0, time.Now())
	require.NoError(t, err)
	require.Nil(t, report.Gap)
}

func TestCheckIntegrityDetectsDriftOnOldestRow(t *testing.T) {
	store := newFakeMetricStore(nil)
	cal := integrityCalendar(t)
	drifted := completeFields()
	delete(drifted, footprint.KeyExtCoeff)
	delete(drifted, footprint.KeyPDH)
	seedRow(t, store, testAsset, "2024-01-08", drifted)
	seedRow(t, store, testAsset, "2024-01-09", completeFields())

	report, err := CheckIntegrity(context.Background(), store, cal, testAsset, 0, time.Now())
	require.NoError(t, err)
	require.NotNil(t, report.Drift)
	require.Equal(t, []string{footprint.KeyExtCoeff, footprint.KeyPDH}, report.Drift.MissingKeys)
	require.Equal(t, testAsset, report.Drift.Asset)
}

func TestCheckIntegrityBoundedScanCatchesRecentDrift(t *testing.T) {
	store := newFakeMetricStore(nil)
	cal := integrityCalendar(t)
	now := time.Date(2024, 1, 11, 12, 0, 0, 0, cal.Location())

	seedRow(t, store, testAsset, "2024-01-08", completeFields())
	recent := completeFields()
	delete(recent, footprint.KeySessionClose)
	seedRow(t, store, testAsset, "2024-01-10", recent)
	seedRow(t, store, testAsset, "2024-01-09", completeFields())

	// The oldest-row probe alone misses drift introduced by a partial write
	// on a newer row; it surfaces as a gapless, driftless report.
	report, err := CheckIntegrity(context.Background(), store, cal, testAsset, 0, now)
	require.NoError(t, err)
	require.Nil(t, report.Drift)

	report, err = CheckIntegrity(context.Background(), store, cal, testAsset, 30, now)
	require.NoError(t, err)
	require.NotNil(t, report.Drift)
	require.Equal(t, []string{footprint.KeySessionClose}, report.Drift.MissingKeys)
}

func TestMissingTradingDays(t *testing.T) {
	cal := integrityCalendar(t)
	parse := func(day string) time.Time {
		d, err := time.Parse("2006-01-02", day)
		require.NoError(t, err)
		return d
	}

	missing := missingTradingDays(cal, []time.Time{parse("2024-01-08"), parse("2024-01-11")})
	require.Len(t, missing, 2)
	require.Equal(t, "2024-01-09", missing[0].Format("2006-01-02"))
	require.Equal(t, "2024-01-10", missing[1].Format("2006-01-02"))

	require.Nil(t, missingTradingDays(cal, []time.Time{parse("2024-01-08")}))
	require.Nil(t, missingTradingDays(cal, nil))
}
