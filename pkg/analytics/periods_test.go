package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("ytd")
	require.NoError(t, err)
	require.Equal(t, PeriodYTD, p.ID)
	require.Zero(t, p.Days)

	p, err = ParsePeriod(" YTD ")
	require.NoError(t, err)
	require.Equal(t, PeriodYTD, p.ID)

	p, err = ParsePeriod("last_30_days")
	require.NoError(t, err)
	require.Equal(t, "last_30_days", p.ID)
	require.Equal(t, 30, p.Days)

	for _, invalid := range []string{"weekly", "last_x_days", "last_0_days", "last_-5_days", ""} {
		_, err = ParsePeriod(invalid)
		require.Error(t, err, "period %q must not parse", invalid)
	}
}

func TestDefaultPeriods(t *testing.T) {
	periods := DefaultPeriods()
	require.Len(t, periods, 9)
	require.Equal(t, PeriodYTD, periods[0].ID)
	require.Equal(t, "last_730_days", periods[1].ID)
	require.Equal(t, "last_7_days", periods[len(periods)-1].ID)
}

func TestPeriodWindow(t *testing.T) {
	today := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	historyStart := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	start, end := Period{ID: "last_30_days", Days: 30}.Window(today, historyStart)
	require.Equal(t, "2023-12-11", start.Format(time.DateOnly))
	require.Equal(t, "2024-01-09", end.Format(time.DateOnly))

	start, end = Period{ID: PeriodYTD}.Window(today, historyStart)
	require.True(t, start.Equal(historyStart))
	require.Equal(t, "2024-01-09", end.Format(time.DateOnly))
}

func TestPeriodTooLongFor(t *testing.T) {
	today := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	period := Period{ID: "last_30_days", Days: 30}

	young := time.Date(2023, 12, 20, 0, 0, 0, 0, time.UTC)
	require.True(t, period.TooLongFor(today, young))

	old := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	require.False(t, period.TooLongFor(today, old))

	require.False(t, Period{ID: PeriodYTD}.TooLongFor(today, young), "full history is always allowed")
}
