package analytics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"equilibrium-api/pkg/footprint"
)

// ibHistory is three sessions: a failed high break, a low break and a
// two-sided full day. The second day carries no prior levels.
func ibHistory(t *testing.T) []*footprint.SessionMetric {
	return []*footprint.SessionMetric{
		testMetric(t, "2024-01-08", footprint.Fields{
			footprint.KeySessionHighBroken:     true,
			footprint.KeySessionFalseBreakHigh: true,
			footprint.KeyFullHighBroken:        true,
			footprint.KeySessionExt05x:         true,
			footprint.KeyFullExt05x:            true,
			footprint.KeyFullExt1x:             true,
			footprint.KeyPDH:                   100.0,
			footprint.KeyPDL:                   90.0,
			footprint.KeyHitPDH:                true,
			footprint.KeyHitPDL:                false,
			footprint.KeyHitIBMid:              true,
			footprint.KeyAfterHoursHitIB:       true,
			footprint.KeyIBRangeUSD:            10.0,
			footprint.KeyIBRangePct:            1.0,
			footprint.KeyIBVol:                 1000.0,
			footprint.KeyExtCoeff:              1.2,
		}),
		testMetric(t, "2024-01-09", footprint.Fields{
			footprint.KeySessionLowBroken:     true,
			footprint.KeySessionFalseBreakLow: true,
			footprint.KeyFullLowBroken:        true,
			footprint.KeyFullExt05x:           true,
			footprint.KeyIBRangeUSD:           20.0,
			footprint.KeyIBRangePct:           2.0,
			footprint.KeyIBVol:                2000.0,
			footprint.KeyExtCoeff:             0.8,
		}),
		testMetric(t, "2024-01-10", footprint.Fields{
			footprint.KeyFullHighBroken:     true,
			footprint.KeyFullLowBroken:      true,
			footprint.KeyFullFalseBreakHigh: true,
			footprint.KeyFullFalseBreakLow:  true,
			footprint.KeyFullExt05x:         true,
			footprint.KeyPDH:                110.0,
			footprint.KeyPDL:                95.0,
			footprint.KeyHitPDH:             false,
			footprint.KeyHitPDL:             true,
			footprint.KeyHitIBMid:           true,
			footprint.KeyIBRangeUSD:         15.0,
			footprint.KeyIBRangePct:         1.5,
			footprint.KeyIBVol:              1500.0,
			footprint.KeyExtCoeff:           1.0,
		}),
	}
}

func TestBuildIBReport(t *testing.T) {
	report := BuildIBReport("BTCUSDT", Period{ID: PeriodYTD}, ibHistory(t), Config{MinSamples: 3})

	require.Equal(t, 3, report.SampleSize)
	require.False(t, report.LowConfidence)
	require.Equal(t, "2024-01-08", report.PeriodStart)
	require.Equal(t, "2024-01-10", report.PeriodEnd)

	require.InDelta(t, 15.0, report.AvgIBRangeUSD, 1e-9)
	require.InDelta(t, 1.5, report.AvgIBRangePct, 1e-9)
	require.InDelta(t, 1500.0, report.AvgIBVolume, 1e-9)
	require.InDelta(t, 1.0, report.AvgExtensionCoeff, 1e-9)
	require.InDelta(t, 33.3, report.ReturnToIBPct, 1e-9)

	s := report.Session
	require.InDelta(t, 33.3, s.BreakHighPct, 1e-9)
	require.InDelta(t, 33.3, s.BreakLowPct, 1e-9)
	require.InDelta(t, 66.7, s.OneSidedPct, 1e-9)
	require.InDelta(t, 0.0, s.TwoSidedPct, 1e-9)
	require.InDelta(t, 33.3, s.NoBreakoutPct, 1e-9)
	require.InDelta(t, 100.0, s.FalseBreakHighPct, 1e-9)
	require.InDelta(t, 100.0, s.FalseBreakLowPct, 1e-9)
	require.Equal(t, 1, s.HighBreaks)
	require.Equal(t, 1, s.LowBreaks)
	require.InDelta(t, 33.3, s.Hit05xPct, 1e-9)
	require.InDelta(t, 0.0, s.Hit1xPct, 1e-9)
	require.InDelta(t, 50.0, s.IBMidRetestPct, 1e-9)
	require.Equal(t, 2, s.PriorDays)
	require.InDelta(t, 50.0, s.HitPDHPct, 1e-9)
	require.InDelta(t, 50.0, s.HitPDLPct, 1e-9)
	require.InDelta(t, 100.0, s.PDHIfIBHBrokenPct, 1e-9)
	require.InDelta(t, 0.0, s.PDLIfIBLBrokenPct, 1e-9)

	f := report.FullDay
	require.InDelta(t, 66.7, f.BreakHighPct, 1e-9)
	require.InDelta(t, 66.7, f.BreakLowPct, 1e-9)
	require.InDelta(t, 66.7, f.OneSidedPct, 1e-9)
	require.InDelta(t, 33.3, f.TwoSidedPct, 1e-9)
	require.InDelta(t, 0.0, f.NoBreakoutPct, 1e-9)
	require.InDelta(t, 50.0, f.FalseBreakHighPct, 1e-9)
	require.InDelta(t, 50.0, f.FalseBreakLowPct, 1e-9)
	require.Equal(t, 2, f.HighBreaks)
	require.Equal(t, 2, f.LowBreaks)
	require.InDelta(t, 100.0, f.Hit05xPct, 1e-9)
	require.InDelta(t, 33.3, f.Hit1xPct, 1e-9)
	require.InDelta(t, 66.7, f.IBMidRetestPct, 1e-9)
	require.InDelta(t, 50.0, f.PDHIfIBHBrokenPct, 1e-9)
	require.InDelta(t, 100.0, f.PDLIfIBLBrokenPct, 1e-9)
}

func TestBuildIBReportLowConfidence(t *testing.T) {
	report := BuildIBReport("BTCUSDT", Period{ID: PeriodYTD}, ibHistory(t), Config{})
	require.True(t, report.LowConfidence, "three sessions are below the default minimum")
	require.Equal(t, 3, report.SampleSize)
}

func TestBuildIBReportEmptyHistory(t *testing.T) {
	report := BuildIBReport("BTCUSDT", Period{ID: PeriodYTD}, nil, Config{})
	require.Zero(t, report.SampleSize)
	require.True(t, report.LowConfidence)
	require.Zero(t, report.Session.BreakHighPct)
	require.Zero(t, report.FullDay.HighBreaks)
}
