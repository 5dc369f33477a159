package engine

import (
	"context"
	"time"

	"equilibrium-api/pkg/footprint"
)

// IntegrityReport captures the stored-metric health of one asset.
type IntegrityReport struct {
	// Empty is set when the asset has no metric rows at all.
	Empty bool
	// Drift is non-nil when a stored row is missing expected keys.
	Drift *SchemaDriftDetected
	// Gap is non-nil when interior trading days have no row.
	Gap *GapDetected
	// FirstDate and LastDate bound the stored rows when Empty is false.
	FirstDate time.Time
	LastDate  time.Time
}

// CheckIntegrity probes an asset's metric rows for schema drift and interior
// gaps. The oldest row is probed first: rows are only ever written with the
// full current key set, so the oldest row predating a schema change is the
// first to show drift. scanDays > 0 additionally diffs every row in the most
// recent scanDays calendar days.
func CheckIntegrity(ctx context.Context, store MetricStore, cal *footprint.Calendar, assetID string, scanDays int, now time.Time) (*IntegrityReport, error) {
	report := &IntegrityReport{}
	expected := footprint.ExpectedKeys()

	oldest, err := store.OldestSessionMetric(ctx, assetID)
	if err != nil {
		return nil, &PersistenceError{Asset: assetID, Op: "load oldest metric", Err: err}
	}
	if oldest == nil {
		report.Empty = true
		return report, nil
	}
	if missing := footprint.Diff(oldest.Fields, expected); len(missing) > 0 {
		report.Drift = &SchemaDriftDetected{Asset: assetID, MissingKeys: missing}
		return report, nil
	}

	if scanDays > 0 {
		to := footprint.DateOf(now.UTC())
		from := to.AddDate(0, 0, -scanDays)
		recent, err := store.SessionMetrics(ctx, assetID, from, to)
		if err != nil {
			return nil, &PersistenceError{Asset: assetID, Op: "scan recent metrics", Err: err}
		}
		for _, m := range recent {
			if missing := footprint.Diff(m.Fields, expected); len(missing) > 0 {
				report.Drift = &SchemaDriftDetected{Asset: assetID, MissingKeys: missing}
				return report, nil
			}
		}
	}

	dates, err := store.SessionDates(ctx, assetID)
	if err != nil {
		return nil, &PersistenceError{Asset: assetID, Op: "load session dates", Err: err}
	}
	if len(dates) == 0 {
		report.Empty = true
		return report, nil
	}
	report.FirstDate = dates[0]
	report.LastDate = dates[len(dates)-1]
	if missing := missingTradingDays(cal, dates); len(missing) > 0 {
		report.Gap = &GapDetected{Asset: assetID, Dates: missing}
	}
	return report, nil
}

// missingTradingDays returns trading days strictly inside the stored range
// that have no stored row, in ascending order.
func missingTradingDays(cal *footprint.Calendar, stored []time.Time) []time.Time {
	if len(stored) < 2 {
		return nil
	}
	have := make(map[int64]struct{}, len(stored))
	for _, d := range stored {
		have[d.Unix()] = struct{}{}
	}
	var missing []time.Time
	for _, d := range cal.TradingDays(stored[0], stored[len(stored)-1]) {
		if _, ok := have[d.Unix()]; !ok {
			missing = append(missing, d)
		}
	}
	return missing
}
