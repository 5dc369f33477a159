package engine

import (
	"context"
	"time"

	"equilibrium-api/pkg/footprint"
	"equilibrium-api/pkg/market"
)

// MarketSource is the slice of a market provider the engine consumes.
// Implementations return candles ordered oldest first, with open times at or
// after since (unix milliseconds); an empty slice means no more data.
type MarketSource interface {
	FetchCandles(ctx context.Context, assetID string, since int64, limit int) ([]market.Candle, error)
}

// SyncCursor tracks per-asset progress. LastIngested is the open time of the
// newest stored candle in unix milliseconds. LastProcessedDate is the session
// date of the newest built metric row, zero when no session has been built.
type SyncCursor struct {
	AssetID           string
	LastIngested      int64
	LastProcessedDate time.Time
}

// RawStore persists candles and sync cursors. Candle upserts are keyed on
// (asset, open time) so replaying a batch is a no-op.
type RawStore interface {
	// GetCursor returns the cursor for an asset, or (nil, nil) when the
	// asset has never been synced.
	GetCursor(ctx context.Context, assetID string) (*SyncCursor, error)
	UpsertCandles(ctx context.Context, assetID string, candles []market.Candle) error
	// SetLastIngested advances the ingestion cursor. Implementations never
	// move the cursor backwards.
	SetLastIngested(ctx context.Context, assetID string, ts int64) error
	// CandleRange returns candles with from <= open time < to, oldest first.
	CandleRange(ctx context.Context, assetID string, from, to int64) ([]market.Candle, error)
	// EarliestCandleTime returns the oldest stored open time, 0 when the
	// asset has no candles.
	EarliestCandleTime(ctx context.Context, assetID string) (int64, error)
}

// MetricStore persists per-session metric rows keyed on (asset, session date).
type MetricStore interface {
	// SessionMetrics returns rows with from <= date <= to ordered by date.
	SessionMetrics(ctx context.Context, assetID string, from, to time.Time) ([]*footprint.SessionMetric, error)
	// OldestSessionMetric returns the earliest stored row, or (nil, nil)
	// when the asset has no metrics.
	OldestSessionMetric(ctx context.Context, assetID string) (*footprint.SessionMetric, error)
	// SessionDates returns every stored session date in ascending order.
	SessionDates(ctx context.Context, assetID string) ([]time.Time, error)
	// UpsertSessionMetric writes one row and advances the processed cursor
	// in the same transaction. With patch set, keys already present on the
	// stored row keep their stored values and only missing keys are filled.
	UpsertSessionMetric(ctx context.Context, assetID string, date time.Time, fields footprint.Fields, patch bool) error
}

// ReportCache is the publish seam to the external read cache. Publish with a
// zero ttl stores the value without expiry.
type ReportCache interface {
	Publish(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// AssetLocker serializes per-asset runs across processes. Acquire returns
// acquired=false without error when another holder owns the lock; release is
// non-nil whenever acquired is true.
type AssetLocker interface {
	Acquire(ctx context.Context, assetID string) (release func(), acquired bool, err error)
}
