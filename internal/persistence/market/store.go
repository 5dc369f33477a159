package marketpersist

import (
	"context"
	"database/sql"
	"errors"

	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"equilibrium-api/pkg/engine"
	"equilibrium-api/pkg/market"
)

var _ engine.RawStore = (*Store)(nil)

// Store persists raw candles and per-asset sync cursors in Postgres.
type Store struct {
	conn sqlx.SqlConn
}

// NewStore wires a candle store over an open connection.
func NewStore(conn sqlx.SqlConn) *Store {
	if conn == nil {
		return nil
	}
	return &Store{conn: conn}
}

type cursorRow struct {
	AssetId           string       `db:"asset_id"`
	LastIngested      int64        `db:"last_ingested"`
	LastProcessedDate sql.NullTime `db:"last_processed_date"`
}

// GetCursor reads the sync cursor straight from Postgres. Cursor reads bypass
// any row cache: the engine must see the newest committed write even when a
// different process advanced it.
func (s *Store) GetCursor(ctx context.Context, assetID string) (*engine.SyncCursor, error) {
	const query = `SELECT asset_id, last_ingested, last_processed_date FROM public.sync_cursors WHERE asset_id = $1 LIMIT 1`
	var row cursorRow
	if err := s.conn.QueryRowCtx(ctx, &row, query, assetID); err != nil {
		if errors.Is(err, sqlx.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	cursor := &engine.SyncCursor{
		AssetID:      row.AssetId,
		LastIngested: row.LastIngested,
	}
	if row.LastProcessedDate.Valid {
		cursor.LastProcessedDate = row.LastProcessedDate.Time.UTC()
	}
	return cursor, nil
}

// UpsertCandles writes one page of candles atomically. Rows are keyed on
// (asset_id, ts) so replaying a page after a crash rewrites the same rows.
func (s *Store) UpsertCandles(ctx context.Context, assetID string, candles []market.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	const stmt = `
INSERT INTO public.candles (asset_id, ts, open, high, low, close, volume)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (asset_id, ts) DO UPDATE SET
    open = EXCLUDED.open,
    high = EXCLUDED.high,
    low = EXCLUDED.low,
    close = EXCLUDED.close,
    volume = EXCLUDED.volume;`
	return s.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		for _, c := range candles {
			if _, err := session.ExecCtx(ctx, stmt, assetID, c.Ts, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetLastIngested advances the ingestion cursor. GREATEST keeps the cursor
// monotonic when two writers race.
func (s *Store) SetLastIngested(ctx context.Context, assetID string, ts int64) error {
	const stmt = `
INSERT INTO public.sync_cursors (asset_id, last_ingested, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (asset_id) DO UPDATE SET
    last_ingested = GREATEST(sync_cursors.last_ingested, EXCLUDED.last_ingested),
    updated_at = NOW();`
	_, err := s.conn.ExecCtx(ctx, stmt, assetID, ts)
	return err
}

type candleRow struct {
	Ts     int64   `db:"ts"`
	Open   float64 `db:"open"`
	High   float64 `db:"high"`
	Low    float64 `db:"low"`
	Close  float64 `db:"close"`
	Volume float64 `db:"volume"`
}

// CandleRange returns candles with from <= ts < to, oldest first.
func (s *Store) CandleRange(ctx context.Context, assetID string, from, to int64) ([]market.Candle, error) {
	const query = `SELECT ts, open, high, low, close, volume FROM public.candles WHERE asset_id = $1 AND ts >= $2 AND ts < $3 ORDER BY ts ASC`
	var rows []candleRow
	if err := s.conn.QueryRowsCtx(ctx, &rows, query, assetID, from, to); err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(rows))
	for _, row := range rows {
		out = append(out, market.Candle{
			Ts:     row.Ts,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}
	return out, nil
}

// ClearProcessedDate blanks the processed-session side of the cursor while
// keeping the ingestion side, so the next run rebuilds metrics without
// refetching raw history.
func (s *Store) ClearProcessedDate(ctx context.Context, assetID string) error {
	const stmt = `UPDATE public.sync_cursors SET last_processed_date = NULL, updated_at = NOW() WHERE asset_id = $1`
	_, err := s.conn.ExecCtx(ctx, stmt, assetID)
	return err
}

// DeleteAsset drops the asset's candles and its whole cursor row. The next
// sync refetches from the configured history start.
func (s *Store) DeleteAsset(ctx context.Context, assetID string) error {
	return s.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		if _, err := session.ExecCtx(ctx, `DELETE FROM public.candles WHERE asset_id = $1`, assetID); err != nil {
			return err
		}
		_, err := session.ExecCtx(ctx, `DELETE FROM public.sync_cursors WHERE asset_id = $1`, assetID)
		return err
	})
}

// EarliestCandleTime returns the oldest stored open time, 0 when none.
func (s *Store) EarliestCandleTime(ctx context.Context, assetID string) (int64, error) {
	const query = `SELECT COALESCE(MIN(ts), 0) FROM public.candles WHERE asset_id = $1`
	var ts int64
	if err := s.conn.QueryRowCtx(ctx, &ts, query, assetID); err != nil {
		return 0, err
	}
	return ts, nil
}
