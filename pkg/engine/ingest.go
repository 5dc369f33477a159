package engine

import (
	"context"
	"time"

	"equilibrium-api/pkg/footprint"
	"equilibrium-api/pkg/market"
)

// Ingestor pulls closed candles from a market source into the raw store,
// advancing the per-asset cursor one durable page at a time.
type Ingestor struct {
	source MarketSource
	store  RawStore
	cal    *footprint.Calendar

	historyStart int64
	interval     time.Duration
	pageLimit    int
	fetchTimeout time.Duration
	storeTimeout time.Duration

	now func() time.Time
}

// NewIngestor builds an Ingestor from an engine config. The config must have
// passed Validate.
func NewIngestor(source MarketSource, store RawStore, cal *footprint.Calendar, cfg Config) (*Ingestor, error) {
	interval, err := market.IntervalDuration(cfg.Interval)
	if err != nil {
		return nil, err
	}
	return &Ingestor{
		source:       source,
		store:        store,
		cal:          cal,
		historyStart: cfg.HistoryStartMillis(),
		interval:     interval,
		pageLimit:    cfg.PageLimit,
		fetchTimeout: cfg.FetchTimeout,
		storeTimeout: cfg.StoreTimeout,
		now:          time.Now,
	}, nil
}

// SyncResult summarises one delta sync.
type SyncResult struct {
	Asset string
	// CandlesAdded counts bars newer than the pre-sync cursor. The cursor
	// bar itself is refetched and rewritten but not counted.
	CandlesAdded int
	// FirstNew and LastNew bound the appended bars, 0 when nothing new.
	FirstNew int64
	LastNew  int64
	// Cursor is the ingestion cursor after the sync.
	Cursor int64
}

// Sync fetches every closed candle past the asset's cursor and upserts it.
// The cursor bar is refetched because exchanges revise the newest bar until
// the next one opens; the upsert makes the replay harmless. Bars at or past
// the current session boundary are discarded so only closed sessions ever
// reach the store.
func (ing *Ingestor) Sync(ctx context.Context, assetID string) (*SyncResult, error) {
	res := &SyncResult{Asset: assetID}
	boundary := ing.cal.ClosedBoundary(ing.now())

	cursor, err := ing.getCursor(ctx, assetID)
	if err != nil {
		return nil, &PersistenceError{Asset: assetID, Op: "load cursor", Err: err}
	}

	since := ing.historyStart
	var prevTail int64
	if cursor != nil && cursor.LastIngested > 0 {
		prevTail = cursor.LastIngested
		since = cursor.LastIngested
	}
	res.Cursor = prevTail
	if since >= boundary {
		return res, nil
	}

	step := ing.interval.Milliseconds()
	for {
		batch, err := ing.fetchPage(ctx, assetID, since)
		if err != nil {
			return nil, &FetchError{Asset: assetID, Err: err}
		}

		kept := make([]market.Candle, 0, len(batch))
		for _, c := range batch {
			if c.Ts < boundary {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			break
		}

		if err := ing.upsertPage(ctx, assetID, kept); err != nil {
			return nil, &PersistenceError{Asset: assetID, Op: "upsert candles", Err: err}
		}
		last := kept[len(kept)-1].Ts
		if err := ing.advanceCursor(ctx, assetID, last); err != nil {
			return nil, &PersistenceError{Asset: assetID, Op: "advance cursor", Err: err}
		}

		for _, c := range kept {
			if c.Ts <= prevTail {
				continue
			}
			if res.FirstNew == 0 {
				res.FirstNew = c.Ts
			}
			res.LastNew = c.Ts
			res.CandlesAdded++
		}
		res.Cursor = last

		next := last + step
		if next <= since {
			// Provider replayed an old page; stop rather than spin.
			break
		}
		since = next
		if since >= boundary {
			break
		}
		if len(batch) < ing.pageLimit {
			break
		}
	}
	return res, nil
}

func (ing *Ingestor) getCursor(ctx context.Context, assetID string) (*SyncCursor, error) {
	storeCtx, cancel := context.WithTimeout(ctx, ing.storeTimeout)
	defer cancel()
	return ing.store.GetCursor(storeCtx, assetID)
}

func (ing *Ingestor) fetchPage(ctx context.Context, assetID string, since int64) ([]market.Candle, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, ing.fetchTimeout)
	defer cancel()
	return ing.source.FetchCandles(fetchCtx, assetID, since, ing.pageLimit)
}

func (ing *Ingestor) upsertPage(ctx context.Context, assetID string, candles []market.Candle) error {
	storeCtx, cancel := context.WithTimeout(ctx, ing.storeTimeout)
	defer cancel()
	return ing.store.UpsertCandles(storeCtx, assetID, candles)
}

// advanceCursor runs only after the page write returned, so a crash between
// the two leaves the cursor behind the data and the next run replays the
// page instead of skipping it.
func (ing *Ingestor) advanceCursor(ctx context.Context, assetID string, ts int64) error {
	storeCtx, cancel := context.WithTimeout(ctx, ing.storeTimeout)
	defer cancel()
	return ing.store.SetLastIngested(storeCtx, assetID, ts)
}
