package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"equilibrium-api/pkg/footprint"
	"equilibrium-api/pkg/market"
)

// fakeSource serves a fixed candle feed per asset, honouring since/limit the
// way a real provider does.
type fakeSource struct {
	mu      sync.Mutex
	feed    map[string][]market.Candle
	failFor map[string]error
	calls   map[string]int
	lastReq map[string]int64
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		feed:    make(map[string][]market.Candle),
		failFor: make(map[string]error),
		calls:   make(map[string]int),
		lastReq: make(map[string]int64),
	}
}

func (f *fakeSource) add(asset string, candles ...market.Candle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feed[asset] = append(f.feed[asset], candles...)
	market.SortCandles(f.feed[asset])
}

func (f *fakeSource) FetchCandles(_ context.Context, assetID string, since int64, limit int) ([]market.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[assetID]++
	f.lastReq[assetID] = since
	if err := f.failFor[assetID]; err != nil {
		return nil, err
	}
	var out []market.Candle
	for _, c := range f.feed[assetID] {
		if c.Ts < since {
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// fakeRawStore keeps candles keyed on open time so upserts are idempotent.
type fakeRawStore struct {
	mu      sync.Mutex
	candles map[string]map[int64]market.Candle
	cursors map[string]SyncCursor
}

func newFakeRawStore() *fakeRawStore {
	return &fakeRawStore{
		candles: make(map[string]map[int64]market.Candle),
		cursors: make(map[string]SyncCursor),
	}
}

func (s *fakeRawStore) GetCursor(_ context.Context, assetID string) (*SyncCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.cursors[assetID]
	if !ok {
		return nil, nil
	}
	out := cur
	return &out, nil
}

func (s *fakeRawStore) UpsertCandles(_ context.Context, assetID string, candles []market.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byTs, ok := s.candles[assetID]
	if !ok {
		byTs = make(map[int64]market.Candle)
		s.candles[assetID] = byTs
	}
	for _, c := range candles {
		byTs[c.Ts] = c
	}
	return nil
}

func (s *fakeRawStore) SetLastIngested(_ context.Context, assetID string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.cursors[assetID]
	cur.AssetID = assetID
	if ts > cur.LastIngested {
		cur.LastIngested = ts
	}
	s.cursors[assetID] = cur
	return nil
}

func (s *fakeRawStore) CandleRange(_ context.Context, assetID string, from, to int64) ([]market.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []market.Candle
	for ts, c := range s.candles[assetID] {
		if ts >= from && ts < to {
			out = append(out, c)
		}
	}
	market.SortCandles(out)
	return out, nil
}

func (s *fakeRawStore) EarliestCandleTime(_ context.Context, assetID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var earliest int64
	for ts := range s.candles[assetID] {
		if earliest == 0 || ts < earliest {
			earliest = ts
		}
	}
	return earliest, nil
}

func (s *fakeRawStore) advanceProcessed(assetID string, date time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.cursors[assetID]
	cur.AssetID = assetID
	if date.After(cur.LastProcessedDate) {
		cur.LastProcessedDate = date
	}
	s.cursors[assetID] = cur
}

func (s *fakeRawStore) snapshot(assetID string) (map[int64]market.Candle, SyncCursor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]market.Candle, len(s.candles[assetID]))
	for ts, c := range s.candles[assetID] {
		out[ts] = c
	}
	return out, s.cursors[assetID]
}

type upsertCall struct {
	asset string
	date  time.Time
	patch bool
}

// fakeMetricStore mirrors the transactional contract: every metric upsert
// also advances the raw store's processed cursor.
type fakeMetricStore struct {
	mu         sync.Mutex
	rows       map[string]map[int64]footprint.Fields
	raw        *fakeRawStore
	upserts    []upsertCall
	failUpsert error
}

func newFakeMetricStore(raw *fakeRawStore) *fakeMetricStore {
	return &fakeMetricStore{
		rows: make(map[string]map[int64]footprint.Fields),
		raw:  raw,
	}
}

func (s *fakeMetricStore) SessionMetrics(_ context.Context, assetID string, from, to time.Time) ([]*footprint.SessionMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*footprint.SessionMetric
	for unix, fields := range s.rows[assetID] {
		date := time.Unix(unix, 0).UTC()
		if date.Before(from) || date.After(to) {
			continue
		}
		out = append(out, &footprint.SessionMetric{Symbol: assetID, Date: date, Fields: fields.Clone()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *fakeMetricStore) OldestSessionMetric(_ context.Context, assetID string) (*footprint.SessionMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldest int64
	for unix := range s.rows[assetID] {
		if oldest == 0 || unix < oldest {
			oldest = unix
		}
	}
	if oldest == 0 {
		return nil, nil
	}
	return &footprint.SessionMetric{
		Symbol: assetID,
		Date:   time.Unix(oldest, 0).UTC(),
		Fields: s.rows[assetID][oldest].Clone(),
	}, nil
}

func (s *fakeMetricStore) SessionDates(_ context.Context, assetID string) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Time
	for unix := range s.rows[assetID] {
		out = append(out, time.Unix(unix, 0).UTC())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *fakeMetricStore) UpsertSessionMetric(_ context.Context, assetID string, date time.Time, fields footprint.Fields, patch bool) error {
	s.mu.Lock()
	if s.failUpsert != nil {
		s.mu.Unlock()
		return s.failUpsert
	}
	byDate, ok := s.rows[assetID]
	if !ok {
		byDate = make(map[int64]footprint.Fields)
		s.rows[assetID] = byDate
	}
	existing, exists := byDate[date.Unix()]
	if exists && patch {
		merged := existing.Clone()
		for k, v := range fields {
			if _, has := merged[k]; !has {
				merged[k] = v
			}
		}
		byDate[date.Unix()] = merged
	} else {
		byDate[date.Unix()] = fields.Clone()
	}
	s.upserts = append(s.upserts, upsertCall{asset: assetID, date: date, patch: patch})
	s.mu.Unlock()

	if s.raw != nil {
		s.raw.advanceProcessed(assetID, date)
	}
	return nil
}

func (s *fakeMetricStore) fieldsAt(assetID string, date time.Time) footprint.Fields {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.rows[assetID][date.Unix()]
	if !ok {
		return nil
	}
	return fields.Clone()
}

func (s *fakeMetricStore) deleteRow(assetID string, date time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows[assetID], date.Unix())
}

func (s *fakeMetricStore) setField(assetID string, date time.Time, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[assetID][date.Unix()][key] = value
}

func (s *fakeMetricStore) dropField(assetID string, date time.Time, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows[assetID][date.Unix()], key)
}

func (s *fakeMetricStore) resetUpserts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = nil
}

func (s *fakeMetricStore) upsertLog() []upsertCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]upsertCall, len(s.upserts))
	copy(out, s.upserts)
	return out
}

// fakeCache stores published payloads verbatim.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: make(map[string][]byte),
		ttls:    make(map[string]time.Duration),
	}
}

func (c *fakeCache) Publish(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	body := make([]byte, len(payload))
	copy(body, payload)
	c.entries[key] = body
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	body, ok := c.entries[key]
	if !ok {
		return nil, fmt.Errorf("fake cache: key %s not found", key)
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

func (c *fakeCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	body, ok := c.entries[key]
	return body, ok
}

func (c *fakeCache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// fakeLocker grants every lock unless an asset is marked denied.
type fakeLocker struct {
	mu       sync.Mutex
	denied   map[string]bool
	acquired map[string]int
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{
		denied:   make(map[string]bool),
		acquired: make(map[string]int),
	}
}

func (l *fakeLocker) Acquire(_ context.Context, assetID string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.denied[assetID] {
		return nil, false, nil
	}
	l.acquired[assetID]++
	return func() {}, true, nil
}
