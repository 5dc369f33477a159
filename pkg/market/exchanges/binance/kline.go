package binance

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

// GetKlines fetches OHLCV bars for symbol, oldest first. startTime and
// endTime are unix milliseconds; endTime <= 0 means "up to now". limit is
// clamped to the exchange maximum. An empty response means no bars exist in
// the window, which is a valid result.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, startTime, endTime int64, limit int) ([]Kline, error) {
	if symbol == "" {
		return nil, fmt.Errorf("binance: symbol is required")
	}
	if interval == "" {
		return nil, fmt.Errorf("binance: interval is required")
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("interval", interval)
	query.Set("limit", strconv.Itoa(limit))
	if startTime > 0 {
		query.Set("startTime", strconv.FormatInt(startTime, 10))
	}
	if endTime > 0 {
		query.Set("endTime", strconv.FormatInt(endTime, 10))
	}

	var rows []klineRow
	if err := c.doGet(ctx, "/fapi/v1/klines", query, &rows); err != nil {
		return nil, err
	}

	klines := make([]Kline, 0, len(rows))
	for _, row := range rows {
		k, err := row.toKline()
		if err != nil {
			return nil, err
		}
		klines = append(klines, k)
	}

	sort.Slice(klines, func(i, j int) bool {
		return klines[i].OpenTime < klines[j].OpenTime
	})
	return klines, nil
}
