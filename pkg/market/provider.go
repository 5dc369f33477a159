package market

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Provider exposes exchange-agnostic OHLCV history.
type Provider interface {
	// FetchCandles returns up to limit candles with open time at or after
	// since (unix milliseconds), ordered oldest first. An empty slice means
	// no data is available past since; that is not an error.
	FetchCandles(ctx context.Context, symbol string, since int64, limit int) ([]Candle, error)
	// ListAssets returns all supported symbols along with metadata.
	ListAssets(ctx context.Context) ([]Asset, error)
}

// Candle is one OHLCV bar. Ts is the bar's open time in unix milliseconds,
// aligned to the interval boundary.
type Candle struct {
	Ts     int64   `json:"ts"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Time returns the candle open time as a UTC time.Time.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Ts).UTC()
}

// Asset describes a tradeable instrument.
type Asset struct {
	Symbol      string         // Exchange-native symbol, e.g. "BTCUSDT"
	Base        string         // Optional base asset
	Quote       string         // Optional quote asset
	Precision   int            // Price precision when available
	IsActive    bool           // Whether the asset is currently tradeable
	RawMetadata map[string]any // Exchange-specific fields for callers that need more detail
}

var intervalDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// IntervalDuration maps an exchange interval token to its duration.
func IntervalDuration(interval string) (time.Duration, error) {
	d, ok := intervalDurations[interval]
	if !ok {
		return 0, fmt.Errorf("market: unsupported interval %q", interval)
	}
	return d, nil
}

// SortCandles orders candles oldest first in place.
func SortCandles(candles []Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Ts < candles[j].Ts
	})
}
