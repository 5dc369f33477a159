package binance

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kline represents a single OHLCV candlestick.
type Kline struct {
	OpenTime  int64   // Open time in milliseconds
	Open      float64 // Open price
	High      float64 // High price
	Low       float64 // Low price
	Close     float64 // Close price
	Volume    float64 // Traded base volume
	CloseTime int64   // Close time in milliseconds
}

// APIError is the error payload Binance returns on non-2xx responses.
type APIError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance: api error code=%d msg=%s", e.Code, e.Msg)
}

// klineRow mirrors one positional kline array from /fapi/v1/klines:
// [openTime, open, high, low, close, volume, closeTime, ...]. Numeric
// cells arrive unquoted, price cells as strings.
type klineRow []json.RawMessage

func (r klineRow) int64At(idx int) (int64, error) {
	if idx >= len(r) {
		return 0, fmt.Errorf("binance: kline row missing field %d", idx)
	}
	var v int64
	if err := json.Unmarshal(r[idx], &v); err != nil {
		return 0, fmt.Errorf("binance: kline field %d: %w", idx, err)
	}
	return v, nil
}

func (r klineRow) floatAt(idx int) (float64, error) {
	if idx >= len(r) {
		return 0, fmt.Errorf("binance: kline row missing field %d", idx)
	}
	var s string
	if err := json.Unmarshal(r[idx], &s); err != nil {
		// Some deployments return bare numbers for volume fields.
		var v float64
		if err2 := json.Unmarshal(r[idx], &v); err2 == nil {
			return v, nil
		}
		return 0, fmt.Errorf("binance: kline field %d: %w", idx, err)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("binance: kline field %d: %w", idx, err)
	}
	return v, nil
}

func (r klineRow) toKline() (Kline, error) {
	openTime, err := r.int64At(0)
	if err != nil {
		return Kline{}, err
	}
	open, err := r.floatAt(1)
	if err != nil {
		return Kline{}, err
	}
	high, err := r.floatAt(2)
	if err != nil {
		return Kline{}, err
	}
	low, err := r.floatAt(3)
	if err != nil {
		return Kline{}, err
	}
	closePx, err := r.floatAt(4)
	if err != nil {
		return Kline{}, err
	}
	volume, err := r.floatAt(5)
	if err != nil {
		return Kline{}, err
	}
	closeTime, err := r.int64At(6)
	if err != nil {
		return Kline{}, err
	}
	return Kline{
		OpenTime:  openTime,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePx,
		Volume:    volume,
		CloseTime: closeTime,
	}, nil
}

// SymbolInfo describes one listed contract from /fapi/v1/exchangeInfo.
type SymbolInfo struct {
	Symbol            string `json:"symbol"`
	Status            string `json:"status"`
	BaseAsset         string `json:"baseAsset"`
	QuoteAsset        string `json:"quoteAsset"`
	ContractType      string `json:"contractType"`
	PricePrecision    int    `json:"pricePrecision"`
	QuantityPrecision int    `json:"quantityPrecision"`
	OnboardDate       int64  `json:"onboardDate"`
}

type exchangeInfoResponse struct {
	ServerTime int64        `json:"serverTime"`
	Symbols    []SymbolInfo `json:"symbols"`
}
