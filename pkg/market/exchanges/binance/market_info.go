package binance

import (
	"context"
)

// GetExchangeInfo returns the listed contracts and their trading rules.
func (c *Client) GetExchangeInfo(ctx context.Context) ([]SymbolInfo, error) {
	var payload exchangeInfoResponse
	if err := c.doGet(ctx, "/fapi/v1/exchangeInfo", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Symbols, nil
}
