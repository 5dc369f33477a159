package binance

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	market "equilibrium-api/pkg/market"
)

const (
	defaultProviderTimeout = 8 * time.Second
	defaultInterval        = "1m"
	assetCacheTTL          = 5 * time.Minute
)

// Provider wraps Binance client calls behind the generic market.Provider contract.
type Provider struct {
	client    *Client
	timeout   time.Duration
	interval  string
	pageLimit int

	cacheMu sync.RWMutex
	assets  cachedAssets
}

type providerConfig struct {
	timeout      time.Duration
	interval     string
	pageLimit    int
	clientConfig []Option
}

// ProviderOption customises the Binance provider.
type ProviderOption func(*providerConfig)

// WithTimeout overrides the default per-call timeout.
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(cfg *providerConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithInterval sets the candle interval requested from the exchange.
func WithInterval(interval string) ProviderOption {
	return func(cfg *providerConfig) {
		if interval != "" {
			cfg.interval = interval
		}
	}
}

// WithPageLimit caps the number of candles requested per fetch.
func WithPageLimit(limit int) ProviderOption {
	return func(cfg *providerConfig) {
		if limit > 0 {
			cfg.pageLimit = limit
		}
	}
}

// WithClientOptions passes options to the underlying Binance client.
func WithClientOptions(options ...Option) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.clientConfig = append(cfg.clientConfig, options...)
	}
}

// NewProvider constructs a Binance market provider.
func NewProvider(opts ...ProviderOption) *Provider {
	cfg := &providerConfig{
		timeout:   defaultProviderTimeout,
		interval:  defaultInterval,
		pageLimit: defaultPageLimit,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client := NewClient(cfg.clientConfig...)
	return &Provider{
		client:    client,
		timeout:   cfg.timeout,
		interval:  cfg.interval,
		pageLimit: cfg.pageLimit,
	}
}

func init() {
	market.RegisterProvider("binance", func(_ string, cfg *market.ProviderConfig) (market.Provider, error) {
		opts := []ProviderOption{}
		clientOptions := []Option{}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		if cfg.Interval != "" {
			opts = append(opts, WithInterval(cfg.Interval))
		}
		if cfg.PageLimit > 0 {
			opts = append(opts, WithPageLimit(cfg.PageLimit))
		}
		if cfg.BaseURL != "" {
			clientOptions = append(clientOptions, WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPTimeout > 0 {
			clientOptions = append(clientOptions, WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
		}
		if cfg.MaxRetries > 0 {
			clientOptions = append(clientOptions, WithMaxRetries(cfg.MaxRetries))
		}
		if len(clientOptions) > 0 {
			opts = append(opts, WithClientOptions(clientOptions...))
		}
		return NewProvider(opts...), nil
	})
}

// FetchCandles implements market.Provider. Candles arrive oldest first with
// open times at or after since.
func (p *Provider) FetchCandles(ctx context.Context, symbol string, since int64, limit int) ([]market.Candle, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if limit <= 0 || limit > p.pageLimit {
		limit = p.pageLimit
	}
	klines, err := p.client.GetKlines(ctx, canonicalSymbol(symbol), p.interval, since, 0, limit)
	if err != nil {
		return nil, err
	}

	candles := make([]market.Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, market.Candle{
			Ts:     k.OpenTime,
			Open:   k.Open,
			High:   k.High,
			Low:    k.Low,
			Close:  k.Close,
			Volume: k.Volume,
		})
	}
	return candles, nil
}

// ListAssets implements market.Provider by returning all listed contracts.
func (p *Provider) ListAssets(ctx context.Context) ([]market.Asset, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	if assets, ok := p.loadAssets(); ok {
		return assets, nil
	}

	symbols, err := p.client.GetExchangeInfo(ctx)
	if err != nil {
		return nil, err
	}

	assets := make([]market.Asset, 0, len(symbols))
	for _, info := range symbols {
		assets = append(assets, market.Asset{
			Symbol:    info.Symbol,
			Base:      info.BaseAsset,
			Quote:     info.QuoteAsset,
			Precision: info.PricePrecision,
			IsActive:  info.Status == "TRADING",
			RawMetadata: map[string]any{
				"contractType":      info.ContractType,
				"quantityPrecision": info.QuantityPrecision,
				"onboardDate":       info.OnboardDate,
			},
		})
	}
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].Symbol < assets[j].Symbol
	})

	p.storeAssets(assets)
	return assets, nil
}

// Interval reports the candle interval this provider serves.
func (p *Provider) Interval() string {
	return p.interval
}

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, p.timeout)
}

type cachedAssets struct {
	Assets  []market.Asset
	Fetched time.Time
}

func (p *Provider) loadAssets() ([]market.Asset, bool) {
	p.cacheMu.RLock()
	defer p.cacheMu.RUnlock()
	if len(p.assets.Assets) == 0 || time.Since(p.assets.Fetched) > assetCacheTTL {
		return nil, false
	}
	assets := make([]market.Asset, len(p.assets.Assets))
	copy(assets, p.assets.Assets)
	return assets, true
}

func (p *Provider) storeAssets(assets []market.Asset) {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	clone := make([]market.Asset, len(assets))
	copy(clone, assets)
	p.assets = cachedAssets{Assets: clone, Fetched: time.Now()}
}

// canonicalSymbol maps shorthand coin names to exchange contract symbols,
// e.g. "btc" -> "BTCUSDT". Full contract names pass through unchanged.
func canonicalSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return s
	}
	for _, quote := range []string{"USDT", "USDC", "BUSD"} {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return s
		}
	}
	return s + "USDT"
}
