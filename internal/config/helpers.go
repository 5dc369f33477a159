package config

import (
	"equilibrium-api/pkg/engine"
	"equilibrium-api/pkg/market"
)

// MustLoadMarket loads etc/market.yaml from the project root and panics on
// error. It isolates the market providers so binaries that only move candles
// do not need the full application config.
func MustLoadMarket() *market.Config {
	return market.MustLoad()
}

// MustBuildMarketProviders loads market config from the default path and
// builds provider instances; returns the map and default provider name.
func MustBuildMarketProviders() (map[string]market.Provider, string) {
	cfg := MustLoadMarket()
	providers, err := cfg.BuildProviders()
	if err != nil {
		panic(err)
	}
	return providers, cfg.Default
}

// MustLoadEngine loads etc/engine.yaml from the project root and panics on error.
func MustLoadEngine() *engine.Config {
	return engine.MustLoad()
}
