package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"equilibrium-api/internal/config"
	"equilibrium-api/internal/svc"
	"equilibrium-api/pkg/analytics"
	"equilibrium-api/pkg/engine"
)

var (
	configFile = flag.String("f", "etc/equilibrium.yaml", "the config file")
	asset      = flag.String("asset", "", "symbol to reset; empty resets every configured asset")
	dropRaw    = flag.Bool("raw", false, "also drop raw candles and the full cursor (forces a refetch)")
	confirmed  = flag.Bool("yes", false, "skip the confirmation prompt")
)

// The reset tool clears derived state so the next engine run rebuilds it:
// session metrics, the processed-session cursor and the cached reports.
// Raw candles survive unless -raw is given.
func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.MustLoad(*configFile)
	svcCtx := svc.NewServiceContext(*cfg)
	if svcCtx.RawStore == nil || svcCtx.MetricStore == nil {
		log.Fatalf("[main] Postgres is required for reset")
	}
	if svcCtx.EngineConfig == nil {
		log.Fatalf("[main] Engine config is required for reset")
	}

	assets := svcCtx.EngineConfig.Assets
	if *asset != "" {
		assets = []string{strings.ToUpper(strings.TrimSpace(*asset))}
	}
	if len(assets) == 0 {
		log.Fatalf("[main] Nothing to reset: no assets configured")
	}

	scope := "session metrics, processed cursor, cached reports"
	if *dropRaw {
		scope += ", raw candles"
	}
	log.Printf("[main] Resetting %s for %v", scope, assets)
	if !*confirmed {
		log.Fatalf("[main] Refusing to proceed without -yes")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	periods, err := svcCtx.EngineConfig.PeriodList()
	if err != nil {
		log.Fatalf("[main] Invalid period list: %v", err)
	}

	for _, symbol := range assets {
		deleted, err := svcCtx.MetricStore.DeleteAsset(ctx, symbol)
		if err != nil {
			log.Fatalf("[reset.%s] Failed to delete metrics: %v", symbol, err)
		}
		log.Printf("[reset.%s] Deleted %d metric rows", symbol, deleted)

		if *dropRaw {
			if err := svcCtx.RawStore.DeleteAsset(ctx, symbol); err != nil {
				log.Fatalf("[reset.%s] Failed to drop candles: %v", symbol, err)
			}
			log.Printf("[reset.%s] Dropped raw candles and cursor", symbol)
		} else {
			if err := svcCtx.RawStore.ClearProcessedDate(ctx, symbol); err != nil {
				log.Fatalf("[reset.%s] Failed to clear processed cursor: %v", symbol, err)
			}
			log.Printf("[reset.%s] Cleared processed cursor", symbol)
		}

		if svcCtx.Reports == nil {
			continue
		}
		keys := reportKeys(symbol, periods)
		removed, err := svcCtx.Reports.Del(ctx, keys...)
		if err != nil {
			log.Fatalf("[reset.%s] Failed to delete cached reports: %v", symbol, err)
		}
		log.Printf("[reset.%s] Deleted %d cached reports", symbol, removed)
	}
	log.Println("[main] Reset complete")
}

func reportKeys(symbol string, periods []analytics.Period) []string {
	keys := make([]string, 0, len(periods)*len(analytics.ReportTypes())+1)
	for _, period := range periods {
		for _, reportType := range analytics.ReportTypes() {
			keys = append(keys, engine.ReportKey(symbol, reportType, period.ID))
		}
	}
	return append(keys, engine.FreshnessKey(symbol))
}
