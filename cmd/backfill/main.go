package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"equilibrium-api/internal/config"
	"equilibrium-api/internal/svc"
	"equilibrium-api/pkg/market"
)

// batchSize matches the page size the delta ingestor writes, so imported
// history lands in the store in the same shaped transactions.
const batchSize = 1000

var (
	configFile = flag.String("f", "etc/equilibrium.yaml", "the config file")
	asset      = flag.String("asset", "", "exchange-native symbol to import, e.g. BTCUSDT")
	csvPath    = flag.String("csv", "", "CSV file with ts,open,high,low,close,volume rows (ts in unix ms)")
	noCursor   = flag.Bool("no-cursor", false, "leave the ingestion cursor untouched after the import")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	if *asset == "" || *csvPath == "" {
		log.Fatalf("[main] -asset and -csv are required")
	}
	symbol := strings.ToUpper(strings.TrimSpace(*asset))

	cfg := config.MustLoad(*configFile)
	svcCtx := svc.NewServiceContext(*cfg)
	if svcCtx.RawStore == nil {
		log.Fatalf("[main] Postgres is required for backfill")
	}

	file, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("[main] Failed to open %s: %v", *csvPath, err)
	}
	candles, err := readCandles(file)
	file.Close()
	if err != nil {
		log.Fatalf("[main] Failed to parse %s: %v", *csvPath, err)
	}
	if len(candles) == 0 {
		log.Fatalf("[main] No candles found in %s", *csvPath)
	}
	log.Printf("[main] Importing %d candles for %s from %s", len(candles), symbol, *csvPath)
	log.Printf("[main] Range: %s .. %s",
		time.UnixMilli(candles[0].Ts).UTC().Format(time.RFC3339),
		time.UnixMilli(candles[len(candles)-1].Ts).UTC().Format(time.RFC3339))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for start := 0; start < len(candles); start += batchSize {
		if ctx.Err() != nil {
			log.Fatalf("[import] Interrupted after %d candles, cursor untouched", start)
		}
		end := start + batchSize
		if end > len(candles) {
			end = len(candles)
		}
		if err := svcCtx.RawStore.UpsertCandles(ctx, symbol, candles[start:end]); err != nil {
			log.Fatalf("[import] Batch %d..%d failed: %v", start, end, err)
		}
		log.Printf("[import] %d/%d", end, len(candles))
	}

	if !*noCursor {
		last := candles[len(candles)-1].Ts
		if err := svcCtx.RawStore.SetLastIngested(ctx, symbol, last); err != nil {
			log.Fatalf("[import] Failed to advance cursor: %v", err)
		}
		log.Printf("[import] Cursor advanced to %s", time.UnixMilli(last).UTC().Format(time.RFC3339))
	}
	log.Println("[main] Backfill complete")
}

// readCandles parses ts,open,high,low,close,volume rows. A header row is
// detected by a non-numeric first column and skipped. Rows come back sorted
// oldest first regardless of file order.
func readCandles(r io.Reader) ([]market.Candle, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	candles := make([]market.Candle, 0, len(records))
	for i, rec := range records {
		if len(rec) == 0 {
			continue
		}
		if i == 0 {
			if _, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64); err != nil {
				continue
			}
		}
		if len(rec) < 6 {
			return nil, fmt.Errorf("row %d: want 6 columns ts,open,high,low,close,volume, got %d", i+1, len(rec))
		}
		candle, err := parseCandle(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		candles = append(candles, candle)
	}
	market.SortCandles(candles)
	return candles, nil
}

func parseCandle(rec []string) (market.Candle, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
	if err != nil {
		return market.Candle{}, fmt.Errorf("bad ts %q: %w", rec[0], err)
	}
	values := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
		if err != nil {
			return market.Candle{}, fmt.Errorf("bad value %q: %w", rec[i+1], err)
		}
		values[i] = v
	}
	return market.Candle{
		Ts:     ts,
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}
