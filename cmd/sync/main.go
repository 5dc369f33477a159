package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"

	"equilibrium-api/internal/cli"
	"equilibrium-api/internal/config"
	"equilibrium-api/internal/svc"
	"equilibrium-api/pkg/engine"
	"equilibrium-api/pkg/journal"
)

var (
	configFile = flag.String("f", "etc/equilibrium.yaml", "the config file")
	runOnce    = flag.Bool("once", false, "run a single pass and exit")
	runAt      = flag.String("at", "00:05", "daily run time (HH:MM) in the session timezone")
	journalDir = flag.String("journal", "", "directory for run journal files; empty disables the journal")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("[main] Starting sync scheduler...")

	cfg := config.MustLoad(*configFile)
	log.Printf("[main] Configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(cfg) {
		log.Printf("  - %s", line)
	}

	svcCtx := svc.NewServiceContext(*cfg)
	if svcCtx.Runner == nil {
		log.Fatalf("[main] Engine is not fully configured: postgres, redis, market and engine sections are all required")
	}

	var writer *journal.Writer
	if *journalDir != "" {
		writer = journal.NewWriter(*journalDir)
		log.Printf("[main] Run journal enabled at %s", *journalDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *runOnce {
		log.Println("[main] Running a single pass (-once)")
		runPass(ctx, svcCtx.Runner, writer, "manual")
		return
	}

	// The calendar decides the clock the daily trigger follows; the original
	// deployment fires shortly after the session rolls over at midnight.
	cal, err := svcCtx.EngineConfig.Calendar()
	if err != nil {
		log.Fatalf("[main] Invalid engine calendar: %v", err)
	}
	loc := cal.Location()

	scheduler := gocron.NewScheduler(loc)
	if _, err := scheduler.Every(1).Day().At(*runAt).Do(func() {
		runPass(ctx, svcCtx.Runner, writer, "schedule")
	}); err != nil {
		log.Fatalf("[main] Failed to schedule daily run: %v", err)
	}
	scheduler.StartAsync()
	log.Printf("[main] Scheduled daily run at %s %s. Press Ctrl+C to stop.", *runAt, loc)

	<-ctx.Done()
	log.Println("[main] Shutdown signal received, stopping scheduler...")
	scheduler.Stop()
	log.Println("[main] Sync scheduler stopped")
}

// runPass executes one engine run and logs the per-asset outcomes.
func runPass(ctx context.Context, runner *engine.Runner, writer *journal.Writer, trigger string) {
	start := time.Now()
	summary, err := runner.RunAll(ctx)
	if err != nil {
		log.Printf("[run] [ERROR] %v, took %dms", err, time.Since(start).Milliseconds())
	}
	if summary == nil {
		return
	}

	log.Printf("[run] [%s] run=%s ok=%d failed=%d skipped=%d, took %dms",
		trigger, summary.RunID, summary.Succeeded, summary.Failed, summary.Skipped,
		time.Since(start).Milliseconds())
	for _, a := range summary.Assets {
		switch {
		case a.Error != "":
			log.Printf("  - %s: [ERROR] %s", a.Asset, a.Error)
		case a.Skipped:
			log.Printf("  - %s: skipped", a.Asset)
		default:
			log.Printf("  - %s: mode=%s candles=%d sessions=%d reports=%d, took %dms",
				a.Asset, a.Mode, a.CandlesAdded, a.SessionsBuilt, a.ReportsPublished, a.DurationMs)
		}
	}

	if writer == nil {
		return
	}
	if path, err := writer.WriteRun(runRecord(summary, trigger)); err != nil {
		log.Printf("[journal] [ERROR] %v", err)
	} else {
		log.Printf("[journal] wrote %s", path)
	}
}

func runRecord(summary *engine.RunSummary, trigger string) *journal.RunRecord {
	rec := &journal.RunRecord{
		RunID:      summary.RunID,
		Trigger:    trigger,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		Skipped:    summary.Skipped,
		Assets:     make([]journal.AssetRecord, 0, len(summary.Assets)),
	}
	for _, a := range summary.Assets {
		rec.Assets = append(rec.Assets, journal.AssetRecord{
			Asset:            a.Asset,
			Mode:             a.Mode,
			CandlesAdded:     a.CandlesAdded,
			SessionsBuilt:    a.SessionsBuilt,
			SessionsSkipped:  a.SessionsSkipped,
			ReportsPublished: a.ReportsPublished,
			Skipped:          a.Skipped,
			ErrorMessage:     a.Error,
			DurationMs:       a.DurationMs,
		})
	}
	return rec
}
