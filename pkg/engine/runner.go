package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/mr"

	"equilibrium-api/pkg/footprint"
)

// Mode names the processing path chosen for an asset in one run.
type Mode string

const (
	// ModeUpToDate means the newest closed session is already built.
	ModeUpToDate Mode = "up_to_date"
	// ModeAppend builds only sessions past the processed cursor.
	ModeAppend Mode = "append"
	// ModeFullRecalc rebuilds every session from the earliest stored candle.
	ModeFullRecalc Mode = "full_recalc"
	// ModeSelfHeal rebuilds exactly the interior dates that have no row.
	ModeSelfHeal Mode = "self_heal"
)

// Dependencies bundles the engine's collaborators.
type Dependencies struct {
	Source  MarketSource
	Raw     RawStore
	Metrics MetricStore
	Reports ReportCache
	// Locks may be nil in single-process deployments; assets then run
	// without cross-process serialization.
	Locks AssetLocker
}

func (d Dependencies) validate() error {
	if d.Source == nil {
		return errors.New("engine: market source is required")
	}
	if d.Raw == nil {
		return errors.New("engine: raw store is required")
	}
	if d.Metrics == nil {
		return errors.New("engine: metric store is required")
	}
	if d.Reports == nil {
		return errors.New("engine: report cache is required")
	}
	return nil
}

// AssetOutcome records what one run did for one asset.
type AssetOutcome struct {
	Asset            string `json:"asset" msgpack:"asset"`
	Mode             string `json:"mode" msgpack:"mode"`
	CandlesAdded     int    `json:"candles_added" msgpack:"candles_added"`
	SessionsBuilt    int    `json:"sessions_built" msgpack:"sessions_built"`
	SessionsSkipped  int    `json:"sessions_skipped" msgpack:"sessions_skipped"`
	ReportsPublished int    `json:"reports_published" msgpack:"reports_published"`
	// Skipped is set when another process held the asset lock.
	Skipped    bool   `json:"skipped" msgpack:"skipped"`
	Error      string `json:"error,omitempty" msgpack:"error,omitempty"`
	DurationMs int64  `json:"duration_ms" msgpack:"duration_ms"`

	// Err carries the typed error for callers; Error above is its string
	// form for serialized snapshots.
	Err error `json:"-" msgpack:"-"`
}

// RunSummary aggregates one full run across all configured assets.
type RunSummary struct {
	RunID      string         `json:"run_id" msgpack:"run_id"`
	StartedAt  time.Time      `json:"started_at" msgpack:"started_at"`
	FinishedAt time.Time      `json:"finished_at" msgpack:"finished_at"`
	Assets     []AssetOutcome `json:"assets" msgpack:"assets"`
	Succeeded  int            `json:"succeeded" msgpack:"succeeded"`
	Failed     int            `json:"failed" msgpack:"failed"`
	Skipped    int            `json:"skipped" msgpack:"skipped"`
}

// DecodeRunSummary restores a summary from its cached snapshot bytes.
func DecodeRunSummary(data []byte) (*RunSummary, error) {
	var summary RunSummary
	if err := msgpack.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("engine: decode run summary: %w", err)
	}
	return &summary, nil
}

// Runner drives the per-asset pipeline: sync candles, check stored metrics,
// rebuild what is stale and publish reports. One Runner is safe for repeated
// RunAll calls; each call is a complete pass over the configured assets.
type Runner struct {
	cfg       Config
	deps      Dependencies
	cal       *footprint.Calendar
	builder   *footprint.Builder
	ingestor  *Ingestor
	publisher *Publisher

	now func() time.Time

	mu sync.Mutex
	// unbuildable remembers dates that failed to build in this process so
	// holidays inside the stored range do not re-trigger healing each run.
	unbuildable map[string]map[int64]struct{}
}

// RunnerOption customises Runner construction.
type RunnerOption func(*Runner)

// WithClock overrides the runner's clock.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner wires a Runner from config and dependencies.
func NewRunner(cfg Config, deps Dependencies, opts ...RunnerOption) (*Runner, error) {
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cal, err := cfg.Calendar()
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:         cfg,
		deps:        deps,
		cal:         cal,
		builder:     footprint.NewBuilder(cal, cfg.MinCandles),
		now:         time.Now,
		unbuildable: make(map[string]map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	ingestor, err := NewIngestor(deps.Source, deps.Raw, cal, cfg)
	if err != nil {
		return nil, err
	}
	ingestor.now = r.clock
	r.ingestor = ingestor

	publisher, err := NewPublisher(deps.Metrics, deps.Reports, cal, cfg)
	if err != nil {
		return nil, err
	}
	publisher.now = r.clock
	r.publisher = publisher
	return r, nil
}

func (r *Runner) clock() time.Time { return r.now() }

// RunAll executes one pass over every configured asset with bounded
// concurrency. Per-asset failures are contained in the summary; the only
// returned error is context cancellation.
func (r *Runner) RunAll(ctx context.Context) (*RunSummary, error) {
	started := r.now().UTC()
	assets := r.cfg.Assets
	outcomes := make([]AssetOutcome, len(assets))
	// Assets never reached after a cancellation stay marked as skipped.
	for i := range assets {
		outcomes[i] = AssetOutcome{Asset: assets[i], Skipped: true}
	}

	mr.ForEach(func(source chan<- int) {
		for i := range assets {
			source <- i
		}
	}, func(i int) {
		outcomes[i] = r.runAsset(ctx, assets[i])
	}, mr.WithWorkers(r.cfg.Workers), mr.WithContext(ctx))

	summary := &RunSummary{
		RunID:      uuid.NewString(),
		StartedAt:  started,
		FinishedAt: r.now().UTC(),
		Assets:     outcomes,
	}
	for i := range outcomes {
		switch {
		case outcomes[i].Skipped:
			summary.Skipped++
		case outcomes[i].Error != "":
			summary.Failed++
		default:
			summary.Succeeded++
		}
	}
	r.snapshot(summary)

	logx.WithContext(ctx).Infof("engine: run %s finished ok=%d failed=%d skipped=%d in %s",
		summary.RunID, summary.Succeeded, summary.Failed, summary.Skipped,
		summary.FinishedAt.Sub(summary.StartedAt))
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (r *Runner) runAsset(ctx context.Context, asset string) (out AssetOutcome) {
	start := r.now()
	out = AssetOutcome{Asset: asset, Mode: string(ModeUpToDate)}
	defer func() {
		if rec := recover(); rec != nil {
			out.Err = fmt.Errorf("engine: panic processing %s: %v", asset, rec)
		}
		if out.Err != nil {
			out.Error = out.Err.Error()
		}
		out.DurationMs = r.now().Sub(start).Milliseconds()
	}()

	release, acquired, err := r.acquireLock(ctx, asset)
	if err != nil {
		logx.WithContext(ctx).Errorf("engine: lock asset=%s err=%v", asset, err)
		out.Err = err
		return
	}
	if !acquired {
		logx.WithContext(ctx).Infof("engine: %s locked by another run, skipping", asset)
		out.Skipped = true
		return
	}
	defer release()

	assetCtx, cancel := context.WithTimeout(ctx, r.cfg.AssetTimeout)
	defer cancel()

	sync, err := r.ingestor.Sync(assetCtx, asset)
	if err != nil {
		logx.WithContext(assetCtx).Errorf("engine: sync asset=%s err=%v", asset, err)
		out.Err = err
		return
	}
	out.CandlesAdded = sync.CandlesAdded

	plan, err := r.planAsset(assetCtx, asset)
	if err != nil {
		logx.WithContext(assetCtx).Errorf("engine: plan asset=%s err=%v", asset, err)
		out.Err = err
		return
	}
	out.Mode = string(plan.mode)

	if len(plan.dates) > 0 {
		built, skipped, err := r.buildSessions(assetCtx, asset, plan)
		out.SessionsBuilt = built
		out.SessionsSkipped = skipped
		if err != nil {
			logx.WithContext(assetCtx).Errorf("engine: build asset=%s mode=%s err=%v", asset, plan.mode, err)
			out.Err = err
			return
		}
	}

	published, err := r.publisher.PublishAsset(assetCtx, asset)
	out.ReportsPublished = published
	if err != nil {
		logx.WithContext(assetCtx).Errorf("engine: publish asset=%s err=%v", asset, err)
		out.Err = err
		return
	}

	logx.WithContext(assetCtx).Infof("engine: %s mode=%s candles=%d sessions=%d reports=%d",
		asset, out.Mode, out.CandlesAdded, out.SessionsBuilt, out.ReportsPublished)
	return
}

func (r *Runner) acquireLock(ctx context.Context, asset string) (func(), bool, error) {
	if r.deps.Locks == nil {
		return func() {}, true, nil
	}
	return r.deps.Locks.Acquire(ctx, asset)
}

// assetPlan is the processing decision for one asset: which mode and which
// session dates to build.
type assetPlan struct {
	mode  Mode
	dates []time.Time
}

func (r *Runner) planAsset(ctx context.Context, asset string) (assetPlan, error) {
	latest := r.cal.LatestClosedSession(r.now())

	report, err := CheckIntegrity(ctx, r.deps.Metrics, r.cal, asset, r.cfg.DriftScanDays, r.now())
	if err != nil {
		return assetPlan{}, err
	}

	if report.Empty {
		logx.WithContext(ctx).Infof("engine: %s has no session metrics, rebuilding from scratch", asset)
		return r.fullPlan(ctx, asset, latest)
	}
	if report.Drift != nil {
		logx.WithContext(ctx).Infof("engine: %s %v, rebuilding", asset, report.Drift)
		return r.fullPlan(ctx, asset, latest)
	}
	if report.Gap != nil {
		if dates := r.filterUnbuildable(asset, report.Gap.Dates); len(dates) > 0 {
			logx.WithContext(ctx).Infof("engine: %s %v, healing", asset, report.Gap)
			return assetPlan{mode: ModeSelfHeal, dates: dates}, nil
		}
	}

	cursor, err := r.deps.Raw.GetCursor(ctx, asset)
	if err != nil {
		return assetPlan{}, &PersistenceError{Asset: asset, Op: "load cursor", Err: err}
	}
	lastProcessed := report.LastDate
	if cursor != nil && !cursor.LastProcessedDate.IsZero() {
		lastProcessed = cursor.LastProcessedDate
	}
	if !lastProcessed.Before(latest) {
		return assetPlan{mode: ModeUpToDate}, nil
	}
	dates := r.cal.TradingDays(r.cal.NextTradingDay(lastProcessed), latest)
	dates = r.filterUnbuildable(asset, dates)
	if len(dates) == 0 {
		return assetPlan{mode: ModeUpToDate}, nil
	}
	return assetPlan{mode: ModeAppend, dates: dates}, nil
}

func (r *Runner) fullPlan(ctx context.Context, asset string, latest time.Time) (assetPlan, error) {
	earliest, err := r.deps.Raw.EarliestCandleTime(ctx, asset)
	if err != nil {
		return assetPlan{}, &PersistenceError{Asset: asset, Op: "load earliest candle", Err: err}
	}
	if earliest == 0 {
		// No raw history yet; nothing to build this run.
		return assetPlan{mode: ModeFullRecalc}, nil
	}
	first := r.cal.SessionDate(earliest)
	dates := r.cal.TradingDays(first, latest)
	return assetPlan{mode: ModeFullRecalc, dates: r.filterUnbuildable(asset, dates)}, nil
}

// buildSessions builds and persists each planned date in order. Append and
// full rebuilds carry prior-day levels forward through the chain; healing
// looks the prior up per date because healed dates are not contiguous.
// Dates without enough candles are skipped, remembered and never fail the
// asset.
func (r *Runner) buildSessions(ctx context.Context, asset string, plan assetPlan) (built, skipped int, err error) {
	patch := plan.mode == ModeFullRecalc

	var prior *footprint.DayLevels
	if plan.mode != ModeSelfHeal {
		prior, err = r.priorLevels(ctx, asset, plan.dates[0])
		if err != nil {
			return built, skipped, err
		}
	}

	for _, date := range plan.dates {
		if err = ctx.Err(); err != nil {
			return built, skipped, err
		}
		if plan.mode == ModeSelfHeal {
			prior, err = r.priorLevels(ctx, asset, date)
			if err != nil {
				return built, skipped, err
			}
		}

		from, to := r.cal.DayBounds(date)
		candles, cerr := r.deps.Raw.CandleRange(ctx, asset, from, to)
		if cerr != nil {
			return built, skipped, &PersistenceError{Asset: asset, Op: "load candles", Err: cerr}
		}

		metric, berr := r.builder.BuildSession(asset, date, candles, prior)
		if berr != nil {
			if errors.Is(berr, footprint.ErrUnbuildable) {
				skipped++
				r.rememberUnbuildable(asset, date)
				logx.WithContext(ctx).Infof("engine: %s %s skipped: %v",
					asset, date.Format("2006-01-02"), berr)
				continue
			}
			return built, skipped, berr
		}

		if uerr := r.deps.Metrics.UpsertSessionMetric(ctx, asset, date, metric.Fields, patch); uerr != nil {
			return built, skipped, &PersistenceError{Asset: asset, Op: "upsert session metric", Err: uerr}
		}
		if plan.mode != ModeSelfHeal {
			prior = footprint.LevelsOf(metric)
		}
		built++
	}
	return built, skipped, nil
}

// priorLevels returns the day levels of the freshest stored session before
// date, or nil when none exists within the lookback.
func (r *Runner) priorLevels(ctx context.Context, asset string, date time.Time) (*footprint.DayLevels, error) {
	from := date.AddDate(0, 0, -10)
	to := date.AddDate(0, 0, -1)
	rows, err := r.deps.Metrics.SessionMetrics(ctx, asset, from, to)
	if err != nil {
		return nil, &PersistenceError{Asset: asset, Op: "load prior levels", Err: err}
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return footprint.LevelsOf(rows[len(rows)-1]), nil
}

func (r *Runner) rememberUnbuildable(asset string, date time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dates, ok := r.unbuildable[asset]
	if !ok {
		dates = make(map[int64]struct{})
		r.unbuildable[asset] = dates
	}
	dates[date.Unix()] = struct{}{}
}

func (r *Runner) filterUnbuildable(asset string, dates []time.Time) []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	known := r.unbuildable[asset]
	if len(known) == 0 {
		return dates
	}
	kept := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		if _, ok := known[d.Unix()]; ok {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}

// snapshot persists the run summary for the status endpoint. It is best
// effort and runs detached from the run context so a cancelled run still
// records its outcome.
func (r *Runner) snapshot(summary *RunSummary) {
	body, err := msgpack.Marshal(summary)
	if err != nil {
		logx.Errorf("engine: marshal run summary err=%v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.StoreTimeout)
	defer cancel()
	if err := r.deps.Reports.Publish(ctx, StatusKey(), body, 0); err != nil {
		logx.Errorf("engine: snapshot run summary err=%v", err)
	}
}
