package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"equilibrium-api/pkg/analytics"
	"equilibrium-api/pkg/footprint"
)

const cacheNamespace = "equilibrium"

// ReportKey is the cache key for one published report.
func ReportKey(symbol, reportType, period string) string {
	return fmt.Sprintf("%s:analytics:%s:%s:%s", cacheNamespace, symbol, reportType, period)
}

// FreshnessKey is the cache key holding the RFC3339 time of an asset's last
// successful publish.
func FreshnessKey(symbol string) string {
	return fmt.Sprintf("%s:analytics:%s:fresh", cacheNamespace, symbol)
}

// LockKey is the cross-process lock key for one asset's pipeline.
func LockKey(symbol string) string {
	return fmt.Sprintf("%s:lock:engine:%s", cacheNamespace, symbol)
}

// StatusKey is the cache key holding the msgpack snapshot of the last run.
func StatusKey() string {
	return cacheNamespace + ":engine:last_run"
}

// Envelope wraps a report payload for cache storage. Marshalling is
// deterministic: struct fields keep declaration order and the payload's maps
// serialize with sorted keys, so equal inputs produce equal bytes.
type Envelope struct {
	Symbol     string `json:"symbol"`
	ReportType string `json:"report_type"`
	Period     string `json:"period"`
	ComputedAt string `json:"computed_at"`
	Payload    any    `json:"payload"`
}

// Publisher recomputes every report for an asset and atomically replaces the
// cached values. Each key swap is a single cache write; readers see either
// the previous report or the new one, never a partial document.
type Publisher struct {
	metrics MetricStore
	cache   ReportCache
	cal     *footprint.Calendar

	periods      []analytics.Period
	modelCfg     analytics.Config
	historyStart time.Time
	reportTTL    time.Duration
	storeTimeout time.Duration

	now func() time.Time
}

// NewPublisher builds a Publisher from an engine config. The config must
// have passed Validate.
func NewPublisher(metrics MetricStore, cache ReportCache, cal *footprint.Calendar, cfg Config) (*Publisher, error) {
	periods, err := cfg.PeriodList()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		metrics:      metrics,
		cache:        cache,
		cal:          cal,
		periods:      periods,
		modelCfg:     cfg.analyticsConfig(),
		historyStart: cfg.HistoryStartDate(),
		reportTTL:    cfg.ReportTTL,
		storeTimeout: cfg.StoreTimeout,
		now:          time.Now,
	}, nil
}

// PublishAsset rebuilds and publishes every period and report type for one
// asset, returning the number of reports written. Periods whose window
// predates the stored history are skipped rather than published with padded
// zeroes.
func (p *Publisher) PublishAsset(ctx context.Context, symbol string) (int, error) {
	now := p.now()
	today := footprint.DateOf(now.In(p.cal.Location()))
	latest := p.cal.LatestClosedSession(now)

	all, err := p.loadMetrics(ctx, symbol, p.historyStart, latest)
	if err != nil {
		return 0, &PersistenceError{Asset: symbol, Op: "load session metrics", Err: err}
	}
	if len(all) == 0 {
		logx.WithContext(ctx).Infof("engine: %s has nothing to report: %v",
			symbol, &InsufficientHistory{Samples: 0, Min: 1})
		return 0, nil
	}
	firstDate := all[0].Date
	computedAt := now.UTC().Format(time.RFC3339)

	published := 0
	for _, period := range p.periods {
		if period.TooLongFor(today, firstDate) {
			logx.WithContext(ctx).Infof("engine: %s period=%s starts before stored history, skipping",
				symbol, period.ID)
			continue
		}
		start, end := period.Window(today, p.historyStart)
		window := metricsBetween(all, start, end)
		if len(window) == 0 {
			logx.WithContext(ctx).Infof("engine: %s period=%s window is empty, skipping", symbol, period.ID)
			continue
		}

		reports := analytics.BuildAll(symbol, period, window, p.modelCfg)
		for _, reportType := range analytics.ReportTypes() {
			payload, ok := reports[reportType]
			if !ok {
				continue
			}
			body, err := json.Marshal(Envelope{
				Symbol:     symbol,
				ReportType: reportType,
				Period:     period.ID,
				ComputedAt: computedAt,
				Payload:    payload,
			})
			if err != nil {
				return published, fmt.Errorf("engine: marshal %s report %s/%s: %w",
					reportType, symbol, period.ID, err)
			}
			if err := p.publish(ctx, symbol, ReportKey(symbol, reportType, period.ID), body); err != nil {
				return published, err
			}
			published++
		}
	}

	if published > 0 {
		if err := p.publish(ctx, symbol, FreshnessKey(symbol), []byte(computedAt)); err != nil {
			return published, err
		}
	}
	return published, nil
}

func (p *Publisher) loadMetrics(ctx context.Context, symbol string, from, to time.Time) ([]*footprint.SessionMetric, error) {
	storeCtx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()
	return p.metrics.SessionMetrics(storeCtx, symbol, from, to)
}

func (p *Publisher) publish(ctx context.Context, symbol, key string, body []byte) error {
	storeCtx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()
	if err := p.cache.Publish(storeCtx, key, body, p.reportTTL); err != nil {
		return &PersistenceError{Asset: symbol, Op: "publish " + key, Err: err}
	}
	return nil
}

func metricsBetween(all []*footprint.SessionMetric, from, to time.Time) []*footprint.SessionMetric {
	out := make([]*footprint.SessionMetric, 0, len(all))
	for _, m := range all {
		if m.Date.Before(from) || m.Date.After(to) {
			continue
		}
		out = append(out, m)
	}
	return out
}
