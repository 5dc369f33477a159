package logic

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	cachekeys "equilibrium-api/internal/cache"
	"equilibrium-api/internal/persistence/reports"
	"equilibrium-api/internal/svc"
	"equilibrium-api/internal/types"
	"equilibrium-api/pkg/analytics"
)

type AnalyticsIndexLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewAnalyticsIndexLogic(ctx context.Context, svcCtx *svc.ServiceContext) *AnalyticsIndexLogic {
	return &AnalyticsIndexLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// AnalyticsIndex lists which report keys exist for a symbol. The index is
// rebuilt from key probes and cached briefly; a symbol that is neither
// configured nor published is unknown.
func (l *AnalyticsIndexLogic) AnalyticsIndex(req *types.AnalyticsIndexRequest) (*types.AnalyticsIndexResponse, error) {
	if l.svcCtx.Reports == nil {
		return nil, reports.ErrNotFound
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))

	indexKey := cachekeys.AnalyticsIndexKey(symbol)
	if data, err := l.svcCtx.Reports.Get(l.ctx, indexKey); err == nil {
		var cached types.AnalyticsIndexResponse
		decodeErr := json.Unmarshal(data, &cached)
		if decodeErr == nil {
			return &cached, nil
		}
		l.Errorf("analytics: decode cached index symbol=%s err=%v", symbol, decodeErr)
	}

	resp := &types.AnalyticsIndexResponse{
		Symbol:    symbol,
		Available: make(map[string][]string),
	}
	if raw, err := l.svcCtx.Reports.Get(l.ctx, cachekeys.AnalyticsFreshnessKey(symbol)); err == nil {
		resp.LastPublished = string(raw)
	}

	periods := l.periods()
	var probeErr error
	for _, reportType := range analytics.ReportTypes() {
		for _, period := range periods {
			ok, err := l.svcCtx.Reports.Exists(l.ctx, cachekeys.AnalyticsReportKey(symbol, reportType, period.ID))
			if err != nil {
				probeErr = err
				continue
			}
			if ok {
				resp.Available[reportType] = append(resp.Available[reportType], period.ID)
			}
		}
	}
	if probeErr != nil {
		l.Errorf("analytics: index probe symbol=%s err=%v", symbol, probeErr)
	}

	if len(resp.Available) == 0 && resp.LastPublished == "" && !l.knownAsset(symbol) {
		return nil, reports.ErrNotFound
	}

	if body, err := json.Marshal(resp); err == nil {
		if err := l.svcCtx.Reports.Publish(l.ctx, indexKey, body, cachekeys.AnalyticsIndexTTL(l.svcCtx.TTL)); err != nil {
			l.Errorf("analytics: cache index symbol=%s err=%v", symbol, err)
		}
	}
	return resp, nil
}

func (l *AnalyticsIndexLogic) periods() []analytics.Period {
	if l.svcCtx.EngineConfig != nil {
		if periods, err := l.svcCtx.EngineConfig.PeriodList(); err == nil {
			return periods
		}
	}
	return analytics.DefaultPeriods()
}

// knownAsset reports whether the symbol is in the configured sync universe.
// Configured assets get an empty index instead of a 404 before their first
// completed run.
func (l *AnalyticsIndexLogic) knownAsset(symbol string) bool {
	if l.svcCtx.EngineConfig == nil {
		return false
	}
	for _, asset := range l.svcCtx.EngineConfig.Assets {
		if asset == symbol {
			return true
		}
	}
	return false
}
