package logic

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	cachekeys "equilibrium-api/internal/cache"
	"equilibrium-api/internal/persistence/reports"
	"equilibrium-api/internal/svc"
	"equilibrium-api/internal/types"
	"equilibrium-api/pkg/analytics"
)

type AnalyticsReportLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewAnalyticsReportLogic(ctx context.Context, svcCtx *svc.ServiceContext) *AnalyticsReportLogic {
	return &AnalyticsReportLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// AnalyticsReport serves one published report verbatim from the cache. The
// serving path never computes; a key without a payload is unavailable, no
// matter why.
func (l *AnalyticsReportLogic) AnalyticsReport(req *types.AnalyticsReportRequest) (json.RawMessage, error) {
	if l.svcCtx.Reports == nil {
		return nil, reports.ErrNotFound
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	reportType := strings.ToLower(strings.TrimSpace(req.ReportType))
	period := strings.ToLower(strings.TrimSpace(req.Period))
	if period == "" {
		period = analytics.PeriodYTD
	}

	key := cachekeys.AnalyticsReportKey(symbol, reportType, period)
	payload, err := l.svcCtx.Reports.Get(l.ctx, key)
	if err != nil {
		if !errors.Is(err, reports.ErrNotFound) {
			l.Errorf("analytics: read report key=%s err=%v", key, err)
		}
		return nil, err
	}
	return json.RawMessage(payload), nil
}
