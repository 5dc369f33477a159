package logic

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	cachekeys "equilibrium-api/internal/cache"
	"equilibrium-api/internal/persistence/reports"
	"equilibrium-api/internal/svc"
	"equilibrium-api/pkg/engine"
)

type EngineStatusLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewEngineStatusLogic(ctx context.Context, svcCtx *svc.ServiceContext) *EngineStatusLogic {
	return &EngineStatusLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// EngineStatus returns the snapshot of the last completed run. The snapshot
// is stored as msgpack and served as JSON.
func (l *EngineStatusLogic) EngineStatus() (*engine.RunSummary, error) {
	if l.svcCtx.Reports == nil {
		return nil, reports.ErrNotFound
	}
	data, err := l.svcCtx.Reports.Get(l.ctx, cachekeys.EngineStatusKey())
	if err != nil {
		if !errors.Is(err, reports.ErrNotFound) {
			l.Errorf("status: read run snapshot err=%v", err)
		}
		return nil, err
	}
	summary, err := engine.DecodeRunSummary(data)
	if err != nil {
		l.Errorf("status: decode run snapshot err=%v", err)
		return nil, fmt.Errorf("decode run snapshot: %w", err)
	}
	return summary, nil
}
