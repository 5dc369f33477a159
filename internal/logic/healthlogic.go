package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"equilibrium-api/internal/svc"
	"equilibrium-api/internal/types"
)

type HealthLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewHealthLogic(ctx context.Context, svcCtx *svc.ServiceContext) *HealthLogic {
	return &HealthLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Health checks each configured dependency. The endpoint itself always
// answers; an unreachable dependency downgrades Status instead of failing
// the request.
func (l *HealthLogic) Health() (*types.HealthResponse, error) {
	resp := &types.HealthResponse{
		Status:   "ok",
		Postgres: "not_configured",
		Redis:    "not_configured",
	}

	if l.svcCtx.DBConn != nil {
		var one int
		if err := l.svcCtx.DBConn.QueryRowCtx(l.ctx, &one, `SELECT 1`); err != nil {
			l.Errorf("health: postgres ping err=%v", err)
			resp.Postgres = "unreachable"
			resp.Status = "degraded"
		} else {
			resp.Postgres = "ok"
		}
	}

	if l.svcCtx.Reports != nil {
		if l.svcCtx.Reports.Ping(l.ctx) {
			resp.Redis = "ok"
		} else {
			resp.Redis = "unreachable"
			resp.Status = "degraded"
		}
	}

	return resp, nil
}
