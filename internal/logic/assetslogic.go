package logic

import (
	"context"
	"errors"

	"github.com/zeromicro/go-zero/core/logx"

	"equilibrium-api/internal/model"
	"equilibrium-api/internal/svc"
	"equilibrium-api/internal/types"
)

type AssetsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewAssetsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *AssetsLogic {
	return &AssetsLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Assets returns the configured sync universe. Without an engine config the
// service still answers, with an empty list.
func (l *AssetsLogic) Assets() (*types.AssetsResponse, error) {
	cfg := l.svcCtx.EngineConfig
	if cfg == nil {
		return &types.AssetsResponse{Assets: []string{}}, nil
	}
	resp := &types.AssetsResponse{
		Assets:   append([]string(nil), cfg.Assets...),
		Timezone: cfg.Timezone,
		Interval: cfg.Interval,
	}
	if l.svcCtx.SyncCursorsModel != nil {
		resp.Sync = l.syncStates(cfg.Assets)
	}
	return resp, nil
}

// syncStates reads each asset's cursor row. Assets the engine has never
// touched are simply absent; a failing read drops its entry rather than the
// whole response.
func (l *AssetsLogic) syncStates(assets []string) map[string]types.AssetSyncState {
	states := make(map[string]types.AssetSyncState, len(assets))
	for _, asset := range assets {
		row, err := l.svcCtx.SyncCursorsModel.FindOneByAssetId(l.ctx, asset)
		if err != nil {
			if !errors.Is(err, model.ErrNotFound) {
				l.Errorf("assets: read cursor asset=%s err=%v", asset, err)
			}
			continue
		}
		state := types.AssetSyncState{LastIngested: row.LastIngested}
		if row.LastProcessedDate.Valid {
			state.LastProcessedDate = row.LastProcessedDate.Time.Format("2006-01-02")
		}
		states[asset] = state
	}
	if len(states) == 0 {
		return nil
	}
	return states
}
