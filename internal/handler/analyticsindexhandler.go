package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"equilibrium-api/internal/logic"
	"equilibrium-api/internal/svc"
	"equilibrium-api/internal/types"
)

func AnalyticsIndexHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.AnalyticsIndexRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		l := logic.NewAnalyticsIndexLogic(r.Context(), svcCtx)
		resp, err := l.AnalyticsIndex(&req)
		respond(w, r, resp, err, "unknown symbol")
	}
}
